package telemetry

import (
	"fmt"
	"net"
)

type udpConn interface {
	Write(p []byte) (int, error)
	Close() error
}

type udpTransport struct {
	dest string
	conn udpConn
}

// OpenUDP dials a datagram transport. The default destination is the
// limited broadcast address, so SO_BROADCAST is enabled on the socket.
func OpenUDP(dest string) (Transport, error) {
	return openUDP(dest, net.ResolveUDPAddr, func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		conn, err := net.DialUDP(network, laddr, raddr)
		if err != nil {
			return nil, err
		}
		enableBroadcast(conn)
		return conn, nil
	})
}

func openUDP(dest string, resolve func(network, address string) (*net.UDPAddr, error), dial func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)) (*udpTransport, error) {
	addr, err := resolve("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("telemetry: resolve dest: %w", err)
	}

	// DialUDP selects a suitable local address automatically.
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("telemetry: dial udp: %w", err)
	}

	return &udpTransport{dest: dest, conn: conn}, nil
}

func (u *udpTransport) Publish(topic string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	_, err := u.conn.Write(payload)
	return err
}

func (u *udpTransport) Close() error {
	if u.conn == nil {
		return nil
	}
	return u.conn.Close()
}
