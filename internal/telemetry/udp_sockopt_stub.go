//go:build !unix

package telemetry

import "net"

func enableBroadcast(conn *net.UDPConn) {}
