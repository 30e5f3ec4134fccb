//go:build linux

package i2c

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux I2C access via /dev/i2c-N using the I2C_RDWR ioctl.
//
// I2C_RDWR gives us a combined write+read with a repeated start between the
// two halves, which register-addressed sensors need for reliable reads.

const (
	i2cMsgRead = 0x0001
	i2cRdwr    = 0x0707
)

// i2c_msg / i2c_rdwr_ioctl_data, as the kernel expects them.
type kmsg struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   uintptr
}

type krdwr struct {
	msgs  uintptr
	nmsgs uint32
}

// Bus is an opened I2C adapter. Transfers are serialized internally, so
// handles for different devices on the same Bus may be used from different
// goroutines.
type Bus struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// Open opens I2C adapter n (/dev/i2c-n).
func Open(n int) (*Bus, error) {
	if n < 0 {
		return nil, fmt.Errorf("i2c: invalid bus number %d", n)
	}
	return OpenPath(fmt.Sprintf("/dev/i2c-%d", n))
}

func OpenPath(path string) (*Bus, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("i2c: open %s: %w", path, err)
	}
	return &Bus{f: f, path: path}, nil
}

func (b *Bus) Path() string { return b.path }

func (b *Bus) Close() error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.f == nil {
		return nil
	}
	err := b.f.Close()
	b.f = nil
	return err
}

// Dev returns a handle for the device at the given 7-bit address.
func (b *Bus) Dev(addr uint16) *Dev {
	if b == nil {
		return nil
	}
	return &Dev{bus: b, addr: addr}
}

// Dev addresses one device on a Bus.
type Dev struct {
	bus  *Bus
	addr uint16
}

func (d *Dev) Write(p []byte) error { return d.tx(p, nil) }

func (d *Dev) Read(p []byte) error { return d.tx(nil, p) }

// WriteRead performs a write followed by a read in one transaction.
func (d *Dev) WriteRead(w, r []byte) error { return d.tx(w, r) }

// ReadReg reads len(dst) bytes starting at register reg.
func (d *Dev) ReadReg(reg byte, dst []byte) error {
	return d.WriteRead([]byte{reg}, dst)
}

func (d *Dev) ReadRegU8(reg byte) (byte, error) {
	var b [1]byte
	if err := d.ReadReg(reg, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Dev) WriteReg(reg, value byte) error {
	return d.Write([]byte{reg, value})
}

// tx assembles up to two kernel messages (write half, read half) and hands
// them to the bus. 0x00-0x07 and 0x78 up are reserved by the protocol.
func (d *Dev) tx(w, r []byte) error {
	if d == nil || d.bus == nil {
		return errors.New("i2c: nil device")
	}
	if d.addr < 0x08 || d.addr > 0x77 {
		return fmt.Errorf("i2c: addr 0x%X out of 7-bit device range", d.addr)
	}

	var msgs [2]kmsg
	n := 0
	if len(w) > 0 {
		msgs[n] = kmsg{addr: d.addr, len: uint16(len(w)), buf: uintptr(unsafe.Pointer(&w[0]))}
		n++
	}
	if len(r) > 0 {
		msgs[n] = kmsg{addr: d.addr, flags: i2cMsgRead, len: uint16(len(r)), buf: uintptr(unsafe.Pointer(&r[0]))}
		n++
	}
	if n == 0 {
		return nil
	}
	return d.bus.rdwr(d.addr, msgs[:n])
}

func (b *Bus) rdwr(addr uint16, msgs []kmsg) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.f == nil {
		return errors.New("i2c: bus closed")
	}
	req := krdwr{msgs: uintptr(unsafe.Pointer(&msgs[0])), nmsgs: uint32(len(msgs))}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, b.f.Fd(), i2cRdwr, uintptr(unsafe.Pointer(&req))); errno != 0 {
		return fmt.Errorf("i2c: rdwr addr 0x%X on %s: %w", addr, b.path, errno)
	}
	return nil
}
