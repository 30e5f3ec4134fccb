//go:build linux

package i2c

import (
	"os"
	"strings"
	"testing"
)

func openNullBus(t *testing.T) *Bus {
	t.Helper()
	f, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("open %s: %v", os.DevNull, err)
	}
	t.Cleanup(func() { f.Close() })
	return &Bus{f: f, path: os.DevNull}
}

func TestOpen_RejectsNegativeBus(t *testing.T) {
	if _, err := Open(-1); err == nil || !strings.Contains(err.Error(), "invalid bus number") {
		t.Fatalf("err=%v want invalid bus number", err)
	}
}

func TestDevTx_ReservedAddr(t *testing.T) {
	b := openNullBus(t)

	for _, addr := range []uint16{0, 0x03, 0x78, 0x80, 0x1FF} {
		d := &Dev{bus: b, addr: addr}
		err := d.Read(make([]byte, 1))
		if err == nil || !strings.Contains(err.Error(), "out of 7-bit device range") {
			t.Fatalf("addr=0x%X err=%v want out-of-range error", addr, err)
		}
	}
}

func TestDevTx_NoPayloadIsNoop(t *testing.T) {
	b := openNullBus(t)
	d := b.Dev(0x68)

	if err := d.tx(nil, nil); err != nil {
		t.Fatalf("tx(nil, nil) = %v", err)
	}
}

func TestDevTx_NilDevice(t *testing.T) {
	var d *Dev
	if err := d.Write([]byte{0x75}); err == nil {
		t.Fatalf("err=nil want error for nil device")
	}
}

func TestDevTx_ClosedBus(t *testing.T) {
	b := openNullBus(t)
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	d := b.Dev(0x68)
	if err := d.Read(make([]byte, 1)); err == nil || !strings.Contains(err.Error(), "closed") {
		t.Fatalf("err=%v want bus closed", err)
	}
}
