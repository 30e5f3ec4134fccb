//go:build !linux

package i2c

import "errors"

// ErrUnsupported is returned for every operation on a non-linux host.
// The daemon still builds there; sensor bring-up fails at runtime and the
// process degrades to sim or web-only mode.
var ErrUnsupported = errors.New("i2c: requires linux")

type Bus struct{}

type Dev struct{}

func Open(n int) (*Bus, error)           { return nil, ErrUnsupported }
func OpenPath(path string) (*Bus, error) { return nil, ErrUnsupported }

func (b *Bus) Path() string { return "" }
func (b *Bus) Close() error { return nil }

func (b *Bus) Dev(addr uint16) *Dev { return &Dev{} }

func (d *Dev) Write(p []byte) error               { return ErrUnsupported }
func (d *Dev) Read(p []byte) error                { return ErrUnsupported }
func (d *Dev) WriteRead(w, r []byte) error        { return ErrUnsupported }
func (d *Dev) ReadReg(reg byte, dst []byte) error { return ErrUnsupported }
func (d *Dev) ReadRegU8(reg byte) (byte, error)   { return 0, ErrUnsupported }
func (d *Dev) WriteReg(reg, value byte) error     { return ErrUnsupported }
