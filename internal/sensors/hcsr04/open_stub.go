//go:build !linux || (!arm && !arm64)

package hcsr04

import "fmt"

func Open(cfg Config) (*Ranger, error) {
	return nil, fmt.Errorf("hcsr04: unsupported platform (need linux arm)")
}
