//go:build !linux || (!arm && !arm64)

package motors

import "fmt"

// Open is only available on Linux ARM builds.
func Open(cfg OpenConfig) (Driver, error) {
	return nil, fmt.Errorf("motors: unsupported platform")
}
