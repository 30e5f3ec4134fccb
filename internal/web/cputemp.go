package web

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// The electronics tray is sealed against the hull with no airflow, so the
// SoC temperature is part of the health surface. The Pi names its SoC zone
// "cpu-thermal"; other hosts may expose only thermal_zone0.

const thermalRoot = "/sys/class/thermal"

var cpuZoneTypes = map[string]bool{
	"cpu-thermal":  true, // Raspberry Pi
	"x86_pkg_temp": true, // dev machines
}

// readZoneC parses one zone temp file. The kernel writes milli-degrees C;
// small values are taken as plain degrees for odd platforms.
func readZoneC(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("thermal zone: %w", err)
	}
	raw := strings.TrimSpace(string(b))
	if raw == "" {
		return 0, fmt.Errorf("cpu temp %s is empty", path)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse cpu temp %q: %w", raw, err)
	}
	if n > 1000 {
		return float64(n) / 1000, nil
	}
	return float64(n), nil
}

// findCPUZone returns the temp file of the zone whose type names the SoC,
// falling back to the first zone when no type matches.
func findCPUZone(root string) (string, error) {
	zones, err := filepath.Glob(filepath.Join(root, "thermal_zone*"))
	if err != nil || len(zones) == 0 {
		return "", fmt.Errorf("no thermal zones under %s", root)
	}
	for _, z := range zones {
		typ, err := os.ReadFile(filepath.Join(z, "type"))
		if err != nil {
			continue
		}
		if cpuZoneTypes[strings.TrimSpace(string(typ))] {
			return filepath.Join(z, "temp"), nil
		}
	}
	return filepath.Join(zones[0], "temp"), nil
}

// ReadCPUTempC reports the SoC temperature in degrees Celsius.
func ReadCPUTempC() (float64, error) {
	p, err := findCPUZone(thermalRoot)
	if err != nil {
		return 0, err
	}
	return readZoneC(p)
}
