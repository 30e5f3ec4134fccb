package web

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeZone(t *testing.T, root, name, zoneType, raw string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "type"), []byte(zoneType+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile type: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "temp"), []byte(raw), 0o644); err != nil {
		t.Fatalf("WriteFile temp: %v", err)
	}
}

func TestReadZoneC(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    float64
		wantErr bool
	}{
		{"milli_degrees", "52345\n", 52.345, false},
		{"plain_degrees", "52", 52, false},
		{"empty", "\n", 0, true},
		{"garbage", "warm\n", 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), "temp")
			if err := os.WriteFile(p, []byte(tc.raw), 0o644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			v, err := readZoneC(p)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", v)
				}
				return
			}
			if err != nil {
				t.Fatalf("err=%v", err)
			}
			if v != tc.want {
				t.Fatalf("v=%v want %v", v, tc.want)
			}
		})
	}
}

func TestFindCPUZone_PrefersSoCType(t *testing.T) {
	root := t.TempDir()
	writeZone(t, root, "thermal_zone0", "gpu-thermal", "31000")
	writeZone(t, root, "thermal_zone1", "cpu-thermal", "48100")

	p, err := findCPUZone(root)
	if err != nil {
		t.Fatalf("findCPUZone: %v", err)
	}
	if !strings.Contains(p, "thermal_zone1") {
		t.Fatalf("picked %s, want thermal_zone1", p)
	}
	v, err := readZoneC(p)
	if err != nil {
		t.Fatalf("readZoneC: %v", err)
	}
	if v != 48.1 {
		t.Fatalf("v=%v want 48.1", v)
	}
}

func TestFindCPUZone_FallsBackToFirstZone(t *testing.T) {
	root := t.TempDir()
	writeZone(t, root, "thermal_zone0", "board-thermal", "39000")

	p, err := findCPUZone(root)
	if err != nil {
		t.Fatalf("findCPUZone: %v", err)
	}
	if !strings.Contains(p, "thermal_zone0") {
		t.Fatalf("picked %s, want thermal_zone0", p)
	}
}

func TestFindCPUZone_NoZones(t *testing.T) {
	if _, err := findCPUZone(t.TempDir()); err == nil {
		t.Fatalf("expected error")
	}
}
