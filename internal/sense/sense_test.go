package sense

import (
	"math"
	"testing"
)

func TestTiltFromAccel(t *testing.T) {
	tests := []struct {
		name       string
		ax, ay, az float64
		roll       float64
		pitch      float64
	}{
		{"level", 0, 0, 1, 0, 0},
		{"nose up 30", 0, 0.5, math.Sqrt(3) / 2, 0, 30},
		{"nose down 45", 0, -math.Sqrt(2) / 2, math.Sqrt(2) / 2, 0, -45},
		{"roll right 30", -0.5, 0, math.Sqrt(3) / 2, 30, 0},
		{"roll left 45", math.Sqrt(2) / 2, 0, math.Sqrt(2) / 2, -45, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			roll, pitch := TiltFromAccel(tc.ax, tc.ay, tc.az)
			if math.Abs(roll-tc.roll) > 0.01 {
				t.Fatalf("roll=%v want %v", roll, tc.roll)
			}
			if math.Abs(pitch-tc.pitch) > 0.01 {
				t.Fatalf("pitch=%v want %v", pitch, tc.pitch)
			}
		})
	}
}

func TestPositionString(t *testing.T) {
	if Front.String() != "front" || Back.String() != "back" || Bottom.String() != "bottom" {
		t.Fatalf("unexpected position names: %v %v %v", Front, Back, Bottom)
	}
	if Position(9).String() != "unknown" {
		t.Fatalf("out-of-range position should be unknown")
	}
}
