package control

import (
	"testing"
	"time"

	"auv-ng/internal/sense"
)

func orient(pitch float64) sense.OrientationSample {
	return sense.OrientationSample{PitchDeg: pitch, At: time.Now(), Valid: true}
}

func TestStabilize_ProportionalAndOpposing(t *testing.T) {
	cfg := StabilizeConfig{GainPctPerDeg: 2, MaxBiasPct: 40}

	tests := []struct {
		pitch float64
		bias  float64
	}{
		{0, 0},
		{5, -10},
		{-5, 10},
		{10, -20},
		{-10, 20},
	}
	for _, tc := range tests {
		bias, applied := Stabilize(cfg, orient(tc.pitch))
		if !applied {
			t.Fatalf("pitch=%v: not applied", tc.pitch)
		}
		if bias != tc.bias {
			t.Fatalf("pitch=%v bias=%v want %v", tc.pitch, bias, tc.bias)
		}
	}
}

func TestStabilize_ClampsToMaxBias(t *testing.T) {
	cfg := StabilizeConfig{GainPctPerDeg: 2, MaxBiasPct: 40}

	bias, applied := Stabilize(cfg, orient(60))
	if !applied || bias != -40 {
		t.Fatalf("bias=%v applied=%v want -40 applied", bias, applied)
	}
	bias, applied = Stabilize(cfg, orient(-60))
	if !applied || bias != 40 {
		t.Fatalf("bias=%v applied=%v want 40 applied", bias, applied)
	}
}

func TestStabilize_MonotonicInDeviation(t *testing.T) {
	cfg := StabilizeConfig{GainPctPerDeg: 2, MaxBiasPct: 100}

	prev := 0.0
	for pitch := 1.0; pitch <= 40; pitch++ {
		bias, _ := Stabilize(cfg, orient(pitch))
		mag := -bias
		if mag < prev {
			t.Fatalf("pitch=%v magnitude %v < previous %v", pitch, mag, prev)
		}
		prev = mag
	}
}

func TestStabilize_InvalidSampleSkips(t *testing.T) {
	cfg := StabilizeConfig{GainPctPerDeg: 2, MaxBiasPct: 40}

	bias, applied := Stabilize(cfg, sense.OrientationSample{PitchDeg: 30})
	if applied {
		t.Fatalf("applied=true for invalid sample")
	}
	if bias != 0 {
		t.Fatalf("bias=%v want 0 for invalid sample", bias)
	}
}
