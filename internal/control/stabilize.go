package control

import "auv-ng/internal/sense"

// StabilizeConfig tunes the proportional tilt correction.
type StabilizeConfig struct {
	// GainPctPerDeg converts pitch degrees into a heave bias percentage.
	GainPctPerDeg float64
	// MaxBiasPct clamps the correction so stabilization alone can never
	// saturate the vertical channel.
	MaxBiasPct float64
}

// Stabilize returns a corrective heave bias for the given attitude sample.
// Nose-up pitch produces a downward bias and vice versa; the magnitude is
// proportional to the deviation and clamped to MaxBiasPct. An invalid
// sample yields zero bias and applied=false.
func Stabilize(cfg StabilizeConfig, o sense.OrientationSample) (biasPct float64, applied bool) {
	if !o.Valid {
		return 0, false
	}
	bias := -cfg.GainPctPerDeg * o.PitchDeg
	return clamp(bias, -cfg.MaxBiasPct, cfg.MaxBiasPct), true
}
