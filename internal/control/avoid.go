package control

import "auv-ng/internal/sense"

// NavState is the avoidance machine's state for one tick.
type NavState int

const (
	Cruising NavState = iota
	AvoidingFront
	AvoidingBack
	AvoidingDepth
	EmergencyStop
)

func (s NavState) String() string {
	switch s {
	case Cruising:
		return "cruising"
	case AvoidingFront:
		return "avoiding_front"
	case AvoidingBack:
		return "avoiding_back"
	case AvoidingDepth:
		return "avoiding_depth"
	case EmergencyStop:
		return "emergency_stop"
	default:
		return "unknown"
	}
}

// AvoidConfig holds the distance thresholds and thrust magnitudes for the
// avoidance machine. Each avoidance state has a distinct entry and release
// threshold; the gap between them is the hysteresis band that keeps a
// reading hovering at the boundary from flapping the state every tick.
type AvoidConfig struct {
	FrontStopCm    float64
	FrontReleaseCm float64

	BackStopCm    float64
	BackReleaseCm float64

	BottomMinClearanceCm float64
	BottomReleaseCm      float64

	CruisePct float64
	AvoidPct  float64
	AscendPct float64
}

// Decision is the avoidance machine's output for one tick. HeaveForced
// means the vertical value is mandated and must preempt the stabilization
// bias in the blender.
type Decision struct {
	State       NavState
	SurgePct    float64
	HeavePct    float64
	HeaveForced bool
}

// Step advances the avoidance machine. It is a total, deterministic
// function of (prev, samples): no memory beyond prev itself.
//
// Priority, highest first: emergency stop when the bottom sample is invalid
// or when any two of the three rangers are invalid together; depth; front;
// back (only when the front is clear); cruising. An invalid front or back
// sample neither enters nor holds its avoidance state; the double-invalid
// rule is what escalates persistent sensor loss.
func Step(cfg AvoidConfig, prev NavState, front, back, bottom sense.RangeSample) Decision {
	invalid := 0
	for _, s := range []sense.RangeSample{front, back, bottom} {
		if !s.Valid {
			invalid++
		}
	}
	if !bottom.Valid || invalid >= 2 {
		return Decision{State: EmergencyStop, HeavePct: cfg.AscendPct, HeaveForced: true}
	}

	low := bottom.DistanceCm < cfg.BottomMinClearanceCm
	if prev == AvoidingDepth {
		low = bottom.DistanceCm <= cfg.BottomReleaseCm
	}
	if low {
		return Decision{State: AvoidingDepth, HeavePct: cfg.AscendPct, HeaveForced: true}
	}

	if front.Valid {
		tooClose := front.DistanceCm < cfg.FrontStopCm
		if prev == AvoidingFront {
			tooClose = front.DistanceCm <= cfg.FrontReleaseCm
		}
		if tooClose {
			return Decision{State: AvoidingFront, SurgePct: -cfg.AvoidPct}
		}
	}

	if back.Valid {
		tooClose := back.DistanceCm < cfg.BackStopCm
		if prev == AvoidingBack {
			tooClose = back.DistanceCm <= cfg.BackReleaseCm
		}
		if tooClose {
			return Decision{State: AvoidingBack, SurgePct: cfg.AvoidPct}
		}
	}

	return Decision{State: Cruising, SurgePct: cfg.CruisePct}
}
