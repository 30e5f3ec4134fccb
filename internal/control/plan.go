package control

import (
	"fmt"
	"time"
)

// PlanConfig describes an optional scripted dive: submerge, cruise a number
// of timed laps, surface, optionally repeat. When disabled the loop cruises
// continuously instead.
type PlanConfig struct {
	Enable bool

	SubmergeDuration time.Duration
	SubmergePct      float64

	CruiseLaps  int
	LapDuration time.Duration

	SurfaceDuration time.Duration
	SurfacePct      float64

	Repeat bool
}

func (c PlanConfig) cycle() time.Duration {
	return c.SubmergeDuration + time.Duration(c.CruiseLaps)*c.LapDuration + c.SurfaceDuration
}

// Baseline is the plan's demand at a point in the run. During submerge and
// surface phases the heave value is mandated, the same way an avoidance
// vertical action is; during laps the stabilization bias applies as usual.
type Baseline struct {
	Phase       string
	SurgePct    float64
	HeavePct    float64
	HeaveForced bool
	Done        bool
}

// Baseline evaluates the plan at elapsed time since the run started.
// cruisePct is the lap-phase surge. The phase schedule advances on wall
// time even while avoidance preempts the baseline, so a long obstacle
// detour shortens the remaining lap rather than extending the dive.
func (c PlanConfig) Baseline(elapsed time.Duration, cruisePct float64) Baseline {
	cycle := c.cycle()
	if cycle <= 0 {
		return Baseline{Phase: "cruise", SurgePct: cruisePct}
	}
	if elapsed >= cycle {
		if !c.Repeat {
			return Baseline{Phase: "done", Done: true}
		}
		elapsed = elapsed % cycle
	}

	if elapsed < c.SubmergeDuration {
		return Baseline{Phase: "submerge", HeavePct: -c.SubmergePct, HeaveForced: true}
	}
	elapsed -= c.SubmergeDuration

	lapTotal := time.Duration(c.CruiseLaps) * c.LapDuration
	if elapsed < lapTotal {
		lap := 0
		if c.LapDuration > 0 {
			lap = int(elapsed / c.LapDuration)
		}
		return Baseline{
			Phase:    fmt.Sprintf("lap %d/%d", lap+1, c.CruiseLaps),
			SurgePct: cruisePct,
		}
	}

	return Baseline{Phase: "surface", HeavePct: c.SurfacePct, HeaveForced: true}
}
