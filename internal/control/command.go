// Package control runs the dive control loop: a fixed-cadence scheduler that
// reads the sensor frame, steps the avoidance state machine, applies the
// stabilization law and drives the motors, plus the start/stop gate the
// HTTP layer calls into.
package control

// MotorCommand is one tick's demand for the two thruster banks. Channels
// are signed percentages in [-100, 100]: positive surge drives forward,
// positive heave drives up. Direction is always derived from the sign, so
// a command cannot ask a bank for both directions at once.
type MotorCommand struct {
	SurgePct float64
	HeavePct float64
}

const maxChannelPct = 100.0

func Neutral() MotorCommand { return MotorCommand{} }

func (c MotorCommand) IsNeutral() bool { return c.SurgePct == 0 && c.HeavePct == 0 }

func clamp(v, lo, hi float64) float64 { return min(hi, max(lo, v)) }
