// Package motors drives the two L298N thruster banks. The Actuator enforces
// the safety rules every caller gets for free: signed channel values are
// clamped, large steps are ramped over several ticks, and Stop always lands
// the hardware in neutral no matter what was in progress.
package motors

import (
	"fmt"
	"math"
	"sync"

	"auv-ng/internal/control"
)

// Driver is a bank-level motor backend. Implementations derive direction
// and duty from the signed percentage, so a caller cannot ask a bank for
// both directions at once.
type Driver interface {
	SetSurge(pct float64) error
	SetHeave(pct float64) error
	Close() error
}

const defaultRampStepPct = 20.0

type Config struct {
	// RampStepPct bounds how much a channel may change per Apply call.
	RampStepPct float64
}

// Actuator owns the motor driver handle. All hardware access goes through
// its mutex; Apply and Stop may be called from different goroutines during
// shutdown.
type Actuator struct {
	step float64

	mu  sync.Mutex
	drv Driver
	cur control.MotorCommand
}

func New(cfg Config, drv Driver) *Actuator {
	if cfg.RampStepPct <= 0 {
		cfg.RampStepPct = defaultRampStepPct
	}
	return &Actuator{step: cfg.RampStepPct, drv: drv}
}

// Apply moves both channels one ramp step toward the command and writes the
// result to the driver. The returned error means the hardware write failed;
// the caller treats that as fatal for the tick.
func (a *Actuator) Apply(cmd control.MotorCommand) error {
	if a == nil {
		return fmt.Errorf("motors: actuator is nil")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.drv == nil {
		return fmt.Errorf("motors: actuator closed")
	}

	surge := rampToward(a.cur.SurgePct, clamp(cmd.SurgePct), a.step)
	heave := rampToward(a.cur.HeavePct, clamp(cmd.HeavePct), a.step)

	if err := a.drv.SetSurge(surge); err != nil {
		return fmt.Errorf("motors: set surge: %w", err)
	}
	a.cur.SurgePct = surge

	if err := a.drv.SetHeave(heave); err != nil {
		return fmt.Errorf("motors: set heave: %w", err)
	}
	a.cur.HeavePct = heave
	return nil
}

// Stop forces both channels to neutral immediately, skipping the ramp, and
// clears the ramp state so the next Apply starts from zero. Idempotent and
// safe to call at any time.
func (a *Actuator) Stop() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cur = control.MotorCommand{}
	if a.drv == nil {
		return nil
	}
	if err := a.drv.SetSurge(0); err != nil {
		return fmt.Errorf("motors: stop surge: %w", err)
	}
	if err := a.drv.SetHeave(0); err != nil {
		return fmt.Errorf("motors: stop heave: %w", err)
	}
	return nil
}

// Current reports the last values written to the driver (post-ramp).
func (a *Actuator) Current() control.MotorCommand {
	if a == nil {
		return control.MotorCommand{}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cur
}

func (a *Actuator) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cur = control.MotorCommand{}
	if a.drv == nil {
		return nil
	}
	err := a.drv.Close()
	a.drv = nil
	return err
}

func clamp(v float64) float64 {
	if v < -100 {
		return -100
	}
	if v > 100 {
		return 100
	}
	return v
}

func rampToward(cur, target, step float64) float64 {
	if math.Abs(target-cur) <= step {
		return target
	}
	if target > cur {
		return cur + step
	}
	return cur - step
}
