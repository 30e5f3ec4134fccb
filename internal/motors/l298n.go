package motors

import "fmt"

// L298N wiring: each bank has two direction inputs and one speed input.
// Direction pins are always written complementary (or both low), so the
// H-bridge can never see both directions asserted.

// pinOut is one digital output line.
type pinOut interface {
	Set(v int) error
	Close() error
}

// speedOut is a bank's speed input: a PWM channel, or a plain enable line
// that treats any duty above zero as on.
type speedOut interface {
	SetDutyPercent(p float64) error
	Close() error
}

// BankPins identifies one L298N bank. EnablePin is used by the gpio
// backend, PWMChannel by the pwm backend.
type BankPins struct {
	In1Pin     int
	In2Pin     int
	EnablePin  int
	PWMChannel int
}

// OpenConfig selects and wires the hardware backend.
//
// Backend "gpio" drives each bank's enable pin as a digital line: any duty
// above zero is full on. That matches boards where the enable pins sit on
// ordinary GPIOs. Backend "pwm" expects the enable pins rewired to hardware
// PWM channels (pwm-2chan overlay) and gives proportional speed.
type OpenConfig struct {
	Backend string // gpio | pwm
	Chip    string

	Surge BankPins
	Heave BankPins

	PWMFrequencyHz int
	Consumer       string
}

type bank struct {
	in1, in2 pinOut
	speed    speedOut

	moving  bool
	lastFwd bool
}

// set drives the bank at a signed percentage. Direction flips pass through
// zero duty so the bridge never switches under load.
func (b *bank) set(pct float64) error {
	switch {
	case pct > 0:
		return b.drive(true, pct)
	case pct < 0:
		return b.drive(false, -pct)
	default:
		return b.idle()
	}
}

func (b *bank) drive(fwd bool, duty float64) error {
	if b.moving && b.lastFwd != fwd {
		if err := b.speed.SetDutyPercent(0); err != nil {
			return err
		}
	}
	// Drop the outgoing pin before raising the incoming one so the pair
	// is never high together.
	low, high := b.in1, b.in2
	if fwd {
		low, high = b.in2, b.in1
	}
	if err := low.Set(0); err != nil {
		return err
	}
	if err := high.Set(1); err != nil {
		return err
	}
	if err := b.speed.SetDutyPercent(duty); err != nil {
		return err
	}
	b.moving = true
	b.lastFwd = fwd
	return nil
}

func (b *bank) idle() error {
	if err := b.speed.SetDutyPercent(0); err != nil {
		return err
	}
	if err := b.in1.Set(0); err != nil {
		return err
	}
	if err := b.in2.Set(0); err != nil {
		return err
	}
	b.moving = false
	return nil
}

func (b *bank) close() error {
	var first error
	if b.speed != nil {
		if err := b.speed.SetDutyPercent(0); err != nil && first == nil {
			first = err
		}
		if err := b.speed.Close(); err != nil && first == nil {
			first = err
		}
	}
	for _, p := range []pinOut{b.in1, b.in2} {
		if p == nil {
			continue
		}
		if err := p.Set(0); err != nil && first == nil {
			first = err
		}
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// l298n is the two-bank Driver: one bank for surge, one for heave.
type l298n struct {
	surge bank
	heave bank
}

func (d *l298n) SetSurge(pct float64) error { return d.surge.set(pct) }

func (d *l298n) SetHeave(pct float64) error { return d.heave.set(pct) }

func (d *l298n) Close() error {
	err1 := d.surge.close()
	err2 := d.heave.close()
	if err1 != nil {
		return fmt.Errorf("motors: close surge bank: %w", err1)
	}
	if err2 != nil {
		return fmt.Errorf("motors: close heave bank: %w", err2)
	}
	return nil
}
