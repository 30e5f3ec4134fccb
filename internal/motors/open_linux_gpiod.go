//go:build linux && (arm || arm64)

package motors

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/warthog618/go-gpiocdev"
)

// Open acquires the L298N lines via the GPIO character device and returns a
// ready Driver with both banks idle.
func Open(cfg OpenConfig) (Driver, error) {
	switch cfg.Backend {
	case "", "gpio", "pwm":
	default:
		return nil, fmt.Errorf("motors: unknown backend %q (want gpio or pwm)", cfg.Backend)
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "auv-ng-motors"
	}
	if cfg.PWMFrequencyHz <= 0 {
		cfg.PWMFrequencyHz = 1000
	}

	var lastErr error
	for _, chipPath := range chipCandidates(cfg.Chip) {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			lastErr = err
			continue
		}
		drv, err := openOnChip(chip, cfg)
		if err != nil {
			_ = chip.Close()
			lastErr = err
			continue
		}
		return drv, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no gpiochip found")
	}
	return nil, fmt.Errorf("motors: open l298n: %w", lastErr)
}

func chipCandidates(configured string) []string {
	var out []string
	if configured != "" {
		out = append(out, filepath.Join("/dev", filepath.Base(configured)))
	}
	out = append(out, "/dev/gpiochip0", "/dev/gpiochip4")
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "gpiochip") {
			out = append(out, filepath.Join("/dev", e.Name()))
		}
	}
	return out
}

type gpiodDriver struct {
	l298n
	chip *gpiocdev.Chip
}

func (d *gpiodDriver) Close() error {
	err := d.l298n.Close()
	if d.chip != nil {
		_ = d.chip.Close()
		d.chip = nil
	}
	return err
}

func openOnChip(chip *gpiocdev.Chip, cfg OpenConfig) (*gpiodDriver, error) {
	var cleanup []func()
	fail := func(err error) (*gpiodDriver, error) {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
		return nil, err
	}

	reqOut := func(pin int) (pinOut, error) {
		if pin <= 0 {
			return nil, fmt.Errorf("invalid pin %d", pin)
		}
		offset, err := chip.FindLine(fmt.Sprintf("GPIO%d", pin))
		if err != nil {
			return nil, err
		}
		line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer(cfg.Consumer))
		if err != nil {
			return nil, err
		}
		p := &gpiodPin{line: line}
		cleanup = append(cleanup, func() { _ = p.Close() })
		return p, nil
	}

	mkBank := func(pins BankPins) (bank, error) {
		in1, err := reqOut(pins.In1Pin)
		if err != nil {
			return bank{}, err
		}
		in2, err := reqOut(pins.In2Pin)
		if err != nil {
			return bank{}, err
		}
		var speed speedOut
		if cfg.Backend == "pwm" {
			speed, err = openSysfsPWM(pins.PWMChannel, cfg.PWMFrequencyHz)
			if err != nil {
				return bank{}, err
			}
			sp := speed
			cleanup = append(cleanup, func() { _ = sp.Close() })
		} else {
			en, err := reqOut(pins.EnablePin)
			if err != nil {
				return bank{}, err
			}
			speed = &gpioSpeed{pin: en}
		}
		b := bank{in1: in1, in2: in2, speed: speed}
		if err := b.idle(); err != nil {
			return bank{}, err
		}
		return b, nil
	}

	surge, err := mkBank(cfg.Surge)
	if err != nil {
		return fail(fmt.Errorf("surge bank: %w", err))
	}
	heave, err := mkBank(cfg.Heave)
	if err != nil {
		return fail(fmt.Errorf("heave bank: %w", err))
	}

	return &gpiodDriver{l298n: l298n{surge: surge, heave: heave}, chip: chip}, nil
}

type gpiodPin struct {
	line *gpiocdev.Line
}

func (p *gpiodPin) Set(v int) error { return p.line.SetValue(v) }

func (p *gpiodPin) Close() error {
	_ = p.line.SetValue(0)
	return p.line.Close()
}

// gpioSpeed is the on/off speed backend: any duty above zero is full on.
type gpioSpeed struct {
	pin pinOut
}

func (g *gpioSpeed) SetDutyPercent(p float64) error {
	v := 0
	if p > 0 {
		v = 1
	}
	return g.pin.Set(v)
}

func (g *gpioSpeed) Close() error { return g.pin.Close() }
