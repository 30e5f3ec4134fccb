//go:build linux && (arm || arm64)

package hcsr04

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

var sleep = time.Sleep

// Open requests the trigger and echo lines via the GPIO character device.
// The echo line is requested with both-edge events so the kernel timestamps
// the pulse for us.
func Open(cfg Config) (*Ranger, error) {
	if cfg.TriggerPin <= 0 || cfg.EchoPin <= 0 {
		return nil, fmt.Errorf("hcsr04: invalid pins trig=%d echo=%d", cfg.TriggerPin, cfg.EchoPin)
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "auv-ng-hcsr04"
	}

	events := make(chan edge, 4)
	eh := func(evt gpiocdev.LineEvent) {
		e := edge{rising: evt.Type == gpiocdev.LineEventRisingEdge, at: evt.Timestamp}
		// Never block the gpiocdev event goroutine.
		select {
		case events <- e:
		default:
		}
	}

	for _, chipPath := range chipCandidates(cfg.Chip) {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}

		trigOffset, err := chip.FindLine(fmt.Sprintf("GPIO%d", cfg.TriggerPin))
		if err != nil {
			_ = chip.Close()
			continue
		}
		echoOffset, err := chip.FindLine(fmt.Sprintf("GPIO%d", cfg.EchoPin))
		if err != nil {
			_ = chip.Close()
			continue
		}

		trig, err := chip.RequestLine(trigOffset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer(cfg.Consumer))
		if err != nil {
			_ = chip.Close()
			continue
		}
		echo, err := chip.RequestLine(echoOffset,
			gpiocdev.WithBothEdges,
			gpiocdev.WithEventHandler(eh),
			gpiocdev.WithConsumer(cfg.Consumer))
		if err != nil {
			_ = trig.Close()
			_ = chip.Close()
			continue
		}

		hw := &gpiodLines{chip: chip, trig: trig, echo: echo}
		return newRanger(hw, events, cfg.EchoTimeout), nil
	}

	return nil, fmt.Errorf("hcsr04: lines GPIO%d/GPIO%d not found (or busy)", cfg.TriggerPin, cfg.EchoPin)
}

// chipCandidates lists chip paths to try, the configured one first. Pi kernel
// variants move the header GPIOs between gpiochip0 and gpiochip4.
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

type gpiodLines struct {
	chip *gpiocdev.Chip
	trig *gpiocdev.Line
	echo *gpiocdev.Line
}

func (g *gpiodLines) Pulse() error {
	if err := g.trig.SetValue(1); err != nil {
		return err
	}
	// The part wants >=10us high. Sleep may overshoot; that is fine.
	sleep(10 * time.Microsecond)
	return g.trig.SetValue(0)
}

func (g *gpiodLines) Close() error {
	if g == nil {
		return nil
	}
	var first error
	if g.trig != nil {
		_ = g.trig.SetValue(0)
		if err := g.trig.Close(); err != nil && first == nil {
			first = err
		}
		g.trig = nil
	}
	if g.echo != nil {
		if err := g.echo.Close(); err != nil && first == nil {
			first = err
		}
		g.echo = nil
	}
	if g.chip != nil {
		_ = g.chip.Close()
		g.chip = nil
	}
	return first
}
