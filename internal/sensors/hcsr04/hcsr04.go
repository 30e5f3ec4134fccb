package hcsr04

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// HC-SR04 ultrasonic rangefinder.
//
// A 10us pulse on the trigger line makes the sensor emit an 8-cycle 40 kHz
// burst and raise the echo line for the duration of the round trip. We read
// the echo width from kernel-timestamped edge events rather than polling the
// line, so the measurement does not depend on scheduler latency.

var (
	ErrNoEcho = errors.New("hcsr04: no echo")

	afterFn = time.After
)

// speed of sound in air, cm/s. Width covers the round trip, so halve it.
const soundCmPerSec = 34300.0

const defaultEchoTimeout = 60 * time.Millisecond

type edge struct {
	rising bool
	at     time.Duration
}

// trigIO is the hardware side of a Ranger: pulse the trigger, release lines.
type trigIO interface {
	Pulse() error
	Close() error
}

type Config struct {
	Chip       string
	TriggerPin int
	EchoPin    int

	// EchoTimeout bounds one measurement. Zero means a default comfortably
	// above the sensor's own ~38ms no-obstacle timeout.
	EchoTimeout time.Duration

	Consumer string
}

// Ranger is one opened HC-SR04. Measure is safe for concurrent use; calls
// are serialized because the sensor cannot overlap pings.
type Ranger struct {
	mu          sync.Mutex
	hw          trigIO
	events      chan edge
	echoTimeout time.Duration
}

func newRanger(hw trigIO, events chan edge, echoTimeout time.Duration) *Ranger {
	if echoTimeout <= 0 {
		echoTimeout = defaultEchoTimeout
	}
	return &Ranger{hw: hw, events: events, echoTimeout: echoTimeout}
}

// MeasureCm triggers one ping and returns the distance in centimeters.
func (r *Ranger) MeasureCm() (float64, error) {
	if r == nil || r.hw == nil {
		return 0, errors.New("hcsr04: ranger is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.drain()

	if err := r.hw.Pulse(); err != nil {
		return 0, fmt.Errorf("hcsr04: trigger: %w", err)
	}

	deadline := afterFn(r.echoTimeout)
	rise, err := r.waitEdge(true, deadline)
	if err != nil {
		return 0, err
	}
	fall, err := r.waitEdge(false, deadline)
	if err != nil {
		return 0, err
	}

	width := fall - rise
	if width <= 0 {
		return 0, ErrNoEcho
	}
	return width.Seconds() * soundCmPerSec / 2, nil
}

func (r *Ranger) Close() error {
	if r == nil || r.hw == nil {
		return nil
	}
	return r.hw.Close()
}

// drain discards edges left over from an earlier timed-out ping.
func (r *Ranger) drain() {
	for {
		select {
		case <-r.events:
		default:
			return
		}
	}
}

func (r *Ranger) waitEdge(rising bool, deadline <-chan time.Time) (time.Duration, error) {
	for {
		select {
		case e := <-r.events:
			if e.rising == rising {
				return e.at, nil
			}
			// Opposite edge first means we joined mid-pulse; keep waiting.
		case <-deadline:
			return 0, ErrNoEcho
		}
	}
}
