// Package sim holds the software plant used when the daemon runs without
// hardware. The model is deliberately small: one horizontal axis between
// two pool walls plus depth, with speeds scaling linearly from the
// commanded percentages.
package sim

import (
	"sync"
	"time"
)

var nowFn = time.Now

type Config struct {
	PoolLengthCm float64
	PoolDepthCm  float64

	// Speeds at 100% command.
	SurgeCmPerSec float64
	HeaveCmPerSec float64
}

// Plant integrates lazily: every read or command first advances the state
// to the current time, so there is no ticker goroutine to manage. It
// satisfies both the motor driver contract (SetSurge/SetHeave/Close) and
// the orientation source contract.
type Plant struct {
	mu   sync.Mutex
	cfg  Config
	x    float64 // cm from the back wall
	dive float64 // cm below the surface
	last time.Time

	surgePct float64
	heavePct float64
}

func NewPlant(cfg Config) *Plant {
	if cfg.PoolLengthCm <= 0 {
		cfg.PoolLengthCm = 400
	}
	if cfg.PoolDepthCm <= 0 {
		cfg.PoolDepthCm = 200
	}
	if cfg.SurgeCmPerSec <= 0 {
		cfg.SurgeCmPerSec = 50
	}
	if cfg.HeaveCmPerSec <= 0 {
		cfg.HeaveCmPerSec = 25
	}
	return &Plant{
		cfg:  cfg,
		x:    cfg.PoolLengthCm / 2,
		last: nowFn(),
	}
}

func (p *Plant) advanceLocked(now time.Time) {
	dt := now.Sub(p.last).Seconds()
	if dt <= 0 {
		return
	}
	p.last = now

	p.x += p.surgePct / 100 * p.cfg.SurgeCmPerSec * dt
	if p.x < 0 {
		p.x = 0
	}
	if p.x > p.cfg.PoolLengthCm {
		p.x = p.cfg.PoolLengthCm
	}

	// Positive heave is up, which shrinks the dive depth.
	p.dive -= p.heavePct / 100 * p.cfg.HeaveCmPerSec * dt
	if p.dive < 0 {
		p.dive = 0
	}
	if p.dive > p.cfg.PoolDepthCm {
		p.dive = p.cfg.PoolDepthCm
	}
}

func (p *Plant) SetSurge(pct float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advanceLocked(nowFn())
	p.surgePct = pct
	return nil
}

func (p *Plant) SetHeave(pct float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advanceLocked(nowFn())
	p.heavePct = pct
	return nil
}

func (p *Plant) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advanceLocked(nowFn())
	p.surgePct, p.heavePct = 0, 0
	return nil
}

// Orientation reports a small pitch proportional to the heave command so
// the stabilization path has something to act on in simulation.
func (p *Plant) Orientation() (rollDeg, pitchDeg float64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advanceLocked(nowFn())
	return 0, 0.05 * p.heavePct, nil
}

// State reports the current position for status displays.
func (p *Plant) State() (xCm, depthCm float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advanceLocked(nowFn())
	return p.x, p.dive
}

type axis int

const (
	axFront axis = iota
	axBack
	axBottom
)

// Range is one simulated rangefinder looking at a pool boundary.
type Range struct {
	p  *Plant
	ax axis
}

func (p *Plant) FrontRange() *Range  { return &Range{p: p, ax: axFront} }
func (p *Plant) BackRange() *Range   { return &Range{p: p, ax: axBack} }
func (p *Plant) BottomRange() *Range { return &Range{p: p, ax: axBottom} }

func (r *Range) DistanceCm() (float64, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()
	r.p.advanceLocked(nowFn())
	switch r.ax {
	case axFront:
		return r.p.cfg.PoolLengthCm - r.p.x, nil
	case axBack:
		return r.p.x, nil
	default:
		return r.p.cfg.PoolDepthCm - r.p.dive, nil
	}
}
