package sense

import (
	"sync/atomic"
	"time"
)

var (
	nowFn   = time.Now
	afterFn = time.After
)

const (
	defaultPollTimeout     = 50 * time.Millisecond
	defaultStalenessWindow = 200 * time.Millisecond
	defaultMinCm           = 2
	defaultMaxCm           = 400
)

// Limits is the plausible distance band for one rangefinder. Readings
// outside it are treated as invalid.
type Limits struct {
	MinCm float64
	MaxCm float64
}

type Config struct {
	// PollTimeout bounds each hardware call. A poll that exceeds it yields
	// an invalid sample; the call itself is abandoned, and while it is
	// still in flight later polls of that channel skip the hardware.
	PollTimeout time.Duration

	// StalenessWindow is how old a last-known-good sample may be and still
	// stand in for a failed poll.
	StalenessWindow time.Duration

	Front  Limits
	Back   Limits
	Bottom Limits
}

// Frame is one tick's worth of samples.
type Frame struct {
	Orientation OrientationSample
	Ranges      [3]RangeSample // indexed by Position
}

func (f Frame) Range(p Position) RangeSample { return f.Ranges[p] }

type orientResult struct {
	roll, pitch float64
	err         error
}

type rangeResult struct {
	cm  float64
	err error
}

type rangeChannel struct {
	src  RangeSource
	lim  Limits
	busy atomic.Bool
	last RangeSample
}

// Poller acquires one Frame per call. It is meant to be called from a
// single goroutine (the control loop); the busy flags exist because an
// abandoned hardware call outlives the poll that started it.
type Poller struct {
	cfg Config

	imu     OrientationSource
	imuBusy atomic.Bool
	imuLast OrientationSample

	rng [3]rangeChannel
}

func New(cfg Config, imu OrientationSource, front, back, bottom RangeSource) *Poller {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	if cfg.StalenessWindow <= 0 {
		cfg.StalenessWindow = defaultStalenessWindow
	}
	p := &Poller{cfg: cfg, imu: imu}
	p.rng[Front] = rangeChannel{src: front, lim: defaulted(cfg.Front)}
	p.rng[Back] = rangeChannel{src: back, lim: defaulted(cfg.Back)}
	p.rng[Bottom] = rangeChannel{src: bottom, lim: defaulted(cfg.Bottom)}
	return p
}

func defaulted(l Limits) Limits {
	if l.MinCm <= 0 {
		l.MinCm = defaultMinCm
	}
	if l.MaxCm <= 0 {
		l.MaxCm = defaultMaxCm
	}
	return l
}

// Acquire polls the IMU and the three rangefinders in a fixed order and
// returns the frame for this tick. Each channel is polled once; there are
// no retries within a frame.
func (p *Poller) Acquire() Frame {
	now := nowFn()
	var f Frame
	f.Orientation = p.pollOrientation(now)
	for i := range p.rng {
		f.Ranges[i] = p.pollRange(&p.rng[i], now)
	}
	return f
}

func (p *Poller) pollOrientation(now time.Time) OrientationSample {
	s := p.readOrientation(now)
	if s.Valid {
		p.imuLast = s
		return s
	}
	if p.imuLast.Valid && now.Sub(p.imuLast.At) <= p.cfg.StalenessWindow {
		return p.imuLast
	}
	return OrientationSample{At: now}
}

func (p *Poller) readOrientation(now time.Time) OrientationSample {
	if p.imu == nil || !p.imuBusy.CompareAndSwap(false, true) {
		return OrientationSample{At: now}
	}
	ch := make(chan orientResult, 1)
	go func() {
		defer p.imuBusy.Store(false)
		roll, pitch, err := p.imu.Orientation()
		ch <- orientResult{roll: roll, pitch: pitch, err: err}
	}()
	select {
	case res := <-ch:
		if res.err != nil {
			return OrientationSample{At: now}
		}
		return OrientationSample{RollDeg: res.roll, PitchDeg: res.pitch, At: now, Valid: true}
	case <-afterFn(p.cfg.PollTimeout):
		return OrientationSample{At: now}
	}
}

func (p *Poller) pollRange(c *rangeChannel, now time.Time) RangeSample {
	s := p.readRange(c, now)
	if s.Valid {
		c.last = s
		return s
	}
	if c.last.Valid && now.Sub(c.last.At) <= p.cfg.StalenessWindow {
		return c.last
	}
	return RangeSample{At: now}
}

func (p *Poller) readRange(c *rangeChannel, now time.Time) RangeSample {
	if c.src == nil || !c.busy.CompareAndSwap(false, true) {
		return RangeSample{At: now}
	}
	ch := make(chan rangeResult, 1)
	go func() {
		defer c.busy.Store(false)
		cm, err := c.src.DistanceCm()
		ch <- rangeResult{cm: cm, err: err}
	}()
	select {
	case res := <-ch:
		if res.err != nil {
			return RangeSample{At: now}
		}
		if res.cm < c.lim.MinCm || res.cm > c.lim.MaxCm {
			return RangeSample{At: now}
		}
		return RangeSample{DistanceCm: res.cm, At: now, Valid: true}
	case <-afterFn(p.cfg.PollTimeout):
		return RangeSample{At: now}
	}
}
