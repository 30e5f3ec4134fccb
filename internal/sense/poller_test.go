package sense

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeOrient struct {
	roll, pitch float64
	err         error
	calls       int
}

func (f *fakeOrient) Orientation() (float64, float64, error) {
	f.calls++
	return f.roll, f.pitch, f.err
}

type fakeRange struct {
	cm    float64
	err   error
	calls atomic.Int32
	block chan struct{}
}

func (f *fakeRange) DistanceCm() (float64, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	return f.cm, f.err
}

func fixedClock(t *testing.T, start time.Time) *time.Time {
	t.Helper()
	cur := start
	oldNow := nowFn
	nowFn = func() time.Time { return cur }
	t.Cleanup(func() { nowFn = oldNow })
	return &cur
}

func immediateAfter(t *testing.T) {
	t.Helper()
	oldAfter := afterFn
	afterFn = func(time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		ch <- time.Time{}
		return ch
	}
	t.Cleanup(func() { afterFn = oldAfter })
}

func TestAcquire_AllChannelsValid(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	fixedClock(t, now)

	imu := &fakeOrient{roll: 1.5, pitch: -3.0}
	fr := &fakeRange{cm: 120}
	bk := &fakeRange{cm: 200}
	bt := &fakeRange{cm: 80}

	p := New(Config{}, imu, fr, bk, bt)
	f := p.Acquire()

	if !f.Orientation.Valid || f.Orientation.PitchDeg != -3.0 || f.Orientation.RollDeg != 1.5 {
		t.Fatalf("orientation=%+v want valid 1.5/-3.0", f.Orientation)
	}
	if !f.Orientation.At.Equal(now) {
		t.Fatalf("orientation at=%v want %v", f.Orientation.At, now)
	}
	if s := f.Range(Front); !s.Valid || s.DistanceCm != 120 {
		t.Fatalf("front=%+v want valid 120", s)
	}
	if s := f.Range(Back); !s.Valid || s.DistanceCm != 200 {
		t.Fatalf("back=%+v want valid 200", s)
	}
	if s := f.Range(Bottom); !s.Valid || s.DistanceCm != 80 {
		t.Fatalf("bottom=%+v want valid 80", s)
	}
}

func TestAcquire_ImplausibleRangeIsInvalid(t *testing.T) {
	fixedClock(t, time.Now())

	tests := []struct {
		name string
		cm   float64
	}{
		{"below min", 1},
		{"above max", 450},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fr := &fakeRange{cm: tc.cm}
			p := New(Config{}, nil, fr, &fakeRange{cm: 100}, &fakeRange{cm: 100})
			f := p.Acquire()
			if f.Range(Front).Valid {
				t.Fatalf("front=%+v want invalid for %v cm", f.Range(Front), tc.cm)
			}
		})
	}
}

func TestAcquire_SourceErrorIsInvalid(t *testing.T) {
	fixedClock(t, time.Now())

	imu := &fakeOrient{err: errors.New("bus dead")}
	fr := &fakeRange{err: errors.New("no echo")}
	p := New(Config{}, imu, fr, &fakeRange{cm: 100}, &fakeRange{cm: 100})

	f := p.Acquire()
	if f.Orientation.Valid {
		t.Fatalf("orientation=%+v want invalid", f.Orientation)
	}
	if f.Range(Front).Valid {
		t.Fatalf("front=%+v want invalid", f.Range(Front))
	}
	if !f.Range(Back).Valid {
		t.Fatalf("back=%+v want valid", f.Range(Back))
	}
}

func TestAcquire_StalenessFallbackKeepsOriginalTimestamp(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	cur := fixedClock(t, t0)

	fr := &fakeRange{cm: 100}
	p := New(Config{StalenessWindow: 150 * time.Millisecond}, nil, fr, &fakeRange{cm: 100}, &fakeRange{cm: 100})

	f := p.Acquire()
	if !f.Range(Front).Valid {
		t.Fatalf("front=%+v want valid", f.Range(Front))
	}

	// Sensor dies; within the window the cached sample stands in.
	fr.err = errors.New("no echo")
	*cur = t0.Add(100 * time.Millisecond)
	f = p.Acquire()
	s := f.Range(Front)
	if !s.Valid || s.DistanceCm != 100 {
		t.Fatalf("front=%+v want cached valid 100", s)
	}
	if !s.At.Equal(t0) {
		t.Fatalf("front at=%v want original %v", s.At, t0)
	}

	// Beyond the window the channel goes invalid.
	*cur = t0.Add(250 * time.Millisecond)
	f = p.Acquire()
	if f.Range(Front).Valid {
		t.Fatalf("front=%+v want invalid past staleness window", f.Range(Front))
	}
}

func TestAcquire_TimeoutSkipsInFlightHardware(t *testing.T) {
	immediateAfter(t)

	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	fr := &fakeRange{cm: 100, block: block}
	bk := &fakeRange{cm: 100, block: block}
	bt := &fakeRange{cm: 100, block: block}
	p := New(Config{}, nil, fr, bk, bt)

	f := p.Acquire()
	for pos := Front; pos <= Bottom; pos++ {
		if f.Range(pos).Valid {
			t.Fatalf("%v=%+v want invalid on timeout", pos, f.Range(pos))
		}
	}

	// Wait for the abandoned calls to reach the hardware before checking
	// that the next frame does not start new ones.
	for _, r := range []*fakeRange{fr, bk, bt} {
		deadline := time.Now().Add(2 * time.Second)
		for r.calls.Load() == 0 {
			if time.Now().After(deadline) {
				t.Fatalf("hardware call never started")
			}
			time.Sleep(time.Millisecond)
		}
	}

	_ = p.Acquire()
	if n := fr.calls.Load(); n != 1 {
		t.Fatalf("front calls=%d want 1", n)
	}
	if n := bk.calls.Load(); n != 1 {
		t.Fatalf("back calls=%d want 1", n)
	}
	if n := bt.calls.Load(); n != 1 {
		t.Fatalf("bottom calls=%d want 1", n)
	}
}

func TestAcquire_NilSourcesAreInvalid(t *testing.T) {
	fixedClock(t, time.Now())

	p := New(Config{}, nil, nil, nil, nil)
	f := p.Acquire()
	if f.Orientation.Valid {
		t.Fatalf("orientation=%+v want invalid", f.Orientation)
	}
	for pos := Front; pos <= Bottom; pos++ {
		if f.Range(pos).Valid {
			t.Fatalf("%v=%+v want invalid", pos, f.Range(pos))
		}
	}
}
