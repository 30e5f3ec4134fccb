package hcsr04

import (
	"errors"
	"testing"
	"time"
)

type fakeTrig struct {
	pulses  int
	pulseFn func()
	err     error
	closed  bool
}

func (f *fakeTrig) Pulse() error {
	f.pulses++
	if f.err != nil {
		return f.err
	}
	if f.pulseFn != nil {
		f.pulseFn()
	}
	return nil
}

func (f *fakeTrig) Close() error {
	f.closed = true
	return nil
}

func immediateDeadline(t *testing.T) {
	t.Helper()
	oldAfter := afterFn
	afterFn = func(time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		ch <- time.Time{}
		return ch
	}
	t.Cleanup(func() { afterFn = oldAfter })
}

func TestMeasureCm_ComputesDistanceFromEchoWidth(t *testing.T) {
	events := make(chan edge, 4)
	ft := &fakeTrig{pulseFn: func() {
		// 5.831ms round trip ~= 100 cm.
		events <- edge{rising: true, at: 10 * time.Millisecond}
		events <- edge{rising: false, at: 10*time.Millisecond + 5831*time.Microsecond}
	}}
	r := newRanger(ft, events, 0)

	cm, err := r.MeasureCm()
	if err != nil {
		t.Fatalf("MeasureCm: %v", err)
	}
	if cm < 99.5 || cm > 100.5 {
		t.Fatalf("cm=%v want ~100", cm)
	}
	if ft.pulses != 1 {
		t.Fatalf("pulses=%d want 1", ft.pulses)
	}
}

func TestMeasureCm_NoEchoTimesOut(t *testing.T) {
	immediateDeadline(t)

	events := make(chan edge, 4)
	r := newRanger(&fakeTrig{}, events, 0)

	_, err := r.MeasureCm()
	if !errors.Is(err, ErrNoEcho) {
		t.Fatalf("err=%v want ErrNoEcho", err)
	}
}

func TestMeasureCm_DrainsStaleEvents(t *testing.T) {
	events := make(chan edge, 4)
	// Leftovers from a ping that timed out earlier.
	events <- edge{rising: true, at: 1 * time.Millisecond}
	events <- edge{rising: false, at: 2 * time.Millisecond}

	ft := &fakeTrig{pulseFn: func() {
		events <- edge{rising: true, at: 20 * time.Millisecond}
		events <- edge{rising: false, at: 20*time.Millisecond + 1166*time.Microsecond} // ~20 cm
	}}
	r := newRanger(ft, events, 0)

	cm, err := r.MeasureCm()
	if err != nil {
		t.Fatalf("MeasureCm: %v", err)
	}
	if cm < 19.5 || cm > 20.5 {
		t.Fatalf("cm=%v want ~20 (stale pair not drained?)", cm)
	}
}

func TestMeasureCm_SkipsStrayFallingEdge(t *testing.T) {
	events := make(chan edge, 4)
	ft := &fakeTrig{pulseFn: func() {
		// Joined mid-pulse: a falling edge arrives before the real pair.
		events <- edge{rising: false, at: 5 * time.Millisecond}
		events <- edge{rising: true, at: 10 * time.Millisecond}
		events <- edge{rising: false, at: 10*time.Millisecond + 583*time.Microsecond} // ~10 cm
	}}
	r := newRanger(ft, events, 0)

	cm, err := r.MeasureCm()
	if err != nil {
		t.Fatalf("MeasureCm: %v", err)
	}
	if cm < 9.5 || cm > 10.5 {
		t.Fatalf("cm=%v want ~10", cm)
	}
}

func TestMeasureCm_NonPositiveWidth(t *testing.T) {
	events := make(chan edge, 4)
	ft := &fakeTrig{pulseFn: func() {
		events <- edge{rising: true, at: 10 * time.Millisecond}
		events <- edge{rising: false, at: 5 * time.Millisecond}
	}}
	r := newRanger(ft, events, 0)

	_, err := r.MeasureCm()
	if !errors.Is(err, ErrNoEcho) {
		t.Fatalf("err=%v want ErrNoEcho", err)
	}
}

func TestMeasureCm_TriggerError(t *testing.T) {
	events := make(chan edge, 4)
	ft := &fakeTrig{err: errors.New("line busy")}
	r := newRanger(ft, events, 0)

	if _, err := r.MeasureCm(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestClose_ReleasesHardware(t *testing.T) {
	ft := &fakeTrig{}
	r := newRanger(ft, make(chan edge, 4), 0)
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !ft.closed {
		t.Fatalf("hardware not closed")
	}
}
