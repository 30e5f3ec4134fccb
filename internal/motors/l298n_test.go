package motors

import (
	"errors"
	"testing"
)

// fakePin watches its partner so a test fails the moment both direction
// inputs of a bank are high at the same time.
type fakePin struct {
	t       *testing.T
	name    string
	cur     int
	log     []int
	partner *fakePin
	failSet error
	closed  bool
}

func (p *fakePin) Set(v int) error {
	if p.failSet != nil {
		return p.failSet
	}
	p.cur = v
	p.log = append(p.log, v)
	if p.partner != nil && p.cur == 1 && p.partner.cur == 1 {
		p.t.Errorf("%s and %s high simultaneously", p.name, p.partner.name)
	}
	return nil
}

func (p *fakePin) Close() error {
	p.closed = true
	return nil
}

type fakeSpeed struct {
	duties []float64
	closed bool
}

func (s *fakeSpeed) SetDutyPercent(p float64) error {
	s.duties = append(s.duties, p)
	return nil
}

func (s *fakeSpeed) Close() error {
	s.closed = true
	return nil
}

func newTestBank(t *testing.T) (*bank, *fakePin, *fakePin, *fakeSpeed) {
	in1 := &fakePin{t: t, name: "in1"}
	in2 := &fakePin{t: t, name: "in2"}
	in1.partner, in2.partner = in2, in1
	speed := &fakeSpeed{}
	return &bank{in1: in1, in2: in2, speed: speed}, in1, in2, speed
}

func TestBankSet_Forward(t *testing.T) {
	b, in1, in2, speed := newTestBank(t)

	if err := b.set(70); err != nil {
		t.Fatalf("set: %v", err)
	}
	if in1.cur != 1 || in2.cur != 0 {
		t.Errorf("direction pins = %d/%d, want 1/0", in1.cur, in2.cur)
	}
	if len(speed.duties) != 1 || speed.duties[0] != 70 {
		t.Errorf("duties = %v, want [70]", speed.duties)
	}
}

func TestBankSet_Reverse(t *testing.T) {
	b, in1, in2, speed := newTestBank(t)

	if err := b.set(-45); err != nil {
		t.Fatalf("set: %v", err)
	}
	if in1.cur != 0 || in2.cur != 1 {
		t.Errorf("direction pins = %d/%d, want 0/1", in1.cur, in2.cur)
	}
	if len(speed.duties) != 1 || speed.duties[0] != 45 {
		t.Errorf("duties = %v, want [45]", speed.duties)
	}
}

func TestBankSet_ZeroIdles(t *testing.T) {
	b, in1, in2, speed := newTestBank(t)

	if err := b.set(60); err != nil {
		t.Fatalf("set forward: %v", err)
	}
	if err := b.set(0); err != nil {
		t.Fatalf("set zero: %v", err)
	}
	if in1.cur != 0 || in2.cur != 0 {
		t.Errorf("direction pins = %d/%d, want 0/0", in1.cur, in2.cur)
	}
	if last := speed.duties[len(speed.duties)-1]; last != 0 {
		t.Errorf("last duty = %g, want 0", last)
	}
}

func TestBankSet_DirectionFlipPassesThroughZeroDuty(t *testing.T) {
	b, _, _, speed := newTestBank(t)

	if err := b.set(60); err != nil {
		t.Fatalf("set forward: %v", err)
	}
	if err := b.set(-60); err != nil {
		t.Fatalf("set reverse: %v", err)
	}
	if err := b.set(60); err != nil {
		t.Fatalf("set forward again: %v", err)
	}
	want := []float64{60, 0, 60, 0, 60}
	if len(speed.duties) != len(want) {
		t.Fatalf("duties = %v, want %v", speed.duties, want)
	}
	for i, w := range want {
		if speed.duties[i] != w {
			t.Fatalf("duties = %v, want %v", speed.duties, want)
		}
	}
}

func TestBankSet_SameDirectionSkipsZeroDuty(t *testing.T) {
	b, _, _, speed := newTestBank(t)

	if err := b.set(60); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := b.set(80); err != nil {
		t.Fatalf("set: %v", err)
	}
	want := []float64{60, 80}
	if len(speed.duties) != len(want) || speed.duties[0] != 60 || speed.duties[1] != 80 {
		t.Fatalf("duties = %v, want %v", speed.duties, want)
	}
}

func TestBankSet_PinErrorPropagates(t *testing.T) {
	b, in1, _, _ := newTestBank(t)
	boom := errors.New("line gone")
	in1.failSet = boom

	if err := b.set(50); !errors.Is(err, boom) {
		t.Fatalf("set error = %v, want %v", err, boom)
	}
}

func TestL298N_CloseIdlesBothBanks(t *testing.T) {
	sb, sin1, sin2, sspeed := newTestBank(t)
	hb, hin1, hin2, hspeed := newTestBank(t)
	drv := &l298n{surge: *sb, heave: *hb}

	if err := drv.SetSurge(70); err != nil {
		t.Fatalf("set surge: %v", err)
	}
	if err := drv.SetHeave(-40); err != nil {
		t.Fatalf("set heave: %v", err)
	}
	if err := drv.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	for _, s := range []*fakeSpeed{sspeed, hspeed} {
		if last := s.duties[len(s.duties)-1]; last != 0 {
			t.Errorf("last duty = %g, want 0", last)
		}
		if !s.closed {
			t.Error("speed output not closed")
		}
	}
	for _, p := range []*fakePin{sin1, sin2, hin1, hin2} {
		if p.cur != 0 {
			t.Errorf("%s left at %d, want 0", p.name, p.cur)
		}
		if !p.closed {
			t.Errorf("%s not closed", p.name)
		}
	}
}
