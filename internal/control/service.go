package control

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"auv-ng/internal/sense"
)

var (
	nowFn        = time.Now
	afterFn      = time.After
	newSessionID = uuid.NewString
)

// Acquirer produces one sensor frame per tick.
type Acquirer interface {
	Acquire() sense.Frame
}

// MotorSink is the actuation side of the loop. Apply and Stop are only ever
// called from the scheduler goroutine.
type MotorSink interface {
	Apply(cmd MotorCommand) error
	Stop() error
}

type Config struct {
	// TickPeriod is the loop cadence. A tick that takes longer than this
	// is recorded as an overrun and the next tick starts immediately.
	TickPeriod time.Duration

	// TiltLimitDeg raises a diagnostic event when roll or pitch exceeds it.
	TiltLimitDeg float64

	Avoid     AvoidConfig
	Stabilize StabilizeConfig
	Plan      PlanConfig
}

type OrientationStatus struct {
	RollDeg  float64 `json:"roll_deg"`
	PitchDeg float64 `json:"pitch_deg"`
	Valid    bool    `json:"valid"`
	AgeMs    int64   `json:"age_ms"`
}

type RangeStatus struct {
	DistanceCm float64 `json:"distance_cm"`
	Valid      bool    `json:"valid"`
	AgeMs      int64   `json:"age_ms"`
}

type Snapshot struct {
	Running        bool      `json:"running"`
	State          string    `json:"state"`
	SessionID      string    `json:"session_id,omitempty"`
	StartedUTC     time.Time `json:"started_utc,omitzero"`
	Ticks          uint64    `json:"ticks"`
	Overruns       uint64    `json:"overruns"`
	EmergencyStops uint64    `json:"emergency_stops"`

	Orientation OrientationStatus `json:"orientation"`
	Front       RangeStatus       `json:"front"`
	Back        RangeStatus       `json:"back"`
	Bottom      RangeStatus       `json:"bottom"`

	SurgePct         float64 `json:"surge_pct"`
	HeavePct         float64 `json:"heave_pct"`
	StabilizeApplied bool    `json:"stabilize_applied"`
	PlanPhase        string  `json:"plan_phase,omitempty"`

	StopReason string `json:"last_stop_reason,omitempty"`
	LastError  string `json:"last_error,omitempty"`
}

// Service is the control loop scheduler plus the external start/stop gate.
// One goroutine runs the loop; the gate methods are safe to call from any
// goroutine and share only the running flag with the loop.
type Service struct {
	cfg Config

	sensors Acquirer
	motors  MotorSink
	sinks   []EventSink

	running    atomic.Bool
	stopReason atomic.Value // string
	wake       chan struct{}

	mu   sync.RWMutex
	snap Snapshot

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

func New(cfg Config, sensors Acquirer, motors MotorSink, sinks ...EventSink) *Service {
	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = 100 * time.Millisecond
	}
	if cfg.TiltLimitDeg <= 0 {
		cfg.TiltLimitDeg = 15
	}
	if cfg.Avoid.CruisePct <= 0 {
		cfg.Avoid.CruisePct = 70
	}
	if cfg.Avoid.AvoidPct <= 0 {
		cfg.Avoid.AvoidPct = cfg.Avoid.CruisePct
	}
	if cfg.Avoid.AscendPct <= 0 {
		cfg.Avoid.AscendPct = 70
	}
	if cfg.Avoid.FrontStopCm <= 0 {
		cfg.Avoid.FrontStopCm = 30
	}
	if cfg.Avoid.FrontReleaseCm <= cfg.Avoid.FrontStopCm {
		cfg.Avoid.FrontReleaseCm = cfg.Avoid.FrontStopCm + 20
	}
	if cfg.Avoid.BackStopCm <= 0 {
		cfg.Avoid.BackStopCm = 30
	}
	if cfg.Avoid.BackReleaseCm <= cfg.Avoid.BackStopCm {
		cfg.Avoid.BackReleaseCm = cfg.Avoid.BackStopCm + 20
	}
	if cfg.Avoid.BottomMinClearanceCm <= 0 {
		cfg.Avoid.BottomMinClearanceCm = 10
	}
	if cfg.Avoid.BottomReleaseCm <= cfg.Avoid.BottomMinClearanceCm {
		cfg.Avoid.BottomReleaseCm = cfg.Avoid.BottomMinClearanceCm + 10
	}
	if cfg.Stabilize.GainPctPerDeg <= 0 {
		cfg.Stabilize.GainPctPerDeg = 2
	}
	if cfg.Stabilize.MaxBiasPct <= 0 {
		cfg.Stabilize.MaxBiasPct = 40
	}

	s := &Service{
		cfg:     cfg,
		sensors: sensors,
		motors:  motors,
		sinks:   sinks,
		wake:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
	s.stopReason.Store("")
	s.snap.State = Cruising.String()
	return s
}

func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("control: service is nil")
	}
	if s.sensors == nil || s.motors == nil {
		return fmt.Errorf("control: sensors and motors are required")
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()

	go func() {
		<-ctx.Done()
		s.Close()
	}()
	return nil
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

// StartDive flips the gate to RUNNING and nudges the scheduler. Idempotent:
// starting a running loop changes nothing. Reports whether this call
// performed the transition.
func (s *Service) StartDive() bool {
	if s == nil {
		return false
	}
	if !s.running.CompareAndSwap(false, true) {
		return false
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// StopDive clears the gate; the loop observes it at the next tick boundary
// and shuts the motors down. Idempotent.
func (s *Service) StopDive(reason string) bool {
	if s == nil {
		return false
	}
	if reason == "" {
		reason = "stop_requested"
	}
	s.stopReason.Store(reason)
	return s.running.CompareAndSwap(true, false)
}

// Running reports the gate flag without touching the loop.
func (s *Service) Running() bool { return s != nil && s.running.Load() }

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sn := s.snap
	sn.Running = s.running.Load()
	return sn
}

func (s *Service) setSnap(update func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	update(&s.snap)
}

func (s *Service) emit(ev Event) {
	for _, sink := range s.sinks {
		if sink != nil {
			sink.Record(ev)
		}
	}
}

func (s *Service) takeStopReason() string {
	if v, ok := s.stopReason.Swap("").(string); ok && v != "" {
		return v
	}
	return "stop_requested"
}

func (s *Service) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-s.wake:
		}
		if !s.running.Load() {
			continue
		}
		s.runSession(ctx)
	}
}

type sessionState struct {
	id      string
	started time.Time
	prev    NavState

	ticks, overruns, estops uint64
	tiltAlarm               bool
	reason                  string
}

func (s *Service) runSession(ctx context.Context) {
	sess := &sessionState{
		id:      newSessionID(),
		started: nowFn(),
		prev:    Cruising,
	}

	log.Printf("control: dive %s started", sess.id)
	s.setSnap(func(sn *Snapshot) {
		*sn = Snapshot{
			State:      Cruising.String(),
			SessionID:  sess.id,
			StartedUTC: sess.started.UTC(),
		}
	})
	s.emit(Event{SessionID: sess.id, At: sess.started, Kind: EventRunStarted})

	defer func() {
		if err := s.motors.Stop(); err != nil {
			log.Printf("control: stop motors: %v", err)
		}
		stopped := nowFn()
		if sess.reason == "" {
			sess.reason = s.takeStopReason()
		}
		s.setSnap(func(sn *Snapshot) {
			sn.StopReason = sess.reason
			sn.SurgePct, sn.HeavePct = 0, 0
		})
		s.emit(Event{
			SessionID: sess.id, At: stopped, Kind: EventRunStopped, Detail: sess.reason,
			Stats: &RunStats{
				StartedAt: sess.started, StoppedAt: stopped, Reason: sess.reason,
				Ticks: sess.ticks, Overruns: sess.overruns, EmergencyStops: sess.estops,
			},
		})
		log.Printf("control: dive %s stopped (%s): %d ticks, %d overruns, %d emergency stops",
			sess.id, sess.reason, sess.ticks, sess.overruns, sess.estops)
	}()

	for {
		tickStart := nowFn()

		select {
		case <-ctx.Done():
			sess.reason = "shutdown"
			s.running.Store(false)
			return
		case <-s.stopCh:
			sess.reason = "shutdown"
			s.running.Store(false)
			return
		default:
		}
		if !s.running.Load() {
			return
		}

		s.tick(sess, tickStart)

		if !s.running.Load() && sess.reason != "" {
			return
		}

		elapsed := nowFn().Sub(tickStart)
		if elapsed > s.cfg.TickPeriod {
			sess.overruns++
			s.emit(Event{
				SessionID: sess.id, At: nowFn(), Kind: EventOverrun,
				Detail: fmt.Sprintf("tick took %s (period %s)", elapsed, s.cfg.TickPeriod),
			})
			log.Printf("control: tick overrun: %s > %s", elapsed, s.cfg.TickPeriod)
			continue
		}
		select {
		case <-afterFn(s.cfg.TickPeriod - elapsed):
		case <-ctx.Done():
			sess.reason = "shutdown"
			s.running.Store(false)
			return
		case <-s.stopCh:
			sess.reason = "shutdown"
			s.running.Store(false)
			return
		}
	}
}

func (s *Service) tick(sess *sessionState, tickStart time.Time) {
	frame := s.sensors.Acquire()

	dec := Step(s.cfg.Avoid, sess.prev,
		frame.Range(sense.Front), frame.Range(sense.Back), frame.Range(sense.Bottom))

	planPhase := ""
	if s.cfg.Plan.Enable {
		base := s.cfg.Plan.Baseline(tickStart.Sub(sess.started), s.cfg.Avoid.CruisePct)
		planPhase = base.Phase
		if base.Done {
			s.running.Store(false)
			sess.reason = "plan_complete"
			return
		}
		if dec.State == Cruising {
			dec.SurgePct = base.SurgePct
			dec.HeavePct = base.HeavePct
			dec.HeaveForced = base.HeaveForced
		}
	}

	bias, applied := Stabilize(s.cfg.Stabilize, frame.Orientation)
	cmd := Blend(dec, bias)

	if dec.State != sess.prev {
		if dec.State == EmergencyStop {
			sess.estops++
		}
		s.emit(Event{
			SessionID: sess.id, At: tickStart, Kind: EventStateChange,
			Detail: fmt.Sprintf("%s -> %s", sess.prev, dec.State),
		})
		log.Printf("control: %s -> %s", sess.prev, dec.State)
	}
	sess.prev = dec.State

	tilted := frame.Orientation.Valid &&
		(math.Abs(frame.Orientation.PitchDeg) > s.cfg.TiltLimitDeg ||
			math.Abs(frame.Orientation.RollDeg) > s.cfg.TiltLimitDeg)
	if tilted && !sess.tiltAlarm {
		s.emit(Event{
			SessionID: sess.id, At: tickStart, Kind: EventTiltExceeded,
			Detail: fmt.Sprintf("roll=%.1f pitch=%.1f limit=%.0f",
				frame.Orientation.RollDeg, frame.Orientation.PitchDeg, s.cfg.TiltLimitDeg),
		})
	}
	sess.tiltAlarm = tilted

	sess.ticks++

	actErr := s.motors.Apply(cmd)
	if actErr != nil {
		log.Printf("control: actuation fault: %v", actErr)
		s.emit(Event{SessionID: sess.id, At: nowFn(), Kind: EventActuationFault, Detail: actErr.Error()})
		if err := s.motors.Stop(); err != nil {
			log.Printf("control: stop after fault: %v", err)
		}
		s.running.Store(false)
		sess.reason = "actuation_fault"
	}

	s.setSnap(func(sn *Snapshot) {
		sn.State = dec.State.String()
		sn.SessionID = sess.id
		sn.StartedUTC = sess.started.UTC()
		sn.Ticks = sess.ticks
		sn.Overruns = sess.overruns
		sn.EmergencyStops = sess.estops
		sn.Orientation = orientationStatus(frame.Orientation, tickStart)
		sn.Front = rangeStatus(frame.Range(sense.Front), tickStart)
		sn.Back = rangeStatus(frame.Range(sense.Back), tickStart)
		sn.Bottom = rangeStatus(frame.Range(sense.Bottom), tickStart)
		sn.SurgePct = cmd.SurgePct
		sn.HeavePct = cmd.HeavePct
		sn.StabilizeApplied = applied && !dec.HeaveForced
		sn.PlanPhase = planPhase
		if actErr != nil {
			sn.LastError = actErr.Error()
		} else {
			sn.LastError = ""
		}
	})
}

func orientationStatus(o sense.OrientationSample, now time.Time) OrientationStatus {
	st := OrientationStatus{RollDeg: o.RollDeg, PitchDeg: o.PitchDeg, Valid: o.Valid}
	if !o.At.IsZero() {
		st.AgeMs = now.Sub(o.At).Milliseconds()
	}
	return st
}

func rangeStatus(r sense.RangeSample, now time.Time) RangeStatus {
	st := RangeStatus{DistanceCm: r.DistanceCm, Valid: r.Valid}
	if !r.At.IsZero() {
		st.AgeMs = now.Sub(r.At).Milliseconds()
	}
	return st
}
