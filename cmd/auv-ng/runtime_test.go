package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"auv-ng/internal/config"
	"auv-ng/internal/control"
	"auv-ng/internal/i2c"
	"auv-ng/internal/motors"
	"auv-ng/internal/sensors/hcsr04"
	"auv-ng/internal/sensors/mpu6050"
)

func noHardware(t *testing.T) {
	t.Helper()
	oldI2C, oldIMU, oldRanger, oldMotors := openI2C, openIMU, openRanger, openMotors
	t.Cleanup(func() {
		openI2C, openIMU, openRanger, openMotors = oldI2C, oldIMU, oldRanger, oldMotors
	})
	openI2C = func(int) (*i2c.Bus, error) { return nil, fmt.Errorf("no i2c on test host") }
	openIMU = func(*i2c.Dev) (*mpu6050.Device, error) { return nil, fmt.Errorf("no imu on test host") }
	openRanger = func(hcsr04.Config) (rangerHandle, error) { return nil, fmt.Errorf("no gpio on test host") }
	openMotors = func(motors.OpenConfig) (motors.Driver, error) { return nil, fmt.Errorf("no motors on test host") }
}

func waitSnapshot(t *testing.T, rt *runtime, what string, cond func(control.Snapshot) bool) control.Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := rt.loop.Snapshot()
		if cond(snap) {
			return snap
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; last snapshot %+v", what, rt.loop.Snapshot())
	return control.Snapshot{}
}

func TestRuntime_SimDiveLifecycle(t *testing.T) {
	cfg := config.Default()
	cfg.Sim.Enable = true
	cfg.Control.TickPeriod = 2 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt := newRuntime(ctx, cfg)
	defer rt.Close()

	if rt.degraded != "" {
		t.Fatalf("degraded=%q", rt.degraded)
	}
	if rt.loop == nil || rt.plant == nil || rt.actuator == nil {
		t.Fatalf("sim runtime incomplete: loop=%v plant=%v actuator=%v", rt.loop, rt.plant, rt.actuator)
	}

	if !rt.loop.StartDive() {
		t.Fatalf("StartDive returned false")
	}
	snap := waitSnapshot(t, rt, "ticks", func(s control.Snapshot) bool { return s.Ticks >= 5 })
	if snap.State != "cruising" {
		t.Fatalf("state=%q", snap.State)
	}
	if !snap.Front.Valid || !snap.Back.Valid || !snap.Bottom.Valid {
		t.Fatalf("sim ranges invalid: %+v", snap)
	}

	if !rt.loop.StopDive("bench_done") {
		t.Fatalf("StopDive returned false")
	}
	snap = waitSnapshot(t, rt, "stop", func(s control.Snapshot) bool {
		return !s.Running && s.StopReason == "bench_done"
	})
	if snap.SurgePct != 0 || snap.HeavePct != 0 {
		t.Fatalf("motors not zeroed: %+v", snap)
	}
}

func TestRuntime_SurgeRampsToCruise(t *testing.T) {
	cfg := config.Default()
	cfg.Sim.Enable = true
	cfg.Control.TickPeriod = 2 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt := newRuntime(ctx, cfg)
	defer rt.Close()

	rt.loop.StartDive()
	waitSnapshot(t, rt, "cruise demand", func(s control.Snapshot) bool {
		return s.SurgePct == cfg.Control.CruisePct
	})

	// The demand hits cruise on the first tick; the actuator ramps there
	// over several more.
	deadline := time.Now().Add(2 * time.Second)
	for rt.actuator.Current().SurgePct != cfg.Control.CruisePct {
		if time.Now().After(deadline) {
			t.Fatalf("actuator surge=%v never reached %v",
				rt.actuator.Current().SurgePct, cfg.Control.CruisePct)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestRuntime_DegradedWhenRangerFails(t *testing.T) {
	noHardware(t)

	cfg := config.Default()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt := newRuntime(ctx, cfg)
	defer rt.Close()

	if rt.degraded == "" {
		t.Fatalf("expected degraded runtime")
	}
	if rt.loop != nil {
		t.Fatalf("loop should be nil when degraded")
	}
	// The nil service still answers gate calls so the web layer can serve
	// status while degraded.
	if rt.loop.StartDive() {
		t.Fatalf("StartDive must fail on a degraded runtime")
	}
	if rt.loop.Snapshot().Running {
		t.Fatalf("degraded snapshot reports running")
	}
}

func TestRuntime_SimMotorBackendKeepsRealSensors(t *testing.T) {
	noHardware(t)
	openRanger = func(cfg hcsr04.Config) (rangerHandle, error) {
		return fakeRanger{cm: 150}, nil
	}

	cfg := config.Default()
	cfg.Motors.Backend = "sim"
	cfg.Control.TickPeriod = 2 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt := newRuntime(ctx, cfg)
	defer rt.Close()

	if rt.degraded != "" {
		t.Fatalf("degraded=%q", rt.degraded)
	}
	if rt.plant == nil {
		t.Fatalf("virtual drivetrain missing")
	}

	rt.loop.StartDive()
	snap := waitSnapshot(t, rt, "valid ranges", func(s control.Snapshot) bool {
		return s.Front.Valid && s.Back.Valid && s.Bottom.Valid && s.Ticks > 0
	})
	if snap.Front.DistanceCm != 150 {
		t.Fatalf("front=%v want 150", snap.Front.DistanceCm)
	}
	// No IMU on the bench: orientation is invalid and stabilization is off.
	if snap.Orientation.Valid || snap.StabilizeApplied {
		t.Fatalf("orientation=%+v stabilize=%v", snap.Orientation, snap.StabilizeApplied)
	}
	if snap.State != "cruising" {
		t.Fatalf("state=%q", snap.State)
	}
}

type fakeRanger struct{ cm float64 }

func (f fakeRanger) MeasureCm() (float64, error) { return f.cm, nil }
func (f fakeRanger) Close() error                { return nil }
