package main

import (
	"context"
	"fmt"
	"log"

	"auv-ng/internal/config"
	"auv-ng/internal/control"
	"auv-ng/internal/divelog"
	"auv-ng/internal/i2c"
	"auv-ng/internal/motors"
	"auv-ng/internal/sense"
	"auv-ng/internal/sensors/hcsr04"
	"auv-ng/internal/sensors/mpu6050"
	"auv-ng/internal/sim"
	"auv-ng/internal/telemetry"
)

// rangerHandle is what bring-up needs from an opened HC-SR04.
type rangerHandle interface {
	MeasureCm() (float64, error)
	Close() error
}

// Swappable for tests; the real ones need a Pi.
var (
	openI2C    = i2c.Open
	openIMU    = mpu6050.New
	openMotors = motors.Open

	openRanger = func(cfg hcsr04.Config) (rangerHandle, error) {
		r, err := hcsr04.Open(cfg)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
)

// runtime owns everything the daemon brings up. A bring-up failure of the
// rangers or motors leaves loop nil and degraded set; the web layer then
// refuses /start but keeps status and logs reachable.
type runtime struct {
	cfg config.Config

	loop     *control.Service
	actuator *motors.Actuator
	dives    *divelog.Store
	telem    *telemetry.Publisher
	plant    *sim.Plant

	degraded string
	closers  []func() error
}

func newRuntime(ctx context.Context, cfg config.Config) *runtime {
	rt := &runtime{cfg: cfg}

	imu, front, back, bottom, driver, err := rt.bringUp(cfg)
	if err != nil {
		rt.degraded = err.Error()
		rt.closeClosers()
		return rt
	}

	rt.actuator = motors.New(motors.Config{RampStepPct: cfg.Control.RampStepPct}, driver)

	poller := sense.New(sense.Config{
		PollTimeout:     cfg.Sensors.PollTimeout,
		StalenessWindow: cfg.Control.StalenessWindow,
		Front:           sense.Limits{MinCm: cfg.Sensors.Front.MinCm, MaxCm: cfg.Sensors.Front.MaxCm},
		Back:            sense.Limits{MinCm: cfg.Sensors.Back.MinCm, MaxCm: cfg.Sensors.Back.MaxCm},
		Bottom:          sense.Limits{MinCm: cfg.Sensors.Bottom.MinCm, MaxCm: cfg.Sensors.Bottom.MaxCm},
	}, imu, front, back, bottom)

	var sinks []control.EventSink
	if cfg.DiveLog.Enable {
		store, err := divelog.Open(cfg.DiveLog.Path)
		if err != nil {
			log.Printf("divelog init failed: %v", err)
		} else {
			rt.dives = store
			sinks = append(sinks, store)
		}
	}
	if cfg.Telemetry.Enable {
		if tr, err := openTelemetry(cfg.Telemetry); err != nil {
			log.Printf("telemetry init failed: %v", err)
		} else {
			pub := telemetry.New(tr, cfg.Telemetry.Interval, func() control.Snapshot {
				return rt.loop.Snapshot()
			})
			rt.telem = pub
			sinks = append(sinks, pub)
		}
	}

	rt.loop = control.New(control.Config{
		TickPeriod:   cfg.Control.TickPeriod,
		TiltLimitDeg: cfg.Control.TiltLimitDeg,
		Avoid: control.AvoidConfig{
			CruisePct:            cfg.Control.CruisePct,
			AvoidPct:             cfg.Control.AvoidPct,
			AscendPct:            cfg.Control.AscendPct,
			FrontStopCm:          cfg.Sensors.Front.StopCm,
			FrontReleaseCm:       cfg.Sensors.Front.ReleaseCm,
			BackStopCm:           cfg.Sensors.Back.StopCm,
			BackReleaseCm:        cfg.Sensors.Back.ReleaseCm,
			BottomMinClearanceCm: cfg.Sensors.Bottom.MinClearanceCm,
			BottomReleaseCm:      cfg.Sensors.Bottom.ReleaseCm,
		},
		Stabilize: control.StabilizeConfig{
			GainPctPerDeg: cfg.Control.TiltGainPctPerDeg,
			MaxBiasPct:    cfg.Control.MaxTiltBiasPct,
		},
		Plan: control.PlanConfig{
			Enable:           cfg.Control.Plan.Enable,
			SubmergeDuration: cfg.Control.Plan.Submerge.Duration,
			SubmergePct:      cfg.Control.Plan.Submerge.Pct,
			SurfaceDuration:  cfg.Control.Plan.Surface.Duration,
			SurfacePct:       cfg.Control.Plan.Surface.Pct,
			CruiseLaps:       cfg.Control.Plan.CruiseLaps,
			LapDuration:      cfg.Control.Plan.LapDuration,
			Repeat:           cfg.Control.Plan.Repeat,
		},
	}, poller, rt.actuator, sinks...)

	if err := rt.loop.Start(ctx); err != nil {
		rt.degraded = err.Error()
		rt.loop = nil
	}
	// The telemetry goroutine reads rt.loop through its snapshot closure,
	// so it must not start before the loop is assigned.
	if rt.telem != nil {
		rt.telem.Start(ctx)
	}
	return rt
}

// bringUp opens the sensor and motor hardware for the configured mode.
// Full sim replaces all of it with the plant; motor backend "sim" pairs
// real sensors with a virtual drivetrain for bench runs.
func (rt *runtime) bringUp(cfg config.Config) (imu sense.OrientationSource, front, back, bottom sense.RangeSource, driver motors.Driver, err error) {
	if cfg.Sim.Enable {
		rt.plant = sim.NewPlant(sim.Config{
			PoolLengthCm: cfg.Sim.PoolLengthCm,
			PoolDepthCm:  cfg.Sim.PoolDepthCm,
		})
		log.Printf("sim plant enabled pool=%gx%gcm", cfg.Sim.PoolLengthCm, cfg.Sim.PoolDepthCm)
		return rt.plant, rt.plant.FrontRange(), rt.plant.BackRange(), rt.plant.BottomRange(), rt.plant, nil
	}

	imu = rt.bringUpIMU(cfg)

	if front, err = rt.bringUpRanger(cfg, "front", cfg.Sensors.Front.TriggerPin, cfg.Sensors.Front.EchoPin); err != nil {
		return nil, nil, nil, nil, nil, err
	}
	if back, err = rt.bringUpRanger(cfg, "back", cfg.Sensors.Back.TriggerPin, cfg.Sensors.Back.EchoPin); err != nil {
		return nil, nil, nil, nil, nil, err
	}
	if bottom, err = rt.bringUpRanger(cfg, "bottom", cfg.Sensors.Bottom.TriggerPin, cfg.Sensors.Bottom.EchoPin); err != nil {
		return nil, nil, nil, nil, nil, err
	}

	if cfg.Motors.Backend == "sim" {
		rt.plant = sim.NewPlant(sim.Config{
			PoolLengthCm: cfg.Sim.PoolLengthCm,
			PoolDepthCm:  cfg.Sim.PoolDepthCm,
		})
		log.Printf("motors simulated (real sensors, virtual drivetrain)")
		return imu, front, back, bottom, rt.plant, nil
	}

	drv, err := openMotors(motors.OpenConfig{
		Backend:        cfg.Motors.Backend,
		Chip:           cfg.Sensors.GPIOChip,
		Surge:          motors.BankPins(cfg.Motors.Surge),
		Heave:          motors.BankPins(cfg.Motors.Heave),
		PWMFrequencyHz: cfg.Motors.PWMFrequencyHz,
	})
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	log.Printf("motors ready backend=%s", cfg.Motors.Backend)
	return imu, front, back, bottom, drv, nil
}

// bringUpIMU is best-effort: a vehicle without attitude still dives, it
// just loses stabilization and tilt alarms.
func (rt *runtime) bringUpIMU(cfg config.Config) sense.OrientationSource {
	bus, err := openI2C(cfg.Sensors.I2CBus)
	if err != nil {
		log.Printf("imu init failed: %v", err)
		return nil
	}
	dev, err := openIMU(bus.Dev(uint16(cfg.Sensors.IMUAddr)))
	if err != nil {
		log.Printf("imu init failed: %v", err)
		_ = bus.Close()
		return nil
	}
	rt.closers = append(rt.closers, bus.Close)
	log.Printf("imu ready bus=%d addr=%#04x", cfg.Sensors.I2CBus, cfg.Sensors.IMUAddr)
	return sense.IMUOrientation(dev)
}

func (rt *runtime) bringUpRanger(cfg config.Config, name string, trig, echo int) (sense.RangeSource, error) {
	r, err := openRanger(hcsr04.Config{
		Chip:       cfg.Sensors.GPIOChip,
		TriggerPin: trig,
		EchoPin:    echo,
		Consumer:   "auv-ng-" + name,
	})
	if err != nil {
		return nil, fmt.Errorf("%s ranger: %w", name, err)
	}
	rt.closers = append(rt.closers, r.Close)
	log.Printf("%s ranger ready trig=%d echo=%d", name, trig, echo)
	return sense.UltrasonicRange(r), nil
}

func openTelemetry(cfg config.TelemetryConfig) (telemetry.Transport, error) {
	switch cfg.Backend {
	case "mqtt":
		return telemetry.OpenMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.TopicPrefix)
	default:
		return telemetry.OpenUDP(cfg.UDP.Dest)
	}
}

func (rt *runtime) Close() {
	if rt == nil {
		return
	}
	if rt.loop != nil {
		rt.loop.StopDive("shutdown")
		rt.loop.Close()
	}
	if rt.telem != nil {
		if err := rt.telem.Close(); err != nil {
			log.Printf("telemetry close: %v", err)
		}
	}
	if rt.dives != nil {
		if err := rt.dives.Close(); err != nil {
			log.Printf("divelog close: %v", err)
		}
	}
	if rt.actuator != nil {
		if err := rt.actuator.Close(); err != nil {
			log.Printf("motors close: %v", err)
		}
	}
	rt.closeClosers()
}

func (rt *runtime) closeClosers() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			log.Printf("hardware close: %v", err)
		}
	}
	rt.closers = nil
}
