package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Web       WebConfig       `yaml:"web"`
	Control   ControlConfig   `yaml:"control"`
	Sensors   SensorsConfig   `yaml:"sensors"`
	Motors    MotorsConfig    `yaml:"motors"`
	Sim       SimConfig       `yaml:"sim"`
	DiveLog   DiveLogConfig   `yaml:"divelog"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type WebConfig struct {
	Listen string `yaml:"listen"`
}

type ControlConfig struct {
	TickPeriod        time.Duration `yaml:"tick_period"`
	CruisePct         float64       `yaml:"cruise_pct"`
	AvoidPct          float64       `yaml:"avoid_pct"`
	AscendPct         float64       `yaml:"ascend_pct"`
	TiltGainPctPerDeg float64       `yaml:"tilt_gain_pct_per_deg"`
	MaxTiltBiasPct    float64       `yaml:"max_tilt_bias_pct"`
	TiltLimitDeg      float64       `yaml:"tilt_limit_deg"`
	StalenessWindow   time.Duration `yaml:"staleness_window"`
	RampStepPct       float64       `yaml:"ramp_step_pct"`
	Plan              PlanConfig    `yaml:"plan"`
}

type PlanConfig struct {
	Enable      bool          `yaml:"enable"`
	Submerge    PhaseConfig   `yaml:"submerge"`
	CruiseLaps  int           `yaml:"cruise_laps"`
	LapDuration time.Duration `yaml:"lap_duration"`
	Surface     PhaseConfig   `yaml:"surface"`
	Repeat      bool          `yaml:"repeat"`
}

type PhaseConfig struct {
	Duration time.Duration `yaml:"duration"`
	Pct      float64       `yaml:"pct"`
}

type SensorsConfig struct {
	I2CBus      int                `yaml:"i2c_bus"`
	IMUAddr     int                `yaml:"imu_addr"`
	PollTimeout time.Duration      `yaml:"poll_timeout"`
	GPIOChip    string             `yaml:"gpio_chip"`
	Front       RangeSensorConfig  `yaml:"front"`
	Back        RangeSensorConfig  `yaml:"back"`
	Bottom      BottomSensorConfig `yaml:"bottom"`
}

type RangeSensorConfig struct {
	TriggerPin int     `yaml:"trigger_pin"`
	EchoPin    int     `yaml:"echo_pin"`
	MinCm      float64 `yaml:"min_cm"`
	MaxCm      float64 `yaml:"max_cm"`
	StopCm     float64 `yaml:"stop_cm"`
	ReleaseCm  float64 `yaml:"release_cm"`
}

type BottomSensorConfig struct {
	TriggerPin     int     `yaml:"trigger_pin"`
	EchoPin        int     `yaml:"echo_pin"`
	MinCm          float64 `yaml:"min_cm"`
	MaxCm          float64 `yaml:"max_cm"`
	MinClearanceCm float64 `yaml:"min_clearance_cm"`
	ReleaseCm      float64 `yaml:"release_cm"`
}

type MotorsConfig struct {
	Backend        string     `yaml:"backend"`
	Surge          BankConfig `yaml:"surge"`
	Heave          BankConfig `yaml:"heave"`
	PWMFrequencyHz int        `yaml:"pwm_frequency_hz"`
}

type BankConfig struct {
	In1Pin     int `yaml:"in1_pin"`
	In2Pin     int `yaml:"in2_pin"`
	EnablePin  int `yaml:"enable_pin"`
	PWMChannel int `yaml:"pwm_channel"`
}

type SimConfig struct {
	Enable       bool    `yaml:"enable"`
	PoolLengthCm float64 `yaml:"pool_length_cm"`
	PoolDepthCm  float64 `yaml:"pool_depth_cm"`
}

type DiveLogConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

type TelemetryConfig struct {
	Enable   bool          `yaml:"enable"`
	Backend  string        `yaml:"backend"`
	UDP      UDPConfig     `yaml:"udp"`
	MQTT     MQTTConfig    `yaml:"mqtt"`
	Interval time.Duration `yaml:"interval"`
}

type UDPConfig struct {
	Dest string `yaml:"dest"`
}

type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := normalize(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration the daemon runs with when no file is
// given: simulator off, all thresholds at their built-in values.
func Default() Config {
	var cfg Config
	// A zero config cannot fail validation.
	_ = normalize(&cfg)
	return cfg
}

func normalize(cfg *Config) error {
	if cfg.Web.Listen == "" {
		cfg.Web.Listen = ":5000"
	}

	c := &cfg.Control
	if c.TickPeriod <= 0 {
		c.TickPeriod = 100 * time.Millisecond
	}
	for _, f := range []struct {
		name string
		v    *float64
		def  float64
	}{
		{"control.cruise_pct", &c.CruisePct, 70},
		{"control.avoid_pct", &c.AvoidPct, 70},
		{"control.ascend_pct", &c.AscendPct, 70},
		{"control.max_tilt_bias_pct", &c.MaxTiltBiasPct, 40},
		{"control.ramp_step_pct", &c.RampStepPct, 20},
	} {
		if *f.v == 0 {
			*f.v = f.def
		}
		if *f.v <= 0 || *f.v > 100 {
			return fmt.Errorf("%s must be in (0, 100]", f.name)
		}
	}
	if c.TiltGainPctPerDeg == 0 {
		c.TiltGainPctPerDeg = 2.0
	}
	if c.TiltGainPctPerDeg < 0 {
		return fmt.Errorf("control.tilt_gain_pct_per_deg must be >= 0")
	}
	if c.TiltLimitDeg == 0 {
		c.TiltLimitDeg = 15
	}
	if c.TiltLimitDeg < 0 {
		return fmt.Errorf("control.tilt_limit_deg must be >= 0")
	}
	if c.StalenessWindow <= 0 {
		c.StalenessWindow = 200 * time.Millisecond
	}
	if err := normalizePlan(&c.Plan); err != nil {
		return err
	}

	if err := normalizeSensors(&cfg.Sensors); err != nil {
		return err
	}
	if err := normalizeMotors(&cfg.Motors); err != nil {
		return err
	}
	if err := checkPins(cfg); err != nil {
		return err
	}

	if cfg.Sim.PoolLengthCm <= 0 {
		cfg.Sim.PoolLengthCm = 400
	}
	if cfg.Sim.PoolDepthCm <= 0 {
		cfg.Sim.PoolDepthCm = 200
	}

	if cfg.DiveLog.Path == "" {
		cfg.DiveLog.Path = "./auv-divelog.sqlite"
	}

	return normalizeTelemetry(&cfg.Telemetry)
}

func normalizePlan(p *PlanConfig) error {
	if p.Submerge.Duration <= 0 {
		p.Submerge.Duration = 5 * time.Second
	}
	if p.Submerge.Pct == 0 {
		p.Submerge.Pct = 70
	}
	if p.Surface.Duration <= 0 {
		p.Surface.Duration = 5 * time.Second
	}
	if p.Surface.Pct == 0 {
		p.Surface.Pct = 70
	}
	if p.CruiseLaps == 0 {
		p.CruiseLaps = 2
	}
	if p.LapDuration <= 0 {
		p.LapDuration = 30 * time.Second
	}
	if p.Submerge.Pct <= 0 || p.Submerge.Pct > 100 {
		return fmt.Errorf("control.plan.submerge.pct must be in (0, 100]")
	}
	if p.Surface.Pct <= 0 || p.Surface.Pct > 100 {
		return fmt.Errorf("control.plan.surface.pct must be in (0, 100]")
	}
	if p.CruiseLaps < 0 {
		return fmt.Errorf("control.plan.cruise_laps must be >= 0")
	}
	return nil
}

func normalizeSensors(s *SensorsConfig) error {
	if s.I2CBus == 0 {
		s.I2CBus = 1
	}
	if s.I2CBus < 0 {
		return fmt.Errorf("sensors.i2c_bus must be >= 0")
	}
	if s.IMUAddr == 0 {
		s.IMUAddr = 0x68
	}
	if s.IMUAddr < 0x08 || s.IMUAddr > 0x77 {
		return fmt.Errorf("sensors.imu_addr must be a 7-bit i2c address")
	}
	if s.PollTimeout <= 0 {
		s.PollTimeout = 50 * time.Millisecond
	}
	if s.GPIOChip == "" {
		s.GPIOChip = "gpiochip0"
	}

	if s.Front.TriggerPin == 0 && s.Front.EchoPin == 0 {
		s.Front.TriggerPin, s.Front.EchoPin = 5, 25
	}
	if s.Back.TriggerPin == 0 && s.Back.EchoPin == 0 {
		s.Back.TriggerPin, s.Back.EchoPin = 7, 8
	}
	if s.Bottom.TriggerPin == 0 && s.Bottom.EchoPin == 0 {
		s.Bottom.TriggerPin, s.Bottom.EchoPin = 20, 21
	}

	for _, ch := range []struct {
		name string
		c    *RangeSensorConfig
	}{
		{"sensors.front", &s.Front},
		{"sensors.back", &s.Back},
	} {
		if err := normalizeLimits(ch.name, &ch.c.MinCm, &ch.c.MaxCm); err != nil {
			return err
		}
		if ch.c.StopCm == 0 {
			ch.c.StopCm = 30
		}
		if ch.c.ReleaseCm == 0 {
			ch.c.ReleaseCm = 50
		}
		if ch.c.StopCm <= 0 {
			return fmt.Errorf("%s.stop_cm must be > 0", ch.name)
		}
		if ch.c.ReleaseCm <= ch.c.StopCm {
			return fmt.Errorf("%s.release_cm must be greater than %s.stop_cm", ch.name, ch.name)
		}
	}

	if err := normalizeLimits("sensors.bottom", &s.Bottom.MinCm, &s.Bottom.MaxCm); err != nil {
		return err
	}
	if s.Bottom.MinClearanceCm == 0 {
		s.Bottom.MinClearanceCm = 10
	}
	if s.Bottom.ReleaseCm == 0 {
		s.Bottom.ReleaseCm = 20
	}
	if s.Bottom.MinClearanceCm <= 0 {
		return fmt.Errorf("sensors.bottom.min_clearance_cm must be > 0")
	}
	if s.Bottom.ReleaseCm <= s.Bottom.MinClearanceCm {
		return fmt.Errorf("sensors.bottom.release_cm must be greater than sensors.bottom.min_clearance_cm")
	}
	return nil
}

func normalizeLimits(name string, minCm, maxCm *float64) error {
	if *minCm == 0 {
		*minCm = 2
	}
	if *maxCm == 0 {
		*maxCm = 400
	}
	if *minCm <= 0 || *maxCm <= *minCm {
		return fmt.Errorf("%s: min_cm must be > 0 and max_cm greater than min_cm", name)
	}
	return nil
}

func normalizeMotors(m *MotorsConfig) error {
	if m.Backend == "" {
		m.Backend = "gpio"
	}
	switch m.Backend {
	case "gpio", "pwm", "sim":
	default:
		return fmt.Errorf("motors.backend must be one of gpio, pwm, sim")
	}
	if m.Surge == (BankConfig{}) {
		m.Surge = BankConfig{In1Pin: 17, In2Pin: 18, EnablePin: 27, PWMChannel: 0}
	}
	if m.Heave == (BankConfig{}) {
		m.Heave = BankConfig{In1Pin: 22, In2Pin: 23, EnablePin: 24, PWMChannel: 1}
	}
	if m.PWMFrequencyHz == 0 {
		m.PWMFrequencyHz = 1000
	}
	if m.PWMFrequencyHz < 0 {
		return fmt.Errorf("motors.pwm_frequency_hz must be > 0")
	}
	if m.Backend == "pwm" {
		if m.Surge.PWMChannel < 0 || m.Heave.PWMChannel < 0 {
			return fmt.Errorf("motors pwm_channel must be >= 0")
		}
		if m.Surge.PWMChannel == m.Heave.PWMChannel {
			return fmt.Errorf("motors.surge.pwm_channel and motors.heave.pwm_channel must differ")
		}
	}
	return nil
}

type pinRef struct {
	name string
	pin  int
}

// checkPins rejects configurations where two functions share a GPIO line.
func checkPins(cfg *Config) error {
	refs := []pinRef{
		{"sensors.front.trigger_pin", cfg.Sensors.Front.TriggerPin},
		{"sensors.front.echo_pin", cfg.Sensors.Front.EchoPin},
		{"sensors.back.trigger_pin", cfg.Sensors.Back.TriggerPin},
		{"sensors.back.echo_pin", cfg.Sensors.Back.EchoPin},
		{"sensors.bottom.trigger_pin", cfg.Sensors.Bottom.TriggerPin},
		{"sensors.bottom.echo_pin", cfg.Sensors.Bottom.EchoPin},
	}
	if cfg.Motors.Backend != "sim" {
		banks := []struct {
			name string
			bank BankConfig
		}{
			{"motors.surge", cfg.Motors.Surge},
			{"motors.heave", cfg.Motors.Heave},
		}
		for _, b := range banks {
			refs = append(refs,
				pinRef{b.name + ".in1_pin", b.bank.In1Pin},
				pinRef{b.name + ".in2_pin", b.bank.In2Pin},
			)
			if cfg.Motors.Backend == "gpio" {
				refs = append(refs, pinRef{b.name + ".enable_pin", b.bank.EnablePin})
			}
		}
	}

	seen := make(map[int]string, len(refs))
	for _, r := range refs {
		if r.pin <= 0 {
			return fmt.Errorf("%s must be > 0", r.name)
		}
		if prev, ok := seen[r.pin]; ok {
			return fmt.Errorf("%s and %s both use GPIO%d", prev, r.name, r.pin)
		}
		seen[r.pin] = r.name
	}
	return nil
}

func normalizeTelemetry(t *TelemetryConfig) error {
	if t.Backend == "" {
		t.Backend = "udp"
	}
	switch t.Backend {
	case "udp", "mqtt":
	default:
		return fmt.Errorf("telemetry.backend must be one of udp, mqtt")
	}
	if t.UDP.Dest == "" {
		t.UDP.Dest = "255.255.255.255:4050"
	}
	if t.MQTT.Broker == "" {
		t.MQTT.Broker = "tcp://127.0.0.1:1883"
	}
	if t.MQTT.ClientID == "" {
		t.MQTT.ClientID = "auv-ng"
	}
	if t.MQTT.TopicPrefix == "" {
		t.MQTT.TopicPrefix = "auv"
	}
	if t.Interval <= 0 {
		t.Interval = 1 * time.Second
	}
	return nil
}
