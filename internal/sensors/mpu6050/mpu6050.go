// Package mpu6050 drives the InvenSense MPU-6050 six-axis IMU over I2C.
//
// The part powers up asleep, so bring-up is probe, reset, wake on the
// gyro PLL, then fixed full-scale selection. Attitude here only feeds
// tilt estimation, so the driver pins the gentlest ranges (2 g, 250
// deg/s) and a 44 Hz low-pass instead of exposing configuration.
package mpu6050

import (
	"fmt"
	"time"

	"auv-ng/internal/i2c"
)

var sleep = time.Sleep

// Bus addresses, selected by the AD0 pin.
const (
	DefaultAddr = 0x68 // AD0 low
	AltAddr     = 0x69 // AD0 high
)

// Register map per RM-MPU-6000A-00.
const (
	regSmplrtDiv  = 0x19
	regConfig     = 0x1A
	regGyroCfg    = 0x1B
	regAccelCfg   = 0x1C
	regAccelXoutH = 0x3B // accel, temp, gyro: one 14-byte big-endian block
	regPwrMgmt1   = 0x6B
	regWhoAmI     = 0x75

	whoAmIVal   = 0x68
	bitDevReset = 0x80
	clkPLLGyroX = 0x01

	fsSelGyro250 = 0x00
	fsSelAccel2g = 0x00
	dlpf44Hz     = 0x03
	smplrt100Hz  = 9 // 1 kHz / (1 + SMPLRT_DIV)
)

// Sensitivities at the configured full scales, from the datasheet.
const (
	accelSens  = 32768.0 / 2.0   // LSB per g
	gyroSens   = 32768.0 / 250.0 // LSB per deg/s
	tempSens   = 340.0           // LSB per degC
	tempOffset = 36.53
)

// Sample is one accelerometer/gyro/temperature reading.
type Sample struct {
	Time time.Time

	Ax, Ay, Az float64 // g
	Gx, Gy, Gz float64 // deg/s
	TempC      float64 // die temperature
}

// busDev is the slice of i2c.Dev the driver needs. Tests substitute a fake.
type busDev interface {
	ReadRegU8(reg byte) (byte, error)
	ReadReg(reg byte, dst []byte) error
	WriteReg(reg, value byte) error
}

type Device struct {
	dev busDev
}

func New(dev *i2c.Dev) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("mpu6050: nil device handle")
	}
	return attach(dev)
}

func attach(dev busDev) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("mpu6050: nil device handle")
	}
	d := &Device{dev: dev}

	who, err := d.dev.ReadRegU8(regWhoAmI)
	if err != nil {
		return nil, fmt.Errorf("mpu6050: whoami: %w", err)
	}
	if who != whoAmIVal {
		return nil, fmt.Errorf("mpu6050: whoami 0x%02X, want 0x%02X", who, whoAmIVal)
	}

	if err := d.configure(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Device) configure() error {
	if err := d.dev.WriteReg(regPwrMgmt1, bitDevReset); err != nil {
		return fmt.Errorf("mpu6050: reset: %w", err)
	}
	sleep(100 * time.Millisecond)

	// Wake on the gyro X PLL. CLKSEL 0 keeps the internal oscillator,
	// which drifts more.
	if err := d.dev.WriteReg(regPwrMgmt1, clkPLLGyroX); err != nil {
		return fmt.Errorf("mpu6050: wake: %w", err)
	}
	sleep(10 * time.Millisecond)

	// The full-scale writes restate the power-on defaults so a warm
	// restart cannot inherit a previous configuration.
	for _, w := range []struct{ reg, val byte }{
		{regGyroCfg, fsSelGyro250},
		{regAccelCfg, fsSelAccel2g},
		{regConfig, dlpf44Hz},
		{regSmplrtDiv, smplrt100Hz},
	} {
		if err := d.dev.WriteReg(w.reg, w.val); err != nil {
			return fmt.Errorf("mpu6050: config reg 0x%02X: %w", w.reg, err)
		}
	}
	return nil
}

// Read burst-reads the full sensor block and converts to engineering units.
func (d *Device) Read() (Sample, error) {
	if d == nil {
		return Sample{}, fmt.Errorf("mpu6050: device is nil")
	}

	var raw [14]byte
	if err := d.dev.ReadReg(regAccelXoutH, raw[:]); err != nil {
		return Sample{}, fmt.Errorf("mpu6050: burst read: %w", err)
	}

	s := Sample{Time: time.Now()}
	s.Ax = float64(be16(raw[0], raw[1])) / accelSens
	s.Ay = float64(be16(raw[2], raw[3])) / accelSens
	s.Az = float64(be16(raw[4], raw[5])) / accelSens
	s.TempC = float64(be16(raw[6], raw[7]))/tempSens + tempOffset
	s.Gx = float64(be16(raw[8], raw[9])) / gyroSens
	s.Gy = float64(be16(raw[10], raw[11])) / gyroSens
	s.Gz = float64(be16(raw[12], raw[13])) / gyroSens
	return s, nil
}

func be16(hi, lo byte) int16 { return int16(uint16(hi)<<8 | uint16(lo)) }
