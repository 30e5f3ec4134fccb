package sense

import (
	"auv-ng/internal/sensors/mpu6050"
)

// IMUOrientation adapts an MPU-6050 into an OrientationSource using the
// accelerometer tilt estimate.
func IMUOrientation(dev *mpu6050.Device) OrientationSource {
	return &imuOrientation{dev: dev}
}

type imuOrientation struct {
	dev *mpu6050.Device
}

func (s *imuOrientation) Orientation() (float64, float64, error) {
	smp, err := s.dev.Read()
	if err != nil {
		return 0, 0, err
	}
	roll, pitch := TiltFromAccel(smp.Ax, smp.Ay, smp.Az)
	return roll, pitch, nil
}

// Measurer is the one method of hcsr04.Ranger a range channel needs.
type Measurer interface {
	MeasureCm() (float64, error)
}

// UltrasonicRange adapts an HC-SR04 into a RangeSource.
func UltrasonicRange(r Measurer) RangeSource {
	return &rangerSource{r: r}
}

type rangerSource struct {
	r Measurer
}

func (s *rangerSource) DistanceCm() (float64, error) { return s.r.MeasureCm() }
