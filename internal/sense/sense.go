// Package sense acquires orientation and range samples for the control loop.
//
// Every hardware poll is bounded by a timeout and yields a sample whose
// Valid flag says whether the reading can be trusted. Callers never see a
// hard error from a poll; a bad read is an invalid sample, and a recent
// last-known-good sample papers over short dropouts.
package sense

import (
	"math"
	"time"
)

// Position identifies one of the three rangefinders.
type Position int

const (
	Front Position = iota
	Back
	Bottom
)

func (p Position) String() string {
	switch p {
	case Front:
		return "front"
	case Back:
		return "back"
	case Bottom:
		return "bottom"
	default:
		return "unknown"
	}
}

// OrientationSample is one attitude reading. Angles are degrees; zero is
// level. At is when the reading was taken, not when it was returned, so a
// fallback sample keeps its original timestamp.
type OrientationSample struct {
	RollDeg  float64
	PitchDeg float64
	At       time.Time
	Valid    bool
}

// RangeSample is one distance reading in centimeters.
type RangeSample struct {
	DistanceCm float64
	At         time.Time
	Valid      bool
}

// Age returns how old the sample is at now.
func (s RangeSample) Age(now time.Time) time.Duration { return now.Sub(s.At) }

func (s OrientationSample) Age(now time.Time) time.Duration { return now.Sub(s.At) }

// OrientationSource produces attitude readings. Implementations may block;
// the Poller bounds the call.
type OrientationSource interface {
	Orientation() (rollDeg, pitchDeg float64, err error)
}

// RangeSource produces distance readings in centimeters.
type RangeSource interface {
	DistanceCm() (float64, error)
}

// TiltFromAccel derives roll and pitch in degrees from an accelerometer
// vector (any consistent unit). Accelerometer-only, so only usable as a
// quasi-static tilt estimate.
func TiltFromAccel(ax, ay, az float64) (rollDeg, pitchDeg float64) {
	pitch := math.Atan2(ay, math.Sqrt(ax*ax+az*az))
	roll := math.Atan2(-ax, az)
	return roll * 180 / math.Pi, pitch * 180 / math.Pi
}
