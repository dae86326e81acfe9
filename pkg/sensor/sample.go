// Package sensor defines the motion-sensor sample types shared by the
// ingestion pipeline and provides per-axis signal smoothing.
package sensor

import "math"

// Vector3 is a three-axis sensor reading.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Magnitude returns the Euclidean norm of the vector.
func (v Vector3) Magnitude() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// IsZero reports whether all three axes are exactly zero. An all-zero
// gyroscope means "no gyroscope data" for partial samples, not a
// genuine reading.
func (v Vector3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// Sample is one motion reading from a device. Immutable once received.
type Sample struct {
	Accelerometer Vector3 `json:"accelerometer"`
	Gyroscope     Vector3 `json:"gyroscope"`
	Timestamp     int64   `json:"timestamp"` // Unix milliseconds
}
