package sensor

import "gonum.org/v1/gonum/stat"

const (
	// SmoothingWindow is the number of readings averaged per axis.
	SmoothingWindow = 5

	// GravityOffset is subtracted from the smoothed Z axis to
	// compensate for gravity bias in the reference orientation.
	GravityOffset = 5.0
)

// Smoother applies a trailing moving average to accelerometer readings.
// Each Smoother belongs to exactly one producer connection; construct a
// fresh one at connect so reconnects start with empty windows.
type Smoother struct {
	x axisWindow
	y axisWindow
	z axisWindow
}

// NewSmoother returns a Smoother with empty windows.
func NewSmoother() *Smoother {
	return &Smoother{}
}

// Smooth pushes one accelerometer reading and returns the per-axis
// trailing mean, with the gravity offset removed from Z.
func (s *Smoother) Smooth(accel Vector3) Vector3 {
	return Vector3{
		X: s.x.push(accel.X),
		Y: s.y.push(accel.Y),
		Z: s.z.push(accel.Z) - GravityOffset,
	}
}

// axisWindow is a fixed-capacity FIFO of recent readings for one axis.
type axisWindow struct {
	values []float64
}

func (w *axisWindow) push(v float64) float64 {
	w.values = append(w.values, v)
	if len(w.values) > SmoothingWindow {
		w.values = w.values[1:]
	}
	return stat.Mean(w.values, nil)
}
