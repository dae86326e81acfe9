// Package anomaly classifies motion-sensor samples into tamper and
// theft verdicts. A Detector is owned by a single producer connection;
// its cooldown state is never shared across producers.
package anomaly

import (
	"time"

	"github.com/latchwork/gatekeeper/pkg/sensor"
)

// Verdict is the outcome of classifying one sample.
type Verdict string

const (
	VerdictNone     Verdict = "none"
	VerdictMovement Verdict = "movement"
	VerdictTheft    Verdict = "theft"
	VerdictGhost    Verdict = "ghost"
)

// Detection thresholds, in the device's native units (accelerometer
// m/s^2, gyroscope rad/s).
const (
	TheftMagnitude   = 50.0
	MovementAccel    = 5.0
	MovementGyro     = 2.0
	StillnessLimit   = 0.1
	MovementCooldown = 5000 * time.Millisecond
)

// Result is one verdict plus the metadata that produced it.
type Result struct {
	Verdict   Verdict  `json:"verdict"`
	Magnitude float64  `json:"magnitude,omitempty"`
	Axes      []string `json:"axes,omitempty"` // every axis over threshold
}

// Detector holds the per-producer debounce state. Zero value is not
// usable; call NewDetector.
type Detector struct {
	lastMovement time.Time
	ghostActive  bool
}

// NewDetector returns a Detector with no prior cooldown state.
func NewDetector() *Detector {
	return &Detector{}
}

// Classify inspects one sample and returns every verdict it triggers.
// Theft and ghost checks run on the raw accelerometer magnitude; the
// movement check runs on the smoothed accelerometer axes plus the raw
// gyroscope. It never returns VerdictNone results and never errors;
// malformed samples must be rejected before reaching here.
//
// Theft is deliberately not debounced: every qualifying sample emits.
// Movement shares one cooldown window across all movement axes. Ghost
// mode is edge-triggered: one emission per stillness episode, re-armed
// by the first non-still sample.
func (d *Detector) Classify(s sensor.Sample, smoothed sensor.Vector3, now time.Time) []Result {
	var results []Result

	mag := s.Accelerometer.Magnitude()
	if mag > TheftMagnitude {
		results = append(results, Result{
			Verdict:   VerdictTheft,
			Magnitude: mag,
		})
	}

	if axes := movementAxes(smoothed, s.Gyroscope); len(axes) > 0 {
		if d.lastMovement.IsZero() || now.Sub(d.lastMovement) >= MovementCooldown {
			d.lastMovement = now
			results = append(results, Result{
				Verdict:   VerdictMovement,
				Magnitude: mag,
				Axes:      axes,
			})
		}
	}

	still := mag < StillnessLimit &&
		abs(s.Gyroscope.X) < StillnessLimit &&
		abs(s.Gyroscope.Y) < StillnessLimit &&
		abs(s.Gyroscope.Z) < StillnessLimit
	if still {
		if !d.ghostActive {
			d.ghostActive = true
			results = append(results, Result{
				Verdict:   VerdictGhost,
				Magnitude: mag,
			})
		}
	} else {
		d.ghostActive = false
	}

	return results
}

func movementAxes(accel, gyro sensor.Vector3) []string {
	var axes []string
	if abs(accel.X) > MovementAccel {
		axes = append(axes, "accel.x")
	}
	if abs(accel.Y) > MovementAccel {
		axes = append(axes, "accel.y")
	}
	if abs(gyro.X) > MovementGyro {
		axes = append(axes, "gyro.x")
	}
	if abs(gyro.Y) > MovementGyro {
		axes = append(axes, "gyro.y")
	}
	if abs(gyro.Z) > MovementGyro {
		axes = append(axes, "gyro.z")
	}
	return axes
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
