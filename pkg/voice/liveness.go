// Package voice implements the speech-liveness check used as the third
// unlock factor.
//
// The check is presence-of-speech only: signal energy over a silence
// threshold. It does not verify spoken content against the enrolled
// phrase. That asymmetry is deliberate and load-bearing for the rest of
// the flow; do not "upgrade" it to phrase matching without revisiting
// the enrollment design.
package voice

import (
	"math"
	"time"
)

const (
	// SilenceThreshold is the minimum RMS for audio to count as speech.
	SilenceThreshold = 0.01

	// VerifyWindow is the capture length for unlock verification.
	// Verification only needs presence of voice.
	VerifyWindow = 3 * time.Second

	// EnrollWindow is the capture length for phrase enrollment, long
	// enough for a full phrase.
	EnrollWindow = 10 * time.Second
)

// RMS returns the root-mean-square energy of PCM samples in [-1, 1].
// Empty input has zero energy.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// IsLive reports whether the captured audio contains speech energy
// above the silence threshold.
func IsLive(samples []float64) bool {
	return RMS(samples) > SilenceThreshold
}
