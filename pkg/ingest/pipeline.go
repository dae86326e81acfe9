package ingest

import (
	"github.com/latchwork/gatekeeper/pkg/anomaly"
	"github.com/latchwork/gatekeeper/pkg/sensor"
)

// Pipeline is the per-producer processing context: one smoother and one
// detector, constructed at connection start and discarded at
// disconnect. Keeping the state here instead of on the hub means
// producers never contend for each other's smoothing windows or
// cooldown timers, and a reconnect always starts clean.
type Pipeline struct {
	smoother *sensor.Smoother
	detector *anomaly.Detector
}

// NewPipeline creates a fresh processing context for one producer.
func NewPipeline() *Pipeline {
	return &Pipeline{
		smoother: sensor.NewSmoother(),
		detector: anomaly.NewDetector(),
	}
}
