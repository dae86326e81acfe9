// Package ingest accepts motion-sensor samples from device producers,
// runs them through smoothing and anomaly detection, and fans them out
// to dashboard observers using the channel-based hub pattern.
package ingest

import (
	"sync"
	"time"

	"github.com/latchwork/gatekeeper/internal/log"
	"github.com/latchwork/gatekeeper/pkg/anomaly"
	"github.com/latchwork/gatekeeper/pkg/sensor"
	"github.com/latchwork/gatekeeper/pkg/store"
	"github.com/latchwork/gatekeeper/pkg/wire"
)

// HistorySize caps the retained sample history. The buffer is
// diagnostic only, never authoritative storage.
const HistorySize = 100

// Recorder receives anomaly events fire-and-forget.
type Recorder interface {
	Emit(store.Event)
}

// Hub maintains the set of active observers and broadcasts accepted
// samples and alerts to them. One hub serves one device controller.
type Hub struct {
	// Inbound messages to broadcast
	broadcast chan []byte

	// Register requests from observers
	register chan *Observer

	// Unregister requests from observers
	unregister chan *Observer

	// Registered observers
	observers map[*Observer]bool

	// Audit-log boundary for theft/movement verdicts
	events Recorder

	// Recent-sample ring, diagnostic only
	mu      sync.RWMutex
	history []sensor.Sample

	now func() time.Time
}

// NewHub creates a hub that records anomalies through events.
func NewHub(events Recorder) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Observer),
		unregister: make(chan *Observer),
		observers:  make(map[*Observer]bool),
		events:     events,
		now:        time.Now,
	}
}

// Run starts the hub's fan-out loop. Call it in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case obs := <-h.register:
			h.mu.Lock()
			h.observers[obs] = true
			count := len(h.observers)
			h.mu.Unlock()
			log.Info("observer connected", "total", count)

		case obs := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.observers[obs]; ok {
				delete(h.observers, obs)
				close(obs.send)
			}
			count := len(h.observers)
			h.mu.Unlock()
			log.Info("observer disconnected", "remaining", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for obs := range h.observers {
				select {
				case obs.send <- message:
				default:
					// Observer's buffer is full - they're too slow.
					// Drop them rather than stall ingestion.
					close(obs.send)
					delete(h.observers, obs)
					log.Warn("dropped slow observer")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Ingest accepts one producer sample: normalize, remember, relay, and
// classify. Sample order per producer is preserved because each
// producer's read loop calls Ingest sequentially.
func (h *Hub) Ingest(p *Pipeline, data wire.SensorData) {
	raw := data.Sample()
	smoothed := p.smoother.Smooth(raw.Accelerometer)

	h.remember(raw)

	// Relay the sample verbatim to every observer.
	h.BroadcastJSON(wire.TypeSensorData, data)

	for _, result := range p.detector.Classify(raw, smoothed, h.now()) {
		h.handleVerdict(result, raw)
	}
}

func (h *Hub) handleVerdict(result anomaly.Result, s sensor.Sample) {
	switch result.Verdict {
	case anomaly.VerdictTheft:
		log.Warn("theft-level acceleration", "magnitude", result.Magnitude)
		h.events.Emit(store.Event{
			Type:     store.EventTheftDetected,
			Metadata: map[string]any{"magnitude": result.Magnitude},
		})
		h.BroadcastJSON(wire.TypeTheftAlert, wire.TheftAlert{
			Magnitude: result.Magnitude,
			Timestamp: s.Timestamp,
		})

	case anomaly.VerdictMovement:
		log.Info("movement detected", "axes", result.Axes)
		h.events.Emit(store.Event{
			Type:     store.EventMovementDetected,
			Metadata: map[string]any{"axes": result.Axes, "magnitude": result.Magnitude},
		})

	case anomaly.VerdictGhost:
		log.Warn("ghost mode: sensors reading near-total stillness")
		h.BroadcastJSON(wire.TypeGhostAlert, wire.GhostAlert{Timestamp: s.Timestamp})
	}
}

// Broadcast queues a message for every observer. Never blocks: when
// the broadcast channel is saturated the message is dropped.
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcast <- data:
	default:
		log.Warn("broadcast channel full, dropping message")
	}
}

// BroadcastJSON encodes and broadcasts a wire message.
func (h *Hub) BroadcastJSON(msgType wire.MessageType, payload interface{}) {
	msg, err := wire.NewMessage(msgType, payload)
	if err != nil {
		log.Error("encode broadcast message", "type", msgType, "error", err)
		return
	}
	data, err := msg.Bytes()
	if err != nil {
		log.Error("encode broadcast message", "type", msgType, "error", err)
		return
	}
	h.Broadcast(data)
}

// ObserverCount returns the number of connected observers.
func (h *Hub) ObserverCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

func (h *Hub) remember(s sensor.Sample) {
	h.mu.Lock()
	h.history = append(h.history, s)
	if len(h.history) > HistorySize {
		h.history = h.history[1:]
	}
	h.mu.Unlock()
}

// Recent returns a copy of the retained sample history, oldest first.
func (h *Hub) Recent() []sensor.Sample {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]sensor.Sample(nil), h.history...)
}
