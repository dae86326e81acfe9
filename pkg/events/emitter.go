// Package events records detector and state-machine outcomes in the
// audit log without ever blocking the caller.
//
// The decoupling is the point: unlock decisions and sensor ingestion
// must not stall or roll back because a log write failed. Failures are
// logged locally and dropped.
package events

import (
	"sync"

	"github.com/latchwork/gatekeeper/internal/log"
	"github.com/latchwork/gatekeeper/pkg/store"
)

// Sink is where emitted events land. *store.Store satisfies it.
type Sink interface {
	AppendEvent(store.Event) error
}

// Emitter queues events onto a single background writer goroutine.
type Emitter struct {
	sink  Sink
	queue chan store.Event

	stopOnce sync.Once
	done     chan struct{}
}

// New starts an emitter draining into sink.
func New(sink Sink) *Emitter {
	e := &Emitter{
		sink:  sink,
		queue: make(chan store.Event, 64),
		done:  make(chan struct{}),
	}
	go e.drain()
	return e
}

// Emit queues one event. It never blocks: when the queue is saturated
// the event is dropped and a warning logged.
func (e *Emitter) Emit(event store.Event) {
	select {
	case e.queue <- event:
	default:
		log.Warn("event queue full, dropping event", "type", event.Type)
	}
}

// Close stops the writer after flushing queued events.
func (e *Emitter) Close() {
	e.stopOnce.Do(func() {
		close(e.queue)
		<-e.done
	})
}

func (e *Emitter) drain() {
	defer close(e.done)
	for event := range e.queue {
		if err := e.sink.AppendEvent(event); err != nil {
			log.Error("event write failed", "type", event.Type, "error", err)
		}
	}
}
