package events

import (
	"errors"
	"sync"
	"testing"

	"github.com/latchwork/gatekeeper/pkg/store"
)

// recordingSink captures appended events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []store.Event
	fail   bool
}

func (s *recordingSink) AppendEvent(e store.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("disk full")
	}
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) all() []store.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.Event(nil), s.events...)
}

func TestEmitter_DeliversInOrder(t *testing.T) {
	sink := &recordingSink{}
	e := New(sink)

	e.Emit(store.Event{Type: store.EventMovementDetected})
	e.Emit(store.Event{Type: store.EventTheftDetected})
	e.Emit(store.Event{Type: store.EventLock})
	e.Close()

	got := sink.all()
	if len(got) != 3 {
		t.Fatalf("delivered %d events, want 3", len(got))
	}
	want := []store.EventType{store.EventMovementDetected, store.EventTheftDetected, store.EventLock}
	for i, typ := range want {
		if got[i].Type != typ {
			t.Errorf("event %d: type = %s, want %s", i, got[i].Type, typ)
		}
	}
}

func TestEmitter_SinkFailureIsSwallowed(t *testing.T) {
	sink := &recordingSink{fail: true}
	e := New(sink)

	// Must not panic or block; the failure is logged and dropped.
	e.Emit(store.Event{Type: store.EventUnlock})
	e.Close()

	if len(sink.all()) != 0 {
		t.Error("failing sink recorded events")
	}
}

func TestEmitter_CloseIsIdempotent(t *testing.T) {
	e := New(&recordingSink{})
	e.Close()
	e.Close() // second close must not panic
}
