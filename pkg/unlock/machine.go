// Package unlock orchestrates the three-factor challenge that gates the
// physical lock: face geometry, then PIN, then spoken-voice liveness.
//
// The invariant the whole package exists to uphold: the actuator never
// receives an open command unless all three stages succeeded in order,
// within their timeouts, inside the same session. Every failure path
// returns to Locked and discards the recognized identity.
package unlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/latchwork/gatekeeper/internal/log"
	"github.com/latchwork/gatekeeper/pkg/facematch"
	"github.com/latchwork/gatekeeper/pkg/store"
	"github.com/latchwork/gatekeeper/pkg/voice"
)

// State is the current position in the unlock flow.
type State string

const (
	StateLocked         State = "locked"
	StateScanning       State = "scanning"
	StateAwaitingPIN    State = "awaiting_pin"
	StateVerifyingVoice State = "verifying_voice"
	StateUnlocked       State = "unlocked"
)

// StageTimeout bounds how long a session may sit in one stage before
// the next submission is rejected and the session resets.
const StageTimeout = 30 * time.Second

// MinPINLength is enforced before any store read happens.
const MinPINLength = 4

// Flow errors. All of them leave the machine in a defined state.
var (
	ErrWrongStage       = errors.New("operation not valid in current state")
	ErrSessionExpired   = errors.New("session stage timed out")
	ErrFaceNotMatched   = errors.New("face not recognized")
	ErrPINTooShort      = errors.New("PIN must be at least 4 digits")
	ErrPINNotEnrolled   = errors.New("no PIN enrolled for user")
	ErrInvalidPIN       = errors.New("invalid PIN")
	ErrNoSpeechDetected = errors.New("no speech detected")
)

// Recorder receives audit events fire-and-forget.
type Recorder interface {
	Emit(store.Event)
}

// Actuator drives the physical lock.
type Actuator interface {
	Unlock(ctx context.Context) error
	Lock(ctx context.Context) error
}

// Machine is the unlock state machine for one device. It is safe for
// concurrent use; at most one unlock session is active at a time.
type Machine struct {
	store    *store.Store
	events   Recorder
	actuator Actuator
	now      func() time.Time

	mu       sync.RWMutex
	state    State
	userID   string
	deadline time.Time
}

// NewMachine creates a machine in the Locked state.
func NewMachine(st *store.Store, events Recorder, act Actuator) *Machine {
	return &Machine{
		store:    st,
		events:   events,
		actuator: act,
		now:      time.Now,
		state:    StateLocked,
	}
}

// State returns the machine's current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// ScanFace runs the first factor: match the captured embedding against
// a fresh snapshot of enrolled templates. Success carries the
// recognized user into the PIN stage. Any failure logs an
// unauthorized_face event and returns to Locked.
func (m *Machine) ScanFace(ctx context.Context, embedding []float64) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = StateScanning
	m.userID = ""

	match, err := facematch.Find(embedding, m.store.ListFaceTemplates())
	if err != nil {
		m.state = StateLocked
		if errors.Is(err, facematch.ErrNoMatch) {
			// Deliberately no hint about near-misses.
			m.events.Emit(store.Event{
				Type:     store.EventUnauthorizedFace,
				Metadata: map[string]any{"reason": "Face not recognized"},
			})
			return m.state, ErrFaceNotMatched
		}
		return m.state, fmt.Errorf("face scan: %w", err)
	}

	m.state = StateAwaitingPIN
	m.userID = match.UserID
	m.deadline = m.now().Add(StageTimeout)
	log.Info("face recognized", "user_id", match.UserID, "distance", match.Distance)
	return m.state, nil
}

// SubmitPIN runs the second factor. The PIN is validated for shape
// before any store read, then compared against the stored bcrypt hash.
// A mismatch logs unauthorized_face with the invalid-PIN reason and
// discards the recognized identity.
func (m *Machine) SubmitPIN(ctx context.Context, pin string) (State, error) {
	if !validPIN(pin) {
		return m.State(), ErrPINTooShort
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateAwaitingPIN {
		return m.state, ErrWrongStage
	}
	if m.now().After(m.deadline) {
		m.resetLocked()
		return m.state, ErrSessionExpired
	}

	user, err := m.store.GetUser(m.userID)
	if err != nil {
		m.resetLocked()
		return m.state, fmt.Errorf("load user: %w", err)
	}
	if user.PINHash == "" {
		m.resetLocked()
		return m.state, ErrPINNotEnrolled
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PINHash), []byte(pin)) != nil {
		m.events.Emit(store.Event{
			Type:     store.EventUnauthorizedFace,
			UserID:   user.ID,
			UserName: user.Name,
			Metadata: map[string]any{"reason": "Invalid PIN"},
		})
		m.resetLocked()
		return m.state, ErrInvalidPIN
	}

	m.state = StateVerifyingVoice
	m.deadline = m.now().Add(StageTimeout)
	return m.state, nil
}

// SubmitVoice runs the third factor on audio captured over the fixed
// verification window. The check is speech presence (RMS over the
// silence threshold), not phrase content. Passing it unlocks: the
// unlock event and the actuator open command are both issued
// fire-and-forget and never roll the decision back.
func (m *Machine) SubmitVoice(ctx context.Context, samples []float64) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateVerifyingVoice {
		return m.state, ErrWrongStage
	}
	if m.now().After(m.deadline) {
		m.resetLocked()
		return m.state, ErrSessionExpired
	}

	if !voice.IsLive(samples) {
		m.resetLocked()
		return m.state, ErrNoSpeechDetected
	}

	userID := m.userID
	userName := ""
	if user, err := m.store.GetUser(userID); err == nil {
		userName = user.Name
	}

	m.state = StateUnlocked
	m.events.Emit(store.Event{
		Type:     store.EventUnlock,
		UserID:   userID,
		UserName: userName,
		Metadata: map[string]any{"methods": []string{"face", "pin", "voice"}},
	})
	m.driveActuator("unlock", m.actuator.Unlock)
	return m.state, nil
}

// Lock returns the machine to Locked, drives the servo closed, and
// logs a lock event. Valid from any state.
func (m *Machine) Lock(ctx context.Context) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	userID := m.userID
	m.resetLocked()

	m.events.Emit(store.Event{Type: store.EventLock, UserID: userID})
	m.driveActuator("lock", m.actuator.Lock)
	return m.state
}

// Abandon clears an in-progress session without touching the actuator.
// Used when the client context goes away mid-flow.
func (m *Machine) Abandon() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateUnlocked {
		m.resetLocked()
	}
}

// resetLocked clears session identity. Callers hold the session lock.
func (m *Machine) resetLocked() {
	m.state = StateLocked
	m.userID = ""
	m.deadline = time.Time{}
}

// driveActuator issues a servo command without blocking the state
// transition that triggered it. Errors are logged, never retried, and
// never reverse the decision already made.
func (m *Machine) driveActuator(op string, cmd func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := cmd(ctx); err != nil {
			log.Error("actuator command failed", "op", op, "error", err)
		}
	}()
}

func validPIN(pin string) bool {
	if len(pin) < MinPINLength {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
