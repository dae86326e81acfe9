package unlock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/latchwork/gatekeeper/pkg/store"
	"github.com/latchwork/gatekeeper/pkg/voice"
)

// Enrollment errors.
var (
	ErrEmptyEmbedding = errors.New("missing face embedding")
	ErrEmptyPhrase    = errors.New("missing voice phrase")
)

// Each enrollment step commits on its own: a user can have a face
// template and no PIN yet, and the next step picks up where the last
// one left off. The user record is auto-created on the first write,
// whichever step that happens to be. Callers pass the same user ID
// across steps of one session; a blank ID mints a new one.

// EnrollFace stores a face template for the user and returns the user
// ID the rest of the session should carry.
func (m *Machine) EnrollFace(ctx context.Context, userID string, embedding []float64) (string, error) {
	if len(embedding) == 0 {
		return "", ErrEmptyEmbedding
	}
	userID = m.sessionUserID(userID)

	if err := m.store.UpsertFaceTemplate(userID, embedding); err != nil {
		return "", fmt.Errorf("store face template: %w", err)
	}
	if _, err := m.store.UpsertCredentials(userID, store.Credentials{}); err != nil {
		return "", fmt.Errorf("ensure user record: %w", err)
	}

	m.events.Emit(store.Event{
		Type:     store.EventSetup,
		UserID:   userID,
		Metadata: map[string]any{"step": "face"},
	})
	return userID, nil
}

// EnrollPIN hashes and stores the user's PIN. The PIN must be at least
// four digits; the plaintext never reaches the store.
func (m *Machine) EnrollPIN(ctx context.Context, userID, pin string) (string, error) {
	if !validPIN(pin) {
		return "", ErrPINTooShort
	}
	userID = m.sessionUserID(userID)

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash PIN: %w", err)
	}
	h := string(hash)
	if _, err := m.store.UpsertCredentials(userID, store.Credentials{PINHash: &h}); err != nil {
		return "", fmt.Errorf("store PIN: %w", err)
	}

	m.events.Emit(store.Event{
		Type:     store.EventSetup,
		UserID:   userID,
		Metadata: map[string]any{"step": "pin"},
	})
	return userID, nil
}

// EnrollPhrase stores the spoken phrase captured over the enrollment
// window. The audio must pass the liveness check; the transcribed
// phrase text is stored as-is.
func (m *Machine) EnrollPhrase(ctx context.Context, userID, phrase string, samples []float64) (string, error) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return "", ErrEmptyPhrase
	}
	if !voice.IsLive(samples) {
		return "", ErrNoSpeechDetected
	}
	userID = m.sessionUserID(userID)

	if _, err := m.store.UpsertCredentials(userID, store.Credentials{VoicePhrase: &phrase}); err != nil {
		return "", fmt.Errorf("store phrase: %w", err)
	}

	m.events.Emit(store.Event{
		Type:     store.EventSetup,
		UserID:   userID,
		Metadata: map[string]any{"step": "phrase"},
	})
	return userID, nil
}

// Enrolled reports whether the user has all three factors on file.
func (m *Machine) Enrolled(userID string) bool {
	user, err := m.store.GetUser(userID)
	if err != nil {
		return false
	}
	return user.Enrolled(m.store.HasFaceTemplate(userID))
}

func (m *Machine) sessionUserID(userID string) string {
	if userID == "" {
		return uuid.NewString()
	}
	return userID
}
