package store

import "time"

// EventType classifies an audit-log entry.
type EventType string

const (
	EventLock             EventType = "lock"
	EventUnlock           EventType = "unlock"
	EventSetup            EventType = "setup"
	EventUnauthorizedFace EventType = "unauthorized_face"
	EventTheftDetected    EventType = "theft_detected"
	EventMovementDetected EventType = "movement_detected"
)

// User is one operator of the safe. PINHash and VoicePhrase are filled
// in incrementally during enrollment; a user with all three credentials
// (PIN, phrase, face template) is fully enrolled.
type User struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	IsAdmin     bool      `json:"is_admin"`
	PINHash     string    `json:"pin_hash,omitempty"`
	VoicePhrase string    `json:"voice_phrase,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Credentials is the partial bundle written by one enrollment step.
// Nil fields are left untouched.
type Credentials struct {
	PINHash     *string
	VoicePhrase *string
}

// Enrolled reports whether the user has both a PIN and a voice phrase.
// The face template lives in its own collection.
func (u User) Enrolled(hasFace bool) bool {
	return u.PINHash != "" && u.VoicePhrase != "" && hasFace
}

// FaceTemplate is one user's stored face embedding. One per user;
// re-registration overwrites.
type FaceTemplate struct {
	UserID    string    `json:"user_id"`
	Embedding []float64 `json:"embedding"`
	CreatedAt time.Time `json:"created_at"`
}

// Event is one audit-log entry written by the core.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	UserID    string         `json:"user_id,omitempty"`
	UserName  string         `json:"user_name,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
