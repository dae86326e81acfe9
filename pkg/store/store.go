// Package store persists users, face templates, and the audit log.
//
// All operations are whole-record read/replace with last-write-wins
// semantics; concurrent writers may race, which is acceptable at this
// system's expected concurrency (single admin, single safe). The store
// is the single source of truth: callers re-read per logical operation
// and never cache across requests.
package store

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Lookup errors.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

// Store is the central record store. All data persists to the
// configured Backend on every mutation.
type Store struct {
	Users  map[string]*User         `json:"users"`
	Faces  map[string]*FaceTemplate `json:"faces"` // keyed by user ID
	Events []*Event                 `json:"events"`

	backend Backend
	mu      sync.RWMutex
}

// New creates an in-memory store (no persistence).
func New() *Store {
	return &Store{
		Users: make(map[string]*User),
		Faces: make(map[string]*FaceTemplate),
	}
}

// NewWithBackend creates a store with a persistence backend and loads
// any existing data from it.
func NewWithBackend(backend Backend) (*Store, error) {
	s := New()
	s.backend = backend
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewWithFile creates a store that persists to a JSON file.
func NewWithFile(path string) (*Store, error) {
	return NewWithBackend(NewJSONBackend(path))
}

// Close releases resources held by the backend.
func (s *Store) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

func (s *Store) save() error {
	if s.backend == nil {
		return nil
	}

	s.mu.RLock()
	data, err := json.MarshalIndent(s, "", "  ")
	s.mu.RUnlock()

	if err != nil {
		return err
	}
	return s.backend.Save(data)
}

func (s *Store) load() error {
	data, err := s.backend.Load()
	if err != nil {
		return err
	}
	if data == nil {
		return nil // no data yet
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var loaded Store
	if err := json.Unmarshal(data, &loaded); err != nil {
		return err
	}
	if loaded.Users != nil {
		s.Users = loaded.Users
	}
	if loaded.Faces != nil {
		s.Faces = loaded.Faces
	}
	if loaded.Events != nil {
		s.Events = loaded.Events
	}
	return nil
}

// --- Users ---

// GetUser returns the user with the given ID.
func (s *Store) GetUser(id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.Users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *u
	return &out, nil
}

// GetUserByEmail returns the user with the given email
// (case-insensitive).
func (s *Store) GetUserByEmail(email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.Users {
		if strings.ToLower(u.Email) == email {
			out := *u
			return &out, nil
		}
	}
	return nil, ErrUserNotFound
}

// CreateUser stores a new user. A missing ID is minted; CreatedAt is
// stamped. Fails if the email is already registered.
func (s *Store) CreateUser(u User) (*User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}

	s.mu.Lock()
	if u.Email != "" {
		for _, existing := range s.Users {
			if strings.EqualFold(existing.Email, u.Email) {
				s.mu.Unlock()
				return nil, ErrEmailTaken
			}
		}
	}
	stored := u
	s.Users[u.ID] = &stored
	s.mu.Unlock()

	if err := s.save(); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUser replaces the stored record for id with a modified copy.
// The mutate callback sees the current record.
func (s *Store) UpdateUser(id string, mutate func(*User)) (*User, error) {
	s.mu.Lock()
	u, ok := s.Users[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrUserNotFound
	}
	mutate(u)
	updated := *u
	s.mu.Unlock()

	if err := s.save(); err != nil {
		return nil, err
	}
	return &updated, nil
}

// UpsertCredentials writes a partial credential bundle for the given
// user, creating a placeholder user first if none exists. Each
// enrollment step commits independently through this one operation.
func (s *Store) UpsertCredentials(userID string, creds Credentials) (*User, error) {
	s.mu.Lock()
	u, ok := s.Users[userID]
	if !ok {
		u = &User{ID: userID, CreatedAt: time.Now()}
		s.Users[userID] = u
	}
	if creds.PINHash != nil {
		u.PINHash = *creds.PINHash
	}
	if creds.VoicePhrase != nil {
		u.VoicePhrase = *creds.VoicePhrase
	}
	updated := *u
	s.mu.Unlock()

	if err := s.save(); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteUser removes a user and their face template.
func (s *Store) DeleteUser(id string) error {
	s.mu.Lock()
	_, ok := s.Users[id]
	if ok {
		delete(s.Users, id)
		delete(s.Faces, id)
	}
	s.mu.Unlock()

	if !ok {
		return ErrUserNotFound
	}
	return s.save()
}

// ListUsers returns all users sorted by creation time.
func (s *Store) ListUsers() []*User {
	s.mu.RLock()
	users := make([]*User, 0, len(s.Users))
	for _, u := range s.Users {
		out := *u
		users = append(users, &out)
	}
	s.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users
}

// --- Face templates ---

// ListFaceTemplates returns a snapshot of all stored templates sorted
// by enrollment time, so matcher iteration order is stable.
func (s *Store) ListFaceTemplates() []FaceTemplate {
	s.mu.RLock()
	templates := make([]FaceTemplate, 0, len(s.Faces))
	for _, f := range s.Faces {
		templates = append(templates, *f)
	}
	s.mu.RUnlock()

	sort.Slice(templates, func(i, j int) bool {
		if templates[i].CreatedAt.Equal(templates[j].CreatedAt) {
			return templates[i].UserID < templates[j].UserID
		}
		return templates[i].CreatedAt.Before(templates[j].CreatedAt)
	})
	return templates
}

// UpsertFaceTemplate stores a face embedding for a user, overwriting
// any previous template (one template per user).
func (s *Store) UpsertFaceTemplate(userID string, embedding []float64) error {
	stored := make([]float64, len(embedding))
	copy(stored, embedding)

	s.mu.Lock()
	s.Faces[userID] = &FaceTemplate{
		UserID:    userID,
		Embedding: stored,
		CreatedAt: time.Now(),
	}
	s.mu.Unlock()

	return s.save()
}

// DeleteFaceTemplate removes a user's face template.
func (s *Store) DeleteFaceTemplate(userID string) error {
	s.mu.Lock()
	delete(s.Faces, userID)
	s.mu.Unlock()
	return s.save()
}

// HasFaceTemplate reports whether the user has an enrolled face.
func (s *Store) HasFaceTemplate(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.Faces[userID]
	return ok
}

// --- Events ---

// AppendEvent appends one entry to the audit log. Missing IDs and
// timestamps are filled in.
func (s *Store) AppendEvent(e Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	s.mu.Lock()
	s.Events = append(s.Events, &e)
	s.mu.Unlock()

	return s.save()
}

// ListEvents returns the newest events first. A limit <= 0 returns
// everything.
func (s *Store) ListEvents(limit int) []*Event {
	s.mu.RLock()
	events := make([]*Event, 0, len(s.Events))
	for i := len(s.Events) - 1; i >= 0; i-- {
		out := *s.Events[i]
		events = append(events, &out)
		if limit > 0 && len(events) >= limit {
			break
		}
	}
	s.mu.RUnlock()
	return events
}
