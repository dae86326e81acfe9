package unlock

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/latchwork/gatekeeper/pkg/store"
)

func freshMachine() (*Machine, *syncRecorder, *store.Store) {
	st := store.New()
	rec := &syncRecorder{}
	return NewMachine(st, rec, newFakeServo()), rec, st
}

func TestEnroll_StepsCommitIndependently(t *testing.T) {
	m, rec, st := freshMachine()
	ctx := context.Background()

	// First step mints the session's user ID and creates the record.
	userID, err := m.EnrollFace(ctx, "", []float64{0.5, 0.5})
	if err != nil {
		t.Fatalf("EnrollFace: %v", err)
	}
	if userID == "" {
		t.Fatal("no user ID minted")
	}
	if !st.HasFaceTemplate(userID) {
		t.Error("face template not stored")
	}
	if m.Enrolled(userID) {
		t.Error("partially enrolled user reported as enrolled")
	}

	// Later steps reuse the same identity.
	if _, err := m.EnrollPIN(ctx, userID, "123456"); err != nil {
		t.Fatalf("EnrollPIN: %v", err)
	}
	if _, err := m.EnrollPhrase(ctx, userID, "my voice is my passport", speech()); err != nil {
		t.Fatalf("EnrollPhrase: %v", err)
	}

	if !m.Enrolled(userID) {
		t.Error("fully enrolled user reported as not enrolled")
	}

	user, err := st.GetUser(userID)
	if err != nil {
		t.Fatal(err)
	}
	if user.PINHash == "" || user.PINHash == "123456" {
		t.Error("PIN stored missing or in plaintext")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PINHash), []byte("123456")) != nil {
		t.Error("stored hash does not verify the PIN")
	}
	if user.VoicePhrase != "my voice is my passport" {
		t.Errorf("phrase = %q", user.VoicePhrase)
	}

	if got := len(rec.byType(store.EventSetup)); got != 3 {
		t.Errorf("setup events = %d, want 3", got)
	}
}

func TestEnroll_PINBeforeUserExists(t *testing.T) {
	m, _, st := freshMachine()

	// PIN-first enrollment auto-creates the placeholder record.
	userID, err := m.EnrollPIN(context.Background(), "", "8080")
	if err != nil {
		t.Fatalf("EnrollPIN: %v", err)
	}
	user, err := st.GetUser(userID)
	if err != nil {
		t.Fatalf("placeholder user missing: %v", err)
	}
	if user.PINHash == "" {
		t.Error("PIN hash not stored")
	}
}

func TestEnroll_Validation(t *testing.T) {
	m, _, _ := freshMachine()
	ctx := context.Background()

	if _, err := m.EnrollFace(ctx, "", nil); !errors.Is(err, ErrEmptyEmbedding) {
		t.Errorf("EnrollFace: err = %v, want ErrEmptyEmbedding", err)
	}
	if _, err := m.EnrollPIN(ctx, "", "12"); !errors.Is(err, ErrPINTooShort) {
		t.Errorf("EnrollPIN: err = %v, want ErrPINTooShort", err)
	}
	if _, err := m.EnrollPhrase(ctx, "", "", speech()); !errors.Is(err, ErrEmptyPhrase) {
		t.Errorf("EnrollPhrase: err = %v, want ErrEmptyPhrase", err)
	}
	if _, err := m.EnrollPhrase(ctx, "", "hello", make([]float64, 100)); !errors.Is(err, ErrNoSpeechDetected) {
		t.Errorf("silent EnrollPhrase: err = %v, want ErrNoSpeechDetected", err)
	}
}

func TestEnroll_ReRegisterFaceOverwrites(t *testing.T) {
	m, _, st := freshMachine()
	ctx := context.Background()

	userID, err := m.EnrollFace(ctx, "", []float64{0.1, 0.1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.EnrollFace(ctx, userID, []float64{0.9, 0.9}); err != nil {
		t.Fatal(err)
	}

	templates := st.ListFaceTemplates()
	if len(templates) != 1 {
		t.Fatalf("templates = %d, want 1", len(templates))
	}
	if templates[0].Embedding[0] != 0.9 {
		t.Error("re-registration did not overwrite the template")
	}
}
