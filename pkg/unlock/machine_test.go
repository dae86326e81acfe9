package unlock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/latchwork/gatekeeper/pkg/store"
)

// syncRecorder captures events synchronously for assertions.
type syncRecorder struct {
	mu     sync.Mutex
	events []store.Event
}

func (r *syncRecorder) Emit(e store.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *syncRecorder) byType(t store.EventType) []store.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []store.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// fakeServo counts actuator commands and signals each open.
type fakeServo struct {
	mu       sync.Mutex
	opens    int
	closes   int
	unlocked chan struct{}
}

func newFakeServo() *fakeServo {
	return &fakeServo{unlocked: make(chan struct{}, 8)}
}

func (f *fakeServo) Unlock(ctx context.Context) error {
	f.mu.Lock()
	f.opens++
	f.mu.Unlock()
	f.unlocked <- struct{}{}
	return nil
}

func (f *fakeServo) Lock(ctx context.Context) error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	return nil
}

func (f *fakeServo) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

func (f *fakeServo) waitForOpen(t *testing.T) {
	t.Helper()
	select {
	case <-f.unlocked:
	case <-time.After(2 * time.Second):
		t.Fatal("actuator open command never issued")
	}
}

// enrolledMachine builds a machine with one fully enrolled user.
func enrolledMachine(t *testing.T) (*Machine, *syncRecorder, *fakeServo, string) {
	t.Helper()

	st := store.New()
	u, err := st.CreateUser(store.User{Name: "Ada", Email: "ada@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("4321"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	h := string(hash)
	phrase := "open the pod bay doors"
	if _, err := st.UpsertCredentials(u.ID, store.Credentials{PINHash: &h, VoicePhrase: &phrase}); err != nil {
		t.Fatal(err)
	}
	if err := st.UpsertFaceTemplate(u.ID, []float64{0.1, 0.2, 0.3}); err != nil {
		t.Fatal(err)
	}

	rec := &syncRecorder{}
	servo := newFakeServo()
	return NewMachine(st, rec, servo), rec, servo, u.ID
}

func speech() []float64 {
	samples := make([]float64, 4800)
	for i := range samples {
		samples[i] = 0.3
	}
	return samples
}

func TestMachine_HappyPathUnlocks(t *testing.T) {
	m, rec, servo, userID := enrolledMachine(t)
	ctx := context.Background()

	state, err := m.ScanFace(ctx, []float64{0.1, 0.2, 0.3})
	if err != nil {
		t.Fatalf("ScanFace: %v", err)
	}
	if state != StateAwaitingPIN {
		t.Fatalf("state = %s, want %s", state, StateAwaitingPIN)
	}

	state, err = m.SubmitPIN(ctx, "4321")
	if err != nil {
		t.Fatalf("SubmitPIN: %v", err)
	}
	if state != StateVerifyingVoice {
		t.Fatalf("state = %s, want %s", state, StateVerifyingVoice)
	}

	state, err = m.SubmitVoice(ctx, speech())
	if err != nil {
		t.Fatalf("SubmitVoice: %v", err)
	}
	if state != StateUnlocked {
		t.Fatalf("state = %s, want %s", state, StateUnlocked)
	}

	servo.waitForOpen(t)
	if n := servo.openCount(); n != 1 {
		t.Errorf("actuator opened %d times, want 1", n)
	}

	unlocks := rec.byType(store.EventUnlock)
	if len(unlocks) != 1 {
		t.Fatalf("unlock events = %d, want 1", len(unlocks))
	}
	if unlocks[0].UserID != userID {
		t.Errorf("unlock user = %s, want %s", unlocks[0].UserID, userID)
	}
}

func TestMachine_WrongPINLocks(t *testing.T) {
	m, rec, servo, _ := enrolledMachine(t)
	ctx := context.Background()

	if _, err := m.ScanFace(ctx, []float64{0.1, 0.2, 0.3}); err != nil {
		t.Fatal(err)
	}

	state, err := m.SubmitPIN(ctx, "9999")
	if !errors.Is(err, ErrInvalidPIN) {
		t.Fatalf("err = %v, want ErrInvalidPIN", err)
	}
	if state != StateLocked {
		t.Errorf("state = %s, want %s", state, StateLocked)
	}

	// Identity is discarded: the voice stage is unreachable.
	if _, err := m.SubmitVoice(ctx, speech()); !errors.Is(err, ErrWrongStage) {
		t.Errorf("SubmitVoice after failed PIN: err = %v, want ErrWrongStage", err)
	}

	denied := rec.byType(store.EventUnauthorizedFace)
	if len(denied) != 1 {
		t.Fatalf("unauthorized_face events = %d, want 1", len(denied))
	}
	if reason := denied[0].Metadata["reason"]; reason != "Invalid PIN" {
		t.Errorf("reason = %v, want Invalid PIN", reason)
	}

	time.Sleep(20 * time.Millisecond)
	if n := servo.openCount(); n != 0 {
		t.Errorf("actuator opened %d times, want 0", n)
	}
}

func TestMachine_UnknownFaceLocks(t *testing.T) {
	m, rec, _, _ := enrolledMachine(t)

	state, err := m.ScanFace(context.Background(), []float64{5, 5, 5})
	if !errors.Is(err, ErrFaceNotMatched) {
		t.Fatalf("err = %v, want ErrFaceNotMatched", err)
	}
	if state != StateLocked {
		t.Errorf("state = %s, want %s", state, StateLocked)
	}

	denied := rec.byType(store.EventUnauthorizedFace)
	if len(denied) != 1 {
		t.Fatalf("unauthorized_face events = %d, want 1", len(denied))
	}
	// The event must not reveal which user the embedding was close to.
	if denied[0].UserID != "" {
		t.Errorf("event leaked user id %q", denied[0].UserID)
	}
}

func TestMachine_StageOrderEnforced(t *testing.T) {
	m, _, _, _ := enrolledMachine(t)
	ctx := context.Background()

	if _, err := m.SubmitPIN(ctx, "4321"); !errors.Is(err, ErrWrongStage) {
		t.Errorf("PIN before face: err = %v, want ErrWrongStage", err)
	}
	if _, err := m.SubmitVoice(ctx, speech()); !errors.Is(err, ErrWrongStage) {
		t.Errorf("voice before face: err = %v, want ErrWrongStage", err)
	}
}

func TestMachine_ShortPINRejectedBeforeLookup(t *testing.T) {
	m, _, _, _ := enrolledMachine(t)
	ctx := context.Background()

	if _, err := m.ScanFace(ctx, []float64{0.1, 0.2, 0.3}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		pin  string
	}{
		{name: "too short", pin: "123"},
		{name: "non-digits", pin: "12a4"},
		{name: "empty", pin: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.SubmitPIN(ctx, tt.pin); !errors.Is(err, ErrPINTooShort) {
				t.Errorf("err = %v, want ErrPINTooShort", err)
			}
		})
	}

	// Shape rejection is not a failed attempt; the session survives.
	if m.State() != StateAwaitingPIN {
		t.Errorf("state = %s, want %s", m.State(), StateAwaitingPIN)
	}
}

func TestMachine_StageTimeoutResets(t *testing.T) {
	m, _, _, _ := enrolledMachine(t)
	ctx := context.Background()

	if _, err := m.ScanFace(ctx, []float64{0.1, 0.2, 0.3}); err != nil {
		t.Fatal(err)
	}

	// Move the clock past the PIN-stage deadline.
	m.now = func() time.Time { return time.Now().Add(StageTimeout + time.Second) }

	state, err := m.SubmitPIN(ctx, "4321")
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
	if state != StateLocked {
		t.Errorf("state = %s, want %s", state, StateLocked)
	}
}

func TestMachine_SilenceFailsVoiceStage(t *testing.T) {
	m, _, servo, _ := enrolledMachine(t)
	ctx := context.Background()

	if _, err := m.ScanFace(ctx, []float64{0.1, 0.2, 0.3}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SubmitPIN(ctx, "4321"); err != nil {
		t.Fatal(err)
	}

	state, err := m.SubmitVoice(ctx, make([]float64, 4800))
	if !errors.Is(err, ErrNoSpeechDetected) {
		t.Fatalf("err = %v, want ErrNoSpeechDetected", err)
	}
	if state != StateLocked {
		t.Errorf("state = %s, want %s", state, StateLocked)
	}

	time.Sleep(20 * time.Millisecond)
	if n := servo.openCount(); n != 0 {
		t.Errorf("actuator opened %d times, want 0", n)
	}
}

func TestMachine_LockCommand(t *testing.T) {
	m, rec, servo, _ := enrolledMachine(t)
	ctx := context.Background()

	if _, err := m.ScanFace(ctx, []float64{0.1, 0.2, 0.3}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SubmitPIN(ctx, "4321"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SubmitVoice(ctx, speech()); err != nil {
		t.Fatal(err)
	}
	servo.waitForOpen(t)

	if state := m.Lock(ctx); state != StateLocked {
		t.Errorf("state = %s, want %s", state, StateLocked)
	}
	if len(rec.byType(store.EventLock)) != 1 {
		t.Error("lock event not recorded")
	}
}

func TestMachine_AbandonClearsSession(t *testing.T) {
	m, _, _, _ := enrolledMachine(t)
	ctx := context.Background()

	if _, err := m.ScanFace(ctx, []float64{0.1, 0.2, 0.3}); err != nil {
		t.Fatal(err)
	}
	m.Abandon()

	if m.State() != StateLocked {
		t.Errorf("state = %s, want %s", m.State(), StateLocked)
	}
	if _, err := m.SubmitPIN(ctx, "4321"); !errors.Is(err, ErrWrongStage) {
		t.Errorf("err = %v, want ErrWrongStage", err)
	}
}
