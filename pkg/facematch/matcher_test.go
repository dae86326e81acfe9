package facematch

import (
	"errors"
	"testing"

	"github.com/latchwork/gatekeeper/pkg/store"
)

// tpl builds a 1-D template at the given offset from the origin, so
// distance to a zero query equals the offset.
func tpl(userID string, offset float64) store.FaceTemplate {
	return store.FaceTemplate{UserID: userID, Embedding: []float64{offset}}
}

func TestFind_ThresholdBoundary(t *testing.T) {
	query := []float64{0}

	tests := []struct {
		name     string
		distance float64
		wantHit  bool
	}{
		{name: "just inside threshold", distance: 0.59, wantHit: true},
		{name: "just outside threshold", distance: 0.61, wantHit: false},
		{name: "exactly at threshold rejected", distance: 0.6, wantHit: false},
		{name: "perfect match", distance: 0, wantHit: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Find(query, []store.FaceTemplate{tpl("alice", tt.distance)})
			if tt.wantHit {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if m.UserID != "alice" {
					t.Errorf("matched %q, want alice", m.UserID)
				}
			} else if !errors.Is(err, ErrNoMatch) {
				t.Errorf("err = %v, want ErrNoMatch", err)
			}
		})
	}
}

func TestFind_NearestWins(t *testing.T) {
	query := []float64{0}
	templates := []store.FaceTemplate{
		tpl("far", 0.5),
		tpl("near", 0.2),
		tpl("mid", 0.4),
	}

	m, err := Find(query, templates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.UserID != "near" {
		t.Errorf("matched %q, want near", m.UserID)
	}
	if m.Distance != 0.2 {
		t.Errorf("distance = %v, want 0.2", m.Distance)
	}
}

func TestFind_TieGoesToFirstEncountered(t *testing.T) {
	query := []float64{0}
	templates := []store.FaceTemplate{
		tpl("first", 0.3),
		tpl("second", 0.3),
	}

	m, err := Find(query, templates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.UserID != "first" {
		t.Errorf("matched %q, want first", m.UserID)
	}
}

func TestFind_DimensionMismatch(t *testing.T) {
	query := []float64{0, 0, 0}
	templates := []store.FaceTemplate{
		{UserID: "short", Embedding: []float64{0.1}},
	}

	if _, err := Find(query, templates); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestFind_EmptyInputs(t *testing.T) {
	if _, err := Find(nil, []store.FaceTemplate{tpl("a", 0.1)}); !errors.Is(err, ErrEmptyEmbedding) {
		t.Errorf("err = %v, want ErrEmptyEmbedding", err)
	}
	if _, err := Find([]float64{0.5}, nil); !errors.Is(err, ErrNoMatch) {
		t.Errorf("err = %v, want ErrNoMatch", err)
	}
}

func TestFind_MultiDimensional(t *testing.T) {
	// 3-4-0 triangle: distance 0.5 from the query, inside threshold.
	query := []float64{0, 0, 0}
	templates := []store.FaceTemplate{
		{UserID: "bob", Embedding: []float64{0.3, 0.4, 0}},
	}

	m, err := Find(query, templates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.UserID != "bob" || m.Distance != 0.5 {
		t.Errorf("got %+v, want bob at 0.5", m)
	}
}
