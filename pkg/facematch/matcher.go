// Package facematch finds the enrolled user whose stored face embedding
// is nearest to a query embedding.
//
// The search is a linear scan over every stored template, O(n) per
// request. At this system's scale (under ~100 enrolled users) an index
// would be overkill.
package facematch

import (
	"errors"
	"fmt"
	"math"

	"github.com/latchwork/gatekeeper/pkg/store"
)

// Threshold is the maximum Euclidean distance for a match. Distances
// must be strictly below it.
const Threshold = 0.6

// Match errors.
var (
	ErrNoMatch           = errors.New("no matching face template")
	ErrEmptyEmbedding    = errors.New("empty embedding")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Match is a successful recognition result.
type Match struct {
	UserID   string
	Distance float64
}

// Find scans templates for the one nearest to embedding, among those
// strictly below Threshold. Ties go to the first template encountered,
// so iteration order of the snapshot is the tie-break. Templates whose
// dimensions differ from the query are an error: comparing over a
// truncated prefix silently weakens the match, so it is rejected
// outright.
func Find(embedding []float64, templates []store.FaceTemplate) (Match, error) {
	if len(embedding) == 0 {
		return Match{}, ErrEmptyEmbedding
	}

	best := Match{Distance: math.Inf(1)}
	for _, tpl := range templates {
		if len(tpl.Embedding) != len(embedding) {
			return Match{}, fmt.Errorf("template for user %s: %w", tpl.UserID, ErrDimensionMismatch)
		}
		d := euclidean(embedding, tpl.Embedding)
		if d < Threshold && d < best.Distance {
			best = Match{UserID: tpl.UserID, Distance: d}
		}
	}

	if best.UserID == "" {
		return Match{}, ErrNoMatch
	}
	return best, nil
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}
