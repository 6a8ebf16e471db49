package rating

import "math"

const (
	// InitialRating is the rating assigned to players on first sight.
	InitialRating = 1000
	// DefaultK controls how much a single match moves a rating.
	DefaultK = 32
)

// Outcome is the match result from one player's perspective.
type Outcome float64

const (
	Loss Outcome = 0
	Draw Outcome = 0.5
	Win  Outcome = 1
)

// Inverse returns the same result seen from the opponent's perspective.
func (o Outcome) Inverse() Outcome { return 1 - o }

// Engine computes Elo rating changes with a configurable K-factor.
type Engine struct {
	k float64
}

// NewEngine returns an engine with the given K-factor, falling back to
// DefaultK when k is not positive.
func NewEngine(k int) *Engine {
	if k <= 0 {
		k = DefaultK
	}
	return &Engine{k: float64(k)}
}

// ExpectedScore returns the probability of ratingA beating ratingB.
func ExpectedScore(ratingA, ratingB int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(ratingB-ratingA)/400.0))
}

// Change returns the rating deltas for both players given the outcome for A.
// The deltas sum to zero after rounding; the non-negative clamp is applied
// later by Apply.
func (e *Engine) Change(ratingA, ratingB int, outcomeA Outcome) (int, int) {
	expectedA := ExpectedScore(ratingA, ratingB)
	expectedB := 1 - expectedA
	deltaA := int(math.Round(e.k * (float64(outcomeA) - expectedA)))
	deltaB := int(math.Round(e.k * (float64(outcomeA.Inverse()) - expectedB)))
	return deltaA, deltaB
}

// Apply adds a delta to a rating, clamping the result at zero.
func Apply(rating, delta int) int {
	next := rating + delta
	if next < 0 {
		return 0
	}
	return next
}

// TierFor maps a rating to its human-readable tier label.
func TierFor(rating int) string {
	switch {
	case rating < 1200:
		return "Bronze"
	case rating < 1500:
		return "Silver"
	case rating < 1800:
		return "Gold"
	case rating < 2000:
		return "Platinum"
	default:
		return "Master"
	}
}
