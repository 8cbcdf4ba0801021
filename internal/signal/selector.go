// Package signal selects, per date, the single strongest qualifying
// cross-exchange divergence.
package signal

import (
	"math"
	"sort"

	"github.com/your-org/premium-rev-bot/internal/indicator"
)

// Direction says which side of the premium a position takes.
type Direction int

const (
	// DirectionNone indicates no direction.
	DirectionNone Direction = iota
	// ShortPremium bets on a positive divergence shrinking.
	ShortPremium
	// LongPremium bets on a negative divergence shrinking.
	LongPremium
)

// String returns the string representation of Direction.
func (d Direction) String() string {
	switch d {
	case ShortPremium:
		return "short_premium"
	case LongPremium:
		return "long_premium"
	case DirectionNone:
		return "none"
	default:
		return "unknown"
	}
}

// DirectionFor derives the trade direction from a z-score:
// short the premium when it sits above its mean, long otherwise.
func DirectionFor(zScore float64) Direction {
	if zScore > 0 {
		return ShortPremium
	}
	return LongPremium
}

// Candidate is one pair's divergence snapshot on a date.
type Candidate struct {
	PairID    string
	Direction Direction
	ZScore    float64
	Premium   float64
}

// Selection is the outcome of evaluating one date.
//
// Signal is the actionable pick and is nil unless the strongest divergence
// clears the entry threshold. Best is advisory only: the strongest divergence
// regardless of threshold, surfaced so consumers can suggest relaxing the
// threshold. Ranked lists every pair with a defined z-score, strongest first.
type Selection struct {
	Signal *Candidate
	Best   *Candidate
	Ranked []Candidate
}

// Selector picks at most one pair/direction per date.
type Selector struct {
	entryZ float64
}

// NewSelector creates a Selector with the given entry threshold.
func NewSelector(entryZ float64) *Selector {
	return &Selector{entryZ: entryZ}
}

// Select evaluates one date's indicator rows. Rows must be supplied in
// canonical pair order: exact |z| ties resolve to the earliest pair, so the
// result is reproducible across runs.
func (s *Selector) Select(rows []indicator.PairIndicator) Selection {
	var sel Selection
	for _, row := range rows {
		if !row.Tradeable() {
			continue
		}
		sel.Ranked = append(sel.Ranked, Candidate{
			PairID:    row.PairID,
			Direction: DirectionFor(row.ZScore),
			ZScore:    row.ZScore,
			Premium:   row.Premium,
		})
	}
	if len(sel.Ranked) == 0 {
		return sel
	}

	// Stable sort keeps canonical pair order among exact ties.
	sort.SliceStable(sel.Ranked, func(i, j int) bool {
		return math.Abs(sel.Ranked[i].ZScore) > math.Abs(sel.Ranked[j].ZScore)
	})

	best := sel.Ranked[0]
	sel.Best = &best
	if math.Abs(best.ZScore) > s.entryZ {
		qualifying := best
		sel.Signal = &qualifying
	}
	return sel
}
