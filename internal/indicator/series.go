package indicator

import (
	"sort"
	"time"
)

// Series is the per-date, per-pair indicator table produced by the Engine.
// It is read-only after construction.
type Series struct {
	pairs  []Pair
	window int
	dates  []time.Time
	byDate map[time.Time]map[string]PairIndicator
}

// NewSeries builds a Series from precomputed indicator rows. Rows are keyed by
// (date, pair); later duplicates overwrite earlier ones. The warm-up trim is
// assumed to have been applied by the producer.
func NewSeries(pairs []Pair, indicators []PairIndicator) *Series {
	s := &Series{
		pairs:  pairs,
		byDate: make(map[time.Time]map[string]PairIndicator),
	}
	for _, ind := range indicators {
		if s.byDate[ind.Date] == nil {
			s.byDate[ind.Date] = make(map[string]PairIndicator, len(pairs))
			s.dates = append(s.dates, ind.Date)
		}
		s.byDate[ind.Date][ind.PairID] = ind
	}
	sort.Slice(s.dates, func(i, j int) bool { return s.dates[i].Before(s.dates[j]) })
	return s
}

// Pairs returns the pairs in canonical tie-break order.
func (s *Series) Pairs() []Pair {
	return s.pairs
}

// Dates returns every date covered by the series in ascending order,
// including the warm-up period.
func (s *Series) Dates() []time.Time {
	return s.dates
}

// TradeableDates returns the dates eligible for simulation: everything after
// the first `window` rows.
func (s *Series) TradeableDates() []time.Time {
	if s.window >= len(s.dates) {
		return nil
	}
	return s.dates[s.window:]
}

// At returns the indicator row for one date and pair.
func (s *Series) At(date time.Time, pairID string) (PairIndicator, bool) {
	row, ok := s.byDate[date]
	if !ok {
		return PairIndicator{}, false
	}
	ind, ok := row[pairID]
	return ind, ok
}

// ForDate returns the indicator rows of all pairs on one date, in canonical
// pair order. Pairs with no row on the date are skipped.
func (s *Series) ForDate(date time.Time) []PairIndicator {
	row, ok := s.byDate[date]
	if !ok {
		return nil
	}
	out := make([]PairIndicator, 0, len(s.pairs))
	for _, p := range s.pairs {
		if ind, ok := row[p.ID]; ok {
			out = append(out, ind)
		}
	}
	return out
}
