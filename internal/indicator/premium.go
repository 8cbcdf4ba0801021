// Package indicator computes cross-exchange premiums and their rolling
// z-scores, the mean-reversion signal of the strategy.
package indicator

import (
	"math"
	"time"

	"github.com/your-org/premium-rev-bot/internal/config"
	"github.com/your-org/premium-rev-bot/internal/datastore"
)

// Pair identifies two exchange price columns forming a tradeable pair.
// The slice order produced by ResolvePairs is the canonical tie-break priority.
type Pair struct {
	ID         string
	HighColumn string
	LowColumn  string
}

// ResolvePairs converts the configured pair list into resolved Pairs,
// dropping any pair listed in exclude. Declaration order is preserved.
func ResolvePairs(confs []config.PairConf, exclude []string) []Pair {
	excluded := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}
	pairs := make([]Pair, 0, len(confs))
	for _, c := range confs {
		if excluded[c.ID] {
			continue
		}
		pairs = append(pairs, Pair{ID: c.ID, HighColumn: c.High, LowColumn: c.Low})
	}
	return pairs
}

// PairIndicator is one derived row per date per pair. Values that cannot be
// computed (missing prices, warm-up period, zero variance) are NaN.
type PairIndicator struct {
	Date        time.Time
	PairID      string
	PriceHigh   float64
	PriceLow    float64
	Premium     float64
	RollingMean float64
	RollingStd  float64
	ZScore      float64
}

// Tradeable reports whether this row may generate a signal.
func (pi PairIndicator) Tradeable() bool {
	return !math.IsNaN(pi.ZScore)
}

// Engine computes PairIndicator rows from raw price rows. It is a pure
// function of its inputs and configuration; no state survives a Compute call.
type Engine struct {
	pairs  []Pair
	window int
}

// NewEngine creates an Engine with the given pairs and rolling window size.
func NewEngine(pairs []Pair, window int) *Engine {
	return &Engine{pairs: pairs, window: window}
}

// MinRows is the minimum number of input rows required to produce at least one
// tradeable date: the warm-up window plus one.
func (e *Engine) MinRows() int {
	return e.window + 1
}

// Pairs returns the pairs in canonical order.
func (e *Engine) Pairs() []Pair {
	return e.pairs
}

// Compute derives premium, rolling statistics and z-score for every date and
// pair. The first `window` dates of the range never carry a defined z-score,
// even where the trailing window is already full: decisions on those dates
// would lean on a partially seeded baseline (look-ahead guard).
func (e *Engine) Compute(rows []datastore.PriceRow) *Series {
	s := &Series{
		pairs:  e.pairs,
		window: e.window,
		dates:  make([]time.Time, 0, len(rows)),
		byDate: make(map[time.Time]map[string]PairIndicator, len(rows)),
	}
	for _, row := range rows {
		s.dates = append(s.dates, row.Date)
		s.byDate[row.Date] = make(map[string]PairIndicator, len(e.pairs))
	}

	for _, pair := range e.pairs {
		premiums := make([]float64, len(rows))
		for i, row := range rows {
			premiums[i] = pairPremium(row, pair)
		}
		for i, row := range rows {
			ind := PairIndicator{
				Date:        row.Date,
				PairID:      pair.ID,
				Premium:     premiums[i],
				RollingMean: math.NaN(),
				RollingStd:  math.NaN(),
				ZScore:      math.NaN(),
			}
			ind.PriceHigh, _ = row.Price(pair.HighColumn)
			ind.PriceLow, _ = row.Price(pair.LowColumn)

			if i+1 >= e.window {
				mean, std := rollingStats(premiums[i+1-e.window : i+1])
				ind.RollingMean = mean
				ind.RollingStd = std
				// i >= window keeps the first `window` dates untradeable.
				if i >= e.window && !math.IsNaN(ind.Premium) && !math.IsNaN(std) && std > 0 {
					ind.ZScore = (ind.Premium - mean) / std
				}
			}
			s.byDate[row.Date][pair.ID] = ind
		}
	}
	return s
}

// pairPremium is (high-low)/low, NaN when either leg is missing.
func pairPremium(row datastore.PriceRow, pair Pair) float64 {
	high, okHigh := row.Price(pair.HighColumn)
	low, okLow := row.Price(pair.LowColumn)
	if !okHigh || !okLow {
		return math.NaN()
	}
	return (high - low) / low
}

// rollingStats returns the mean and sample standard deviation of the window.
// Any NaN inside the window poisons both results.
func rollingStats(window []float64) (mean, std float64) {
	n := len(window)
	if n < 2 {
		return math.NaN(), math.NaN()
	}
	sum := 0.0
	for _, v := range window {
		if math.IsNaN(v) {
			return math.NaN(), math.NaN()
		}
		sum += v
	}
	mean = sum / float64(n)

	variance := 0.0
	for _, v := range window {
		d := v - mean
		variance += d * d
	}
	variance /= float64(n - 1)
	return mean, math.Sqrt(variance)
}
