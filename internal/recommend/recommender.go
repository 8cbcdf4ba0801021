// Package recommend produces a forward-looking single-trade projection for
// one target date, reusing the indicator engine and the position state
// machine in a narrower mode.
package recommend

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/your-org/premium-rev-bot/internal/config"
	"github.com/your-org/premium-rev-bot/internal/datastore"
	"github.com/your-org/premium-rev-bot/internal/engine"
	"github.com/your-org/premium-rev-bot/internal/indicator"
	"github.com/your-org/premium-rev-bot/internal/signal"
)

// ReasonNoQualifyingPair marks a recommendation where no pair cleared the
// entry threshold. It is a valid terminal state, not an error.
const ReasonNoQualifyingPair = "no_qualifying_pair"

// ProjectedTrade is one recommended (or alternative) trade with its
// forward-run projection.
type ProjectedTrade struct {
	PairID              string            `json:"pair_id"`
	Direction           signal.Direction  `json:"direction"`
	ZScore              float64           `json:"z_score"`
	Premium             float64           `json:"premium"`
	ExpectedReturn      float64           `json:"expected_return"`
	ExpectedHoldingDays int               `json:"expected_holding_days"`
	ExpectedProfit      decimal.Decimal   `json:"expected_profit"`
	ExitReason          engine.ExitReason `json:"exit_reason,omitempty"`
	Exited              bool              `json:"exited"`
}

// Recommendation is the structured result for one target date. Business
// non-findings (no qualifying pair, insufficient data) are reported in the
// Success/Reason fields, never as errors.
type Recommendation struct {
	Success       bool               `json:"success"`
	Reason        string             `json:"reason,omitempty"`
	Rows          int                `json:"rows"`
	TargetDate    time.Time          `json:"target_date"`
	EvaluatedDate time.Time          `json:"evaluated_date"`
	DayDistance   int                `json:"day_distance"`
	Pick          *ProjectedTrade    `json:"pick,omitempty"`
	Alternatives  []ProjectedTrade   `json:"alternatives,omitempty"`
	Suggestion    *signal.Candidate  `json:"suggestion,omitempty"`
	Ranking       []signal.Candidate `json:"ranking,omitempty"`
}

// Recommender evaluates one date against the loaded window.
type Recommender struct {
	engine   *indicator.Engine
	sim      *engine.Simulator
	selector *signal.Selector
	params   engine.Params
}

// NewRecommender builds a Recommender from the application config.
func NewRecommender(cfg *config.Config) (*Recommender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pairs := indicator.ResolvePairs(cfg.Pairs, cfg.ExcludePairs)
	if len(pairs) == 0 {
		return nil, fmt.Errorf("config: exclude_pairs removes every configured pair")
	}
	params := engine.ParamsFromConfig(cfg)
	return &Recommender{
		engine:   indicator.NewEngine(pairs, cfg.RollingWindow),
		sim:      engine.NewSimulator(params),
		selector: signal.NewSelector(params.EntryZ),
		params:   params,
	}, nil
}

// Recommend evaluates targetDate over the loaded rows with the given capital.
// When targetDate itself has no tradeable row, the nearest available date is
// evaluated instead and the day distance reported.
func (r *Recommender) Recommend(rows []datastore.PriceRow, targetDate time.Time, capital decimal.Decimal) (*Recommendation, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("recommend: empty input data")
	}
	rec := &Recommendation{
		Rows:       len(rows),
		TargetDate: targetDate,
	}
	if len(rows) < r.engine.MinRows() {
		rec.Reason = engine.ReasonInsufficientData
		return rec, nil
	}

	series := r.engine.Compute(rows)
	dates := series.TradeableDates()
	if len(dates) == 0 {
		rec.Reason = engine.ReasonInsufficientData
		return rec, nil
	}

	evalDate, distance := nearestDate(dates, targetDate)
	rec.EvaluatedDate = evalDate
	rec.DayDistance = distance

	sel := r.selector.Select(series.ForDate(evalDate))
	rec.Ranking = sel.Ranked

	if sel.Signal == nil {
		rec.Success = true
		rec.Reason = ReasonNoQualifyingPair
		rec.Suggestion = sel.Best
		return rec, nil
	}

	// Forward-project the pick and up to two runner-ups.
	projected := make([]ProjectedTrade, 0, 3)
	for i, cand := range sel.Ranked {
		if i >= 3 {
			break
		}
		projected = append(projected, r.project(cand, evalDate, capital, rows, series))
	}
	rec.Success = true
	rec.Pick = &projected[0]
	rec.Alternatives = projected[1:]
	return rec, nil
}

// project forward-runs one hypothetical entry on evalDate to its first exit.
func (r *Recommender) project(cand signal.Candidate, evalDate time.Time, capital decimal.Decimal, rows []datastore.PriceRow, series *indicator.Series) ProjectedTrade {
	pt := ProjectedTrade{
		PairID:    cand.PairID,
		Direction: cand.Direction,
		ZScore:    cand.ZScore,
		Premium:   cand.Premium,
	}
	ind, ok := series.At(evalDate, cand.PairID)
	if !ok || math.IsNaN(ind.PriceHigh) || math.IsNaN(ind.PriceLow) {
		return pt
	}
	pos := &engine.Position{
		PairID:         cand.PairID,
		Direction:      cand.Direction,
		EntryDate:      evalDate,
		EntryPriceHigh: ind.PriceHigh,
		EntryPriceLow:  ind.PriceLow,
	}
	proj := r.sim.ProjectForward(pos, rows, series)
	pt.ExpectedReturn = proj.NetReturn
	pt.ExpectedHoldingDays = proj.HoldingDays
	pt.ExpectedProfit = capital.Mul(decimal.NewFromFloat(proj.NetReturn))
	pt.ExitReason = proj.ExitReason
	pt.Exited = proj.Exited
	return pt
}

// nearestDate picks the date closest to target; earlier wins exact ties.
func nearestDate(dates []time.Time, target time.Time) (time.Time, int) {
	best := dates[0]
	bestDist := dayDistance(dates[0], target)
	for _, d := range dates[1:] {
		if dist := dayDistance(d, target); dist < bestDist {
			best = d
			bestDist = dist
		}
	}
	return best, bestDist
}

func dayDistance(a, b time.Time) int {
	d := int(a.Sub(b).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}
