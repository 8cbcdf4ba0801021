package engine

import (
	"fmt"

	"github.com/your-org/premium-rev-bot/internal/config"
	"github.com/your-org/premium-rev-bot/internal/datastore"
	"github.com/your-org/premium-rev-bot/internal/indicator"
)

// Backtester wires the indicator engine and the simulator for a full run.
type Backtester struct {
	engine *indicator.Engine
	sim    *Simulator
}

// NewBacktester builds a Backtester from the application config. The config
// must already be valid; an invalid one is a programming mistake and errors.
func NewBacktester(cfg *config.Config) (*Backtester, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pairs := indicator.ResolvePairs(cfg.Pairs, cfg.ExcludePairs)
	if len(pairs) == 0 {
		return nil, fmt.Errorf("config: exclude_pairs removes every configured pair")
	}
	return &Backtester{
		engine: indicator.NewEngine(pairs, cfg.RollingWindow),
		sim:    NewSimulator(ParamsFromConfig(cfg)),
	}, nil
}

// Run executes a full backtest over the rows. Too little history is a data
// condition, reported as a failed Result rather than an error.
func (b *Backtester) Run(rows []datastore.PriceRow) *Result {
	if len(rows) < b.engine.MinRows() {
		return &Result{
			Success: false,
			Reason:  ReasonInsufficientData,
			Rows:    len(rows),
		}
	}
	series := b.engine.Compute(rows)
	return b.sim.Run(rows, series)
}

// Indicators exposes the computed indicator table for consumers that need the
// per-date rankings alongside the run result (e.g. the recommender).
func (b *Backtester) Indicators(rows []datastore.PriceRow) *indicator.Series {
	return b.engine.Compute(rows)
}

// MinRows is the minimum input size for a run to be able to trade.
func (b *Backtester) MinRows() int {
	return b.engine.MinRows()
}
