// Package engine owns the position state machine and the capital ledger of a
// single backtest run.
package engine

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/your-org/premium-rev-bot/internal/config"
	"github.com/your-org/premium-rev-bot/internal/datastore"
	"github.com/your-org/premium-rev-bot/internal/indicator"
	"github.com/your-org/premium-rev-bot/internal/signal"
	"github.com/your-org/premium-rev-bot/pkg/logger"
)

// ReasonInsufficientData is set on Result.Reason when the input has fewer
// rows than the rolling window plus one.
const ReasonInsufficientData = "insufficient_data"

// Params are the simulation parameters of one run.
type Params struct {
	InitialCapital decimal.Decimal
	FeeRate        float64
	Slippage       float64
	EntryZ         float64
	ExitZ          float64
	StopLoss       float64
	MaxHoldingDays int
	MarkToMarket   bool
}

// ParamsFromConfig derives simulation parameters from the application config.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		InitialCapital: decimal.NewFromFloat(cfg.InitialCapital),
		FeeRate:        cfg.FeeRate,
		Slippage:       cfg.Slippage,
		EntryZ:         cfg.EntryZ,
		ExitZ:          cfg.ExitZ,
		StopLoss:       cfg.StopLoss,
		MaxHoldingDays: cfg.MaxHoldingDays,
		MarkToMarket:   bool(cfg.MarkToMarket),
	}
}

// CostRate is the per-side combined fee and slippage. A round trip is charged
// once per trade at CostRate*2.
func (p Params) CostRate() float64 {
	return p.FeeRate + p.Slippage
}

// Result carries the three output tables of a run plus its terminal state.
// Failure to proceed on data grounds is reported here, never as an error.
type Result struct {
	Success        bool                 `json:"success"`
	Reason         string               `json:"reason,omitempty"`
	Rows           int                  `json:"rows"`
	RunID          uuid.UUID            `json:"run_id"`
	Trades         []Trade              `json:"trades"`
	DailyCapital   []DailyCapitalRecord `json:"daily_capital"`
	OpenPosition   *Position            `json:"open_position,omitempty"`
	InitialCapital decimal.Decimal      `json:"initial_capital"`
	FinalCapital   decimal.Decimal      `json:"final_capital"`
}

// Simulator runs the position state machine over a date range. Each run owns
// its capital ledger exclusively, so independent runs are safe to execute in
// parallel across goroutines or processes.
type Simulator struct {
	params   Params
	selector *signal.Selector
}

// NewSimulator creates a Simulator.
func NewSimulator(params Params) *Simulator {
	return &Simulator{
		params:   params,
		selector: signal.NewSelector(params.EntryZ),
	}
}

// run-local mutable state: the ledger and the single open position.
type runState struct {
	capital decimal.Decimal
	pos     *Position
	trades  []Trade
	curve   []DailyCapitalRecord
}

// Run walks the tradeable dates of the series strictly in ascending order.
// Exactly one transition is evaluated per date: entry when flat, otherwise the
// three exit conditions in priority order. A decision on date t only sees
// information up to and including t.
func (s *Simulator) Run(rows []datastore.PriceRow, series *indicator.Series) *Result {
	result := &Result{
		Success:        true,
		Rows:           len(rows),
		RunID:          uuid.New(),
		InitialCapital: s.params.InitialCapital,
	}

	pairByID := make(map[string]indicator.Pair, len(series.Pairs()))
	for _, p := range series.Pairs() {
		pairByID[p.ID] = p
	}
	rowByDate := make(map[time.Time]datastore.PriceRow, len(rows))
	for _, r := range rows {
		rowByDate[r.Date] = r
	}

	st := &runState{capital: s.params.InitialCapital}
	for _, date := range series.TradeableDates() {
		row, ok := rowByDate[date]
		if !ok {
			continue
		}
		if st.pos == nil {
			s.tryEnter(st, date, series)
		} else {
			s.tryExit(st, date, row, series, pairByID)
		}
		st.curve = append(st.curve, DailyCapitalRecord{Date: date, Capital: st.capital})
	}

	if st.pos != nil && s.params.MarkToMarket {
		s.closeMarkToMarket(st, rowByDate, pairByID)
	}

	result.Trades = st.trades
	result.DailyCapital = st.curve
	result.OpenPosition = st.pos
	result.FinalCapital = st.capital
	return result
}

// tryEnter opens a position when the selector emits a qualifying signal.
func (s *Simulator) tryEnter(st *runState, date time.Time, series *indicator.Series) {
	sel := s.selector.Select(series.ForDate(date))
	if sel.Signal == nil {
		return
	}
	ind, ok := series.At(date, sel.Signal.PairID)
	if !ok || math.IsNaN(ind.PriceHigh) || math.IsNaN(ind.PriceLow) {
		return
	}
	st.pos = &Position{
		PairID:         sel.Signal.PairID,
		Direction:      sel.Signal.Direction,
		EntryDate:      date,
		EntryPriceHigh: ind.PriceHigh,
		EntryPriceLow:  ind.PriceLow,
	}
	logger.Debugf("Opened %s on %s (z=%.2f, premium=%.4f)",
		sel.Signal.Direction, sel.Signal.PairID, sel.Signal.ZScore, sel.Signal.Premium)
}

// tryExit evaluates the three exit conditions in strict priority order and
// fires the first one that holds. A date with missing prices for the held
// pair is skipped entirely: the position is carried, capital unchanged.
func (s *Simulator) tryExit(st *runState, date time.Time, row datastore.PriceRow, series *indicator.Series, pairByID map[string]indicator.Pair) {
	pair, ok := pairByID[st.pos.PairID]
	if !ok {
		return
	}
	ev, ok := s.evalExit(st.pos, pair, date, row, series)
	if !ok {
		logger.Debugf("Skipping exit evaluation on %s: prices missing for %s",
			date.Format("2006-01-02"), pair.ID)
		return
	}
	if ev.Reason == "" {
		return
	}
	s.close(st, date, ev.GrossReturn, ev.NetReturn, ev.HoldingDays, ev.Reason)
}

// exitEval is one date's exit check for a held position.
type exitEval struct {
	Reason      ExitReason // empty when no condition fired
	GrossReturn float64
	NetReturn   float64
	HoldingDays int
}

// evalExit applies the three exit conditions in strict priority order.
// ok is false when the date lacks usable prices for the pair, in which case
// the date must be treated as "continue holding".
func (s *Simulator) evalExit(pos *Position, pair indicator.Pair, date time.Time, row datastore.PriceRow, series *indicator.Series) (exitEval, bool) {
	currentHigh, okHigh := row.Price(pair.HighColumn)
	currentLow, okLow := row.Price(pair.LowColumn)
	if !okHigh || !okLow {
		return exitEval{}, false
	}

	ev := exitEval{
		GrossReturn: pos.GrossReturn(currentHigh, currentLow),
		HoldingDays: daysBetween(pos.EntryDate, date),
	}
	ev.NetReturn = ev.GrossReturn - s.params.CostRate()*2

	ind, haveInd := series.At(date, pos.PairID)
	switch {
	case haveInd && !math.IsNaN(ind.ZScore) && math.Abs(ind.ZScore) < math.Abs(s.params.ExitZ):
		ev.Reason = ExitZScoreReversion
	case ev.NetReturn <= s.params.StopLoss:
		ev.Reason = ExitStopLoss
	case ev.HoldingDays >= s.params.MaxHoldingDays:
		ev.Reason = ExitMaxHolding
	}
	return ev, true
}

// close realizes the position: compounds the ledger and appends the Trade.
func (s *Simulator) close(st *runState, date time.Time, grossReturn, netReturn float64, holdingDays int, reason ExitReason) {
	profit := st.capital.Mul(decimal.NewFromFloat(netReturn))
	st.capital = st.capital.Add(profit)
	st.trades = append(st.trades, Trade{
		EntryDate:    st.pos.EntryDate,
		ExitDate:     date,
		HoldingDays:  holdingDays,
		PairID:       st.pos.PairID,
		Direction:    st.pos.Direction,
		GrossReturn:  grossReturn,
		NetReturn:    netReturn,
		Profit:       profit,
		CapitalAfter: st.capital,
		ExitReason:   reason,
	})
	logger.Debugf("Closed %s on %s: reason=%s net=%.4f capital=%s",
		st.pos.PairID, date.Format("2006-01-02"), reason, netReturn, st.capital.StringFixed(0))
	st.pos = nil
}

// closeMarkToMarket realizes a position still open at the end of the range at
// the last date with usable prices, and restates the equity curve's tail.
func (s *Simulator) closeMarkToMarket(st *runState, rowByDate map[time.Time]datastore.PriceRow, pairByID map[string]indicator.Pair) {
	pair, ok := pairByID[st.pos.PairID]
	if !ok || len(st.curve) == 0 {
		return
	}
	for i := len(st.curve) - 1; i >= 0; i-- {
		date := st.curve[i].Date
		row, ok := rowByDate[date]
		if !ok {
			continue
		}
		currentHigh, okHigh := row.Price(pair.HighColumn)
		currentLow, okLow := row.Price(pair.LowColumn)
		if !okHigh || !okLow {
			continue
		}
		grossReturn := st.pos.GrossReturn(currentHigh, currentLow)
		netReturn := grossReturn - s.params.CostRate()*2
		s.close(st, date, grossReturn, netReturn, daysBetween(st.pos.EntryDate, date), ExitMarkToMarket)
		for j := i; j < len(st.curve); j++ {
			st.curve[j].Capital = st.capital
		}
		return
	}
}

// daysBetween is the whole-day distance between two dates.
func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
