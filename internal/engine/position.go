package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/your-org/premium-rev-bot/internal/signal"
)

// ExitReason says which of the competing exit conditions closed a position.
type ExitReason string

const (
	// ExitZScoreReversion fires when the held pair's divergence has reverted
	// below the exit threshold.
	ExitZScoreReversion ExitReason = "z_score_reversion"
	// ExitStopLoss fires when the running net return breaches the stop.
	ExitStopLoss ExitReason = "stop_loss"
	// ExitMaxHolding fires when the position has been held too long.
	ExitMaxHolding ExitReason = "max_holding_days"
	// ExitMarkToMarket closes a still-open position at the end of the range,
	// only when the caller asked for it.
	ExitMarkToMarket ExitReason = "mark_to_market"
)

// Position is the single open position. It is created on entry and never
// mutated; closing converts it into a Trade.
type Position struct {
	PairID         string
	Direction      signal.Direction
	EntryDate      time.Time
	EntryPriceHigh float64
	EntryPriceLow  float64
}

// LegReturns computes the per-leg returns of the position at the given
// current prices. For short_premium the high leg was sold and the low leg
// bought at entry; long_premium mirrors both legs.
func (p *Position) LegReturns(currentHigh, currentLow float64) (retHigh, retLow float64) {
	if p.Direction == signal.ShortPremium {
		retHigh = (p.EntryPriceHigh - currentHigh) / p.EntryPriceHigh
		retLow = (currentLow - p.EntryPriceLow) / p.EntryPriceLow
	} else {
		retHigh = (currentHigh - p.EntryPriceHigh) / p.EntryPriceHigh
		retLow = (p.EntryPriceLow - currentLow) / p.EntryPriceLow
	}
	return retHigh, retLow
}

// GrossReturn is the equal-weight average of the two leg returns.
func (p *Position) GrossReturn(currentHigh, currentLow float64) float64 {
	retHigh, retLow := p.LegReturns(currentHigh, currentLow)
	return (retHigh + retLow) / 2
}

// String returns a string representation of the position.
func (p *Position) String() string {
	return fmt.Sprintf("Position{Pair: %s, Direction: %s, EntryDate: %s}",
		p.PairID, p.Direction, p.EntryDate.Format("2006-01-02"))
}

// Trade is the append-only record created when a position closes.
type Trade struct {
	EntryDate    time.Time        `json:"entry_date"`
	ExitDate     time.Time        `json:"exit_date"`
	HoldingDays  int              `json:"holding_days"`
	PairID       string           `json:"pair_id"`
	Direction    signal.Direction `json:"direction"`
	GrossReturn  float64          `json:"gross_return"`
	NetReturn    float64          `json:"net_return"`
	Profit       decimal.Decimal  `json:"profit"`
	CapitalAfter decimal.Decimal  `json:"capital_after"`
	ExitReason   ExitReason       `json:"exit_reason"`
}

// DailyCapitalRecord is one row of the equity curve: the capital after the
// date's evaluation, position open or not.
type DailyCapitalRecord struct {
	Date    time.Time       `json:"date"`
	Capital decimal.Decimal `json:"capital"`
}
