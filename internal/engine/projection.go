package engine

import (
	"time"

	"github.com/your-org/premium-rev-bot/internal/datastore"
	"github.com/your-org/premium-rev-bot/internal/indicator"
)

// Projection is the outcome of forward-running a single hypothetical position
// until its first exit. When no exit condition fires inside the loaded window
// the position is reported unrealized, with the running return as of the last
// evaluable date.
type Projection struct {
	Exited      bool       `json:"exited"`
	ExitDate    time.Time  `json:"exit_date,omitempty"`
	ExitReason  ExitReason `json:"exit_reason,omitempty"`
	GrossReturn float64    `json:"gross_return"`
	NetReturn   float64    `json:"net_return"`
	HoldingDays int        `json:"holding_days"`
}

// ProjectForward runs the exit state machine for one position over the dates
// strictly after its entry, using the same priority order and skip rules as a
// full simulation. It never mutates any ledger: the caller owns the
// interpretation of the projected return.
func (s *Simulator) ProjectForward(pos *Position, rows []datastore.PriceRow, series *indicator.Series) Projection {
	pairByID := make(map[string]indicator.Pair, len(series.Pairs()))
	for _, p := range series.Pairs() {
		pairByID[p.ID] = p
	}
	pair, ok := pairByID[pos.PairID]
	if !ok {
		return Projection{}
	}
	rowByDate := make(map[time.Time]datastore.PriceRow, len(rows))
	for _, r := range rows {
		rowByDate[r.Date] = r
	}

	var proj Projection
	for _, date := range series.TradeableDates() {
		if !date.After(pos.EntryDate) {
			continue
		}
		row, ok := rowByDate[date]
		if !ok {
			continue
		}
		ev, ok := s.evalExit(pos, pair, date, row, series)
		if !ok {
			continue // prices missing, keep holding
		}
		proj.GrossReturn = ev.GrossReturn
		proj.NetReturn = ev.NetReturn
		proj.HoldingDays = ev.HoldingDays
		if ev.Reason != "" {
			proj.Exited = true
			proj.ExitDate = date
			proj.ExitReason = ev.Reason
			return proj
		}
	}
	return proj
}
