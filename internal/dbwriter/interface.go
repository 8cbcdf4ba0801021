package dbwriter

import (
	"context"
)

// ResultWriter defines the interface for persisting backtest output tables.
// This allows for mocking in tests.
type ResultWriter interface {
	SaveTrade(trade TradeRow)
	SaveCapitalRecord(rec CapitalRow)
	SaveSummary(ctx context.Context, summary SummaryRow) error
	Close()
}
