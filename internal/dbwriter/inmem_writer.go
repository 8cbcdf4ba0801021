package dbwriter

import (
	"context"
	"sync"
)

// InMemWriter is an in-memory implementation of the ResultWriter interface for testing.
type InMemWriter struct {
	mu             sync.RWMutex
	Trades         []TradeRow
	CapitalRecords []CapitalRow
	Summaries      []SummaryRow
	IsClosed       bool
}

// NewInMemWriter creates a new InMemWriter.
func NewInMemWriter() *InMemWriter {
	return &InMemWriter{
		Trades:         make([]TradeRow, 0),
		CapitalRecords: make([]CapitalRow, 0),
		Summaries:      make([]SummaryRow, 0),
	}
}

// SaveTrade appends a trade row to the in-memory slice.
func (w *InMemWriter) SaveTrade(trade TradeRow) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Trades = append(w.Trades, trade)
}

// SaveCapitalRecord appends an equity-curve row to the in-memory slice.
func (w *InMemWriter) SaveCapitalRecord(rec CapitalRow) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.CapitalRecords = append(w.CapitalRecords, rec)
}

// SaveSummary appends a summary row to the in-memory slice.
func (w *InMemWriter) SaveSummary(ctx context.Context, summary SummaryRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Summaries = append(w.Summaries, summary)
	return nil
}

// Close marks the writer as closed.
func (w *InMemWriter) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.IsClosed = true
}

// Clear resets all the in-memory slices.
func (w *InMemWriter) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Trades = make([]TradeRow, 0)
	w.CapitalRecords = make([]CapitalRow, 0)
	w.Summaries = make([]SummaryRow, 0)
	w.IsClosed = false
}
