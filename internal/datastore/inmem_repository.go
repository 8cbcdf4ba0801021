package datastore

import (
	"context"
	"time"
)

// InMemPriceSource is an in-memory implementation of PriceSource for testing.
type InMemPriceSource struct {
	Rows []PriceRow
}

// NewInMemPriceSource creates a new InMemPriceSource over the given rows.
// Rows are assumed to be sorted by date.
func NewInMemPriceSource(rows []PriceRow) *InMemPriceSource {
	return &InMemPriceSource{Rows: rows}
}

// LoadPriceRows implements PriceSource.
func (s *InMemPriceSource) LoadPriceRows(ctx context.Context, asset string, start, end time.Time) ([]PriceRow, error) {
	return ClampRange(s.Rows, start, end), nil
}
