package datastore

import (
	"context"
	"math"
	"time"
)

// PriceRow is one day of normalized prices, one value per exchange column.
// Missing quotes are stored as NaN so that gaps stay explicit.
type PriceRow struct {
	Date   time.Time
	Prices map[string]float64
}

// Price returns the price for the given exchange column and whether it is
// present and usable.
func (r PriceRow) Price(column string) (float64, bool) {
	p, ok := r.Prices[column]
	if !ok || math.IsNaN(p) || p <= 0 {
		return math.NaN(), false
	}
	return p, true
}

// PriceSource supplies aligned daily price rows for one asset.
// Implementations: CSV file, Postgres repository, in-memory fixture.
type PriceSource interface {
	LoadPriceRows(ctx context.Context, asset string, start, end time.Time) ([]PriceRow, error)
}

// ClampRange returns the sub-slice of rows whose dates fall inside [start, end].
// A zero start or end leaves that side unbounded. Rows must be sorted ascending.
func ClampRange(rows []PriceRow, start, end time.Time) []PriceRow {
	lo := 0
	hi := len(rows)
	if !start.IsZero() {
		for lo < hi && rows[lo].Date.Before(start) {
			lo++
		}
	}
	if !end.IsZero() {
		for hi > lo && rows[hi-1].Date.After(end) {
			hi--
		}
	}
	return rows[lo:hi]
}
