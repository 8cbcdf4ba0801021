package datastore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository handles database operations for fetching backtest price data.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// LoadPriceRows fetches daily normalized prices for the asset within the given
// date range and pivots them into one PriceRow per day. The schema is owned by
// the ingestion side; this repository only reads
// (time, asset, exchange, price) tuples.
func (r *Repository) LoadPriceRows(ctx context.Context, asset string, start, end time.Time) ([]PriceRow, error) {
	const query = `
		SELECT time, exchange, price
		FROM exchange_prices
		WHERE asset = $1
		  AND ($2::timestamptz IS NULL OR time >= $2)
		  AND ($3::timestamptz IS NULL OR time <= $3)
		ORDER BY time ASC
	`
	rows, err := r.db.Query(ctx, query, asset, nullable(start), nullable(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query exchange prices: %w", err)
	}
	defer rows.Close()

	byDate := make(map[time.Time]map[string]float64)
	for rows.Next() {
		var (
			ts       time.Time
			exchange string
			price    decimal.Decimal
		)
		if err := rows.Scan(&ts, &exchange, &price); err != nil {
			return nil, fmt.Errorf("failed to scan price row: %w", err)
		}
		day := ts.UTC().Truncate(24 * time.Hour)
		if byDate[day] == nil {
			byDate[day] = make(map[string]float64)
		}
		p := price.InexactFloat64()
		if p <= 0 {
			p = math.NaN()
		}
		byDate[day][exchange] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price rows: %w", err)
	}

	out := make([]PriceRow, 0, len(byDate))
	for day, prices := range byDate {
		out = append(out, PriceRow{Date: day, Prices: prices})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func nullable(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
