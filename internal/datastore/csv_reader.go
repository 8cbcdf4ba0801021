package datastore

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/your-org/premium-rev-bot/internal/config"
	"github.com/your-org/premium-rev-bot/pkg/logger"
)

// CSVPriceSource loads daily price rows from a wide CSV file:
// a "date" column followed by one price column per exchange, plus an
// optional FX-rate column used to normalize cross-currency columns.
type CSVPriceSource struct {
	FilePath string
	FX       config.FXConf
}

// NewCSVPriceSource creates a CSVPriceSource for the given file.
func NewCSVPriceSource(filePath string, fx config.FXConf) *CSVPriceSource {
	return &CSVPriceSource{FilePath: filePath, FX: fx}
}

// LoadPriceRows implements PriceSource. The asset argument is ignored; a CSV
// file carries a single asset. Rows outside [start, end] are dropped.
func (s *CSVPriceSource) LoadPriceRows(ctx context.Context, asset string, start, end time.Time) ([]PriceRow, error) {
	rows, err := LoadPriceRowsFromCSV(s.FilePath, s.FX)
	if err != nil {
		return nil, err
	}
	return ClampRange(rows, start, end), nil
}

// LoadPriceRowsFromCSV reads an entire price CSV into memory and returns it as
// a slice of PriceRow sorted by date. The file is expected to have a header
// whose first column is "date"; every other column is treated as a price
// series. Blank cells become NaN. If fx.Column is set, that column is
// forward-filled for gaps, multiplied into the fx.AppliesTo columns, and
// removed from the returned price maps.
func LoadPriceRowsFromCSV(filePath string, fx config.FXConf) ([]PriceRow, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []PriceRow{}, nil // Empty file is okay
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	if len(header) < 2 || !strings.EqualFold(strings.TrimSpace(header[0]), "date") {
		return nil, fmt.Errorf("csv header must start with a date column, got %q", header)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	var rows []PriceRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv record: %w", err)
		}
		if len(record) != len(columns) {
			logger.Warnf("Skipping record due to invalid number of columns: expected %d, got %d", len(columns), len(record))
			continue
		}

		date, err := parseDate(record[0])
		if err != nil {
			logger.Warnf("Skipping record due to date parse error: %v", err)
			continue
		}

		prices := make(map[string]float64, len(columns)-1)
		for i := 1; i < len(columns); i++ {
			cell := strings.TrimSpace(record[i])
			if cell == "" {
				prices[columns[i]] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				logger.Warnf("Treating unparseable cell %q in column %q as missing: %v", cell, columns[i], err)
				v = math.NaN()
			}
			prices[columns[i]] = v
		}
		rows = append(rows, PriceRow{Date: date, Prices: prices})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })

	if fx.Column != "" {
		applyFX(rows, fx)
	}

	logger.Infof("Loaded %d price rows from %s", len(rows), filePath)
	return rows, nil
}

// applyFX forward-fills the FX column and converts the configured
// cross-currency columns into the common currency in place.
func applyFX(rows []PriceRow, fx config.FXConf) {
	lastRate := math.NaN()
	for _, row := range rows {
		rate, ok := row.Prices[fx.Column]
		if !ok || math.IsNaN(rate) {
			rate = lastRate // Forward-fill gaps
		} else {
			lastRate = rate
		}
		for _, col := range fx.AppliesTo {
			if p, ok := row.Prices[col]; ok && !math.IsNaN(p) && !math.IsNaN(rate) {
				row.Prices[col] = p * rate
			} else if ok && math.IsNaN(rate) {
				// No rate seen yet, the quote cannot be normalized.
				row.Prices[col] = math.NaN()
			}
		}
		delete(row.Prices, fx.Column)
	}
}

func parseDate(dateStr string) (time.Time, error) {
	s := strings.TrimSpace(dateStr)
	for _, layout := range []string{"2006-01-02", "2006/01/02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("could not parse date '%s' with any known format", s)
}
