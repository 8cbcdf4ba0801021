// Package csvwriter emits the backtest output tables as CSV files.
package csvwriter

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/your-org/premium-rev-bot/internal/engine"
)

const dateLayout = "2006-01-02"

// Writer is a simple CSV writer.
type Writer struct {
	file   *os.File
	writer *csv.Writer
	logger *zap.Logger
	mu     sync.Mutex
}

// NewWriter creates a new CSV writer.
func NewWriter(filePath string, logger *zap.Logger) (*Writer, error) {
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV file: %w", err)
	}

	return &Writer{
		file:   file,
		writer: csv.NewWriter(file),
		logger: logger,
	}, nil
}

// Write writes a record to the CSV file.
func (w *Writer) Write(record []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record to CSV: %w", err)
	}
	return nil
}

// Flush flushes any buffered data to the underlying file.
func (w *Writer) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writer.Flush()
}

// Close closes the file.
func (w *Writer) Close() error {
	w.Flush()
	return w.file.Close()
}

// WriteTrades writes the trade table (one row per closed position).
func WriteTrades(filePath string, trades []engine.Trade, logger *zap.Logger) error {
	w, err := NewWriter(filePath, logger)
	if err != nil {
		return err
	}
	defer w.Close()

	header := []string{
		"entry_date", "exit_date", "holding_days", "pair_id", "direction",
		"gross_return", "net_return", "profit", "capital_after", "exit_reason",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, t := range trades {
		record := []string{
			t.EntryDate.Format(dateLayout),
			t.ExitDate.Format(dateLayout),
			strconv.Itoa(t.HoldingDays),
			t.PairID,
			t.Direction.String(),
			strconv.FormatFloat(t.GrossReturn, 'f', -1, 64),
			strconv.FormatFloat(t.NetReturn, 'f', -1, 64),
			t.Profit.String(),
			t.CapitalAfter.String(),
			string(t.ExitReason),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	logger.Info("Wrote trade table", zap.String("path", filePath), zap.Int("trades", len(trades)))
	return nil
}

// WriteEquityCurve writes the daily capital table (one row per simulated date).
func WriteEquityCurve(filePath string, curve []engine.DailyCapitalRecord, logger *zap.Logger) error {
	w, err := NewWriter(filePath, logger)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Write([]string{"date", "capital"}); err != nil {
		return err
	}
	for _, rec := range curve {
		record := []string{rec.Date.Format(dateLayout), rec.Capital.String()}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	logger.Info("Wrote equity curve", zap.String("path", filePath), zap.Int("rows", len(curve)))
	return nil
}
