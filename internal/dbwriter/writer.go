// Package dbwriter persists the backtest output tables to TimescaleDB.
// Schema management is owned by the ingestion side; this writer only inserts.
package dbwriter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/your-org/premium-rev-bot/internal/config"
	"github.com/your-org/premium-rev-bot/internal/engine"
	"github.com/your-org/premium-rev-bot/internal/report"
)

// TradeRow is one closed trade as stored in the backtest_trades table.
type TradeRow struct {
	RunID        uuid.UUID `db:"run_id"`
	Asset        string    `db:"asset"`
	EntryDate    time.Time `db:"entry_date"`
	ExitDate     time.Time `db:"exit_date"`
	HoldingDays  int       `db:"holding_days"`
	Pair         string    `db:"pair"`
	Direction    string    `db:"direction"`
	GrossReturn  float64   `db:"gross_return"`
	NetReturn    float64   `db:"net_return"`
	Profit       float64   `db:"profit"`
	CapitalAfter float64   `db:"capital_after"`
	ExitReason   string    `db:"exit_reason"`
}

// NewTradeRow converts a domain trade into its storage row.
func NewTradeRow(runID uuid.UUID, asset string, t engine.Trade) TradeRow {
	return TradeRow{
		RunID:        runID,
		Asset:        asset,
		EntryDate:    t.EntryDate,
		ExitDate:     t.ExitDate,
		HoldingDays:  t.HoldingDays,
		Pair:         t.PairID,
		Direction:    t.Direction.String(),
		GrossReturn:  t.GrossReturn,
		NetReturn:    t.NetReturn,
		Profit:       t.Profit.InexactFloat64(),
		CapitalAfter: t.CapitalAfter.InexactFloat64(),
		ExitReason:   string(t.ExitReason),
	}
}

// CapitalRow is one equity-curve point as stored in the equity_curve table.
type CapitalRow struct {
	RunID   uuid.UUID `db:"run_id"`
	Asset   string    `db:"asset"`
	Date    time.Time `db:"date"`
	Capital float64   `db:"capital"`
}

// NewCapitalRow converts a domain daily capital record into its storage row.
func NewCapitalRow(runID uuid.UUID, asset string, rec engine.DailyCapitalRecord) CapitalRow {
	return CapitalRow{
		RunID:   runID,
		Asset:   asset,
		Date:    rec.Date,
		Capital: rec.Capital.InexactFloat64(),
	}
}

// SummaryRow is one run's metrics record as stored in backtest_metrics.
type SummaryRow struct {
	RunID            uuid.UUID `db:"run_id"`
	Asset            string    `db:"asset"`
	CreatedAt        time.Time `db:"created_at"`
	StartDate        time.Time `db:"start_date"`
	EndDate          time.Time `db:"end_date"`
	TotalTrades      int       `db:"total_trades"`
	FinalReturn      float64   `db:"final_return"`
	AnnualizedReturn float64   `db:"annualized_return"`
	WinRate          float64   `db:"win_rate"`
	SharpeRatio      float64   `db:"sharpe_ratio"`
	MaxDrawdown      float64   `db:"mdd"`
	MaxHoldingDays   int       `db:"max_holding_days"`
	AvgHoldingDays   float64   `db:"avg_holding_days"`
	BenchmarkReturn  float64   `db:"benchmark_return"`
	ExcessReturn     float64   `db:"excess_return"`
}

// NewSummaryRow converts a report summary into its storage row.
func NewSummaryRow(runID uuid.UUID, asset string, s report.Summary) SummaryRow {
	return SummaryRow{
		RunID:            runID,
		Asset:            asset,
		CreatedAt:        time.Now().UTC(),
		StartDate:        s.StartDate,
		EndDate:          s.EndDate,
		TotalTrades:      s.TotalTrades,
		FinalReturn:      s.FinalReturn,
		AnnualizedReturn: s.AnnualizedReturn,
		WinRate:          s.WinRate,
		SharpeRatio:      s.SharpeRatio,
		MaxDrawdown:      s.MaxDrawdown,
		MaxHoldingDays:   s.MaxHoldingDays,
		AvgHoldingDays:   s.AvgHoldingDays,
		BenchmarkReturn:  s.BenchmarkReturn,
		ExcessReturn:     s.ExcessReturn,
	}
}

// Pool is an interface that abstracts the pgxpool.Pool for testability.
type Pool interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Close()
}

// TimescaleWriter batches trade and equity rows and flushes them with
// CopyFrom, either when a buffer fills or on a fixed interval.
type TimescaleWriter struct {
	pool          Pool
	logger        *zap.Logger
	config        config.DBWriterConf
	tradeBuffer   []TradeRow
	capitalBuffer []CapitalRow
	bufferMutex   sync.Mutex
	flushTicker   *time.Ticker
	shutdownChan  chan struct{}
}

// NewTimescaleWriter creates a writer over an externally provided pool.
// A nil pool yields a no-op writer, so callers can wire persistence
// unconditionally and let deployment config decide.
func NewTimescaleWriter(pool Pool, writerConfig config.DBWriterConf, logger *zap.Logger) (ResultWriter, error) {
	if pool == nil {
		logger.Info("pgxpool.Pool is nil, creating dummy result writer.")
		return &TimescaleWriter{
			pool:         nil,
			logger:       logger,
			shutdownChan: make(chan struct{}),
		}, nil
	}

	if writerConfig.WriteIntervalSeconds <= 0 {
		logger.Warn("WriteIntervalSeconds is zero or negative, defaulting to 1s.", zap.Int("originalValue", writerConfig.WriteIntervalSeconds))
		writerConfig.WriteIntervalSeconds = 1
	}
	if writerConfig.BatchSize <= 0 {
		logger.Warn("BatchSize is zero or negative, defaulting to 100.", zap.Int("originalValue", writerConfig.BatchSize))
		writerConfig.BatchSize = 100
	}

	writer := &TimescaleWriter{
		pool:          pool,
		logger:        logger,
		config:        writerConfig,
		tradeBuffer:   make([]TradeRow, 0, writerConfig.BatchSize),
		capitalBuffer: make([]CapitalRow, 0, writerConfig.BatchSize),
		shutdownChan:  make(chan struct{}),
	}

	writer.flushTicker = time.NewTicker(time.Duration(writerConfig.WriteIntervalSeconds) * time.Second)
	go writer.run()
	logger.Info("Started batched backtest result writer")

	return writer, nil
}

// Close flushes the buffers and closes the pool.
func (w *TimescaleWriter) Close() {
	if w.pool == nil {
		w.logger.Info("Closing dummy result writer.")
		return
	}

	w.logger.Info("Closing backtest result writer...")
	close(w.shutdownChan)
	w.flushTicker.Stop()

	// Final flush
	w.flushBuffers()

	w.pool.Close()
	w.logger.Info("Database connection pool closed")
}

func (w *TimescaleWriter) run() {
	for {
		select {
		case <-w.flushTicker.C:
			w.flushBuffers()
		case <-w.shutdownChan:
			return
		}
	}
}

// SaveTrade adds a trade row to the write buffer.
func (w *TimescaleWriter) SaveTrade(trade TradeRow) {
	if w.pool == nil {
		return
	}

	w.bufferMutex.Lock()
	w.tradeBuffer = append(w.tradeBuffer, trade)
	shouldFlush := len(w.tradeBuffer) >= w.config.BatchSize
	w.bufferMutex.Unlock()

	if shouldFlush {
		w.flushBuffers()
	}
}

// SaveCapitalRecord adds an equity-curve row to the write buffer.
func (w *TimescaleWriter) SaveCapitalRecord(rec CapitalRow) {
	if w.pool == nil {
		return
	}

	w.bufferMutex.Lock()
	w.capitalBuffer = append(w.capitalBuffer, rec)
	shouldFlush := len(w.capitalBuffer) >= w.config.BatchSize
	w.bufferMutex.Unlock()

	if shouldFlush {
		w.flushBuffers()
	}
}

func (w *TimescaleWriter) flushBuffers() {
	if w.pool == nil {
		return
	}
	w.bufferMutex.Lock()
	defer w.bufferMutex.Unlock()

	if len(w.tradeBuffer) > 0 {
		w.batchInsertTrades(context.Background(), w.tradeBuffer)
		w.tradeBuffer = w.tradeBuffer[:0]
	}

	if len(w.capitalBuffer) > 0 {
		w.batchInsertCapitalRecords(context.Background(), w.capitalBuffer)
		w.capitalBuffer = w.capitalBuffer[:0]
	}
}

func (w *TimescaleWriter) batchInsertTrades(ctx context.Context, trades []TradeRow) {
	w.logger.Debug("Flushing trades", zap.Int("count", len(trades)))
	_, err := w.pool.CopyFrom(
		ctx,
		pgx.Identifier{"backtest_trades"},
		[]string{"run_id", "asset", "entry_date", "exit_date", "holding_days", "pair", "direction", "gross_return", "net_return", "profit", "capital_after", "exit_reason"},
		pgx.CopyFromRows(toTradeInterfaces(trades)),
	)
	if err != nil {
		w.logger.Error("Failed to batch insert trades", zap.Error(err))
	}
}

func (w *TimescaleWriter) batchInsertCapitalRecords(ctx context.Context, recs []CapitalRow) {
	w.logger.Debug("Flushing equity curve", zap.Int("count", len(recs)))
	_, err := w.pool.CopyFrom(
		ctx,
		pgx.Identifier{"equity_curve"},
		[]string{"run_id", "asset", "date", "capital"},
		pgx.CopyFromRows(toCapitalInterfaces(recs)),
	)
	if err != nil {
		w.logger.Error("Failed to batch insert equity curve", zap.Error(err))
	}
}

func toTradeInterfaces(trades []TradeRow) [][]interface{} {
	rows := make([][]interface{}, len(trades))
	for i, t := range trades {
		rows[i] = []interface{}{t.RunID, t.Asset, t.EntryDate, t.ExitDate, t.HoldingDays, t.Pair, t.Direction, t.GrossReturn, t.NetReturn, t.Profit, t.CapitalAfter, t.ExitReason}
	}
	return rows
}

func toCapitalInterfaces(recs []CapitalRow) [][]interface{} {
	rows := make([][]interface{}, len(recs))
	for i, r := range recs {
		rows[i] = []interface{}{r.RunID, r.Asset, r.Date, r.Capital}
	}
	return rows
}

// SaveSummary inserts a single run summary into backtest_metrics.
func (w *TimescaleWriter) SaveSummary(ctx context.Context, summary SummaryRow) error {
	if w.pool == nil {
		w.logger.Debug("Skipping summary save for dummy writer", zap.Any("summary", summary))
		return nil
	}

	query := `INSERT INTO backtest_metrics (
	            run_id, asset, created_at, start_date, end_date, total_trades,
	            final_return, annualized_return, win_rate, sharpe_ratio, mdd,
	            max_holding_days, avg_holding_days, benchmark_return, excess_return
	          ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := w.pool.Exec(ctx, query,
		summary.RunID, summary.Asset, summary.CreatedAt, summary.StartDate, summary.EndDate,
		summary.TotalTrades, summary.FinalReturn, summary.AnnualizedReturn, summary.WinRate,
		summary.SharpeRatio, summary.MaxDrawdown, summary.MaxHoldingDays, summary.AvgHoldingDays,
		summary.BenchmarkReturn, summary.ExcessReturn,
	)
	if err != nil {
		w.logger.Error("Failed to insert run summary", zap.Error(err), zap.Any("summary", summary))
		return fmt.Errorf("failed to insert run summary: %w", err)
	}
	w.logger.Debug("Saved run summary to DB.", zap.String("run_id", summary.RunID.String()))
	return nil
}
