package dbwriter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/premium-rev-bot/internal/config"
	"github.com/your-org/premium-rev-bot/internal/engine"
	"github.com/your-org/premium-rev-bot/internal/report"
	"github.com/your-org/premium-rev-bot/internal/signal"
)

// mockPool records CopyFrom and Exec calls instead of talking to a database.
type mockPool struct {
	mu        sync.Mutex
	copyCalls []copyCall
	execSQL   []string
	closed    bool
}

type copyCall struct {
	table   string
	columns []string
	rows    int
}

func (m *mockPool) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for rowSrc.Next() {
		n++
	}
	m.copyCalls = append(m.copyCalls, copyCall{table: tableName.Sanitize(), columns: columnNames, rows: n})
	return int64(n), nil
}

func (m *mockPool) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execSQL = append(m.execSQL, sql)
	return pgconn.CommandTag{}, nil
}

func (m *mockPool) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func testTradeRow(runID uuid.UUID) TradeRow {
	return NewTradeRow(runID, "BTC", engine.Trade{
		EntryDate:    time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		ExitDate:     time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		HoldingDays:  5,
		PairID:       "upbit_binance",
		Direction:    signal.ShortPremium,
		GrossReturn:  0.02,
		NetReturn:    0.0186,
		Profit:       decimal.NewFromInt(1_860_000),
		CapitalAfter: decimal.NewFromInt(101_860_000),
		ExitReason:   engine.ExitZScoreReversion,
	})
}

func TestNewTradeRow(t *testing.T) {
	runID := uuid.New()
	row := testTradeRow(runID)

	assert.Equal(t, runID, row.RunID)
	assert.Equal(t, "BTC", row.Asset)
	assert.Equal(t, "upbit_binance", row.Pair)
	assert.Equal(t, "short_premium", row.Direction)
	assert.Equal(t, "z_score_reversion", row.ExitReason)
	assert.Equal(t, 1_860_000.0, row.Profit)
	assert.Equal(t, 101_860_000.0, row.CapitalAfter)
}

func TestNewCapitalRow(t *testing.T) {
	runID := uuid.New()
	row := NewCapitalRow(runID, "BTC", engine.DailyCapitalRecord{
		Date:    time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Capital: decimal.NewFromInt(100_000_000),
	})

	assert.Equal(t, runID, row.RunID)
	assert.Equal(t, 100_000_000.0, row.Capital)
}

func TestNewSummaryRow(t *testing.T) {
	runID := uuid.New()
	row := NewSummaryRow(runID, "BTC", report.Summary{
		TotalTrades: 4,
		FinalReturn: 0.05,
		WinRate:     0.75,
	})

	assert.Equal(t, runID, row.RunID)
	assert.Equal(t, 4, row.TotalTrades)
	assert.Equal(t, 0.05, row.FinalReturn)
	assert.False(t, row.CreatedAt.IsZero())
}

func TestTimescaleWriter_FlushesWhenBatchFills(t *testing.T) {
	pool := &mockPool{}
	w, err := NewTimescaleWriter(pool, config.DBWriterConf{BatchSize: 2, WriteIntervalSeconds: 3600}, zap.NewNop())
	require.NoError(t, err)
	defer w.Close()

	runID := uuid.New()
	w.SaveTrade(testTradeRow(runID))

	pool.mu.Lock()
	assert.Empty(t, pool.copyCalls, "below batch size, nothing flushed yet")
	pool.mu.Unlock()

	w.SaveTrade(testTradeRow(runID))

	pool.mu.Lock()
	require.Len(t, pool.copyCalls, 1)
	call := pool.copyCalls[0]
	pool.mu.Unlock()
	assert.Equal(t, `"backtest_trades"`, call.table)
	assert.Equal(t, 2, call.rows)
	assert.Contains(t, call.columns, "exit_reason")
}

func TestTimescaleWriter_CloseFlushesRemainder(t *testing.T) {
	pool := &mockPool{}
	w, err := NewTimescaleWriter(pool, config.DBWriterConf{BatchSize: 100, WriteIntervalSeconds: 3600}, zap.NewNop())
	require.NoError(t, err)

	runID := uuid.New()
	w.SaveTrade(testTradeRow(runID))
	w.SaveCapitalRecord(NewCapitalRow(runID, "BTC", engine.DailyCapitalRecord{
		Date:    time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Capital: decimal.NewFromInt(100_000_000),
	}))
	w.Close()

	pool.mu.Lock()
	defer pool.mu.Unlock()
	require.Len(t, pool.copyCalls, 2)
	assert.Equal(t, `"backtest_trades"`, pool.copyCalls[0].table)
	assert.Equal(t, `"equity_curve"`, pool.copyCalls[1].table)
	assert.True(t, pool.closed)
}

func TestTimescaleWriter_SaveSummary(t *testing.T) {
	pool := &mockPool{}
	w, err := NewTimescaleWriter(pool, config.DBWriterConf{BatchSize: 10, WriteIntervalSeconds: 3600}, zap.NewNop())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.SaveSummary(context.Background(), NewSummaryRow(uuid.New(), "BTC", report.Summary{})))

	pool.mu.Lock()
	defer pool.mu.Unlock()
	require.Len(t, pool.execSQL, 1)
	assert.Contains(t, pool.execSQL[0], "INSERT INTO backtest_metrics")
}

func TestTimescaleWriter_NilPoolIsNoOp(t *testing.T) {
	w, err := NewTimescaleWriter(nil, config.DBWriterConf{}, zap.NewNop())
	require.NoError(t, err)

	runID := uuid.New()
	w.SaveTrade(testTradeRow(runID))
	w.SaveCapitalRecord(CapitalRow{RunID: runID})
	assert.NoError(t, w.SaveSummary(context.Background(), SummaryRow{RunID: runID}))
	w.Close()
}

func TestInMemWriter(t *testing.T) {
	w := NewInMemWriter()
	runID := uuid.New()

	w.SaveTrade(testTradeRow(runID))
	w.SaveCapitalRecord(CapitalRow{RunID: runID})
	require.NoError(t, w.SaveSummary(context.Background(), SummaryRow{RunID: runID}))
	w.Close()

	assert.Len(t, w.Trades, 1)
	assert.Len(t, w.CapitalRecords, 1)
	assert.Len(t, w.Summaries, 1)
	assert.True(t, w.IsClosed)

	w.Clear()
	assert.Empty(t, w.Trades)
	assert.False(t, w.IsClosed)
}
