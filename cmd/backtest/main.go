// Package main is the entry point of the premium mean-reversion backtester.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/your-org/premium-rev-bot/internal/config"
	"github.com/your-org/premium-rev-bot/internal/csvwriter"
	"github.com/your-org/premium-rev-bot/internal/datastore"
	"github.com/your-org/premium-rev-bot/internal/dbwriter"
	"github.com/your-org/premium-rev-bot/internal/engine"
	"github.com/your-org/premium-rev-bot/internal/report"
	"github.com/your-org/premium-rev-bot/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.SetGlobalLogLevel(cfg.LogLevel)
	logger.Info("Premium mean-reversion backtester starting...")
	logger.Infof("Loaded configuration from: %s", *configPath)
	logger.Infof("Asset: %s, pairs: %d, window: %d", cfg.Asset, len(cfg.Pairs), cfg.RollingWindow)

	zapLogger, err := newZapLogger(cfg.LogLevel)
	if err != nil {
		logger.Fatalf("Failed to initialize zap logger: %v", err)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()

	// --- Price source ---
	var (
		source datastore.PriceSource
		pool   *pgxpool.Pool
	)
	if cfg.DatabaseEnabled() {
		pool, err = pgxpool.New(ctx, cfg.ConnString())
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer pool.Close()
		source = datastore.NewRepository(pool)
		logger.Info("Loading prices from database.")
	} else {
		if cfg.PricesCSV == "" {
			logger.Fatal("No price source configured: set prices_csv or DB_* environment variables.")
		}
		source = datastore.NewCSVPriceSource(cfg.PricesCSV, cfg.FX)
		logger.Infof("Loading prices from %s.", cfg.PricesCSV)
	}

	rows, err := source.LoadPriceRows(ctx, cfg.Asset, cfg.StartDate.Time, cfg.EndDate.Time)
	if err != nil {
		logger.Fatalf("Failed to load price rows: %v", err)
	}

	// --- Backtest ---
	backtester, err := engine.NewBacktester(cfg)
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	result := backtester.Run(rows)
	if !result.Success {
		logger.Infof("Backtest could not run: %s (rows=%d, need at least %d)",
			result.Reason, result.Rows, backtester.MinRows())
		return
	}

	summary := report.NewAnalyzer(cfg.BenchmarkExchange).Analyze(result, rows)
	logSummary(result, summary)

	// --- Output sinks ---
	if cfg.Output.TradesCSV != "" {
		if err := csvwriter.WriteTrades(cfg.Output.TradesCSV, result.Trades, zapLogger); err != nil {
			logger.Errorf("Failed to write trades CSV: %v", err)
		}
	}
	if cfg.Output.EquityCSV != "" {
		if err := csvwriter.WriteEquityCurve(cfg.Output.EquityCSV, result.DailyCapital, zapLogger); err != nil {
			logger.Errorf("Failed to write equity CSV: %v", err)
		}
	}

	if pool != nil {
		persist(ctx, cfg, zapLogger, pool, result, summary)
	}

	logger.Info("Backtest finished.")
}

// persist writes the three output tables through the batched result writer.
func persist(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger, pool *pgxpool.Pool, result *engine.Result, summary report.Summary) {
	writer, err := dbwriter.NewTimescaleWriter(pool, cfg.DBWriter, zapLogger)
	if err != nil {
		logger.Errorf("Failed to initialize result writer: %v", err)
		return
	}
	defer writer.Close()

	for _, t := range result.Trades {
		writer.SaveTrade(dbwriter.NewTradeRow(result.RunID, cfg.Asset, t))
	}
	for _, rec := range result.DailyCapital {
		writer.SaveCapitalRecord(dbwriter.NewCapitalRow(result.RunID, cfg.Asset, rec))
	}
	if err := writer.SaveSummary(ctx, dbwriter.NewSummaryRow(result.RunID, cfg.Asset, summary)); err != nil {
		logger.Errorf("Failed to save run summary: %v", err)
	}
}

func logSummary(result *engine.Result, s report.Summary) {
	logger.Infof("Run %s: %d trades, final capital %s", result.RunID, s.TotalTrades, result.FinalCapital.StringFixed(0))
	logger.Infof("Final return: %.2f%%, annualized: %.2f%%", s.FinalReturn*100, s.AnnualizedReturn*100)
	logger.Infof("Win rate: %.1f%%, Sharpe: %.2f, MDD: %.2f%%", s.WinRate*100, s.SharpeRatio, s.MaxDrawdown*100)
	logger.Infof("Holding days: max %d, avg %.1f", s.MaxHoldingDays, s.AvgHoldingDays)
	logger.Infof("Benchmark: %.2f%%, excess: %.2f%%", s.BenchmarkReturn*100, s.ExcessReturn*100)
	if result.OpenPosition != nil {
		logger.Infof("Position left open at end of range: %s", result.OpenPosition)
	}
}

func newZapLogger(logLevel string) (*zap.Logger, error) {
	if logLevel == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
