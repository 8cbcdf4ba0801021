// Package main evaluates one target date and prints a forward-looking trade
// recommendation with ranked alternatives.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/your-org/premium-rev-bot/internal/config"
	"github.com/your-org/premium-rev-bot/internal/datastore"
	"github.com/your-org/premium-rev-bot/internal/engine"
	"github.com/your-org/premium-rev-bot/internal/recommend"
	"github.com/your-org/premium-rev-bot/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	dateStr := flag.String("date", "", "Target date (YYYY-MM-DD), defaults to today")
	capitalFlag := flag.Float64("capital", 0, "Capital to size the projection with, defaults to initial_capital")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.SetGlobalLogLevel(cfg.LogLevel)

	targetDate := time.Now().UTC().Truncate(24 * time.Hour)
	if *dateStr != "" {
		targetDate, err = time.Parse("2006-01-02", *dateStr)
		if err != nil {
			logger.Fatalf("Invalid -date %q: %v", *dateStr, err)
		}
	}
	capital := decimal.NewFromFloat(cfg.InitialCapital)
	if *capitalFlag > 0 {
		capital = decimal.NewFromFloat(*capitalFlag)
	}

	var source datastore.PriceSource
	if cfg.DatabaseEnabled() {
		pool, err := pgxpool.New(ctx, cfg.ConnString())
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer pool.Close()
		source = datastore.NewRepository(pool)
	} else {
		if cfg.PricesCSV == "" {
			logger.Fatal("No price source configured: set prices_csv or DB_* environment variables.")
		}
		source = datastore.NewCSVPriceSource(cfg.PricesCSV, cfg.FX)
	}

	rows, err := source.LoadPriceRows(ctx, cfg.Asset, cfg.StartDate.Time, cfg.EndDate.Time)
	if err != nil {
		logger.Fatalf("Failed to load price rows: %v", err)
	}

	recommender, err := recommend.NewRecommender(cfg)
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	rec, err := recommender.Recommend(rows, targetDate, capital)
	if err != nil {
		logger.Fatalf("Recommendation failed: %v", err)
	}
	printRecommendation(rec)
}

func printRecommendation(rec *recommend.Recommendation) {
	if rec.Reason == engine.ReasonInsufficientData {
		logger.Infof("Not enough data to recommend: %d rows loaded.", rec.Rows)
		return
	}
	if rec.DayDistance > 0 {
		logger.Infof("No data for %s; evaluating nearest date %s (%d days away).",
			rec.TargetDate.Format("2006-01-02"), rec.EvaluatedDate.Format("2006-01-02"), rec.DayDistance)
	}

	if rec.Pick == nil {
		logger.Infof("No pair qualifies on %s.", rec.EvaluatedDate.Format("2006-01-02"))
		if rec.Suggestion != nil {
			logger.Infof("Closest candidate: %s %s (z=%.2f, premium=%.4f) - consider relaxing entry_z.",
				rec.Suggestion.PairID, rec.Suggestion.Direction, rec.Suggestion.ZScore, rec.Suggestion.Premium)
		}
		for _, c := range rec.Ranking {
			logger.Infof("  ranked: %s %s z=%.2f", c.PairID, c.Direction, c.ZScore)
		}
		return
	}

	p := rec.Pick
	logger.Infof("Recommended: %s %s (z=%.2f, premium=%.4f)", p.PairID, p.Direction, p.ZScore, p.Premium)
	if p.Exited {
		logger.Infof("Projected: %.2f%% over %d days (exit: %s), expected profit %s",
			p.ExpectedReturn*100, p.ExpectedHoldingDays, p.ExitReason, p.ExpectedProfit.StringFixed(0))
	} else {
		logger.Infof("Projection did not close inside the loaded window; running return %.2f%% after %d days.",
			p.ExpectedReturn*100, p.ExpectedHoldingDays)
	}
	for i, alt := range rec.Alternatives {
		logger.Infof("Alternative %d: %s %s (z=%.2f, projected %.2f%% / %d days)",
			i+1, alt.PairID, alt.Direction, alt.ZScore, alt.ExpectedReturn*100, alt.ExpectedHoldingDays)
	}
}
