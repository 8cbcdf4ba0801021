// Package config handles application configuration.
package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Config defines the structure for all application configuration.
type Config struct {
	Asset             string       `yaml:"asset"`
	InitialCapital    float64      `yaml:"initial_capital"`
	FeeRate           float64      `yaml:"fee_rate"`
	Slippage          float64      `yaml:"slippage"`
	RollingWindow     int          `yaml:"rolling_window"`
	EntryZ            float64      `yaml:"entry_z"`
	ExitZ             float64      `yaml:"exit_z"`
	StopLoss          float64      `yaml:"stop_loss"`
	MaxHoldingDays    int          `yaml:"max_holding_days"`
	ExcludePairs      []string     `yaml:"exclude_pairs"`
	MarkToMarket      FlexBool     `yaml:"mark_to_market"`
	BenchmarkExchange string       `yaml:"benchmark_exchange"`
	StartDate         FlexDate     `yaml:"start_date"`
	EndDate           FlexDate     `yaml:"end_date"`
	Pairs             []PairConf   `yaml:"pairs"`
	PricesCSV         string       `yaml:"prices_csv"`
	FX                FXConf       `yaml:"fx"`
	Output            OutputConf   `yaml:"output"`
	DBWriter          DBWriterConf `yaml:"db_writer"`

	LogLevel   string `yaml:"-"` // Loaded from env or defaults
	DBHost     string `yaml:"-"`
	DBPort     string `yaml:"-"`
	DBUser     string `yaml:"-"`
	DBPassword string `yaml:"-"`
	DBName     string `yaml:"-"`
}

// PairConf declares one tradeable exchange pair. The order of declaration in the
// config file is the canonical tie-break priority for signal selection.
type PairConf struct {
	ID   string `yaml:"id"`
	High string `yaml:"high"`
	Low  string `yaml:"low"`
}

// FXConf declares an optional FX-rate column used to normalize cross-currency
// price columns before the engine sees them.
type FXConf struct {
	Column    string   `yaml:"column"`
	AppliesTo []string `yaml:"applies_to"`
}

// OutputConf holds optional file sinks for the backtest output tables.
type OutputConf struct {
	TradesCSV string `yaml:"trades_csv"`
	EquityCSV string `yaml:"equity_csv"`
}

// DBWriterConf holds settings for the batched database result writer.
type DBWriterConf struct {
	BatchSize            int `yaml:"batch_size"`
	WriteIntervalSeconds int `yaml:"write_interval_seconds"`
}

// LoadConfig loads configuration from the specified YAML file path
// and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	cfg := &Config{
		// Default values
		Asset:          "BTC",
		InitialCapital: 100_000_000,
		FeeRate:        0.0005,
		Slippage:       0.0002,
		RollingWindow:  30,
		EntryZ:         2.0,
		ExitZ:          0.5,
		StopLoss:       -0.03,
		MaxHoldingDays: 30,
		LogLevel:       "info",
	}

	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(file, cfg); err != nil {
		return nil, err
	}

	// Load sensitive data and overrides from environment variables
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if dbHost := os.Getenv("DB_HOST"); dbHost != "" {
		cfg.DBHost = dbHost
	}
	if dbPort := os.Getenv("DB_PORT"); dbPort != "" {
		cfg.DBPort = dbPort
	}
	if dbUser := os.Getenv("DB_USER"); dbUser != "" {
		cfg.DBUser = dbUser
	}
	if dbPassword := os.Getenv("DB_PASSWORD"); dbPassword != "" {
		cfg.DBPassword = dbPassword
	}
	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		cfg.DBName = dbName
	}

	if cfg.BenchmarkExchange == "" && len(cfg.Pairs) > 0 {
		cfg.BenchmarkExchange = cfg.Pairs[0].Low
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration-level invariants. Violations here are programming
// or deployment mistakes, not data conditions, so they are returned as errors.
func (c *Config) Validate() error {
	if len(c.Pairs) == 0 {
		return fmt.Errorf("config: at least one pair must be configured")
	}
	seen := make(map[string]bool, len(c.Pairs))
	for i, p := range c.Pairs {
		if p.ID == "" || p.High == "" || p.Low == "" {
			return fmt.Errorf("config: pair #%d is missing id/high/low", i)
		}
		if p.High == p.Low {
			return fmt.Errorf("config: pair %q references the same exchange twice", p.ID)
		}
		if seen[p.ID] {
			return fmt.Errorf("config: duplicate pair id %q", p.ID)
		}
		seen[p.ID] = true
	}
	if c.InitialCapital <= 0 {
		return fmt.Errorf("config: initial_capital must be positive, got %v", c.InitialCapital)
	}
	if c.RollingWindow <= 1 {
		return fmt.Errorf("config: rolling_window must be greater than 1, got %d", c.RollingWindow)
	}
	if c.EntryZ <= 0 {
		return fmt.Errorf("config: entry_z must be positive, got %v", c.EntryZ)
	}
	if math.Abs(c.ExitZ) >= c.EntryZ {
		return fmt.Errorf("config: |exit_z| (%v) must be smaller than entry_z (%v)", c.ExitZ, c.EntryZ)
	}
	if c.StopLoss >= 0 {
		return fmt.Errorf("config: stop_loss must be negative, got %v", c.StopLoss)
	}
	if c.MaxHoldingDays <= 0 {
		return fmt.Errorf("config: max_holding_days must be positive, got %d", c.MaxHoldingDays)
	}
	if c.FeeRate < 0 || c.Slippage < 0 {
		return fmt.Errorf("config: fee_rate and slippage must not be negative")
	}
	return nil
}

// DatabaseEnabled reports whether enough connection settings are present to
// open a database connection.
func (c *Config) DatabaseEnabled() bool {
	return c.DBHost != "" && c.DBName != ""
}

// ConnString assembles a pgx connection string from the DB_* settings.
func (c *Config) ConnString() string {
	port := c.DBPort
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", c.DBUser, c.DBPassword, c.DBHost, port, c.DBName)
}
