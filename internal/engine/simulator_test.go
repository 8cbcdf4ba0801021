package engine

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/premium-rev-bot/internal/config"
	"github.com/your-org/premium-rev-bot/internal/datastore"
	"github.com/your-org/premium-rev-bot/internal/indicator"
	"github.com/your-org/premium-rev-bot/internal/signal"
)

const float64EqualityThreshold = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= float64EqualityThreshold
}

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

var simPair = indicator.Pair{ID: "x_y", HighColumn: "x", LowColumn: "y"}

// dayFixture drives one simulated date: the pair's z-score and its two leg
// prices (NaN marks a missing quote).
type dayFixture struct {
	z    float64
	high float64
	low  float64
}

// buildFixture assembles price rows and a hand-crafted indicator series so
// the state machine can be tested against exact z-score paths.
func buildFixture(days []dayFixture) ([]datastore.PriceRow, *indicator.Series) {
	rows := make([]datastore.PriceRow, len(days))
	inds := make([]indicator.PairIndicator, len(days))
	for i, d := range days {
		rows[i] = datastore.PriceRow{
			Date:   day(i),
			Prices: map[string]float64{"x": d.high, "y": d.low},
		}
		premium := math.NaN()
		if !math.IsNaN(d.high) && !math.IsNaN(d.low) {
			premium = (d.high - d.low) / d.low
		}
		inds[i] = indicator.PairIndicator{
			Date:      day(i),
			PairID:    simPair.ID,
			PriceHigh: d.high,
			PriceLow:  d.low,
			Premium:   premium,
			ZScore:    d.z,
		}
	}
	return rows, indicator.NewSeries([]indicator.Pair{simPair}, inds)
}

func testParams() Params {
	return Params{
		InitialCapital: decimal.NewFromInt(1_000_000),
		FeeRate:        0.0005,
		Slippage:       0.0002,
		EntryZ:         2.5,
		ExitZ:          0.5,
		StopLoss:       -0.03,
		MaxHoldingDays: 30,
	}
}

func TestSimulator_ZScoreReversionExit(t *testing.T) {
	days := make([]dayFixture, 16)
	for i := range days {
		days[i] = dayFixture{z: 1.0, high: 110, low: 100}
	}
	days[10].z = 3.0
	for i := 11; i < 15; i++ {
		days[i].z = 2.0
	}
	days[15].z = 0.4

	rows, series := buildFixture(days)
	result := NewSimulator(testParams()).Run(rows, series)

	require.True(t, result.Success)
	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, day(10), trade.EntryDate)
	assert.Equal(t, day(15), trade.ExitDate)
	assert.Equal(t, 5, trade.HoldingDays)
	assert.Equal(t, ExitZScoreReversion, trade.ExitReason)
	assert.Equal(t, signal.ShortPremium, trade.Direction)
	// Prices never moved, so the trade pays exactly the round-trip cost.
	assert.True(t, almostEqual(trade.GrossReturn, 0))
	assert.True(t, almostEqual(trade.NetReturn, -0.0014))
	assert.Nil(t, result.OpenPosition)
}

func TestSimulator_StopLossBeatsHolding(t *testing.T) {
	days := make([]dayFixture, 16)
	for i := range days {
		days[i] = dayFixture{z: 1.0, high: 110, low: 100}
	}
	days[10].z = 3.0
	days[11] = dayFixture{z: 2.5, high: 110, low: 100}
	// Both legs move against the position; |z| is still above exit_z.
	days[12] = dayFixture{z: 1.8, high: 114.4, low: 97}
	for i := 13; i < 16; i++ {
		days[i].z = 1.8
	}

	rows, series := buildFixture(days)
	result := NewSimulator(testParams()).Run(rows, series)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, day(12), trade.ExitDate)
	assert.Equal(t, ExitStopLoss, trade.ExitReason)
	// ret_high = (110-114.4)/110 = -0.04, ret_low = (97-100)/100 = -0.03.
	assert.True(t, almostEqual(trade.GrossReturn, -0.035))
	assert.True(t, almostEqual(trade.NetReturn, -0.035-0.0014))
}

func TestSimulator_ReversionWinsOverStopLoss(t *testing.T) {
	// Both exit conditions hold on the same date: the z-score has reverted
	// AND the running net return has breached the stop. Reversion is first
	// in the priority order and must be the one that fires.
	days := []dayFixture{
		{z: 3.0, high: 110, low: 100},
		{z: 0.2, high: 114.4, low: 97},
	}
	rows, series := buildFixture(days)
	result := NewSimulator(testParams()).Run(rows, series)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, day(1), trade.ExitDate)
	// net = -0.035 - 0.0014 is well past the -0.03 stop, yet the reason
	// stays reversion.
	assert.True(t, almostEqual(trade.NetReturn, -0.035-0.0014))
	assert.True(t, trade.NetReturn <= testParams().StopLoss)
	assert.Equal(t, ExitZScoreReversion, trade.ExitReason)
}

func TestSimulator_StopLossWinsOverMaxHolding(t *testing.T) {
	days := []dayFixture{
		{z: 3.0, high: 110, low: 100},
		{z: 2.0, high: 110, low: 100},
		{z: 2.0, high: 114.4, low: 97},
	}
	rows, series := buildFixture(days)
	params := testParams()
	params.MaxHoldingDays = 2 // expires on the same date the stop is breached
	result := NewSimulator(params).Run(rows, series)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, 2, trade.HoldingDays)
	assert.True(t, trade.NetReturn <= params.StopLoss)
	assert.Equal(t, ExitStopLoss, trade.ExitReason)
}

func TestSimulator_MaxHoldingExit(t *testing.T) {
	days := make([]dayFixture, 45)
	for i := range days {
		days[i] = dayFixture{z: 1.0, high: 110, low: 100}
	}
	days[10].z = 3.0
	for i := 11; i < 45; i++ {
		days[i].z = 2.0 // never reverts, never hits the stop
	}

	rows, series := buildFixture(days)
	result := NewSimulator(testParams()).Run(rows, series)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, day(10), trade.EntryDate)
	assert.Equal(t, day(40), trade.ExitDate)
	assert.Equal(t, 30, trade.HoldingDays)
	assert.Equal(t, ExitMaxHolding, trade.ExitReason)
}

func TestSimulator_CostChargedOncePerTrade(t *testing.T) {
	days := make([]dayFixture, 16)
	for i := range days {
		days[i] = dayFixture{z: 1.0, high: 110, low: 100}
	}
	days[10].z = 3.0
	days[15].z = 0.0

	rows, series := buildFixture(days)
	params := testParams()
	result := NewSimulator(params).Run(rows, series)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.True(t, almostEqual(trade.GrossReturn-trade.NetReturn, params.CostRate()*2))
}

func TestSimulator_SinglePositionInvariant(t *testing.T) {
	// A second pair screaming for entry while a position is held must wait.
	other := indicator.Pair{ID: "a_b", HighColumn: "a", LowColumn: "b"}
	days := []dayFixture{
		{z: 3.0, high: 110, low: 100},
		{z: 2.0, high: 110, low: 100},
		{z: 0.2, high: 110, low: 100},
		{z: 3.0, high: 110, low: 100},
		{z: 0.2, high: 110, low: 100},
	}
	rows, _ := buildFixture(days)
	inds := make([]indicator.PairIndicator, 0, len(days)*2)
	for i, d := range days {
		rows[i].Prices["a"] = 120
		rows[i].Prices["b"] = 100
		inds = append(inds,
			indicator.PairIndicator{Date: day(i), PairID: simPair.ID, PriceHigh: d.high, PriceLow: d.low, Premium: 0.1, ZScore: d.z},
			indicator.PairIndicator{Date: day(i), PairID: other.ID, PriceHigh: 120, PriceLow: 100, Premium: 0.2, ZScore: 5.0},
		)
	}
	series := indicator.NewSeries([]indicator.Pair{simPair, other}, inds)

	result := NewSimulator(testParams()).Run(rows, series)

	for i := 1; i < len(result.Trades); i++ {
		assert.False(t, result.Trades[i].EntryDate.Before(result.Trades[i-1].ExitDate),
			"positions must never overlap")
	}
	// One equity row per simulated date, position open or not.
	assert.Len(t, result.DailyCapital, len(days))
}

func TestSimulator_MissingPricesSkipExitEvaluation(t *testing.T) {
	days := []dayFixture{
		{z: 3.0, high: 110, low: 100},
		{z: 0.2, high: math.NaN(), low: 100}, // would revert, but no price
		{z: 0.2, high: 110, low: 100},
	}
	rows, series := buildFixture(days)
	result := NewSimulator(testParams()).Run(rows, series)

	require.Len(t, result.Trades, 1)
	assert.Equal(t, day(2), result.Trades[0].ExitDate, "exit must wait for a date with prices")
	// The skipped date still contributes an equity row with unchanged capital.
	require.Len(t, result.DailyCapital, 3)
	assert.True(t, result.DailyCapital[1].Capital.Equal(result.InitialCapital))
}

func TestSimulator_OpenPositionLeftUnrealized(t *testing.T) {
	days := []dayFixture{
		{z: 3.0, high: 110, low: 100},
		{z: 2.0, high: 110, low: 100},
	}
	rows, series := buildFixture(days)
	result := NewSimulator(testParams()).Run(rows, series)

	assert.Empty(t, result.Trades)
	require.NotNil(t, result.OpenPosition)
	assert.Equal(t, day(0), result.OpenPosition.EntryDate)
	assert.True(t, result.FinalCapital.Equal(result.InitialCapital))
}

func TestSimulator_MarkToMarketClose(t *testing.T) {
	days := []dayFixture{
		{z: 3.0, high: 110, low: 100},
		{z: 2.0, high: 108, low: 100},
		{z: 2.0, high: 105, low: 100},
	}
	rows, series := buildFixture(days)
	params := testParams()
	params.MarkToMarket = true
	result := NewSimulator(params).Run(rows, series)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, ExitMarkToMarket, trade.ExitReason)
	assert.Equal(t, day(2), trade.ExitDate)
	// ret_high = (110-105)/110, ret_low = 0.
	assert.True(t, almostEqual(trade.GrossReturn, (110.0-105.0)/110.0/2))
	assert.Nil(t, result.OpenPosition)
	// The equity curve tail reflects the realized close.
	last := result.DailyCapital[len(result.DailyCapital)-1]
	assert.True(t, last.Capital.Equal(result.FinalCapital))
}

func TestSimulator_LongPremiumReturns(t *testing.T) {
	days := []dayFixture{
		{z: -3.0, high: 98, low: 100}, // premium below mean: long it
		{z: -2.0, high: 100, low: 100},
		{z: 0.0, high: 102, low: 100},
	}
	rows, series := buildFixture(days)
	result := NewSimulator(testParams()).Run(rows, series)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, signal.LongPremium, trade.Direction)
	assert.Equal(t, ExitZScoreReversion, trade.ExitReason)
	// ret_high = (102-98)/98, ret_low = (100-100)/100.
	assert.True(t, almostEqual(trade.GrossReturn, (102.0-98.0)/98.0/2))
}

func backtestConfig() *config.Config {
	return &config.Config{
		Asset:          "BTC",
		InitialCapital: 1_000_000,
		FeeRate:        0.0005,
		Slippage:       0.0002,
		RollingWindow:  10,
		EntryZ:         2.5,
		ExitZ:          0.5,
		StopLoss:       -0.03,
		MaxHoldingDays: 30,
		Pairs:          []config.PairConf{{ID: "x_y", High: "x", Low: "y"}},
	}
}

// spikeRows builds a base premium that alternates mildly, spikes at index 12
// and reverts right after. With a window of 10 the spike clears entry_z=2.5.
func spikeRows(n int) []datastore.PriceRow {
	rows := make([]datastore.PriceRow, n)
	for i := 0; i < n; i++ {
		premium := 0.010
		if i%2 == 1 {
			premium = 0.012
		}
		if i == 12 {
			premium = 0.060
		}
		rows[i] = datastore.PriceRow{
			Date:   day(i),
			Prices: map[string]float64{"x": 100 * (1 + premium), "y": 100},
		}
	}
	return rows
}

func TestBacktester_FullPipeline(t *testing.T) {
	bt, err := NewBacktester(backtestConfig())
	require.NoError(t, err)

	rows := spikeRows(20)
	series := bt.Indicators(rows)
	require.NotEmpty(t, series.TradeableDates())
	assert.Equal(t, day(10), series.TradeableDates()[0])

	result := bt.Run(rows)
	require.True(t, result.Success)
	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, day(12), trade.EntryDate)
	assert.Equal(t, day(13), trade.ExitDate)
	assert.Equal(t, ExitZScoreReversion, trade.ExitReason)
	assert.Equal(t, signal.ShortPremium, trade.Direction)
	assert.True(t, trade.NetReturn > 0)
}

func TestBacktester_Idempotence(t *testing.T) {
	bt, err := NewBacktester(backtestConfig())
	require.NoError(t, err)
	rows := spikeRows(20)

	first := bt.Run(rows)
	second := bt.Run(rows)

	decimalCmp := cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })
	assert.Empty(t, cmp.Diff(first.Trades, second.Trades, decimalCmp))
	assert.Empty(t, cmp.Diff(first.DailyCapital, second.DailyCapital, decimalCmp))
	assert.True(t, first.FinalCapital.Equal(second.FinalCapital))
}

func TestBacktester_ConstantPremiumNeverTrades(t *testing.T) {
	rows := make([]datastore.PriceRow, 25)
	for i := range rows {
		rows[i] = datastore.PriceRow{
			Date:   day(i),
			Prices: map[string]float64{"x": 104, "y": 100}, // 4% premium, zero variance
		}
	}
	bt, err := NewBacktester(backtestConfig())
	require.NoError(t, err)

	result := bt.Run(rows)
	require.True(t, result.Success)
	assert.Empty(t, result.Trades)
	assert.True(t, result.FinalCapital.Equal(result.InitialCapital))
}

func TestBacktester_InsufficientData(t *testing.T) {
	bt, err := NewBacktester(backtestConfig())
	require.NoError(t, err)

	result := bt.Run(spikeRows(8)) // needs rolling_window+1 = 11
	assert.False(t, result.Success)
	assert.Equal(t, ReasonInsufficientData, result.Reason)
	assert.Equal(t, 8, result.Rows)
	assert.Empty(t, result.Trades)
}

func TestBacktester_RejectsInvalidConfig(t *testing.T) {
	cfg := backtestConfig()
	cfg.ExitZ = 3.0 // |exit_z| >= entry_z
	_, err := NewBacktester(cfg)
	assert.Error(t, err)

	cfg = backtestConfig()
	cfg.Pairs = nil
	_, err = NewBacktester(cfg)
	assert.Error(t, err)

	cfg = backtestConfig()
	cfg.ExcludePairs = []string{"x_y"}
	_, err = NewBacktester(cfg)
	assert.Error(t, err)
}
