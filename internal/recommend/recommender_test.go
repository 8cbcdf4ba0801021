package recommend

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/premium-rev-bot/internal/config"
	"github.com/your-org/premium-rev-bot/internal/datastore"
	"github.com/your-org/premium-rev-bot/internal/engine"
	"github.com/your-org/premium-rev-bot/internal/signal"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func testConfig() *config.Config {
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

// spikeRows alternates a mild base premium and spikes it at spikeAt, which
// clears entry_z=2.5 under a rolling window of 10.
func spikeRows(n, spikeAt int) []datastore.PriceRow {
	rows := make([]datastore.PriceRow, n)
	for i := 0; i < n; i++ {
		premium := 0.010
		if i%2 == 1 {
			premium = 0.012
		}
		if i == spikeAt {
			premium = 0.060
		}
		rows[i] = datastore.PriceRow{
			Date:   day(i),
			Prices: map[string]float64{"x": 100 * (1 + premium), "y": 100},
		}
	}
	return rows
}

func TestRecommend_QualifyingPickWithProjection(t *testing.T) {
	r, err := NewRecommender(testConfig())
	require.NoError(t, err)

	capital := decimal.NewFromInt(1_000_000)
	rec, err := r.Recommend(spikeRows(20, 12), day(12), capital)
	require.NoError(t, err)

	require.True(t, rec.Success)
	assert.Empty(t, rec.Reason)
	assert.Equal(t, day(12), rec.EvaluatedDate)
	assert.Equal(t, 0, rec.DayDistance)
	require.NotNil(t, rec.Pick)
	assert.Equal(t, "x_y", rec.Pick.PairID)
	assert.Equal(t, signal.ShortPremium, rec.Pick.Direction)
	assert.True(t, rec.Pick.ZScore > 2.5)
	// The premium reverts the next day, so the projection exits at once.
	assert.True(t, rec.Pick.Exited)
	assert.Equal(t, engine.ExitZScoreReversion, rec.Pick.ExitReason)
	assert.Equal(t, 1, rec.Pick.ExpectedHoldingDays)
	assert.True(t, rec.Pick.ExpectedReturn > 0)
	assert.True(t, rec.Pick.ExpectedProfit.GreaterThan(decimal.Zero))
}

func TestRecommend_NoQualifyingPairSurfacesBest(t *testing.T) {
	r, err := NewRecommender(testConfig())
	require.NoError(t, err)

	// The spike is long past; the evaluated date carries no signal.
	rec, err := r.Recommend(spikeRows(20, 12), day(19), decimal.NewFromInt(1_000_000))
	require.NoError(t, err)

	assert.True(t, rec.Success)
	assert.Equal(t, ReasonNoQualifyingPair, rec.Reason)
	assert.Nil(t, rec.Pick)
	require.NotNil(t, rec.Suggestion)
	assert.Equal(t, "x_y", rec.Suggestion.PairID)
	assert.NotEmpty(t, rec.Ranking)
}

func TestRecommend_NearestDateFallback(t *testing.T) {
	r, err := NewRecommender(testConfig())
	require.NoError(t, err)

	rec, err := r.Recommend(spikeRows(20, 12), day(25), decimal.NewFromInt(1_000_000))
	require.NoError(t, err)

	assert.Equal(t, day(25), rec.TargetDate)
	assert.Equal(t, day(19), rec.EvaluatedDate)
	assert.Equal(t, 6, rec.DayDistance)
}

func TestRecommend_OpenEndedProjection(t *testing.T) {
	r, err := NewRecommender(testConfig())
	require.NoError(t, err)

	// Spike on the final row: nothing to project forward into.
	rec, err := r.Recommend(spikeRows(20, 19), day(19), decimal.NewFromInt(1_000_000))
	require.NoError(t, err)

	require.NotNil(t, rec.Pick)
	assert.False(t, rec.Pick.Exited)
	assert.Empty(t, rec.Pick.ExitReason)
	assert.Equal(t, 0, rec.Pick.ExpectedHoldingDays)
}

func TestRecommend_InsufficientData(t *testing.T) {
	r, err := NewRecommender(testConfig())
	require.NoError(t, err)

	rec, err := r.Recommend(spikeRows(8, 5), day(7), decimal.NewFromInt(1_000_000))
	require.NoError(t, err)

	assert.False(t, rec.Success)
	assert.Equal(t, engine.ReasonInsufficientData, rec.Reason)
	assert.Equal(t, 8, rec.Rows)
}

func TestRecommend_EmptyInputIsAnError(t *testing.T) {
	r, err := NewRecommender(testConfig())
	require.NoError(t, err)

	_, err = r.Recommend(nil, day(0), decimal.NewFromInt(1_000_000))
	assert.Error(t, err)
}
