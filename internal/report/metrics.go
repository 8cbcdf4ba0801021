// Package report turns a trade log and an equity curve into summary
// statistics and a buy-and-hold benchmark comparison.
package report

import (
	"math"
	"time"

	"github.com/your-org/premium-rev-bot/internal/datastore"
	"github.com/your-org/premium-rev-bot/internal/engine"
)

const daysPerYear = 365.25

// Summary holds the portfolio-level performance metrics of one run.
// Every metric defaults to 0 when the trade log is empty.
type Summary struct {
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	TotalTrades      int       `json:"total_trades"`
	FinalReturn      float64   `json:"final_return"`
	AnnualizedReturn float64   `json:"annualized_return"`
	WinRate          float64   `json:"win_rate"`
	SharpeRatio      float64   `json:"sharpe_ratio"`
	MaxDrawdown      float64   `json:"mdd"`
	MaxHoldingDays   int       `json:"max_holding_days"`
	AvgHoldingDays   float64   `json:"avg_holding_days"`
	BenchmarkReturn  float64   `json:"benchmark_return"`
	ExcessReturn     float64   `json:"excess_return"`
}

// Analyzer computes run summaries against a fixed benchmark exchange column.
type Analyzer struct {
	benchmarkColumn string
}

// NewAnalyzer creates an Analyzer. benchmarkColumn names the exchange price
// column used for the buy-and-hold comparison.
func NewAnalyzer(benchmarkColumn string) *Analyzer {
	return &Analyzer{benchmarkColumn: benchmarkColumn}
}

// Analyze computes the summary for one run. The benchmark return is computed
// from the price rows alone, so it is populated even for a run with no trades
// or a run that failed on insufficient data.
func (a *Analyzer) Analyze(res *engine.Result, rows []datastore.PriceRow) Summary {
	var s Summary
	s.BenchmarkReturn = a.benchmarkReturn(rows)

	if res != nil && len(res.DailyCapital) > 0 {
		curve := res.DailyCapital
		s.StartDate = curve[0].Date
		s.EndDate = curve[len(curve)-1].Date

		initial := res.InitialCapital.InexactFloat64()
		final := res.FinalCapital.InexactFloat64()
		if initial > 0 {
			s.FinalReturn = (final - initial) / initial
		}

		days := daysBetween(s.StartDate, s.EndDate)
		if days > 0 {
			s.AnnualizedReturn = math.Pow(1+s.FinalReturn, daysPerYear/float64(days)) - 1
		}

		capitals := make([]float64, len(curve))
		for i, rec := range curve {
			capitals[i] = rec.Capital.InexactFloat64()
		}
		s.SharpeRatio = sharpeRatio(capitals)
		s.MaxDrawdown = maxDrawdown(capitals)
	}

	if res != nil {
		s.TotalTrades = len(res.Trades)
		if s.TotalTrades > 0 {
			wins := 0
			holdingSum := 0
			for _, t := range res.Trades {
				if t.NetReturn > 0 {
					wins++
				}
				holdingSum += t.HoldingDays
				if t.HoldingDays > s.MaxHoldingDays {
					s.MaxHoldingDays = t.HoldingDays
				}
			}
			s.WinRate = float64(wins) / float64(s.TotalTrades)
			s.AvgHoldingDays = float64(holdingSum) / float64(s.TotalTrades)
		}
	}

	s.ExcessReturn = s.FinalReturn - s.BenchmarkReturn
	return s
}

// benchmarkReturn is the simple buy-and-hold return of the benchmark column
// from the first to the last date carrying a usable price.
func (a *Analyzer) benchmarkReturn(rows []datastore.PriceRow) float64 {
	first := math.NaN()
	last := math.NaN()
	for _, row := range rows {
		p, ok := row.Price(a.benchmarkColumn)
		if !ok {
			continue
		}
		if math.IsNaN(first) {
			first = p
		}
		last = p
	}
	if math.IsNaN(first) || math.IsNaN(last) || first == 0 {
		return 0
	}
	return (last - first) / first
}

// sharpeRatio annualizes the mean/std ratio of the curve's daily pct-change
// returns. Fewer than 2 return points or zero variance yields 0.
func sharpeRatio(capitals []float64) float64 {
	if len(capitals) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(capitals)-1)
	for i := 1; i < len(capitals); i++ {
		if capitals[i-1] == 0 {
			return 0
		}
		returns = append(returns, (capitals[i]-capitals[i-1])/capitals[i-1])
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(daysPerYear)
}

// maxDrawdown is the most negative peak-to-trough decline of the curve.
func maxDrawdown(capitals []float64) float64 {
	mdd := 0.0
	peak := math.Inf(-1)
	for _, c := range capitals {
		if c > peak {
			peak = c
		}
		if peak > 0 {
			dd := (c - peak) / peak
			if dd < mdd {
				mdd = dd
			}
		}
	}
	return mdd
}

// daysBetween is the whole-day distance between two dates.
func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
