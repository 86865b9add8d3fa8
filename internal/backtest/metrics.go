package backtest

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/patterniq/internal/contracts"
	"github.com/wonny/patterniq/internal/risk"
)

const annualFactor = 252.0

// ComputeMetrics aggregates a snapshot sequence into run performance.
// 빈 시퀀스는 0치 지표를 반환한다
func ComputeMetrics(snapshots []contracts.PortfolioSnapshot) *contracts.PerformanceMetrics {
	m := &contracts.PerformanceMetrics{TradingDays: len(snapshots)}
	if len(snapshots) == 0 {
		return m
	}

	returns := make([]float64, len(snapshots))
	for i, snap := range snapshots {
		returns[i] = snap.DailyReturn
		m.AvgTurnover += snap.Turnover
		m.TotalCost += snap.Cost
	}
	m.AvgTurnover /= float64(len(snapshots))

	final := snapshots[len(snapshots)-1].Value
	m.TotalReturn = final - 1
	if final > 0 {
		m.AnnualizedReturn = math.Pow(final, annualFactor/float64(len(snapshots))) - 1
	}

	mean, std := stat.MeanStdDev(returns, nil)
	if !math.IsNaN(std) && std > 0 {
		m.Volatility = std * math.Sqrt(annualFactor)
		m.Sharpe = mean / std * math.Sqrt(annualFactor)
	}

	if downside := downsideDeviation(returns); downside > 0 {
		m.Sortino = mean / downside * math.Sqrt(annualFactor)
	}

	m.MaxDrawdown, m.MaxDrawdownDays = maxDrawdown(snapshots)
	if m.MaxDrawdown > 0 {
		m.Calmar = m.AnnualizedReturn / m.MaxDrawdown
	}

	m.HitRateDaily = hitRate(returns)
	m.HitRateWeekly = groupedHitRate(snapshots, func(s contracts.PortfolioSnapshot) string {
		year, week := s.Date.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	})
	m.HitRateMonthly = groupedHitRate(snapshots, func(s contracts.PortfolioSnapshot) string {
		return s.Date.Format("2006-01")
	})

	m.VaR95 = risk.HistoricalVaR(returns, 0.95)
	m.CVaR95 = risk.HistoricalCVaR(returns, 0.95)

	return m
}

// downsideDeviation is the sample standard deviation of negative returns
// with positive days counted as zero
func downsideDeviation(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	sum := 0.0
	for _, r := range returns {
		if r < 0 {
			sum += r * r
		}
	}
	return math.Sqrt(sum / float64(len(returns)-1))
}

// maxDrawdown returns the deepest peak-to-trough loss (양수) and its
// length in trading days
func maxDrawdown(snapshots []contracts.PortfolioSnapshot) (float64, int) {
	peak := snapshots[0].Value
	peakIdx := 0
	maxDD := 0.0
	maxDays := 0

	for i, snap := range snapshots {
		if snap.Value > peak {
			peak = snap.Value
			peakIdx = i
			continue
		}
		if peak <= 0 {
			continue
		}
		dd := 1 - snap.Value/peak
		if dd > maxDD {
			maxDD = dd
			maxDays = i - peakIdx
		}
	}
	return maxDD, maxDays
}

func hitRate(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	wins := 0
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(returns))
}

// groupedHitRate compounds daily returns within each bucket and counts
// the fraction of winning buckets
func groupedHitRate(snapshots []contracts.PortfolioSnapshot, bucket func(contracts.PortfolioSnapshot) string) float64 {
	compounded := make(map[string]float64)
	order := make([]string, 0)
	for _, snap := range snapshots {
		key := bucket(snap)
		if _, ok := compounded[key]; !ok {
			compounded[key] = 1.0
			order = append(order, key)
		}
		compounded[key] *= 1 + snap.DailyReturn
	}
	if len(order) == 0 {
		return 0
	}
	wins := 0
	for _, key := range order {
		if compounded[key] > 1 {
			wins++
		}
	}
	return float64(wins) / float64(len(order))
}
