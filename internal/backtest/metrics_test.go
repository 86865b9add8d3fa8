package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/wonny/patterniq/internal/contracts"
)

func snapshotSeries(start time.Time, returns []float64, turnover, cost float64) []contracts.PortfolioSnapshot {
	snapshots := make([]contracts.PortfolioSnapshot, len(returns))
	value := 1.0
	for i, r := range returns {
		value *= 1 + r
		snapshots[i] = contracts.PortfolioSnapshot{
			Date:        start.AddDate(0, 0, i),
			Value:       value,
			DailyReturn: r,
			Turnover:    turnover,
			Cost:        cost,
		}
	}
	return snapshots
}

func TestComputeMetricsTotals(t *testing.T) {
	returns := []float64{0.01, -0.005, 0.02, 0.0, -0.01}
	snaps := snapshotSeries(day(0), returns, 0.2, 0.0001)

	m := ComputeMetrics(snaps)

	wantTotal := 1.01*0.995*1.02*1.0*0.99 - 1
	if math.Abs(m.TotalReturn-wantTotal) > 1e-12 {
		t.Errorf("TotalReturn = %v, want %v", m.TotalReturn, wantTotal)
	}
	if m.TradingDays != 5 {
		t.Errorf("TradingDays = %d, want 5", m.TradingDays)
	}
	if math.Abs(m.AvgTurnover-0.2) > 1e-12 {
		t.Errorf("AvgTurnover = %v, want 0.2", m.AvgTurnover)
	}
	if math.Abs(m.TotalCost-0.0005) > 1e-12 {
		t.Errorf("TotalCost = %v, want 0.0005", m.TotalCost)
	}
	// 5일 중 2일 수익 (0은 패)
	if math.Abs(m.HitRateDaily-0.4) > 1e-12 {
		t.Errorf("HitRateDaily = %v, want 0.4", m.HitRateDaily)
	}
}

func TestComputeMetricsMaxDrawdown(t *testing.T) {
	// 고점 1.1 후 저점 0.99까지 3일 하락, 이후 회복
	returns := []float64{0.10, -0.04, -0.03, -0.03, 0.05}
	snaps := snapshotSeries(day(0), returns, 0, 0)

	m := ComputeMetrics(snaps)

	peak := 1.10
	trough := 1.10 * 0.96 * 0.97 * 0.97
	wantDD := 1 - trough/peak
	if math.Abs(m.MaxDrawdown-wantDD) > 1e-12 {
		t.Errorf("MaxDrawdown = %v, want %v", m.MaxDrawdown, wantDD)
	}
	if m.MaxDrawdownDays != 3 {
		t.Errorf("MaxDrawdownDays = %d, want 3", m.MaxDrawdownDays)
	}
	if m.Calmar == 0 {
		t.Error("Calmar should be set when drawdown is positive")
	}
}

func TestComputeMetricsTailRisk(t *testing.T) {
	returns := make([]float64, 60)
	for i := range returns {
		returns[i] = float64(i%7-3) / 100.0 // -0.03 ~ +0.03 반복
	}
	snaps := snapshotSeries(day(0), returns, 0, 0)

	m := ComputeMetrics(snaps)

	if m.VaR95 <= 0 {
		t.Errorf("VaR95 = %v, want > 0 for a series with losses", m.VaR95)
	}
	if m.CVaR95 < m.VaR95 {
		t.Errorf("CVaR95 %v < VaR95 %v", m.CVaR95, m.VaR95)
	}
	if m.Volatility <= 0 {
		t.Errorf("Volatility = %v, want > 0", m.Volatility)
	}
}

func TestComputeMetricsGroupedHitRates(t *testing.T) {
	// 수요일 시작 10일: 주간/월간 버킷이 최소 2개씩 생기도록 월말 걸침
	start := time.Date(2025, 7, 30, 0, 0, 0, 0, time.UTC)
	returns := []float64{0.01, -0.03, 0.01, 0.01, 0.02, 0.01, 0.01, 0.01, 0.01, 0.01}
	snaps := snapshotSeries(start, returns, 0, 0)

	m := ComputeMetrics(snaps)

	if m.HitRateWeekly < 0 || m.HitRateWeekly > 1 {
		t.Errorf("HitRateWeekly out of range: %v", m.HitRateWeekly)
	}
	if m.HitRateMonthly < 0 || m.HitRateMonthly > 1 {
		t.Errorf("HitRateMonthly out of range: %v", m.HitRateMonthly)
	}
	// 7월 버킷: 1.01*0.97 < 1 → 패, 8월 버킷은 전일 양수 → 승
	if math.Abs(m.HitRateMonthly-0.5) > 1e-12 {
		t.Errorf("HitRateMonthly = %v, want 0.5", m.HitRateMonthly)
	}
}

func TestComputeMetricsEmpty(t *testing.T) {
	m := ComputeMetrics(nil)
	if m.TradingDays != 0 || m.TotalReturn != 0 || m.Sharpe != 0 {
		t.Errorf("empty metrics not zero-valued: %+v", m)
	}
}
