// Package risk provides historical tail-risk estimators for completed runs.
package risk

import (
	"math"
	"sort"
)

// VaRResult holds one tail-risk estimate at a given confidence level.
type VaRResult struct {
	Confidence float64 `json:"confidence"`
	VaR        float64 `json:"var"`
	CVaR       float64 `json:"cvar"`
	Samples    int     `json:"samples"`
}

// HistoricalVaR estimates value-at-risk from a daily return series.
// 반환값은 손실 크기 (양수)이며, 꼬리가 이익이면 0.
func HistoricalVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	idx := int(math.Floor((1 - confidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	if sorted[idx] < 0 {
		return -sorted[idx]
	}
	return 0
}

// HistoricalCVaR estimates the expected shortfall beyond the VaR cutoff.
// VaR 분위수 이하 수익률의 평균 손실.
func HistoricalCVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	idx := int(math.Floor((1 - confidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	sum := 0.0
	count := 0
	for i := 0; i <= idx; i++ {
		sum += sorted[i]
		count++
	}
	if count == 0 {
		return 0
	}

	mean := sum / float64(count)
	if mean < 0 {
		return -mean
	}
	return 0
}

// Estimate computes both tail measures at the given confidence level.
func Estimate(returns []float64, confidence float64) VaRResult {
	return VaRResult{
		Confidence: confidence,
		VaR:        HistoricalVaR(returns, confidence),
		CVaR:       HistoricalCVaR(returns, confidence),
		Samples:    len(returns),
	}
}
