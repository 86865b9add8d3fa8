package blend

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// SpearmanIC computes the Spearman rank correlation between a signal's
// day-d scores and the matching forward returns. Only instruments present
// in both maps contribute. Returns the IC and the sample count; fewer than
// two common instruments, or a tied-constant side, yields IC 0.
func SpearmanIC(scores, forward map[string]float64) (float64, int) {
	codes := make([]string, 0, len(scores))
	for code := range scores {
		if _, ok := forward[code]; ok {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)

	n := len(codes)
	if n < 2 {
		return 0, n
	}

	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, code := range codes {
		xs[i] = scores[code]
		ys[i] = forward[code]
	}

	rx := averageRanks(xs)
	ry := averageRanks(ys)

	// 한쪽이 전부 동순위면 상관 정의 불가 → 0
	if stat.Variance(rx, nil) == 0 || stat.Variance(ry, nil) == 0 {
		return 0, n
	}

	return stat.Correlation(rx, ry, nil), n
}

// averageRanks converts values into 1-based ranks, ties receiving the
// average of the positions they span
func averageRanks(values []float64) []float64 {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		// 위치 i..j 동점 → 평균 순위
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}
