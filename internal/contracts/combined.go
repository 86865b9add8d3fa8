package contracts

import "time"

// BlendMode identifies how the day's blend weights were derived.
// 감사 시 "IC 가중"과 "히스토리 부족 폴백"을 구분할 수 있어야 한다
type BlendMode string

const (
	BlendICWeighted       BlendMode = "ic_weighted"        // 정상 IC 가중
	BlendEqualNoHistory   BlendMode = "equal_no_history"   // 적격 시그널 없음 → 동일 가중
	BlendEqualNonPositive BlendMode = "equal_non_positive" // 모든 IC ≤ 0 → 동일 가중
	BlendLatestIC         BlendMode = "latest_ic"          // 모든 IC ≤ 0 → 최근 IC 가중
)

// BlendWeights is the audit record of the weight vector used on one date
// ⭐ SSOT: Blending Engine만 생성, 이후 불변
type BlendWeights struct {
	Date         time.Time          `json:"date"`
	Mode         BlendMode          `json:"mode"`
	Weights      map[string]float64 `json:"weights"`      // 시그널명 → 가중치, 합 = 1.0
	Observations map[string]int     `json:"observations"` // 시그널별 적격 IC 관측 수
	Excluded     []string           `json:"excluded"`     // 관측 부족으로 제외된 시그널
}

// Sum returns the total of the weight vector (should be 1.0 ± epsilon)
func (w *BlendWeights) Sum() float64 {
	total := 0.0
	for _, v := range w.Weights {
		total += v
	}
	return total
}

// CombinedSignal represents the blended score for (instrument, date)
type CombinedSignal struct {
	Code           string             `json:"code"`
	Date           time.Time          `json:"date"`
	Score          float64            `json:"score"`
	Used           map[string]float64 `json:"used"`            // 이 종목에 실제 적용된 가중치 (부분집합 재정규화)
	DominantSignal string             `json:"dominant_signal"` // |weight·score| 최대 시그널
	Horizon        Horizon            `json:"horizon"`         // 지배 시그널의 호라이즌
}
