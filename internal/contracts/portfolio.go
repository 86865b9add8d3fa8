package contracts

import "time"

// CapAdjustment records one constraint application during sizing.
// Level: "instrument", "class:<asset_class>", "gross_long", "gross_short"
type CapAdjustment struct {
	Level string  `json:"level"`
	Cap   float64 `json:"cap"`
	Scale float64 `json:"scale"` // 적용된 축소 배율 (1.0 = 무조정)
}

// SizingExplain retains the sizing rationale for audit display
type SizingExplain struct {
	Score      float64         `json:"score"`       // 블렌딩 점수
	BaseWeight float64         `json:"base_weight"` // 제약 적용 전 비례 배분 비중
	Caps       []CapAdjustment `json:"caps"`        // 적용 순서대로
	Note       string          `json:"note,omitempty"`
}

// TargetPosition represents a target weight for (date, instrument)
// ⭐ SSOT: Portfolio Constructor만 생성 — 다른 컴포넌트는 읽기 전용
type TargetPosition struct {
	Code       string        `json:"code"`
	Date       time.Time     `json:"date"`
	Weight     float64       `json:"weight"` // -1.0 ~ 1.0, 부호 = 롱/숏
	AssetClass AssetClass    `json:"asset_class"`
	Horizon    Horizon       `json:"horizon"` // 청산 파라미터 결정
	Explain    SizingExplain `json:"explain"`
}

// TargetBook is the full set of target positions for one date,
// sorted by code for deterministic iteration
type TargetBook struct {
	Date      time.Time        `json:"date"`
	Positions []TargetPosition `json:"positions"`
}

// GrossLong returns the sum of positive weights
func (b *TargetBook) GrossLong() float64 {
	total := 0.0
	for _, p := range b.Positions {
		if p.Weight > 0 {
			total += p.Weight
		}
	}
	return total
}

// GrossShort returns the sum of absolute negative weights
func (b *TargetBook) GrossShort() float64 {
	total := 0.0
	for _, p := range b.Positions {
		if p.Weight < 0 {
			total -= p.Weight
		}
	}
	return total
}

// Get finds a position by instrument code
func (b *TargetBook) Get(code string) (*TargetPosition, bool) {
	for i := range b.Positions {
		if b.Positions[i].Code == code {
			return &b.Positions[i], true
		}
	}
	return nil, false
}

// Count returns the number of target positions
func (b *TargetBook) Count() int {
	return len(b.Positions)
}
