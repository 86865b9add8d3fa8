package contracts

import (
	"context"
	"time"
)

// PriceSource provides adjusted daily price history.
// ⭐ SSOT: 시세 수집/기업행위 조정은 외부 협력 계층 — 코어는 이 인터페이스로만 접근
type PriceSource interface {
	// History returns up to `days` bars for code with Date <= through,
	// ordered ascending by date. Fewer bars than requested is not an error.
	History(ctx context.Context, code string, through time.Time, days int) ([]PriceBar, error)

	// AdjClose returns the adjusted close for (code, date).
	// Returns *DataGapError when no bar exists for that date.
	AdjClose(ctx context.Context, code string, date time.Time) (float64, error)

	// TradingDays returns the ordered trading calendar within [from, to].
	TradingDays(ctx context.Context, from, to time.Time) ([]time.Time, error)
}

// EarningsCalendar looks up known earnings events per instrument
type EarningsCalendar interface {
	// NearestEvent returns the event closest to date, or nil if none known.
	NearestEvent(ctx context.Context, code string, date time.Time) (*EarningsEvent, error)
}

// FeatureEngine computes indicators per instrument as-of a date
type FeatureEngine interface {
	Compute(ctx context.Context, universe []string, date time.Time) (map[string]*FeatureVector, error)
}

// SignalGenerator converts feature vectors into cross-sectionally
// normalized directional scores
type SignalGenerator interface {
	Generate(ctx context.Context, date time.Time, features map[string]*FeatureVector) (*SignalSet, error)
}

// Blender combines a day's signals into one score per instrument using
// trailing IC-based weights
type Blender interface {
	Blend(ctx context.Context, date time.Time, set *SignalSet) (map[string]*CombinedSignal, *BlendWeights, error)
}

// PortfolioConstructor turns combined scores into risk-bounded target weights
type PortfolioConstructor interface {
	Construct(ctx context.Context, date time.Time, combined map[string]*CombinedSignal, features map[string]*FeatureVector) (*TargetBook, error)
}

// Store persists derived rows, keyed so repeated runs overwrite
// deterministically instead of duplicating
// ⭐ SSOT: 파생 데이터 영속화 키는 여기 계약대로
type Store interface {
	UpsertFeatures(ctx context.Context, vectors []*FeatureVector) error
	UpsertSignals(ctx context.Context, set *SignalSet) error
	UpsertCombined(ctx context.Context, combined map[string]*CombinedSignal, weights *BlendWeights) error
	UpsertTargets(ctx context.Context, book *TargetBook) error
	SaveRun(ctx context.Context, run *BacktestRun) error
}
