package strategyconfig

import (
	"time"

	"github.com/wonny/patterniq/internal/contracts"
)

// Config는 퀀트 파이프라인 전략의 전체 설정
// ⭐ SSOT: 모든 전략 파라미터는 이 구조체를 통해서만 주입 (암묵적 전역 상태 금지)
type Config struct {
	Meta      Meta      `yaml:"meta" json:"meta"`
	Features  Features  `yaml:"features" json:"features"`
	Signals   Signals   `yaml:"signals" json:"signals"`
	Blend     Blend     `yaml:"blend" json:"blend"`
	Portfolio Portfolio `yaml:"portfolio" json:"portfolio"`
	Exits     Exits     `yaml:"exits" json:"exits"`
	Costs     Costs     `yaml:"backtest_costs" json:"backtest_costs"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
	Timezone   string `yaml:"timezone" json:"timezone"`
}

// Features 피처 엔진 윈도우 설정
type Features struct {
	MomentumWindows []int `yaml:"momentum_windows" json:"momentum_windows"` // 예: [20, 120]
	MeanRevWindow   int   `yaml:"meanrev_window" json:"meanrev_window"`
	VolWindow       int   `yaml:"vol_window" json:"vol_window"`
	SMASlopeWindow  int   `yaml:"sma_slope_window" json:"sma_slope_window"`
}

// Signals 시그널 생성 설정
type Signals struct {
	Active        []string      `yaml:"active" json:"active"` // 레지스트리에 등록된 시그널명
	Normalization Normalization `yaml:"normalization" json:"normalization"`
}

// Normalization 횡단면 정규화 파라미터
type Normalization struct {
	ZScoreClip float64 `yaml:"zscore_clip" json:"zscore_clip"` // z-score 클리핑 한계 (점수 = clip(z)/한계)
	MinCross   int     `yaml:"min_cross" json:"min_cross"`     // 정규화에 필요한 최소 종목 수
}

// Blend IC 가중 블렌딩 설정
type Blend struct {
	ICWindowDays       int    `yaml:"ic_window_days" json:"ic_window_days"`             // 트레일링 IC 윈도우 W
	ForwardHorizonDays int    `yaml:"forward_horizon_days" json:"forward_horizon_days"` // 포워드 수익률 호라이즌 H
	MinObservations    int    `yaml:"min_observations" json:"min_observations"`         // 시그널별 최소 적격 IC 관측 수
	NonPositiveFallback string `yaml:"non_positive_fallback" json:"non_positive_fallback"` // "equal" | "latest"
}

// ClassLimits 자산군별 제약 파라미터
type ClassLimits struct {
	MaxWeight     float64 `yaml:"max_weight" json:"max_weight"`         // 종목당 최대 비중
	GrossCap      float64 `yaml:"gross_cap" json:"gross_cap"`           // 자산군 총노출 상한
	ConvictionMin float64 `yaml:"conviction_min" json:"conviction_min"` // 최소 확신 임계값
	VolMax        float64 `yaml:"vol_max" json:"vol_max"`               // 실현 변동성 게이트 (연환산)
}

// Portfolio 포트폴리오 구성 설정
// 주의: 자산군은 map이 아닌 명시적 필드 — 설정 해시 재현성 보장
type Portfolio struct {
	TopK               int         `yaml:"top_k" json:"top_k"` // 롱/숏 각 K 종목
	MinTradableWeight  float64     `yaml:"min_tradable_weight" json:"min_tradable_weight"`
	GrossLongCap       float64     `yaml:"gross_long_cap" json:"gross_long_cap"`
	GrossShortCap      float64     `yaml:"gross_short_cap" json:"gross_short_cap"`
	EarningsWindowDays int         `yaml:"earnings_window_days" json:"earnings_window_days"`
	Stock              ClassLimits `yaml:"stock" json:"stock"`
	ETF                ClassLimits `yaml:"etf" json:"etf"`
	Crypto             ClassLimits `yaml:"crypto" json:"crypto"`
}

// ForClass returns the limits for an asset class, defaulting to stock
func (p *Portfolio) ForClass(class contracts.AssetClass) ClassLimits {
	switch class {
	case contracts.AssetETF:
		return p.ETF
	case contracts.AssetCrypto:
		return p.Crypto
	default:
		return p.Stock
	}
}

// ExitParams 호라이즌별 청산 파라미터
type ExitParams struct {
	StopLoss   float64 `yaml:"stop_loss" json:"stop_loss"`     // 진입 후 누적손실 한계 (양수)
	TakeProfit float64 `yaml:"take_profit" json:"take_profit"` // 진입 후 누적이익 목표 (양수)
}

// Exits 호라이즌별 손절/익절 설정
type Exits struct {
	Short ExitParams `yaml:"short" json:"short"`
	Mid   ExitParams `yaml:"mid" json:"mid"`
	Long  ExitParams `yaml:"long" json:"long"`
}

// ForHorizon returns exit parameters for a horizon, defaulting to mid
func (e *Exits) ForHorizon(h contracts.Horizon) ExitParams {
	switch h {
	case contracts.HorizonShort:
		return e.Short
	case contracts.HorizonLong:
		return e.Long
	default:
		return e.Mid
	}
}

// Costs 백테스트 비용 모델
type Costs struct {
	CostBps     float64 `yaml:"cost_bps" json:"cost_bps"`
	SlippageBps float64 `yaml:"slippage_bps" json:"slippage_bps"`
}

// DecisionSnapshot은 실행 시점의 설정을 감사용으로 고정한 기록
type DecisionSnapshot struct {
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml"`
	StrategyID string    `json:"strategy_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Default returns the reference configuration used when no YAML is supplied
// (백테스트/테스트 기본값 — 운영은 YAML 로드 권장)
func Default() *Config {
	return &Config{
		Meta: Meta{
			StrategyID: "sp500_core_v1",
			Version:    "1.0.0",
			Timezone:   "America/New_York",
		},
		Features: Features{
			MomentumWindows: []int{20, 120},
			MeanRevWindow:   20,
			VolWindow:       20,
			SMASlopeWindow:  20,
		},
		Signals: Signals{
			Active: []string{"momentum_20_120", "meanrev_band", "gap_overnight", "trend_sma"},
			Normalization: Normalization{
				ZScoreClip: 3.0,
				MinCross:   3,
			},
		},
		Blend: Blend{
			ICWindowDays:        60,
			ForwardHorizonDays:  5,
			MinObservations:     20,
			NonPositiveFallback: "equal",
		},
		Portfolio: Portfolio{
			TopK:               10,
			MinTradableWeight:  0.005,
			GrossLongCap:       0.50,
			GrossShortCap:      0.30,
			EarningsWindowDays: 2,
			Stock:              ClassLimits{MaxWeight: 0.03, GrossCap: 0.50, ConvictionMin: 0.10, VolMax: 0.60},
			ETF:                ClassLimits{MaxWeight: 0.05, GrossCap: 0.40, ConvictionMin: 0.10, VolMax: 0.50},
			Crypto:             ClassLimits{MaxWeight: 0.03, GrossCap: 0.15, ConvictionMin: 0.40, VolMax: 1.50},
		},
		Exits: Exits{
			Short: ExitParams{StopLoss: 0.10, TakeProfit: 0.20},
			Mid:   ExitParams{StopLoss: 0.15, TakeProfit: 0.30},
			Long:  ExitParams{StopLoss: 0.20, TakeProfit: 0.40},
		},
		Costs: Costs{
			CostBps:     5.0,
			SlippageBps: 2.0,
		},
	}
}
