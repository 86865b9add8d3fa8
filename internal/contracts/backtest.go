package contracts

import "time"

// RunState is the backtest run state machine
type RunState string

const (
	RunInitialized RunState = "INITIALIZED"
	RunRunning     RunState = "RUNNING"
	RunCompleted   RunState = "COMPLETED"
	RunFailed      RunState = "FAILED"
)

// RunParams holds the parameters of one backtest invocation.
// 동일 파라미터 재실행 시 스냅샷 시퀀스가 완전히 일치해야 한다 (멱등성)
type RunParams struct {
	Universe    []string  `json:"universe"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	CostBps     float64   `json:"cost_bps"`     // 거래비용 (bps of traded notional)
	SlippageBps float64   `json:"slippage_bps"` // 시장충격 (bps of traded notional)
	ConfigHash  string    `json:"config_hash"`  // 전략 설정 SHA256
}

// PositionState is an open position inside a snapshot
type PositionState struct {
	Code       string     `json:"code"`
	Weight     float64    `json:"weight"` // 실현 비중, 부호 = 롱/숏
	EntryDate  time.Time  `json:"entry_date"`
	EntryPrice float64    `json:"entry_price"` // 진입일 조정 종가
	AssetClass AssetClass `json:"asset_class"`
	Horizon    Horizon    `json:"horizon"`
}

// PortfolioSnapshot is the end-of-day portfolio state for one trading day
// ⭐ SSOT: Backtest Simulator만 생성, run 완료 후 불변
type PortfolioSnapshot struct {
	Date        time.Time       `json:"date"`
	Value       float64         `json:"value"` // 초기자본 1.0 기준 순자산배수
	Cash        float64         `json:"cash"`  // 미투자 비중
	Positions   []PositionState `json:"positions"`
	GrossLong   float64         `json:"gross_long"`
	GrossShort  float64         `json:"gross_short"`
	DailyReturn float64         `json:"daily_return"`
	Turnover    float64         `json:"turnover"` // 당일 매매대금 / 순자산
	Cost        float64         `json:"cost"`     // 당일 비용 (수익률 차감분)
	ForcedExits []string        `json:"forced_exits,omitempty"`
}

// PerformanceMetrics aggregates a completed run
type PerformanceMetrics struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	Volatility       float64 `json:"volatility"` // 연환산
	Sharpe           float64 `json:"sharpe"`
	Sortino          float64 `json:"sortino"`
	MaxDrawdown      float64 `json:"max_drawdown"` // 양수로 표현
	MaxDrawdownDays  int     `json:"max_drawdown_days"`
	Calmar           float64 `json:"calmar"`
	HitRateDaily     float64 `json:"hit_rate_daily"`
	HitRateWeekly    float64 `json:"hit_rate_weekly"`
	HitRateMonthly   float64 `json:"hit_rate_monthly"`
	AvgTurnover      float64 `json:"avg_turnover"`
	TotalCost        float64 `json:"total_cost"`
	VaR95            float64 `json:"var_95"`  // 일간 Historical VaR (손실 양수)
	CVaR95           float64 `json:"cvar_95"` // Expected Shortfall
	TradingDays      int     `json:"trading_days"`
}

// BacktestRun is the immutable record of one simulation invocation
type BacktestRun struct {
	ID         string              `json:"id"`
	Params     RunParams           `json:"params"`
	State      RunState            `json:"state"`
	FailReason string              `json:"fail_reason,omitempty"`
	Snapshots  []PortfolioSnapshot `json:"snapshots"`
	Metrics    *PerformanceMetrics `json:"metrics,omitempty"` // COMPLETED에서만 설정
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
}

// Completed reports whether the run finished with final metrics
func (r *BacktestRun) Completed() bool {
	return r.State == RunCompleted && r.Metrics != nil
}
