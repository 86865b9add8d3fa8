package strategyconfig

import "fmt"

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}

	// === Features ===
	if len(cfg.Features.MomentumWindows) == 0 {
		return ValidationError{"features.momentum_windows", "at least one window required"}
	}
	for i, w := range cfg.Features.MomentumWindows {
		if w <= 0 {
			return ValidationError{"features.momentum_windows", fmt.Sprintf("window[%d] must be > 0", i)}
		}
	}
	if cfg.Features.MeanRevWindow < 2 {
		return ValidationError{"features.meanrev_window", "must be >= 2"}
	}
	if cfg.Features.VolWindow < 2 {
		return ValidationError{"features.vol_window", "must be >= 2"}
	}

	// === Signals ===
	if len(cfg.Signals.Active) == 0 {
		return ValidationError{"signals.active", "at least one signal required"}
	}
	if cfg.Signals.Normalization.ZScoreClip <= 0 {
		return ValidationError{"signals.normalization.zscore_clip", "must be > 0"}
	}
	if cfg.Signals.Normalization.MinCross < 2 {
		return ValidationError{"signals.normalization.min_cross", "must be >= 2"}
	}

	// === Blend ===
	if cfg.Blend.ICWindowDays <= 0 {
		return ValidationError{"blend.ic_window_days", "must be > 0"}
	}
	if cfg.Blend.ForwardHorizonDays <= 0 {
		return ValidationError{"blend.forward_horizon_days", "must be > 0"}
	}
	if cfg.Blend.MinObservations <= 0 {
		return ValidationError{"blend.min_observations", "must be > 0"}
	}
	if cfg.Blend.MinObservations > cfg.Blend.ICWindowDays {
		return ValidationError{"blend.min_observations", "must not exceed ic_window_days"}
	}
	switch cfg.Blend.NonPositiveFallback {
	case "equal", "latest":
	default:
		return ValidationError{"blend.non_positive_fallback", "must be 'equal' or 'latest'"}
	}

	// === Portfolio ===
	if cfg.Portfolio.TopK <= 0 {
		return ValidationError{"portfolio.top_k", "must be > 0"}
	}
	if cfg.Portfolio.GrossLongCap <= 0 || cfg.Portfolio.GrossLongCap > 1.0 {
		return ValidationError{"portfolio.gross_long_cap", "must be in (0, 1.0]"}
	}
	if cfg.Portfolio.GrossShortCap < 0 || cfg.Portfolio.GrossShortCap > 1.0 {
		return ValidationError{"portfolio.gross_short_cap", "must be in [0, 1.0]"}
	}
	if cfg.Portfolio.MinTradableWeight < 0 {
		return ValidationError{"portfolio.min_tradable_weight", "must be >= 0"}
	}
	if cfg.Portfolio.EarningsWindowDays < 0 {
		return ValidationError{"portfolio.earnings_window_days", "must be >= 0"}
	}
	for _, cl := range []struct {
		name   string
		limits ClassLimits
	}{
		{"stock", cfg.Portfolio.Stock},
		{"etf", cfg.Portfolio.ETF},
		{"crypto", cfg.Portfolio.Crypto},
	} {
		if cl.limits.MaxWeight <= 0 || cl.limits.MaxWeight > 1.0 {
			return ValidationError{"portfolio." + cl.name + ".max_weight", "must be in (0, 1.0]"}
		}
		if cl.limits.GrossCap <= 0 || cl.limits.GrossCap > 1.0 {
			return ValidationError{"portfolio." + cl.name + ".gross_cap", "must be in (0, 1.0]"}
		}
		if cl.limits.ConvictionMin < 0 || cl.limits.ConvictionMin > 1.0 {
			return ValidationError{"portfolio." + cl.name + ".conviction_min", "must be in [0, 1.0]"}
		}
		if cl.limits.VolMax <= 0 {
			return ValidationError{"portfolio." + cl.name + ".vol_max", "must be > 0"}
		}
	}

	// === Exits ===
	for _, ex := range []struct {
		name   string
		params ExitParams
	}{
		{"short", cfg.Exits.Short},
		{"mid", cfg.Exits.Mid},
		{"long", cfg.Exits.Long},
	} {
		if ex.params.StopLoss <= 0 {
			return ValidationError{"exits." + ex.name + ".stop_loss", "must be > 0"}
		}
		if ex.params.TakeProfit <= 0 {
			return ValidationError{"exits." + ex.name + ".take_profit", "must be > 0"}
		}
	}

	// === Costs ===
	if cfg.Costs.CostBps < 0 {
		return ValidationError{"backtest_costs.cost_bps", "must be >= 0"}
	}
	if cfg.Costs.SlippageBps < 0 {
		return ValidationError{"backtest_costs.slippage_bps", "must be >= 0"}
	}

	return nil
}
