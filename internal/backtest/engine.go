// Package backtest replays the daily pipeline over a historical window
// and simulates the resulting portfolio with costs and forced exits.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/patterniq/internal/blend"
	"github.com/wonny/patterniq/internal/contracts"
	"github.com/wonny/patterniq/internal/pipeline"
	"github.com/wonny/patterniq/internal/strategyconfig"
	"github.com/wonny/patterniq/pkg/logger"
)

// Engine drives one simulation run.
// ⭐ SSOT: 워크포워드 재현은 여기서만 — 파이프라인을 과거 날짜로 재호출한다
type Engine struct {
	pipeline *pipeline.Orchestrator
	prices   contracts.PriceSource
	cfg      *strategyconfig.Config
	store    contracts.Store // nil이면 영속화 생략
	logger   *logger.Logger
}

// NewEngine creates a backtest engine on top of a pipeline orchestrator
func NewEngine(pipe *pipeline.Orchestrator, prices contracts.PriceSource, cfg *strategyconfig.Config, store contracts.Store, log *logger.Logger) *Engine {
	return &Engine{
		pipeline: pipe,
		prices:   prices,
		cfg:      cfg,
		store:    store,
		logger:   log,
	}
}

// Run executes the simulation over [params.StartDate, params.EndDate].
// A failed run is still returned with its partial snapshots; the error
// explains the failure.
//
// 하루 처리 순서:
//  1. 보유 포지션 시가평가 (가격 누락 시 run 실패)
//  2. 손절/익절 강제 청산 (당일 종가 기준)
//  3. 전일 결정시점 파이프라인 실행 → 신규 목표
//  4. 리밸런싱 + 거래비용 차감
//  5. 스냅샷 기록
//  6. H일 전 시그널의 포워드 수익률 실현 → IC 윈도우 반영
func (e *Engine) Run(ctx context.Context, params contracts.RunParams) (*contracts.BacktestRun, error) {
	run := &contracts.BacktestRun{
		ID:        uuid.New().String(),
		Params:    params,
		State:     contracts.RunInitialized,
		StartedAt: time.Now(),
	}
	if run.Params.ConfigHash == "" {
		if hash, err := strategyconfig.Hash(e.cfg); err == nil {
			run.Params.ConfigHash = hash
		}
	}

	e.logger.WithFields(map[string]interface{}{
		"run_id":   run.ID,
		"from":     params.StartDate.Format("2006-01-02"),
		"to":       params.EndDate.Format("2006-01-02"),
		"universe": len(params.Universe),
	}).Info("backtest run started")

	days, err := e.prices.TradingDays(ctx, params.StartDate, params.EndDate)
	if err != nil {
		return e.fail(run, fmt.Errorf("trading calendar unavailable: %w", err))
	}
	if len(days) == 0 {
		return e.fail(run, fmt.Errorf("no trading days in [%s, %s]",
			params.StartDate.Format("2006-01-02"), params.EndDate.Format("2006-01-02")))
	}

	run.State = contracts.RunRunning

	book := NewBook()
	costRate := (params.CostBps + params.SlippageBps) / 1e4
	horizon := e.cfg.Blend.ForwardHorizonDays
	signalHistory := make(map[string]*contracts.SignalSet)

	for i, day := range days {
		if err := ctx.Err(); err != nil {
			return e.fail(run, err)
		}

		valueBefore := book.Value

		// 1. 시가평가
		if len(book.Holdings()) > 0 {
			held, err := e.heldPrices(ctx, book.Holdings(), day)
			if err != nil {
				return e.fail(run, err)
			}
			if _, err := book.MarkToMarket(day, held); err != nil {
				return e.fail(run, err)
			}
		}

		// 2. 강제 청산 (청산 레그도 회전율/비용에 포함)
		forced, turnover, cost := book.ApplyExits(&e.cfg.Exits, costRate)

		// 3-4. 전일 기준 목표 산출 후 리밸런싱
		if i > 0 {
			decision := days[i-1]
			result, err := e.pipeline.RunDate(ctx, params.Universe, decision)
			if err != nil {
				return e.fail(run, fmt.Errorf("pipeline failed at %s: %w", decision.Format("2006-01-02"), err))
			}
			signalHistory[dateKey(decision)] = result.Signals

			tradable := e.targetPrices(ctx, result.Targets, day)
			rebTurnover, rebCost, skipped := book.Rebalance(day, result.Targets, tradable, costRate)
			turnover += rebTurnover
			cost += rebCost
			if len(skipped) > 0 {
				e.logger.WithFields(map[string]interface{}{
					"run_id":  run.ID,
					"date":    day.Format("2006-01-02"),
					"skipped": skipped,
				}).Warn("targets skipped: no tradable price")
			}
		}

		dailyReturn := 0.0
		if valueBefore != 0 {
			dailyReturn = book.Value/valueBefore - 1
		}
		run.Snapshots = append(run.Snapshots, book.Snapshot(day, dailyReturn, turnover, cost, forced))

		// 6. H일 전 시그널 IC 실현
		if i >= horizon {
			sigDate := days[i-horizon]
			if set, ok := signalHistory[dateKey(sigDate)]; ok && set != nil {
				if err := e.realizeIC(ctx, set, sigDate, day); err != nil {
					return e.fail(run, err)
				}
			}
		}
	}

	run.Metrics = ComputeMetrics(run.Snapshots)
	run.State = contracts.RunCompleted
	run.FinishedAt = time.Now()
	e.save(ctx, run)

	e.logger.WithFields(map[string]interface{}{
		"run_id":       run.ID,
		"trading_days": run.Metrics.TradingDays,
		"total_return": run.Metrics.TotalReturn,
		"sharpe":       run.Metrics.Sharpe,
		"max_drawdown": run.Metrics.MaxDrawdown,
	}).Info("backtest run completed")

	return run, nil
}

// heldPrices fetches adjusted closes for open positions; every holding
// must have a price (누락은 상위에서 run 실패 처리)
func (e *Engine) heldPrices(ctx context.Context, codes []string, date time.Time) (map[string]float64, error) {
	prices := make(map[string]float64, len(codes))
	for _, code := range codes {
		price, err := e.prices.AdjClose(ctx, code, date)
		if err != nil {
			return nil, err
		}
		prices[code] = price
	}
	return prices, nil
}

// targetPrices fetches adjusted closes for new targets; missing prices
// leave the code out so Rebalance skips it
func (e *Engine) targetPrices(ctx context.Context, targets *contracts.TargetBook, date time.Time) map[string]float64 {
	prices := make(map[string]float64, targets.Count())
	for _, tp := range targets.Positions {
		price, err := e.prices.AdjClose(ctx, tp.Code, date)
		if err != nil {
			continue
		}
		prices[tp.Code] = price
	}
	return prices
}

// realizeIC computes the Spearman IC between day-s scores and s→realized
// forward returns, then feeds it to the trailing window
func (e *Engine) realizeIC(ctx context.Context, set *contracts.SignalSet, sigDate, realized time.Time) error {
	window := e.pipeline.Blender().Window()

	for _, name := range set.Names() {
		scores := set.Scores(name)
		forward := make(map[string]float64, len(scores))
		for code := range scores {
			base, err := e.prices.AdjClose(ctx, code, sigDate)
			if err != nil || base <= 0 {
				continue
			}
			future, err := e.prices.AdjClose(ctx, code, realized)
			if err != nil {
				continue
			}
			forward[code] = future/base - 1
		}

		ic, samples := blend.SpearmanIC(scores, forward)
		if samples < 2 {
			continue
		}
		if err := window.Add(name, blend.ICObservation{
			SignalDate:   sigDate,
			RealizedDate: realized,
			IC:           ic,
			Samples:      samples,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) fail(run *contracts.BacktestRun, err error) (*contracts.BacktestRun, error) {
	run.State = contracts.RunFailed
	run.FailReason = err.Error()
	run.FinishedAt = time.Now()
	// 취소로 실패한 run도 기록은 남긴다
	e.save(context.Background(), run)

	e.logger.WithFields(map[string]interface{}{
		"run_id": run.ID,
		"reason": run.FailReason,
	}).Error("backtest run failed")

	return run, err
}

func (e *Engine) save(ctx context.Context, run *contracts.BacktestRun) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveRun(ctx, run); err != nil {
		e.logger.WithError(err).WithField("run_id", run.ID).Error("failed to persist backtest run")
	}
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
