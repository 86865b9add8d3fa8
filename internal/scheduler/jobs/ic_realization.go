package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/patterniq/internal/blend"
	"github.com/wonny/patterniq/internal/contracts"
	"github.com/wonny/patterniq/internal/pipeline"
	"github.com/wonny/patterniq/pkg/logger"
)

// ICRealizationJob realizes forward returns for signals published H trading
// days ago and feeds the IC observations into the blending window.
// 파이프라인 잡 이후에 돌아야 당일 종가 기준 실현이 가능하다
type ICRealizationJob struct {
	orchestrator *pipeline.Orchestrator
	prices       contracts.PriceSource
	universe     []string
	horizonDays  int
	schedule     string
	logger       *logger.Logger
}

// NewICRealizationJob creates the realization job for the given horizon
func NewICRealizationJob(orch *pipeline.Orchestrator, prices contracts.PriceSource, universe []string, horizonDays int, schedule string, log *logger.Logger) *ICRealizationJob {
	if schedule == "" {
		schedule = "0 30 18 * * 1-5" // 파이프라인 잡 30분 뒤
	}
	return &ICRealizationJob{
		orchestrator: orch,
		prices:       prices,
		universe:     universe,
		horizonDays:  horizonDays,
		schedule:     schedule,
		logger:       log,
	}
}

func (j *ICRealizationJob) Name() string     { return "ic_realization" }
func (j *ICRealizationJob) Schedule() string { return j.schedule }

// Run restores the signal set from H sessions back and records its IC
// against returns realized at the latest close
func (j *ICRealizationJob) Run(ctx context.Context) error {
	realized, err := latestTradingDay(ctx, j.prices)
	if err != nil {
		return err
	}

	// 실현일 포함 H+1개 세션을 거슬러 시그널 날짜를 찾는다
	lookback := j.horizonDays*3 + 14
	days, err := j.prices.TradingDays(ctx, realized.AddDate(0, 0, -lookback), realized)
	if err != nil {
		return fmt.Errorf("failed to resolve trading calendar: %w", err)
	}
	if len(days) <= j.horizonDays {
		return fmt.Errorf("calendar too short: %d sessions, need > %d", len(days), j.horizonDays)
	}
	sigDate := days[len(days)-1-j.horizonDays]

	set, err := j.orchestrator.Signals(ctx, j.universe, sigDate)
	if err != nil {
		return fmt.Errorf("failed to restore signals for %s: %w", sigDate.Format("2006-01-02"), err)
	}

	window := j.orchestrator.Blender().Window()
	fed := 0
	for _, name := range set.Names() {
		scores := set.Scores(name)
		forward := j.forwardReturns(ctx, scores, sigDate, realized)

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
		fed++
	}

	j.logger.WithFields(map[string]interface{}{
		"signal_date": sigDate.Format("2006-01-02"),
		"realized":    realized.Format("2006-01-02"),
		"signals":     fed,
	}).Info("IC realization job finished")

	return nil
}

// forwardReturns maps code → s→realized return, skipping data gaps
func (j *ICRealizationJob) forwardReturns(ctx context.Context, scores map[string]float64, sigDate, realized time.Time) map[string]float64 {
	forward := make(map[string]float64, len(scores))
	for code := range scores {
		base, err := j.prices.AdjClose(ctx, code, sigDate)
		if err != nil || base <= 0 {
			continue
		}
		future, err := j.prices.AdjClose(ctx, code, realized)
		if err != nil {
			continue
		}
		forward[code] = future/base - 1
	}
	return forward
}
