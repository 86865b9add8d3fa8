// Package jobs holds the scheduled units wired into the scheduler.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/patterniq/internal/contracts"
	"github.com/wonny/patterniq/internal/pipeline"
	"github.com/wonny/patterniq/pkg/logger"
)

// PipelineJob runs the full daily pipeline for the latest trading day.
// 장 마감 후 실행 — 당일 종가가 적재된 뒤여야 한다
type PipelineJob struct {
	orchestrator *pipeline.Orchestrator
	prices       contracts.PriceSource
	universe     []string
	schedule     string
	logger       *logger.Logger
}

// NewPipelineJob creates the daily pipeline job
func NewPipelineJob(orch *pipeline.Orchestrator, prices contracts.PriceSource, universe []string, schedule string, log *logger.Logger) *PipelineJob {
	if schedule == "" {
		schedule = "0 0 18 * * 1-5" // 평일 18:00
	}
	return &PipelineJob{
		orchestrator: orch,
		prices:       prices,
		universe:     universe,
		schedule:     schedule,
		logger:       log,
	}
}

func (j *PipelineJob) Name() string     { return "daily_pipeline" }
func (j *PipelineJob) Schedule() string { return j.schedule }

// Run resolves the latest trading day and executes the pipeline for it
func (j *PipelineJob) Run(ctx context.Context) error {
	date, err := latestTradingDay(ctx, j.prices)
	if err != nil {
		return err
	}

	result, err := j.orchestrator.RunDate(ctx, j.universe, date)
	if err != nil {
		return fmt.Errorf("daily pipeline failed for %s: %w", date.Format("2006-01-02"), err)
	}

	j.logger.WithFields(map[string]interface{}{
		"date":      date.Format("2006-01-02"),
		"positions": result.Targets.Count(),
	}).Info("Daily pipeline job finished")

	return nil
}

// latestTradingDay scans the recent calendar for the newest session
func latestTradingDay(ctx context.Context, prices contracts.PriceSource) (time.Time, error) {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	days, err := prices.TradingDays(ctx, now.AddDate(0, 0, -14), now)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to resolve trading calendar: %w", err)
	}
	if len(days) == 0 {
		return time.Time{}, fmt.Errorf("no trading day in the last 14 days")
	}
	return days[len(days)-1], nil
}
