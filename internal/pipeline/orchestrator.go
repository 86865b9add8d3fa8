package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/patterniq/internal/blend"
	"github.com/wonny/patterniq/internal/contracts"
	"github.com/wonny/patterniq/pkg/logger"
)

// Orchestrator coordinates the four pipeline stages for one trading date:
// features → signals → blend → construct.
// ⭐ SSOT: 파이프라인 조율은 여기서만
type Orchestrator struct {
	features    contracts.FeatureEngine
	signals     contracts.SignalGenerator
	blender     *blend.Blender
	constructor contracts.PortfolioConstructor

	// store가 nil이면 영속화 생략 (백테스트 인메모리 모드)
	store contracts.Store

	logger *logger.Logger
}

// DayResult holds every stage output for one pipeline date
type DayResult struct {
	Date     time.Time
	Features map[string]*contracts.FeatureVector
	Signals  *contracts.SignalSet
	Combined map[string]*contracts.CombinedSignal
	Weights  *contracts.BlendWeights
	Targets  *contracts.TargetBook
	Duration time.Duration
}

// NewOrchestrator creates a pipeline orchestrator
func NewOrchestrator(
	features contracts.FeatureEngine,
	signals contracts.SignalGenerator,
	blender *blend.Blender,
	constructor contracts.PortfolioConstructor,
	store contracts.Store,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		features:    features,
		signals:     signals,
		blender:     blender,
		constructor: constructor,
		store:       store,
		logger:      log,
	}
}

// Blender exposes the blending engine so realization feeds can reach its
// IC window
func (o *Orchestrator) Blender() *blend.Blender {
	return o.blender
}

// RunDate executes the full pipeline for one date over a universe
func (o *Orchestrator) RunDate(ctx context.Context, universe []string, date time.Time) (*DayResult, error) {
	startTime := time.Now()

	o.logger.WithFields(map[string]interface{}{
		"date":     date.Format("2006-01-02"),
		"universe": len(universe),
	}).Info("Starting pipeline run")

	result := &DayResult{Date: date}

	// 1. Features
	features, err := o.features.Compute(ctx, universe, date)
	if err != nil {
		return nil, fmt.Errorf("feature stage failed: %w", err)
	}
	result.Features = features
	if o.store != nil {
		vectors := make([]*contracts.FeatureVector, 0, len(features))
		for _, vec := range features {
			vectors = append(vectors, vec)
		}
		if err := o.store.UpsertFeatures(ctx, vectors); err != nil {
			return nil, fmt.Errorf("save features: %w", err)
		}
	}

	// 2. Signals
	set, err := o.signals.Generate(ctx, date, features)
	if err != nil {
		return nil, fmt.Errorf("signal stage failed: %w", err)
	}
	result.Signals = set
	if o.store != nil {
		if err := o.store.UpsertSignals(ctx, set); err != nil {
			return nil, fmt.Errorf("save signals: %w", err)
		}
	}

	// 3. Blend
	combined, weights, err := o.blender.Blend(ctx, date, set)
	if err != nil {
		return nil, fmt.Errorf("blend stage failed: %w", err)
	}
	result.Combined = combined
	result.Weights = weights
	if o.store != nil {
		if err := o.store.UpsertCombined(ctx, combined, weights); err != nil {
			return nil, fmt.Errorf("save combined signals: %w", err)
		}
	}

	// 4. Construct
	book, err := o.constructor.Construct(ctx, date, combined, features)
	if err != nil {
		return nil, fmt.Errorf("construct stage failed: %w", err)
	}
	result.Targets = book
	if o.store != nil {
		if err := o.store.UpsertTargets(ctx, book); err != nil {
			return nil, fmt.Errorf("save targets: %w", err)
		}
	}

	result.Duration = time.Since(startTime)

	o.logger.WithFields(map[string]interface{}{
		"date":      date.Format("2006-01-02"),
		"features":  len(result.Features),
		"scores":    result.Signals.Count(),
		"combined":  len(result.Combined),
		"positions": result.Targets.Count(),
		"duration":  result.Duration.Seconds(),
	}).Info("Pipeline run completed")

	return result, nil
}

// Signals recomputes the signal set for a past date. Scores are a pure
// function of stored bars, so the result matches what the pipeline
// published on that date.
// IC 실현 잡이 H일 전 시그널을 복원할 때 사용
func (o *Orchestrator) Signals(ctx context.Context, universe []string, date time.Time) (*contracts.SignalSet, error) {
	features, err := o.features.Compute(ctx, universe, date)
	if err != nil {
		return nil, fmt.Errorf("feature stage failed: %w", err)
	}
	set, err := o.signals.Generate(ctx, date, features)
	if err != nil {
		return nil, fmt.Errorf("signal stage failed: %w", err)
	}
	return set, nil
}

// Scores runs the pipeline through the blend stage and returns the combined
// score per instrument, for reporting surfaces that need no target book
func (o *Orchestrator) Scores(ctx context.Context, universe []string, date time.Time) (map[string]*contracts.CombinedSignal, error) {
	features, err := o.features.Compute(ctx, universe, date)
	if err != nil {
		return nil, fmt.Errorf("feature stage failed: %w", err)
	}

	set, err := o.signals.Generate(ctx, date, features)
	if err != nil {
		return nil, fmt.Errorf("signal stage failed: %w", err)
	}

	combined, _, err := o.blender.Blend(ctx, date, set)
	if err != nil {
		return nil, fmt.Errorf("blend stage failed: %w", err)
	}
	return combined, nil
}
