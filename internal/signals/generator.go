package signals

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/patterniq/internal/contracts"
	"github.com/wonny/patterniq/internal/strategyconfig"
	"github.com/wonny/patterniq/pkg/logger"
)

// Generator turns feature vectors into cross-sectionally normalized signals.
// ⭐ SSOT: 횡단면 정규화(z-score → 클립 → 스케일)는 여기서만
type Generator struct {
	registry *Registry
	active   []string
	norm     strategyconfig.Normalization
	logger   *logger.Logger
}

// NewGenerator creates a generator for the configured active signals
func NewGenerator(registry *Registry, cfg strategyconfig.Signals, log *logger.Logger) *Generator {
	active := append([]string(nil), cfg.Active...)
	sort.Strings(active)
	return &Generator{
		registry: registry,
		active:   active,
		norm:     cfg.Normalization,
		logger:   log,
	}
}

// Generate computes every active signal for the date. Scores are z-scored
// over the day's eligible instruments, clipped, and scaled into [-1, 1];
// instruments missing a required feature are skipped for that signal.
func (g *Generator) Generate(ctx context.Context, date time.Time, features map[string]*contracts.FeatureVector) (*contracts.SignalSet, error) {
	set := contracts.NewSignalSet(date)

	for _, name := range g.active {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		scorer, ok := g.registry.Get(name)
		if !ok {
			return nil, fmt.Errorf("signal %q is active but not registered", name)
		}

		g.generateOne(date, scorer, features, set)
	}

	g.logger.WithFields(map[string]interface{}{
		"date":    date.Format("2006-01-02"),
		"signals": len(set.Signals),
		"scores":  set.Count(),
	}).Info("Signal generation completed")

	return set, nil
}

// generateOne normalizes a single scorer's raw values across the day's
// eligible instruments and writes the resulting signals into set
func (g *Generator) generateOne(date time.Time, scorer Scorer, features map[string]*contracts.FeatureVector, set *contracts.SignalSet) {
	required := scorer.Requires()

	// 적격 종목: 필요한 피처가 모두 있는 종목 (정렬 = 결정성)
	codes := make([]string, 0, len(features))
	for code, vec := range features {
		if vec.Has(required...) {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)

	if len(codes) < g.norm.MinCross {
		g.logger.WithFields(map[string]interface{}{
			"signal":   scorer.Name(),
			"date":     date.Format("2006-01-02"),
			"eligible": len(codes),
			"min":      g.norm.MinCross,
		}).Warn("Skipping signal, cross-section too thin")
		return
	}

	raws := make([]float64, len(codes))
	for i, code := range codes {
		raws[i] = scorer.Raw(features[code])
	}

	mean, std := stat.MeanStdDev(raws, nil)

	sigs := make([]*contracts.Signal, len(codes))
	for i, code := range codes {
		z := 0.0
		if std > 0 {
			z = (raws[i] - mean) / std
		}
		if z > g.norm.ZScoreClip {
			z = g.norm.ZScoreClip
		} else if z < -g.norm.ZScoreClip {
			z = -g.norm.ZScoreClip
		}

		inputs := make(map[string]float64, len(required))
		for _, f := range required {
			v, _ := features[code].Get(f)
			inputs[f] = v
		}

		sigs[i] = &contracts.Signal{
			Code:    code,
			Date:    date,
			Name:    scorer.Name(),
			Score:   z / g.norm.ZScoreClip,
			Horizon: scorer.Horizon(),
			Explain: contracts.SignalExplain{
				Inputs:    inputs,
				Raw:       raws[i],
				CrossMean: mean,
				CrossStd:  std,
				ZClip:     g.norm.ZScoreClip,
				Eligible:  len(codes),
			},
		}
	}

	assignRanks(sigs)

	for _, sig := range sigs {
		set.Add(sig)
	}
}

// assignRanks gives 1-based dense ranks by descending score; equal scores
// share a rank, ties broken nowhere (쓰는 쪽은 코드 정렬로 재현성 확보)
func assignRanks(sigs []*contracts.Signal) {
	ordered := make([]*contracts.Signal, len(sigs))
	copy(ordered, sigs)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		return ordered[i].Code < ordered[j].Code
	})

	rank := 0
	prev := 0.0
	for i, sig := range ordered {
		if i == 0 || sig.Score != prev {
			rank++
			prev = sig.Score
		}
		sig.Rank = rank
	}
}
