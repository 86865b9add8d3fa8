package blend

import (
	"context"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/patterniq/internal/contracts"
	"github.com/wonny/patterniq/internal/strategyconfig"
	"github.com/wonny/patterniq/pkg/logger"
)

// Blender combines one day's signals into a single score per instrument
// using trailing IC-based weights.
// ⭐ SSOT: 블렌드 가중치 산출은 여기서만 — 가중치 근거는 BlendWeights로 감사
type Blender struct {
	window *ICWindow
	cfg    strategyconfig.Blend
	logger *logger.Logger
}

// New creates a blender over an IC window
func New(window *ICWindow, cfg strategyconfig.Blend, log *logger.Logger) *Blender {
	return &Blender{
		window: window,
		cfg:    cfg,
		logger: log,
	}
}

// Window exposes the IC window so the realization feed can append to it
func (b *Blender) Window() *ICWindow {
	return b.window
}

// Blend combines the day's signal set into per-instrument scores.
// Weights derive only from IC observations realized strictly before date.
func (b *Blender) Blend(ctx context.Context, date time.Time, set *contracts.SignalSet) (map[string]*contracts.CombinedSignal, *contracts.BlendWeights, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	weights := b.WeightsFor(date, set.Names())
	combined := combine(date, set, weights)

	b.logger.WithFields(map[string]interface{}{
		"date":     date.Format("2006-01-02"),
		"mode":     string(weights.Mode),
		"excluded": len(weights.Excluded),
		"combined": len(combined),
	}).Info("Signal blending completed")

	return combined, weights, nil
}

// WeightsFor derives the weight vector for a date-d decision from trailing
// IC history: weight ∝ max(0, mean/std) per signal, renormalized to sum 1.
// Signals under the minimum observation count are excluded; documented
// fallbacks cover the no-history and all-non-positive cases.
func (b *Blender) WeightsFor(date time.Time, active []string) *contracts.BlendWeights {
	names := append([]string(nil), active...)
	sort.Strings(names)

	out := &contracts.BlendWeights{
		Date:         date,
		Weights:      make(map[string]float64, len(names)),
		Observations: make(map[string]int, len(names)),
		Excluded:     []string{},
	}

	qualifying := make([]string, 0, len(names))
	raw := make(map[string]float64, len(names))
	latest := make(map[string]float64, len(names))

	for _, name := range names {
		obs := b.window.Before(name, date)
		out.Observations[name] = len(obs)

		if len(obs) < b.cfg.MinObservations {
			out.Excluded = append(out.Excluded, name)
			continue
		}

		ics := make([]float64, len(obs))
		for i, o := range obs {
			ics[i] = o.IC
		}
		mean, std := stat.MeanStdDev(ics, nil)

		r := 0.0
		if std > 0 && mean > 0 {
			r = mean / std
		}
		raw[name] = r
		latest[name] = obs[len(obs)-1].IC
		qualifying = append(qualifying, name)
	}

	// 적격 시그널 없음 → 활성 시그널 전체 동일 가중
	if len(qualifying) == 0 {
		out.Mode = contracts.BlendEqualNoHistory
		for _, name := range names {
			out.Weights[name] = 1.0 / float64(len(names))
		}
		return out
	}

	total := 0.0
	for _, name := range qualifying {
		total += raw[name]
	}

	if total > 0 {
		out.Mode = contracts.BlendICWeighted
		for _, name := range qualifying {
			out.Weights[name] = raw[name] / total
		}
		return out
	}

	// 모든 적격 IC 비양수 → 설정된 폴백
	if b.cfg.NonPositiveFallback == "latest" {
		ltTotal := 0.0
		for _, name := range qualifying {
			if latest[name] > 0 {
				ltTotal += latest[name]
			}
		}
		if ltTotal > 0 {
			out.Mode = contracts.BlendLatestIC
			for _, name := range qualifying {
				w := 0.0
				if latest[name] > 0 {
					w = latest[name] / ltTotal
				}
				out.Weights[name] = w
			}
			return out
		}
	}

	out.Mode = contracts.BlendEqualNonPositive
	for _, name := range qualifying {
		out.Weights[name] = 1.0 / float64(len(qualifying))
	}
	return out
}

// combine applies the day's weight vector per instrument, renormalizing over
// the signals that actually published for that instrument. Instruments whose
// published signals carry no positive weight are dropped.
func combine(date time.Time, set *contracts.SignalSet, weights *contracts.BlendWeights) map[string]*contracts.CombinedSignal {
	codes := make(map[string]bool)
	for _, byCode := range set.Signals {
		for code := range byCode {
			codes[code] = true
		}
	}

	sorted := make([]string, 0, len(codes))
	for code := range codes {
		sorted = append(sorted, code)
	}
	sort.Strings(sorted)

	names := set.Names()
	combined := make(map[string]*contracts.CombinedSignal, len(sorted))

	for _, code := range sorted {
		total := 0.0
		for _, name := range names {
			if _, ok := set.Get(name, code); !ok {
				continue
			}
			total += weights.Weights[name]
		}
		if total <= 0 {
			continue
		}

		used := make(map[string]float64)
		score := 0.0
		dominant := ""
		dominantAbs := -1.0
		var horizon contracts.Horizon

		for _, name := range names {
			sig, ok := set.Get(name, code)
			if !ok {
				continue
			}
			w := weights.Weights[name] / total
			if w == 0 {
				continue
			}
			used[name] = w
			contrib := w * sig.Score
			score += contrib

			if abs := math.Abs(contrib); abs > dominantAbs {
				dominantAbs = abs
				dominant = name
				horizon = sig.Horizon
			}
		}

		combined[code] = &contracts.CombinedSignal{
			Code:           code,
			Date:           date,
			Score:          score,
			Used:           used,
			DominantSignal: dominant,
			Horizon:        horizon,
		}
	}

	return combined
}
