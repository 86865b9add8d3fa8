package portfolio

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/wonny/patterniq/internal/contracts"
	"github.com/wonny/patterniq/internal/strategyconfig"
	"github.com/wonny/patterniq/pkg/logger"
)

// Constructor turns blended scores into risk-bounded target weights.
// ⭐ SSOT: 타깃 비중 산출은 여기서만 — 게이트 → 랭킹 → 사이징 → 제약 순서 고정
type Constructor struct {
	cfg         strategyconfig.Portfolio
	earnings    contracts.EarningsCalendar
	instruments map[string]contracts.Instrument
	logger      *logger.Logger
}

// NewConstructor creates a constructor over instrument reference data.
// Instruments absent from the reference map are treated as stocks.
func NewConstructor(cfg strategyconfig.Portfolio, earnings contracts.EarningsCalendar, instruments map[string]contracts.Instrument, log *logger.Logger) *Constructor {
	return &Constructor{
		cfg:         cfg,
		earnings:    earnings,
		instruments: instruments,
		logger:      log,
	}
}

type candidate struct {
	code    string
	score   float64
	class   contracts.AssetClass
	horizon contracts.Horizon
}

// Construct builds the target book for date from the day's combined scores.
// Steps in order: risk gates, rank, conviction + top/bottom-K selection,
// proportional sizing, waterfall constraint scaling.
func (c *Constructor) Construct(ctx context.Context, date time.Time, combined map[string]*contracts.CombinedSignal, features map[string]*contracts.FeatureVector) (*contracts.TargetBook, error) {
	codes := make([]string, 0, len(combined))
	for code := range combined {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	gated := 0
	candidates := make([]candidate, 0, len(codes))
	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cs := combined[code]
		class := c.classOf(code)
		limits := c.cfg.ForClass(class)

		ok, err := c.passesGates(ctx, code, date, limits, features[code])
		if err != nil {
			return nil, err
		}
		if !ok {
			gated++
			continue
		}

		// 자산군별 최소 확신 임계값
		if math.Abs(cs.Score) < limits.ConvictionMin {
			continue
		}

		candidates = append(candidates, candidate{
			code:    code,
			score:   cs.Score,
			class:   class,
			horizon: cs.Horizon,
		})
	}

	// 점수 내림차순, 동점은 코드 오름차순 (결정성)
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].code < candidates[j].code
	})

	longs := make([]candidate, 0, c.cfg.TopK)
	for _, cand := range candidates {
		if cand.score <= 0 || len(longs) == c.cfg.TopK {
			break
		}
		longs = append(longs, cand)
	}

	shorts := make([]candidate, 0, c.cfg.TopK)
	for i := len(candidates) - 1; i >= 0; i-- {
		if candidates[i].score >= 0 || len(shorts) == c.cfg.TopK {
			break
		}
		shorts = append(shorts, candidates[i])
	}

	positions := append(c.sizeSide(date, longs, 1), c.sizeSide(date, shorts, -1)...)
	positions = applyWaterfall(positions, &c.cfg)
	positions = c.dropUntradable(positions)

	sort.Slice(positions, func(i, j int) bool { return positions[i].Code < positions[j].Code })

	book := &contracts.TargetBook{Date: date, Positions: positions}

	c.logger.WithFields(map[string]interface{}{
		"date":        date.Format("2006-01-02"),
		"candidates":  len(candidates),
		"gated":       gated,
		"longs":       len(longs),
		"shorts":      len(shorts),
		"positions":   book.Count(),
		"gross_long":  book.GrossLong(),
		"gross_short": book.GrossShort(),
	}).Info("Target book constructed")

	return book, nil
}

// passesGates applies the earnings-window and realized-volatility gates
func (c *Constructor) passesGates(ctx context.Context, code string, date time.Time, limits strategyconfig.ClassLimits, vec *contracts.FeatureVector) (bool, error) {
	if c.earnings != nil {
		ev, err := c.earnings.NearestEvent(ctx, code, date)
		if err != nil {
			return false, err
		}
		if ev != nil && ev.DaysFrom(date) <= c.cfg.EarningsWindowDays {
			return false, nil
		}
	}

	// 변동성을 모르는 종목은 게이트를 통과시키지 않는다
	if vec == nil {
		return false, nil
	}
	vol, ok := vec.Get(contracts.FeatureVol20)
	if !ok || vol > limits.VolMax {
		return false, nil
	}

	return true, nil
}

// sizeSide distributes one side proportionally to |score|, normalized so
// the side's base weights sum to sign·1.0 before constraints
func (c *Constructor) sizeSide(date time.Time, side []candidate, sign float64) []contracts.TargetPosition {
	total := 0.0
	for _, cand := range side {
		total += math.Abs(cand.score)
	}
	if total == 0 {
		return nil
	}

	positions := make([]contracts.TargetPosition, 0, len(side))
	for _, cand := range side {
		w := sign * math.Abs(cand.score) / total
		positions = append(positions, contracts.TargetPosition{
			Code:       cand.code,
			Date:       date,
			Weight:     w,
			AssetClass: cand.class,
			Horizon:    cand.horizon,
			Explain: contracts.SizingExplain{
				Score:      cand.score,
				BaseWeight: w,
				Caps:       []contracts.CapAdjustment{},
			},
		})
	}
	return positions
}

// dropUntradable zeroes positions scaled below the minimum tradable weight
func (c *Constructor) dropUntradable(positions []contracts.TargetPosition) []contracts.TargetPosition {
	kept := positions[:0]
	for _, p := range positions {
		if math.Abs(p.Weight) < c.cfg.MinTradableWeight {
			infeasible := &contracts.ConstraintInfeasibleError{
				Code: p.Code,
				Cap:  math.Abs(p.Weight),
				Min:  c.cfg.MinTradableWeight,
			}
			c.logger.WithFields(map[string]interface{}{
				"code":   p.Code,
				"weight": p.Weight,
			}).Warn(infeasible.Error())
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

func (c *Constructor) classOf(code string) contracts.AssetClass {
	if inst, ok := c.instruments[code]; ok {
		return inst.AssetClass
	}
	return contracts.AssetStock
}
