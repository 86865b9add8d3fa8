package portfolio

import (
	"math"

	"github.com/wonny/patterniq/internal/contracts"
	"github.com/wonny/patterniq/internal/strategyconfig"
)

// Waterfall constraint projection: per-instrument cap, then per-asset-class
// gross cap, then portfolio-level long/short gross caps. Each step is a
// uniform scale-down of the violating group, so earlier caps stay satisfied.
// ⭐ SSOT: 제약 적용 순서는 여기서만 — 공동 최적화가 아닌 순차 투영
func applyWaterfall(positions []contracts.TargetPosition, cfg *strategyconfig.Portfolio) []contracts.TargetPosition {
	applyInstrumentCaps(positions, cfg)
	applyClassCaps(positions, cfg)
	applySideCaps(positions, cfg)
	return positions
}

// applyInstrumentCaps clips each position to its asset class per-position cap
func applyInstrumentCaps(positions []contracts.TargetPosition, cfg *strategyconfig.Portfolio) {
	for i := range positions {
		p := &positions[i]
		limit := cfg.ForClass(p.AssetClass).MaxWeight
		if abs := math.Abs(p.Weight); abs > limit {
			scale := limit / abs
			p.Weight *= scale
			p.Explain.Caps = append(p.Explain.Caps, contracts.CapAdjustment{
				Level: "instrument",
				Cap:   limit,
				Scale: scale,
			})
		}
	}
}

// applyClassCaps scales down every member of an asset class whose summed
// absolute exposure exceeds the class gross cap
func applyClassCaps(positions []contracts.TargetPosition, cfg *strategyconfig.Portfolio) {
	gross := make(map[contracts.AssetClass]float64)
	for i := range positions {
		gross[positions[i].AssetClass] += math.Abs(positions[i].Weight)
	}

	for class, total := range gross {
		limit := cfg.ForClass(class).GrossCap
		if total <= limit {
			continue
		}
		scale := limit / total
		for i := range positions {
			p := &positions[i]
			if p.AssetClass != class {
				continue
			}
			p.Weight *= scale
			p.Explain.Caps = append(p.Explain.Caps, contracts.CapAdjustment{
				Level: "class:" + string(class),
				Cap:   limit,
				Scale: scale,
			})
		}
	}
}

// applySideCaps scales each side down to the portfolio gross exposure caps
func applySideCaps(positions []contracts.TargetPosition, cfg *strategyconfig.Portfolio) {
	grossLong, grossShort := 0.0, 0.0
	for i := range positions {
		if positions[i].Weight > 0 {
			grossLong += positions[i].Weight
		} else {
			grossShort -= positions[i].Weight
		}
	}

	if grossLong > cfg.GrossLongCap {
		scale := cfg.GrossLongCap / grossLong
		for i := range positions {
			p := &positions[i]
			if p.Weight <= 0 {
				continue
			}
			p.Weight *= scale
			p.Explain.Caps = append(p.Explain.Caps, contracts.CapAdjustment{
				Level: "gross_long",
				Cap:   cfg.GrossLongCap,
				Scale: scale,
			})
		}
	}

	if grossShort > cfg.GrossShortCap {
		scale := cfg.GrossShortCap / grossShort
		for i := range positions {
			p := &positions[i]
			if p.Weight >= 0 {
				continue
			}
			p.Weight *= scale
			p.Explain.Caps = append(p.Explain.Caps, contracts.CapAdjustment{
				Level: "gross_short",
				Cap:   cfg.GrossShortCap,
				Scale: scale,
			})
		}
	}
}
