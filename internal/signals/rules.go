package signals

import (
	"github.com/wonny/patterniq/internal/contracts"
)

// Built-in scorers. 원점수 정의는 여기서만 — 정규화는 Generator가 수행

// MomentumScorer blends the 20-day and 120-day returns into a mid-horizon
// momentum score, weighted toward the shorter window.
type MomentumScorer struct{}

func (s *MomentumScorer) Name() string               { return "momentum_20_120" }
func (s *MomentumScorer) Horizon() contracts.Horizon { return contracts.HorizonMid }

func (s *MomentumScorer) Requires() []string {
	return []string{contracts.FeatureRet20, contracts.FeatureRet120}
}

func (s *MomentumScorer) Raw(vec *contracts.FeatureVector) float64 {
	r20, _ := vec.Get(contracts.FeatureRet20)
	r120, _ := vec.Get(contracts.FeatureRet120)
	return 0.6*r20 + 0.4*r120
}

// MeanRevScorer bets against stretched prices: the further the close sits
// above its 20-day mean, the more negative the score.
type MeanRevScorer struct{}

func (s *MeanRevScorer) Name() string               { return "meanrev_band" }
func (s *MeanRevScorer) Horizon() contracts.Horizon { return contracts.HorizonShort }

func (s *MeanRevScorer) Requires() []string {
	return []string{contracts.FeatureMeanRevZ20}
}

func (s *MeanRevScorer) Raw(vec *contracts.FeatureVector) float64 {
	z, _ := vec.Get(contracts.FeatureMeanRevZ20)
	return -z
}

// GapScorer trades overnight gap continuation on the open
type GapScorer struct{}

func (s *GapScorer) Name() string               { return "gap_overnight" }
func (s *GapScorer) Horizon() contracts.Horizon { return contracts.HorizonShort }

func (s *GapScorer) Requires() []string {
	return []string{contracts.FeatureGapOpen}
}

func (s *GapScorer) Raw(vec *contracts.FeatureVector) float64 {
	gap, _ := vec.Get(contracts.FeatureGapOpen)
	return gap
}

// TrendScorer follows the slope of the 20-day moving average over the long
// horizon
type TrendScorer struct{}

func (s *TrendScorer) Name() string               { return "trend_sma" }
func (s *TrendScorer) Horizon() contracts.Horizon { return contracts.HorizonLong }

func (s *TrendScorer) Requires() []string {
	return []string{contracts.FeatureSMASlope20}
}

func (s *TrendScorer) Raw(vec *contracts.FeatureVector) float64 {
	slope, _ := vec.Get(contracts.FeatureSMASlope20)
	return slope
}
