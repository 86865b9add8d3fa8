package contracts

import "time"

// Feature names produced by the feature engine.
// 다운스트림은 반드시 이 상수로만 피처를 조회
const (
	FeatureRet20      = "ret_20"       // 20일 수익률
	FeatureRet120     = "ret_120"      // 120일 수익률
	FeatureVol20      = "vol_20"       // 20일 변동성 (연환산)
	FeatureMeanRevZ20 = "meanrev_z_20" // (종가 - 20일 이동평균) / 20일 표준편차
	FeatureGapOpen    = "gap_open"     // 당일 시가 / 전일 종가 - 1
	FeatureSMASlope20 = "sma_slope_20" // 20일 이동평균 기울기 (연환산)
)

// FeatureVector holds named indicator values for (instrument, date)
// ⭐ SSOT: 누락된 키는 "unknown" — 0으로 채우지 않는다 (신규상장/거래정지)
type FeatureVector struct {
	Code   string             `json:"code"`
	Date   time.Time          `json:"date"`
	Values map[string]float64 `json:"values"`
}

// NewFeatureVector creates an empty feature vector for (code, date)
func NewFeatureVector(code string, date time.Time) *FeatureVector {
	return &FeatureVector{
		Code:   code,
		Date:   date,
		Values: make(map[string]float64),
	}
}

// Get returns a feature value and whether it was computed for this date
func (f *FeatureVector) Get(name string) (float64, bool) {
	v, ok := f.Values[name]
	return v, ok
}

// Has reports whether every named feature is present
func (f *FeatureVector) Has(names ...string) bool {
	for _, name := range names {
		if _, ok := f.Values[name]; !ok {
			return false
		}
	}
	return true
}

// Set stores a feature value, overwriting by name
func (f *FeatureVector) Set(name string, value float64) {
	f.Values[name] = value
}

// Count returns the number of computed features
func (f *FeatureVector) Count() int {
	return len(f.Values)
}
