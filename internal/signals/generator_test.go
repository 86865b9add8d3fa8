package signals

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/wonny/patterniq/internal/contracts"
	"github.com/wonny/patterniq/internal/strategyconfig"
	"github.com/wonny/patterniq/pkg/logger"
)

var testDate = time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)

func testGenerator(active ...string) *Generator {
	cfg := strategyconfig.Default().Signals
	if len(active) > 0 {
		cfg.Active = active
	}
	return NewGenerator(DefaultRegistry(), cfg, logger.Nop())
}

// gapUniverse builds feature vectors carrying only gap_open
func gapUniverse(gaps map[string]float64) map[string]*contracts.FeatureVector {
	features := make(map[string]*contracts.FeatureVector, len(gaps))
	for code, gap := range gaps {
		vec := contracts.NewFeatureVector(code, testDate)
		vec.Set(contracts.FeatureGapOpen, gap)
		features[code] = vec
	}
	return features
}

func TestGenerateNormalization(t *testing.T) {
	// 갭 -1%, 0%, +1% → 표본 표준편차 1% → z = -1, 0, +1 → 점수 = z/3
	features := gapUniverse(map[string]float64{
		"AAPL": -0.01,
		"MSFT": 0.0,
		"NVDA": 0.01,
	})

	set, err := testGenerator("gap_overnight").Generate(context.Background(), testDate, features)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	want := map[string]float64{
		"AAPL": -1.0 / 3.0,
		"MSFT": 0.0,
		"NVDA": 1.0 / 3.0,
	}
	for code, w := range want {
		sig, ok := set.Get("gap_overnight", code)
		if !ok {
			t.Fatalf("missing signal for %s", code)
		}
		if math.Abs(sig.Score-w) > 1e-12 {
			t.Errorf("%s score = %v, want %v", code, sig.Score, w)
		}
		if sig.Horizon != contracts.HorizonShort {
			t.Errorf("%s horizon = %v, want short", code, sig.Horizon)
		}
	}

	// 점수 내림차순 랭크
	for code, wantRank := range map[string]int{"NVDA": 1, "MSFT": 2, "AAPL": 3} {
		sig, _ := set.Get("gap_overnight", code)
		if sig.Rank != wantRank {
			t.Errorf("%s rank = %d, want %d", code, sig.Rank, wantRank)
		}
	}
}

func TestGenerateClipsOutliers(t *testing.T) {
	gaps := make(map[string]float64)
	for _, code := range []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L"} {
		gaps[code] = 0.0
	}
	gaps["WILD"] = 10.0

	set, err := testGenerator("gap_overnight").Generate(context.Background(), testDate, gapUniverse(gaps))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	sig, ok := set.Get("gap_overnight", "WILD")
	if !ok {
		t.Fatal("missing signal for WILD")
	}
	if sig.Score != 1.0 {
		t.Errorf("outlier score = %v, want exactly 1.0 after clipping", sig.Score)
	}

	for code := range gaps {
		s, _ := set.Get("gap_overnight", code)
		if s.Score < -1.0 || s.Score > 1.0 {
			t.Errorf("%s score %v outside [-1, 1]", code, s.Score)
		}
	}
}

func TestGenerateSkipsMissingFeature(t *testing.T) {
	features := gapUniverse(map[string]float64{
		"AAPL": 0.01,
		"MSFT": -0.01,
		"NVDA": 0.0,
	})
	// TSLA는 gap_open이 없다 — 0으로 채우지 않고 생략
	features["TSLA"] = contracts.NewFeatureVector("TSLA", testDate)
	features["TSLA"].Set(contracts.FeatureRet20, 0.05)

	set, err := testGenerator("gap_overnight").Generate(context.Background(), testDate, features)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if _, ok := set.Get("gap_overnight", "TSLA"); ok {
		t.Error("instrument missing gap_open must not receive a gap_overnight score")
	}
	if got := len(set.Signals["gap_overnight"]); got != 3 {
		t.Errorf("eligible count = %d, want 3", got)
	}
}

func TestGenerateThinCrossSection(t *testing.T) {
	// 적격 2종목 < MinCross 3 → 시그널 자체를 생략
	features := gapUniverse(map[string]float64{
		"AAPL": 0.01,
		"MSFT": -0.01,
	})

	set, err := testGenerator("gap_overnight").Generate(context.Background(), testDate, features)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, ok := set.Signals["gap_overnight"]; ok {
		t.Error("signal must be skipped when the cross-section is below min_cross")
	}
}

func TestGenerateUnknownSignal(t *testing.T) {
	features := gapUniverse(map[string]float64{"AAPL": 0.01, "MSFT": 0, "NVDA": -0.01})

	if _, err := testGenerator("no_such_signal").Generate(context.Background(), testDate, features); err == nil {
		t.Error("expected error for active signal missing from the registry")
	}
}

func TestExplainReconstruction(t *testing.T) {
	features := make(map[string]*contracts.FeatureVector)
	specs := []struct {
		code                string
		r20, r120, z, gap, slope float64
	}{
		{"AAPL", 0.04, 0.18, 1.2, 0.004, 0.30},
		{"MSFT", 0.01, 0.09, -0.4, -0.002, 0.10},
		{"NVDA", 0.12, 0.55, 2.1, 0.011, 0.80},
		{"KO", -0.02, 0.03, -1.5, -0.006, -0.05},
		{"TSLA", -0.08, -0.20, 0.3, 0.020, -0.40},
	}
	for _, s := range specs {
		vec := contracts.NewFeatureVector(s.code, testDate)
		vec.Set(contracts.FeatureRet20, s.r20)
		vec.Set(contracts.FeatureRet120, s.r120)
		vec.Set(contracts.FeatureMeanRevZ20, s.z)
		vec.Set(contracts.FeatureGapOpen, s.gap)
		vec.Set(contracts.FeatureSMASlope20, s.slope)
		features[s.code] = vec
	}

	set, err := testGenerator().Generate(context.Background(), testDate, features)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	// 저장된 explain만으로 점수를 재구성할 수 있어야 한다
	for _, name := range set.Names() {
		for code, sig := range set.Signals[name] {
			ex := sig.Explain
			z := 0.0
			if ex.CrossStd > 0 {
				z = (ex.Raw - ex.CrossMean) / ex.CrossStd
			}
			if z > ex.ZClip {
				z = ex.ZClip
			} else if z < -ex.ZClip {
				z = -ex.ZClip
			}
			if got := z / ex.ZClip; math.Abs(got-sig.Score) > 1e-12 {
				t.Errorf("%s/%s: reconstructed %v != stored %v", name, code, got, sig.Score)
			}
		}
	}
}

func TestGenerateFlatCrossSection(t *testing.T) {
	// 전 종목 동일 원점수 → 표준편차 0 → 전부 0점, 공동 1위
	features := gapUniverse(map[string]float64{"AAPL": 0.01, "MSFT": 0.01, "NVDA": 0.01})

	set, err := testGenerator("gap_overnight").Generate(context.Background(), testDate, features)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	for code := range features {
		sig, ok := set.Get("gap_overnight", code)
		if !ok {
			t.Fatalf("missing signal for %s", code)
		}
		if sig.Score != 0 {
			t.Errorf("%s score = %v, want 0 on flat cross-section", code, sig.Score)
		}
		if sig.Rank != 1 {
			t.Errorf("%s rank = %d, want shared rank 1", code, sig.Rank)
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	features := gapUniverse(map[string]float64{
		"AAPL": 0.013, "MSFT": -0.004, "NVDA": 0.021, "KO": -0.009, "TSLA": 0.002,
	})

	gen := testGenerator("gap_overnight")
	first, err := gen.Generate(context.Background(), testDate, features)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	second, err := gen.Generate(context.Background(), testDate, features)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	for code := range features {
		a, _ := first.Get("gap_overnight", code)
		b, _ := second.Get("gap_overnight", code)
		if a.Score != b.Score || a.Rank != b.Rank {
			t.Errorf("%s: non-deterministic output (%v/%d vs %v/%d)", code, a.Score, a.Rank, b.Score, b.Rank)
		}
	}
}
