package features

import (
	"context"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/wonny/patterniq/internal/contracts"
	"github.com/wonny/patterniq/internal/marketdata"
	"github.com/wonny/patterniq/internal/strategyconfig"
	"github.com/wonny/patterniq/pkg/logger"
)

func testEngine(src *marketdata.MemorySource) *Engine {
	return NewEngine(src, strategyconfig.Default().Features, logger.Nop())
}

// seedBars appends n consecutive daily bars ending at end, with closes from
// closeFn(i) where i runs 0..n-1 oldest first. Open equals the prior close.
func seedBars(src *marketdata.MemorySource, code string, end time.Time, n int, closeFn func(i int) float64) {
	bars := make([]contracts.PriceBar, 0, n)
	prev := closeFn(0)
	for i := 0; i < n; i++ {
		d := end.AddDate(0, 0, i-n+1)
		c := closeFn(i)
		bars = append(bars, contracts.PriceBar{
			Code: code, Date: d,
			Open: prev, Close: c,
			AdjOpen: prev, AdjClose: c,
			AdjHigh: c, AdjLow: c,
			Volume: 1000,
		})
		prev = c
	}
	src.AddBars(bars...)
}

func TestComputeLinearSeries(t *testing.T) {
	end := time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)
	src := marketdata.NewMemorySource()
	// 선형 상승: close_i = 100 + i
	seedBars(src, "AAPL", end, 130, func(i int) float64 { return 100 + float64(i) })

	vectors, err := testEngine(src).Compute(context.Background(), []string{"AAPL"}, end)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	vec, ok := vectors["AAPL"]
	if !ok {
		t.Fatal("expected feature vector for AAPL")
	}

	// 마지막 종가 229, 20일 전 종가 209
	ret20, ok := vec.Get(contracts.FeatureRet20)
	if !ok {
		t.Fatal("expected ret_20")
	}
	if want := 229.0/209.0 - 1; math.Abs(ret20-want) > 1e-12 {
		t.Errorf("ret_20 = %v, want %v", ret20, want)
	}

	ret120, ok := vec.Get(contracts.FeatureRet120)
	if !ok {
		t.Fatal("expected ret_120")
	}
	if want := 229.0/109.0 - 1; math.Abs(ret120-want) > 1e-12 {
		t.Errorf("ret_120 = %v, want %v", ret120, want)
	}

	// 시가 = 전일 종가로 시드했으므로 갭은 정확히 0
	gap, ok := vec.Get(contracts.FeatureGapOpen)
	if !ok || gap != 0 {
		t.Errorf("gap_open = %v, %v; want 0, true", gap, ok)
	}

	// 선형 시계열: 종가가 20일 평균보다 위 → 양의 z
	z, ok := vec.Get(contracts.FeatureMeanRevZ20)
	if !ok || z <= 0 {
		t.Errorf("meanrev_z_20 = %v, %v; want positive", z, ok)
	}

	slope, ok := vec.Get(contracts.FeatureSMASlope20)
	if !ok || slope <= 0 {
		t.Errorf("sma_slope_20 = %v, %v; want positive", slope, ok)
	}

	if vol, ok := vec.Get(contracts.FeatureVol20); !ok || vol < 0 {
		t.Errorf("vol_20 = %v, %v; want non-negative", vol, ok)
	}
}

func TestComputeGapOvernight(t *testing.T) {
	end := time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)
	src := marketdata.NewMemorySource()
	seedBars(src, "MSFT", end, 130, func(i int) float64 { return 100 })

	// 마지막 바만 시가 102로 교체 (전일 종가 100 대비 +2% 갭)
	src.AddBars(contracts.PriceBar{
		Code: "MSFT", Date: end.AddDate(0, 0, 1),
		Open: 102, Close: 103, AdjOpen: 102, AdjClose: 103,
	})

	d := end.AddDate(0, 0, 1)
	vectors, err := testEngine(src).Compute(context.Background(), []string{"MSFT"}, d)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	gap, ok := vectors["MSFT"].Get(contracts.FeatureGapOpen)
	if !ok {
		t.Fatal("expected gap_open")
	}
	if math.Abs(gap-0.02) > 1e-12 {
		t.Errorf("gap_open = %v, want 0.02", gap)
	}
}

func TestIncompleteWindowOmitsFeature(t *testing.T) {
	end := time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)
	src := marketdata.NewMemorySource()
	// 30개 바: ret_20은 계산 가능, ret_120은 불가
	seedBars(src, "NVDA", end, 30, func(i int) float64 { return 100 + float64(i) })

	vectors, err := testEngine(src).Compute(context.Background(), []string{"NVDA"}, end)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	vec, ok := vectors["NVDA"]
	if !ok {
		t.Fatal("expected feature vector for NVDA")
	}
	if !vec.Has(contracts.FeatureRet20) {
		t.Error("expected ret_20 with 30 bars")
	}
	if vec.Has(contracts.FeatureRet120) {
		t.Error("ret_120 must be omitted with 30 bars, not zero-filled")
	}

	// 생략 사유는 InsufficientHistory로 보고된다
	bars, err := src.History(context.Background(), "NVDA", end, 130)
	if err != nil {
		t.Fatal(err)
	}
	_, short := testEngine(src).computeOne("NVDA", end, bars)
	if len(short) != 1 {
		t.Fatalf("short history reports = %v, want exactly one", short)
	}
	if short[0].What != "ret_120 for NVDA" || short[0].Have != 29 || short[0].Need != 120 {
		t.Errorf("insufficient history report = %+v, want ret_120 with 29/120", short[0])
	}
}

func TestFlatSeriesOmitsMeanRev(t *testing.T) {
	end := time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)
	src := marketdata.NewMemorySource()
	// 가격 변동 없음 → 표준편차 0 → z-점수 생략
	seedBars(src, "KO", end, 130, func(i int) float64 { return 50 })

	vectors, err := testEngine(src).Compute(context.Background(), []string{"KO"}, end)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	vec := vectors["KO"]
	if vec.Has(contracts.FeatureMeanRevZ20) {
		t.Error("meanrev_z_20 must be omitted when rolling stddev is zero")
	}
	if ret, ok := vec.Get(contracts.FeatureRet20); !ok || ret != 0 {
		t.Errorf("ret_20 = %v, %v; want 0, true", ret, ok)
	}
}

func TestNoBarOnDateSkipsInstrument(t *testing.T) {
	end := time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)
	src := marketdata.NewMemorySource()
	seedBars(src, "TSLA", end, 130, func(i int) float64 { return 200 + float64(i) })

	// 마지막 바 다음 날: 거래정지로 취급, 벡터 자체를 생략
	vectors, err := testEngine(src).Compute(context.Background(), []string{"TSLA"}, end.AddDate(0, 0, 5))
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if _, ok := vectors["TSLA"]; ok {
		t.Error("instrument without a bar on the date must be skipped")
	}
}

func TestComputeDeterministic(t *testing.T) {
	end := time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)
	src := marketdata.NewMemorySource()
	universe := []string{"AAPL", "MSFT", "NVDA", "TSLA", "AMZN", "GOOG"}
	for k, code := range universe {
		offset := float64(k)
		seedBars(src, code, end, 130, func(i int) float64 {
			return 100 + offset + math.Sin(float64(i)/3)*5
		})
	}

	eng := testEngine(src).WithWorkers(4)
	first, err := eng.Compute(context.Background(), universe, end)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	second, err := eng.Compute(context.Background(), universe, end)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("Compute must be deterministic for identical inputs")
	}
	if len(first) != len(universe) {
		t.Errorf("expected %d vectors, got %d", len(universe), len(first))
	}
}

func TestComputeCancelled(t *testing.T) {
	end := time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)
	src := marketdata.NewMemorySource()
	seedBars(src, "AAPL", end, 130, func(i int) float64 { return 100 })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := testEngine(src).Compute(ctx, []string{"AAPL"}, end); err == nil {
		t.Error("expected error for cancelled context")
	}
}
