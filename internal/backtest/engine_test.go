package backtest

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/wonny/patterniq/internal/blend"
	"github.com/wonny/patterniq/internal/contracts"
	"github.com/wonny/patterniq/internal/features"
	"github.com/wonny/patterniq/internal/marketdata"
	"github.com/wonny/patterniq/internal/pipeline"
	"github.com/wonny/patterniq/internal/portfolio"
	"github.com/wonny/patterniq/internal/signals"
	"github.com/wonny/patterniq/internal/strategyconfig"
	"github.com/wonny/patterniq/pkg/logger"
)

const (
	warmupDays = 140
	runDays    = 30
)

func tradingCalendar(n int) []time.Time {
	days := make([]time.Time, n)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}

func seedSeries(src *marketdata.MemorySource, code string, days []time.Time, closes []float64) {
	bars := make([]contracts.PriceBar, len(days))
	for i := range days {
		open := closes[i]
		if i > 0 {
			open = closes[i-1]
		}
		bars[i] = contracts.PriceBar{
			Code: code, Date: days[i],
			Open: open, High: closes[i], Low: closes[i], Close: closes[i], Volume: 1000,
			AdjOpen: open, AdjHigh: closes[i], AdjLow: closes[i], AdjClose: closes[i],
		}
	}
	src.AddBars(bars...)
}

func newBacktestEngine(src *marketdata.MemorySource, cfg *strategyconfig.Config) *Engine {
	log := logger.Nop()
	feat := features.NewEngine(src, cfg.Features, log)
	gen := signals.NewGenerator(signals.DefaultRegistry(), cfg.Signals, log)
	bl := blend.New(blend.NewICWindow(cfg.Blend.ICWindowDays), cfg.Blend, log)
	cons := portfolio.NewConstructor(cfg.Portfolio, nil, nil, log)
	pipe := pipeline.NewOrchestrator(feat, gen, bl, cons, nil, log)
	return NewEngine(pipe, src, cfg, nil, log)
}

// mixedUniverse seeds instruments with differentiated drift and oscillation
// so cross-sectional signals spread out
func mixedUniverse(src *marketdata.MemorySource, days []time.Time) []string {
	codes := []string{"S01", "S02", "S03", "S04", "S05", "S06", "S07", "S08"}
	for j, code := range codes {
		closes := make([]float64, len(days))
		drift := 0.05 * float64(j%5-2)
		for i := range closes {
			closes[i] = 100 + 10*float64(j) + drift*float64(i) + 2*math.Sin(float64(i)/3+float64(j))
		}
		seedSeries(src, code, days, closes)
	}
	return codes
}

func runParams(universe []string, days []time.Time) contracts.RunParams {
	return contracts.RunParams{
		Universe:    universe,
		StartDate:   days[warmupDays],
		EndDate:     days[len(days)-1],
		CostBps:     5.0,
		SlippageBps: 2.0,
	}
}

func TestRunCompletesWithinConstraints(t *testing.T) {
	days := tradingCalendar(warmupDays + runDays)
	src := marketdata.NewMemorySource()
	universe := mixedUniverse(src, days)

	engine := newBacktestEngine(src, strategyconfig.Default())
	run, err := engine.Run(context.Background(), runParams(universe, days))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !run.Completed() {
		t.Fatalf("run state = %s, metrics = %v", run.State, run.Metrics)
	}
	if run.Params.ConfigHash == "" {
		t.Error("ConfigHash not filled from strategy config")
	}
	if len(run.Snapshots) != runDays {
		t.Fatalf("snapshots = %d, want %d", len(run.Snapshots), runDays)
	}

	first := run.Snapshots[0]
	if first.Value != 1.0 || len(first.Positions) != 0 {
		t.Errorf("day 0 should hold cash: value=%v positions=%d", first.Value, len(first.Positions))
	}

	cfg := strategyconfig.Default()
	for i, snap := range run.Snapshots {
		if i > 0 && !snap.Date.After(run.Snapshots[i-1].Date) {
			t.Fatalf("snapshot dates not ascending at %d", i)
		}
		if snap.Value <= 0 {
			t.Errorf("%s: non-positive value %v", snap.Date.Format("2006-01-02"), snap.Value)
		}
		if snap.GrossLong > cfg.Portfolio.GrossLongCap+1e-9 {
			t.Errorf("%s: gross long %v exceeds cap", snap.Date.Format("2006-01-02"), snap.GrossLong)
		}
		if snap.GrossShort > cfg.Portfolio.GrossShortCap+1e-9 {
			t.Errorf("%s: gross short %v exceeds cap", snap.Date.Format("2006-01-02"), snap.GrossShort)
		}
		net := snap.GrossLong - snap.GrossShort
		if math.Abs(snap.Cash-(1-net)) > 1e-9 {
			t.Errorf("%s: cash %v inconsistent with net exposure %v", snap.Date.Format("2006-01-02"), snap.Cash, net)
		}
	}

	m := run.Metrics
	if m.TradingDays != runDays {
		t.Errorf("metric TradingDays = %d, want %d", m.TradingDays, runDays)
	}
	if m.CVaR95 < m.VaR95 {
		t.Errorf("CVaR95 %v < VaR95 %v", m.CVaR95, m.VaR95)
	}
	if m.MaxDrawdown < 0 {
		t.Errorf("MaxDrawdown = %v, want >= 0", m.MaxDrawdown)
	}
}

func TestRunIdempotent(t *testing.T) {
	days := tradingCalendar(warmupDays + runDays)

	var runs []*contracts.BacktestRun
	for i := 0; i < 2; i++ {
		src := marketdata.NewMemorySource()
		universe := mixedUniverse(src, days)
		engine := newBacktestEngine(src, strategyconfig.Default())
		run, err := engine.Run(context.Background(), runParams(universe, days))
		if err != nil {
			t.Fatalf("run %d failed: %v", i, err)
		}
		runs = append(runs, run)
	}

	if !reflect.DeepEqual(runs[0].Snapshots, runs[1].Snapshots) {
		t.Error("identical parameters produced different snapshot sequences")
	}
	if !reflect.DeepEqual(runs[0].Metrics, runs[1].Metrics) {
		t.Error("identical parameters produced different metrics")
	}
}

func TestRunFailsWhenHeldPriceMissing(t *testing.T) {
	total := warmupDays + runDays
	days := tradingCalendar(total)
	src := marketdata.NewMemorySource()

	// GONE: 꾸준한 상승 → 모멘텀 롱 확정, 마지막 날 가격 누락
	closes := make([]float64, total-1)
	for i := range closes {
		closes[i] = 50 * math.Pow(1.004, float64(i))
	}
	seedSeries(src, "GONE", days[:total-1], closes)

	others := []string{"F01", "F02", "F03", "F04"}
	for j, code := range others {
		series := make([]float64, total)
		for i := range series {
			series[i] = 100 + 5*float64(j) + 1.5*math.Sin(float64(i)/5+float64(j))
		}
		seedSeries(src, code, days, series)
	}

	cfg := strategyconfig.Default()
	cfg.Signals.Active = []string{"momentum_20_120"}
	engine := newBacktestEngine(src, cfg)

	universe := append([]string{"GONE"}, others...)
	run, err := engine.Run(context.Background(), runParams(universe, days))

	var gap *contracts.DataGapError
	if !errors.As(err, &gap) {
		t.Fatalf("expected DataGapError, got %v", err)
	}
	if gap.Code != "GONE" {
		t.Errorf("gap code = %s, want GONE", gap.Code)
	}
	if run.State != contracts.RunFailed || run.FailReason == "" {
		t.Errorf("run state = %s reason = %q, want FAILED with reason", run.State, run.FailReason)
	}
	if len(run.Snapshots) != runDays-1 {
		t.Errorf("partial snapshots = %d, want %d", len(run.Snapshots), runDays-1)
	}
}

func TestRunForcesStopLossExit(t *testing.T) {
	total := warmupDays + runDays
	days := tradingCalendar(total)
	src := marketdata.NewMemorySource()

	crashIdx := warmupDays + 10

	// CRSH: 웜업 강한 상승 → 롱 진입, 런 구간 보합 후 하루 -20%
	closes := make([]float64, total)
	price := 50.0
	for i := range closes {
		switch {
		case i < warmupDays:
			price *= 1.004
		case i == crashIdx:
			price *= 0.80
		default:
			price *= 1.0005
		}
		closes[i] = price
	}
	seedSeries(src, "CRSH", days, closes)

	others := []string{"F01", "F02", "F03", "F04"}
	for j, code := range others {
		series := make([]float64, total)
		for i := range series {
			series[i] = 100 + 5*float64(j) + 1.5*math.Sin(float64(i)/5+float64(j))
		}
		seedSeries(src, code, days, series)
	}

	cfg := strategyconfig.Default()
	cfg.Signals.Active = []string{"momentum_20_120"}
	engine := newBacktestEngine(src, cfg)

	universe := append([]string{"CRSH"}, others...)
	run, err := engine.Run(context.Background(), runParams(universe, days))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var crashSnap *contracts.PortfolioSnapshot
	for i := range run.Snapshots {
		if run.Snapshots[i].Date.Equal(days[crashIdx]) {
			crashSnap = &run.Snapshots[i]
			break
		}
	}
	if crashSnap == nil {
		t.Fatal("no snapshot for crash day")
	}

	found := false
	for _, code := range crashSnap.ForcedExits {
		if code == "CRSH" {
			found = true
		}
	}
	if !found {
		t.Errorf("forced exits on crash day = %v, want CRSH", crashSnap.ForcedExits)
	}
	if crashSnap.DailyReturn >= 0 {
		t.Errorf("crash day return = %v, want negative", crashSnap.DailyReturn)
	}
	// 강제 청산도 매매: 청산 레그가 회전율/비용에 잡혀야 한다
	if crashSnap.Turnover <= 0 {
		t.Errorf("crash day turnover = %v, want > 0 (forced close is a trade)", crashSnap.Turnover)
	}
	if crashSnap.Cost <= 0 {
		t.Errorf("crash day cost = %v, want > 0", crashSnap.Cost)
	}
}

func TestRunCancelled(t *testing.T) {
	days := tradingCalendar(warmupDays + runDays)
	src := marketdata.NewMemorySource()
	universe := mixedUniverse(src, days)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := newBacktestEngine(src, strategyconfig.Default())
	run, err := engine.Run(ctx, runParams(universe, days))

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if run.State != contracts.RunFailed {
		t.Errorf("run state = %s, want FAILED", run.State)
	}
}

func TestRunNoTradingDays(t *testing.T) {
	days := tradingCalendar(warmupDays + runDays)
	src := marketdata.NewMemorySource()
	universe := mixedUniverse(src, days)

	params := runParams(universe, days)
	params.StartDate = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	params.EndDate = time.Date(2030, 1, 31, 0, 0, 0, 0, time.UTC)

	engine := newBacktestEngine(src, strategyconfig.Default())
	run, err := engine.Run(context.Background(), params)
	if err == nil {
		t.Fatal("expected error for empty trading window")
	}
	if run.State != contracts.RunFailed {
		t.Errorf("run state = %s, want FAILED", run.State)
	}
}
