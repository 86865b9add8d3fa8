package features

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/patterniq/internal/contracts"
	"github.com/wonny/patterniq/internal/strategyconfig"
	"github.com/wonny/patterniq/pkg/logger"
)

const (
	defaultWorkers = 8
	annualFactor   = 252.0 // 거래일 기준 연환산
)

// Engine computes per-instrument feature vectors as-of a trading date.
// ⭐ SSOT: 피처 계산은 여기서만 — 다운스트림은 FeatureVector만 소비
type Engine struct {
	prices  contracts.PriceSource
	cfg     strategyconfig.Features
	workers int
	logger  *logger.Logger
}

// NewEngine creates a feature engine over a price source
func NewEngine(prices contracts.PriceSource, cfg strategyconfig.Features, log *logger.Logger) *Engine {
	return &Engine{
		prices:  prices,
		cfg:     cfg,
		workers: defaultWorkers,
		logger:  log,
	}
}

// WithWorkers overrides the per-date computation parallelism
func (e *Engine) WithWorkers(n int) *Engine {
	if n > 0 {
		e.workers = n
	}
	return e
}

type computeResult struct {
	code   string
	vector *contracts.FeatureVector
	short  []*contracts.InsufficientHistoryError // 윈도우 미달로 생략된 피처
	err    error
}

// Compute calculates features for every instrument in the universe as-of date.
// Instruments without a bar on date are skipped entirely; instruments with an
// incomplete trailing window get that feature omitted, never zero-filled.
func (e *Engine) Compute(ctx context.Context, universe []string, date time.Time) (map[string]*contracts.FeatureVector, error) {
	e.logger.WithFields(map[string]interface{}{
		"date":     date.Format("2006-01-02"),
		"universe": len(universe),
	}).Info("Starting feature computation")

	need := e.barsNeeded()

	codeCh := make(chan string, len(universe))
	resultCh := make(chan computeResult, len(universe))

	var wg sync.WaitGroup

	// Start workers
	workers := e.workers
	if workers > len(universe) && len(universe) > 0 {
		workers = len(universe)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for code := range codeCh {
				select {
				case <-ctx.Done():
					resultCh <- computeResult{code: code, err: ctx.Err()}
					continue
				default:
				}

				bars, err := e.prices.History(ctx, code, date, need)
				if err != nil {
					resultCh <- computeResult{code: code, err: fmt.Errorf("history fetch for %s: %w", code, err)}
					continue
				}
				vector, short := e.computeOne(code, date, bars)
				resultCh <- computeResult{code: code, vector: vector, short: short}
			}
		}()
	}

	// Send codes to workers
	for _, code := range universe {
		codeCh <- code
	}
	close(codeCh)

	// Wait for all workers to complete
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// Collect results (map merge is order-independent)
	vectors := make(map[string]*contracts.FeatureVector, len(universe))
	skipped := 0
	for res := range resultCh {
		if res.err != nil {
			if ctx.Err() != nil {
				// 취소는 부분 결과를 버린다
				return nil, ctx.Err()
			}
			e.logger.WithFields(map[string]interface{}{
				"code":  res.code,
				"error": res.err.Error(),
			}).Warn("Skipping instrument, price history unavailable")
			skipped++
			continue
		}
		if res.vector == nil {
			// 해당 일자 바 없음 (신규상장/거래정지)
			skipped++
			continue
		}
		// 윈도우 미달은 해당 피처 생략으로 복구 — 기록만 남긴다
		for _, miss := range res.short {
			e.logger.WithFields(map[string]interface{}{
				"code":  res.code,
				"error": miss.Error(),
			}).Debug("Feature omitted, insufficient history")
		}
		vectors[res.code] = res.vector
	}

	e.logger.WithFields(map[string]interface{}{
		"date":     date.Format("2006-01-02"),
		"computed": len(vectors),
		"skipped":  skipped,
	}).Info("Feature computation completed")

	return vectors, nil
}

// barsNeeded returns the history depth covering every configured window
func (e *Engine) barsNeeded() int {
	need := 2 // gap_open
	for _, w := range e.cfg.MomentumWindows {
		if w+1 > need {
			need = w + 1
		}
	}
	for _, w := range []int{e.cfg.MeanRevWindow, e.cfg.VolWindow + 1, e.cfg.SMASlopeWindow + 1} {
		if w > need {
			need = w
		}
	}
	return need
}

// computeOne builds the feature vector for a single instrument.
// bars are ascending by date; a nil vector means no bar exists for date.
// 트레일링 윈도우 미달 피처는 생략하고 InsufficientHistory로 보고한다
func (e *Engine) computeOne(code string, date time.Time, bars []contracts.PriceBar) (*contracts.FeatureVector, []*contracts.InsufficientHistoryError) {
	n := len(bars)
	if n == 0 || !sameDay(bars[n-1].Date, date) {
		return nil, nil
	}

	closes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.AdjClose
	}

	vec := contracts.NewFeatureVector(code, date)
	var short []*contracts.InsufficientHistoryError

	// 수익률 피처 (윈도우별)
	for _, w := range e.cfg.MomentumWindows {
		if n < w+1 {
			short = append(short, &contracts.InsufficientHistoryError{
				What: fmt.Sprintf("ret_%d for %s", w, code), Have: n - 1, Need: w,
			})
			continue
		}
		if closes[n-1-w] > 0 {
			vec.Set(fmt.Sprintf("ret_%d", w), closes[n-1]/closes[n-1-w]-1)
		}
	}

	// 오버나이트 갭
	if n >= 2 && bars[n-2].AdjClose > 0 {
		vec.Set(contracts.FeatureGapOpen, bars[n-1].AdjOpen/bars[n-2].AdjClose-1)
	}

	// 실현 변동성 (연환산)
	if w := e.cfg.VolWindow; n >= w+1 {
		rets := dailyReturns(closes[n-1-w:])
		if len(rets) == w {
			vec.Set(contracts.FeatureVol20, stat.StdDev(rets, nil)*math.Sqrt(annualFactor))
		}
	} else {
		short = append(short, &contracts.InsufficientHistoryError{
			What: contracts.FeatureVol20 + " for " + code, Have: n - 1, Need: e.cfg.VolWindow,
		})
	}

	// 평균회귀 z-점수
	if w := e.cfg.MeanRevWindow; n >= w {
		window := closes[n-w:]
		mean, std := stat.MeanStdDev(window, nil)
		if std > 0 {
			vec.Set(contracts.FeatureMeanRevZ20, (closes[n-1]-mean)/std)
		}
	} else {
		short = append(short, &contracts.InsufficientHistoryError{
			What: contracts.FeatureMeanRevZ20 + " for " + code, Have: n, Need: e.cfg.MeanRevWindow,
		})
	}

	// 이동평균 기울기 (연환산)
	if w := e.cfg.SMASlopeWindow; n >= w+1 {
		smaNow := stat.Mean(closes[n-w:], nil)
		smaPrev := stat.Mean(closes[n-1-w:n-1], nil)
		if smaPrev > 0 {
			vec.Set(contracts.FeatureSMASlope20, (smaNow/smaPrev-1)*annualFactor)
		}
	} else {
		short = append(short, &contracts.InsufficientHistoryError{
			What: contracts.FeatureSMASlope20 + " for " + code, Have: n - 1, Need: e.cfg.SMASlopeWindow,
		})
	}

	return vec, short
}

// dailyReturns converts an ascending close series into simple daily returns.
// A non-positive close anywhere invalidates the window.
func dailyReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	rets := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 {
			return nil
		}
		rets = append(rets, closes[i]/closes[i-1]-1)
	}
	return rets
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
