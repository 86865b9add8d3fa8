package blend

import (
	"sort"
	"sync"
	"time"

	"github.com/wonny/patterniq/internal/contracts"
)

// ICObservation is one realized information-coefficient measurement:
// day-d scores correlated against the d → d+H forward returns, known only
// once d+H has traded.
type ICObservation struct {
	SignalDate   time.Time `json:"signal_date"`
	RealizedDate time.Time `json:"realized_date"`
	IC           float64   `json:"ic"`
	Samples      int       `json:"samples"`
}

// ICWindow keeps the trailing IC observations per signal.
// ⭐ SSOT: IC 히스토리의 유일한 보관소 — 추가는 실현 시점에만
type ICWindow struct {
	mu     sync.RWMutex
	window int
	obs    map[string][]ICObservation // SignalDate 오름차순
}

// NewICWindow creates a window retaining the trailing `window` observations
// per signal
func NewICWindow(window int) *ICWindow {
	return &ICWindow{
		window: window,
		obs:    make(map[string][]ICObservation),
	}
}

// Add records a realized observation. An observation whose realization does
// not come strictly after its signal date is a causality defect and is
// rejected as fatal.
func (w *ICWindow) Add(signal string, obs ICObservation) error {
	if !obs.RealizedDate.After(obs.SignalDate) {
		return &contracts.CausalityViolationError{
			Computation: "ic observation for " + signal,
			Date:        obs.SignalDate,
			Referenced:  obs.RealizedDate,
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	series := append(w.obs[signal], obs)
	sort.Slice(series, func(i, j int) bool { return series[i].SignalDate.Before(series[j].SignalDate) })
	if len(series) > w.window {
		series = series[len(series)-w.window:]
	}
	w.obs[signal] = series
	return nil
}

// Before returns the observations usable for a date-d decision: only those
// realized strictly before d. Later observations exist during backtests that
// replay stored history; they are invisible here, never an error.
func (w *ICWindow) Before(signal string, date time.Time) []ICObservation {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]ICObservation, 0, len(w.obs[signal]))
	for _, o := range w.obs[signal] {
		if o.RealizedDate.Before(date) {
			out = append(out, o)
		}
	}
	return out
}

// Signals returns the signal names with any stored history, sorted
func (w *ICWindow) Signals() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	names := make([]string, 0, len(w.obs))
	for name := range w.obs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
