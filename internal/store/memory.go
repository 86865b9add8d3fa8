package store

import (
	"context"
	"sync"
	"time"

	"github.com/wonny/patterniq/internal/contracts"
	"github.com/wonny/patterniq/internal/strategyconfig"
)

// Memory is an in-process contracts.Store for tests and dry runs.
// 영속화 키 의미는 Postgres와 동일 — 같은 키 재기록 시 덮어쓴다
type Memory struct {
	mu       sync.RWMutex
	features map[string]*contracts.FeatureVector // code|date
	signals  map[string]*contracts.Signal        // code|date|name
	combined map[string]*contracts.CombinedSignal
	weights  map[string]*contracts.BlendWeights // date
	targets  map[string]*contracts.TargetBook   // date
	runs     map[string]*contracts.BacktestRun  // id
	configs  map[string]*strategyconfig.DecisionSnapshot // config_hash
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		features: make(map[string]*contracts.FeatureVector),
		signals:  make(map[string]*contracts.Signal),
		combined: make(map[string]*contracts.CombinedSignal),
		weights:  make(map[string]*contracts.BlendWeights),
		targets:  make(map[string]*contracts.TargetBook),
		runs:     make(map[string]*contracts.BacktestRun),
		configs:  make(map[string]*strategyconfig.DecisionSnapshot),
	}
}

func rowKey(parts ...string) string {
	key := parts[0]
	for _, p := range parts[1:] {
		key += "|" + p
	}
	return key
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// UpsertFeatures stores feature vectors keyed by (code, date)
func (m *Memory) UpsertFeatures(ctx context.Context, vectors []*contracts.FeatureVector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, vec := range vectors {
		m.features[rowKey(vec.Code, dateKey(vec.Date))] = vec
	}
	return nil
}

// UpsertSignals stores every score keyed by (code, date, name)
func (m *Memory) UpsertSignals(ctx context.Context, set *contracts.SignalSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, byCode := range set.Signals {
		for _, sig := range byCode {
			m.signals[rowKey(sig.Code, dateKey(sig.Date), sig.Name)] = sig
		}
	}
	return nil
}

// UpsertCombined stores blended scores and the day's weight vector
func (m *Memory) UpsertCombined(ctx context.Context, combined map[string]*contracts.CombinedSignal, weights *contracts.BlendWeights) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cs := range combined {
		m.combined[rowKey(cs.Code, dateKey(cs.Date))] = cs
	}
	m.weights[dateKey(weights.Date)] = weights
	return nil
}

// UpsertTargets stores the full target book keyed by date
func (m *Memory) UpsertTargets(ctx context.Context, book *contracts.TargetBook) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets[dateKey(book.Date)] = book
	return nil
}

// SaveRun stores the run record keyed by id
func (m *Memory) SaveRun(ctx context.Context, run *contracts.BacktestRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

// SaveDecisionSnapshot stores the launch config keyed by its hash.
// 동일 해시 재기록은 무시 (Postgres ON CONFLICT DO NOTHING과 동일 의미)
func (m *Memory) SaveDecisionSnapshot(ctx context.Context, snap *strategyconfig.DecisionSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.configs[snap.ConfigHash]; !exists {
		m.configs[snap.ConfigHash] = snap
	}
	return nil
}

// DecisionSnapshot returns a stored launch config by hash
func (m *Memory) DecisionSnapshot(hash string) (*strategyconfig.DecisionSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.configs[hash]
	return snap, ok
}

// Feature returns the stored vector for (code, date)
func (m *Memory) Feature(code string, date time.Time) (*contracts.FeatureVector, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vec, ok := m.features[rowKey(code, dateKey(date))]
	return vec, ok
}

// Signal returns the stored score for (code, date, name)
func (m *Memory) Signal(code string, date time.Time, name string) (*contracts.Signal, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sig, ok := m.signals[rowKey(code, dateKey(date), name)]
	return sig, ok
}

// Combined returns the stored blended score for (code, date)
func (m *Memory) Combined(code string, date time.Time) (*contracts.CombinedSignal, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cs, ok := m.combined[rowKey(code, dateKey(date))]
	return cs, ok
}

// Weights returns the stored weight vector for a date
func (m *Memory) Weights(date time.Time) (*contracts.BlendWeights, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.weights[dateKey(date)]
	return w, ok
}

// Targets returns the stored target book for a date
func (m *Memory) Targets(date time.Time) (*contracts.TargetBook, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	book, ok := m.targets[dateKey(date)]
	return book, ok
}

// Run returns a stored run record by id
func (m *Memory) Run(id string) (*contracts.BacktestRun, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	return run, ok
}

// Runs returns every stored run record
func (m *Memory) Runs() []*contracts.BacktestRun {
	m.mu.RLock()
	defer m.mu.RUnlock()
	runs := make([]*contracts.BacktestRun, 0, len(m.runs))
	for _, run := range m.runs {
		runs = append(runs, run)
	}
	return runs
}
