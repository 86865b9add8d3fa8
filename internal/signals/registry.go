package signals

import (
	"fmt"
	"sort"

	"github.com/wonny/patterniq/internal/contracts"
)

// Scorer produces a raw, pre-normalization score from one instrument's
// feature vector. Cross-sectional normalization happens in the Generator,
// so scorers stay pure per-instrument arithmetic.
type Scorer interface {
	// Name is the registry key and the persisted signal name
	Name() string

	// Horizon tags the holding period class this scorer trades on
	Horizon() contracts.Horizon

	// Requires lists the features the scorer reads; instruments missing any
	// of them are skipped for this signal, not zero-filled
	Requires() []string

	// Raw computes the unnormalized score. Only called when every required
	// feature is present.
	Raw(vec *contracts.FeatureVector) float64
}

// Registry holds named scorers (strategy pattern)
// ⭐ SSOT: 시그널 스코어러 등록은 여기서만
type Registry struct {
	scorers map[string]Scorer
}

// NewRegistry creates an empty scorer registry
func NewRegistry() *Registry {
	return &Registry{
		scorers: make(map[string]Scorer),
	}
}

// Register adds a scorer, rejecting duplicate names
func (r *Registry) Register(s Scorer) error {
	if _, exists := r.scorers[s.Name()]; exists {
		return fmt.Errorf("scorer %q already registered", s.Name())
	}
	r.scorers[s.Name()] = s
	return nil
}

// Get returns the scorer registered under name
func (r *Registry) Get(name string) (Scorer, bool) {
	s, ok := r.scorers[name]
	return s, ok
}

// Names returns registered scorer names, sorted for deterministic iteration
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scorers))
	for name := range r.scorers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry with every built-in scorer registered
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, s := range []Scorer{
		&MomentumScorer{},
		&MeanRevScorer{},
		&GapScorer{},
		&TrendScorer{},
	} {
		// 내장 스코어러 이름은 중복될 수 없다
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
	return r
}
