package contracts

import (
	"sort"
	"time"
)

// Horizon tags a signal with its holding period class.
// 청산 파라미터(손절/익절)는 호라이즌별로 달라진다
type Horizon string

const (
	HorizonShort Horizon = "short"
	HorizonMid   Horizon = "mid"
	HorizonLong  Horizon = "long"
)

// Signal represents one normalized directional score for (instrument, date, name)
// ⭐ SSOT: 점수는 당일 유니버스 내 횡단면 정규화 결과 — 날짜 간 절대 비교 금지
type Signal struct {
	Code    string        `json:"code"`
	Date    time.Time     `json:"date"`
	Name    string        `json:"name"`
	Score   float64       `json:"score"` // -1.0 ~ 1.0
	Rank    int           `json:"rank"`  // 1-based, 당일 점수 내림차순
	Horizon Horizon       `json:"horizon"`
	Explain SignalExplain `json:"explain"`
}

// SignalExplain retains the raw computation behind a score so it can be
// reconstructed deterministically from stored inputs
type SignalExplain struct {
	Inputs    map[string]float64 `json:"inputs"`     // 사용한 피처 값
	Raw       float64            `json:"raw"`        // 정규화 이전 원점수
	CrossMean float64            `json:"cross_mean"` // 당일 횡단면 평균
	CrossStd  float64            `json:"cross_std"`  // 당일 횡단면 표준편차
	ZClip     float64            `json:"z_clip"`     // z-score 클리핑 한계
	Eligible  int                `json:"eligible"`   // 당일 계산 대상 종목 수
}

// SignalSet groups all scores sharing a date, keyed by signal name then code
type SignalSet struct {
	Date    time.Time                     `json:"date"`
	Signals map[string]map[string]*Signal `json:"signals"`
}

// NewSignalSet creates an empty signal set for a date
func NewSignalSet(date time.Time) *SignalSet {
	return &SignalSet{
		Date:    date,
		Signals: make(map[string]map[string]*Signal),
	}
}

// Add stores a signal, overwriting by (name, code)
func (s *SignalSet) Add(sig *Signal) {
	byCode, ok := s.Signals[sig.Name]
	if !ok {
		byCode = make(map[string]*Signal)
		s.Signals[sig.Name] = byCode
	}
	byCode[sig.Code] = sig
}

// Get returns the signal for (name, code) if published that day
func (s *SignalSet) Get(name, code string) (*Signal, bool) {
	byCode, ok := s.Signals[name]
	if !ok {
		return nil, false
	}
	sig, ok := byCode[code]
	return sig, ok
}

// Names returns the signal names present, sorted for deterministic iteration
func (s *SignalSet) Names() []string {
	names := make([]string, 0, len(s.Signals))
	for name := range s.Signals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Scores returns code → score for one signal name
func (s *SignalSet) Scores(name string) map[string]float64 {
	scores := make(map[string]float64)
	for code, sig := range s.Signals[name] {
		scores[code] = sig.Score
	}
	return scores
}

// Count returns the total number of published scores across all signals
func (s *SignalSet) Count() int {
	total := 0
	for _, byCode := range s.Signals {
		total += len(byCode)
	}
	return total
}
