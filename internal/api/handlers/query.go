// Package handlers implements the read-only query endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/patterniq/internal/contracts"
	"github.com/wonny/patterniq/pkg/logger"
)

// RunReader loads persisted backtest runs
type RunReader interface {
	GetRun(ctx context.Context, id string) (*contracts.BacktestRun, error)
}

// TargetReader loads persisted target books
type TargetReader interface {
	GetTargets(ctx context.Context, date time.Time) (*contracts.TargetBook, error)
}

// Scorer computes combined scores on demand
type Scorer interface {
	Scores(ctx context.Context, universe []string, date time.Time) (map[string]*contracts.CombinedSignal, error)
}

// QueryHandler serves derived pipeline data
// ⭐ 읽기 전용 — 상태 변경 엔드포인트 없음
type QueryHandler struct {
	runs        RunReader
	targets     TargetReader
	scorer      Scorer
	instruments map[string]contracts.Instrument
	logger      *logger.Logger
}

// NewQueryHandler creates the query handler
func NewQueryHandler(runs RunReader, targets TargetReader, scorer Scorer, instruments map[string]contracts.Instrument, log *logger.Logger) *QueryHandler {
	return &QueryHandler{
		runs:        runs,
		targets:     targets,
		scorer:      scorer,
		instruments: instruments,
		logger:      log,
	}
}

// GetTargets returns the target book for a date
// GET /api/v1/targets/{date}
func (h *QueryHandler) GetTargets(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse("2006-01-02", mux.Vars(r)["date"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}

	book, err := h.targets.GetTargets(r.Context(), date)
	if err != nil {
		h.logger.WithError(err).Error("failed to load targets")
		writeError(w, http.StatusInternalServerError, "failed to load targets")
		return
	}
	if book.Count() == 0 {
		writeError(w, http.StatusNotFound, "no targets for date")
		return
	}

	writeJSON(w, http.StatusOK, book)
}

// GetRun returns a backtest run record by id
// GET /api/v1/runs/{id}
func (h *QueryHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.GetRun(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetScores computes the blended scores for a date over the active universe
// GET /api/v1/scores/{date}
func (h *QueryHandler) GetScores(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse("2006-01-02", mux.Vars(r)["date"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}

	universe := make([]string, 0, len(h.instruments))
	for code, inst := range h.instruments {
		if inst.ActiveOn(date) {
			universe = append(universe, code)
		}
	}
	sort.Strings(universe)
	if len(universe) == 0 {
		writeError(w, http.StatusNotFound, "no active instruments on date")
		return
	}

	combined, err := h.scorer.Scores(r.Context(), universe, date)
	if err != nil {
		h.logger.WithError(err).Error("failed to compute scores")
		writeError(w, http.StatusInternalServerError, "failed to compute scores")
		return
	}

	// 점수 내림차순 정렬해 반환
	list := make([]*contracts.CombinedSignal, 0, len(combined))
	for _, cs := range combined {
		list = append(list, cs)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Score != list[j].Score {
			return list[i].Score > list[j].Score
		}
		return list[i].Code < list[j].Code
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":   date.Format("2006-01-02"),
		"count":  len(list),
		"scores": list,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
