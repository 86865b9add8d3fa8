// Package store persists derived pipeline rows and backtest runs.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/patterniq/internal/contracts"
	"github.com/wonny/patterniq/internal/strategyconfig"
)

// Postgres implements contracts.Store on a pgx connection pool.
// ⭐ SSOT: 파생 데이터 영속화는 여기서만 — 키 충돌 시 덮어쓰기로 멱등 보장
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a store backed by the given pool
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// UpsertFeatures writes feature vectors keyed by (code, date)
func (s *Postgres) UpsertFeatures(ctx context.Context, vectors []*contracts.FeatureVector) error {
	query := `
		INSERT INTO derived.features (code, date, values)
		VALUES ($1, $2, $3)
		ON CONFLICT (code, date) DO UPDATE SET
			values = EXCLUDED.values
	`

	for _, vec := range vectors {
		valuesJSON, err := json.Marshal(vec.Values)
		if err != nil {
			return fmt.Errorf("failed to marshal feature values: %w", err)
		}
		if _, err := s.pool.Exec(ctx, query, vec.Code, vec.Date, valuesJSON); err != nil {
			return fmt.Errorf("failed to upsert features for %s: %w", vec.Code, err)
		}
	}
	return nil
}

// UpsertSignals writes every score in the set keyed by (code, date, name)
func (s *Postgres) UpsertSignals(ctx context.Context, set *contracts.SignalSet) error {
	query := `
		INSERT INTO derived.signals (code, date, name, score, rank, horizon, explain)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (code, date, name) DO UPDATE SET
			score = EXCLUDED.score,
			rank = EXCLUDED.rank,
			horizon = EXCLUDED.horizon,
			explain = EXCLUDED.explain
	`

	for _, name := range set.Names() {
		for _, sig := range set.Signals[name] {
			explainJSON, err := json.Marshal(sig.Explain)
			if err != nil {
				return fmt.Errorf("failed to marshal signal explain: %w", err)
			}
			if _, err := s.pool.Exec(ctx, query,
				sig.Code, sig.Date, sig.Name, sig.Score, sig.Rank, string(sig.Horizon), explainJSON,
			); err != nil {
				return fmt.Errorf("failed to upsert signal %s/%s: %w", name, sig.Code, err)
			}
		}
	}
	return nil
}

// UpsertCombined writes blended scores keyed by (code, date) and the day's
// weight vector keyed by date
func (s *Postgres) UpsertCombined(ctx context.Context, combined map[string]*contracts.CombinedSignal, weights *contracts.BlendWeights) error {
	combinedQuery := `
		INSERT INTO derived.combined (code, date, score, used, dominant_signal, horizon)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (code, date) DO UPDATE SET
			score = EXCLUDED.score,
			used = EXCLUDED.used,
			dominant_signal = EXCLUDED.dominant_signal,
			horizon = EXCLUDED.horizon
	`

	for _, cs := range combined {
		usedJSON, err := json.Marshal(cs.Used)
		if err != nil {
			return fmt.Errorf("failed to marshal used weights: %w", err)
		}
		if _, err := s.pool.Exec(ctx, combinedQuery,
			cs.Code, cs.Date, cs.Score, usedJSON, cs.DominantSignal, string(cs.Horizon),
		); err != nil {
			return fmt.Errorf("failed to upsert combined score for %s: %w", cs.Code, err)
		}
	}

	weightsJSON, err := json.Marshal(weights.Weights)
	if err != nil {
		return fmt.Errorf("failed to marshal blend weights: %w", err)
	}
	obsJSON, err := json.Marshal(weights.Observations)
	if err != nil {
		return fmt.Errorf("failed to marshal observations: %w", err)
	}
	excludedJSON, err := json.Marshal(weights.Excluded)
	if err != nil {
		return fmt.Errorf("failed to marshal excluded signals: %w", err)
	}

	weightsQuery := `
		INSERT INTO derived.blend_weights (date, mode, weights, observations, excluded)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (date) DO UPDATE SET
			mode = EXCLUDED.mode,
			weights = EXCLUDED.weights,
			observations = EXCLUDED.observations,
			excluded = EXCLUDED.excluded
	`

	if _, err := s.pool.Exec(ctx, weightsQuery,
		weights.Date, string(weights.Mode), weightsJSON, obsJSON, excludedJSON,
	); err != nil {
		return fmt.Errorf("failed to upsert blend weights: %w", err)
	}
	return nil
}

// UpsertTargets writes target positions keyed by (code, date)
func (s *Postgres) UpsertTargets(ctx context.Context, book *contracts.TargetBook) error {
	query := `
		INSERT INTO derived.targets (code, date, weight, asset_class, horizon, explain)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (code, date) DO UPDATE SET
			weight = EXCLUDED.weight,
			asset_class = EXCLUDED.asset_class,
			horizon = EXCLUDED.horizon,
			explain = EXCLUDED.explain
	`

	for _, tp := range book.Positions {
		explainJSON, err := json.Marshal(tp.Explain)
		if err != nil {
			return fmt.Errorf("failed to marshal sizing explain: %w", err)
		}
		if _, err := s.pool.Exec(ctx, query,
			tp.Code, tp.Date, tp.Weight, string(tp.AssetClass), string(tp.Horizon), explainJSON,
		); err != nil {
			return fmt.Errorf("failed to upsert target for %s: %w", tp.Code, err)
		}
	}
	return nil
}

// SaveRun writes the full run record keyed by id
func (s *Postgres) SaveRun(ctx context.Context, run *contracts.BacktestRun) error {
	paramsJSON, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal run params: %w", err)
	}
	snapshotsJSON, err := json.Marshal(run.Snapshots)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshots: %w", err)
	}
	metricsJSON, err := json.Marshal(run.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	query := `
		INSERT INTO backtest.runs (
			id, params, state, fail_reason, snapshots, metrics, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			fail_reason = EXCLUDED.fail_reason,
			snapshots = EXCLUDED.snapshots,
			metrics = EXCLUDED.metrics,
			finished_at = EXCLUDED.finished_at
	`

	if _, err := s.pool.Exec(ctx, query,
		run.ID, paramsJSON, string(run.State), run.FailReason,
		snapshotsJSON, metricsJSON, run.StartedAt, run.FinishedAt,
	); err != nil {
		return fmt.Errorf("failed to save backtest run %s: %w", run.ID, err)
	}
	return nil
}

// SaveDecisionSnapshot records the exact config a run was launched with,
// keyed by its hash. 동일 해시는 동일 설정 — 재기록은 무시한다
func (s *Postgres) SaveDecisionSnapshot(ctx context.Context, snap *strategyconfig.DecisionSnapshot) error {
	query := `
		INSERT INTO backtest.decision_snapshots (config_hash, strategy_id, config_yaml, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (config_hash) DO NOTHING
	`

	if _, err := s.pool.Exec(ctx, query,
		snap.ConfigHash, snap.StrategyID, snap.ConfigYAML, snap.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to save decision snapshot %s: %w", snap.ConfigHash, err)
	}
	return nil
}

// GetRun loads a run record by id
func (s *Postgres) GetRun(ctx context.Context, id string) (*contracts.BacktestRun, error) {
	query := `
		SELECT id, params, state, fail_reason, snapshots, metrics, started_at, finished_at
		FROM backtest.runs
		WHERE id = $1
	`

	var (
		run           contracts.BacktestRun
		state         string
		paramsJSON    []byte
		snapshotsJSON []byte
		metricsJSON   []byte
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&run.ID, &paramsJSON, &state, &run.FailReason,
		&snapshotsJSON, &metricsJSON, &run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	run.State = contracts.RunState(state)
	if err := json.Unmarshal(paramsJSON, &run.Params); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run params: %w", err)
	}
	if err := json.Unmarshal(snapshotsJSON, &run.Snapshots); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshots: %w", err)
	}
	if len(metricsJSON) > 0 && string(metricsJSON) != "null" {
		run.Metrics = &contracts.PerformanceMetrics{}
		if err := json.Unmarshal(metricsJSON, run.Metrics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
		}
	}
	return &run, nil
}

// GetTargets loads the target book for one date
func (s *Postgres) GetTargets(ctx context.Context, date time.Time) (*contracts.TargetBook, error) {
	query := `
		SELECT code, date, weight, asset_class, horizon, explain
		FROM derived.targets
		WHERE date = $1
		ORDER BY code ASC
	`

	rows, err := s.pool.Query(ctx, query, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	book := &contracts.TargetBook{Date: date}
	for rows.Next() {
		var (
			tp          contracts.TargetPosition
			class       string
			horizon     string
			explainJSON []byte
		)
		if err := rows.Scan(&tp.Code, &tp.Date, &tp.Weight, &class, &horizon, &explainJSON); err != nil {
			return nil, err
		}
		tp.AssetClass = contracts.AssetClass(class)
		tp.Horizon = contracts.Horizon(horizon)
		if err := json.Unmarshal(explainJSON, &tp.Explain); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sizing explain: %w", err)
		}
		book.Positions = append(book.Positions, tp)
	}
	return book, rows.Err()
}
