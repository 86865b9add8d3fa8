package commands

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/patterniq/internal/blend"
	"github.com/wonny/patterniq/internal/contracts"
	"github.com/wonny/patterniq/internal/features"
	"github.com/wonny/patterniq/internal/marketdata"
	"github.com/wonny/patterniq/internal/pipeline"
	"github.com/wonny/patterniq/internal/portfolio"
	"github.com/wonny/patterniq/internal/signals"
	"github.com/wonny/patterniq/internal/store"
	"github.com/wonny/patterniq/internal/strategyconfig"
	"github.com/wonny/patterniq/pkg/config"
	"github.com/wonny/patterniq/pkg/database"
	"github.com/wonny/patterniq/pkg/logger"
	"github.com/wonny/patterniq/pkg/redis"
)

// runtime wires every layer for a command invocation
// ⭐ SSOT: CLI 의존성 조립은 여기서만
type runtime struct {
	cfg          *config.Config
	strategy     *strategyconfig.Config
	strategyYAML []byte
	log          *logger.Logger
	db           *database.DB
	cache        *redis.Client
	source       *marketdata.PostgresSource
	prices       contracts.PriceSource
	calendar     *marketdata.PostgresCalendar
	instruments  map[string]contracts.Instrument
	store        *store.Postgres
	orch         *pipeline.Orchestrator
}

func initRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	strategy, strategyYAML, err := loadStrategy(cfg)
	if err != nil {
		return nil, fmt.Errorf("load strategy config: %w", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	cacheClient, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	cache := redis.NewCache(cacheClient, "patterniq")

	source := marketdata.NewPostgresSource(db.Pool)
	prices := marketdata.NewCachedSource(source, cache)
	calendar := marketdata.NewPostgresCalendar(db.Pool)

	instruments, err := source.Instruments(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load instruments: %w", err)
	}

	st := store.NewPostgres(db.Pool)

	feat := features.NewEngine(prices, strategy.Features, log)
	gen := signals.NewGenerator(signals.DefaultRegistry(), strategy.Signals, log)
	bl := blend.New(blend.NewICWindow(strategy.Blend.ICWindowDays), strategy.Blend, log)
	cons := portfolio.NewConstructor(strategy.Portfolio, calendar, instruments, log)
	orch := pipeline.NewOrchestrator(feat, gen, bl, cons, st, log)

	return &runtime{
		cfg:          cfg,
		strategy:     strategy,
		strategyYAML: strategyYAML,
		log:          log,
		db:           db,
		cache:        cacheClient,
		source:       source,
		prices:       prices,
		calendar:     calendar,
		instruments:  instruments,
		store:        st,
		orch:         orch,
	}, nil
}

func (r *runtime) Close() {
	if r.cache != nil {
		_ = r.cache.Close()
	}
	if r.db != nil {
		r.db.Close()
	}
}

// universe returns the codes tradable on a date, sorted
func (r *runtime) universe(date time.Time) []string {
	codes := make([]string, 0, len(r.instruments))
	for code, inst := range r.instruments {
		if inst.ActiveOn(date) {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes
}

// loadStrategy resolves the strategy config: --strategy flag, then env
// path, then the built-in defaults. 원본 YAML은 감사 스냅샷용으로 보존
func loadStrategy(cfg *config.Config) (*strategyconfig.Config, []byte, error) {
	path := strategyFile
	if path == "" {
		path = cfg.StrategyConfigPath
	}
	if path == "" {
		return strategyconfig.Default(), nil, nil
	}

	return strategyconfig.Load(path)
}
