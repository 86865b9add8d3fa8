package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/patterniq/internal/contracts"
)

// PostgresSource implements contracts.PriceSource on the market schema.
// ⭐ SSOT: 가격/캘린더 영속 조회는 여기서만
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource creates a price source backed by the given pool
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// History returns up to `days` bars for code with date <= through,
// ascending by date
func (s *PostgresSource) History(ctx context.Context, code string, through time.Time, days int) ([]contracts.PriceBar, error) {
	query := `
		SELECT code, date, open, high, low, close, volume,
			adj_open, adj_high, adj_low, adj_close
		FROM market.daily_bars
		WHERE code = $1 AND date <= $2
		ORDER BY date DESC
		LIMIT $3
	`

	rows, err := s.pool.Query(ctx, query, code, through, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars for %s: %w", code, err)
	}
	defer rows.Close()

	var bars []contracts.PriceBar
	for rows.Next() {
		var b contracts.PriceBar
		if err := rows.Scan(
			&b.Code, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume,
			&b.AdjOpen, &b.AdjHigh, &b.AdjLow, &b.AdjClose,
		); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// DESC로 읽었으므로 오름차순으로 뒤집는다
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

// AdjClose returns the adjusted close for (code, date)
func (s *PostgresSource) AdjClose(ctx context.Context, code string, date time.Time) (float64, error) {
	query := `
		SELECT adj_close
		FROM market.daily_bars
		WHERE code = $1 AND date = $2
	`

	var price float64
	err := s.pool.QueryRow(ctx, query, code, date).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, &contracts.DataGapError{Code: code, Date: date, What: "adjusted close"}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query adj close for %s: %w", code, err)
	}
	return price, nil
}

// TradingDays returns the ordered trading calendar within [from, to]
func (s *PostgresSource) TradingDays(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	query := `
		SELECT DISTINCT date
		FROM market.daily_bars
		WHERE date BETWEEN $1 AND $2
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query trading days: %w", err)
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// SaveBars upserts daily bars keyed by (code, date)
func (s *PostgresSource) SaveBars(ctx context.Context, bars []contracts.PriceBar) error {
	query := `
		INSERT INTO market.daily_bars (
			code, date, open, high, low, close, volume,
			adj_open, adj_high, adj_low, adj_close
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (code, date) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			adj_open = EXCLUDED.adj_open,
			adj_high = EXCLUDED.adj_high,
			adj_low = EXCLUDED.adj_low,
			adj_close = EXCLUDED.adj_close
	`

	for _, b := range bars {
		if _, err := s.pool.Exec(ctx, query,
			b.Code, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume,
			b.AdjOpen, b.AdjHigh, b.AdjLow, b.AdjClose,
		); err != nil {
			return fmt.Errorf("failed to upsert bar %s/%s: %w", b.Code, b.Date.Format("2006-01-02"), err)
		}
	}
	return nil
}

// Instruments loads reference data for every known instrument
func (s *PostgresSource) Instruments(ctx context.Context) (map[string]contracts.Instrument, error) {
	query := `
		SELECT code, name, sector, asset_class, listed_at, delisted_at
		FROM market.instruments
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query instruments: %w", err)
	}
	defer rows.Close()

	instruments := make(map[string]contracts.Instrument)
	for rows.Next() {
		var (
			inst  contracts.Instrument
			class string
		)
		if err := rows.Scan(&inst.Code, &inst.Name, &inst.Sector, &class, &inst.ListedAt, &inst.DelistedAt); err != nil {
			return nil, err
		}
		inst.AssetClass = contracts.AssetClass(class)
		instruments[inst.Code] = inst
	}
	return instruments, rows.Err()
}

// PostgresCalendar implements contracts.EarningsCalendar on the market schema
type PostgresCalendar struct {
	pool *pgxpool.Pool
}

// NewPostgresCalendar creates an earnings calendar backed by the given pool
func NewPostgresCalendar(pool *pgxpool.Pool) *PostgresCalendar {
	return &PostgresCalendar{pool: pool}
}

// NearestEvent returns the earnings event closest to date for code,
// nil when none is known
func (c *PostgresCalendar) NearestEvent(ctx context.Context, code string, date time.Time) (*contracts.EarningsEvent, error) {
	query := `
		SELECT code, date
		FROM market.earnings_events
		WHERE code = $1
		ORDER BY GREATEST(date, $2::date) - LEAST(date, $2::date) ASC
		LIMIT 1
	`

	var ev contracts.EarningsEvent
	err := c.pool.QueryRow(ctx, query, code, date).Scan(&ev.Code, &ev.Date)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query earnings event for %s: %w", code, err)
	}
	return &ev, nil
}

// SaveEvents upserts earnings events keyed by (code, date)
func (c *PostgresCalendar) SaveEvents(ctx context.Context, events []contracts.EarningsEvent) error {
	query := `
		INSERT INTO market.earnings_events (code, date)
		VALUES ($1, $2)
		ON CONFLICT (code, date) DO NOTHING
	`

	for _, ev := range events {
		if _, err := c.pool.Exec(ctx, query, ev.Code, ev.Date); err != nil {
			return fmt.Errorf("failed to upsert earnings event %s/%s: %w", ev.Code, ev.Date.Format("2006-01-02"), err)
		}
	}
	return nil
}
