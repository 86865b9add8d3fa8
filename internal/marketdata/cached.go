package marketdata

import (
	"context"
	"time"

	"github.com/wonny/patterniq/internal/contracts"
	"github.com/wonny/patterniq/pkg/redis"
)

// CachedSource wraps a PriceSource with a Redis read-through cache.
// 일별 데이터는 확정 후 불변이므로 TTLDaily로 캐싱한다.
// 캐시 비활성 시 모든 호출은 원본으로 그대로 전달된다.
type CachedSource struct {
	inner contracts.PriceSource
	cache *redis.Cache
}

// NewCachedSource wraps inner with the given cache helper
func NewCachedSource(inner contracts.PriceSource, cache *redis.Cache) *CachedSource {
	return &CachedSource{inner: inner, cache: cache}
}

// History returns cached bars or reads through to the inner source
func (s *CachedSource) History(ctx context.Context, code string, through time.Time, days int) ([]contracts.PriceBar, error) {
	key := redis.BarsKey(code, through.Format("2006-01-02"), days)

	var bars []contracts.PriceBar
	if found, err := s.cache.Get(ctx, key, &bars); err == nil && found {
		return bars, nil
	}

	bars, err := s.inner.History(ctx, code, through, days)
	if err != nil {
		return nil, err
	}
	// 캐시 실패는 조회 결과에 영향 없음
	_ = s.cache.Set(ctx, key, bars, redis.TTLDaily)
	return bars, nil
}

// AdjClose returns the cached adjusted close or reads through.
// 데이터 갭은 캐싱하지 않는다 — 이후 적재되면 바로 조회돼야 한다
func (s *CachedSource) AdjClose(ctx context.Context, code string, date time.Time) (float64, error) {
	key := redis.AdjCloseKey(code, date.Format("2006-01-02"))

	var price float64
	if found, err := s.cache.Get(ctx, key, &price); err == nil && found {
		return price, nil
	}

	price, err := s.inner.AdjClose(ctx, code, date)
	if err != nil {
		return 0, err
	}
	_ = s.cache.Set(ctx, key, price, redis.TTLDaily)
	return price, nil
}

// TradingDays returns the cached calendar slice or reads through
func (s *CachedSource) TradingDays(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	key := redis.TradingDaysKey(from.Format("2006-01-02"), to.Format("2006-01-02"))

	var days []time.Time
	if found, err := s.cache.Get(ctx, key, &days); err == nil && found {
		return days, nil
	}

	days, err := s.inner.TradingDays(ctx, from, to)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, days, redis.TTLDaily)
	return days, nil
}
