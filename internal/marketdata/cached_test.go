package marketdata

import (
	"context"
	"testing"

	"github.com/wonny/patterniq/pkg/config"
	"github.com/wonny/patterniq/pkg/redis"
)

func disabledCache(t *testing.T) *redis.Cache {
	t.Helper()
	client, err := redis.New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	if err != nil {
		t.Fatal(err)
	}
	return redis.NewCache(client, "patterniq")
}

// 캐시 비활성 시 원본 소스로 투명하게 전달되는지 확인
func TestCachedSourcePassthrough(t *testing.T) {
	inner := NewMemorySource()
	inner.AddBars(bars("AAPL", 10, 100)...)

	src := NewCachedSource(inner, disabledCache(t))
	ctx := context.Background()

	history, err := src.History(ctx, "AAPL", md(9), 5)
	if err != nil || len(history) != 5 {
		t.Errorf("History = (%d bars, %v), want (5, nil)", len(history), err)
	}

	price, err := src.AdjClose(ctx, "AAPL", md(3))
	if err != nil || price != 103 {
		t.Errorf("AdjClose = (%v, %v), want (103, nil)", price, err)
	}

	days, err := src.TradingDays(ctx, md(0), md(9))
	if err != nil || len(days) != 10 {
		t.Errorf("TradingDays = (%d, %v), want (10, nil)", len(days), err)
	}
}

func TestCachedSourcePropagatesGaps(t *testing.T) {
	inner := NewMemorySource()
	inner.AddBars(bars("AAPL", 3, 100)...)

	src := NewCachedSource(inner, disabledCache(t))

	if _, err := src.AdjClose(context.Background(), "AAPL", md(9)); err == nil {
		t.Error("expected data gap error to pass through the cache layer")
	}
}
