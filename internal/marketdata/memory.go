package marketdata

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wonny/patterniq/internal/contracts"
)

// MemorySource is an in-memory PriceSource for tests and self-contained
// backtests. Bars are kept ascending per instrument.
type MemorySource struct {
	mu       sync.RWMutex
	bars     map[string][]contracts.PriceBar
	calendar []time.Time
}

// NewMemorySource creates an empty in-memory price source
func NewMemorySource() *MemorySource {
	return &MemorySource{
		bars: make(map[string][]contracts.PriceBar),
	}
}

// AddBars appends bars for their instruments and re-sorts by date
func (m *MemorySource) AddBars(bars ...contracts.PriceBar) {
	m.mu.Lock()
	defer m.mu.Unlock()

	touched := make(map[string]bool)
	for _, b := range bars {
		m.bars[b.Code] = append(m.bars[b.Code], b)
		touched[b.Code] = true
	}
	for code := range touched {
		series := m.bars[code]
		sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	}
}

// SetCalendar fixes the trading calendar; without it the calendar is derived
// from the union of all bar dates
func (m *MemorySource) SetCalendar(days []time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calendar = append([]time.Time(nil), days...)
	sort.Slice(m.calendar, func(i, j int) bool { return m.calendar[i].Before(m.calendar[j]) })
}

// History returns up to days bars with Date <= through, ascending
func (m *MemorySource) History(ctx context.Context, code string, through time.Time, days int) ([]contracts.PriceBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	series := m.bars[code]
	end := sort.Search(len(series), func(i int) bool { return series[i].Date.After(through) })
	start := end - days
	if start < 0 {
		start = 0
	}

	out := make([]contracts.PriceBar, end-start)
	copy(out, series[start:end])
	return out, nil
}

// AdjClose returns the adjusted close for (code, date), or *DataGapError
func (m *MemorySource) AdjClose(ctx context.Context, code string, date time.Time) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, b := range m.bars[code] {
		if sameDay(b.Date, date) {
			return b.AdjClose, nil
		}
	}
	return 0, &contracts.DataGapError{Code: code, Date: date, What: "adjusted close"}
}

// TradingDays returns the ordered trading calendar within [from, to]
func (m *MemorySource) TradingDays(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	days := m.calendar
	if len(days) == 0 {
		seen := make(map[string]time.Time)
		for _, series := range m.bars {
			for _, b := range series {
				seen[b.Date.Format("2006-01-02")] = b.Date
			}
		}
		days = make([]time.Time, 0, len(seen))
		for _, d := range seen {
			days = append(days, d)
		}
		sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	}

	out := make([]time.Time, 0, len(days))
	for _, d := range days {
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// MemoryCalendar is an in-memory EarningsCalendar
type MemoryCalendar struct {
	mu     sync.RWMutex
	events map[string][]contracts.EarningsEvent
}

// NewMemoryCalendar creates an empty in-memory earnings calendar
func NewMemoryCalendar() *MemoryCalendar {
	return &MemoryCalendar{
		events: make(map[string][]contracts.EarningsEvent),
	}
}

// AddEvents registers earnings events
func (m *MemoryCalendar) AddEvents(events ...contracts.EarningsEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ev := range events {
		m.events[ev.Code] = append(m.events[ev.Code], ev)
	}
}

// NearestEvent returns the event closest to date, or nil when none is known
func (m *MemoryCalendar) NearestEvent(ctx context.Context, code string, date time.Time) (*contracts.EarningsEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var nearest *contracts.EarningsEvent
	best := -1
	for i := range m.events[code] {
		ev := m.events[code][i]
		d := ev.DaysFrom(date)
		if best < 0 || d < best {
			best = d
			nearest = &ev
		}
	}
	return nearest, nil
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
