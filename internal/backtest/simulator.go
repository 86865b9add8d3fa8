package backtest

import (
	"sort"
	"time"

	"github.com/wonny/patterniq/internal/contracts"
	"github.com/wonny/patterniq/internal/strategyconfig"
)

// position is one open holding inside the simulated book
type position struct {
	Code       string
	Weight     float64 // 현재 드리프트 반영 비중, 부호 = 롱/숏
	EntryDate  time.Time
	EntryPrice float64
	LastPrice  float64
	AssetClass contracts.AssetClass
	Horizon    contracts.Horizon
}

// cumulativeReturn is the position P&L since entry at the last marked price
func (p *position) cumulativeReturn() float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	ret := p.LastPrice/p.EntryPrice - 1
	if p.Weight < 0 {
		return -ret
	}
	return ret
}

// Book simulates a long/short portfolio in multiplier accounting:
// Value는 초기자본 1.0 기준 순자산배수, 비중은 순자산 대비.
// ⭐ SSOT: 포지션 상태 변경은 Book 메서드를 통해서만
type Book struct {
	Value     float64
	positions map[string]*position
}

// NewBook starts an empty book at unit value
func NewBook() *Book {
	return &Book{
		Value:     1.0,
		positions: make(map[string]*position),
	}
}

// MarkToMarket revalues every open position at the day's adjusted close
// and drifts weights by relative performance. Returns the gross portfolio
// return for the day (비용 차감 전).
// 보유 종목 가격 누락은 시뮬레이션 무결성 위반 → *DataGapError
func (b *Book) MarkToMarket(date time.Time, prices map[string]float64) (float64, error) {
	portfolioRet := 0.0
	rets := make(map[string]float64, len(b.positions))

	for code, pos := range b.positions {
		price, ok := prices[code]
		if !ok || price <= 0 {
			return 0, &contracts.DataGapError{Code: code, Date: date, What: "adjusted close"}
		}
		priceRet := price/pos.LastPrice - 1
		rets[code] = priceRet
		portfolioRet += pos.Weight * priceRet
	}

	for code, pos := range b.positions {
		pos.Weight = pos.Weight * (1 + rets[code]) / (1 + portfolioRet)
		pos.LastPrice = prices[code]
	}
	b.Value *= 1 + portfolioRet

	return portfolioRet, nil
}

// ApplyExits force-closes positions whose cumulative return since entry
// breached the horizon's stop-loss or take-profit. Returns closed codes
// sorted for deterministic snapshots, plus the traded notional and its
// cost. 청산도 매매 — 청산 비중만큼 회전율에 잡히고 비용이 차감된다.
// 당일 재진입 시 청산/진입 양쪽 레그 모두 과금.
// 강제 청산된 종목은 당일 신규 목표에서 재진입 가능
func (b *Book) ApplyExits(exits *strategyconfig.Exits, costRate float64) (closed []string, turnover, cost float64) {
	for code, pos := range b.positions {
		params := exits.ForHorizon(pos.Horizon)
		cum := pos.cumulativeReturn()
		if cum <= -params.StopLoss || cum >= params.TakeProfit {
			closed = append(closed, code)
		}
	}
	sort.Strings(closed)
	for _, code := range closed {
		turnover += abs(b.positions[code].Weight)
		delete(b.positions, code)
	}

	cost = turnover * costRate
	b.Value *= 1 - cost

	return closed, turnover, cost
}

// Rebalance replaces current holdings with the target book at the day's
// prices. Targets without a price are skipped (전량 아닌 해당 종목만).
// costRate is the fraction of traded notional lost to costs; it is
// charged against book value immediately.
// 진입 시점은 부호가 유지되는 동안 보존된다 (청산 파라미터 기준점)
func (b *Book) Rebalance(date time.Time, targets *contracts.TargetBook, prices map[string]float64, costRate float64) (turnover, cost float64, skipped []string) {
	next := make(map[string]*position, targets.Count())

	for _, tp := range targets.Positions {
		price, ok := prices[tp.Code]
		if !ok || price <= 0 {
			skipped = append(skipped, tp.Code)
			continue
		}
		pos := &position{
			Code:       tp.Code,
			Weight:     tp.Weight,
			EntryDate:  date,
			EntryPrice: price,
			LastPrice:  price,
			AssetClass: tp.AssetClass,
			Horizon:    tp.Horizon,
		}
		if prev, held := b.positions[tp.Code]; held && sameSign(prev.Weight, tp.Weight) {
			pos.EntryDate = prev.EntryDate
			pos.EntryPrice = prev.EntryPrice
		}
		next[tp.Code] = pos
	}

	// 회전율: 기존/신규 합집합에 대한 비중 변화 절대값 합
	codes := make(map[string]struct{}, len(b.positions)+len(next))
	for code := range b.positions {
		codes[code] = struct{}{}
	}
	for code := range next {
		codes[code] = struct{}{}
	}
	for code := range codes {
		var prev, target float64
		if p, ok := b.positions[code]; ok {
			prev = p.Weight
		}
		if p, ok := next[code]; ok {
			target = p.Weight
		}
		turnover += abs(target - prev)
	}

	cost = turnover * costRate
	b.Value *= 1 - cost
	b.positions = next
	sort.Strings(skipped)

	return turnover, cost, skipped
}

// Snapshot captures the end-of-day book state
func (b *Book) Snapshot(date time.Time, dailyReturn, turnover, cost float64, forcedExits []string) contracts.PortfolioSnapshot {
	codes := make([]string, 0, len(b.positions))
	for code := range b.positions {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var grossLong, grossShort float64
	states := make([]contracts.PositionState, 0, len(codes))
	for _, code := range codes {
		pos := b.positions[code]
		states = append(states, contracts.PositionState{
			Code:       pos.Code,
			Weight:     pos.Weight,
			EntryDate:  pos.EntryDate,
			EntryPrice: pos.EntryPrice,
			AssetClass: pos.AssetClass,
			Horizon:    pos.Horizon,
		})
		if pos.Weight > 0 {
			grossLong += pos.Weight
		} else {
			grossShort -= pos.Weight
		}
	}

	return contracts.PortfolioSnapshot{
		Date:        date,
		Value:       b.Value,
		Cash:        1 - (grossLong - grossShort),
		Positions:   states,
		GrossLong:   grossLong,
		GrossShort:  grossShort,
		DailyReturn: dailyReturn,
		Turnover:    turnover,
		Cost:        cost,
		ForcedExits: forcedExits,
	}
}

// Holdings returns the open position codes, sorted
func (b *Book) Holdings() []string {
	codes := make([]string, 0, len(b.positions))
	for code := range b.positions {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
