package contracts

import "time"

// AssetClass categorizes instruments for risk parameters and exposure caps
type AssetClass string

const (
	AssetStock  AssetClass = "stock"
	AssetETF    AssetClass = "etf"
	AssetCrypto AssetClass = "crypto"
)

// Instrument represents reference data for a tradable instrument
// ⭐ SSOT: 종목 기준정보는 외부 수집 계층에서만 생성/갱신 (코어는 읽기 전용)
type Instrument struct {
	Code       string     `json:"code"`
	Name       string     `json:"name"`
	Sector     string     `json:"sector"`
	AssetClass AssetClass `json:"asset_class"`
	ListedAt   time.Time  `json:"listed_at"`
	DelistedAt *time.Time `json:"delisted_at,omitempty"`
}

// ActiveOn reports whether the instrument was tradable on the given date
func (i *Instrument) ActiveOn(date time.Time) bool {
	if date.Before(i.ListedAt) {
		return false
	}
	if i.DelistedAt != nil && !date.Before(*i.DelistedAt) {
		return false
	}
	return true
}

// PriceBar represents one daily bar for (instrument, date)
// Adj* 필드는 기업행위(분할/배당) 조정 완료 가격 — 코어 계산은 항상 Adj* 사용
type PriceBar struct {
	Code   string    `json:"code"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`

	AdjOpen  float64 `json:"adj_open"`
	AdjHigh  float64 `json:"adj_high"`
	AdjLow   float64 `json:"adj_low"`
	AdjClose float64 `json:"adj_close"`
}

// EarningsEvent represents a known earnings announcement date for an instrument
type EarningsEvent struct {
	Code string    `json:"code"`
	Date time.Time `json:"date"`
}

// DaysFrom returns the absolute distance in calendar days between the event
// and the given date
func (e *EarningsEvent) DaysFrom(date time.Time) int {
	d := e.Date.Sub(date).Hours() / 24
	if d < 0 {
		d = -d
	}
	return int(d)
}
