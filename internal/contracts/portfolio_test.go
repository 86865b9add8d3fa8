package contracts

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestTargetBook_GrossExposure(t *testing.T) {
	book := &TargetBook{
		Date: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		Positions: []TargetPosition{
			{Code: "AAPL", Weight: 0.03, AssetClass: AssetStock},
			{Code: "MSFT", Weight: 0.025, AssetClass: AssetStock},
			{Code: "TSLA", Weight: -0.02, AssetClass: AssetStock},
			{Code: "GBTC", Weight: -0.01, AssetClass: AssetCrypto},
		},
	}

	epsilon := 1e-12
	if got := book.GrossLong(); got-0.055 > epsilon || 0.055-got > epsilon {
		t.Errorf("GrossLong() = %v, want 0.055", got)
	}
	if got := book.GrossShort(); got-0.03 > epsilon || 0.03-got > epsilon {
		t.Errorf("GrossShort() = %v, want 0.03", got)
	}
}

func TestTargetBook_Get(t *testing.T) {
	book := &TargetBook{
		Positions: []TargetPosition{
			{Code: "AAPL", Weight: 0.03},
			{Code: "TSLA", Weight: -0.02},
		},
	}

	pos, ok := book.Get("TSLA")
	if !ok {
		t.Fatal("expected position for TSLA")
	}
	if pos.Weight != -0.02 {
		t.Errorf("Weight = %v, want -0.02", pos.Weight)
	}

	if _, ok := book.Get("NVDA"); ok {
		t.Error("expected no position for NVDA")
	}
}

func TestInstrument_ActiveOn(t *testing.T) {
	delisted := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		inst Instrument
		date time.Time
		want bool
	}{
		{
			name: "active",
			inst: Instrument{Code: "AAPL", ListedAt: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)},
			date: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "before listing",
			inst: Instrument{Code: "ABNB", ListedAt: time.Date(2020, 12, 10, 0, 0, 0, 0, time.UTC)},
			date: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "after delisting",
			inst: Instrument{Code: "TWTR", ListedAt: time.Date(2013, 11, 7, 0, 0, 0, 0, time.UTC), DelistedAt: &delisted},
			date: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.inst.ActiveOn(tt.date); got != tt.want {
				t.Errorf("ActiveOn() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorTaxonomy(t *testing.T) {
	date := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	gap := fmt.Errorf("mark to market: %w", &DataGapError{Code: "AAPL", Date: date, What: "adjusted close"})
	if !IsDataGap(gap) {
		t.Error("expected wrapped DataGapError to be detected")
	}
	if IsCausalityViolation(gap) {
		t.Error("DataGapError must not match causality check")
	}

	causal := fmt.Errorf("blend: %w", &CausalityViolationError{
		Computation: "ic weights",
		Date:        date,
		Referenced:  date.AddDate(0, 0, 5),
	})
	if !IsCausalityViolation(causal) {
		t.Error("expected wrapped CausalityViolationError to be detected")
	}

	var hist *InsufficientHistoryError
	err := fmt.Errorf("weights: %w", &InsufficientHistoryError{What: "ic window", Have: 10, Need: 20})
	if !errors.As(err, &hist) {
		t.Fatal("expected InsufficientHistoryError")
	}
	if hist.Have != 10 || hist.Need != 20 {
		t.Errorf("got have=%d need=%d, want 10/20", hist.Have, hist.Need)
	}
}
