// Package offer normalizes raw catalog records into typed offers.
package offer

import (
	"github.com/shopspring/decimal"
)

// Offer is a fully normalized deal, ready for the notification sink.
//
// Invariants:
//   - ASIN is non-empty and uppercase
//   - PriceOld >= PriceNew
//   - DiscountPercent is 0..100 and equals the price-derived percentage
//     whenever both prices are known and differ
type Offer struct {
	ASIN            string
	Title           string
	PriceNew        decimal.Decimal
	PriceOld        decimal.Decimal
	DiscountPercent int
	ImageURL        string
	DetailURL       string
}

// Savings returns the absolute saved amount.
func (o Offer) Savings() decimal.Decimal {
	return o.PriceOld.Sub(o.PriceNew)
}

// HistoricLow reports whether the offer qualifies for the "all-time low"
// banner (30%+ off).
func (o Offer) HistoricLow() bool { return o.DiscountPercent >= 30 }
