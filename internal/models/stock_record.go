package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockRecord is the merged, per-entity view served to clients.
type StockRecord struct {
	ID          string  `json:"id"`
	Exchange    string  `json:"exchange"`
	YahooSymbol string  `json:"yahoo_symbol"`
	Name        string  `json:"name"`
	ShortName   string  `json:"shortName"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`

	GoogleSymbol     *string       `json:"google_symbol"`
	PERatio          *NumericField `json:"peRatio"`
	EarningsPerShare *NumericField `json:"earningsPerShare"`

	ExpTime  time.Time `json:"expTime"`
	MergedAt time.Time `json:"mergedAt"`

	DisplayName         string          `json:"displayName"`
	Sector              string          `json:"sector"`
	PurchasePrice       decimal.Decimal `json:"purchasePrice"`
	Quantity            int64           `json:"quantity"`
	Investment          decimal.Decimal `json:"investment"`
	PortfolioPercentage decimal.Decimal `json:"portfolioPercentage"`

	PresentValue *decimal.Decimal `json:"presentValue,omitempty"`
	GainLoss     *decimal.Decimal `json:"gainLoss,omitempty"`
}

// Expired reports whether now is past the record's freshness horizon.
func (r StockRecord) Expired(now time.Time) bool {
	return now.After(r.ExpTime)
}
