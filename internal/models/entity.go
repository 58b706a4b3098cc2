package models

import "github.com/shopspring/decimal"

// SourceSymbols holds the per-source ticker spellings of one entity.
type SourceSymbols struct {
	Google string `json:"google" yaml:"google"`
	Yahoo  string `json:"yahoo" yaml:"yahoo"`
}

// Entity is one row of the portfolio reference table.
type Entity struct {
	ID                  string          `json:"id" yaml:"id"`
	Name                string          `json:"name" yaml:"name"`
	Sector              string          `json:"sector" yaml:"sector"`
	Symbol              SourceSymbols   `json:"symbol" yaml:"symbol"`
	PurchasePrice       decimal.Decimal `json:"purchasePrice" yaml:"purchase_price"`
	Quantity            int64           `json:"quantity" yaml:"quantity"`
	Investment          decimal.Decimal `json:"investment" yaml:"investment"`
	PortfolioPercentage decimal.Decimal `json:"portfolioPercentage" yaml:"portfolio_percentage"`
}

// Target is the (entity id, source symbol) pair handed to a scraper.
type Target struct {
	ID     string
	Symbol string
}
