package models

import "time"

type QuoteRow struct {
	ID        string  `json:"id"`
	Exchange  string  `json:"exchange"`
	Symbol    string  `json:"yahoo_symbol"`
	Name      string  `json:"name"`
	ShortName string  `json:"shortName"`
	Price     float64 `json:"price"`
	Currency  string  `json:"currency"`
}

type QuoteSnapshot struct {
	Version int        `json:"version"`
	TakenAt time.Time  `json:"takenAt"`
	Rows    []QuoteRow `json:"rows"`
}
