package models

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// NumericField keeps the scraped text next to its parsed value. Numeric is nil
// when Raw is missing or does not parse as a finite number.
type NumericField struct {
	Raw     *string  `json:"raw"`
	Numeric *float64 `json:"numeric"`
}

func ParseNumericField(raw *string) NumericField {
	if raw == nil {
		return NumericField{}
	}
	text := strings.TrimSpace(*raw)
	out := NumericField{Raw: &text}
	cleaned := strings.ReplaceAll(text, ",", "")
	if v, err := strconv.ParseFloat(cleaned, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		out.Numeric = &v
	}
	return out
}

func (f NumericField) Present() bool {
	return f.Raw != nil
}

type FundamentalsRow struct {
	ID               string       `json:"id"`
	URL              string       `json:"google_url"`
	Symbol           string       `json:"google_symbol"`
	PERatio          NumericField `json:"peRatio"`
	EarningsPerShare NumericField `json:"earningsPerShare"`
}

type MissReason string

const (
	MissFetchFailed MissReason = "fetch_failed"
	MissNoFields    MissReason = "no_fields"
	MissCanceled    MissReason = "canceled"
)

type Miss struct {
	ID     string     `json:"id"`
	Symbol string     `json:"symbol"`
	Reason MissReason `json:"reason"`
	Detail string     `json:"detail,omitempty"`
}

// FundamentalsResult is the per-entity outcome of a fundamentals scrape.
// Exactly one of Row and Miss is set.
type FundamentalsResult struct {
	EntityID string
	Row      *FundamentalsRow
	Miss     *Miss
}

func (r FundamentalsResult) OK() bool {
	return r.Row != nil
}

type FundamentalsSnapshot struct {
	Version int               `json:"version"`
	TakenAt time.Time         `json:"takenAt"`
	Rows    []FundamentalsRow `json:"rows"`
	Misses  []Miss            `json:"misses"`
}

// Index maps entity id to its row. The first row wins on duplicates.
func (s *FundamentalsSnapshot) Index() map[string]FundamentalsRow {
	out := make(map[string]FundamentalsRow)
	if s == nil {
		return out
	}
	for _, row := range s.Rows {
		if _, ok := out[row.ID]; ok {
			continue
		}
		out[row.ID] = row
	}
	return out
}
