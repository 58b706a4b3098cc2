package models

import (
	"fmt"
	"time"
)

const (
	SourceFundamentals = "fundamentals"
	SourceQuotes       = "quotes"
	SourceMerge        = "merge"
)

// SyncMarker records the last attempt of one pipeline stage.
type SyncMarker struct {
	Source   string    `json:"source"`
	At       time.Time `json:"at"`
	OK       bool      `json:"ok"`
	Count    int       `json:"count"`
	Misses   int       `json:"misses,omitempty"`
	Fallback bool      `json:"fallback,omitempty"`
	Error    *string   `json:"error,omitempty"`
}

func (m SyncMarker) String() string {
	stamp := m.At.Format("2006-01-02 15:04:05 MST")
	if !m.OK {
		msg := "unknown error"
		if m.Error != nil {
			msg = *m.Error
		}
		return fmt.Sprintf("%s sync failed at %s: %s", m.Source, stamp, msg)
	}
	if m.Source == SourceQuotes {
		return fmt.Sprintf("quotes: prices fetched for %d stocks at %s", m.Count, stamp)
	}
	return fmt.Sprintf("%s sync at %s (%d rows)", m.Source, stamp, m.Count)
}
