// Package publisher fans merged stock records out to downstream consumers.
package publisher

import (
	"context"

	"portfolio/internal/models"
)

type Publisher interface {
	Publish(ctx context.Context, records []models.StockRecord) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) Publish(context.Context, []models.StockRecord) error { return nil }

func (Nop) Close() error { return nil }
