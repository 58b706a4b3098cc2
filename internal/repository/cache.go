package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"portfolio/internal/models"
)

const (
	KeyFundamentals = "snapshots/fundamentals"
	KeyQuotes       = "snapshots/quotes"
	StockPrefix     = "stocks/"
	SyncPrefix      = "sync/"

	SyncLogStream = "sync"
)

func StockKey(id string) string {
	return StockPrefix + id
}

func SyncKey(source string) string {
	return SyncPrefix + source
}

// CacheRepository stores the pipeline's typed documents on top of a KVStore.
type CacheRepository struct {
	Store KVStore
}

func NewCacheRepository(store KVStore) *CacheRepository {
	return &CacheRepository{Store: store}
}

func (r *CacheRepository) SaveFundamentals(ctx context.Context, snap models.FundamentalsSnapshot) error {
	return r.putJSON(ctx, KeyFundamentals, snap)
}

// LoadFundamentals returns ErrNotFound when no snapshot has been written yet.
func (r *CacheRepository) LoadFundamentals(ctx context.Context) (*models.FundamentalsSnapshot, error) {
	var snap models.FundamentalsSnapshot
	if err := r.getJSON(ctx, KeyFundamentals, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (r *CacheRepository) SaveQuotes(ctx context.Context, snap models.QuoteSnapshot) error {
	return r.putJSON(ctx, KeyQuotes, snap)
}

func (r *CacheRepository) LoadQuotes(ctx context.Context) (*models.QuoteSnapshot, error) {
	var snap models.QuoteSnapshot
	if err := r.getJSON(ctx, KeyQuotes, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (r *CacheRepository) SaveStock(ctx context.Context, rec models.StockRecord) error {
	if err := ValidateKey(StockKey(rec.ID)); err != nil {
		return err
	}
	return r.putJSON(ctx, StockKey(rec.ID), rec)
}

func (r *CacheRepository) GetStock(ctx context.Context, id string) (*models.StockRecord, error) {
	var rec models.StockRecord
	if err := r.getJSON(ctx, StockKey(id), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListStocks reads every stored stock record. Records that cannot be read or
// decoded are skipped and their keys returned in skipped.
func (r *CacheRepository) ListStocks(ctx context.Context) (records []models.StockRecord, skipped []string, err error) {
	if r == nil || r.Store == nil {
		return nil, nil, errors.New("cache store not configured")
	}
	keys, err := r.Store.List(ctx, StockPrefix)
	if err != nil {
		return nil, nil, err
	}
	records = make([]models.StockRecord, 0, len(keys))
	for _, key := range keys {
		var rec models.StockRecord
		if err := r.getJSON(ctx, key, &rec); err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			skipped = append(skipped, key)
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

func (r *CacheRepository) SaveSyncMarker(ctx context.Context, marker models.SyncMarker) error {
	return r.putJSON(ctx, SyncKey(marker.Source), marker)
}

// SyncMarkers returns the latest marker per source, keyed by source name.
func (r *CacheRepository) SyncMarkers(ctx context.Context) (map[string]models.SyncMarker, error) {
	if r == nil || r.Store == nil {
		return nil, errors.New("cache store not configured")
	}
	keys, err := r.Store.List(ctx, SyncPrefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.SyncMarker, len(keys))
	for _, key := range keys {
		var m models.SyncMarker
		if err := r.getJSON(ctx, key, &m); err != nil {
			continue
		}
		out[strings.TrimPrefix(key, SyncPrefix)] = m
	}
	return out, nil
}

func (r *CacheRepository) AppendSyncLog(ctx context.Context, line string) error {
	if r == nil || r.Store == nil {
		return errors.New("cache store not configured")
	}
	return r.Store.AppendLog(ctx, SyncLogStream, line)
}

func (r *CacheRepository) TailSyncLog(ctx context.Context, limit int) ([]string, error) {
	if r == nil || r.Store == nil {
		return nil, errors.New("cache store not configured")
	}
	return r.Store.ReadLog(ctx, SyncLogStream, limit)
}

func (r *CacheRepository) putJSON(ctx context.Context, key string, v any) error {
	if r == nil || r.Store == nil {
		return errors.New("cache store not configured")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.Store.Put(ctx, key, b); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (r *CacheRepository) getJSON(ctx context.Context, key string, v any) error {
	if r == nil || r.Store == nil {
		return errors.New("cache store not configured")
	}
	b, err := r.Store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

