package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"portfolio/internal/models"
	"portfolio/internal/repository"
	"portfolio/internal/repository/memstore"
)

func TestLoadFundamentalsMissing(t *testing.T) {
	repo := repository.NewCacheRepository(memstore.New())
	_, err := repo.LoadFundamentals(context.Background())
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err=%v want=ErrNotFound", err)
	}
}

func TestLoadFundamentalsCorrupt(t *testing.T) {
	store := memstore.New()
	_ = store.Put(context.Background(), repository.KeyFundamentals, []byte("{not json"))
	repo := repository.NewCacheRepository(store)
	_, err := repo.LoadFundamentals(context.Background())
	if err == nil || errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err=%v want decode error", err)
	}
}

func TestListStocksSkipsUnreadable(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	repo := repository.NewCacheRepository(store)
	for _, id := range []string{"b", "a"} {
		rec := models.StockRecord{ID: id, Investment: decimal.NewFromInt(10), ExpTime: time.Unix(0, 0)}
		if err := repo.SaveStock(ctx, rec); err != nil {
			t.Fatalf("save err=%v", err)
		}
	}
	_ = store.Put(ctx, repository.StockKey("broken"), []byte("{"))

	records, skipped, err := repo.ListStocks(ctx)
	if err != nil {
		t.Fatalf("list err=%v", err)
	}
	if len(records) != 2 || records[0].ID != "a" || records[1].ID != "b" {
		t.Fatalf("records=%+v want a,b", records)
	}
	if len(skipped) != 1 || skipped[0] != "stocks/broken" {
		t.Fatalf("skipped=%v want=[stocks/broken]", skipped)
	}
}

func TestSaveStockRejectsUnsafeID(t *testing.T) {
	repo := repository.NewCacheRepository(memstore.New())
	err := repo.SaveStock(context.Background(), models.StockRecord{ID: "../x"})
	if !errors.Is(err, repository.ErrInvalidKey) {
		t.Fatalf("err=%v want=ErrInvalidKey", err)
	}
}

func TestSyncMarkersBySource(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewCacheRepository(memstore.New())
	at := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)
	_ = repo.SaveSyncMarker(ctx, models.SyncMarker{Source: models.SourceQuotes, At: at, OK: true, Count: 3})
	_ = repo.SaveSyncMarker(ctx, models.SyncMarker{Source: models.SourceMerge, At: at, OK: true, Count: 3})

	markers, err := repo.SyncMarkers(ctx)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(markers) != 2 || !markers[models.SourceQuotes].At.Equal(at) {
		t.Fatalf("markers=%+v", markers)
	}
}

func TestNilRepository(t *testing.T) {
	var repo *repository.CacheRepository
	if _, err := repo.LoadQuotes(context.Background()); err == nil {
		t.Fatalf("expected error from nil repository")
	}
}

func TestValidateKey(t *testing.T) {
	cases := []struct {
		key string
		ok  bool
	}{
		{"stocks/a", true},
		{"snapshots/fundamentals", true},
		{"", false},
		{"a/../b", false},
		{"a/", false},
		{`a\b`, false},
	}
	for _, tc := range cases {
		err := repository.ValidateKey(tc.key)
		if (err == nil) != tc.ok {
			t.Fatalf("ValidateKey(%q) err=%v want ok=%v", tc.key, err, tc.ok)
		}
	}
}
