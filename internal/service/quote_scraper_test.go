package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"portfolio/internal/client/yahoo"
	"portfolio/internal/models"
	"portfolio/internal/repository"
	"portfolio/internal/repository/memstore"
)

type stubProvider struct {
	mu     sync.Mutex
	quotes map[string]yahoo.Quote
	fail   map[string]bool
	calls  int
}

func (s *stubProvider) Quote(ctx context.Context, symbol string) (yahoo.Quote, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.fail[symbol] {
		return yahoo.Quote{}, errors.New("upstream 503")
	}
	q, ok := s.quotes[symbol]
	if !ok {
		return yahoo.Quote{}, yahoo.ErrNoQuote
	}
	return q, nil
}

func price(v float64) *float64 { return &v }

func quoteTargets() []models.Target {
	return []models.Target{{ID: "a", Symbol: "A.NS"}, {ID: "b", Symbol: "B.NS"}}
}

func healthyProvider() *stubProvider {
	return &stubProvider{quotes: map[string]yahoo.Quote{
		"A.NS": {Symbol: "A.NS", FullExchangeName: "NSE", LongName: "Alpha Ltd", ShortName: "ALPHA", RegularMarketPrice: price(101.5), Currency: "INR"},
		"B.NS": {Symbol: "B.NS", FullExchangeName: "NSE", LongName: "Beta Ltd", Currency: "INR"},
	}}
}

func TestQuoteScrapeSuccess(t *testing.T) {
	ctx := context.Background()
	cache := repository.NewCacheRepository(memstore.New())
	at := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)
	s := &QuoteScraper{Provider: healthyProvider(), Cache: cache, Now: fixedClock(at)}

	res, err := s.ScrapeAll(ctx, quoteTargets())
	if err != nil {
		t.Fatalf("ScrapeAll err=%v", err)
	}
	if res.Fallback || len(res.Rows) != 2 {
		t.Fatalf("res=%+v", res)
	}
	a := res.Rows[0]
	if a.ID != "a" || a.Exchange != "NSE" || a.Name != "Alpha Ltd" || a.ShortName != "ALPHA" || a.Price != 101.5 {
		t.Fatalf("a=%+v", a)
	}
	if res.Rows[1].ID != "b" || res.Rows[1].Price != 0 {
		t.Fatalf("b=%+v want price default 0", res.Rows[1])
	}

	snap, err := cache.LoadQuotes(ctx)
	if err != nil || len(snap.Rows) != 2 || !snap.TakenAt.Equal(at) {
		t.Fatalf("snapshot=%+v err=%v", snap, err)
	}
	markers, _ := cache.SyncMarkers(ctx)
	if m := markers[models.SourceQuotes]; !m.OK || m.Count != 2 {
		t.Fatalf("marker=%+v", m)
	}
}

func TestQuoteScrapeFallsBackToPriorSnapshot(t *testing.T) {
	ctx := context.Background()
	cache := repository.NewCacheRepository(memstore.New())

	good := &QuoteScraper{Provider: healthyProvider(), Cache: cache}
	first, err := good.ScrapeAll(ctx, quoteTargets())
	if err != nil {
		t.Fatalf("first err=%v", err)
	}

	broken := healthyProvider()
	broken.fail = map[string]bool{"B.NS": true}
	s := &QuoteScraper{Provider: broken, Cache: cache}
	res, err := s.ScrapeAll(ctx, quoteTargets())
	if err != nil {
		t.Fatalf("fallback err=%v", err)
	}
	if !res.Fallback || res.Err == nil {
		t.Fatalf("res=%+v want fallback", res)
	}
	if len(res.Rows) != len(first.Rows) {
		t.Fatalf("rows=%d want=%d", len(res.Rows), len(first.Rows))
	}
	for i := range first.Rows {
		if res.Rows[i] != first.Rows[i] {
			t.Fatalf("row %d=%+v want=%+v", i, res.Rows[i], first.Rows[i])
		}
	}

	snap, _ := cache.LoadQuotes(ctx)
	if len(snap.Rows) != 2 {
		t.Fatalf("failed batch must not overwrite the snapshot")
	}
	markers, _ := cache.SyncMarkers(ctx)
	if m := markers[models.SourceQuotes]; m.OK || m.Error == nil {
		t.Fatalf("marker=%+v want failed", m)
	}
}

func TestQuoteScrapeFallbackWithoutSnapshot(t *testing.T) {
	cache := repository.NewCacheRepository(memstore.New())
	s := &QuoteScraper{Provider: &stubProvider{fail: map[string]bool{"A.NS": true}}, Cache: cache}
	res, err := s.ScrapeAll(context.Background(), quoteTargets())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !res.Fallback || res.Rows == nil || len(res.Rows) != 0 {
		t.Fatalf("res=%+v want empty non-nil fallback", res)
	}
}

func TestQuoteScrapeCorruptSnapshot(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	_ = store.Put(ctx, repository.KeyQuotes, []byte("{broken"))
	s := &QuoteScraper{Provider: &stubProvider{fail: map[string]bool{"A.NS": true}}, Cache: repository.NewCacheRepository(store)}
	res, err := s.ScrapeAll(ctx, quoteTargets())
	if err != nil || !res.Fallback || len(res.Rows) != 0 {
		t.Fatalf("res=%+v err=%v", res, err)
	}
}

func TestQuoteScrapeNilProvider(t *testing.T) {
	s := &QuoteScraper{Cache: repository.NewCacheRepository(memstore.New())}
	res, err := s.ScrapeAll(context.Background(), quoteTargets())
	if err != nil || !res.Fallback {
		t.Fatalf("res=%+v err=%v", res, err)
	}
}
