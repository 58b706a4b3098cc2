package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"portfolio/internal/models"
	"portfolio/internal/repository"
	"portfolio/internal/repository/memstore"
)

type stubFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	errs  map[string]error
	urls  []string
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	s.mu.Lock()
	s.urls = append(s.urls, url)
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for suffix, err := range s.errs {
		if strings.HasSuffix(url, suffix) {
			return nil, err
		}
	}
	for suffix, page := range s.pages {
		if strings.HasSuffix(url, suffix) {
			return []byte(page), nil
		}
	}
	return []byte("<html></html>"), nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

const fullPage = `P/E ratio</div><div class="P6K39c">19.84</div>
Earnings per share</td><td class="QXDnM">1,024.5</td>`

func TestFundamentalsScrapeAll(t *testing.T) {
	ctx := context.Background()
	cache := repository.NewCacheRepository(memstore.New())
	fetcher := &stubFetcher{
		pages: map[string]string{
			"/AAA:NSE": fullPage,
			"/BBB:NSE": `P/E ratio<div class="P6K39c">-</div>`,
		},
		errs: map[string]error{"/DDD:NSE": errors.New("all identity combinations failed")},
	}
	at := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)
	s := &FundamentalsScraper{Fetcher: fetcher, BaseURL: "http://gf.test/quote", Cache: cache, Now: fixedClock(at), MaxConcurrency: 2}

	targets := []models.Target{
		{ID: "a", Symbol: "AAA:NSE"},
		{ID: "b", Symbol: "BBB:NSE"},
		{ID: "c", Symbol: "CCC:NSE"},
		{ID: "d", Symbol: "DDD:NSE"},
	}
	results, err := s.ScrapeAll(ctx, targets)
	if err != nil {
		t.Fatalf("ScrapeAll err=%v", err)
	}
	if len(results) != len(targets) {
		t.Fatalf("results=%d want=%d", len(results), len(targets))
	}
	for i, r := range results {
		if r.EntityID != targets[i].ID {
			t.Fatalf("results[%d].EntityID=%s want=%s", i, r.EntityID, targets[i].ID)
		}
	}

	a := results[0].Row
	if a == nil || a.URL != "http://gf.test/quote/AAA:NSE" || a.Symbol != "AAA:NSE" {
		t.Fatalf("a=%+v", a)
	}
	if *a.PERatio.Numeric != 19.84 || *a.EarningsPerShare.Numeric != 1024.5 || *a.EarningsPerShare.Raw != "1,024.5" {
		t.Fatalf("a fields pe=%v eps=%v", a.PERatio, a.EarningsPerShare)
	}

	b := results[1].Row
	if b == nil || *b.PERatio.Raw != "-" || b.PERatio.Numeric != nil || b.EarningsPerShare.Present() {
		t.Fatalf("b=%+v", b)
	}
	if results[2].Miss == nil || results[2].Miss.Reason != models.MissNoFields {
		t.Fatalf("c=%+v want no_fields miss", results[2])
	}
	if results[3].Miss == nil || results[3].Miss.Reason != models.MissFetchFailed {
		t.Fatalf("d=%+v want fetch_failed miss", results[3])
	}

	snap, err := cache.LoadFundamentals(ctx)
	if err != nil {
		t.Fatalf("LoadFundamentals err=%v", err)
	}
	if len(snap.Rows) != 2 || len(snap.Misses) != 2 || !snap.TakenAt.Equal(at) {
		t.Fatalf("snapshot rows=%d misses=%d taken=%v", len(snap.Rows), len(snap.Misses), snap.TakenAt)
	}
	markers, _ := cache.SyncMarkers(ctx)
	m := markers[models.SourceFundamentals]
	if !m.OK || m.Count != 2 || m.Misses != 2 || !m.At.Equal(at) {
		t.Fatalf("marker=%+v", m)
	}
	lines, _ := cache.TailSyncLog(ctx, 10)
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "fundamentals sync at") {
		t.Fatalf("log=%v", lines)
	}
}

func TestFundamentalsSnapshotOverwrittenWholesale(t *testing.T) {
	ctx := context.Background()
	cache := repository.NewCacheRepository(memstore.New())
	s := &FundamentalsScraper{Fetcher: &stubFetcher{pages: map[string]string{"/AAA:NSE": fullPage}}, Cache: cache}

	if _, err := s.ScrapeAll(ctx, []models.Target{{ID: "a", Symbol: "AAA:NSE"}, {ID: "z", Symbol: "ZZZ:NSE"}}); err != nil {
		t.Fatalf("first err=%v", err)
	}
	if _, err := s.ScrapeAll(ctx, []models.Target{{ID: "z", Symbol: "ZZZ:NSE"}}); err != nil {
		t.Fatalf("second err=%v", err)
	}
	snap, _ := cache.LoadFundamentals(ctx)
	if len(snap.Rows) != 0 || len(snap.Misses) != 1 {
		t.Fatalf("snapshot=%+v want only the second run", snap)
	}
}

func TestFundamentalsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cache := repository.NewCacheRepository(memstore.New())
	s := &FundamentalsScraper{Fetcher: &stubFetcher{}, Cache: cache}

	results, _ := s.ScrapeAll(ctx, []models.Target{{ID: "a", Symbol: "AAA:NSE"}})
	if len(results) != 1 || results[0].Miss == nil || results[0].Miss.Reason != models.MissCanceled {
		t.Fatalf("results=%+v want canceled miss", results)
	}
}

type failingStore struct {
	*memstore.Store
	failPrefix string
}

func (s failingStore) Put(ctx context.Context, key string, value []byte) error {
	if strings.HasPrefix(key, s.failPrefix) {
		return errors.New("disk full")
	}
	return s.Store.Put(ctx, key, value)
}

func TestFundamentalsSnapshotWriteFailure(t *testing.T) {
	cache := repository.NewCacheRepository(failingStore{Store: memstore.New(), failPrefix: "snapshots/"})
	s := &FundamentalsScraper{Fetcher: &stubFetcher{}, Cache: cache}
	if _, err := s.ScrapeAll(context.Background(), []models.Target{{ID: "a", Symbol: "A:NSE"}}); err == nil {
		t.Fatalf("expected snapshot write error")
	}
}

func TestFundamentalsNonFiniteTextKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	cache := repository.NewCacheRepository(memstore.New())
	fetcher := &stubFetcher{pages: map[string]string{
		"/AAA:NSE": fullPage,
		"/NAN:NSE": `P/E ratio</div><div class="P6K39c">NaN</div>`,
	}}
	s := &FundamentalsScraper{Fetcher: fetcher, Cache: cache}

	results, err := s.ScrapeAll(ctx, []models.Target{{ID: "a", Symbol: "AAA:NSE"}, {ID: "n", Symbol: "NAN:NSE"}})
	if err != nil {
		t.Fatalf("ScrapeAll err=%v", err)
	}
	n := results[1].Row
	if n == nil || *n.PERatio.Raw != "NaN" || n.PERatio.Numeric != nil {
		t.Fatalf("n=%+v want raw NaN without numeric", n)
	}
	snap, err := cache.LoadFundamentals(ctx)
	if err != nil || len(snap.Rows) != 2 {
		t.Fatalf("snapshot err=%v rows=%v", err, snap)
	}
}
