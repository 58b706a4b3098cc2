package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"portfolio/internal/client/googlefinance"
	"portfolio/internal/models"
	"portfolio/internal/observability"
	"portfolio/internal/repository"
)

const snapshotVersion = 1

// DocumentFetcher retrieves a page body. *rotating.Fetcher satisfies it.
type DocumentFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FundamentalsScraper collects P/E and EPS for every target from Google
// Finance pages and stores them as one snapshot.
type FundamentalsScraper struct {
	Fetcher DocumentFetcher
	BaseURL string
	// Extract defaults to googlefinance.Extract.
	Extract        func(doc []byte) googlefinance.Financials
	Cache          *repository.CacheRepository
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	MaxConcurrency int
	Now            func() time.Time
}

// ScrapeAll returns one result per target in input order. Individual
// failures become misses; only a failed snapshot write is returned as error.
func (s *FundamentalsScraper) ScrapeAll(ctx context.Context, targets []models.Target) ([]models.FundamentalsResult, error) {
	logger := nopIfNil(s.Logger)
	if s.Fetcher == nil {
		return nil, errors.New("fundamentals fetcher is nil")
	}
	started := time.Now()

	results := make([]models.FundamentalsResult, len(targets))
	var g errgroup.Group
	if s.MaxConcurrency > 0 {
		g.SetLimit(s.MaxConcurrency)
	}
	for i, target := range targets {
		g.Go(func() error {
			results[i] = s.scrapeOne(ctx, target)
			return nil
		})
	}
	_ = g.Wait()

	snap := models.FundamentalsSnapshot{
		Version: snapshotVersion,
		TakenAt: clockOrNow(s.Now),
		Rows:    make([]models.FundamentalsRow, 0, len(results)),
		Misses:  []models.Miss{},
	}
	for _, r := range results {
		if r.OK() {
			snap.Rows = append(snap.Rows, *r.Row)
			continue
		}
		snap.Misses = append(snap.Misses, *r.Miss)
		logger.Warn("fundamentals miss",
			zap.String("id", r.Miss.ID),
			zap.String("symbol", r.Miss.Symbol),
			zap.String("reason", string(r.Miss.Reason)),
			zap.String("detail", r.Miss.Detail),
		)
	}
	s.Metrics.ObserveScrape(models.SourceFundamentals, len(snap.Rows), len(snap.Misses), time.Since(started))

	if err := s.Cache.SaveFundamentals(ctx, snap); err != nil {
		return results, fmt.Errorf("save fundamentals snapshot: %w", err)
	}

	done := clockOrNow(s.Now)
	recordSync(ctx, s.Cache, logger, models.SyncMarker{
		Source: models.SourceFundamentals,
		At:     done,
		OK:     true,
		Count:  len(snap.Rows),
		Misses: len(snap.Misses),
	})
	s.Metrics.MarkSuccess(models.SourceFundamentals, done)
	logger.Info("fundamentals scraped",
		zap.Int("rows", len(snap.Rows)),
		zap.Int("misses", len(snap.Misses)),
		zap.Duration("took", time.Since(started)),
	)
	return results, nil
}

func (s *FundamentalsScraper) scrapeOne(ctx context.Context, target models.Target) models.FundamentalsResult {
	miss := func(reason models.MissReason, detail string) models.FundamentalsResult {
		return models.FundamentalsResult{
			EntityID: target.ID,
			Miss:     &models.Miss{ID: target.ID, Symbol: target.Symbol, Reason: reason, Detail: detail},
		}
	}
	if err := ctx.Err(); err != nil {
		return miss(models.MissCanceled, err.Error())
	}

	url := googlefinance.QuoteURL(s.BaseURL, target.Symbol)
	doc, err := s.Fetcher.Fetch(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return miss(models.MissCanceled, err.Error())
		}
		return miss(models.MissFetchFailed, err.Error())
	}

	extract := s.Extract
	if extract == nil {
		extract = googlefinance.Extract
	}
	fin := extract(doc)
	if fin.Empty() {
		return miss(models.MissNoFields, "neither P/E ratio nor EPS found")
	}
	return models.FundamentalsResult{
		EntityID: target.ID,
		Row: &models.FundamentalsRow{
			ID:               target.ID,
			URL:              url,
			Symbol:           target.Symbol,
			PERatio:          models.ParseNumericField(fin.PERatio),
			EarningsPerShare: models.ParseNumericField(fin.EarningsPerShare),
		},
	}
}
