package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"portfolio/internal/client/yahoo"
	"portfolio/internal/models"
	"portfolio/internal/observability"
	"portfolio/internal/repository"
)

// QuoteProvider returns the live quote for one symbol. *yahoo.Client
// satisfies it.
type QuoteProvider interface {
	Quote(ctx context.Context, symbol string) (yahoo.Quote, error)
}

type QuoteScrapeResult struct {
	Rows    []models.QuoteRow
	TakenAt time.Time
	// Fallback is set when the live batch failed and Rows came from the last
	// stored snapshot, or is empty when there was none.
	Fallback bool
	Err      error
}

// QuoteScraper fetches quotes for every target as one all-or-nothing batch.
type QuoteScraper struct {
	Provider       QuoteProvider
	Cache          *repository.CacheRepository
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	MaxConcurrency int
	Now            func() time.Time
}

// ScrapeAll never fails because of the upstream: a failed batch is served
// from the previous snapshot. The error return is reserved for a failed
// snapshot write after a successful batch.
func (s *QuoteScraper) ScrapeAll(ctx context.Context, targets []models.Target) (QuoteScrapeResult, error) {
	logger := nopIfNil(s.Logger)
	started := time.Now()

	rows, err := s.fetchBatch(ctx, targets)
	if err != nil {
		return s.fallback(ctx, logger, err), nil
	}

	taken := clockOrNow(s.Now)
	snap := models.QuoteSnapshot{Version: snapshotVersion, TakenAt: taken, Rows: rows}
	if err := s.Cache.SaveQuotes(ctx, snap); err != nil {
		return QuoteScrapeResult{Rows: rows, TakenAt: taken}, fmt.Errorf("save quote snapshot: %w", err)
	}
	recordSync(ctx, s.Cache, logger, models.SyncMarker{
		Source: models.SourceQuotes,
		At:     taken,
		OK:     true,
		Count:  len(rows),
	})
	s.Metrics.ObserveScrape(models.SourceQuotes, len(rows), 0, time.Since(started))
	s.Metrics.MarkSuccess(models.SourceQuotes, taken)
	logger.Info("quotes fetched", zap.Int("rows", len(rows)), zap.Duration("took", time.Since(started)))
	return QuoteScrapeResult{Rows: rows, TakenAt: taken}, nil
}

func (s *QuoteScraper) fetchBatch(ctx context.Context, targets []models.Target) ([]models.QuoteRow, error) {
	if s.Provider == nil {
		return nil, errors.New("quote provider is nil")
	}
	rows := make([]models.QuoteRow, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	if s.MaxConcurrency > 0 {
		g.SetLimit(s.MaxConcurrency)
	}
	for i, target := range targets {
		g.Go(func() error {
			q, err := s.Provider.Quote(gctx, target.Symbol)
			if err != nil {
				return fmt.Errorf("quote %s (%s): %w", target.ID, target.Symbol, err)
			}
			rows[i] = quoteRow(target, q)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *QuoteScraper) fallback(ctx context.Context, logger *zap.Logger, cause error) QuoteScrapeResult {
	at := clockOrNow(s.Now)
	logger.Warn("quote batch failed, serving last snapshot", zap.Error(cause))
	recordSync(ctx, s.Cache, logger, failedMarker(models.SourceQuotes, at, cause))

	out := QuoteScrapeResult{Rows: []models.QuoteRow{}, Fallback: true, Err: cause}
	prior, err := s.Cache.LoadQuotes(ctx)
	switch {
	case err == nil:
		out.Rows = prior.Rows
		if out.Rows == nil {
			out.Rows = []models.QuoteRow{}
		}
		out.TakenAt = prior.TakenAt
		s.Metrics.ObserveQuoteFallback(true)
	case errors.Is(err, repository.ErrNotFound):
		s.Metrics.ObserveQuoteFallback(false)
	default:
		logger.Warn("stored quote snapshot unreadable", zap.Error(err))
		s.Metrics.ObserveQuoteFallback(false)
	}
	return out
}

func quoteRow(target models.Target, q yahoo.Quote) models.QuoteRow {
	row := models.QuoteRow{
		ID:        target.ID,
		Exchange:  q.FullExchangeName,
		Symbol:    q.Symbol,
		Name:      q.LongName,
		ShortName: q.ShortName,
		Currency:  q.Currency,
	}
	if row.Symbol == "" {
		row.Symbol = target.Symbol
	}
	if q.RegularMarketPrice != nil {
		row.Price = *q.RegularMarketPrice
	}
	return row
}
