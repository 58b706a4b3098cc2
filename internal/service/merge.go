package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"portfolio/internal/models"
	"portfolio/internal/observability"
	"portfolio/internal/portfolio"
	"portfolio/internal/publisher"
	"portfolio/internal/repository"
)

// FreshnessHorizon is how long a merged record is considered current.
const FreshnessHorizon = 20 * time.Second

var ErrMergeInProgress = errors.New("merge already in progress")

// QuoteSource is the live quote stage consumed by a merge.
type QuoteSource interface {
	ScrapeAll(ctx context.Context, targets []models.Target) (QuoteScrapeResult, error)
}

// MergeService joins live quotes, stored fundamentals and the holdings table
// into one record per holding.
type MergeService struct {
	Quotes    QuoteSource
	Cache     *repository.CacheRepository
	Entities  []models.Entity
	Location  *time.Location
	Horizon   time.Duration
	Publisher publisher.Publisher
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Now       func() time.Time

	running atomic.Bool
}

// Merge writes a record for every holding and returns how many were written.
// Source failures degrade to empty fields. A failed record write aborts the
// merge. Concurrent calls return ErrMergeInProgress.
func (s *MergeService) Merge(ctx context.Context) (int, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.Metrics.ObserveMergeSkipped()
		return 0, ErrMergeInProgress
	}
	defer s.running.Store(false)

	logger := nopIfNil(s.Logger).With(zap.String("run_id", uuid.NewString()))
	started := time.Now()

	quotes := s.loadQuotes(ctx, logger)
	fundamentals := s.loadFundamentals(ctx, logger)

	now := clockOrNow(s.Now)
	if s.Location != nil {
		now = now.In(s.Location)
	}
	horizon := s.Horizon
	if horizon <= 0 {
		horizon = FreshnessHorizon
	}

	records := BuildRecords(s.Entities, quotes, fundamentals, now, horizon)
	for _, rec := range records {
		if err := s.Cache.SaveStock(ctx, rec); err != nil {
			recordSync(ctx, s.Cache, logger, failedMarker(models.SourceMerge, now, err))
			return 0, fmt.Errorf("save stock %s: %w", rec.ID, err)
		}
	}

	if s.Publisher != nil {
		if err := s.Publisher.Publish(ctx, records); err != nil {
			logger.Warn("publish merged records failed", zap.Error(err))
		}
	}

	recordSync(ctx, s.Cache, logger, models.SyncMarker{
		Source: models.SourceMerge,
		At:     now,
		OK:     true,
		Count:  len(records),
	})
	s.Metrics.ObserveMerge(len(records), time.Since(started))
	s.Metrics.MarkSuccess(models.SourceMerge, now)
	logger.Info("prices merged",
		zap.Int("quotes", len(quotes)),
		zap.Int("fundamentals", len(fundamentals)),
		zap.Int("records", len(records)),
		zap.Duration("took", time.Since(started)),
	)
	return len(records), nil
}

// Running reports whether a merge is in flight.
func (s *MergeService) Running() bool {
	return s.running.Load()
}

func (s *MergeService) loadQuotes(ctx context.Context, logger *zap.Logger) []models.QuoteRow {
	if s.Quotes == nil {
		return nil
	}
	res, err := s.Quotes.ScrapeAll(ctx, portfolio.YahooTargets(s.Entities))
	if err != nil {
		logger.Warn("quote stage failed, merging without prices", zap.Error(err))
		return nil
	}
	return res.Rows
}

func (s *MergeService) loadFundamentals(ctx context.Context, logger *zap.Logger) map[string]models.FundamentalsRow {
	snap, err := s.Cache.LoadFundamentals(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.Warn("fundamentals snapshot unreadable", zap.Error(err))
		}
		return map[string]models.FundamentalsRow{}
	}
	return snap.Index()
}

// BuildRecords layers quotes and fundamentals over the holdings table. Every
// holding gets exactly one record; rows for unknown ids are ignored.
func BuildRecords(entities []models.Entity, quotes []models.QuoteRow, fundamentals map[string]models.FundamentalsRow, now time.Time, horizon time.Duration) []models.StockRecord {
	byID := make(map[string]models.QuoteRow, len(quotes))
	for _, q := range quotes {
		if _, ok := byID[q.ID]; ok {
			continue
		}
		byID[q.ID] = q
	}

	exp := now.Add(horizon)
	out := make([]models.StockRecord, 0, len(entities))
	for _, e := range entities {
		q := byID[e.ID]
		rec := models.StockRecord{
			ID:                  e.ID,
			Exchange:            q.Exchange,
			YahooSymbol:         q.Symbol,
			Name:                q.Name,
			ShortName:           q.ShortName,
			Price:               q.Price,
			Currency:            q.Currency,
			ExpTime:             exp,
			MergedAt:            now,
			DisplayName:         e.Name,
			Sector:              e.Sector,
			PurchasePrice:       e.PurchasePrice,
			Quantity:            e.Quantity,
			Investment:          e.Investment,
			PortfolioPercentage: e.PortfolioPercentage,
		}
		if f, ok := fundamentals[e.ID]; ok {
			symbol := f.Symbol
			pe := f.PERatio
			eps := f.EarningsPerShare
			rec.GoogleSymbol = &symbol
			rec.PERatio = &pe
			rec.EarningsPerShare = &eps
		}
		if q.Price > 0 {
			pv := decimal.NewFromFloat(q.Price).Mul(decimal.NewFromInt(e.Quantity)).Round(2)
			gl := pv.Sub(e.Investment).Round(2)
			rec.PresentValue = &pv
			rec.GainLoss = &gl
		}
		out = append(out, rec)
	}
	return out
}
