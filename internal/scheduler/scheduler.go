// Package scheduler keeps the scrape and merge jobs registered only while the
// market is open.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"portfolio/internal/markethours"
	"portfolio/internal/observability"
)

const (
	DefaultTick                 = 15 * time.Minute
	DefaultFundamentalsInterval = 20 * time.Second
	DefaultMergeInterval        = 20 * time.Second
)

// JobRunner registers recurring jobs. *cronrunner.Runner satisfies it.
type JobRunner interface {
	Add(spec string, job func(context.Context)) (cron.EntryID, error)
	Remove(id cron.EntryID)
}

type State struct {
	Active             bool         `json:"active"`
	MarketOpen         bool         `json:"market_open"`
	FundamentalsJob    cron.EntryID `json:"fundamentals_job,omitempty"`
	MergeJob           cron.EntryID `json:"merge_job,omitempty"`
	LastTickAt         *time.Time   `json:"last_tick_at,omitempty"`
	LastPassAt         *time.Time   `json:"last_pass_at,omitempty"`
	LastPassError      *string      `json:"last_pass_error,omitempty"`
	ActivatedAt        *time.Time   `json:"activated_at,omitempty"`
	FundamentalsPeriod string       `json:"fundamentals_period"`
	MergePeriod        string       `json:"merge_period"`
}

// PassResult summarises one immediate scrape and merge pass.
type PassResult struct {
	RunID           string    `json:"run_id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Records         int       `json:"records"`
	FundamentalsErr *string   `json:"fundamentals_error,omitempty"`
	MergeErr        *string   `json:"merge_error,omitempty"`
	// MergeBusy is set when the merge was skipped because another one was running.
	MergeBusy bool `json:"merge_busy,omitempty"`
}

func (p PassResult) Err() error {
	var errs []error
	if p.FundamentalsErr != nil {
		errs = append(errs, fmt.Errorf("fundamentals: %s", *p.FundamentalsErr))
	}
	if p.MergeErr != nil {
		errs = append(errs, fmt.Errorf("merge: %s", *p.MergeErr))
	}
	return errors.Join(errs...)
}

// Scheduler is level triggered: every Tick compares the market state with
// the registered jobs and converges. Idle means no job handles are held.
type Scheduler struct {
	Runner               JobRunner
	Window               markethours.Window
	Scrape               func(ctx context.Context) error
	Merge                func(ctx context.Context) (int, error)
	FundamentalsInterval time.Duration
	MergeInterval        time.Duration
	TickInterval         time.Duration
	Logger               *zap.Logger
	Metrics              *observability.Metrics
	Now                  func() time.Time
	// IsMergeBusy classifies a merge error as an overlap to be skipped quietly.
	IsMergeBusy func(error) bool

	// ctl serialises state transitions.
	ctl sync.Mutex

	mu          sync.RWMutex
	scrapeJob   cron.EntryID
	mergeJob    cron.EntryID
	marketOpen  bool
	lastTick    time.Time
	lastPass    time.Time
	lastPassErr error
	activatedAt time.Time
}

// Run ticks immediately and then every TickInterval until ctx is done, at
// which point all jobs are removed.
func (s *Scheduler) Run(ctx context.Context) error {
	interval := s.TickInterval
	if interval <= 0 {
		interval = DefaultTick
	}
	s.Tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick evaluates the market window once and activates or deactivates.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()
	open := s.Window.IsOpen(now)

	s.mu.Lock()
	s.marketOpen = open
	s.lastTick = now
	s.mu.Unlock()

	if open {
		if err := s.Start(ctx); err != nil {
			s.logger().Error("scheduler activation failed", zap.Error(err))
		}
		return
	}
	s.Stop()
}

// Start activates the schedule if idle: one immediate pass, then the two
// recurring jobs. It is a no-op while active.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctl.Lock()
	defer s.ctl.Unlock()
	if s.active() {
		return nil
	}
	logger := s.logger()
	logger.Info("market open, activating jobs")

	s.RunPass(ctx)

	fundamentalsEvery := orDefault(s.FundamentalsInterval, DefaultFundamentalsInterval)
	mergeEvery := orDefault(s.MergeInterval, DefaultMergeInterval)

	scrapeID, err := s.Runner.Add(everySpec(fundamentalsEvery), s.runScrapeJob)
	if err != nil {
		return fmt.Errorf("register fundamentals job: %w", err)
	}
	mergeID, err := s.Runner.Add(everySpec(mergeEvery), s.runMergeJob)
	if err != nil {
		s.Runner.Remove(scrapeID)
		return fmt.Errorf("register merge job: %w", err)
	}

	s.mu.Lock()
	s.scrapeJob = scrapeID
	s.mergeJob = mergeID
	s.activatedAt = s.now()
	s.mu.Unlock()
	s.Metrics.SetSchedulerActive(true)
	logger.Info("jobs registered",
		zap.Int("fundamentals_job", int(scrapeID)),
		zap.Int("merge_job", int(mergeID)),
		zap.Duration("fundamentals_every", fundamentalsEvery),
		zap.Duration("merge_every", mergeEvery),
	)
	return nil
}

// Stop removes any registered jobs. It is a no-op while idle.
func (s *Scheduler) Stop() {
	s.ctl.Lock()
	defer s.ctl.Unlock()
	if !s.active() {
		return
	}
	s.mu.Lock()
	scrapeID, mergeID := s.scrapeJob, s.mergeJob
	s.scrapeJob, s.mergeJob = 0, 0
	s.activatedAt = time.Time{}
	s.mu.Unlock()

	if scrapeID != 0 {
		s.Runner.Remove(scrapeID)
	}
	if mergeID != 0 {
		s.Runner.Remove(mergeID)
	}
	s.Metrics.SetSchedulerActive(false)
	s.logger().Info("market closed, jobs removed")
}

// RunPass scrapes fundamentals then merges, logging failures. It does not
// touch job registration.
func (s *Scheduler) RunPass(ctx context.Context) PassResult {
	res := PassResult{RunID: uuid.NewString(), StartedAt: s.now()}
	logger := s.logger().With(zap.String("run_id", res.RunID))

	if s.Scrape != nil {
		if err := s.Scrape(ctx); err != nil {
			msg := err.Error()
			res.FundamentalsErr = &msg
			logger.Error("fundamentals pass failed", zap.Error(err))
		}
	}
	if s.Merge != nil {
		n, err := s.Merge(ctx)
		res.Records = n
		if err != nil {
			msg := err.Error()
			res.MergeErr = &msg
			if s.IsMergeBusy != nil && s.IsMergeBusy(err) {
				res.MergeBusy = true
				logger.Info("merge already running, pass merge skipped")
			} else {
				logger.Error("merge pass failed", zap.Error(err))
			}
		}
	}
	res.FinishedAt = s.now()

	s.mu.Lock()
	s.lastPass = res.FinishedAt
	s.lastPassErr = res.Err()
	s.mu.Unlock()
	return res
}

func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := State{
		Active:             s.scrapeJob != 0 || s.mergeJob != 0,
		MarketOpen:         s.marketOpen,
		FundamentalsJob:    s.scrapeJob,
		MergeJob:           s.mergeJob,
		FundamentalsPeriod: orDefault(s.FundamentalsInterval, DefaultFundamentalsInterval).String(),
		MergePeriod:        orDefault(s.MergeInterval, DefaultMergeInterval).String(),
	}
	if !s.lastTick.IsZero() {
		t := s.lastTick
		st.LastTickAt = &t
	}
	if !s.lastPass.IsZero() {
		t := s.lastPass
		st.LastPassAt = &t
	}
	if s.lastPassErr != nil {
		msg := s.lastPassErr.Error()
		st.LastPassError = &msg
	}
	if !s.activatedAt.IsZero() {
		t := s.activatedAt
		st.ActivatedAt = &t
	}
	return st
}

func (s *Scheduler) runScrapeJob(ctx context.Context) {
	if s.Scrape == nil {
		return
	}
	if err := s.Scrape(ctx); err != nil {
		s.logger().Warn("scheduled fundamentals scrape failed", zap.Error(err))
	}
}

func (s *Scheduler) runMergeJob(ctx context.Context) {
	if s.Merge == nil {
		return
	}
	if _, err := s.Merge(ctx); err != nil {
		if s.IsMergeBusy != nil && s.IsMergeBusy(err) {
			s.logger().Debug("merge still running, tick skipped")
			return
		}
		s.logger().Warn("scheduled merge failed", zap.Error(err))
	}
}

func (s *Scheduler) active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scrapeJob != 0 || s.mergeJob != 0
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Scheduler) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func everySpec(d time.Duration) string {
	return "@every " + d.String()
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
