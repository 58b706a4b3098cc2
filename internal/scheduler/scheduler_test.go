package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	"portfolio/internal/markethours"
)

var ist = time.FixedZone("IST", 5*3600+1800)

type fakeRunner struct {
	mu     sync.Mutex
	next   cron.EntryID
	jobs   map[cron.EntryID]string
	funcs  map[cron.EntryID]func(context.Context)
	failAt int
	adds   int
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{jobs: map[cron.EntryID]string{}, funcs: map[cron.EntryID]func(context.Context){}}
}

func (r *fakeRunner) Add(spec string, job func(context.Context)) (cron.EntryID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adds++
	if r.failAt > 0 && r.adds == r.failAt {
		return 0, errors.New("bad spec")
	}
	r.next++
	r.jobs[r.next] = spec
	r.funcs[r.next] = job
	return r.next, nil
}

func (r *fakeRunner) Remove(id cron.EntryID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
	delete(r.funcs, id)
}

func (r *fakeRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type counters struct {
	mu      sync.Mutex
	scrapes int
	merges  int
}

func newScheduler(r *fakeRunner, c *clock, n *counters) *Scheduler {
	return &Scheduler{
		Runner: r,
		Window: markethours.Default(ist),
		Scrape: func(context.Context) error {
			n.mu.Lock()
			n.scrapes++
			n.mu.Unlock()
			return nil
		},
		Merge: func(context.Context) (int, error) {
			n.mu.Lock()
			n.merges++
			n.mu.Unlock()
			return 26, nil
		},
		Now: c.Now,
	}
}

func TestTickLifecycle(t *testing.T) {
	r := newFakeRunner()
	c := &clock{t: time.Date(2024, 5, 6, 10, 0, 0, 0, ist)}
	n := &counters{}
	s := newScheduler(r, c, n)
	ctx := context.Background()

	s.Tick(ctx)
	if n.scrapes != 1 || n.merges != 1 {
		t.Fatalf("scrapes=%d merges=%d want one immediate pass", n.scrapes, n.merges)
	}
	if r.count() != 2 {
		t.Fatalf("jobs=%d want=2", r.count())
	}
	for _, spec := range r.jobs {
		if spec != "@every 20s" {
			t.Fatalf("spec=%q want @every 20s", spec)
		}
	}
	st := s.State()
	if !st.Active || !st.MarketOpen || st.FundamentalsJob == 0 || st.MergeJob == 0 {
		t.Fatalf("state=%+v", st)
	}

	c.Set(time.Date(2024, 5, 6, 10, 15, 0, 0, ist))
	s.Tick(ctx)
	if n.scrapes != 1 || n.merges != 1 || r.count() != 2 || r.adds != 2 {
		t.Fatalf("second tick while open must be a no-op: scrapes=%d merges=%d jobs=%d adds=%d", n.scrapes, n.merges, r.count(), r.adds)
	}

	c.Set(time.Date(2024, 5, 6, 15, 30, 0, 0, ist))
	s.Tick(ctx)
	if r.count() != 0 {
		t.Fatalf("jobs=%d want=0 after close", r.count())
	}
	if st := s.State(); st.Active || st.MarketOpen || st.FundamentalsJob != 0 {
		t.Fatalf("state=%+v want idle", st)
	}

	c.Set(time.Date(2024, 5, 6, 15, 45, 0, 0, ist))
	s.Tick(ctx)
	if r.count() != 0 || n.scrapes != 1 {
		t.Fatalf("tick while closed and idle must be a no-op")
	}

	c.Set(time.Date(2024, 5, 7, 9, 15, 0, 0, ist))
	s.Tick(ctx)
	if r.count() != 2 || n.scrapes != 2 || n.merges != 2 {
		t.Fatalf("reactivation jobs=%d scrapes=%d merges=%d", r.count(), n.scrapes, n.merges)
	}
}

func TestClosedMarketNeverActivates(t *testing.T) {
	r := newFakeRunner()
	c := &clock{t: time.Date(2024, 5, 11, 11, 0, 0, 0, ist)}
	n := &counters{}
	s := newScheduler(r, c, n)
	s.Tick(context.Background())
	if r.count() != 0 || n.scrapes != 0 || n.merges != 0 {
		t.Fatalf("saturday activated: jobs=%d scrapes=%d", r.count(), n.scrapes)
	}
}

func TestPassFailuresDoNotBlockActivation(t *testing.T) {
	r := newFakeRunner()
	c := &clock{t: time.Date(2024, 5, 6, 10, 0, 0, 0, ist)}
	s := &Scheduler{
		Runner: r,
		Window: markethours.Default(ist),
		Scrape: func(context.Context) error { return errors.New("snapshot write failed") },
		Merge:  func(context.Context) (int, error) { return 0, errors.New("disk full") },
		Now:    c.Now,
	}
	s.Tick(context.Background())
	if r.count() != 2 {
		t.Fatalf("jobs=%d want=2", r.count())
	}
	st := s.State()
	if st.LastPassError == nil || st.LastPassAt == nil {
		t.Fatalf("state=%+v want recorded pass error", st)
	}
}

func TestPartialRegistrationRollsBack(t *testing.T) {
	r := newFakeRunner()
	r.failAt = 2
	c := &clock{t: time.Date(2024, 5, 6, 10, 0, 0, 0, ist)}
	s := newScheduler(r, c, &counters{})
	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("expected registration error")
	}
	if r.count() != 0 || s.State().Active {
		t.Fatalf("jobs=%d active=%v want rolled back", r.count(), s.State().Active)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	r := newFakeRunner()
	c := &clock{t: time.Date(2024, 5, 6, 10, 0, 0, 0, ist)}
	n := &counters{}
	s := newScheduler(r, c, n)
	s.Stop()
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("err=%v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("err=%v", err)
	}
	if r.count() != 2 || n.scrapes != 1 {
		t.Fatalf("jobs=%d scrapes=%d", r.count(), n.scrapes)
	}
	s.Stop()
	s.Stop()
	if r.count() != 0 {
		t.Fatalf("jobs=%d want=0", r.count())
	}
}

func TestRegisteredJobsInvokeStages(t *testing.T) {
	r := newFakeRunner()
	c := &clock{t: time.Date(2024, 5, 6, 10, 0, 0, 0, ist)}
	n := &counters{}
	s := newScheduler(r, c, n)
	s.FundamentalsInterval = 30 * time.Second
	s.Tick(context.Background())

	for _, job := range r.funcs {
		job(context.Background())
	}
	if n.scrapes != 2 || n.merges != 2 {
		t.Fatalf("scrapes=%d merges=%d want=2 each", n.scrapes, n.merges)
	}
	if s.State().FundamentalsPeriod != "30s" {
		t.Fatalf("period=%s", s.State().FundamentalsPeriod)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	r := newFakeRunner()
	c := &clock{t: time.Date(2024, 5, 6, 10, 0, 0, 0, ist)}
	s := newScheduler(r, c, &counters{})
	s.TickInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for r.count() != 2 {
		select {
		case <-deadline:
			t.Fatalf("jobs never registered")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
	if r.count() != 0 {
		t.Fatalf("jobs=%d want=0 after shutdown", r.count())
	}
}

func TestRunPassFlagsBusyMerge(t *testing.T) {
	busy := errors.New("merge already in progress")
	s := &Scheduler{
		Scrape:      func(context.Context) error { return nil },
		Merge:       func(context.Context) (int, error) { return 0, busy },
		IsMergeBusy: func(err error) bool { return errors.Is(err, busy) },
	}
	res := s.RunPass(context.Background())
	if !res.MergeBusy {
		t.Fatalf("MergeBusy=false want=true")
	}
	if res.RunID == "" {
		t.Fatalf("run id missing")
	}
	if res.Err() == nil {
		t.Fatalf("expected pass error")
	}

	other := s.RunPass(context.Background())
	if other.RunID == res.RunID {
		t.Fatalf("run ids repeat: %s", res.RunID)
	}
}
