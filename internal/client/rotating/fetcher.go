package rotating

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout       = 15 * time.Second
	DefaultBackoffBase   = 300 * time.Millisecond
	DefaultBackoffJitter = 500 * time.Millisecond
	DefaultMaxRedirects  = 10

	// attemptsPerCombo is how many times each (profile, route) pair may be tried.
	attemptsPerCombo = 2
)

// Observer receives per-attempt outcomes. *observability.Metrics satisfies it.
type Observer interface {
	ObserveFetchAttempt(outcome string)
	ObserveFetchExhausted()
}

type Options struct {
	Profiles      []HeaderProfile
	Routes        []Route
	Timeout       time.Duration
	BackoffBase   time.Duration
	BackoffJitter time.Duration
	MaxRedirects  int
	// RatePerSecond paces attempts across all callers; zero disables pacing.
	RatePerSecond float64
	Logger        *zap.Logger
	Observer      Observer
}

type combo struct {
	profile HeaderProfile
	route   Route
	client  *resty.Client
}

// Fetcher retrieves documents while rotating through every combination of
// header profile and egress route. Safe for concurrent use.
type Fetcher struct {
	combos        []combo
	limiter       *rate.Limiter
	backoffBase   time.Duration
	backoffJitter time.Duration
	logger        *zap.Logger
	observer      Observer

	// Sleep waits between attempts. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

func New(opts Options) (*Fetcher, error) {
	if len(opts.Profiles) == 0 {
		return nil, ErrNoProfiles
	}
	routes := opts.Routes
	if len(routes) == 0 {
		routes = []Route{Direct()}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.BackoffBase < 0 {
		opts.BackoffBase = 0
	}
	if opts.BackoffJitter < 0 {
		opts.BackoffJitter = 0
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = DefaultMaxRedirects
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	clients := make([]*resty.Client, len(routes))
	for i, route := range routes {
		if !route.Supported() {
			continue
		}
		c := resty.New().
			SetTimeout(opts.Timeout).
			SetRedirectPolicy(resty.FlexibleRedirectPolicy(opts.MaxRedirects))
		if route.IsDirect() {
			c.RemoveProxy()
		} else {
			c.SetProxy(route.proxy.String())
		}
		clients[i] = c
	}

	// Profiles vary fastest so consecutive attempts change headers first.
	combos := make([]combo, 0, len(routes)*len(opts.Profiles))
	for i, route := range routes {
		for _, profile := range opts.Profiles {
			combos = append(combos, combo{profile: profile, route: route, client: clients[i]})
		}
	}

	f := &Fetcher{
		combos:        combos,
		backoffBase:   opts.BackoffBase,
		backoffJitter: opts.BackoffJitter,
		logger:        logger,
		observer:      opts.Observer,
		Sleep:         sleepCtx,
	}
	if opts.RatePerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}
	return f, nil
}

// MaxAttempts is the retry budget for one Fetch call.
func (f *Fetcher) MaxAttempts() int {
	return len(f.combos) * attemptsPerCombo
}

// Fetch returns the body of the first 2xx response. Combinations are tried in
// round-robin order up to MaxAttempts times with a jittered pause between
// failures. A route whose scheme cannot be used aborts the call immediately
// with ErrUnsupportedRoute.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	maxAttempts := f.MaxAttempts()
	var last error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		c := f.combos[attempt%len(f.combos)]
		if c.client == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedRoute, c.route)
		}
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		body, err := f.do(ctx, c, url)
		if err == nil {
			f.observe("ok")
			return body, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		last = err
		f.observe(outcomeOf(err))
		f.logger.Debug("fetch attempt failed",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxAttempts),
			zap.String("route", c.route.String()),
			zap.Error(err),
		)

		if attempt+1 < maxAttempts {
			if err := f.Sleep(ctx, f.backoff()); err != nil {
				return nil, err
			}
		}
	}
	if f.observer != nil {
		f.observer.ObserveFetchExhausted()
	}
	return nil, &ExhaustedError{URL: url, Attempts: maxAttempts, Last: last}
}

func (f *Fetcher) do(ctx context.Context, c combo, url string) ([]byte, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeaders(c.profile).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("request %s via %s: %w", url, c.route, err)
	}
	if !resp.IsSuccess() {
		return nil, &StatusError{Status: resp.StatusCode(), URL: url}
	}
	return resp.Body(), nil
}

func (f *Fetcher) backoff() time.Duration {
	d := f.backoffBase
	if f.backoffJitter > 0 {
		d += rand.N(f.backoffJitter)
	}
	return d
}

func (f *Fetcher) observe(outcome string) {
	if f.observer != nil {
		f.observer.ObserveFetchAttempt(outcome)
	}
}

func outcomeOf(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		if se.Blocked() {
			return "blocked"
		}
		return "status"
	}
	return "transport"
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
