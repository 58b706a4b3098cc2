package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveFetchAttempt("ok")
	m.ObserveFetchExhausted()
	m.ObserveScrape("fundamentals", 1, 1, time.Second)
	m.ObserveQuoteFallback(true)
	m.ObserveMerge(3, time.Second)
	m.ObserveMergeSkipped()
	m.SetSchedulerActive(true)
	m.MarkSuccess("merge", time.Now())
}

func TestIndependentRegistries(t *testing.T) {
	a := NewMetrics("t")
	b := NewMetrics("t")
	a.ObserveFetchAttempt("blocked")
	if got := testutil.ToFloat64(a.FetchAttempts.WithLabelValues("blocked")); got != 1 {
		t.Fatalf("a blocked=%v want=1", got)
	}
	if got := testutil.ToFloat64(b.FetchAttempts.WithLabelValues("blocked")); got != 0 {
		t.Fatalf("b blocked=%v want=0", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics("t")
	m.ObserveQuoteFallback(false)
	m.SetSchedulerActive(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{`t_scraper_quote_fallbacks_total{served="empty"} 1`, "t_scheduler_active 1"} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
