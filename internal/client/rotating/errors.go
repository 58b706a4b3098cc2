package rotating

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrFetchExhausted   = errors.New("all identity combinations failed")
	ErrUnsupportedRoute = errors.New("route not supported")
	ErrNoProfiles       = errors.New("no header profiles configured")
)

// StatusError is returned for a completed response outside 2xx.
type StatusError struct {
	Status int
	URL    string
}

func (e *StatusError) Error() string {
	if e.Blocked() {
		return fmt.Sprintf("rate limited or forbidden (%d) for %s", e.Status, e.URL)
	}
	return fmt.Sprintf("unexpected status %d for %s", e.Status, e.URL)
}

// Blocked reports whether the origin refused this identity.
func (e *StatusError) Blocked() bool {
	return e.Status == http.StatusTooManyRequests || e.Status == http.StatusForbidden
}

// ExhaustedError wraps the last attempt's failure after the retry budget ran
// out. It matches both ErrFetchExhausted and the wrapped cause under errors.Is.
type ExhaustedError struct {
	URL      string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("fetch %s: %d attempts failed, last error: %v", e.URL, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error {
	if e.Last == nil {
		return []error{ErrFetchExhausted}
	}
	return []error{ErrFetchExhausted, e.Last}
}
