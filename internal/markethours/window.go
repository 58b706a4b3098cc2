// Package markethours decides whether the exchange session is open.
package markethours

import (
	"fmt"
	"strings"
	"time"
)

// Clock is a wall-clock offset from local midnight.
type Clock time.Duration

func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second
			return Clock(d), nil
		}
	}
	return 0, fmt.Errorf("invalid clock %q, want HH:MM or HH:MM:SS", s)
}

func (c Clock) String() string {
	d := time.Duration(c)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	sec := (d % time.Minute) / time.Second
	if sec == 0 {
		return fmt.Sprintf("%02d:%02d", h, m)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}

// Window is a trading session: open on the listed weekdays from Open
// inclusive to Close exclusive, in Location.
type Window struct {
	Location *time.Location
	Open     Clock
	Close    Clock
	Weekdays []time.Weekday
}

// Default is the NSE cash session, Monday to Friday 09:15 to 15:30.
func Default(loc *time.Location) Window {
	return Window{
		Location: loc,
		Open:     Clock(9*time.Hour + 15*time.Minute),
		Close:    Clock(15*time.Hour + 30*time.Minute),
		Weekdays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
	}
}

func (w Window) Validate() error {
	if w.Location == nil {
		return fmt.Errorf("market window: location is required")
	}
	if w.Open >= w.Close {
		return fmt.Errorf("market window: open %s must be before close %s", w.Open, w.Close)
	}
	if w.Close > Clock(24*time.Hour) {
		return fmt.Errorf("market window: close %s is past midnight", w.Close)
	}
	if len(w.Weekdays) == 0 {
		return fmt.Errorf("market window: no trading weekdays")
	}
	return nil
}

// WallClock is the time of day shown on t's clock face. On DST change days it
// differs from the time elapsed since midnight.
func WallClock(t time.Time) Clock {
	h, m, sec := t.Clock()
	return Clock(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second + time.Duration(t.Nanosecond()))
}

// IsOpen evaluates t in the window's location.
func (w Window) IsOpen(t time.Time) bool {
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	if !w.tradingDay(local.Weekday()) {
		return false
	}
	offset := WallClock(local)
	return offset >= w.Open && offset < w.Close
}

func (w Window) tradingDay(day time.Weekday) bool {
	for _, d := range w.Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

// ParseWeekdays accepts full English day names or their three-letter
// abbreviations, case-insensitively.
func ParseWeekdays(names []string) ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(names))
	for _, name := range names {
		day, ok := weekdayByName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		out = append(out, day)
	}
	return out, nil
}

var weekdayByName = func() map[string]time.Weekday {
	m := make(map[string]time.Weekday, 14)
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		m[full] = d
		m[full[:3]] = d
	}
	return m
}()
