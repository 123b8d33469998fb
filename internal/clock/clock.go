package clock

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Source provides time information for scheduling.
// This interface allows time to be mocked in tests.
type Source interface {
	// Now is used to measure spans such as the confirmation timeout, so it
	// must not move backwards while the process runs.
	Now() time.Time
	// Time returns the current time of day.
	Time() (hour, minute, second int)
	// Date returns the calendar date; weekday 0 is Sunday.
	Date() (year, month, day, weekday int)
	// HasReliableClock reports whether the time of day tracks wall-clock time.
	// It is only used for display, never for gating.
	HasReliableClock() bool
}

// PlaceholderDate is reported by sources that cannot track the calendar.
var PlaceholderDate = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

// System provides actual system time.
type System struct {
	Location *time.Location
}

// Now returns the current system time.
func (s System) Now() time.Time {
	if s.Location != nil {
		return time.Now().In(s.Location)
	}
	return time.Now()
}

// Time returns the system time of day.
func (s System) Time() (int, int, int) {
	return s.Now().Clock()
}

// Date returns the system calendar date.
func (s System) Date() (int, int, int, int) {
	return dateOf(s.Now())
}

// HasReliableClock always reports true for the system clock.
func (System) HasReliableClock() bool { return true }

// Uptime approximates the time of day from process uptime when no real
// clock is available. The calendar date is always PlaceholderDate, so
// scheduling over multiple days of uptime is only approximate.
type Uptime struct {
	elapsed func() time.Duration
}

// NewUptime creates an uptime source whose time of day starts at 00:00:00.
func NewUptime() *Uptime {
	started := time.Now()
	return NewUptimeFunc(func() time.Duration { return time.Since(started) })
}

// NewUptimeFunc creates an uptime source that reads the elapsed time from
// fn, which must never decrease.
func NewUptimeFunc(fn func() time.Duration) *Uptime {
	return &Uptime{elapsed: fn}
}

// Now returns the placeholder date advanced by the full uptime. It does not
// wrap at midnight, so spans measured on it stay correct across days.
func (u *Uptime) Now() time.Time {
	return PlaceholderDate.Add(u.elapsed())
}

// Time returns uptime modulo one day.
func (u *Uptime) Time() (int, int, int) {
	return PlaceholderDate.Add(u.elapsed() % (24 * time.Hour)).Clock()
}

// Date returns the placeholder date with weekday 0.
func (u *Uptime) Date() (int, int, int, int) {
	return PlaceholderDate.Year(), int(PlaceholderDate.Month()), PlaceholderDate.Day(), 0
}

// HasReliableClock reports false: the time of day is only an approximation.
func (*Uptime) HasReliableClock() bool { return false }

// Fixed provides a settable time for testing. It may be advanced from one
// goroutine while another reads it.
type Fixed struct {
	CurrentTime time.Time
	Unreliable  bool

	mu sync.Mutex
}

// Now returns the test time.
func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CurrentTime
}

// Time returns the time of day of the test time.
func (f *Fixed) Time() (int, int, int) {
	return f.Now().Clock()
}

// Date returns the calendar date of the test time.
func (f *Fixed) Date() (int, int, int, int) {
	return dateOf(f.Now())
}

// HasReliableClock reports the inverse of Unreliable.
func (f *Fixed) HasReliableClock() bool { return !f.Unreliable }

// Set moves the test time to the given wall-clock instant.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.CurrentTime = t
	f.mu.Unlock()
}

// Advance moves the test time forward.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.CurrentTime = f.CurrentTime.Add(d)
	f.mu.Unlock()
}

func dateOf(t time.Time) (int, int, int, int) {
	return t.Year(), int(t.Month()), t.Day(), int(t.Weekday())
}

// Select returns the source named by kind: "system", "uptime", or "auto".
// In auto mode the system clock is trusted only when rtcDevice exists.
func Select(kind, rtcDevice, timezone string) (Source, error) {
	loc := time.Local
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
		}
		loc = l
	}

	switch kind {
	case "", "auto":
		if rtcDevice == "" {
			return System{Location: loc}, nil
		}
		if _, err := os.Stat(rtcDevice); err != nil {
			return NewUptime(), nil
		}
		return System{Location: loc}, nil
	case "system":
		return System{Location: loc}, nil
	case "uptime":
		return NewUptime(), nil
	default:
		return nil, fmt.Errorf("unknown clock source: %s", kind)
	}
}
