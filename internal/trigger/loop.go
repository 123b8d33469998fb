// Package trigger detects the minute a scheduled slot comes due and fires
// each slot at most once per day.
package trigger

import (
	"time"

	"github.com/goodtune/pillbox/internal/schedule"
)

// DefaultGrace is how long after start-up the loop stays quiet.
const DefaultGrace = 30 * time.Second

// noMinute never equals a real minute, so the first evaluation always runs.
const noMinute = 99

// Loop is edge-triggered on minute boundaries. It is not safe for
// concurrent use.
type Loop struct {
	started    time.Time
	grace      time.Duration
	armed      bool
	lastMinute int
	fired      [schedule.SlotCount]bool
	midnight   bool
}

// NewLoop creates a loop whose grace period runs from started, which must
// come from the same time source later passed to Evaluate.
func NewLoop(started time.Time, grace time.Duration) *Loop {
	if grace < 0 {
		grace = 0
	}
	return &Loop{
		started:    started,
		grace:      grace,
		lastMinute: noMinute,
	}
}

// Evaluate returns the slots that come due at now, in index order. It does
// nothing while the master switch is off, during the start-up grace period,
// or when the minute has not changed since the previous call. At 00:00 the
// fired state is cleared before matching so a midnight slot fires the same
// evaluation.
func (l *Loop) Evaluate(now time.Time, masterEnabled bool, slots [schedule.SlotCount]schedule.TimeSlot) []int {
	l.midnight = false
	if !masterEnabled {
		return nil
	}
	if !l.armed {
		// A clock stepped backwards also ends the grace period.
		if elapsed := now.Sub(l.started); elapsed >= 0 && elapsed < l.grace {
			return nil
		}
		l.armed = true
	}

	hour, minute, _ := now.Clock()
	if minute == l.lastMinute {
		return nil
	}
	l.lastMinute = minute

	if hour == 0 && minute == 0 {
		l.fired = [schedule.SlotCount]bool{}
		l.midnight = true
	}

	var due []int
	for i, s := range slots {
		if !s.Enabled || l.fired[i] || !s.Matches(hour, minute) {
			continue
		}
		l.fired[i] = true
		due = append(due, i)
	}
	return due
}

// Fired reports which slots have already triggered today.
func (l *Loop) Fired() [schedule.SlotCount]bool {
	return l.fired
}

// ResetAtMidnight reports whether the latest Evaluate cleared the fired state.
func (l *Loop) ResetAtMidnight() bool {
	return l.midnight
}

// Reset forgets the fired state and the last observed minute. The grace
// period is not restarted.
func (l *Loop) Reset() {
	l.fired = [schedule.SlotCount]bool{}
	l.lastMinute = noMinute
	l.midnight = false
}
