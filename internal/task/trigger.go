// ABOUTME: Pure trigger evaluation: decides whether a task is due at a given instant
// ABOUTME: Covers immediate, once, interval, and cron kinds; event tasks are watcher-driven

package task

import (
	"strconv"
	"strings"
	"time"
)

// Due reports whether the task is due to run at now. It is pure and
// side-effect-free; callers own all last-run and cancellation bookkeeping.
// Unsupported or malformed trigger configuration is never due.
func Due(t Task, now time.Time) bool {
	switch t.Trigger {
	case TriggerImmediate:
		return true

	case TriggerOnce:
		if t.ScheduledAt == nil {
			return false
		}
		return !now.Before(*t.ScheduledAt)

	case TriggerInterval:
		if t.IntervalSeconds <= 0 {
			return false
		}
		if t.LastRun == nil {
			return true
		}
		return now.Sub(*t.LastRun) >= time.Duration(t.IntervalSeconds)*time.Second

	case TriggerCron:
		return cronDue(t.CronExpression, t.LastRun, now)

	case TriggerEvent:
		// Dispatched by the network watcher, never by the scheduler pass.
		return false

	default:
		return false
	}
}

// cronDue evaluates a 5-field cron-like expression. The instant considered
// is the next occurrence strictly after the last run; the task is due once
// now reaches it. With no recorded run, the task is due only while inside
// the matching minute.
func cronDue(expr string, last *time.Time, now time.Time) bool {
	ref := now.Truncate(time.Minute).Add(-time.Second)
	if last != nil {
		ref = *last
	}
	next, ok := cronNext(expr, ref)
	if !ok {
		return false
	}
	return !now.Before(next)
}

// cronNext computes the first instant strictly after ref that matches the
// expression's minute, hour, and weekday fields.
//
// Known limitation: day-of-month and month (fields 3 and 4) are accepted
// syntactically but not evaluated; only "minute hour * * weekday" schedules
// behave as written. Weekday uses 0=Sunday..6=Saturday, with 7 also
// accepted for Sunday.
func cronNext(expr string, ref time.Time) (time.Time, bool) {
	parts := strings.Fields(strings.TrimSpace(expr))
	if len(parts) < 5 {
		return time.Time{}, false
	}

	minute, err := strconv.Atoi(parts[0])
	if err != nil || minute < 0 || minute > 59 {
		return time.Time{}, false
	}
	hour, err := strconv.Atoi(parts[1])
	if err != nil || hour < 0 || hour > 23 {
		return time.Time{}, false
	}

	weekday := -1
	if parts[4] != "*" {
		wd, err := strconv.Atoi(parts[4])
		if err != nil || wd < 0 || wd > 7 {
			return time.Time{}, false
		}
		weekday = wd % 7
	}

	candidate := time.Date(ref.Year(), ref.Month(), ref.Day(), hour, minute, 0, 0, ref.Location())
	if !candidate.After(ref) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	if weekday >= 0 {
		for int(candidate.Weekday()) != weekday {
			candidate = candidate.AddDate(0, 0, 1)
		}
	}
	return candidate, true
}
