// ABOUTME: Tests for pure trigger evaluation across all trigger kinds
// ABOUTME: Covers interval elapse, once boundaries, cron occurrences, and fail-safe behavior

package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ts(t time.Time) *time.Time { return &t }

func TestDue_Immediate(t *testing.T) {
	now := time.Now()
	assert.True(t, Due(Task{ID: "t1", Trigger: TriggerImmediate}, now))
}

func TestDue_Once(t *testing.T) {
	at := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	tk := Task{ID: "t1", Trigger: TriggerOnce, ScheduledAt: ts(at)}

	assert.False(t, Due(tk, at.Add(-time.Second)), "before scheduled_at")
	assert.True(t, Due(tk, at), "exactly at scheduled_at")
	assert.True(t, Due(tk, at.Add(time.Hour)), "after scheduled_at")
}

func TestDue_OnceMissingTimestamp(t *testing.T) {
	assert.False(t, Due(Task{ID: "t1", Trigger: TriggerOnce}, time.Now()))
}

func TestDue_Interval(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	tk := Task{ID: "t1", Trigger: TriggerInterval, IntervalSeconds: 600}

	assert.True(t, Due(tk, now), "no prior run is immediately due")

	tk.LastRun = ts(now)
	assert.False(t, Due(tk, now.Add(599*time.Second)), "within interval")
	assert.True(t, Due(tk, now.Add(600*time.Second)), "interval elapsed")
	assert.True(t, Due(tk, now.Add(2*time.Hour)), "well past interval")
}

func TestDue_IntervalInvalid(t *testing.T) {
	assert.False(t, Due(Task{ID: "t1", Trigger: TriggerInterval, IntervalSeconds: 0}, time.Now()))
	assert.False(t, Due(Task{ID: "t1", Trigger: TriggerInterval, IntervalSeconds: -5}, time.Now()))
}

func TestDue_CronMondayExpression(t *testing.T) {
	// "30 14 * * 1" — 14:30 on Mondays. 2026-03-02 is a Monday.
	tk := Task{ID: "t1", Trigger: TriggerCron, CronExpression: "30 14 * * 1"}

	monday1430 := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

	// Never run: due only inside the matching minute.
	assert.False(t, Due(tk, monday1430.Add(-time.Minute)))
	assert.True(t, Due(tk, monday1430))
	assert.True(t, Due(tk, monday1430.Add(20*time.Second)))

	// Marked run for this occurrence: immediately not due.
	tk.LastRun = ts(monday1430.Add(10 * time.Second))
	assert.False(t, Due(tk, monday1430.Add(30*time.Second)))
	assert.False(t, Due(tk, monday1430.Add(24*time.Hour)), "Tuesday 14:30 does not match")

	// Due again exactly one week later, once.
	nextMonday := monday1430.AddDate(0, 0, 7)
	assert.False(t, Due(tk, nextMonday.Add(-time.Second)))
	assert.True(t, Due(tk, nextMonday))

	tk.LastRun = ts(nextMonday.Add(5 * time.Second))
	assert.False(t, Due(tk, nextMonday.Add(time.Minute)))
}

func TestDue_CronDaily(t *testing.T) {
	tk := Task{ID: "t1", Trigger: TriggerCron, CronExpression: "0 3 * * *"}

	ran := time.Date(2026, 3, 2, 3, 0, 12, 0, time.UTC)
	tk.LastRun = ts(ran)

	assert.False(t, Due(tk, ran.Add(time.Hour)))
	assert.True(t, Due(tk, time.Date(2026, 3, 3, 3, 0, 0, 0, time.UTC)))
}

func TestDue_CronSundayAliases(t *testing.T) {
	// 2026-03-01 is a Sunday; both 0 and 7 select it.
	sunday := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for _, wd := range []string{"0", "7"} {
		tk := Task{ID: "t1", Trigger: TriggerCron, CronExpression: "0 8 * * " + wd}
		assert.True(t, Due(tk, sunday), "weekday field %s", wd)
	}
}

func TestDue_CronMalformed(t *testing.T) {
	now := time.Now()
	for _, expr := range []string{"", "30 14", "x y * * *", "70 14 * * *", "30 25 * * *", "30 14 * * 9"} {
		tk := Task{ID: "t1", Trigger: TriggerCron, CronExpression: expr}
		assert.False(t, Due(tk, now), "expression %q", expr)
	}
}

func TestDue_EventNeverDueHere(t *testing.T) {
	tk := Task{ID: "t1", Trigger: TriggerEvent, EventTrigger: EventNetworkChange}
	assert.False(t, Due(tk, time.Now()))
}

func TestDue_UnknownTrigger(t *testing.T) {
	assert.False(t, Due(Task{ID: "t1", Trigger: "solstice"}, time.Now()))
}

func TestCronNext_SkipsToWeekday(t *testing.T) {
	// From a Wednesday, next Monday 14:30.
	wednesday := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	next, ok := cronNext("30 14 * * 1", wednesday)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 9, 14, 30, 0, 0, time.UTC), next)
	assert.Equal(t, time.Monday, next.Weekday())
}

func TestCronNext_StrictlyAfterRef(t *testing.T) {
	at := time.Date(2026, 3, 3, 14, 30, 0, 0, time.UTC)
	next, ok := cronNext("30 14 * * *", at)
	assert.True(t, ok)
	assert.Equal(t, at.AddDate(0, 0, 1), next)
}
