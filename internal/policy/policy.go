// ABOUTME: Process-wide check-in policy: named thresholds pushed by the server
// ABOUTME: Maps battery state to heartbeat cadence; replace/merge with built-in defaults

package policy

import (
	"maps"
	"sync"
	"time"
)

// Threshold names understood by the agent. Unknown names pushed by the
// server are stored and ignored.
const (
	CheckinPlugged      = "checkin_plugged_seconds"
	CheckinBattery100   = "checkin_battery_100_80_seconds"
	CheckinBattery79    = "checkin_battery_79_50_seconds"
	CheckinBattery49    = "checkin_battery_49_20_seconds"
	CheckinBattery19    = "checkin_battery_19_10_seconds"
	CheckinBattery9     = "checkin_battery_9_0_seconds"
	DiskScanIntervalHrs = "disk_scan_interval_hours"
)

// Policy is the live threshold mapping. It is replaceable wholesale or by
// merge when the server pushes an update, and read by the heartbeat cadence
// logic on every cycle.
type Policy struct {
	mu     sync.RWMutex
	values map[string]int
}

// Default returns a Policy carrying the built-in thresholds, so the agent
// is never unconfigured.
func Default() *Policy {
	return &Policy{values: map[string]int{
		CheckinPlugged:      30,
		CheckinBattery100:   60,
		CheckinBattery79:    180,
		CheckinBattery49:    300,
		CheckinBattery19:    600,
		CheckinBattery9:     900,
		DiskScanIntervalHrs: 168,
	}}
}

// Get returns the value for a named threshold, or 0 if unknown.
func (p *Policy) Get(name string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.values[name]
}

// Merge overlays the given thresholds onto the current mapping.
func (p *Policy) Merge(patch map[string]int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	maps.Copy(p.values, patch)
}

// Replace swaps the whole mapping.
func (p *Policy) Replace(values map[string]int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = maps.Clone(values)
}

// Snapshot returns a copy of the current mapping.
func (p *Policy) Snapshot() map[string]int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return maps.Clone(p.values)
}

// CheckinInterval maps the current battery state to a heartbeat interval.
// Plugged-in or unknown battery uses the shortest interval; discharging
// batteries step through tiers at 80/50/20/10 percent remaining.
func (p *Policy) CheckinInterval(level *float64, charging bool) time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	name := CheckinBattery9
	switch {
	case charging || level == nil:
		name = CheckinPlugged
	case *level >= 80:
		name = CheckinBattery100
	case *level >= 50:
		name = CheckinBattery79
	case *level >= 20:
		name = CheckinBattery49
	case *level >= 10:
		name = CheckinBattery19
	}
	return time.Duration(p.values[name]) * time.Second
}
