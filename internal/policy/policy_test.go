// ABOUTME: Tests for the check-in policy mapping
// ABOUTME: Covers defaults, merge/replace semantics, and battery-tier cadence selection

package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func level(v float64) *float64 { return &v }

func TestDefault_HasAllThresholds(t *testing.T) {
	p := Default()

	assert.Equal(t, 30, p.Get(CheckinPlugged))
	assert.Equal(t, 60, p.Get(CheckinBattery100))
	assert.Equal(t, 180, p.Get(CheckinBattery79))
	assert.Equal(t, 300, p.Get(CheckinBattery49))
	assert.Equal(t, 600, p.Get(CheckinBattery19))
	assert.Equal(t, 900, p.Get(CheckinBattery9))
	assert.Equal(t, 168, p.Get(DiskScanIntervalHrs))
}

func TestMerge_OverlaysKeepingRest(t *testing.T) {
	p := Default()
	p.Merge(map[string]int{CheckinPlugged: 10, "future_knob": 5})

	assert.Equal(t, 10, p.Get(CheckinPlugged))
	assert.Equal(t, 60, p.Get(CheckinBattery100), "unmentioned keys survive a merge")
	assert.Equal(t, 5, p.Get("future_knob"))
}

func TestReplace_SwapsWholesale(t *testing.T) {
	p := Default()
	p.Replace(map[string]int{CheckinPlugged: 15})

	assert.Equal(t, 15, p.Get(CheckinPlugged))
	assert.Equal(t, 0, p.Get(CheckinBattery100))
}

func TestCheckinInterval_Tiers(t *testing.T) {
	p := Default()

	tests := []struct {
		name     string
		level    *float64
		charging bool
		want     time.Duration
	}{
		{"plugged in", level(42), true, 30 * time.Second},
		{"no battery", nil, false, 30 * time.Second},
		{"full battery", level(100), false, 60 * time.Second},
		{"at 80", level(80), false, 60 * time.Second},
		{"at 79", level(79), false, 180 * time.Second},
		{"at 50", level(50), false, 180 * time.Second},
		{"at 49", level(49), false, 300 * time.Second},
		{"at 20", level(20), false, 300 * time.Second},
		{"at 19", level(19), false, 600 * time.Second},
		{"at 10", level(10), false, 600 * time.Second},
		{"at 9", level(9), false, 900 * time.Second},
		{"empty", level(0), false, 900 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.CheckinInterval(tt.level, tt.charging))
		})
	}
}

func TestCheckinInterval_ReflectsPolicyUpdate(t *testing.T) {
	p := Default()
	p.Merge(map[string]int{CheckinPlugged: 5})

	assert.Equal(t, 5*time.Second, p.CheckinInterval(nil, false))
}
