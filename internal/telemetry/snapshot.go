// ABOUTME: Telemetry snapshot for heartbeats and check-ins
// ABOUTME: Battery, CPU, RAM, and disk readings via gopsutil and distatus/battery

package telemetry

import (
	"fmt"
	"os"
	"time"

	"github.com/distatus/battery"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/droverhq/drover-agent/internal/version"
)

// Snapshot is one telemetry reading. Nil pointer fields mean the reading
// was unavailable on this host (e.g. no battery).
type Snapshot struct {
	Hostname        string   `json:"hostname"`
	IPAddress       string   `json:"ip_address"`
	OSInfo          string   `json:"os_info"`
	BatteryLevel    *float64 `json:"battery_level"`
	BatteryCharging bool     `json:"battery_charging"`
	CPUPercent      *float64 `json:"cpu_percent,omitempty"`
	RAMPercent      *float64 `json:"ram_percent,omitempty"`
	DiskPercent     *float64 `json:"disk_percent,omitempty"`
	AgentVersion    string   `json:"agent_version"`
}

// Collect gathers a best-effort snapshot. Individual readings that fail are
// left nil; Collect itself never fails.
func Collect() Snapshot {
	snap := Snapshot{
		Hostname:     hostname(),
		IPAddress:    LocalIP(),
		OSInfo:       osInfo(),
		AgentVersion: version.Version,
	}

	snap.BatteryLevel, snap.BatteryCharging = Battery()

	if pcts, err := cpu.Percent(300*time.Millisecond, false); err == nil && len(pcts) > 0 {
		snap.CPUPercent = &pcts[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		snap.RAMPercent = &vm.UsedPercent
	}
	if du, err := disk.Usage("/"); err == nil {
		snap.DiskPercent = &du.UsedPercent
	}

	return snap
}

// Battery returns the charge percentage and charging state of the first
// battery, or (nil, false) when the host has none or the reading fails.
func Battery() (*float64, bool) {
	batteries, err := battery.GetAll()
	if err != nil || len(batteries) == 0 {
		return nil, false
	}

	b := batteries[0]
	if b.Full <= 0 {
		return nil, false
	}
	level := b.Current / b.Full * 100

	st := b.State.String()
	charging := st == "Charging" || st == "Full"
	return &level, charging
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}

func osInfo() string {
	info, err := host.Info()
	if err != nil {
		return "unknown"
	}
	return fmt.Sprintf("%s %s %s", info.Platform, info.PlatformVersion, info.KernelVersion)
}
