// ABOUTME: Hardware inventory snapshot pushed to the reporting endpoint
// ABOUTME: CPU model, memory, physical disks, and MAC address via gopsutil

package telemetry

import (
	"context"
	"net"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// Hardware is the inventory snapshot. The server treats it as an opaque
// structured payload; fields that cannot be read are left zero.
type Hardware struct {
	CPU         HardwareCPU    `json:"cpu"`
	RAMTotalGB  float64        `json:"ram_total_gb"`
	Disks       []HardwareDisk `json:"disks"`
	Motherboard string         `json:"motherboard,omitempty"`
	MAC         string         `json:"mac,omitempty"`
	Platform    string         `json:"platform,omitempty"`
}

// HardwareCPU describes the processor.
type HardwareCPU struct {
	Name     string  `json:"name"`
	Cores    int     `json:"cores"`
	Threads  int     `json:"threads"`
	SpeedGHz float64 `json:"speed_ghz"`
}

// HardwareDisk describes one physical partition device.
type HardwareDisk struct {
	Device string `json:"device"`
	Fstype string `json:"fstype"`
	SizeGB string `json:"size"`
}

// CollectHardware gathers a best-effort hardware inventory.
func CollectHardware(ctx context.Context) Hardware {
	var hw Hardware

	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		hw.CPU = HardwareCPU{
			Name:     infos[0].ModelName,
			Cores:    int(infos[0].Cores),
			SpeedGHz: infos[0].Mhz / 1000,
		}
		if threads, err := cpu.CountsWithContext(ctx, true); err == nil {
			hw.CPU.Threads = threads
		}
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		hw.RAMTotalGB = float64(vm.Total) / (1 << 30)
	}

	if parts, err := disk.PartitionsWithContext(ctx, false); err == nil {
		for _, part := range parts {
			d := HardwareDisk{Device: part.Device, Fstype: part.Fstype}
			if usage, err := disk.UsageWithContext(ctx, part.Mountpoint); err == nil {
				d.SizeGB = gigabytes(usage.Total)
			}
			hw.Disks = append(hw.Disks, d)
		}
	}

	if info, err := host.InfoWithContext(ctx); err == nil {
		hw.Platform = info.Platform
	}

	hw.MAC = macAddress()
	return hw
}

// macAddress returns the hardware address of the first non-loopback
// interface that has one.
func macAddress() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if mac := iface.HardwareAddr.String(); mac != "" {
			return mac
		}
	}
	return ""
}
