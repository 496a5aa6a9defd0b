// ABOUTME: Disk scan: per-partition usage breakdown published as a disk_scan event
// ABOUTME: Collected on server request and on the weekly policy cadence

package telemetry

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/disk"
)

// DiskDetail is one partition's usage entry in a disk scan report.
type DiskDetail struct {
	Path  string `json:"path"`
	Size  string `json:"size"`
	Total string `json:"total"`
	Pct   int    `json:"pct"`
}

// DiskScan reports usage for every mounted physical partition. Partitions
// whose usage cannot be read are skipped; the scan itself never fails.
func DiskScan(ctx context.Context) []DiskDetail {
	details := []DiskDetail{}

	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return details
	}

	for _, part := range parts {
		usage, err := disk.UsageWithContext(ctx, part.Mountpoint)
		if err != nil {
			continue
		}
		details = append(details, DiskDetail{
			Path:  part.Mountpoint,
			Size:  gigabytes(usage.Used),
			Total: gigabytes(usage.Total),
			Pct:   int(usage.UsedPercent + 0.5),
		})
	}
	return details
}

func gigabytes(b uint64) string {
	return fmt.Sprintf("%.1fGB", float64(b)/1e9)
}
