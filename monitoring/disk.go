package monitoring

import (
	"github.com/shirou/gopsutil/v3/disk"
)

// DiskStatus describes the filesystem holding the store directory
type DiskStatus struct {
	Path        string  `json:"path"`
	TotalBytes  uint64  `json:"total_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// StoreDiskUsage reports usage of the filesystem at path and exports the free bytes as a gauge.
func StoreDiskUsage(path string) (*DiskStatus, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return nil, err
	}
	if vaultMetrics != nil {
		vaultMetrics.storeDiskFreeBytes.Set(float64(usage.Free))
	}
	return &DiskStatus{
		Path:        path,
		TotalBytes:  usage.Total,
		FreeBytes:   usage.Free,
		UsedPercent: usage.UsedPercent,
	}, nil
}
