package service

import (
	"context"
	"time"

	"github.com/mezonai/vault/monitoring"
	"github.com/mezonai/vault/types"
)

const (
	StatusServing  = "ok"
	StatusDegraded = "degraded"
)

// VaultLister is the part of the vault ledger the health check reads
type VaultLister interface {
	ListVaults() ([]*types.Vault, error)
}

type HealthStatus struct {
	Status        string                 `json:"status"`
	Timestamp     int64                  `json:"timestamp"`
	UptimeSeconds uint64                 `json:"uptime_seconds"`
	VaultCount    int                    `json:"vault_count"`
	Disk          *monitoring.DiskStatus `json:"disk,omitempty"`
	ErrorMessage  string                 `json:"error,omitempty"`
}

type HealthService struct {
	vaults    VaultLister
	storeDir  string
	startedAt time.Time
	now       func() time.Time
}

func NewHealthService(vaults VaultLister) *HealthService {
	return &HealthService{vaults: vaults, startedAt: time.Now(), now: time.Now}
}

// SetStoreDirectory enables disk usage reporting for the store at dir
func (hs *HealthService) SetStoreDirectory(dir string) {
	hs.storeDir = dir
}

// Check reports degraded instead of failing so callers always get a body.
// Only a done context is returned as an error.
func (hs *HealthService) Check(ctx context.Context) (*HealthStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := hs.now()
	resp := &HealthStatus{
		Status:        StatusServing,
		Timestamp:     now.Unix(),
		UptimeSeconds: uint64(now.Sub(hs.startedAt) / time.Second),
	}

	if hs.vaults == nil {
		resp.Status = StatusDegraded
		resp.ErrorMessage = "vault ledger is not available"
		return resp, nil
	}
	vaults, err := hs.vaults.ListVaults()
	if err != nil {
		resp.Status = StatusDegraded
		resp.ErrorMessage = err.Error()
		return resp, nil
	}
	resp.VaultCount = len(vaults)
	monitoring.SetVaultRecords(resp.VaultCount)

	if hs.storeDir == "" {
		return resp, nil
	}
	disk, err := monitoring.StoreDiskUsage(hs.storeDir)
	if err != nil {
		resp.Status = StatusDegraded
		resp.ErrorMessage = err.Error()
		return resp, nil
	}
	resp.Disk = disk
	return resp, nil
}
