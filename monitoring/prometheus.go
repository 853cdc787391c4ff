package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mezonai/vault/logx"
)

type OpResult string

const (
	ResultOK       OpResult = "ok"
	ResultRejected OpResult = "rejected"
)

// RejectedReason mirrors the error codes returned to callers
type RejectedReason string

type vaultPromMetrics struct {
	upUnixSeconds          prometheus.Gauge
	operations             *prometheus.CounterVec
	rejectedOperations     *prometheus.CounterVec
	custodyTransferSeconds prometheus.Histogram
	vaultsCreated          prometheus.Counter
	vaultRecords           prometheus.Gauge
	storeDiskFreeBytes     prometheus.Gauge
	panics                 prometheus.Counter
}

func newVaultPromMetrics() *vaultPromMetrics {
	return &vaultPromMetrics{
		upUnixSeconds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "vault_up_timestamp_unix_seconds",
				Help: "Unix timestamp when the vault ledger started",
			},
		),
		operations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vault_operations_total",
				Help: "The total number of vault operations by kind and outcome",
			},
			[]string{"op", "result"},
		),
		rejectedOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vault_rejected_operations_total",
				Help: "The total number of rejected vault operations",
			},
			[]string{"reason"},
		),
		custodyTransferSeconds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vault_custody_transfer_duration_seconds",
				Help:    "Latency of the external custody transfer including the record commit",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
		),
		vaultsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "vault_records_created_total",
				Help: "Vault records initialized by this process",
			},
		),
		vaultRecords: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "vault_records",
				Help: "Vault records in the store as of the last listing",
			},
		),
		storeDiskFreeBytes: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "vault_store_disk_free_bytes",
				Help: "Free bytes on the filesystem holding the store directory",
			},
		),
		panics: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "vault_panics_total",
				Help: "Panics recovered in background goroutines",
			},
		),
	}
}

var (
	vaultMetrics *vaultPromMetrics
	initOnce     sync.Once
)

// InitMetrics registers collectors with the default registry. Safe to call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		vaultMetrics = newVaultPromMetrics()
		vaultMetrics.upUnixSeconds.SetToCurrentTime()
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RegisterMetrics(mux *http.ServeMux) {
	logx.Info("MONITORING", "Registering prometheus metrics")
	mux.Handle("/metrics", Handler())
}

func RecordOperation(op string, result OpResult) {
	if vaultMetrics == nil {
		return
	}
	vaultMetrics.operations.With(prometheus.Labels{
		"op":     op,
		"result": string(result),
	}).Inc()
}

func RecordRejected(op string, reason RejectedReason) {
	if vaultMetrics == nil {
		return
	}
	RecordOperation(op, ResultRejected)
	vaultMetrics.rejectedOperations.With(prometheus.Labels{
		"reason": string(reason),
	}).Inc()
}

func RecordCustodyTransfer(duration time.Duration) {
	if vaultMetrics == nil {
		return
	}
	vaultMetrics.custodyTransferSeconds.Observe(duration.Seconds())
}

func IncVaultsCreated() {
	if vaultMetrics == nil {
		return
	}
	vaultMetrics.vaultsCreated.Inc()
}

// SetVaultRecords records the stored total, which other processes may also grow
func SetVaultRecords(n int) {
	if vaultMetrics == nil {
		return
	}
	vaultMetrics.vaultRecords.Set(float64(n))
}

func IncreasePanicCount() {
	if vaultMetrics == nil {
		return
	}
	vaultMetrics.panics.Inc()
}
