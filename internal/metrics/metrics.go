// Package metrics exposes the add-on's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncTotal counts completed sync passes by result ("ok" or "failed").
	SyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opsync_sync_total",
		Help: "Total number of sync passes by result",
	}, []string{"result"})

	// SecretsWritten counts secrets written to secrets.yaml.
	SecretsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "opsync_secrets_written_total",
		Help: "Total number of secret values written to the secrets file",
	})

	// NotificationFailures counts failed Home Assistant event and
	// notification deliveries.
	NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "opsync_notifications_failed_total",
		Help: "Total number of failed Home Assistant deliveries",
	})

	// SyncDuration observes end-to-end sync pass duration.
	SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "opsync_sync_duration_seconds",
		Help:    "Duration of sync passes",
		Buckets: prometheus.DefBuckets,
	})
)
