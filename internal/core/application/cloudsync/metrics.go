package cloudsync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "walletdb",
		Subsystem: "cloudsync",
		Name:      "runs_total",
		Help:      "Number of sync flows by outcome.",
	}, []string{"outcome"})
	syncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "walletdb",
		Subsystem: "cloudsync",
		Name:      "run_duration_seconds",
		Help:      "Duration of the sync flows.",
		Buckets:   prometheus.DefBuckets,
	})
	uploadedItems = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "walletdb",
		Subsystem: "cloudsync",
		Name:      "uploaded_items_total",
		Help:      "Number of sync items sent to the server.",
	})
	appliedItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "walletdb",
		Subsystem: "cloudsync",
		Name:      "applied_items_total",
		Help:      "Number of server sync items applied to the local records.",
	}, []string{"data_type"})
)
