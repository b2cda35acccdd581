package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ScanAttempts counts finished scan attempts by outcome
// (accepted, rejected, duplicate, call_failed).
var ScanAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "scan_attempts_total",
	Help: "Finished scan attempts by outcome.",
}, []string{"outcome"})

// SessionRecords tracks the number of records in the active session.
var SessionRecords = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "session_records",
	Help: "Attendance records in the active session.",
})

// VerifyDuration observes recognition call latency.
var VerifyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "verify_duration_seconds",
	Help:    "Latency of recognition service calls.",
	Buckets: prometheus.DefBuckets,
})
