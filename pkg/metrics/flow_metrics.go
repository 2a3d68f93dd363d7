// Package metrics holds Prometheus metrics for the setup service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FlowMetrics holds Prometheus metrics describing setup and reauth flows
type FlowMetrics struct {
	// Login attempts by step and outcome (success, cannot_connect, invalid_auth, unknown)
	LoginAttemptsTotal *prometheus.CounterVec

	// Login duration histogram (in seconds)
	LoginDurationSeconds prometheus.Histogram

	// Entries created by finished flows
	EntriesCreatedTotal prometheus.Counter

	// Flows ended by abort, by reason
	FlowsAbortedTotal *prometheus.CounterVec

	// Flows currently waiting for user input
	FlowsInProgress prometheus.Gauge

	// Last successful login timestamp (unix seconds)
	LastLoginSuccessUnix prometheus.Gauge

	// Build info gauge
	BuildInfo prometheus.Gauge
}

// NewFlowMetrics creates flow metrics and registers them with reg
func NewFlowMetrics(reg prometheus.Registerer) (*FlowMetrics, error) {
	fm := &FlowMetrics{
		LoginAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poolstation_setup_login_attempts_total",
			Help: "Login attempts made by setup flows, by step and result",
		}, []string{"step", "result"}),

		// Buckets: 50ms .. 6.4s
		LoginDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "poolstation_setup_login_duration_seconds",
			Help:    "Time taken by a login attempt against the account service in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 8),
		}),

		EntriesCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poolstation_setup_entries_created_total",
			Help: "Total number of config entries created by setup flows",
		}),

		FlowsAbortedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poolstation_setup_flows_aborted_total",
			Help: "Flows that ended with an abort, by reason",
		}, []string{"reason"}),

		FlowsInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "poolstation_setup_flows_in_progress",
			Help: "Number of flows waiting for user input",
		}),

		LastLoginSuccessUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "poolstation_setup_last_login_success_unix",
			Help: "Unix timestamp of the last successful login",
		}),

		BuildInfo: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "poolstation_setup_build_info",
			Help: "Build information for the setup service (value is always 1)",
		}),
	}

	if err := fm.Register(reg); err != nil {
		return nil, err
	}

	fm.BuildInfo.Set(1)

	return fm, nil
}

// Register registers flow metrics with reg
func (fm *FlowMetrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		fm.LoginAttemptsTotal,
		fm.LoginDurationSeconds,
		fm.EntriesCreatedTotal,
		fm.FlowsAbortedTotal,
		fm.FlowsInProgress,
		fm.LastLoginSuccessUnix,
		fm.BuildInfo,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RecordLoginAttempt records the outcome and duration of one login attempt
func (fm *FlowMetrics) RecordLoginAttempt(step, result string, duration time.Duration) {
	fm.LoginAttemptsTotal.WithLabelValues(step, result).Inc()
	fm.LoginDurationSeconds.Observe(duration.Seconds())
	if result == "success" {
		fm.LastLoginSuccessUnix.Set(float64(time.Now().Unix()))
	}
}

// RecordEntryCreated increments the created entries counter
func (fm *FlowMetrics) RecordEntryCreated() {
	fm.EntriesCreatedTotal.Inc()
}

// RecordFlowAborted increments the abort counter for reason
func (fm *FlowMetrics) RecordFlowAborted(reason string) {
	fm.FlowsAbortedTotal.WithLabelValues(reason).Inc()
}

// SetFlowsInProgress sets the in-progress gauge
func (fm *FlowMetrics) SetFlowsInProgress(n int) {
	fm.FlowsInProgress.Set(float64(n))
}
