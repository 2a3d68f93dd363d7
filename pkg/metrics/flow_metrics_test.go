package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewFlowMetrics tests creating and registering flow metrics
func TestNewFlowMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()

	fm, err := NewFlowMetrics(registry)
	require.NoError(t, err)
	require.NotNil(t, fm)

	assert.Equal(t, 1.0, testutil.ToFloat64(fm.BuildInfo))
	assert.Equal(t, 0.0, testutil.ToFloat64(fm.EntriesCreatedTotal))
}

// TestNewFlowMetrics_DuplicateRegistration tests that a registry rejects a second set
func TestNewFlowMetrics_DuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()

	_, err := NewFlowMetrics(registry)
	require.NoError(t, err)

	_, err = NewFlowMetrics(registry)
	assert.Error(t, err)
}

func TestRecordLoginAttempt(t *testing.T) {
	fm, err := NewFlowMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	before := time.Now().Unix()
	fm.RecordLoginAttempt("user", "success", 120*time.Millisecond)
	fm.RecordLoginAttempt("user", "invalid_auth", 80*time.Millisecond)
	fm.RecordLoginAttempt("user", "invalid_auth", 80*time.Millisecond)
	fm.RecordLoginAttempt("reauth_confirm", "cannot_connect", time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(fm.LoginAttemptsTotal.WithLabelValues("user", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(fm.LoginAttemptsTotal.WithLabelValues("user", "invalid_auth")))
	assert.Equal(t, 1.0, testutil.ToFloat64(fm.LoginAttemptsTotal.WithLabelValues("reauth_confirm", "cannot_connect")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(fm.LastLoginSuccessUnix), float64(before))
	assert.Equal(t, 1, testutil.CollectAndCount(fm.LoginDurationSeconds))
}

// TestFailedLoginKeepsLastSuccess tests that failures do not move the success timestamp
func TestFailedLoginKeepsLastSuccess(t *testing.T) {
	fm, err := NewFlowMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	fm.RecordLoginAttempt("user", "unknown", time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(fm.LastLoginSuccessUnix))
}

func TestFlowOutcomeCounters(t *testing.T) {
	fm, err := NewFlowMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	fm.RecordEntryCreated()
	fm.RecordFlowAborted("already_configured")
	fm.RecordFlowAborted("reauth_successful")
	fm.RecordFlowAborted("reauth_successful")
	fm.SetFlowsInProgress(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(fm.EntriesCreatedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(fm.FlowsAbortedTotal.WithLabelValues("already_configured")))
	assert.Equal(t, 2.0, testutil.ToFloat64(fm.FlowsAbortedTotal.WithLabelValues("reauth_successful")))
	assert.Equal(t, 3.0, testutil.ToFloat64(fm.FlowsInProgress))
}

// BenchmarkRecordLoginAttempt benchmarks recording a login attempt
func BenchmarkRecordLoginAttempt(b *testing.B) {
	fm, err := NewFlowMetrics(prometheus.NewRegistry())
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		fm.RecordLoginAttempt("user", "success", time.Millisecond)
	}
}
