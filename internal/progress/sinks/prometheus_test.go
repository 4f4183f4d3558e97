package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/rankpilot/auditor/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	auditID := uuid.NewString()
	batch := []progress.Event{
		{AuditID: auditID, TS: time.Now(), Stage: progress.StageAuditStart},
		{
			AuditID:     auditID,
			TS:          time.Now().Add(2 * time.Second),
			Stage:       progress.StageFetchDone,
			URL:         "https://example.com",
			StatusClass: progress.Status2xx,
			Dur:         200 * time.Millisecond,
		},
		{AuditID: auditID, TS: time.Now().Add(5 * time.Second), Stage: progress.StageAuditDone, Score: 82, Dur: 5 * time.Second},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.auditsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.auditsCompleted.WithLabelValues("success")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.auditsCompleted.WithLabelValues("error")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.auditsRunning))

	require.InDelta(
		t,
		1.0,
		testutil.ToFloat64(sink.fetchRequests.WithLabelValues(string(progress.Status2xx))),
		1e-9,
	)
	require.Equal(t, 1, testutil.CollectAndCount(sink.fetchDuration, "auditor_fetch_duration_seconds"))
	require.Equal(t, 1, testutil.CollectAndCount(sink.auditScore, "auditor_audit_score"))
}

// TestPrometheusSinkFailedAudit checks the running gauge drains on error completions.
func TestPrometheusSinkFailedAudit(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	auditID := uuid.NewString()
	batch := []progress.Event{
		{AuditID: auditID, TS: time.Now(), Stage: progress.StageAuditStart},
		{AuditID: auditID, TS: time.Now(), Stage: progress.StageAuditError, Note: "fetch timed out", Dur: 30 * time.Second},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.auditsCompleted.WithLabelValues("error")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.auditsRunning))
}
