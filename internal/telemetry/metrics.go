// Package telemetry provides OpenTelemetry instrumentation for the sync server.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncMetricsMeterName is the name used for the sync metrics meter
const SyncMetricsMeterName = "github.com/eaur/qbsync/sync"

// SyncMetrics holds the OpenTelemetry instruments for sync operation metrics
type SyncMetrics struct {
	batchDuration  metric.Float64Histogram
	recordsSynced  metric.Int64Counter
	recordsFailed  metric.Int64Counter
	rateLimitHits  metric.Int64Counter
	batchesAborted metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	batchDuration, err := meter.Float64Histogram(
		"qbsync_batch_duration_seconds",
		metric.WithDescription("Duration of sync batches in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	recordsSynced, err := meter.Int64Counter(
		"qbsync_records_synced_total",
		metric.WithDescription("Number of records successfully synchronized"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	recordsFailed, err := meter.Int64Counter(
		"qbsync_records_failed_total",
		metric.WithDescription("Number of records that failed to synchronize"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	rateLimitHits, err := meter.Int64Counter(
		"qbsync_rate_limit_hits_total",
		metric.WithDescription("Number of rate-limit responses from the remote"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	batchesAborted, err := meter.Int64Counter(
		"qbsync_batches_aborted_total",
		metric.WithDescription("Number of batches aborted on credential failure"),
		metric.WithUnit("{batch}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		batchDuration:  batchDuration,
		recordsSynced:  recordsSynced,
		recordsFailed:  recordsFailed,
		rateLimitHits:  rateLimitHits,
		batchesAborted: batchesAborted,
	}, nil
}

// RecordBatch records the outcome counts and duration of one batch
func (m *SyncMetrics) RecordBatch(ctx context.Context, kind string, synced, failed int64, duration time.Duration) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("entity_kind", kind))
	m.batchDuration.Record(ctx, duration.Seconds(), attrs)
	if synced > 0 {
		m.recordsSynced.Add(ctx, synced, attrs)
	}
	if failed > 0 {
		m.recordsFailed.Add(ctx, failed, attrs)
	}
}

// RecordRateLimit records one rate-limit response
func (m *SyncMetrics) RecordRateLimit(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.rateLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("entity_kind", kind)))
}

// RecordBatchAborted records one credential-level batch abort
func (m *SyncMetrics) RecordBatchAborted(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.batchesAborted.Add(ctx, 1, metric.WithAttributes(attribute.String("entity_kind", kind)))
}
