// Package syncengine orchestrates the record synchronization batches: it
// claims work, enriches it, pushes it to the remote and writes per-record
// status back. One engine instance serves one tenant.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/eaur/qbsync/internal/credentials"
	"github.com/eaur/qbsync/internal/enrich"
	"github.com/eaur/qbsync/internal/mapping"
	"github.com/eaur/qbsync/internal/qbclient"
	"github.com/eaur/qbsync/internal/records"
	"github.com/eaur/qbsync/internal/telemetry"
)

// RecordStore is the persistence boundary for sync records. The IN_PROGRESS
// claim doubles as the advisory lock between concurrent engines.
type RecordStore interface {
	CountByStatus(ctx context.Context, kind records.EntityKind) (map[records.SyncStatus]int64, error)
	ListUnsynced(ctx context.Context, kind records.EntityKind, limit, offset int) ([]records.Record, error)
	Claim(ctx context.Context, kind records.EntityKind, limit int) ([]records.Record, error)
	ClaimOne(ctx context.Context, kind records.EntityKind, id int64) (*records.Record, error)
	MarkSynced(ctx context.Context, id int64, remoteID, pushedBy string) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
	Release(ctx context.Context, ids []int64) error
}

// ErrRecordNotFound is returned by stores when a record id does not exist.
var ErrRecordNotFound = errors.New("record not found")

// RemotePusher delivers one enriched record to the remote and returns its
// remote id. Records that already carry a remote id must be updated in place,
// never re-created.
type RemotePusher interface {
	Push(ctx context.Context, e *enrich.Enriched, payload map[string]interface{}) (string, error)
}

// AuditSink records per-record sync actions. Sink failures are logged, never
// propagated into batch outcomes.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry is one audited sync action.
type AuditEntry struct {
	BatchID  uuid.UUID
	Kind     records.EntityKind
	LocalID  int64
	Action   string
	Status   string
	Error    string
	Duration time.Duration
}

// Audit actions and statuses.
const (
	ActionCreate = "create"
	ActionUpdate = "update"

	AuditStatusSynced   = "synced"
	AuditStatusFailed   = "failed"
	AuditStatusDeferred = "deferred"
)

// StatusCounts is the per-status breakdown for one entity kind.
type StatusCounts struct {
	NotSynced  int64 `json:"not_synced"`
	Synced     int64 `json:"synced"`
	Failed     int64 `json:"failed"`
	InProgress int64 `json:"in_progress"`
	Total      int64 `json:"total"`
}

// RecordError is one failed record inside a batch outcome.
type RecordError struct {
	RecordID int64  `json:"record_id"`
	Ref      string `json:"ref"`
	Error    string `json:"error"`
}

// BatchOutcome summarizes one batch. Total = Successful + Failed + Deferred
// always holds; a record failure never aborts the batch.
type BatchOutcome struct {
	BatchID    uuid.UUID          `json:"batch_id"`
	Kind       records.EntityKind `json:"entity_kind"`
	Total      int                `json:"total"`
	Successful int                `json:"successful"`
	Failed     int                `json:"failed"`
	Deferred   int                `json:"deferred"`
	Errors     []RecordError      `json:"errors,omitempty"`
}

// RecordResult is the outcome of a single-record sync.
type RecordResult struct {
	RecordID int64              `json:"record_id"`
	Status   records.SyncStatus `json:"status"`
	RemoteID string             `json:"remote_id,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// Engine runs the per-record state machine for one tenant.
type Engine struct {
	store          RecordStore
	cache          *enrich.Cache
	pusher         RemotePusher
	audit          AuditSink
	metrics        *telemetry.SyncMetrics
	pushedBy       string
	rateLimitPause time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithAuditSink attaches an audit sink.
func WithAuditSink(sink AuditSink) Option {
	return func(e *Engine) {
		e.audit = sink
	}
}

// WithMetrics attaches sync metrics. A nil value is a no-op.
func WithMetrics(m *telemetry.SyncMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithPushedBy sets the actor recorded on synced records.
func WithPushedBy(actor string) Option {
	return func(e *Engine) {
		e.pushedBy = actor
	}
}

// WithRateLimitPause sets the pause applied when the remote rate-limits
// without a Retry-After hint.
func WithRateLimitPause(d time.Duration) Option {
	return func(e *Engine) {
		e.rateLimitPause = d
	}
}

// New creates an engine.
func New(store RecordStore, cache *enrich.Cache, pusher RemotePusher, opts ...Option) *Engine {
	e := &Engine{
		store:          store,
		cache:          cache,
		pusher:         pusher,
		pushedBy:       "system",
		rateLimitPause: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze returns the status breakdown for an entity kind.
func (e *Engine) Analyze(ctx context.Context, kind records.EntityKind) (*StatusCounts, error) {
	counts, err := e.store.CountByStatus(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}

	out := &StatusCounts{
		NotSynced:  counts[records.StatusNotSynced],
		Synced:     counts[records.StatusSynced],
		Failed:     counts[records.StatusFailed],
		InProgress: counts[records.StatusInProgress],
	}
	out.Total = out.NotSynced + out.Synced + out.Failed + out.InProgress
	return out, nil
}

// Preview returns enriched-but-unsynced records without claiming or pushing
// anything. Operators use it to inspect what a run would send.
func (e *Engine) Preview(ctx context.Context, kind records.EntityKind, limit, offset int) ([]enrich.Enriched, error) {
	recs, err := e.store.ListUnsynced(ctx, kind, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	enriched, err := e.cache.Resolve(ctx, recs)
	if err != nil {
		return nil, err
	}

	// Keep the store's id ordering.
	out := make([]enrich.Enriched, 0, len(recs))
	for _, rec := range recs {
		out = append(out, enriched[rec.ID])
	}
	return out, nil
}

// RunBatch claims up to batchSize records and pushes them sequentially.
// A record failure marks that record FAILED and continues. A rate-limited
// record is paused on and deferred, never failed. A credential-level failure
// aborts the batch and releases the unprocessed claims.
func (e *Engine) RunBatch(ctx context.Context, kind records.EntityKind, batchSize int) (*BatchOutcome, error) {
	outcome := &BatchOutcome{
		BatchID: uuid.New(),
		Kind:    kind,
	}

	claimed, err := e.store.Claim(ctx, kind, batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to claim records: %w", err)
	}
	outcome.Total = len(claimed)
	if len(claimed) == 0 {
		return outcome, nil
	}

	start := time.Now()
	slog.Info("batch started",
		"batch_id", outcome.BatchID,
		"entity_kind", string(kind),
		"claimed", len(claimed),
	)

	enriched, err := e.cache.Resolve(ctx, claimed)
	if err != nil {
		e.releaseAll(ctx, claimed, 0)
		return nil, fmt.Errorf("enrichment failed: %w", err)
	}

	for i, rec := range claimed {
		if err := ctx.Err(); err != nil {
			// Cooperative cancellation between records: everything not yet
			// processed goes back to claimable.
			e.releaseAll(ctx, claimed, i)
			outcome.Total = i
			return outcome, err
		}

		item := enriched[rec.ID]
		status, pushErr := e.syncOne(ctx, outcome.BatchID, &item)
		switch status {
		case AuditStatusSynced:
			outcome.Successful++
		case AuditStatusFailed:
			outcome.Failed++
			outcome.Errors = append(outcome.Errors, RecordError{
				RecordID: rec.ID,
				Ref:      rec.DisplayRef(),
				Error:    pushErr.Error(),
			})
		case AuditStatusDeferred:
			outcome.Deferred++
			var rateErr *qbclient.RateLimitError
			if errors.As(pushErr, &rateErr) {
				e.metrics.RecordRateLimit(ctx, string(kind))
				if err := e.pause(ctx, rateErr.RetryAfter); err != nil {
					e.releaseAll(ctx, claimed, i+1)
					outcome.Total = i + 1
					return outcome, err
				}
			}
		}

		if pushErr != nil && isCredentialFailure(pushErr) {
			// Terminal for the whole batch: every further push would fail the
			// same way and poison records with FAILED statuses they did not
			// earn.
			e.releaseAll(ctx, claimed, i+1)
			outcome.Total = i + 1
			e.metrics.RecordBatchAborted(ctx, string(kind))
			slog.Error("batch aborted on credential failure",
				"batch_id", outcome.BatchID,
				"entity_kind", string(kind),
				"error", pushErr,
			)
			return outcome, pushErr
		}
	}

	e.metrics.RecordBatch(ctx, string(kind), int64(outcome.Successful), int64(outcome.Failed), time.Since(start))
	slog.Info("batch finished",
		"batch_id", outcome.BatchID,
		"entity_kind", string(kind),
		"successful", outcome.Successful,
		"failed", outcome.Failed,
		"deferred", outcome.Deferred,
	)
	return outcome, nil
}

// RunAll repeatedly runs batches until no claimable records remain or
// maxBatches is reached, and aggregates the outcomes.
func (e *Engine) RunAll(ctx context.Context, kind records.EntityKind, batchSize, maxBatches int) (*BatchOutcome, error) {
	aggregate := &BatchOutcome{
		BatchID: uuid.New(),
		Kind:    kind,
	}

	for i := 0; i < maxBatches; i++ {
		outcome, err := e.RunBatch(ctx, kind, batchSize)
		if outcome != nil {
			aggregate.Total += outcome.Total
			aggregate.Successful += outcome.Successful
			aggregate.Failed += outcome.Failed
			aggregate.Deferred += outcome.Deferred
			aggregate.Errors = append(aggregate.Errors, outcome.Errors...)
		}
		if err != nil {
			return aggregate, err
		}
		if outcome.Total == 0 {
			break
		}
	}
	return aggregate, nil
}

// SyncOne claims and pushes a single record by id, regardless of its current
// status. Operators use it to re-push a specific record.
func (e *Engine) SyncOne(ctx context.Context, kind records.EntityKind, id int64) (*RecordResult, error) {
	rec, err := e.store.ClaimOne(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	enriched, err := e.cache.Resolve(ctx, []records.Record{*rec})
	if err != nil {
		e.releaseAll(ctx, []records.Record{*rec}, 0)
		return nil, err
	}

	item := enriched[rec.ID]
	status, pushErr := e.syncOne(ctx, uuid.New(), &item)

	result := &RecordResult{RecordID: rec.ID}
	switch status {
	case AuditStatusSynced:
		result.Status = records.StatusSynced
		if item.Record.RemoteID != nil {
			result.RemoteID = *item.Record.RemoteID
		}
	case AuditStatusFailed:
		result.Status = records.StatusFailed
		result.Error = pushErr.Error()
	case AuditStatusDeferred:
		result.Status = records.StatusNotSynced
		result.Error = pushErr.Error()
	}

	if pushErr != nil && isCredentialFailure(pushErr) {
		return result, pushErr
	}
	return result, nil
}

// syncOne pushes one enriched record and writes its status back. The returned
// status is one of the audit statuses; pushErr is non-nil unless synced.
func (e *Engine) syncOne(ctx context.Context, batchID uuid.UUID, item *enrich.Enriched) (string, error) {
	rec := &item.Record
	action := ActionCreate
	if rec.HasRemoteID() {
		action = ActionUpdate
	}
	start := time.Now()

	payload, err := mapping.BuildPayload(item)
	if err != nil {
		e.markFailed(ctx, rec, err)
		e.auditRecord(ctx, batchID, rec, action, AuditStatusFailed, err, time.Since(start))
		return AuditStatusFailed, err
	}

	remoteID, err := e.pusher.Push(ctx, item, payload)
	if err != nil {
		var rateErr *qbclient.RateLimitError
		if errors.As(err, &rateErr) {
			// Not the record's fault: put it back and let a later pass retry.
			e.releaseAll(ctx, []records.Record{*rec}, 0)
			e.auditRecord(ctx, batchID, rec, action, AuditStatusDeferred, err, time.Since(start))
			return AuditStatusDeferred, err
		}
		if isCredentialFailure(err) {
			e.releaseAll(ctx, []records.Record{*rec}, 0)
			e.auditRecord(ctx, batchID, rec, action, AuditStatusDeferred, err, time.Since(start))
			return AuditStatusDeferred, err
		}
		e.markFailed(ctx, rec, err)
		e.auditRecord(ctx, batchID, rec, action, AuditStatusFailed, err, time.Since(start))
		return AuditStatusFailed, err
	}

	if err := e.store.MarkSynced(ctx, rec.ID, remoteID, e.pushedBy); err != nil {
		// The remote write landed but the local status did not. The record
		// stays claimable and the next pass updates by remote id, so this is
		// safe under at-least-once delivery.
		slog.Error("failed to persist synced status",
			"record_id", rec.ID,
			"remote_id", remoteID,
			"error", err,
		)
		e.auditRecord(ctx, batchID, rec, action, AuditStatusFailed, err, time.Since(start))
		return AuditStatusFailed, err
	}

	rec.RemoteID = &remoteID
	rec.Status = records.StatusSynced
	e.auditRecord(ctx, batchID, rec, action, AuditStatusSynced, nil, time.Since(start))
	return AuditStatusSynced, nil
}

func (e *Engine) markFailed(ctx context.Context, rec *records.Record, cause error) {
	if err := e.store.MarkFailed(ctx, rec.ID, cause.Error()); err != nil {
		slog.Error("failed to persist failed status", "record_id", rec.ID, "error", err)
	}
}

// releaseAll returns the claimed records from index from onward to claimable
// state.
func (e *Engine) releaseAll(ctx context.Context, claimed []records.Record, from int) {
	if from >= len(claimed) {
		return
	}
	ids := make([]int64, 0, len(claimed)-from)
	for _, rec := range claimed[from:] {
		ids = append(ids, rec.ID)
	}
	if err := e.store.Release(ctx, ids); err != nil {
		slog.Error("failed to release claimed records", "count", len(ids), "error", err)
	}
}

func (e *Engine) pause(ctx context.Context, hint time.Duration) error {
	d := hint
	if d <= 0 {
		d = e.rateLimitPause
	}
	slog.Warn("rate limited, pausing", "pause", d)

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *Engine) auditRecord(
	ctx context.Context,
	batchID uuid.UUID,
	rec *records.Record,
	action, status string,
	cause error,
	duration time.Duration,
) {
	if e.audit == nil {
		return
	}
	entry := AuditEntry{
		BatchID:  batchID,
		Kind:     rec.Kind,
		LocalID:  rec.ID,
		Action:   action,
		Status:   status,
		Duration: duration,
	}
	if cause != nil {
		entry.Error = cause.Error()
	}
	e.audit.Record(ctx, entry)
}

// isCredentialFailure reports whether the error means the credential pair is
// unusable and further pushes are pointless.
func isCredentialFailure(err error) bool {
	var refreshErr *credentials.RefreshError
	var authErr *qbclient.AuthenticationError
	return errors.As(err, &refreshErr) || errors.As(err, &authErr)
}
