package syncengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eaur/qbsync/internal/credentials"
	"github.com/eaur/qbsync/internal/enrich"
	"github.com/eaur/qbsync/internal/qbclient"
	"github.com/eaur/qbsync/internal/records"
)

// stubReader resolves every lookup id to a fixed name.
type stubReader struct{}

func (stubReader) LookupDisplayNames(_ context.Context, _ enrich.Kind, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	for _, id := range ids {
		out[id] = fmt.Sprintf("name-%d", id)
	}
	return out, nil
}

// fakePusher succeeds by default and fails or rate-limits specific ids.
type fakePusher struct {
	mu       sync.Mutex
	pushed   []int64
	updates  []int64
	failWith map[int64]error
	once     map[int64]error // consumed on first push of that id
}

func newFakePusher() *fakePusher {
	return &fakePusher{
		failWith: make(map[int64]error),
		once:     make(map[int64]error),
	}
}

func (p *fakePusher) Push(_ context.Context, e *enrich.Enriched, _ map[string]interface{}) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := e.Record.ID
	p.pushed = append(p.pushed, id)
	if e.Record.HasRemoteID() {
		p.updates = append(p.updates, id)
	}

	if err, ok := p.once[id]; ok {
		delete(p.once, id)
		return "", err
	}
	if err, ok := p.failWith[id]; ok {
		return "", err
	}
	return fmt.Sprintf("R%d", id), nil
}

func (p *fakePusher) pushCount(id int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, pushed := range p.pushed {
		if pushed == id {
			n++
		}
	}
	return n
}

// captureSink collects audit entries.
type captureSink struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (s *captureSink) Record(_ context.Context, entry AuditEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

func seedStudents(n int) []records.Record {
	recs := make([]records.Record, 0, n)
	for i := 1; i <= n; i++ {
		recs = append(recs, records.Record{
			ID:        int64(i),
			Kind:      records.KindStudent,
			RegNo:     fmt.Sprintf("22000%04d", i),
			FirstName: "First",
			LastName:  "Last",
		})
	}
	return recs
}

func newTestEngine(store RecordStore, pusher RemotePusher, opts ...Option) *Engine {
	base := []Option{WithPushedBy("test"), WithRateLimitPause(time.Millisecond)}
	return New(store, enrich.NewCache(stubReader{}), pusher, append(base, opts...)...)
}

func TestRunBatchOutcomeCounts(t *testing.T) {
	t.Parallel()

	store := NewMemoryRecordStore(seedStudents(10))
	pusher := newFakePusher()
	pusher.failWith[3] = &qbclient.RemoteError{StatusCode: 400, Body: "ValidationFault"}
	pusher.failWith[7] = &qbclient.RemoteError{StatusCode: 500, Body: "InternalFault"}

	sink := &captureSink{}
	engine := newTestEngine(store, pusher, WithAuditSink(sink))

	outcome, err := engine.RunBatch(context.Background(), records.KindStudent, 10)
	require.NoError(t, err)

	assert.Equal(t, 10, outcome.Total)
	assert.Equal(t, 8, outcome.Successful)
	assert.Equal(t, 2, outcome.Failed)
	assert.Equal(t, 0, outcome.Deferred)
	assert.Equal(t, outcome.Total, outcome.Successful+outcome.Failed+outcome.Deferred)
	require.Len(t, outcome.Errors, 2)
	assert.Equal(t, int64(3), outcome.Errors[0].RecordID)
	assert.Contains(t, outcome.Errors[0].Error, "ValidationFault")

	// Status write-back per record.
	synced, _ := store.Get(1)
	assert.Equal(t, records.StatusSynced, synced.Status)
	require.NotNil(t, synced.RemoteID)
	assert.Equal(t, "R1", *synced.RemoteID)
	assert.Equal(t, "test", synced.PushedBy)

	failed, _ := store.Get(3)
	assert.Equal(t, records.StatusFailed, failed.Status)
	assert.Contains(t, failed.LastError, "ValidationFault")
	assert.Nil(t, failed.RemoteID)

	// One audit row per processed record.
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Len(t, sink.entries, 10)
}

func TestRunBatchEmptyClaim(t *testing.T) {
	t.Parallel()

	store := NewMemoryRecordStore(nil)
	engine := newTestEngine(store, newFakePusher())

	outcome, err := engine.RunBatch(context.Background(), records.KindStudent, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.Total)
}

func TestRunBatchUpdatesWhenRemoteIDPresent(t *testing.T) {
	t.Parallel()

	remoteID := "R77"
	seed := seedStudents(2)
	seed[0].RemoteID = &remoteID
	seed[0].Status = records.StatusFailed // re-run after earlier failure

	store := NewMemoryRecordStore(seed)
	pusher := newFakePusher()
	engine := newTestEngine(store, pusher)

	outcome, err := engine.RunBatch(context.Background(), records.KindStudent, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Successful)

	// Record 1 already existed remotely, so it must be updated, not created.
	assert.Contains(t, pusher.updates, int64(1))
	assert.NotContains(t, pusher.updates, int64(2))
}

func TestRunBatchDefersOnRateLimit(t *testing.T) {
	t.Parallel()

	store := NewMemoryRecordStore(seedStudents(3))
	pusher := newFakePusher()
	pusher.once[2] = &qbclient.RateLimitError{RetryAfter: time.Millisecond}
	engine := newTestEngine(store, pusher)

	outcome, err := engine.RunBatch(context.Background(), records.KindStudent, 10)
	require.NoError(t, err)

	assert.Equal(t, 2, outcome.Successful)
	assert.Equal(t, 1, outcome.Deferred)
	assert.Equal(t, 0, outcome.Failed, "a rate-limited record is never FAILED")

	// Deferred record is claimable again and syncs on the next pass.
	deferred, _ := store.Get(2)
	assert.Equal(t, records.StatusNotSynced, deferred.Status)

	outcome, err = engine.RunBatch(context.Background(), records.KindStudent, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Successful)

	recovered, _ := store.Get(2)
	assert.Equal(t, records.StatusSynced, recovered.Status)
}

func TestRunBatchAbortsOnRefreshError(t *testing.T) {
	t.Parallel()

	store := NewMemoryRecordStore(seedStudents(5))
	pusher := newFakePusher()
	pusher.failWith[2] = &credentials.RefreshError{StatusCode: 400, Body: "invalid_grant"}
	engine := newTestEngine(store, pusher)

	outcome, err := engine.RunBatch(context.Background(), records.KindStudent, 10)
	require.Error(t, err)

	var refreshErr *credentials.RefreshError
	assert.ErrorAs(t, err, &refreshErr)

	// Record 1 landed before the abort.
	assert.Equal(t, 1, outcome.Successful)
	first, _ := store.Get(1)
	assert.Equal(t, records.StatusSynced, first.Status)

	// The failing record and everything after it went back to claimable, not
	// FAILED: the credential broke, not the records.
	for id := int64(2); id <= 5; id++ {
		rec, _ := store.Get(id)
		assert.Equal(t, records.StatusNotSynced, rec.Status, "record %d", id)
	}

	// Records 3..5 were never pushed.
	assert.Equal(t, 0, pusher.pushCount(3))
}

func TestRunBatchCooperativeCancellation(t *testing.T) {
	t.Parallel()

	store := NewMemoryRecordStore(seedStudents(5))
	pusher := newFakePusher()

	ctx, cancel := context.WithCancel(context.Background())
	// Cancel while the first record is in flight; the engine must stop at the
	// next between-records check.
	cancelingPusher := pusherFunc(func(c context.Context, e *enrich.Enriched, payload map[string]interface{}) (string, error) {
		cancel()
		return pusher.Push(c, e, payload)
	})
	engine := newTestEngine(store, cancelingPusher)

	outcome, err := engine.RunBatch(ctx, records.KindStudent, 10)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, outcome.Successful)

	// Unprocessed records are released.
	for id := int64(2); id <= 5; id++ {
		rec, _ := store.Get(id)
		assert.Equal(t, records.StatusNotSynced, rec.Status, "record %d", id)
	}
}

type pusherFunc func(context.Context, *enrich.Enriched, map[string]interface{}) (string, error)

func (f pusherFunc) Push(ctx context.Context, e *enrich.Enriched, payload map[string]interface{}) (string, error) {
	return f(ctx, e, payload)
}

func TestRunAllDrainsInBatches(t *testing.T) {
	t.Parallel()

	store := NewMemoryRecordStore(seedStudents(7))
	pusher := newFakePusher()
	engine := newTestEngine(store, pusher)

	outcome, err := engine.RunAll(context.Background(), records.KindStudent, 3, 10)
	require.NoError(t, err)

	assert.Equal(t, 7, outcome.Total)
	assert.Equal(t, 7, outcome.Successful)

	counts, err := engine.Analyze(context.Background(), records.KindStudent)
	require.NoError(t, err)
	assert.Equal(t, int64(7), counts.Synced)
	assert.Equal(t, int64(0), counts.NotSynced)
}

func TestRunAllHonorsMaxBatches(t *testing.T) {
	t.Parallel()

	store := NewMemoryRecordStore(seedStudents(10))
	engine := newTestEngine(store, newFakePusher())

	outcome, err := engine.RunAll(context.Background(), records.KindStudent, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, 6, outcome.Total, "two batches of three records each")
}

func TestSyncOne(t *testing.T) {
	t.Parallel()

	store := NewMemoryRecordStore(seedStudents(3))
	engine := newTestEngine(store, newFakePusher())

	result, err := engine.SyncOne(context.Background(), records.KindStudent, 2)
	require.NoError(t, err)
	assert.Equal(t, records.StatusSynced, result.Status)
	assert.Equal(t, "R2", result.RemoteID)

	// Other records are untouched.
	other, _ := store.Get(1)
	assert.Equal(t, records.StatusNotSynced, other.Status)
}

func TestSyncOneNotFound(t *testing.T) {
	t.Parallel()

	store := NewMemoryRecordStore(nil)
	engine := newTestEngine(store, newFakePusher())

	_, err := engine.SyncOne(context.Background(), records.KindStudent, 99)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	remoteID := "R1"
	seed := seedStudents(4)
	seed[0].Status = records.StatusSynced
	seed[0].RemoteID = &remoteID
	seed[1].Status = records.StatusFailed
	seed[2].Status = records.StatusInProgress

	store := NewMemoryRecordStore(seed)
	engine := newTestEngine(store, newFakePusher())

	counts, err := engine.Analyze(context.Background(), records.KindStudent)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Synced)
	assert.Equal(t, int64(1), counts.Failed)
	assert.Equal(t, int64(1), counts.InProgress)
	assert.Equal(t, int64(1), counts.NotSynced)
	assert.Equal(t, int64(4), counts.Total)
}

func TestPreviewDoesNotClaim(t *testing.T) {
	t.Parallel()

	campusID := int64(1)
	seed := seedStudents(3)
	seed[0].CampusID = &campusID

	store := NewMemoryRecordStore(seed)
	engine := newTestEngine(store, newFakePusher())

	preview, err := engine.Preview(context.Background(), records.KindStudent, 10, 0)
	require.NoError(t, err)
	require.Len(t, preview, 3)

	// Ordered by id, enriched, and nothing claimed.
	assert.Equal(t, int64(1), preview[0].Record.ID)
	assert.Equal(t, "name-1", preview[0].Name(enrich.KindCampus))
	for id := int64(1); id <= 3; id++ {
		rec, _ := store.Get(id)
		assert.Equal(t, records.StatusNotSynced, rec.Status)
	}
}

func TestRunBatchMappingFailureMarksRecordFailed(t *testing.T) {
	t.Parallel()

	// An invoice without a customer remote id cannot be mapped.
	store := NewMemoryRecordStore([]records.Record{
		{ID: 1, Kind: records.KindInvoice, ReferenceNo: "INV-1", Amount: 100},
	})
	pusher := newFakePusher()
	engine := newTestEngine(store, pusher)

	outcome, err := engine.RunBatch(context.Background(), records.KindInvoice, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Failed)
	assert.Equal(t, 0, pusher.pushCount(1), "unmappable records never reach the remote")

	rec, _ := store.Get(1)
	assert.Equal(t, records.StatusFailed, rec.Status)
	assert.Contains(t, rec.LastError, "no customer remote id")
}

func TestIsCredentialFailure(t *testing.T) {
	t.Parallel()

	assert.True(t, isCredentialFailure(&credentials.RefreshError{StatusCode: 400}))
	assert.True(t, isCredentialFailure(&qbclient.AuthenticationError{Body: "nope"}))
	assert.True(t, isCredentialFailure(fmt.Errorf("wrapped: %w", &qbclient.AuthenticationError{})))
	assert.False(t, isCredentialFailure(errors.New("plain")))
	assert.False(t, isCredentialFailure(&qbclient.RemoteError{StatusCode: 500}))
}
