package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eaur/qbsync/internal/credentials"
	"github.com/eaur/qbsync/internal/records"
	"github.com/eaur/qbsync/internal/syncengine"
)

// fakeRunner records RunAll invocations and plays back scripted errors.
type fakeRunner struct {
	mu    sync.Mutex
	calls []records.EntityKind
	errs  []error // consumed per call, nil once exhausted
}

func (r *fakeRunner) RunAll(_ context.Context, kind records.EntityKind, _, _ int) (*syncengine.BatchOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, kind)
	var err error
	if len(r.errs) > 0 {
		err = r.errs[0]
		r.errs = r.errs[1:]
	}
	return &syncengine.BatchOutcome{Kind: kind, Total: 1, Successful: 1}, err
}

func (r *fakeRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *fakeRunner) callsSnapshot() []records.EntityKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]records.EntityKind, len(r.calls))
	copy(out, r.calls)
	return out
}

func TestCoordinatorInitialSweepCoversAllKinds(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	coord := New(runner, Config{
		Kinds:    []records.EntityKind{records.KindApplicant, records.KindStudent},
		Interval: time.Hour, // only the startup sweep fires during the test
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	go func() {
		close(started)
		_ = coord.Start(ctx)
	}()
	<-started

	require.Eventually(t, func() bool {
		return runner.callCount() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, coord.Stop())
	assert.Equal(t,
		[]records.EntityKind{records.KindApplicant, records.KindStudent},
		runner.callsSnapshot(),
	)
}

func TestCoordinatorRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		errs: []error{errors.New("connection reset"), errors.New("connection reset")},
	}
	coord := New(runner, Config{
		Kinds:    []records.EntityKind{records.KindStudent},
		Interval: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = coord.Start(ctx) }()

	// Two transient failures, then success on the third try.
	require.Eventually(t, func() bool {
		return runner.callCount() == 3
	}, 10*time.Second, 10*time.Millisecond)

	require.NoError(t, coord.Stop())
}

func TestCoordinatorDoesNotRetryCredentialFailures(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		errs: []error{&credentials.RefreshError{StatusCode: 400, Body: "invalid_grant"}},
	}
	coord := New(runner, Config{
		Kinds:    []records.EntityKind{records.KindStudent, records.KindInvoice},
		Interval: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = coord.Start(ctx) }()

	// The broken kind is abandoned without retries and the next kind still
	// runs.
	require.Eventually(t, func() bool {
		calls := runner.callsSnapshot()
		return len(calls) == 2 && calls[1] == records.KindInvoice
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, coord.Stop())
}

func TestCoordinatorStopBeforeStart(t *testing.T) {
	t.Parallel()

	coord := New(&fakeRunner{}, Config{Kinds: []records.EntityKind{records.KindStudent}})
	assert.NoError(t, coord.Stop())
}

func TestPollingIntervalJitterStaysInBounds(t *testing.T) {
	t.Parallel()

	c := &defaultCoordinator{cfg: Config{Interval: 2 * time.Minute}}
	for i := 0; i < 100; i++ {
		d := c.pollingInterval()
		assert.GreaterOrEqual(t, d, 2*time.Minute-pollingJitter)
		assert.LessOrEqual(t, d, 2*time.Minute+pollingJitter)
	}

	// Short intervals skip jitter so they cannot go nonpositive.
	short := &defaultCoordinator{cfg: Config{Interval: 10 * time.Second}}
	assert.Equal(t, 10*time.Second, short.pollingInterval())
}

func TestIsPermanent(t *testing.T) {
	t.Parallel()

	assert.True(t, isPermanent(context.Canceled))
	assert.True(t, isPermanent(&credentials.RefreshError{StatusCode: 400}))
	assert.False(t, isPermanent(errors.New("connection reset")))
}
