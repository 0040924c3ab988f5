package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/eaur/qbsync/internal/credentials"
	"github.com/eaur/qbsync/internal/qbclient"
	"github.com/eaur/qbsync/internal/records"
	"github.com/eaur/qbsync/internal/syncengine"
)

const (
	// defaultPollingInterval is used when no interval is configured.
	defaultPollingInterval = 2 * time.Minute
	// pollingJitter is the maximum random offset applied to the polling
	// interval so multiple instances do not sweep the database in lockstep.
	pollingJitter = 15 * time.Second
	// maxRetriesPerKind bounds the backoff retries for one entity kind within
	// a single sweep.
	maxRetriesPerKind = 3
)

// BatchRunner is the engine surface the coordinator drives.
type BatchRunner interface {
	RunAll(ctx context.Context, kind records.EntityKind, batchSize, maxBatches int) (*syncengine.BatchOutcome, error)
}

// Coordinator manages the background sync loop.
type Coordinator interface {
	// Start begins the background sweep loop. Blocks until the context is
	// cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops the coordinator and waits for the loop to exit.
	Stop() error
}

// Config carries the coordinator's scheduling parameters.
type Config struct {
	// Kinds lists the entity kinds swept, in order.
	Kinds []records.EntityKind

	// Interval is the base sweep interval. Zero means the default.
	Interval time.Duration

	// BatchSize is the number of records claimed per batch.
	BatchSize int

	// MaxBatches bounds one RunAll invocation per kind per sweep.
	MaxBatches int
}

type defaultCoordinator struct {
	runner BatchRunner
	cfg    Config

	// Lifecycle management
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// New creates a coordinator over the given runner.
func New(runner BatchRunner, cfg Config) Coordinator {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultPollingInterval
	}
	return &defaultCoordinator{
		runner: runner,
		cfg:    cfg,
		done:   make(chan struct{}),
	}
}

// pollingInterval returns the base interval with a random jitter applied.
func (c *defaultCoordinator) pollingInterval() time.Duration {
	if c.cfg.Interval <= 2*pollingJitter {
		return c.cfg.Interval
	}
	//nolint:gosec // G404: non-cryptographic randomness is fine for jitter
	offset := time.Duration(rand.Int64N(int64(2*pollingJitter))) - pollingJitter
	return c.cfg.Interval + offset
}

// Start begins the background sweep loop.
func (c *defaultCoordinator) Start(ctx context.Context) error {
	slog.Info("starting sync coordinator",
		"kinds", len(c.cfg.Kinds),
		"base_interval", c.cfg.Interval,
	)

	coordCtx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	defer func() {
		close(c.done)
		slog.Info("sync coordinator shut down")
	}()

	ticker := time.NewTicker(c.pollingInterval())
	defer ticker.Stop()

	// Initial sweep so a restart does not wait a full interval.
	c.sweep(coordCtx)

	for {
		select {
		case <-ticker.C:
			c.sweep(coordCtx)
			// Fresh jitter each round.
			ticker.Reset(c.pollingInterval())
		case <-coordCtx.Done():
			slog.Info("sync coordinator stopping")
			return nil
		}
	}
}

// Stop gracefully stops the coordinator.
func (c *defaultCoordinator) Stop() error {
	if c.cancelFunc != nil {
		c.cancelFunc()
		<-c.done
	}
	return nil
}

// sweep runs one pass over all configured entity kinds. A failing kind never
// blocks the others.
func (c *defaultCoordinator) sweep(ctx context.Context) {
	for _, kind := range c.cfg.Kinds {
		if ctx.Err() != nil {
			return
		}
		c.sweepKind(ctx, kind)
	}
}

// sweepKind drains one entity kind, retrying transient failures with
// exponential backoff. Credential failures and cancellation are permanent for
// this sweep.
func (c *defaultCoordinator) sweepKind(ctx context.Context, kind records.EntityKind) {
	start := time.Now()

	outcome, err := backoff.Retry(ctx, func() (*syncengine.BatchOutcome, error) {
		outcome, err := c.runner.RunAll(ctx, kind, c.cfg.BatchSize, c.cfg.MaxBatches)
		if err != nil {
			if isPermanent(err) {
				return outcome, backoff.Permanent(err)
			}
			slog.Warn("sync sweep attempt failed, will retry",
				"entity_kind", string(kind),
				"error", err,
			)
			return outcome, err
		}
		return outcome, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxRetriesPerKind),
	)

	if err != nil {
		slog.Error("sync sweep failed",
			"entity_kind", string(kind),
			"duration", time.Since(start),
			"error", err,
		)
		return
	}

	if outcome.Total > 0 {
		slog.Info("sync sweep finished",
			"entity_kind", string(kind),
			"total", outcome.Total,
			"successful", outcome.Successful,
			"failed", outcome.Failed,
			"deferred", outcome.Deferred,
			"duration", time.Since(start),
		)
	}
}

// isPermanent reports whether retrying within this sweep is pointless.
func isPermanent(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var refreshErr *credentials.RefreshError
	var authErr *qbclient.AuthenticationError
	return errors.As(err, &refreshErr) || errors.As(err, &authErr)
}
