package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/petal-labs/opensearch-mcp/schedule"
	"github.com/petal-labs/opensearch-mcp/tool"
)

const defaultQueueSize = 256

// Recorder is a tool.Observer that writes observations to a Store from a
// background goroutine. When the queue is full, observations are dropped.
type Recorder struct {
	store  *Store
	logger *slog.Logger
	now    func() time.Time

	queue chan Record
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewRecorder starts a recorder writing to store.
func NewRecorder(store *Store, logger *slog.Logger) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("history: recorder store is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		store:  store,
		logger: logger,
		now:    time.Now,
		queue:  make(chan Record, defaultQueueSize),
		done:   make(chan struct{}),
	}
	go r.loop()
	return r, nil
}

// ObserveInvocation enqueues one record without blocking.
func (r *Recorder) ObserveInvocation(observation tool.InvocationObservation) {
	if r == nil {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- RecordFromObservation(observation, r.now()):
	default:
		r.logger.Warn("history queue full; dropping invocation record",
			"tool", observation.ToolName, "invocation_id", observation.InvocationID)
	}
}

func (r *Recorder) loop() {
	defer close(r.done)
	for rec := range r.queue {
		if err := r.store.Insert(context.Background(), rec); err != nil {
			r.logger.Warn("recording invocation failed", "tool", rec.Tool, "invocation_id", rec.ID, "error", err)
		}
	}
}

// Close stops accepting records and waits for queued ones to be written,
// bounded by ctx.
func (r *Recorder) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ tool.Observer = (*Recorder)(nil)

// PruneJob removes records older than retention.
func PruneJob(store *Store, retention time.Duration, logger *slog.Logger) schedule.Job {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context) error {
		removed, err := store.Prune(ctx, time.Now().Add(-retention))
		if err != nil {
			return err
		}
		if removed > 0 {
			logger.Info("pruned invocation history", "removed", removed, "retention", retention.String())
		}
		return nil
	}
}

// NewPruner returns a stopped runner that prunes the store on expr.
func NewPruner(store *Store, retention time.Duration, expr string, logger *slog.Logger) (*schedule.Runner, error) {
	if store == nil {
		return nil, errors.New("history: pruner store is nil")
	}
	if retention <= 0 {
		return nil, fmt.Errorf("history: retention must be positive, got %s", retention)
	}
	return schedule.NewRunner("history-prune", expr, PruneJob(store, retention, logger), logger)
}
