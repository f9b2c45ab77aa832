// Package schedule runs background jobs on UTC cron expressions.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var standardParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// Parse validates a five-field or descriptor ("@every 5m") expression.
// Timezone prefixes are rejected; schedules always run in UTC.
func Parse(expr string) (cron.Schedule, error) {
	clean := strings.TrimSpace(expr)
	if clean == "" {
		return nil, fmt.Errorf("cron expression is required")
	}

	upper := strings.ToUpper(clean)
	if strings.Contains(upper, "CRON_TZ=") || strings.Contains(upper, "TZ=") {
		return nil, fmt.Errorf("cron expression must be UTC-only (timezone prefixes are not allowed)")
	}

	schedule, err := standardParser.Parse(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule, nil
}

// Next returns the first activation of expr strictly after now.
func Next(expr string, now time.Time) (time.Time, error) {
	schedule, err := Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(now.UTC()), nil
}

// Job is one unit of scheduled work. The context is canceled on Stop.
type Job func(ctx context.Context) error

// Runner executes a job on a cron schedule.
type Runner struct {
	name   string
	expr   string
	job    Job
	logger *slog.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

// NewRunner validates expr and returns a stopped runner.
func NewRunner(name, expr string, job Job, logger *slog.Logger) (*Runner, error) {
	if job == nil {
		return nil, errors.New("schedule: job is nil")
	}
	if _, err := Parse(expr); err != nil {
		return nil, fmt.Errorf("schedule %s: %w", name, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{name: name, expr: strings.TrimSpace(expr), job: job, logger: logger}, nil
}

// Start begins scheduled execution. Starting a running runner is a no-op.
func (r *Runner) Start() error {
	if r == nil {
		return errors.New("schedule: runner is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return nil
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	c := cron.New(
		cron.WithParser(standardParser),
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(r.expr, func() { r.RunOnce(jobCtx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule %s: %w", r.name, err)
	}
	next, err := Next(r.expr, time.Now())
	if err != nil {
		cancel()
		return fmt.Errorf("schedule %s: %w", r.name, err)
	}
	c.Start()
	r.cron = c
	r.cancel = cancel
	r.logger.Info("scheduled job started", "job", r.name, "schedule", r.expr, "next_run", next.Format(time.RFC3339))
	return nil
}

// RunOnce executes the job immediately and logs its failure.
func (r *Runner) RunOnce(ctx context.Context) {
	start := time.Now()
	if err := r.job(ctx); err != nil {
		r.logger.Warn("scheduled job failed", "job", r.name, "error", err)
		return
	}
	r.logger.Debug("scheduled job finished", "job", r.name, "duration_ms", time.Since(start).Milliseconds())
}

// Stop halts scheduling and waits for a running job, bounded by ctx.
func (r *Runner) Stop(ctx context.Context) error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	c := r.cron
	cancel := r.cancel
	r.cron = nil
	r.cancel = nil
	r.mu.Unlock()

	if c == nil {
		return nil
	}
	cancel()
	done := c.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
