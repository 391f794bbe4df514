package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/quickkart/quickkart-backend/pkg/logger"
	"github.com/quickkart/quickkart-backend/pkg/metrics"
)

// ErrUnknownJob is returned when Trigger names a job that was never registered.
var ErrUnknownJob = errors.New("unknown job")

// ErrSkipped reports that another process held the job lock.
var ErrSkipped = errors.New("job already running")

// RunnerParams configure the job runner.
type RunnerParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Locks    LockFactory
	Metrics  *metrics.JobMetrics
	Timeout  time.Duration
}

// Runner executes registered jobs on demand. It never schedules anything itself.
type Runner struct {
	logg     *logger.Logger
	registry *Registry
	locks    LockFactory
	metrics  *metrics.JobMetrics
	timeout  time.Duration
}

// NewRunner builds a job runner.
func NewRunner(params RunnerParams) (*Runner, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock factory required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	return &Runner{
		logg:     params.Logger,
		registry: registry,
		locks:    params.Locks,
		metrics:  params.Metrics,
		timeout:  params.Timeout,
	}, nil
}

// Names lists the jobs the runner can trigger.
func (r *Runner) Names() []string {
	return r.registry.Names()
}

// Trigger runs the named job once while holding its lock.
func (r *Runner) Trigger(ctx context.Context, name string) error {
	job, ok := r.registry.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	jobCtx := r.logg.WithFields(ctx, map[string]any{"job": name, "event": "jobs.run"})
	lock, err := r.locks(name)
	if err != nil {
		return fmt.Errorf("build lock: %w", err)
	}
	locked, err := lock.Acquire(jobCtx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		r.logg.Info(jobCtx, "another instance is running this job; skipping")
		r.metrics.IncSkipped(name)
		return ErrSkipped
	}
	defer func() {
		if relErr := lock.Release(context.WithoutCancel(jobCtx)); relErr != nil {
			r.logg.Error(jobCtx, "failed to release job lock", relErr)
		}
	}()

	return r.runJob(jobCtx, job)
}

// TriggerAll runs every registered job in registration order and joins their errors. Skipped
// jobs are not failures.
func (r *Runner) TriggerAll(ctx context.Context) error {
	var errs error
	for _, job := range r.registry.Jobs() {
		if err := r.Trigger(ctx, job.Name()); err != nil && !errors.Is(err, ErrSkipped) {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (r *Runner) runJob(ctx context.Context, job Job) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	r.logg.Info(ctx, "job start")
	start := time.Now()
	err := job.Run(ctx)
	duration := time.Since(start)
	r.metrics.ObserveDuration(job.Name(), duration)
	ctx = r.logg.WithField(ctx, "duration_ms", duration.Milliseconds())
	if err != nil {
		r.logg.Error(ctx, "job failed", err)
		r.metrics.IncFailure(job.Name())
		return fmt.Errorf("%s: %w", job.Name(), err)
	}
	r.logg.Info(ctx, "job completed")
	r.metrics.IncSuccess(job.Name())
	return nil
}
