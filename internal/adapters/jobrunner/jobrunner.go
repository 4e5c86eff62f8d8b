// Package jobrunner runs research jobs on a pool of worker goroutines.
package jobrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	domainjob "github.com/UltimateServices/Dumpsters-CRM/internal/domain/job"
	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
	"github.com/UltimateServices/Dumpsters-CRM/internal/observability/metrics"
	"github.com/UltimateServices/Dumpsters-CRM/internal/observability/statsd"
	"github.com/UltimateServices/Dumpsters-CRM/internal/service"
)

// HandlerFunc processes a reserved job. A nil return means the handler moved the
// job to a terminal state itself; an error is retried with backoff until the
// job runs out of attempts.
type HandlerFunc func(ctx context.Context, job *model.Job) error

// errJobLost cancels a handler whose heartbeat found the job no longer processing.
var errJobLost = errors.New("job lost its processing status")

const (
	defaultPollInterval   = 5 * time.Second
	defaultHeartbeat      = 30 * time.Second
	defaultRetryBaseDelay = 2 * time.Second
	defaultRetryMaxDelay  = time.Minute
	finalizeTimeout       = 10 * time.Second
)

// RunnerOptions configures the job runner adapter.
type RunnerOptions struct {
	Jobs    *service.JobService // Required
	Handler HandlerFunc         // Required
	Logger  *slog.Logger

	Concurrency  int           // number of worker goroutines; defaults to 1
	PollInterval time.Duration // reserve attempt interval without notifications; defaults to 5s

	// HeartbeatInterval is clamped by Heartbeat so a live job is never reaped.
	HeartbeatInterval time.Duration
	Heartbeat         *domainjob.HeartbeatPolicy

	RetryBaseDelay time.Duration // delay before the first retry; doubles per attempt
	RetryMaxDelay  time.Duration

	Metrics statsd.Sink
}

// Runner pulls jobs and executes them with the handler.
type Runner struct {
	jobs      *service.JobService
	handler   HandlerFunc
	logger    *slog.Logger
	workers   int
	poll      time.Duration
	heartbeat time.Duration
	baseDelay time.Duration
	maxDelay  time.Duration
	metrics   statsd.Sink
	tracer    trace.Tracer
}

// NewRunner constructs a Runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Jobs == nil {
		return nil, errors.New("job service is required")
	}
	if opts.Handler == nil {
		return nil, errors.New("handler is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := max(opts.Concurrency, 1)
	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	base := opts.RetryBaseDelay
	if base <= 0 {
		base = defaultRetryBaseDelay
	}
	maxDelay := opts.RetryMaxDelay
	if maxDelay < base {
		maxDelay = max(base, defaultRetryMaxDelay)
	}

	decision := opts.Heartbeat.Resolve(opts.HeartbeatInterval)
	if decision.Interval <= 0 {
		decision.Interval = defaultHeartbeat
	}
	if decision.Clamped() {
		logger.Warn("heartbeat interval clamped below stale threshold",
			"requested", decision.Requested,
			"interval", decision.Interval,
		)
	}

	return &Runner{
		jobs:      opts.Jobs,
		handler:   opts.Handler,
		logger:    logger.With("component", "job_runner"),
		workers:   workers,
		poll:      poll,
		heartbeat: decision.Interval,
		baseDelay: base,
		maxDelay:  maxDelay,
		metrics:   opts.Metrics,
		tracer:    otel.Tracer("github.com/UltimateServices/Dumpsters-CRM/internal/adapters/jobrunner"),
	}, nil
}

// Run starts worker goroutines and processes jobs until the context is cancelled.
// A job in flight at shutdown is requeued for another worker without using up
// an attempt.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting job runner",
		"workers", r.workers,
		"poll_interval", r.poll,
		"heartbeat_interval", r.heartbeat,
	)

	var wg sync.WaitGroup
	for i := range r.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.workerLoop(ctx, i)
		}()
	}
	wg.Wait()

	r.logger.InfoContext(ctx, "job runner stopped")
	return ctx.Err()
}

func (r *Runner) workerLoop(ctx context.Context, worker int) {
	unsub, notify := r.jobs.Subscribe()
	defer unsub()

	logger := r.logger.With("worker", worker)
	for ctx.Err() == nil {
		job, err := r.jobs.ReserveNext(ctx)
		switch {
		case err == nil:
			r.processJob(ctx, job)
			continue
		case errors.Is(err, model.ErrNoJobsAvailable):
		case ctx.Err() != nil:
			return
		default:
			// A flaky store should not stop the worker; try again next wake-up.
			logger.ErrorContext(ctx, "reserve next job failed", "error", err)
			metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
				Transition: metrics.TransitionReserve,
				Result:     metrics.ResultError,
				Err:        err,
			})
		}
		notify = r.wait(ctx, notify)
	}
}

// wait blocks until a notification, the poll interval, or shutdown. A closed
// notification channel is replaced by nil so the worker keeps polling.
func (r *Runner) wait(ctx context.Context, notify <-chan struct{}) <-chan struct{} {
	timer := time.NewTimer(r.poll)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	case _, ok := <-notify:
		if !ok {
			return nil
		}
	}
	return notify
}

func (r *Runner) processJob(ctx context.Context, job *model.Job) {
	start := time.Now()
	logger := r.logger.With("job_id", job.ID, "locality_id", job.LocalityID, "attempt", job.Attempts)

	ctx, span := r.tracer.Start(ctx, "research.job", trace.WithAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("locality.id", job.LocalityID),
		attribute.Int("job.attempt", job.Attempts),
	))
	defer span.End()

	metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
		Transition: metrics.TransitionReserve,
		Result:     metrics.ResultSuccess,
		Attempt:    job.Attempts,
	})
	logger.InfoContext(ctx, "job reserved")

	jobCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stopHeartbeat := r.startHeartbeat(jobCtx, cancel, job.ID, logger)
	defer stopHeartbeat()

	err := r.invoke(jobCtx, job)
	emit := func(transition, result string, err error) {
		metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
			Transition: transition,
			Result:     result,
			Attempt:    job.Attempts,
			Duration:   time.Since(start),
			Err:        err,
		})
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	switch {
	case err == nil:
		logger.InfoContext(ctx, "job finished", "elapsed_ms", time.Since(start).Milliseconds())
		emit(metrics.TransitionComplete, metrics.ResultSuccess, nil)

	case errors.Is(context.Cause(jobCtx), errJobLost) || errors.Is(err, service.ErrJobNotProcessing):
		logger.WarnContext(ctx, "job no longer processing; abandoning", "error", err)
		emit(metrics.TransitionComplete, metrics.ResultNoop, err)

	case ctx.Err() != nil:
		stopHeartbeat()
		r.requeue(ctx, job, true, logger)
		emit(metrics.TransitionRequeue, metrics.ResultRetry, err)

	case job.AttemptsLeft():
		delay := r.backoff(job.Attempts)
		logger.WarnContext(ctx, "job attempt failed; retrying", "error", err, "retry_in", delay)
		r.sleep(jobCtx, delay)
		stopHeartbeat()
		r.requeue(ctx, job, false, logger)
		emit(metrics.TransitionRequeue, metrics.ResultRetry, err)

	default:
		stopHeartbeat()
		fctx, fcancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
		defer fcancel()
		if _, ferr := r.jobs.Fail(fctx, job, err.Error()); ferr != nil {
			logger.ErrorContext(ctx, "fail job error", "error", ferr, "original_error", err)
		}
		logger.ErrorContext(ctx, "job failed after final attempt", "error", err)
		emit(metrics.TransitionFail, metrics.ResultError, err)
	}
}

// invoke runs the handler and turns a panic into an error.
func (r *Runner) invoke(ctx context.Context, job *model.Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.ErrorContext(ctx, "job handler panic",
				"job_id", job.ID,
				"panic", p,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("job handler panic: %v", p)
		}
	}()
	return r.handler(ctx, job)
}

// startHeartbeat refreshes the job heartbeat until the returned stop func is
// called. When a heartbeat finds the job gone it cancels the handler.
func (r *Runner) startHeartbeat(
	ctx context.Context,
	lost context.CancelCauseFunc,
	jobID string,
	logger *slog.Logger,
) func() {
	hbCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(r.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				ok, err := r.jobs.Heartbeat(hbCtx, jobID)
				switch {
				case err != nil && hbCtx.Err() == nil:
					logger.WarnContext(hbCtx, "heartbeat failed", "error", err)
				case err == nil && !ok:
					lost(errJobLost)
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

// requeue hands the job back to the queue. A shutdown refunds the attempt the
// interrupted run consumed; a failed attempt keeps it.
func (r *Runner) requeue(ctx context.Context, job *model.Job, shutdown bool, logger *slog.Logger) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	if _, err := r.jobs.Requeue(rctx, job, shutdown); err != nil {
		logger.ErrorContext(ctx, "requeue job error", "error", err)
	}
}

// backoff returns base * 2^(attempt-1), capped at the max delay.
func (r *Runner) backoff(attempt int) time.Duration {
	delay := r.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= r.maxDelay {
			return r.maxDelay
		}
	}
	return min(delay, r.maxDelay)
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
