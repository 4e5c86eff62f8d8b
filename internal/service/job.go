package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/UltimateServices/Dumpsters-CRM/internal/core"
	domainjob "github.com/UltimateServices/Dumpsters-CRM/internal/domain/job"
	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
	apperrors "github.com/UltimateServices/Dumpsters-CRM/internal/errors"
)

// JMESPathEvaluator abstracts JMESPath operations for testability.
type JMESPathEvaluator interface {
	Validate(expr string) error
	Evaluate(expr string, data any) (any, error)
}

// jmespathLibEvaluator implements JMESPathEvaluator using go-jmespath.
type jmespathLibEvaluator struct{}

func (jmespathLibEvaluator) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := jmespath.Compile(expr)
	return err
}

func (jmespathLibEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo      core.JobRepository // Required: job repository
	Logger    *slog.Logger       // Optional: structured logger
	Notifier  domainjob.Notifier // Optional: local fan-out of job-ready signals
	Evaluator JMESPathEvaluator  // Optional: results query evaluator
}

// JobService provides the job operations used by the HTTP API and the worker.
//
// This service manages:
// - Status polling and results projection for callers
// - Reservation, heartbeats and requeues for the worker
// - Subscriptions to job availability signals.
type JobService struct {
	repo      core.JobRepository
	notifier  domainjob.Notifier
	evaluator JMESPathEvaluator
	logger    *slog.Logger
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}

	evaluator := opts.Evaluator
	if evaluator == nil {
		evaluator = jmespathLibEvaluator{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &JobService{
		repo:      opts.Repo,
		notifier:  opts.Notifier,
		evaluator: evaluator,
		logger:    logger.With("component", "job_service"),
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// GetByID returns a job by its ID.
func (s *JobService) GetByID(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job by id %s: %w", id, err)
	}
	return job, nil
}

// GetStatus returns the polling view of a job.
func (s *JobService) GetStatus(ctx context.Context, id string) (*model.JobStatusResponse, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view := job.StatusView()
	return &view, nil
}

// QueryResults returns the job's results payload, projected through a JMESPath
// expression when expr is non-empty.
func (s *JobService) QueryResults(ctx context.Context, id, expr string) (any, error) {
	expr = strings.TrimSpace(expr)
	if err := s.evaluator.Validate(expr); err != nil {
		return nil, apperrors.ValidationField("query", fmt.Sprintf("invalid query: %v", err))
	}

	job, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// JMESPath walks generic maps and slices, not structs.
	raw, err := json.Marshal(job.Results)
	if err != nil {
		return nil, fmt.Errorf("encode results: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	if expr == "" {
		return doc, nil
	}

	out, err := s.evaluator.Evaluate(expr, doc)
	if err != nil {
		return nil, apperrors.ValidationField("query", fmt.Sprintf("evaluate query: %v", err))
	}
	return out, nil
}

// FindActive returns the locality's pending or processing job.
func (s *JobService) FindActive(ctx context.Context, localityID string) (*model.Job, error) {
	job, err := s.repo.FindProcessing(ctx, localityID)
	if err != nil {
		return nil, fmt.Errorf("find active job for locality %s: %w", localityID, err)
	}
	return job, nil
}

// paginationParams holds normalized pagination parameters.
type paginationParams struct {
	Limit  int
	Offset int
}

// normalizePagination clamps pagination parameters to safe defaults.
// Default limit: 50, max limit: 1000, min offset: 0.
func normalizePagination(limit, offset int) paginationParams {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	return paginationParams{Limit: limit, Offset: offset}
}

// List returns jobs newest first. Pagination defaults are normalized here to avoid drift across layers.
func (s *JobService) List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error) {
	p := normalizePagination(opts.Limit, opts.Offset)
	opts.Limit = p.Limit
	opts.Offset = p.Offset

	jobs, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Stats returns counts of jobs in each state.
func (s *JobService) Stats(ctx context.Context) (*model.JobStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("get job stats: %w", err)
	}
	return stats, nil
}

// ReserveNext moves the oldest pending job to processing. It returns
// model.ErrNoJobsAvailable unwrapped so callers can compare directly.
func (s *JobService) ReserveNext(ctx context.Context) (*model.Job, error) {
	job, err := s.repo.ReserveNext(ctx)
	if errors.Is(err, model.ErrNoJobsAvailable) {
		return nil, model.ErrNoJobsAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("reserve next job: %w", err)
	}
	s.logger.DebugContext(ctx, "job reserved",
		"job_id", job.ID,
		"locality_id", job.LocalityID,
		"attempt", job.Attempts,
	)
	return job, nil
}

// Heartbeat refreshes the job's heartbeat. It reports false once the job is no
// longer processing (reaped or finished elsewhere).
func (s *JobService) Heartbeat(ctx context.Context, id string) (bool, error) {
	updated, err := s.repo.Heartbeat(ctx, id)
	if err != nil {
		return false, fmt.Errorf("heartbeat job %s: %w", id, err)
	}
	return updated, nil
}

// Requeue returns a processing job to pending for another attempt. With
// refundAttempt the interrupted run does not count against max attempts. job is
// updated only when the store accepted the change.
func (s *JobService) Requeue(ctx context.Context, job *model.Job, refundAttempt bool) (bool, error) {
	next, err := model.Next(job, model.EventRequeue{RefundAttempt: refundAttempt})
	if err != nil {
		return false, err
	}
	requeued, err := s.repo.Requeue(ctx, core.RequeueJobParams{JobID: job.ID, RefundAttempt: refundAttempt})
	if err != nil {
		return false, fmt.Errorf("requeue job %s: %w", job.ID, err)
	}
	if requeued {
		*job = *next
		s.logger.InfoContext(ctx, "job requeued", "job_id", job.ID, "refunded", refundAttempt)
	}
	return requeued, nil
}

// Fail marks a job as failed with the given error message.
func (s *JobService) Fail(ctx context.Context, job *model.Job, errMsg string) (bool, error) {
	if errMsg == "" {
		return false, errors.New("error message required")
	}
	next, err := model.Next(job, model.EventFail{Message: errMsg})
	if err != nil {
		return false, err
	}
	failed, err := s.repo.Fail(ctx, job.ID, errMsg)
	if err != nil {
		return false, fmt.Errorf("fail job %s: %w", job.ID, err)
	}
	if failed {
		*job = *next
		s.logger.InfoContext(ctx, "job failed", "job_id", job.ID, "error", errMsg)
	}
	return failed, nil
}

// Subscribe creates a subscription for job-ready signals. Without a notifier the
// returned channel never fires and callers rely on polling.
func (s *JobService) Subscribe() (func(), <-chan struct{}) {
	if s.notifier == nil {
		return func() {}, make(chan struct{})
	}
	return s.notifier.Subscribe()
}

// StopAllListeners stops the notifier's listen loop.
// This should be called during graceful shutdown to clean up goroutines.
func (s *JobService) StopAllListeners() {
	s.logger.Info("stopping job listeners")
	if s.notifier != nil {
		s.notifier.StopAll()
	}
}
