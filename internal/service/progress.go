package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/UltimateServices/Dumpsters-CRM/internal/core"
	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/plan"
	apperrors "github.com/UltimateServices/Dumpsters-CRM/internal/errors"
)

// ErrJobNotProcessing is returned when a progress write finds the job is no
// longer processing (reaped, failed elsewhere, or finished).
var ErrJobNotProcessing = errors.New("job is no longer processing")

// ProgressTrackerOptions groups dependencies for ProgressTracker.
type ProgressTrackerOptions struct {
	Repo   core.JobRepository
	Logger *slog.Logger
}

// ProgressTracker persists the progress value and label of each finished plan step.
type ProgressTracker struct {
	repo   core.JobRepository
	logger *slog.Logger
}

// NewProgressTracker constructs a ProgressTracker.
func NewProgressTracker(opts ProgressTrackerOptions) *ProgressTracker {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressTracker{repo: opts.Repo, logger: logger.With("component", "progress_tracker")}
}

// Advance records that step is done. The advance event is applied to job first
// and job is updated once the store accepted it. Progress never moves backwards:
// a step retried after a later one keeps the current value, and the store keeps
// the greater of the stored and the new value.
func (t *ProgressTracker) Advance(ctx context.Context, job *model.Job, step plan.Step) error {
	if job == nil {
		return apperrors.Internal("advance on nil job")
	}
	progress := max(min(max(step.Progress, 0), model.MaxProgress), job.Progress)

	next, err := model.Next(job, model.EventAdvance{Progress: progress, Step: step.Label})
	if err != nil {
		// Progress is already clamped, so only a non-processing job is refused.
		return fmt.Errorf("%w: %w", ErrJobNotProcessing, err)
	}

	ok, err := t.repo.Advance(ctx, core.AdvanceJobParams{
		JobID:    job.ID,
		Progress: progress,
		Step:     step.Label,
	})
	if err != nil {
		return apperrors.Persistence(err, "job progress")
	}
	if !ok {
		return ErrJobNotProcessing
	}
	*job = *next
	t.logger.DebugContext(ctx, "progress advanced",
		"job_id", job.ID,
		"section", step.Ref.String(),
		"progress", progress,
	)
	return nil
}
