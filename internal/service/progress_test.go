package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/UltimateServices/Dumpsters-CRM/internal/core"
	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/plan"
	apperrors "github.com/UltimateServices/Dumpsters-CRM/internal/errors"
	"github.com/UltimateServices/Dumpsters-CRM/internal/mocks"
)

func processing(progress int) *model.Job {
	return &model.Job{ID: "job-1", Status: model.JobStatusProcessing, Progress: progress, Attempts: 1}
}

func TestProgressTracker_Advance(t *testing.T) {
	step := plan.MainSteps()[1]

	t.Run("writes progress and label", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockJobRepository(ctrl)
		repo.EXPECT().Advance(gomock.Any(), core.AdvanceJobParams{
			JobID:    "job-1",
			Progress: 15,
			Step:     step.Label,
		}).Return(true, nil)

		job := processing(5)
		tracker := NewProgressTracker(ProgressTrackerOptions{Repo: repo})
		require.NoError(t, tracker.Advance(context.Background(), job, step))
		assert.Equal(t, 15, job.Progress)
		assert.Equal(t, step.Label, job.CurrentStep)
	})

	t.Run("clamps out of range values", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockJobRepository(ctrl)
		repo.EXPECT().Advance(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, p core.AdvanceJobParams) (bool, error) {
				assert.Equal(t, model.MaxProgress, p.Progress)
				return true, nil
			})

		tracker := NewProgressTracker(ProgressTrackerOptions{Repo: repo})
		require.NoError(t, tracker.Advance(context.Background(), processing(0), plan.Step{Progress: 140}))
	})

	t.Run("earlier step never lowers progress", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockJobRepository(ctrl)
		repo.EXPECT().Advance(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, p core.AdvanceJobParams) (bool, error) {
				assert.Equal(t, 60, p.Progress)
				return true, nil
			})

		job := processing(60)
		tracker := NewProgressTracker(ProgressTrackerOptions{Repo: repo})
		require.NoError(t, tracker.Advance(context.Background(), job, step))
		assert.Equal(t, 60, job.Progress)
	})

	t.Run("terminal job is refused before the store", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockJobRepository(ctrl)

		job := processing(40)
		job.Status = model.JobStatusFailed
		tracker := NewProgressTracker(ProgressTrackerOptions{Repo: repo})
		err := tracker.Advance(context.Background(), job, step)
		require.ErrorIs(t, err, ErrJobNotProcessing)
		assert.True(t, apperrors.IsConflict(err))
		assert.Equal(t, 40, job.Progress)
	})

	t.Run("job no longer processing in the store", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockJobRepository(ctrl)
		repo.EXPECT().Advance(gomock.Any(), gomock.Any()).Return(false, nil)

		job := processing(5)
		tracker := NewProgressTracker(ProgressTrackerOptions{Repo: repo})
		err := tracker.Advance(context.Background(), job, step)
		require.ErrorIs(t, err, ErrJobNotProcessing)
		assert.Equal(t, 5, job.Progress, "job is updated only after the store accepts")
	})

	t.Run("store error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockJobRepository(ctrl)
		repo.EXPECT().Advance(gomock.Any(), gomock.Any()).Return(false, errors.New("boom"))

		tracker := NewProgressTracker(ProgressTrackerOptions{Repo: repo})
		err := tracker.Advance(context.Background(), processing(5), step)
		require.Error(t, err)
		assert.True(t, apperrors.IsPersistence(err))
	})
}
