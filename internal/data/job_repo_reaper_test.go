package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UltimateServices/Dumpsters-CRM/internal/core"
	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
	"github.com/UltimateServices/Dumpsters-CRM/internal/testutil"
)

func TestJobRepo_StaleProcessingJobs(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo, tp := newTestJobRepo(db)
		ctx := context.Background()

		retryable := insertLocality(t, db, "Mesa")
		exhausted := insertLocality(t, db, "Tempe")
		fresh := insertLocality(t, db, "Chandler")

		_, err := repo.Create(ctx, testutil.NewJobRequest(retryable.ID).Build())
		require.NoError(t, err)
		retryJob := reserve(t, repo)

		tp.AddTime(time.Second)
		_, err = repo.Create(ctx, testutil.NewJobRequest(exhausted.ID).WithMaxAttempts(1).Build())
		require.NoError(t, err)
		exhaustedJob := reserve(t, repo)

		tp.AddTime(10 * time.Minute)
		_, err = repo.Create(ctx, testutil.NewJobRequest(fresh.ID).Build())
		require.NoError(t, err)
		freshJob := reserve(t, repo)

		params := core.StaleJobsParams{StaleAfter: 5 * time.Minute, BatchSize: 100}

		requeued, err := repo.RequeueStaleProcessingJobs(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, int64(1), requeued)

		failed, err := repo.FailStaleProcessingJobs(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, int64(1), failed)

		got, err := repo.GetByID(ctx, retryJob.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, got.Status)
		assert.Nil(t, got.HeartbeatAt)

		got, err = repo.GetByID(ctx, exhaustedJob.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, got.Status)
		require.NotNil(t, got.ErrorMessage)
		assert.Contains(t, *got.ErrorMessage, "no attempts remain")

		got, err = repo.GetByID(ctx, freshJob.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusProcessing, got.Status, "a live heartbeat is left alone")
	})
}

func TestJobRepo_StaleParamsValidation(t *testing.T) {
	repo := NewJobRepo(nil, RepoConfig{})
	ctx := context.Background()

	_, err := repo.RequeueStaleProcessingJobs(ctx, core.StaleJobsParams{BatchSize: 10})
	require.Error(t, err)
	_, err = repo.FailStaleProcessingJobs(ctx, core.StaleJobsParams{StaleAfter: time.Minute})
	require.Error(t, err)
	_, err = repo.FailStalePendingJobs(ctx, 0, 10)
	require.Error(t, err)
	_, err = repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{Status: model.JobStatusCompleted, MaxAge: time.Hour, BatchSize: 10})
	require.Error(t, err, "completed jobs feed publishing and are never reaped")
	_, err = repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{Status: "bogus", MaxAge: time.Hour, BatchSize: 10})
	require.Error(t, err)
}

func TestJobRepo_FailStalePendingJobs(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo, tp := newTestJobRepo(db)
		ctx := context.Background()

		oldJob, err := repo.Create(ctx, testutil.NewJobRequest(insertLocality(t, db, "Ogden").ID).Build())
		require.NoError(t, err)

		tp.AddTime(2 * time.Hour)
		recentJob, err := repo.Create(ctx, testutil.NewJobRequest(insertLocality(t, db, "Logan").ID).Build())
		require.NoError(t, err)

		count, err := repo.FailStalePendingJobs(ctx, time.Hour, 1000)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		got, err := repo.GetByID(ctx, oldJob.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, got.Status)
		require.NotNil(t, got.ErrorMessage)
		assert.Contains(t, *got.ErrorMessage, "timed out in pending status")
		assert.NotNil(t, got.CompletedAt)

		got, err = repo.GetByID(ctx, recentJob.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, got.Status)
	})
}

func TestJobRepo_DeleteOldJobs(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo, tp := newTestJobRepo(db)
		ctx := context.Background()

		oldFailed, err := repo.Create(ctx, testutil.NewJobRequest(insertLocality(t, db, "Nampa").ID).Build())
		require.NoError(t, err)
		_, err = repo.Fail(ctx, oldFailed.ID, "boom")
		require.NoError(t, err)

		tp.AddTime(48 * time.Hour)
		recentFailed, err := repo.Create(ctx, testutil.NewJobRequest(insertLocality(t, db, "Meridian").ID).Build())
		require.NoError(t, err)
		_, err = repo.Fail(ctx, recentFailed.ID, "boom")
		require.NoError(t, err)

		deleted, err := repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
			Status:    model.JobStatusFailed,
			MaxAge:    24 * time.Hour,
			BatchSize: 100,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		_, err = repo.GetByID(ctx, oldFailed.ID)
		require.Error(t, err)
		_, err = repo.GetByID(ctx, recentFailed.ID)
		require.NoError(t, err)
	})
}
