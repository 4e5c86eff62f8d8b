package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/UltimateServices/Dumpsters-CRM/config"
	"github.com/UltimateServices/Dumpsters-CRM/internal/core"
	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
	"github.com/UltimateServices/Dumpsters-CRM/internal/mocks"
	"github.com/UltimateServices/Dumpsters-CRM/internal/observability/statsd"
)

// mockReaperRepo returns its count on the first call of each sweep, then 0 to
// simulate batch exhaustion.
type mockReaperRepo struct {
	requeueCalled int
	requeueCount  int64
	requeueError  error

	exhaustedCalled int
	exhaustedCount  int64

	failStalePendingJobsCalled int
	failStalePendingJobsCount  int64
	failStalePendingJobsError  error

	deleteOldJobsCalled int
	deleteOldJobsCount  int64
	deleteOldJobsStatus []model.JobStatus
}

func firstBatch(calls int, count int64) int64 {
	if calls == 1 {
		return count
	}
	return 0
}

func (m *mockReaperRepo) RequeueStaleProcessingJobs(_ context.Context, _ core.StaleJobsParams) (int64, error) {
	m.requeueCalled++
	if m.requeueError != nil {
		return 0, m.requeueError
	}
	return firstBatch(m.requeueCalled, m.requeueCount), nil
}

func (m *mockReaperRepo) FailStaleProcessingJobs(_ context.Context, _ core.StaleJobsParams) (int64, error) {
	m.exhaustedCalled++
	return firstBatch(m.exhaustedCalled, m.exhaustedCount), nil
}

func (m *mockReaperRepo) FailStalePendingJobs(_ context.Context, _ time.Duration, _ int) (int64, error) {
	m.failStalePendingJobsCalled++
	if m.failStalePendingJobsError != nil {
		return 0, m.failStalePendingJobsError
	}
	return firstBatch(m.failStalePendingJobsCalled, m.failStalePendingJobsCount), nil
}

func (m *mockReaperRepo) DeleteOldJobs(_ context.Context, params core.DeleteOldJobsParams) (int64, error) {
	m.deleteOldJobsCalled++
	m.deleteOldJobsStatus = append(m.deleteOldJobsStatus, params.Status)
	return firstBatch(m.deleteOldJobsCalled, m.deleteOldJobsCount), nil
}

func testReaperConfig() config.ReaperConfig {
	return config.ReaperConfig{
		Interval:        5 * time.Minute,
		StaleAfter:      5 * time.Minute,
		PendingMaxAge:   6 * time.Hour,
		RetentionMaxAge: 30 * 24 * time.Hour,
		BatchSize:       100,
	}
}

func TestNewReaperService(t *testing.T) {
	t.Run("creates service with valid options", func(t *testing.T) {
		svc, err := NewReaperService(ReaperServiceOptions{
			Repo:   &mockReaperRepo{},
			Config: testReaperConfig(),
			Logger: slog.Default(),
		})
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("returns error when repo is nil", func(t *testing.T) {
		_, err := NewReaperService(ReaperServiceOptions{Config: testReaperConfig()})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ReaperRepository is required")
	})
}

func TestReaperService_runCleanup(t *testing.T) {
	t.Run("runs all sweeps", func(t *testing.T) {
		repo := &mockReaperRepo{
			requeueCount:              2,
			exhaustedCount:            1,
			failStalePendingJobsCount: 5,
			deleteOldJobsCount:        10,
		}
		rec := &statsd.Recorder{}
		svc, _ := MustNewReaperService(ReaperServiceOptions{Repo: repo, Config: testReaperConfig(), Metrics: rec})

		require.NoError(t, svc.runCleanup(context.Background()))

		assert.Equal(t, 2, repo.requeueCalled)
		assert.Equal(t, 2, repo.exhaustedCalled)
		assert.Equal(t, 2, repo.failStalePendingJobsCalled)
		assert.Equal(t, 2, repo.deleteOldJobsCalled)
		for _, st := range repo.deleteOldJobsStatus {
			assert.Equal(t, model.JobStatusFailed, st, "completed jobs are never deleted")
		}

		runs := rec.Named("reaper.cleanup")
		require.Len(t, runs, 1)
		assert.Equal(t, "success", runs[0].Tags["result"])
	})

	t.Run("continues on partial errors", func(t *testing.T) {
		repo := &mockReaperRepo{
			requeueError:       errors.New("requeue error"),
			deleteOldJobsCount: 10,
		}
		svc, _ := MustNewReaperService(ReaperServiceOptions{Repo: repo, Config: testReaperConfig()})

		err := svc.runCleanup(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requeue stale processing jobs")
		assert.Equal(t, 1, repo.requeueCalled)
		assert.Equal(t, 2, repo.exhaustedCalled)
		assert.Equal(t, 2, repo.deleteOldJobsCalled)
	})

	t.Run("only cancellations collapse to context.Canceled", func(t *testing.T) {
		repo := &mockReaperRepo{
			requeueError:              context.Canceled,
			failStalePendingJobsError: context.Canceled,
		}
		svc, _ := MustNewReaperService(ReaperServiceOptions{Repo: repo, Config: testReaperConfig()})

		err := svc.runCleanup(context.Background())
		assert.Equal(t, context.Canceled, err)
	})
}

func TestReaperService_SweepParams(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockReaperRepository(ctrl)
	cfg := testReaperConfig()
	svc, _ := MustNewReaperService(ReaperServiceOptions{Repo: repo, Config: cfg})

	stale := core.StaleJobsParams{StaleAfter: cfg.StaleAfter, BatchSize: cfg.BatchSize}
	gomock.InOrder(
		repo.EXPECT().RequeueStaleProcessingJobs(gomock.Any(), stale).Return(int64(0), nil),
		repo.EXPECT().FailStaleProcessingJobs(gomock.Any(), stale).Return(int64(0), nil),
		repo.EXPECT().FailStalePendingJobs(gomock.Any(), cfg.PendingMaxAge, cfg.BatchSize).Return(int64(0), nil),
		repo.EXPECT().DeleteOldJobs(gomock.Any(), core.DeleteOldJobsParams{
			Status:    model.JobStatusFailed,
			MaxAge:    cfg.RetentionMaxAge,
			BatchSize: cfg.BatchSize,
		}).Return(int64(0), nil),
	)

	require.NoError(t, svc.runCleanup(context.Background()))
}

func TestReaperService_Run(t *testing.T) {
	t.Run("stops on context cancellation", func(t *testing.T) {
		repo := &mockReaperRepo{}
		cfg := testReaperConfig()
		cfg.Interval = 100 * time.Millisecond
		svc, _ := MustNewReaperService(ReaperServiceOptions{Repo: repo, Config: cfg})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- svc.Run(ctx)
		}()

		time.Sleep(150 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("Run did not stop after context cancellation")
		}
		assert.GreaterOrEqual(t, repo.requeueCalled, 1)
	})

	t.Run("continues running despite cleanup errors", func(t *testing.T) {
		repo := &mockReaperRepo{failStalePendingJobsError: errors.New("test error")}
		cfg := testReaperConfig()
		cfg.Interval = 50 * time.Millisecond
		svc, _ := MustNewReaperService(ReaperServiceOptions{Repo: repo, Config: cfg})

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		err := svc.Run(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.GreaterOrEqual(t, repo.failStalePendingJobsCalled, 2)
	})
}
