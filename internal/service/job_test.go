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
	apperrors "github.com/UltimateServices/Dumpsters-CRM/internal/errors"
	"github.com/UltimateServices/Dumpsters-CRM/internal/mocks"
)

type stubJobNotifier struct {
	subscribeCalls int
	stopCalled     bool
}

func (s *stubJobNotifier) Subscribe() (func(), <-chan struct{}) {
	s.subscribeCalls++
	ch := make(chan struct{})
	return func() { close(ch) }, ch
}

func (s *stubJobNotifier) StopAll() {
	s.stopCalled = true
}

func newTestJobService(t *testing.T, repo *mocks.MockJobRepository) (*JobService, *stubJobNotifier) {
	t.Helper()
	notifier := &stubJobNotifier{}
	svc := MustNewJobService(JobServiceOptions{
		Repo:     repo,
		Notifier: notifier,
	})
	return svc, notifier
}

func resultsFixture() model.Results {
	var r model.Results
	r.SetSection(model.SectionRef{PageKey: model.MainPageKey, SectionKey: model.SectionHeroServices},
		model.Section{Content: "Hero copy", WordCount: 2})
	r.SetSection(model.SectionRef{PageKey: model.MainPageKey, SectionKey: model.SectionFAQsPart1},
		model.Section{FAQs: []model.FAQ{{Question: "How much?", Answer: "$295+"}}})
	r.Neighborhoods = []string{"Hyde Park", "Zilker"}
	return r
}

func TestNewJobService(t *testing.T) {
	t.Run("requires repo", func(t *testing.T) {
		svc, err := NewJobService(JobServiceOptions{})
		require.Error(t, err)
		assert.Nil(t, svc)
	})

	t.Run("must panics without repo", func(t *testing.T) {
		assert.Panics(t, func() { MustNewJobService(JobServiceOptions{}) })
	})
}

func TestJobService_GetStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	svc, _ := newTestJobService(t, repo)

	msg := "generate main.hero_services: no_json"
	repo.EXPECT().GetByID(gomock.Any(), "job-1").Return(&model.Job{
		ID:           "job-1",
		LocalityID:   "loc-1",
		Status:       model.JobStatusFailed,
		Progress:     5,
		CurrentStep:  "Writing hero and services (main page)",
		ErrorMessage: &msg,
		Results:      resultsFixture(),
	}, nil)

	view, err := svc.GetStatus(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, view.Status)
	assert.Equal(t, 5, view.Progress)
	require.NotNil(t, view.ErrorMessage)
	assert.Equal(t, msg, *view.ErrorMessage)
}

func TestJobService_GetStatus_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	svc, _ := newTestJobService(t, repo)

	repo.EXPECT().GetByID(gomock.Any(), "missing").Return(nil, apperrors.NotFound("job not found"))

	_, err := svc.GetStatus(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestJobService_QueryResults(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	svc, _ := newTestJobService(t, repo)

	job := &model.Job{ID: "job-1", Results: resultsFixture()}

	t.Run("no query returns the whole payload", func(t *testing.T) {
		repo.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)
		out, err := svc.QueryResults(context.Background(), "job-1", "")
		require.NoError(t, err)
		doc, ok := out.(map[string]any)
		require.True(t, ok)
		assert.Contains(t, doc, "sections")
	})

	t.Run("projection", func(t *testing.T) {
		repo.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)
		out, err := svc.QueryResults(context.Background(), "job-1", "neighborhoods[0]")
		require.NoError(t, err)
		assert.Equal(t, "Hyde Park", out)
	})

	t.Run("nested section field", func(t *testing.T) {
		repo.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)
		out, err := svc.QueryResults(context.Background(), "job-1", "sections.main.faqs_part1.faqs[].question")
		require.NoError(t, err)
		assert.Equal(t, []any{"How much?"}, out)
	})

	t.Run("invalid query is rejected before loading", func(t *testing.T) {
		_, err := svc.QueryResults(context.Background(), "job-1", "sections.[")
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
		assert.Equal(t, "query", apperrors.GetField(err))
	})
}

func TestJobService_ReserveNext(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	svc, _ := newTestJobService(t, repo)

	t.Run("reserved", func(t *testing.T) {
		expected := &model.Job{ID: "job-1", Status: model.JobStatusProcessing, Attempts: 1}
		repo.EXPECT().ReserveNext(gomock.Any()).Return(expected, nil)
		job, err := svc.ReserveNext(context.Background())
		require.NoError(t, err)
		assert.Equal(t, expected, job)
	})

	t.Run("empty queue keeps the sentinel", func(t *testing.T) {
		repo.EXPECT().ReserveNext(gomock.Any()).Return(nil, model.ErrNoJobsAvailable)
		_, err := svc.ReserveNext(context.Background())
		assert.Equal(t, model.ErrNoJobsAvailable, err)
	})

	t.Run("store error is wrapped", func(t *testing.T) {
		repo.EXPECT().ReserveNext(gomock.Any()).Return(nil, errors.New("conn reset"))
		_, err := svc.ReserveNext(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reserve next job")
	})
}

func TestJobService_Fail(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	svc, _ := newTestJobService(t, repo)

	t.Run("success", func(t *testing.T) {
		job := &model.Job{ID: "job-123", Status: model.JobStatusProcessing, Progress: 40}
		repo.EXPECT().Fail(gomock.Any(), "job-123", "test error").Return(true, nil)

		failed, err := svc.Fail(context.Background(), job, "test error")
		require.NoError(t, err)
		assert.True(t, failed)
		assert.Equal(t, model.JobStatusFailed, job.Status)
		assert.Equal(t, 40, job.Progress)
		require.NotNil(t, job.ErrorMessage)
		assert.Equal(t, "test error", *job.ErrorMessage)
	})

	t.Run("empty error message", func(t *testing.T) {
		job := &model.Job{ID: "job-123", Status: model.JobStatusProcessing}
		failed, err := svc.Fail(context.Background(), job, "")
		require.Error(t, err)
		assert.False(t, failed)
		assert.Contains(t, err.Error(), "error message required")
	})

	t.Run("terminal job is rejected before the store", func(t *testing.T) {
		job := &model.Job{ID: "job-9", Status: model.JobStatusCompleted}
		failed, err := svc.Fail(context.Background(), job, "late")
		assert.False(t, failed)
		assert.True(t, apperrors.IsConflict(err))
		assert.Equal(t, model.JobStatusCompleted, job.Status)
	})

	t.Run("store refusal leaves the job untouched", func(t *testing.T) {
		job := &model.Job{ID: "job-4", Status: model.JobStatusProcessing}
		repo.EXPECT().Fail(gomock.Any(), "job-4", "boom").Return(false, nil)
		failed, err := svc.Fail(context.Background(), job, "boom")
		require.NoError(t, err)
		assert.False(t, failed)
		assert.Equal(t, model.JobStatusProcessing, job.Status)
	})
}

func TestJobService_Heartbeat(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	svc, _ := newTestJobService(t, repo)

	repo.EXPECT().Heartbeat(gomock.Any(), "job-1").Return(false, nil)
	ok, err := svc.Heartbeat(context.Background(), "job-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJobService_Requeue(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	svc, _ := newTestJobService(t, repo)

	t.Run("retry keeps the attempt", func(t *testing.T) {
		job := &model.Job{ID: "job-1", Status: model.JobStatusProcessing, Attempts: 2}
		repo.EXPECT().Requeue(gomock.Any(), core.RequeueJobParams{JobID: "job-1"}).Return(true, nil)

		ok, err := svc.Requeue(context.Background(), job, false)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, model.JobStatusPending, job.Status)
		assert.Equal(t, 2, job.Attempts)
	})

	t.Run("shutdown refunds the attempt", func(t *testing.T) {
		job := &model.Job{ID: "job-2", Status: model.JobStatusProcessing, Attempts: 1}
		repo.EXPECT().Requeue(gomock.Any(), core.RequeueJobParams{JobID: "job-2", RefundAttempt: true}).Return(true, nil)

		ok, err := svc.Requeue(context.Background(), job, true)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Zero(t, job.Attempts)
	})

	t.Run("pending job cannot be requeued", func(t *testing.T) {
		job := &model.Job{ID: "job-3", Status: model.JobStatusPending}
		ok, err := svc.Requeue(context.Background(), job, false)
		assert.False(t, ok)
		assert.True(t, apperrors.IsConflict(err))
	})
}

func TestJobService_List(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	svc, _ := newTestJobService(t, repo)

	repo.EXPECT().List(gomock.Any(), model.JobListOptions{LocalityID: "loc-1", Limit: 1000, Offset: 0}).
		Return([]*model.Job{{ID: "job-1"}}, nil)

	jobs, err := svc.List(context.Background(), model.JobListOptions{LocalityID: "loc-1", Limit: 5000, Offset: -3})
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestJobService_Stats(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	svc, _ := newTestJobService(t, repo)

	repo.EXPECT().Stats(gomock.Any()).Return(&model.JobStats{Pending: 2, Processing: 1}, nil)
	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Pending)
}

func TestJobService_Subscribe(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)

	t.Run("delegates to notifier", func(t *testing.T) {
		svc, notifier := newTestJobService(t, repo)
		unsub, ch := svc.Subscribe()
		assert.NotNil(t, ch)
		unsub()
		assert.Equal(t, 1, notifier.subscribeCalls)

		svc.StopAllListeners()
		assert.True(t, notifier.stopCalled)
	})

	t.Run("without notifier the channel stays quiet", func(t *testing.T) {
		svc := MustNewJobService(JobServiceOptions{Repo: repo})
		unsub, ch := svc.Subscribe()
		defer unsub()
		select {
		case <-ch:
			t.Fatal("unexpected signal")
		default:
		}
		svc.StopAllListeners()
	})
}
