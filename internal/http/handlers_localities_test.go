package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
	apperrors "github.com/UltimateServices/Dumpsters-CRM/internal/errors"
	"github.com/UltimateServices/Dumpsters-CRM/internal/mocks"
	"github.com/UltimateServices/Dumpsters-CRM/internal/service"
	"github.com/UltimateServices/Dumpsters-CRM/internal/testutil"
)

type stubResearch struct {
	job *model.Job
	err error
	ids []string
}

func (s *stubResearch) Start(_ context.Context, localityID string) (*model.Job, error) {
	s.ids = append(s.ids, localityID)
	return s.job, s.err
}

type stubPublisher struct {
	result *model.PublishResult
	pages  []model.PublishedPage
	err    error
}

func (s *stubPublisher) Publish(context.Context, string) (*model.PublishResult, error) {
	return s.result, s.err
}

func (s *stubPublisher) ListPages(context.Context, string) ([]model.PublishedPage, error) {
	return s.pages, s.err
}

type localityFixture struct {
	handler    http.Handler
	localities *mocks.MockLocalityRepository
	jobs       *mocks.MockJobRepository
	research   *stubResearch
	publish    *stubPublisher
}

func newLocalityFixture(t *testing.T, withPublish bool) *localityFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &localityFixture{
		localities: mocks.NewMockLocalityRepository(ctrl),
		jobs:       mocks.NewMockJobRepository(ctrl),
		research:   &stubResearch{},
		publish:    &stubPublisher{},
	}
	services := RouterServices{
		Jobs:       service.MustNewJobService(service.JobServiceOptions{Repo: f.jobs}),
		Localities: f.localities,
		Research:   f.research,
	}
	if withPublish {
		services.Publish = f.publish
	}
	f.handler = NewRouter(services)
	return f
}

func (f *localityFixture) do(method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestLocalities_List(t *testing.T) {
	f := newLocalityFixture(t, true)
	loc := testutil.NewLocality().WithID("loc-1").Build()
	f.localities.EXPECT().List(gomock.Any(), 20, 40).Return([]*model.Locality{loc}, nil)

	w := f.do(http.MethodGet, "/api/localities?limit=20&offset=40")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Localities []model.Locality `json:"localities"`
	}
	decodeBody(t, w, &body)
	require.Len(t, body.Localities, 1)
	assert.Equal(t, "Austin", body.Localities[0].Name)
}

func TestLocalities_Get(t *testing.T) {
	f := newLocalityFixture(t, true)
	loc := testutil.NewLocality().WithID("loc-1").Build()
	f.localities.EXPECT().GetByID(gomock.Any(), "loc-1").Return(loc, nil)
	f.localities.EXPECT().GetByID(gomock.Any(), "nope").Return(nil, apperrors.NotFound("locality nope not found"))

	w := f.do(http.MethodGet, "/api/localities/loc-1")
	require.Equal(t, http.StatusOK, w.Code)
	var got model.Locality
	decodeBody(t, w, &got)
	assert.Equal(t, "TX", got.RegionCode)

	w = f.do(http.MethodGet, "/api/localities/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLocalities_StartResearch(t *testing.T) {
	f := newLocalityFixture(t, true)
	job := testutil.ProcessingJob("loc-1")
	job.Status = model.JobStatusPending
	f.research.job = job

	w := f.do(http.MethodPost, "/api/localities/loc-1/research")

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "/api/jobs/"+job.ID, w.Header().Get("Location"))
	assert.Equal(t, []string{"loc-1"}, f.research.ids)
	var got model.JobStatusResponse
	decodeBody(t, w, &got)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, model.JobStatusPending, got.Status)
}

func TestLocalities_StartResearch_Conflict(t *testing.T) {
	f := newLocalityFixture(t, true)
	f.research.err = apperrors.Conflict("locality already has an active job")

	w := f.do(http.MethodPost, "/api/localities/loc-1/research")

	require.Equal(t, http.StatusConflict, w.Code)
	var body errorBody
	decodeBody(t, w, &body)
	assert.Equal(t, "conflict", body.Error)
}

func TestLocalities_ActiveJob(t *testing.T) {
	f := newLocalityFixture(t, true)
	job := testutil.ProcessingJob("loc-1")
	f.jobs.EXPECT().FindProcessing(gomock.Any(), "loc-1").Return(job, nil)
	f.jobs.EXPECT().FindProcessing(gomock.Any(), "loc-2").Return(nil, apperrors.NotFound("no active job"))

	w := f.do(http.MethodGet, "/api/localities/loc-1/research")
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/api/localities/loc-2/research")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLocalities_Publish(t *testing.T) {
	f := newLocalityFixture(t, true)
	f.publish.result = &model.PublishResult{
		LocalityID: "loc-1",
		JobID:      "job-1",
		MainURL:    "https://example.com/dumpster-rental-austin-tx/",
		Pages:      []model.PublishedPage{{PageKey: model.MainPageKey, CMSID: 10}},
	}

	w := f.do(http.MethodPost, "/api/localities/loc-1/publish")

	require.Equal(t, http.StatusOK, w.Code)
	var got model.PublishResult
	decodeBody(t, w, &got)
	assert.Equal(t, "https://example.com/dumpster-rental-austin-tx/", got.MainURL)
	require.Len(t, got.Pages, 1)
}

func TestLocalities_Publish_UpstreamErrorKeepsMessage(t *testing.T) {
	f := newLocalityFixture(t, true)
	f.publish.err = apperrors.Wrap(assert.AnError, apperrors.ErrCodePublish, "publish locality loc-1")

	w := f.do(http.MethodPost, "/api/localities/loc-1/publish")

	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "publish locality loc-1")
}

func TestLocalities_Publish_Disabled(t *testing.T) {
	f := newLocalityFixture(t, false)

	w := f.do(http.MethodPost, "/api/localities/loc-1/publish")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body errorBody
	decodeBody(t, w, &body)
	assert.Equal(t, "publish_disabled", body.Error)

	w = f.do(http.MethodGet, "/api/localities/loc-1/pages")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"pages":[]}`, w.Body.String())
}

func TestLocalities_ListPages(t *testing.T) {
	f := newLocalityFixture(t, true)
	f.publish.pages = []model.PublishedPage{{PageKey: "main", Slug: "dumpster-rental-austin-tx", CMSID: 10}}

	w := f.do(http.MethodGet, "/api/localities/loc-1/pages")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Pages []model.PublishedPage `json:"pages"`
	}
	decodeBody(t, w, &body)
	require.Len(t, body.Pages, 1)
	assert.Equal(t, int64(10), body.Pages[0].CMSID)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	f := newLocalityFixture(t, true)

	w := f.do(http.MethodDelete, "/api/localities/loc-1")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
