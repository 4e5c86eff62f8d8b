package httpx

import (
	"context"
	"net/http"

	"github.com/UltimateServices/Dumpsters-CRM/internal/core"
	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
	"github.com/UltimateServices/Dumpsters-CRM/internal/service"
)

const (
	defaultLocalityListLimit = 50
	maxLocalityListLimit     = 500
)

// ResearchStarter starts research jobs.
type ResearchStarter interface {
	Start(ctx context.Context, localityID string) (*model.Job, error)
}

// PagePublisher publishes a locality's generated pages.
type PagePublisher interface {
	Publish(ctx context.Context, localityID string) (*model.PublishResult, error)
	ListPages(ctx context.Context, localityID string) ([]model.PublishedPage, error)
}

var (
	_ ResearchStarter = (*service.ResearchService)(nil)
	_ PagePublisher   = (*service.PublishService)(nil)
)

// LocalityHandlers serves the locality endpoints: read, research start and publish.
type LocalityHandlers struct {
	Localities core.LocalityRepository
	Jobs       *service.JobService
	Research   ResearchStarter
	// Publish is nil when no CMS is configured.
	Publish PagePublisher
}

// List returns localities ordered by state and name.
func (h *LocalityHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, defaultLocalityListLimit, maxLocalityListLimit)
	locs, err := h.Localities.List(r.Context(), limit, offset)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if locs == nil {
		locs = []*model.Locality{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"localities": locs, "limit": limit, "offset": offset})
}

// Get returns one locality.
func (h *LocalityHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	loc, err := h.Localities.GetByID(r.Context(), id)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, loc)
}

// StartResearch enqueues a research job and returns its status view with 202.
// A locality that already has an active job gets 409.
func (h *LocalityHandlers) StartResearch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	job, err := h.Research.Start(r.Context(), id)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	w.Header().Set("Location", "/api/jobs/"+job.ID)
	WriteJSON(w, http.StatusAccepted, job.StatusView())
}

// ActiveJob returns the locality's pending or processing job, 404 when idle.
func (h *LocalityHandlers) ActiveJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	job, err := h.Jobs.FindActive(r.Context(), id)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job.StatusView())
}

// PublishPages pushes the latest completed job's pages to the CMS.
func (h *LocalityHandlers) PublishPages(w http.ResponseWriter, r *http.Request) {
	if h.Publish == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusServiceUnavailable,
			ErrCode: "publish_disabled",
			Err:     errPublishDisabled,
		})
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.Publish.Publish(r.Context(), id)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// ListPages returns the pages published for a locality.
func (h *LocalityHandlers) ListPages(w http.ResponseWriter, r *http.Request) {
	if h.Publish == nil {
		WriteJSON(w, http.StatusOK, map[string]any{"pages": []model.PublishedPage{}})
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	pages, err := h.Publish.ListPages(r.Context(), id)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if pages == nil {
		pages = []model.PublishedPage{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"pages": pages})
}
