// Package httpx provides the HTTP API of the page generator.
package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
	"github.com/UltimateServices/Dumpsters-CRM/internal/service"
)

const (
	defaultJobListLimit = 50
	maxJobListLimit     = 200
)

// JobHandlers provides HTTP handlers for job-related operations.
type JobHandlers struct {
	Svc *service.JobService
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id := strings.TrimSpace(r.PathValue(name))
	if id == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_path",
			Err:     errors.New(name + " is required"),
		})
		return "", false
	}
	return id, true
}

// GetStatus returns the polling view of a job: status, progress, current step
// and error message.
func (h *JobHandlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	status, err := h.Svc.GetStatus(r.Context(), jobID)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

// GetResults returns the job's results payload. The optional query parameter is
// a JMESPath expression applied to the payload.
func (h *JobHandlers) GetResults(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	out, err := h.Svc.QueryResults(r.Context(), jobID, r.URL.Query().Get("query"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

// List returns jobs newest first, optionally filtered by locality_id and status.
func (h *JobHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, defaultJobListLimit, maxJobListLimit)
	opts := model.JobListOptions{
		LocalityID: strings.TrimSpace(r.URL.Query().Get("locality_id")),
		Limit:      limit,
		Offset:     offset,
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		var status model.JobStatus
		if err := status.UnmarshalText([]byte(raw)); err != nil {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "validation", Err: err, Field: "status"})
			return
		}
		opts.Status = &status
	}

	jobs, err := h.Svc.List(r.Context(), opts)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	views := make([]model.JobStatusResponse, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, j.StatusView())
	}
	WriteJSON(w, http.StatusOK, map[string]any{"jobs": views, "limit": limit, "offset": offset})
}

// Stats returns counts of jobs in each state.
func (h *JobHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Svc.Stats(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}
