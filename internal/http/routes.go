package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/UltimateServices/Dumpsters-CRM/internal/core"
	"github.com/UltimateServices/Dumpsters-CRM/internal/service"
)

var errPublishDisabled = errors.New("wordpress publishing is not configured")

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Jobs       *service.JobService
	Localities core.LocalityRepository
	Research   ResearchStarter
	Publish    PagePublisher // Optional: nil disables publishing
	Logger     *slog.Logger  // Optional
}

// NewRouter creates and configures the HTTP API router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")

	mux := http.NewServeMux()

	jobHandlers := &JobHandlers{Svc: services.Jobs}
	localityHandlers := &LocalityHandlers{
		Localities: services.Localities,
		Jobs:       services.Jobs,
		Research:   services.Research,
		Publish:    services.Publish,
	}

	registerJobRoutes(mux, jobHandlers)
	registerLocalityRoutes(mux, localityHandlers)
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	return Chain(mux, RequestID(), Logging(logger), Recover(logger))
}

func registerJobRoutes(mux *http.ServeMux, h *JobHandlers) {
	mux.HandleFunc("GET /api/jobs", h.List)
	mux.HandleFunc("GET /api/jobs/stats", h.Stats)
	mux.HandleFunc("GET /api/jobs/{id}", h.GetStatus)
	mux.HandleFunc("GET /api/jobs/{id}/results", h.GetResults)
}

func registerLocalityRoutes(mux *http.ServeMux, h *LocalityHandlers) {
	mux.HandleFunc("GET /api/localities", h.List)
	mux.HandleFunc("GET /api/localities/{id}", h.Get)
	mux.HandleFunc("POST /api/localities/{id}/research", h.StartResearch)
	mux.HandleFunc("GET /api/localities/{id}/research", h.ActiveJob)
	mux.HandleFunc("POST /api/localities/{id}/publish", h.PublishPages)
	mux.HandleFunc("GET /api/localities/{id}/pages", h.ListPages)
}
