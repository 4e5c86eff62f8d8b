package core

import (
	"context"
	"time"

	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
)

// This file contains the ports between the service layer and its collaborators.
// Services depend on these interfaces, never on the concrete implementations in
// internal/data, internal/llm or internal/adapters.

// LocalityRepository reads locality records.
type LocalityRepository interface {
	GetByID(ctx context.Context, id string) (*model.Locality, error)
	List(ctx context.Context, limit, offset int) ([]*model.Locality, error)
	// SetPublished records the CMS link of the locality's main page.
	SetPublished(ctx context.Context, req model.SetPublishedRequest) error
}

// SaveSectionParams groups parameters for JobRepository.SaveSection.
type SaveSectionParams struct {
	JobID   string
	Ref     model.SectionRef
	Section model.Section
}

// RecordSectionErrorParams groups parameters for JobRepository.RecordSectionError.
type RecordSectionErrorParams struct {
	JobID   string
	Ref     model.SectionRef
	Message string
}

// AdvanceJobParams groups parameters for JobRepository.Advance.
type AdvanceJobParams struct {
	JobID    string
	Progress int
	Step     string
}

// RequeueJobParams groups parameters for JobRepository.Requeue.
type RequeueJobParams struct {
	JobID string
	// RefundAttempt decrements attempts so an interrupted run is not counted.
	RefundAttempt bool
}

// JobRepository defines the job store operations. Every write is guarded by the
// job's current status in SQL so a stale caller cannot move a job backwards.
type JobRepository interface {
	// Create inserts a pending job. It returns a conflict error when the
	// locality already has a pending or processing job.
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	// FindProcessing returns the locality's pending or processing job, or a not found error.
	FindProcessing(ctx context.Context, localityID string) (*model.Job, error)
	// LatestCompleted returns the most recently completed job for a locality, or a not found error.
	LatestCompleted(ctx context.Context, localityID string) (*model.Job, error)
	// ReserveNext moves the oldest pending job to processing, or returns model.ErrNoJobsAvailable.
	ReserveNext(ctx context.Context) (*model.Job, error)
	Heartbeat(ctx context.Context, id string) (bool, error)
	Advance(ctx context.Context, params AdvanceJobParams) (bool, error)
	SaveSection(ctx context.Context, params SaveSectionParams) error
	RecordSectionError(ctx context.Context, params RecordSectionErrorParams) error
	SetNeighborhoods(ctx context.Context, id string, neighborhoods []string) error
	Complete(ctx context.Context, id string, results model.Results) (bool, error)
	Fail(ctx context.Context, id, errMsg string) (bool, error)
	// Requeue returns a processing job to pending so another attempt can resume it.
	Requeue(ctx context.Context, params RequeueJobParams) (bool, error)
	// List returns jobs newest first.
	List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error)
	Stats(ctx context.Context) (*model.JobStats, error)
}

// DeleteOldJobsParams groups parameters for DeleteOldJobs to keep param count ≤3.
type DeleteOldJobsParams struct {
	Status    model.JobStatus
	MaxAge    time.Duration
	BatchSize int
}

// StaleJobsParams groups parameters for the stale processing job sweeps.
type StaleJobsParams struct {
	StaleAfter time.Duration
	BatchSize  int
}

// ReaperRepository defines the interface for job cleanup operations.
type ReaperRepository interface {
	// RequeueStaleProcessingJobs returns processing jobs whose heartbeat is older
	// than StaleAfter and that still have attempts left to pending.
	RequeueStaleProcessingJobs(ctx context.Context, params StaleJobsParams) (int64, error)

	// FailStaleProcessingJobs fails processing jobs whose heartbeat is older than
	// StaleAfter and that have used all their attempts.
	FailStaleProcessingJobs(ctx context.Context, params StaleJobsParams) (int64, error)

	// FailStalePendingJobs marks pending jobs older than maxAge as failed.
	// Processes up to batchSize jobs per call to prevent long locks.
	FailStalePendingJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)

	// DeleteOldJobs deletes jobs with the given status older than maxAge.
	// Completed jobs are refused because publishing reads them.
	DeleteOldJobs(ctx context.Context, params DeleteOldJobsParams) (int64, error)
}

// RecordPublishParams groups the outcome of one publish run.
type RecordPublishParams struct {
	LocalityID string
	MainURL    string
	At         time.Time
	Pages      []model.PublishedPage
}

// PublishedPageRepository stores CMS publish outcomes.
type PublishedPageRepository interface {
	// RecordPublish stores the published pages and the locality's published URL in one transaction.
	RecordPublish(ctx context.Context, params RecordPublishParams) error
	ListByLocality(ctx context.Context, localityID string) ([]model.PublishedPage, error)
}

// CompletionRequest is one text completion call.
type CompletionRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
	// Timeout bounds this single call; zero uses the client default.
	Timeout time.Duration
	// Operation names the call in logs and spans (e.g. "section.hero_services").
	Operation string
}

// TextCompleter is the LLM text completion service.
type TextCompleter interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CreatePageRequest describes one CMS page.
type CreatePageRequest struct {
	Title           string
	Slug            string
	HTML            string
	MetaDescription string
	// ParentID is the CMS id of the parent page, zero for a root page.
	ParentID int64
}

// UpdatePageRequest replaces a page body.
type UpdatePageRequest struct {
	HTML string
}

// PublishedRef identifies a page created in the CMS.
type PublishedRef struct {
	ID   int64
	Link string
}

// PagePublisher is the CMS publish API.
type PagePublisher interface {
	CreatePage(ctx context.Context, req CreatePageRequest) (*PublishedRef, error)
	UpdatePage(ctx context.Context, id int64, req UpdatePageRequest) error
	DeletePage(ctx context.Context, id int64) error
}

// JobNotifier signals workers that a job is ready.
type JobNotifier interface {
	NotifyJobReady(ctx context.Context, jobID string) error
}
