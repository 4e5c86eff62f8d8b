package data

import (
	"database/sql"
	"log/slog"
)

// RepoConfig holds configuration options shared by the repositories.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRepo provides database operations for research job management.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &JobRepo{
		DB:           db,
		timeProvider: tp,
		logger:       logger.With("component", "job_repo"),
	}
}

// JobReadyChannel is the Postgres NOTIFY channel signalled when a job is created or requeued.
const JobReadyChannel = "pagegen_job_ready"

const defaultMaxAttempts = 3

const jobColumns = `
  id,
  locality_id,
  status,
  progress,
  current_step,
  results,
  error_message,
  attempts,
  max_attempts,
  created_at,
  started_at,
  heartbeat_at,
  completed_at
`
