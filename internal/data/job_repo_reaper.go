package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/UltimateServices/Dumpsters-CRM/internal/core"
	"github.com/UltimateServices/Dumpsters-CRM/internal/data/pgxutil"
	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
)

// Advisory lock namespace for reaper operations.
// Using two-arg pg_try_advisory_xact_lock(major, minor) for proper namespacing.
const (
	advisoryLockReaperMajor           = 2000
	advisoryLockReaperFailPending     = 1 // minor key for FailStalePendingJobs
	advisoryLockReaperDelete          = 2 // minor key for DeleteOldJobs
	advisoryLockReaperRequeueStale    = 3 // minor key for RequeueStaleProcessingJobs
	advisoryLockReaperFailStaleActive = 4 // minor key for FailStaleProcessingJobs
)

const (
	staleProcessingMessage = "Worker stopped responding and no attempts remain"
	stalePendingMessage    = "Job timed out in pending status"
)

// withReaperLock runs fn in a transaction holding the reaper advisory lock for minor.
// When another reaper instance holds the lock fn is skipped and zero is returned.
func (r *JobRepo) withReaperLock(ctx context.Context, minor int, fn func(tx *sql.Tx) (sql.Result, error)) (int64, error) {
	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, func(tx *sql.Tx) error {
		var locked bool
		if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockReaperMajor, minor).Scan(&locked); err != nil {
			return fmt.Errorf("acquire advisory lock: %w", err)
		}
		if !locked {
			return nil
		}

		res, err := fn(tx)
		if err != nil {
			return err
		}
		ra, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		rowsAffected = ra
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}

func validateStaleParams(params core.StaleJobsParams) error {
	if params.StaleAfter <= 0 {
		return errors.New("stale after must be greater than zero")
	}
	if params.BatchSize <= 0 {
		return errors.New("batch size must be greater than zero")
	}
	return nil
}

// RequeueStaleProcessingJobs returns processing jobs with an expired heartbeat and
// attempts left to pending, then signals JobReadyChannel so a worker resumes them.
func (r *JobRepo) RequeueStaleProcessingJobs(ctx context.Context, params core.StaleJobsParams) (int64, error) {
	if err := validateStaleParams(params); err != nil {
		return 0, err
	}
	cutoff := r.timeProvider.Now().Add(-params.StaleAfter).UTC()

	return r.withReaperLock(ctx, advisoryLockReaperRequeueStale, func(tx *sql.Tx) (sql.Result, error) {
		res, err := tx.ExecContext(ctx, `
			UPDATE jobs
			SET status = 'pending',
				heartbeat_at = NULL
			WHERE id IN (
				SELECT id FROM jobs
				WHERE status = 'processing'
				  AND COALESCE(heartbeat_at, started_at, created_at) < $1
				  AND attempts < max_attempts
				ORDER BY heartbeat_at
				LIMIT $2
			)
		`, cutoff, params.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("requeue stale processing jobs: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1::text, 'reaper')`, JobReadyChannel); err != nil {
				return nil, fmt.Errorf("send job notification: %w", err)
			}
		}
		return res, nil
	})
}

// FailStaleProcessingJobs fails processing jobs with an expired heartbeat that used every attempt.
func (r *JobRepo) FailStaleProcessingJobs(ctx context.Context, params core.StaleJobsParams) (int64, error) {
	if err := validateStaleParams(params); err != nil {
		return 0, err
	}
	now := r.timeProvider.Now().UTC()
	cutoff := now.Add(-params.StaleAfter)

	return r.withReaperLock(ctx, advisoryLockReaperFailStaleActive, func(tx *sql.Tx) (sql.Result, error) {
		res, err := tx.ExecContext(ctx, `
			UPDATE jobs
			SET status = 'failed',
				error_message = $3,
				completed_at = $1
			WHERE id IN (
				SELECT id FROM jobs
				WHERE status = 'processing'
				  AND COALESCE(heartbeat_at, started_at, created_at) < $2
				  AND attempts >= max_attempts
				ORDER BY heartbeat_at
				LIMIT $4
			)
		`, now, cutoff, staleProcessingMessage, params.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("fail stale processing jobs: %w", err)
		}
		return res, nil
	})
}

// FailStalePendingJobs marks pending jobs older than maxAge as failed.
// Processes up to batchSize jobs per call to prevent long locks and I/O spikes.
func (r *JobRepo) FailStalePendingJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	if maxAge <= 0 || batchSize <= 0 {
		return 0, errors.New("max age and batch size must be greater than zero")
	}
	now := r.timeProvider.Now().UTC()
	cutoff := now.Add(-maxAge)

	return r.withReaperLock(ctx, advisoryLockReaperFailPending, func(tx *sql.Tx) (sql.Result, error) {
		res, err := tx.ExecContext(ctx, `
			UPDATE jobs
			SET status = 'failed',
				error_message = $3,
				completed_at = $1
			WHERE id IN (
				SELECT id FROM jobs
				WHERE status = 'pending'
				  AND created_at < $2
				ORDER BY created_at
				LIMIT $4
			)
		`, now, cutoff, stalePendingMessage, batchSize)
		if err != nil {
			return nil, fmt.Errorf("fail stale pending jobs: %w", err)
		}
		return res, nil
	})
}

// DeleteOldJobs deletes terminal jobs with the given status older than maxAge.
// Completed jobs are refused because publishing reads the latest completed job.
func (r *JobRepo) DeleteOldJobs(ctx context.Context, params core.DeleteOldJobsParams) (int64, error) {
	if !params.Status.Valid() {
		return 0, fmt.Errorf("invalid job status: %s", params.Status)
	}
	if params.Status != model.JobStatusFailed {
		return 0, fmt.Errorf("refusing to delete %s jobs", params.Status)
	}
	if params.MaxAge <= 0 || params.BatchSize <= 0 {
		return 0, errors.New("max age and batch size must be greater than zero")
	}
	cutoff := r.timeProvider.Now().Add(-params.MaxAge).UTC()

	return r.withReaperLock(ctx, advisoryLockReaperDelete, func(tx *sql.Tx) (sql.Result, error) {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM jobs
			WHERE id IN (
				SELECT id FROM jobs
				WHERE status = $1
				  AND COALESCE(completed_at, created_at) < $2
				ORDER BY COALESCE(completed_at, created_at)
				LIMIT $3
			)
		`, params.Status, cutoff, params.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("delete old jobs: %w", err)
		}
		return res, nil
	})
}
