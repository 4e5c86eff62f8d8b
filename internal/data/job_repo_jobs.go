package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/UltimateServices/Dumpsters-CRM/internal/core"
	"github.com/UltimateServices/Dumpsters-CRM/internal/data/pgxutil"
	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
	apperrors "github.com/UltimateServices/Dumpsters-CRM/internal/errors"
)

// SQL used by ReserveNext to atomically reserve the oldest pending job.
const reserveNextUpdateSQL = `
  WITH cte AS (
    SELECT id FROM jobs
    WHERE status = 'pending'
    ORDER BY created_at ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE jobs j
  SET
    status = 'processing',
    attempts = j.attempts + 1,
    started_at = COALESCE(j.started_at, $1),
    heartbeat_at = $1
  FROM cte
  WHERE j.id = cte.id
  RETURNING j.id, j.locality_id, j.status, j.progress, j.current_step, j.results, j.error_message,
    j.attempts, j.max_attempts, j.created_at, j.started_at, j.heartbeat_at, j.completed_at`

// Create inserts a pending job and signals JobReadyChannel in the same transaction.
// The jobs_one_active_per_locality index turns a second active job into a conflict error.
func (r *JobRepo) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, apperrors.Validation("create job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, err.Error())
	}
	if _, err := uuid.Parse(req.LocalityID); err != nil {
		return nil, apperrors.NotFoundf("locality %s not found", req.LocalityID)
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	var job *model.Job
	err := pgxutil.WithTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			rows, qerr := tx.Query(ctx, `
				INSERT INTO jobs (locality_id, status, progress, current_step, max_attempts, created_at)
				VALUES ($1, 'pending', 0, $2, $3, $4)
				RETURNING `+jobColumns,
				req.LocalityID, model.StepInitializing, maxAttempts, r.timeProvider.Now().UTC())
			if qerr != nil {
				return fmt.Errorf("insert job: %w", qerr)
			}
			j, cerr := collectJobFromRows(rows)
			rows.Close()
			if cerr != nil {
				return fmt.Errorf("insert job: %w", cerr)
			}

			if nerr := pgxutil.Notify(ctx, tx, JobReadyChannel, j.ID); nerr != nil {
				return nerr
			}
			job = j
			return nil
		},
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}

	r.logger.InfoContext(ctx, "job created", "job_id", job.ID, "locality_id", job.LocalityID)
	return job, nil
}

// GetByID retrieves a job by its ID.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NotFoundf("job %s not found", id)
	}
	job, err := r.queryOne(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFoundf("job %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// FindProcessing returns the locality's pending or processing job.
func (r *JobRepo) FindProcessing(ctx context.Context, localityID string) (*model.Job, error) {
	if _, err := uuid.Parse(localityID); err != nil {
		return nil, apperrors.NotFoundf("no active job for locality %s", localityID)
	}
	job, err := r.queryOne(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE locality_id = $1 AND status IN ('pending', 'processing')
		LIMIT 1
	`, localityID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFoundf("no active job for locality %s", localityID)
	}
	if err != nil {
		return nil, fmt.Errorf("find active job: %w", err)
	}
	return job, nil
}

// LatestCompleted returns the most recently completed job for a locality.
func (r *JobRepo) LatestCompleted(ctx context.Context, localityID string) (*model.Job, error) {
	if _, err := uuid.Parse(localityID); err != nil {
		return nil, apperrors.NotFoundf("no completed job for locality %s", localityID)
	}
	job, err := r.queryOne(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE locality_id = $1 AND status = 'completed'
		ORDER BY completed_at DESC, created_at DESC
		LIMIT 1
	`, localityID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFoundf("no completed job for locality %s", localityID)
	}
	if err != nil {
		return nil, fmt.Errorf("latest completed job: %w", err)
	}
	return job, nil
}

// ReserveNext moves the oldest pending job to processing.
func (r *JobRepo) ReserveNext(ctx context.Context) (*model.Job, error) {
	var job *model.Job
	err := pgxutil.WithTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: pgxutil.ReserveTxOptions,
		Fn: func(tx pgx.Tx) error {
			rows, qerr := tx.Query(ctx, reserveNextUpdateSQL, r.timeProvider.Now().UTC())
			if qerr != nil {
				return fmt.Errorf("reserve job: %w", qerr)
			}
			defer rows.Close()

			j, cerr := collectJobFromRows(rows)
			if errors.Is(cerr, pgx.ErrNoRows) {
				return model.ErrNoJobsAvailable
			}
			if cerr != nil {
				return fmt.Errorf("reserve job: %w", cerr)
			}
			job = j
			return nil
		},
	})
	if err != nil {
		if errors.Is(err, model.ErrNoJobsAvailable) {
			return nil, model.ErrNoJobsAvailable
		}
		return nil, err
	}
	return job, nil
}

// Heartbeat refreshes heartbeat_at on a processing job.
func (r *JobRepo) Heartbeat(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET heartbeat_at = $2
		WHERE id = $1 AND status = 'processing'
	`, id, r.timeProvider.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("heartbeat job: %w", err)
	}
	return affected(res, "heartbeat")
}

// Advance records progress and the current step label. Progress never moves
// backwards; a lower value only refreshes the heartbeat.
func (r *JobRepo) Advance(ctx context.Context, params core.AdvanceJobParams) (bool, error) {
	if params.Progress < 0 || params.Progress > model.MaxProgress {
		return false, apperrors.Validationf("progress %d out of range 0-%d", params.Progress, model.MaxProgress)
	}
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET current_step = CASE WHEN $2 >= progress AND $3 <> '' THEN $3 ELSE current_step END,
		    progress = GREATEST(progress, $2),
		    heartbeat_at = $4
		WHERE id = $1 AND status = 'processing'
	`, params.JobID, params.Progress, params.Step, r.timeProvider.Now().UTC())
	if err != nil {
		return false, apperrors.Persistence(apperrors.MapDBError(err), "job progress")
	}
	ok, err := affected(res, "advance")
	if err != nil {
		return false, apperrors.Persistence(err, "job progress")
	}
	return ok, nil
}

// SaveSection writes one section under results.sections[pageKey][sectionKey],
// replacing any previous value for that key only.
func (r *JobRepo) SaveSection(ctx context.Context, params core.SaveSectionParams) error {
	body, err := pgxutil.JSONB(params.Section)
	if err != nil {
		return fmt.Errorf("section %s: %w", params.Ref, err)
	}
	return r.writeProcessing(ctx, params.JobID, "section "+params.Ref.String(), `
		UPDATE jobs
		SET results = jsonb_set(
		      jsonb_set(
		        results || jsonb_build_object('sections', COALESCE(results->'sections', '{}'::jsonb)),
		        ARRAY['sections', $2::text],
		        COALESCE(results->'sections'->$2::text, '{}'::jsonb),
		        true),
		      ARRAY['sections', $2::text, $3::text],
		      $4::jsonb,
		      true),
		    heartbeat_at = $5
		WHERE id = $1 AND status = 'processing'
	`, params.JobID, params.Ref.PageKey, string(params.Ref.SectionKey), body, r.timeProvider.Now().UTC())
}

// RecordSectionError stores a best-effort section failure under results.section_errors.
func (r *JobRepo) RecordSectionError(ctx context.Context, params core.RecordSectionErrorParams) error {
	return r.writeProcessing(ctx, params.JobID, "section error "+params.Ref.String(), `
		UPDATE jobs
		SET results = jsonb_set(
		      results || jsonb_build_object('section_errors', COALESCE(results->'section_errors', '{}'::jsonb)),
		      ARRAY['section_errors', $2::text],
		      to_jsonb($3::text),
		      true),
		    heartbeat_at = $4
		WHERE id = $1 AND status = 'processing'
	`, params.JobID, params.Ref.String(), params.Message, r.timeProvider.Now().UTC())
}

// SetNeighborhoods stores the neighborhood list chosen for the run.
func (r *JobRepo) SetNeighborhoods(ctx context.Context, id string, neighborhoods []string) error {
	if neighborhoods == nil {
		neighborhoods = []string{}
	}
	body, err := pgxutil.JSONB(neighborhoods)
	if err != nil {
		return fmt.Errorf("neighborhoods: %w", err)
	}
	return r.writeProcessing(ctx, id, "neighborhoods", `
		UPDATE jobs
		SET results = jsonb_set(results, '{neighborhoods}', $2::jsonb, true)
		WHERE id = $1 AND status = 'processing'
	`, id, body)
}

// Complete marks a processing job completed and replaces its results with the assembled payload.
func (r *JobRepo) Complete(ctx context.Context, id string, results model.Results) (bool, error) {
	body, err := marshalResults(results)
	if err != nil {
		return false, err
	}
	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'completed',
		    progress = $2,
		    current_step = $3,
		    results = $4::jsonb,
		    error_message = NULL,
		    completed_at = $5,
		    heartbeat_at = $5
		WHERE id = $1 AND status = 'processing'
	`, id, model.MaxProgress, model.StepComplete, body, now)
	if err != nil {
		return false, apperrors.Persistence(apperrors.MapDBError(err), "job completion")
	}
	ok, err := affected(res, "complete")
	if err != nil {
		return false, apperrors.Persistence(err, "job completion")
	}
	return ok, nil
}

// Fail marks a pending or processing job failed. Progress keeps its last value.
func (r *JobRepo) Fail(ctx context.Context, id, errMsg string) (bool, error) {
	if errMsg == "" {
		errMsg = "job failed"
	}
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'failed',
		    error_message = $2,
		    completed_at = $3
		WHERE id = $1 AND status IN ('pending', 'processing')
	`, id, errMsg, r.timeProvider.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("fail job: %w", err)
	}
	return affected(res, "fail")
}

// Requeue returns a processing job to pending and signals JobReadyChannel.
func (r *JobRepo) Requeue(ctx context.Context, params core.RequeueJobParams) (bool, error) {
	id := params.JobID
	var requeued bool
	err := pgxutil.WithTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, `
				UPDATE jobs
				SET status = 'pending',
				    heartbeat_at = NULL,
				    attempts = CASE WHEN $2::boolean THEN GREATEST(attempts - 1, 0) ELSE attempts END
				WHERE id = $1 AND status = 'processing'
			`, id, params.RefundAttempt)
			if err != nil {
				return fmt.Errorf("requeue job: %w", err)
			}
			if requeued = tag.RowsAffected() > 0; !requeued {
				return nil
			}
			return pgxutil.Notify(ctx, tx, JobReadyChannel, id)
		},
	})
	if err != nil {
		return false, err
	}
	return requeued, nil
}

// Stats returns counts of jobs per status.
func (r *JobRepo) Stats(ctx context.Context) (*model.JobStats, error) {
	var s model.JobStats
	err := r.DB.QueryRowContext(ctx, `
  SELECT
    count(*) FILTER (WHERE status = 'pending')    AS pending,
    count(*) FILTER (WHERE status = 'processing') AS processing,
    count(*) FILTER (WHERE status = 'completed')  AS completed,
    count(*) FILTER (WHERE status = 'failed')     AS failed
  FROM jobs
  `).Scan(
		&s.Pending,
		&s.Processing,
		&s.Completed,
		&s.Failed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get job stats: %w", err)
	}
	return &s, nil
}

// WaitForNotification blocks until JobReadyChannel is signalled or ctx ends.
func (r *JobRepo) WaitForNotification(ctx context.Context) error {
	quoted := pgx.Identifier{JobReadyChannel}.Sanitize()
	return pgxutil.WithConn(ctx, r.DB, func(conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, "LISTEN "+quoted); err != nil {
			return fmt.Errorf("listen %s: %w", JobReadyChannel, err)
		}
		defer func() { _, _ = conn.Exec(context.Background(), "UNLISTEN "+quoted) }()

		_, err := conn.WaitForNotification(ctx)
		return err
	})
}

func (r *JobRepo) queryOne(ctx context.Context, query string, args ...any) (*model.Job, error) {
	var job *model.Job
	err := pgxutil.WithConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		job, err = collectJobFromRows(rows)
		return err
	})
	return job, err
}

// writeProcessing applies a results write guarded by status = 'processing'.
// A job in any other state yields a conflict naming that state.
func (r *JobRepo) writeProcessing(ctx context.Context, id, op, update string, args ...any) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.NotFoundf("job %s not found", id)
	}
	var matched bool
	var state string
	err := pgxutil.WithTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			var err error
			matched, state, err = pgxutil.GuardedUpdate{
				Update:     update,
				Args:       args,
				StateQuery: `SELECT status FROM jobs WHERE id = $1`,
				Key:        id,
			}.Run(ctx, tx)
			return err
		},
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFoundf("job %s not found", id)
	}
	if err != nil {
		return apperrors.Persistence(apperrors.MapDBError(err), op)
	}
	if !matched {
		return apperrors.Conflictf("cannot write %s to a %s job", op, state)
	}
	return nil
}

func affected(res sql.Result, op string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s rows affected: %w", op, err)
	}
	return n > 0, nil
}

func marshalResults(results model.Results) (string, error) {
	v, err := results.Value()
	if err != nil {
		return "", err
	}
	b, ok := v.([]byte)
	if !ok {
		return "", fmt.Errorf("marshal results: unexpected %T", v)
	}
	return string(b), nil
}

// collectJobFromRows collects a single job from pgx rows.
func collectJobFromRows(rows pgx.Rows) (*model.Job, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}

	job, err := scanJob(rows)
	if err != nil {
		return nil, err
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}
	return job, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

type jobRowData struct {
	results                             []byte
	errorMessage                        sql.NullString
	startedAt, heartbeatAt, completedAt sql.NullTime
}

func (d *jobRowData) scanInto(scanner rowScanner, job *model.Job) error {
	return scanner.Scan(
		&job.ID,
		&job.LocalityID,
		&job.Status,
		&job.Progress,
		&job.CurrentStep,
		&d.results,
		&d.errorMessage,
		&job.Attempts,
		&job.MaxAttempts,
		&job.CreatedAt,
		&d.startedAt,
		&d.heartbeatAt,
		&d.completedAt,
	)
}

func (d *jobRowData) apply(job *model.Job) error {
	if len(d.results) > 0 {
		if err := job.Results.Scan(d.results); err != nil {
			return err
		}
	}
	job.ErrorMessage = cloneNullableString(d.errorMessage)
	job.StartedAt = cloneNullableTime(d.startedAt)
	job.HeartbeatAt = cloneNullableTime(d.heartbeatAt)
	job.CompletedAt = cloneNullableTime(d.completedAt)
	job.CreatedAt = job.CreatedAt.UTC()
	return nil
}

func scanJob(scanner rowScanner) (*model.Job, error) {
	job := &model.Job{}
	var data jobRowData
	if err := data.scanInto(scanner, job); err != nil {
		return nil, err
	}
	if err := data.apply(job); err != nil {
		return nil, err
	}
	return job, nil
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
