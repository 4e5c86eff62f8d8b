package data

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/UltimateServices/Dumpsters-CRM/internal/data/pgxutil"
	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
	apperrors "github.com/UltimateServices/Dumpsters-CRM/internal/errors"
)

type jobFilterQueryBuilder struct {
	query  string
	args   []any
	argIdx int
}

func (b *jobFilterQueryBuilder) addFilter(condition string, value any) {
	if value != nil {
		b.query += fmt.Sprintf(" AND %s = $%d", condition, b.argIdx)
		b.args = append(b.args, value)
		b.argIdx++
	}
}

func (b *jobFilterQueryBuilder) page(limit, offset int) {
	b.query += fmt.Sprintf(`
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, b.argIdx, b.argIdx+1)
	b.args = append(b.args, limit, offset)
	b.argIdx += 2
}

func buildJobListQuery(opts model.JobListOptions) (string, []any) {
	builder := &jobFilterQueryBuilder{
		query: `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE 1=1`,
		args:   []any{},
		argIdx: 1,
	}

	if opts.LocalityID != "" {
		builder.addFilter("locality_id", opts.LocalityID)
	}
	if opts.Status != nil && *opts.Status != "" {
		builder.addFilter("status", string(*opts.Status))
	}

	limit, offset := clampPage(opts.Limit, opts.Offset)
	builder.page(limit, offset)
	return builder.query, builder.args
}

// List returns jobs newest first, optionally filtered by locality and status.
func (r *JobRepo) List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error) {
	if opts.LocalityID != "" {
		if _, err := uuid.Parse(opts.LocalityID); err != nil {
			return nil, apperrors.ValidationField("locality_id", "locality id must be a UUID")
		}
	}
	if opts.Status != nil && *opts.Status != "" && !opts.Status.Valid() {
		return nil, apperrors.ValidationField("status", fmt.Sprintf("unknown job status %q", *opts.Status))
	}

	query, args := buildJobListQuery(opts)

	var result []*model.Job
	if err := pgxutil.WithConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query jobs: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			job, scanErr := scanJob(rows)
			if scanErr != nil {
				return fmt.Errorf("scan job: %w", scanErr)
			}
			result = append(result, job)
		}
		return rows.Err()
	}); err != nil {
		return nil, err
	}

	return result, nil
}
