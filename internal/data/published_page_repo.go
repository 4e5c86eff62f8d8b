package data

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/UltimateServices/Dumpsters-CRM/internal/core"
	"github.com/UltimateServices/Dumpsters-CRM/internal/data/pgxutil"
	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
	apperrors "github.com/UltimateServices/Dumpsters-CRM/internal/errors"
)

// PublishedPageRepo stores the outcome of CMS publish runs.
type PublishedPageRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewPublishedPageRepo creates a new PublishedPageRepo.
func NewPublishedPageRepo(db *sql.DB, cfg RepoConfig) *PublishedPageRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PublishedPageRepo{DB: db, timeProvider: tp, logger: logger.With("component", "published_page_repo")}
}

// RecordPublish inserts every published page and sets the locality's published URL in one transaction.
func (r *PublishedPageRepo) RecordPublish(ctx context.Context, params core.RecordPublishParams) error {
	if _, err := uuid.Parse(params.LocalityID); err != nil {
		return apperrors.NotFoundf("locality %s not found", params.LocalityID)
	}
	at := params.At
	if at.IsZero() {
		at = r.timeProvider.Now()
	}
	at = at.UTC()

	err := pgxutil.WithSQLTx(ctx, r.DB, func(tx *sql.Tx) error {
		for _, p := range params.Pages {
			var jobID any
			if p.JobID != "" {
				jobID = p.JobID
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO published_pages (locality_id, job_id, page_key, slug, cms_id, link, parent_cms_id, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, params.LocalityID, jobID, p.PageKey, p.Slug, p.CMSID, p.Link, p.ParentCMSID, at); err != nil {
				return fmt.Errorf("insert published page %s: %w", p.Slug, err)
			}
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE localities
			SET published_url = $2,
			    published_at = $3,
			    updated_at = $3
			WHERE id = $1
		`, params.LocalityID, params.MainURL, at)
		if err != nil {
			return fmt.Errorf("update locality published url: %w", err)
		}
		ok, err := affected(res, "record publish")
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.NotFoundf("locality %s not found", params.LocalityID)
		}
		return nil
	})
	if err != nil {
		return apperrors.Persistence(apperrors.MapDBError(err), "published pages")
	}

	r.logger.InfoContext(ctx, "publish recorded",
		"locality_id", params.LocalityID,
		"pages", len(params.Pages),
		"main_url", params.MainURL,
	)
	return nil
}

// ListByLocality returns the pages published for a locality, newest first.
func (r *PublishedPageRepo) ListByLocality(ctx context.Context, localityID string) ([]model.PublishedPage, error) {
	if _, err := uuid.Parse(localityID); err != nil {
		return nil, apperrors.NotFoundf("locality %s not found", localityID)
	}
	rows, err := r.DB.QueryContext(ctx, `
		SELECT locality_id, job_id, page_key, slug, cms_id, link, parent_cms_id, created_at
		FROM published_pages
		WHERE locality_id = $1
		ORDER BY created_at DESC, id ASC
	`, localityID)
	if err != nil {
		return nil, fmt.Errorf("query published pages: %w", err)
	}
	defer rows.Close()

	var out []model.PublishedPage
	for rows.Next() {
		var (
			p      model.PublishedPage
			jobID  sql.NullString
			parent sql.NullInt64
		)
		if err := rows.Scan(&p.LocalityID, &jobID, &p.PageKey, &p.Slug, &p.CMSID, &p.Link, &parent, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan published page: %w", err)
		}
		p.JobID = jobID.String
		if parent.Valid {
			v := parent.Int64
			p.ParentCMSID = &v
		}
		p.CreatedAt = p.CreatedAt.UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}
