package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/UltimateServices/Dumpsters-CRM/internal/data/pgxutil"
	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
	apperrors "github.com/UltimateServices/Dumpsters-CRM/internal/errors"
)

const localityColumns = `
  id,
  name,
  region_code,
  region,
  county,
  population,
  latitude,
  longitude,
  permit_cost,
  landmarks,
  published_url,
  published_at,
  created_at,
  updated_at
`

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// LocalityRepo reads locality records. Localities are written by the import step,
// except for the published URL columns.
type LocalityRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewLocalityRepo creates a new LocalityRepo.
func NewLocalityRepo(db *sql.DB, cfg RepoConfig) *LocalityRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalityRepo{DB: db, timeProvider: tp, logger: logger.With("component", "locality_repo")}
}

type localityRowData struct {
	county, publishedURL   sql.NullString
	population, permitCost sql.NullInt32
	latitude, longitude    sql.NullFloat64
	publishedAt            sql.NullTime
	landmarks              []string
}

func (d *localityRowData) scanInto(scanner rowScanner, loc *model.Locality) error {
	return scanner.Scan(
		&loc.ID,
		&loc.Name,
		&loc.RegionCode,
		&loc.Region,
		&d.county,
		&d.population,
		&d.latitude,
		&d.longitude,
		&d.permitCost,
		&d.landmarks,
		&d.publishedURL,
		&d.publishedAt,
		&loc.CreatedAt,
		&loc.UpdatedAt,
	)
}

func (d *localityRowData) apply(loc *model.Locality) {
	loc.County = cloneNullableString(d.county)
	loc.PublishedURL = cloneNullableString(d.publishedURL)
	loc.PublishedAt = cloneNullableTime(d.publishedAt)
	loc.Population = cloneNullableInt(d.population)
	loc.PermitCost = cloneNullableInt(d.permitCost)
	loc.Latitude = cloneNullableFloat(d.latitude)
	loc.Longitude = cloneNullableFloat(d.longitude)
	loc.Landmarks = append([]string(nil), d.landmarks...)
}

func scanLocality(scanner rowScanner) (*model.Locality, error) {
	loc := &model.Locality{}
	var data localityRowData
	if err := data.scanInto(scanner, loc); err != nil {
		return nil, err
	}
	data.apply(loc)
	return loc, nil
}

// GetByID retrieves a locality by its ID.
func (r *LocalityRepo) GetByID(ctx context.Context, id string) (*model.Locality, error) {
	var loc *model.Locality
	err := pgxutil.WithConn(ctx, r.DB, func(conn *pgx.Conn) error {
		var scanErr error
		loc, scanErr = scanLocality(conn.QueryRow(ctx, `SELECT `+localityColumns+` FROM localities WHERE id = $1`, id))
		return scanErr
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFoundf("locality %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get locality: %w", err)
	}
	return loc, nil
}

// List returns localities ordered by region and name.
func (r *LocalityRepo) List(ctx context.Context, limit, offset int) ([]*model.Locality, error) {
	limit, offset = clampPage(limit, offset)

	var out []*model.Locality
	err := pgxutil.WithConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT `+localityColumns+`
			FROM localities
			ORDER BY region_code, name, id
			LIMIT $1 OFFSET $2
		`, limit, offset)
		if err != nil {
			return fmt.Errorf("query localities: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			loc, scanErr := scanLocality(rows)
			if scanErr != nil {
				return fmt.Errorf("scan locality: %w", scanErr)
			}
			out = append(out, loc)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetPublished records where the locality's main page was published.
func (r *LocalityRepo) SetPublished(ctx context.Context, req model.SetPublishedRequest) error {
	at := req.At
	if at.IsZero() {
		at = r.timeProvider.Now()
	}
	res, err := r.DB.ExecContext(ctx, `
		UPDATE localities
		SET published_url = $2,
		    published_at = $3,
		    updated_at = $4
		WHERE id = $1
	`, req.LocalityID, req.URL, at.UTC(), r.timeProvider.Now().UTC())
	if err != nil {
		return apperrors.Persistence(apperrors.MapDBError(err), "locality published url")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set published rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NotFoundf("locality %s not found", req.LocalityID)
	}
	return nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, max(offset, 0)
}

func cloneNullableInt(ni sql.NullInt32) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int32)
	return &v
}

func cloneNullableFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}
