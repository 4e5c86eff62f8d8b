package errors

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// reKeyField extracts the field name from "Key (field)=(value) already exists.".
	reKeyField = regexp.MustCompile(`Key \(([^)]+)\)=`)
	// reNotPresent detects a missing parent: "... is not present in table ...".
	reNotPresent = regexp.MustCompile(`is not present in table "?([^"]+)"?`)
	// reReferencedFrom detects parent deletion: "... is still referenced from table ...".
	reReferencedFrom = regexp.MustCompile(`is still referenced from table "?([^"]+)"?`)
)

// constraintMessages maps named constraints to stable user-facing messages.
var constraintMessages = map[string]string{
	"jobs_one_active_per_locality":     "A research job is already pending or processing for this locality.",
	"published_pages_job_slug_key":     "This page slug was already published for the job.",
	"localities_city_state_key":        "A locality with this city and state already exists.",
	"jobs_progress_range":              "Job progress must be between 0 and 100.",
	"localities_state_code_len":        "State must be a two letter code.",
	"jobs_status_check":                "Job status is not recognized.",
	"published_pages_locality_id_fkey": "Cannot complete operation because the referenced Locality does not exist.",
	"jobs_locality_id_fkey":            "Cannot complete operation because the referenced Locality does not exist.",
}

// MapDBError maps database errors to AppError instances.
//   - sql.ErrNoRows and pgx.ErrNoRows → NotFound
//   - unique violations → Conflict
//   - foreign key violations → NotFound (missing parent) or Conflict (parent in use)
//   - check and NOT NULL violations → Validation
//   - context deadline or cancellation → Timeout or Canceled
//
// Unrecognized errors are returned unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(err, ErrCodeTimeout, "Request timed out. Please try again.")
	case errors.Is(err, context.Canceled):
		return Wrap(err, ErrCodeCanceled, "Request was canceled.")
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, pgx.ErrNoRows):
		return Wrap(err, ErrCodeNotFound, "Resource not found")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}
	return err
}

func mapPgError(pgErr *pgconn.PgError) error {
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		e := Wrap(pgErr, ErrCodeConflict, messageFor(pgErr, "This value already exists."))
		e.Field = fieldFor(pgErr)
		return e
	case pgerrcode.ForeignKeyViolation:
		return mapForeignKeyViolation(pgErr)
	case pgerrcode.CheckViolation:
		e := Wrap(pgErr, ErrCodeValidation, messageFor(pgErr, "Invalid data. Please check your input."))
		e.Field = pgErr.ColumnName
		return e
	case pgerrcode.NotNullViolation:
		e := Wrap(pgErr, ErrCodeValidation, "This field is required.")
		e.Field = pgErr.ColumnName
		return e
	default:
		return Wrap(pgErr, ErrCodeInternal, "A database error occurred. Please try again.")
	}
}

func mapForeignKeyViolation(pgErr *pgconn.PgError) error {
	if m := reReferencedFrom.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return Wrap(pgErr, ErrCodeConflict,
			"Cannot delete because this item is in use by "+tableToDomain(m[1])+".")
	}
	if msg, ok := constraintMessages[pgErr.ConstraintName]; ok {
		return Wrap(pgErr, ErrCodeNotFound, msg)
	}
	if m := reNotPresent.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return Wrap(pgErr, ErrCodeNotFound,
			"Cannot complete operation because the referenced "+tableToDomain(m[1])+" does not exist.")
	}
	return Wrap(pgErr, ErrCodeNotFound, "Cannot complete operation because a referenced item does not exist.")
}

func messageFor(pgErr *pgconn.PgError, fallback string) string {
	if msg, ok := constraintMessages[pgErr.ConstraintName]; ok {
		return msg
	}
	return fallback
}

// fieldFor prefers the ColumnName metadata, then the Detail key list.
// Multi-column keys are reported as-is ("city, state").
func fieldFor(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return m[1]
	}
	return ""
}

func tableToDomain(table string) string {
	switch strings.ToLower(strings.TrimSpace(table)) {
	case "localities":
		return "Locality"
	case "jobs":
		return "Job"
	case "published_pages":
		return "Published Page"
	default:
		words := strings.Fields(strings.ReplaceAll(table, "_", " "))
		for i, w := range words {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
		return strings.Join(words, " ")
	}
}
