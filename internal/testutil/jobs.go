package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"
)

// JobRow is the stored state of one job as the reaper and workers see it.
type JobRow struct {
	ID           string
	LocalityID   string
	Status       string
	Progress     int
	Step         string
	Attempts     int
	MaxAttempts  int
	ErrorMessage sql.NullString
}

// JobRows returns every job, oldest first.
func JobRows(t testing.TB, db *sql.DB) []JobRow {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := db.QueryContext(ctx, `
		SELECT id, locality_id, status, progress, current_step, attempts, max_attempts, error_message
		FROM jobs
		ORDER BY created_at, id
	`)
	if err != nil {
		t.Fatalf("query jobs: %v", err)
	}
	defer func() { _ = rows.Close() }()

	var out []JobRow
	for rows.Next() {
		var j JobRow
		if err := rows.Scan(&j.ID, &j.LocalityID, &j.Status, &j.Progress, &j.Step,
			&j.Attempts, &j.MaxAttempts, &j.ErrorMessage); err != nil {
			t.Fatalf("scan job: %v", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterate jobs: %v", err)
	}
	return out
}

// LogJobs logs every job under label and returns the rows for assertions.
func LogJobs(t testing.TB, db *sql.DB, label string) []JobRow {
	t.Helper()
	jobs := JobRows(t, db)
	t.Logf("%s: %d job(s)", label, len(jobs))
	for _, j := range jobs {
		t.Logf("  %s locality=%s %s %d%% %q attempts=%d/%d err=%q",
			j.ID, j.LocalityID, j.Status, j.Progress, j.Step, j.Attempts, j.MaxAttempts, j.ErrorMessage.String)
	}
	return jobs
}

// StoredSectionKeys reads results.sections of a job straight from the jsonb
// column and returns the section keys present under each page key, sorted.
func StoredSectionKeys(t testing.TB, db *sql.DB, jobID string) map[string][]string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := db.QueryContext(ctx, `
		SELECT page.key, section.key
		FROM jobs,
		     jsonb_each(COALESCE(jobs.results->'sections', '{}'::jsonb)) AS page,
		     jsonb_object_keys(page.value) AS section(key)
		WHERE jobs.id = $1
		ORDER BY 1, 2
	`, jobID)
	if err != nil {
		t.Fatalf("query sections of %s: %v", jobID, err)
	}
	defer func() { _ = rows.Close() }()

	out := map[string][]string{}
	for rows.Next() {
		var page, section string
		if err := rows.Scan(&page, &section); err != nil {
			t.Fatalf("scan section key: %v", err)
		}
		out[page] = append(out[page], section)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterate section keys: %v", err)
	}
	return out
}
