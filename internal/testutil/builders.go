package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
)

// TestTime is the clock reading fixtures and fixed time providers share.
func TestTime() time.Time {
	return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

// LocalityBuilder provides a fluent interface for building Locality fixtures.
type LocalityBuilder struct {
	loc *model.Locality
}

// NewLocality creates a LocalityBuilder with sensible defaults (Austin, TX).
func NewLocality() *LocalityBuilder {
	return &LocalityBuilder{
		loc: &model.Locality{
			ID:         uuid.NewString(),
			Name:       "Austin",
			RegionCode: "TX",
			Region:     "Texas",
			County:     ptr("Travis"),
			Population: ptr(961855),
			Latitude:   ptr(30.2672),
			Longitude:  ptr(-97.7431),
			Landmarks:  []string{"Zilker Park", "Texas State Capitol"},
			CreatedAt:  TestTime(),
			UpdatedAt:  TestTime(),
		},
	}
}

// WithID sets the locality ID.
func (b *LocalityBuilder) WithID(id string) *LocalityBuilder {
	b.loc.ID = id
	return b
}

// WithName sets the city name.
func (b *LocalityBuilder) WithName(name string) *LocalityBuilder {
	b.loc.Name = name
	return b
}

// WithRegion sets the state code and name.
func (b *LocalityBuilder) WithRegion(code, name string) *LocalityBuilder {
	b.loc.RegionCode = code
	b.loc.Region = name
	return b
}

// WithPermitCost overrides the per-state permit estimate.
func (b *LocalityBuilder) WithPermitCost(dollars int) *LocalityBuilder {
	b.loc.PermitCost = &dollars
	return b
}

// WithLandmarks replaces the landmark list.
func (b *LocalityBuilder) WithLandmarks(landmarks ...string) *LocalityBuilder {
	b.loc.Landmarks = landmarks
	return b
}

// WithoutGeo clears the coordinates.
func (b *LocalityBuilder) WithoutGeo() *LocalityBuilder {
	b.loc.Latitude = nil
	b.loc.Longitude = nil
	return b
}

// Build returns the constructed Locality.
func (b *LocalityBuilder) Build() *model.Locality {
	return b.loc
}

// Insert writes the locality to db and returns it with the stored ID.
func (b *LocalityBuilder) Insert(t testing.TB, db *sql.DB) *model.Locality {
	t.Helper()
	InsertLocality(t, db, b.loc)
	return b.loc
}

// InsertLocality writes loc to the localities table. Localities are created by the
// import step in production, so repositories expose no insert.
func InsertLocality(t testing.TB, db *sql.DB, loc *model.Locality) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	landmarks := loc.Landmarks
	if landmarks == nil {
		landmarks = []string{}
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO localities (id, name, region_code, region, county, population, latitude, longitude, permit_cost, landmarks)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, loc.ID, loc.Name, loc.RegionCode, loc.Region, loc.County, loc.Population,
		loc.Latitude, loc.Longitude, loc.PermitCost, landmarks); err != nil {
		t.Fatalf("Failed to insert locality %s: %v", loc.Name, err)
	}
}

// JobRequestBuilder provides a fluent interface for building CreateJobRequest objects for testing.
type JobRequestBuilder struct {
	req *model.CreateJobRequest
}

// NewJobRequest creates a new JobRequestBuilder for the given locality.
func NewJobRequest(localityID string) *JobRequestBuilder {
	return &JobRequestBuilder{
		req: &model.CreateJobRequest{
			LocalityID:  localityID,
			MaxAttempts: 3,
		},
	}
}

// WithMaxAttempts sets the maximum number of attempts.
func (b *JobRequestBuilder) WithMaxAttempts(n int) *JobRequestBuilder {
	b.req.MaxAttempts = n
	return b
}

// Build returns the constructed CreateJobRequest.
func (b *JobRequestBuilder) Build() *model.CreateJobRequest {
	return b.req
}

// ProcessingJob returns an in-memory job that a worker has just reserved.
func ProcessingJob(localityID string) *model.Job {
	started := TestTime()
	return &model.Job{
		ID:          uuid.NewString(),
		LocalityID:  localityID,
		Status:      model.JobStatusProcessing,
		CurrentStep: model.StepInitializing,
		Attempts:    1,
		MaxAttempts: 3,
		CreatedAt:   started,
		StartedAt:   &started,
		HeartbeatAt: &started,
	}
}
