package data

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UltimateServices/Dumpsters-CRM/internal/core"
	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
	apperrors "github.com/UltimateServices/Dumpsters-CRM/internal/errors"
	"github.com/UltimateServices/Dumpsters-CRM/internal/testutil"
)

func TestPublishedPageRepo_RecordPublish(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		tp := NewFixedTimeProvider(testutil.TestTime())
		repo := NewPublishedPageRepo(db, RepoConfig{TimeProvider: tp})
		localities := NewLocalityRepo(db, RepoConfig{TimeProvider: tp})
		jobs := NewJobRepo(db, RepoConfig{TimeProvider: tp})
		ctx := context.Background()

		loc := testutil.NewLocality().Insert(t, db)
		job, err := jobs.Create(ctx, testutil.NewJobRequest(loc.ID).Build())
		require.NoError(t, err)

		parent := int64(101)
		err = repo.RecordPublish(ctx, core.RecordPublishParams{
			LocalityID: loc.ID,
			MainURL:    "https://example.com/austin-tx/",
			Pages: []model.PublishedPage{
				{JobID: job.ID, PageKey: model.MainPageKey, Slug: "austin-tx", CMSID: 101, Link: "https://example.com/austin-tx/"},
				{JobID: job.ID, PageKey: model.NeighborhoodPageKey("Downtown"), Slug: "austin-tx-downtown", CMSID: 102, Link: "https://example.com/austin-tx/austin-tx-downtown/", ParentCMSID: &parent},
			},
		})
		require.NoError(t, err)

		pages, err := repo.ListByLocality(ctx, loc.ID)
		require.NoError(t, err)
		require.Len(t, pages, 2)
		assert.Equal(t, "austin-tx", pages[0].Slug)
		assert.Nil(t, pages[0].ParentCMSID)
		require.NotNil(t, pages[1].ParentCMSID)
		assert.Equal(t, int64(101), *pages[1].ParentCMSID)
		assert.Equal(t, job.ID, pages[1].JobID)

		got, err := localities.GetByID(ctx, loc.ID)
		require.NoError(t, err)
		require.NotNil(t, got.PublishedURL)
		assert.Equal(t, "https://example.com/austin-tx/", *got.PublishedURL)
	})
}

func TestPublishedPageRepo_RecordPublish_RollsBack(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewPublishedPageRepo(db, RepoConfig{})
		ctx := context.Background()

		loc := testutil.NewLocality().Insert(t, db)
		jobs := NewJobRepo(db, RepoConfig{})
		job, err := jobs.Create(ctx, testutil.NewJobRequest(loc.ID).Build())
		require.NoError(t, err)

		dup := model.PublishedPage{JobID: job.ID, PageKey: model.MainPageKey, Slug: "austin-tx", CMSID: 1, Link: "https://example.com/a/"}
		err = repo.RecordPublish(ctx, core.RecordPublishParams{
			LocalityID: loc.ID,
			MainURL:    "https://example.com/a/",
			Pages:      []model.PublishedPage{dup, dup},
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err), "got %v", err)

		pages, err := repo.ListByLocality(ctx, loc.ID)
		require.NoError(t, err)
		assert.Empty(t, pages)

		err = repo.RecordPublish(ctx, core.RecordPublishParams{LocalityID: uuid.NewString(), MainURL: "https://example.com/"})
		assert.True(t, apperrors.IsNotFound(err), "got %v", err)
	})
}
