package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UltimateServices/Dumpsters-CRM/internal/core"
	"github.com/UltimateServices/Dumpsters-CRM/internal/testutil"
)

func TestRedisCacheRepo_Set_Get_Delete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)
	repo := NewRedisCacheRepo(client)
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		key := "test:key:1"
		value := []byte("test value")
		ttl := 5 * time.Minute

		require.NoError(t, repo.Set(ctx, key, value, ttl))

		result, err := repo.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, value, result)

		actualTTL := client.TTL(ctx, key).Val()
		assert.True(t, actualTTL > 0 && actualTTL <= ttl)
	})

	t.Run("get non-existent key", func(t *testing.T) {
		result, err := repo.Get(ctx, "non:existent:key")
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("delete existing key", func(t *testing.T) {
		key := "test:key:2"
		require.NoError(t, repo.Set(ctx, key, []byte("to be deleted"), time.Minute))

		deleted, err := repo.Delete(ctx, key)
		require.NoError(t, err)
		assert.True(t, deleted)

		result, err := repo.Get(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("set if not exists", func(t *testing.T) {
		key := "test:nx:1"
		wasSet, err := repo.SetIfNotExists(ctx, key, []byte("first"), time.Minute)
		require.NoError(t, err)
		assert.True(t, wasSet)

		wasSet, err = repo.SetIfNotExists(ctx, key, []byte("second"), time.Minute)
		require.NoError(t, err)
		assert.False(t, wasSet)

		result, err := repo.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), result)
	})

	t.Run("delete if value", func(t *testing.T) {
		key := "test:cad:1"
		require.NoError(t, repo.Set(ctx, key, []byte("owner-a"), time.Minute))

		deleted, err := repo.DeleteIfValue(ctx, key, []byte("owner-b"))
		require.NoError(t, err)
		assert.False(t, deleted, "a different owner must not release the key")

		deleted, err = repo.DeleteIfValue(ctx, key, []byte("owner-a"))
		require.NoError(t, err)
		assert.True(t, deleted)

		result, err := repo.Get(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("health check", func(t *testing.T) {
		assert.NoError(t, repo.Health(ctx))
	})
}

func TestRedisCacheRepo_KeyedLock(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	repo := NewRedisCacheRepo(testutil.SetupTestRedis(t))
	lock := core.NewKeyedLock(core.KeyedLockOptions{Cache: repo, Prefix: "test:publish:"})
	ctx := context.Background()

	release, err := lock.Acquire(ctx, "loc-1")
	require.NoError(t, err)

	_, err = lock.Acquire(ctx, "loc-1")
	require.ErrorIs(t, err, core.ErrLockHeld)

	require.NoError(t, release(ctx))

	release, err = lock.Acquire(ctx, "loc-1")
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestRedisCacheRepo_Validation(t *testing.T) {
	repo := NewRedisCacheRepo(nil)
	ctx := context.Background()

	require.Error(t, repo.Set(ctx, "", []byte("value"), time.Minute))

	_, err := repo.Get(ctx, "")
	require.Error(t, err)

	_, err = repo.Delete(ctx, "")
	require.Error(t, err)

	_, err = repo.SetIfNotExists(ctx, "", []byte("value"), time.Minute)
	require.Error(t, err)

	_, err = repo.DeleteIfValue(ctx, "", []byte("value"))
	require.Error(t, err)
}
