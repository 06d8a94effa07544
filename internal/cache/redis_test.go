package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"sketchbook/internal/game"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("redis container skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisStore(t *testing.T) {
	client := startRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	t.Run("PutGet", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "cache_user:u1", map[string]string{"name": "ann", "room_id": "r1"}, time.Minute))
		attrs, ok, err := store.Get(ctx, "cache_user:u1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, map[string]string{"name": "ann", "room_id": "r1"}, attrs)

		ttl, err := client.TTL(ctx, "cache_user:u1").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, 50*time.Second)
	})

	t.Run("PutReplacesFields", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "cache_user:u2", map[string]string{"name": "bob", "assigned_card_num": "3"}, time.Minute))
		require.NoError(t, store.Put(ctx, "cache_user:u2", map[string]string{"name": "bob"}, time.Minute))
		attrs, ok, err := store.Get(ctx, "cache_user:u2")
		require.NoError(t, err)
		require.True(t, ok)
		assert.NotContains(t, attrs, "assigned_card_num")
	})

	t.Run("Missing", func(t *testing.T) {
		_, ok, err := store.Get(ctx, "cache_user:missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Expiry", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "cache_game:r1", map[string]string{"status": "waiting"}, time.Second))
		require.Eventually(t, func() bool {
			_, ok, err := store.Get(ctx, "cache_game:r1")
			return err == nil && !ok
		}, 5*time.Second, 100*time.Millisecond)
	})

	t.Run("Repository", func(t *testing.T) {
		repo := NewRepository(store, DefaultTTLs())
		room := game.NewRoom("r1", 3, 1)
		room.AddMember("u1", "ann")
		room.AddMember("u2", "bob")
		require.NoError(t, repo.SaveRoom(ctx, room))
		got, err := repo.Room(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, room.MemberNames(), got.MemberNames())

		require.NoError(t, repo.DeleteRoom(ctx, room.ID))
		_, err = repo.Room(ctx, room.ID)
		assert.Error(t, err)
	})
}
