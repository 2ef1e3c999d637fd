package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/cricstats/internal/ingest/cricinfo"
	"github.com/fortuna/cricstats/internal/paginate"
)

var (
	_ paginate.KeySet = (*SeenSet)(nil)
	_ cricinfo.IDs    = (*MatchIDs)(nil)
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc, err := NewRedisCache("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })
	return rc, mr
}

func TestSeenSet(t *testing.T) {
	rc, _ := newTestCache(t)
	ctx := context.Background()
	set := rc.SeenSet("batting", 0)

	seen, err := set.Seen(ctx, "https://example.com/match-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, set.Mark(ctx, "https://example.com/match-1"))
	require.NoError(t, set.Mark(ctx, "https://example.com/match-1"))

	seen, err = set.Seen(ctx, "https://example.com/match-1")
	require.NoError(t, err)
	assert.True(t, seen)

	n, err := set.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, set.Reset(ctx))
	n, err = set.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSeenSetIsolatesRuns(t *testing.T) {
	rc, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, rc.SeenSet("batting", 0).Mark(ctx, "India"))

	seen, err := rc.SeenSet("roster", 0).Seen(ctx, "India")
	require.NoError(t, err)
	assert.False(t, seen)
	assert.Equal(t, "cricstats:seen:roster", rc.SeenSet("roster", 0).Key())
}

func TestSeenSetExpires(t *testing.T) {
	rc, mr := newTestCache(t)
	ctx := context.Background()
	set := rc.SeenSet("summary", time.Hour)

	require.NoError(t, set.Mark(ctx, "card#1"))
	assert.Equal(t, time.Hour, mr.TTL(set.Key()))

	mr.FastForward(2 * time.Hour)
	seen, err := set.Seen(ctx, "card#1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestNewRedisCacheFailsWithoutServer(t *testing.T) {
	_, err := NewRedisCache("redis://127.0.0.1:1")
	assert.Error(t, err)

	_, err = NewRedisCache("not a url")
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer rc.Close()

	assert.NoError(t, rc.HealthCheck(context.Background()))
	mr.Close()
	assert.Error(t, rc.HealthCheck(context.Background()))
}

func TestMatchIDsSurviveReconnect(t *testing.T) {
	rc, mr := newTestCache(t)
	ctx := context.Background()

	ids := rc.MatchIDs("batting", 0)
	first, err := ids.Assign(ctx, "https://example.com/match-1")
	require.NoError(t, err)
	assert.Equal(t, "1", first)

	again, err := ids.Assign(ctx, "https://example.com/match-1")
	require.NoError(t, err)
	assert.Equal(t, "1", again)

	// a resumed process opens a fresh connection
	resumed, err := NewRedisCache("redis://" + mr.Addr())
	require.NoError(t, err)
	defer resumed.Close()

	next, err := resumed.MatchIDs("batting", 0).Assign(ctx, "https://example.com/match-2")
	require.NoError(t, err)
	assert.Equal(t, "2", next)

	other, err := resumed.MatchIDs("bowling", 0).Assign(ctx, "https://example.com/match-2")
	require.NoError(t, err)
	assert.Equal(t, "1", other, "each run numbers its own matches")
}

func TestMatchIDsResetAndExpire(t *testing.T) {
	rc, mr := newTestCache(t)
	ctx := context.Background()
	ids := rc.MatchIDs("bowling", time.Hour)

	_, err := ids.Assign(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mr.TTL("cricstats:ids:bowling"))
	assert.Equal(t, time.Hour, mr.TTL("cricstats:ids:bowling:next"))

	require.NoError(t, ids.Reset(ctx))
	id, err := ids.Assign(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "1", id)
}
