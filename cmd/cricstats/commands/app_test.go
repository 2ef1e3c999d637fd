package commands

import (
	"bytes"
	"context"
	"log"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/cricstats/internal/cache"
	"github.com/fortuna/cricstats/internal/config"
	"github.com/fortuna/cricstats/internal/ingest"
)

func newRedisApp(t *testing.T) (*app, *bytes.Buffer) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc, err := cache.NewRedisCache("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })

	cfg := config.Defaults()
	var buf bytes.Buffer
	return &app{cfg: &cfg, redis: rc, logger: log.New(&buf, "", 0)}, &buf
}

func TestLogResumeReportsFinishedItems(t *testing.T) {
	a, buf := newRedisApp(t)
	ctx := context.Background()

	require.NoError(t, a.seenSet(ingest.KindBatting).Mark(ctx, "match-1"))
	require.NoError(t, a.seenSet(ingest.KindBatting).Mark(ctx, "match-2"))

	a.logResume(ctx, ingest.KindBatting)
	assert.Contains(t, buf.String(), "Resuming batting: 2 items already done")
}

func TestResetSeenClearsMatchIDs(t *testing.T) {
	a, _ := newRedisApp(t)
	ctx := context.Background()

	ids := a.redis.MatchIDs(string(ingest.KindBowling), 0)
	_, err := ids.Assign(ctx, "match-1")
	require.NoError(t, err)
	require.NoError(t, a.seenSet(ingest.KindBowling).Mark(ctx, "match-1"))

	require.NoError(t, a.resetSeen(ctx, ingest.KindBowling))

	seen, err := a.seenSet(ingest.KindBowling).Seen(ctx, "match-1")
	require.NoError(t, err)
	assert.False(t, seen)

	id, err := ids.Assign(ctx, "match-2")
	require.NoError(t, err)
	assert.Equal(t, "1", id)
}

func TestRunnerResumeNeedsRedis(t *testing.T) {
	cfg := config.Defaults()
	a := &app{cfg: &cfg}
	_, err := a.runner(true)
	assert.ErrorContains(t, err, "REDIS_URL")
}
