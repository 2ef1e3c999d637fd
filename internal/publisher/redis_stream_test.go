package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/cricstats/internal/records"
	"github.com/fortuna/cricstats/internal/sink"
)

var _ sink.Sink = (*RedisStreamPublisher)(nil)

func TestPublishRecord(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	p := NewRedisStreamPublisher(client, 0)
	ctx := context.Background()
	require.NoError(t, p.Write(ctx, records.Bowling{MatchID: "3", Name: "Jasprit Bumrah", Wickets: "3"}))

	entries, err := client.XRange(ctx, "records.bowling", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bowling", entries[0].Values["schema"])

	var row map[string]string
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["data"].(string)), &row))
	assert.Equal(t, "Jasprit Bumrah", row["name"])
	assert.Equal(t, "3", row["wickets"])
	assert.Equal(t, "N/A", row["economy"])
}

func TestPublishFailureCarriesRecord(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	err := NewRedisStreamPublisher(client, 100).Write(context.Background(), records.Player{Country: "Nepal", Name: "Sandeep Lamichhane"})

	var we *sink.WriteError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, "redis stream records.roster", we.Target)
	assert.Contains(t, err.Error(), "Sandeep Lamichhane")
}
