package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fortuna/cricstats/internal/records"
	"github.com/fortuna/cricstats/internal/sink"
)

// StreamPrefix is prepended to the schema name to form the stream key
const StreamPrefix = "records."

// RedisStreamPublisher publishes emitted records to one Redis stream per schema
type RedisStreamPublisher struct {
	client *redis.Client
	maxLen int64
}

// NewRedisStreamPublisher creates a new Redis stream publisher from existing client.
// maxLen > 0 caps each stream approximately.
func NewRedisStreamPublisher(client *redis.Client, maxLen int64) *RedisStreamPublisher {
	return &RedisStreamPublisher{
		client: client,
		maxLen: maxLen,
	}
}

// Stream returns the stream key for a schema
func Stream(schema records.Schema) string {
	return StreamPrefix + schema.Name
}

// Write publishes r as a JSON object keyed by column name
func (p *RedisStreamPublisher) Write(ctx context.Context, r records.Record) error {
	stream := Stream(r.Schema())

	data, err := json.Marshal(records.Map(r))
	if err != nil {
		return &sink.WriteError{Target: "redis stream " + stream, Record: r, Err: err}
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: p.maxLen,
		Approx: p.maxLen > 0,
		Values: map[string]interface{}{
			"schema":    r.Schema().Name,
			"data":      string(data),
			"timestamp": time.Now().Unix(),
		},
	}).Err()
	if err != nil {
		return &sink.WriteError{Target: "redis stream " + stream, Record: r, Err: err}
	}
	return nil
}

// Close is a no-op; the client is owned by the cache
func (p *RedisStreamPublisher) Close() error {
	return nil
}
