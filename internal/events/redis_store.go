package events

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisEventStore keeps the latest outcome per saga in Redis and appends
// every event to a stream.
type RedisEventStore struct {
	client    RedisPipelineClient
	stream    string
	keyPrefix string
	ttl       time.Duration
	maxLen    int64
}

// RedisPipelineClient is the minimal client surface used by RedisEventStore.
type RedisPipelineClient interface {
	Pipeline() RedisPipeliner
}

// RedisPipeliner is the subset of commands used within a pipeline.
type RedisPipeliner interface {
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Exec(ctx context.Context) ([]redis.Cmder, error)
}

// NewRedisEventStore constructs a Redis-backed event store.
func NewRedisEventStore(client RedisPipelineClient, stream string, ttl time.Duration, maxLen int64) *RedisEventStore {
	if stream == "" {
		stream = "order_events"
	}
	return &RedisEventStore{
		client:    client,
		stream:    stream,
		keyPrefix: "saga:",
		ttl:       ttl,
		maxLen:    maxLen,
	}
}

// Publish writes the latest saga outcome and appends to the stream.
func (r *RedisEventStore) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := r.keyPrefix + ev.SagaID
	timestamp := ev.Timestamp.UTC().Format(time.RFC3339Nano)
	fields := map[string]any{
		"saga_id":      ev.SagaID,
		"order_id":     ev.OrderID,
		"customer_id":  ev.CustomerID,
		"status":       ev.Status,
		"category":     ev.Category,
		"total_amount": ev.TotalAmount,
		"timestamp":    timestamp,
	}

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, key, fields)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}

	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: fields,
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	pipe.XAdd(ctx, args)

	_, err := pipe.Exec(ctx)
	return err
}
