package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/cheildo/parity-league-backend/internal/protocol"
)

// RedisConfig holds the connection settings for a Redis-backed trail.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

// RedisTrail appends envelopes to a Redis Stream, one XADD per envelope.
// Streams give the trail durable, ordered, externally consumable entries.
type RedisTrail struct {
	rdb    *redis.Client
	stream string
}

// NewRedisTrail creates the trail and pings the server to verify connectivity.
func NewRedisTrail(cfg RedisConfig) (*RedisTrail, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &RedisTrail{rdb: rdb, stream: cfg.Stream}, nil
}

func (r *RedisTrail) Record(ctx context.Context, direction string, env *protocol.Envelope) {
	raw, err := json.Marshal(env)
	if err != nil {
		slog.Error("Failed to marshal envelope for audit stream", "error", err)
		return
	}

	err = r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]any{
			"timestamp": protocol.Timestamp(),
			"direction": direction,
			"message":   raw,
		},
	}).Err()
	if err != nil {
		slog.Error("Failed to append audit entry to Redis stream", "stream", r.stream, "error", err)
	}
}

// Close releases the underlying Redis connection.
func (r *RedisTrail) Close() error {
	return r.rdb.Close()
}
