package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"signalbot/internal/domain"

	"github.com/redis/go-redis/v9"
)

// Redis publishes payloads on a pub/sub channel that a Signal bridge subscribes to.
type Redis struct {
	rdb     *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedis parses a redis:// URL and returns a publisher for channel.
func NewRedis(redisURL, channel string, logger *slog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisWithClient(redis.NewClient(opts), channel, logger), nil
}

func NewRedisWithClient(rdb *redis.Client, channel string, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{rdb: rdb, channel: channel, logger: logger}
}

func (r *Redis) Send(ctx context.Context, payload domain.Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", payload.Kind(), err)
	}

	receivers, err := r.rdb.Publish(ctx, r.channel, data).Result()
	if err != nil {
		return fmt.Errorf("%w: redis publish %s: %v", domain.ErrTransportUnavailable, r.channel, err)
	}
	if receivers == 0 {
		r.logger.Warn("no bridge subscribed to redis channel", "channel", r.channel, "kind", payload.Kind())
	}
	return nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
