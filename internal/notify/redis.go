package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ashureev/portfolio-chat/internal/domain"
)

// ChannelPrefix namespaces notice channels.
const ChannelPrefix = "portfolio:notices:"

const defaultPublishTimeout = 2 * time.Second

// publisher is the subset of *redis.Client used here.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes notices as JSON so other instances and dashboards
// can follow a session's notices.
type RedisPublisher struct {
	rdb     publisher
	timeout time.Duration
	logger  *slog.Logger
}

// NewRedisPublisher wraps a redis client.
func NewRedisPublisher(rdb publisher, logger *slog.Logger) *RedisPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisPublisher{rdb: rdb, timeout: defaultPublishTimeout, logger: logger}
}

// NewRedisClient parses a redis URL such as redis://localhost:6379/0.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Channel returns the pub/sub channel for a session key.
func Channel(sessionKey string) string {
	if sessionKey == "" {
		sessionKey = "global"
	}
	return ChannelPrefix + sessionKey
}

// Notify publishes n. Failures are logged, never returned; a notice is not
// worth failing a chat exchange over.
func (p *RedisPublisher) Notify(ctx context.Context, n domain.Notice) {
	payload, err := json.Marshal(n)
	if err != nil {
		p.logger.Error("Failed to marshal notice", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	channel := Channel(n.SessionKey)
	if err := p.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		p.logger.Warn("Failed to publish notice", "channel", channel, "error", err)
	}
}
