package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-guard/internal/domain"
)

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotificationPublisher pushes freshly stored notifications to a per-user
// pub/sub channel for realtime clients.
type RedisNotificationPublisher struct {
	client  redisPublisher
	prefix  string
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewRedisNotificationPublisher returns nil when client is nil.
func NewRedisNotificationPublisher(client *redis.Client, prefix string, settings BreakerSettings, logger *zap.Logger) *RedisNotificationPublisher {
	if client == nil {
		return nil
	}
	return newRedisNotificationPublisher(client, prefix, settings, logger)
}

func newRedisNotificationPublisher(client redisPublisher, prefix string, settings BreakerSettings, logger *zap.Logger) *RedisNotificationPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisNotificationPublisher{
		client:  client,
		prefix:  prefix,
		breaker: newBreaker("redis-notifications", settings, logger),
		logger:  logger,
	}
}

// Channel returns the channel a user's notifications are published on.
func (p *RedisNotificationPublisher) Channel(userID int64) string {
	return fmt.Sprintf("%s:%d", p.prefix, userID)
}

// PublishNotification publishes n on the recipient's channel.
func (p *RedisNotificationPublisher) PublishNotification(ctx context.Context, n domain.Notification) error {
	data, err := json.Marshal(notificationMessage{
		ID:        n.ID,
		Message:   n.Message,
		Severity:  string(n.Severity),
		TicketID:  n.TicketID,
		CreatedAt: n.CreatedAt.Unix(),
	})
	if err != nil {
		return err
	}
	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.client.Publish(ctx, p.Channel(n.UserID), data).Err()
	})
	return err
}

type notificationMessage struct {
	ID        int64  `json:"id"`
	Message   string `json:"message"`
	Severity  string `json:"type"`
	TicketID  *int64 `json:"ticket_id,omitempty"`
	CreatedAt int64  `json:"created_at"`
}
