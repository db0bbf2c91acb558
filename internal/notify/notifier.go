// Package notify pushes real-time events to users over Redis pub/sub and
// tracks typing and presence state.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
)

// Notification is the payload pushed to a user's channel.
type Notification struct {
	Event      string    `json:"event"`
	TaskID     uuid.UUID `json:"task_id"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier pushes notifications to a single user.
type Notifier interface {
	Push(ctx context.Context, userID uuid.UUID, n Notification) error
	Close() error
}

// ChannelFor returns the pub/sub channel for a user.
func ChannelFor(userID uuid.UUID) string {
	return fmt.Sprintf("user:%s:notifications", userID)
}

// RedisNotifier publishes notifications to per-user Redis channels. A
// circuit breaker keeps a flapping Redis from slowing down event
// consumption.
type RedisNotifier struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker[any]
	logger  *slog.Logger
}

// NewRedisNotifier creates a new RedisNotifier.
func NewRedisNotifier(client *redis.Client, logger *slog.Logger) *RedisNotifier {
	settings := gobreaker.Settings{
		Name:        "redis-notifier",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}

	return &RedisNotifier{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		logger:  logger,
	}
}

// Push publishes the notification to the user's channel. Deliveries are
// fire-and-forget: subscribers that are offline simply miss the message.
func (n *RedisNotifier) Push(ctx context.Context, userID uuid.UUID, notification Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	_, err = n.breaker.Execute(func() (any, error) {
		return nil, n.client.Publish(ctx, ChannelFor(userID), payload).Err()
	})
	return err
}

// Subscribe returns a subscription for the user's notification channel.
func (n *RedisNotifier) Subscribe(ctx context.Context, userID uuid.UUID) *redis.PubSub {
	return n.client.Subscribe(ctx, ChannelFor(userID))
}

// Close closes the underlying Redis client.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

// NoopNotifier discards all notifications. Used when Redis is not
// configured.
type NoopNotifier struct{}

func (NoopNotifier) Push(context.Context, uuid.UUID, Notification) error { return nil }
func (NoopNotifier) Close() error                                        { return nil }
