package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultTypingTTL is how long a typing indicator lives without refresh.
const DefaultTypingTTL = 10 * time.Second

// PresenceStore tracks typing indicators and online presence in Redis.
// Entries expire on their own, so a crashed client never leaves a stale
// "typing" flag behind.
type PresenceStore struct {
	client    *redis.Client
	typingTTL time.Duration
}

// NewPresenceStore creates a new PresenceStore. A non-positive TTL falls
// back to the default.
func NewPresenceStore(client *redis.Client, typingTTL time.Duration) *PresenceStore {
	if typingTTL <= 0 {
		typingTTL = DefaultTypingTTL
	}
	return &PresenceStore{client: client, typingTTL: typingTTL}
}

// ConversationKey derives a stable key for a pair of users regardless of
// argument order.
func ConversationKey(a, b uuid.UUID) string {
	first, second := a.String(), b.String()
	if strings.Compare(first, second) > 0 {
		first, second = second, first
	}
	return fmt.Sprintf("conv:%s:%s", first, second)
}

func typingKey(from, to uuid.UUID) string {
	return fmt.Sprintf("typing:%s:%s", ConversationKey(from, to), from)
}

// SetTyping records that from is typing to to. The indicator expires after
// the TTL unless refreshed.
func (s *PresenceStore) SetTyping(ctx context.Context, from, to uuid.UUID, typing bool) error {
	key := typingKey(from, to)
	if !typing {
		return s.client.Del(ctx, key).Err()
	}
	return s.client.Set(ctx, key, "1", s.typingTTL).Err()
}

// IsTyping reports whether from currently has a live typing indicator
// towards to.
func (s *PresenceStore) IsTyping(ctx context.Context, from, to uuid.UUID) (bool, error) {
	n, err := s.client.Exists(ctx, typingKey(from, to)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Heartbeat marks a user online for the TTL window.
func (s *PresenceStore) Heartbeat(ctx context.Context, userID uuid.UUID, ttl time.Duration) error {
	return s.client.Set(ctx, fmt.Sprintf("presence:%s", userID), "1", ttl).Err()
}

// IsOnline reports whether the user has an unexpired heartbeat.
func (s *PresenceStore) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	n, err := s.client.Exists(ctx, fmt.Sprintf("presence:%s", userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
