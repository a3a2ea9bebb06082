package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "opsbot:session:"

// RedisStore keeps sessions as JSON values, one key per chat.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix sets the key prefix for sessions.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithExpiry sets the idle expiration of session keys. Zero keeps them forever.
func WithExpiry(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// NewRedisStore creates a store on an existing client.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(chatID string) string {
	return s.prefix + chatID
}

// Get loads the session for chatID.
func (s *RedisStore) Get(ctx context.Context, chatID string) (*Session, error) {
	raw, err := s.client.Get(ctx, s.key(chatID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get session %s: %w", chatID, err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", chatID, err)
	}
	return &sess, nil
}

// Ensure loads the session for chatID, storing an idle one when absent.
func (s *RedisStore) Ensure(ctx context.Context, chatID string) (*Session, error) {
	sess, err := s.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		return sess, nil
	}
	sess = New()
	if err := s.Set(ctx, chatID, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Set writes the session, refreshing its expiry.
func (s *RedisStore) Set(ctx context.Context, chatID string, sess *Session) error {
	if sess == nil {
		sess = New()
	}
	sess.UpdatedAt = time.Now()
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", chatID, err)
	}
	if err := s.client.Set(ctx, s.key(chatID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session %s: %w", chatID, err)
	}
	return nil
}

// Clear deletes the session key.
func (s *RedisStore) Clear(ctx context.Context, chatID string) error {
	if err := s.client.Del(ctx, s.key(chatID)).Err(); err != nil {
		return fmt.Errorf("redis delete session %s: %w", chatID, err)
	}
	return nil
}
