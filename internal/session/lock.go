package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when a chat lock cannot be acquired before the
// context ends.
var ErrLockTimeout = errors.New("chat lock not acquired")

// Unlock releases a chat lock.
type Unlock func()

// Locker serializes event handling per chat id.
type Locker interface {
	Lock(ctx context.Context, chatID string) (Unlock, error)
}

// LocalLocker is an in-process keyed mutex. Entries are dropped once no
// goroutine holds or waits for them.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

// NewLocalLocker creates an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: map[string]*lockEntry{}}
}

// Lock blocks until chatID is free or ctx ends.
func (l *LocalLocker) Lock(ctx context.Context, chatID string) (Unlock, error) {
	l.mu.Lock()
	entry, ok := l.entries[chatID]
	if !ok {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		l.entries[chatID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(chatID, entry)
		return nil, fmt.Errorf("%w: %s: %w", ErrLockTimeout, chatID, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.sem
			l.release(chatID, entry)
		})
	}, nil
}

func (l *LocalLocker) release(chatID string, entry *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, chatID)
	}
}

// Size returns the number of tracked chats.
func (l *LocalLocker) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// unlockScript deletes the lock only when it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// RedisLocker serializes chats across processes with SET NX PX.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	poll   time.Duration
}

// NewRedisLocker creates a locker whose locks expire after ttl if never
// released.
func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		poll:   25 * time.Millisecond,
	}
}

// Lock polls until the chat lock is acquired or ctx ends.
func (l *RedisLocker) Lock(ctx context.Context, chatID string) (Unlock, error) {
	key := l.prefix + "lock:" + chatID
	token := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrLockTimeout, chatID, ctx.Err())
			}
			return nil, fmt.Errorf("redis acquire lock %s: %w", chatID, err)
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					_ = unlockScript.Run(releaseCtx, l.client, []string{key}, token).Err()
				})
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", ErrLockTimeout, chatID, ctx.Err())
		case <-ticker.C:
		}
	}
}
