package reorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"buildinghub_backend/internal/common"
	"buildinghub_backend/internal/config"
	"buildinghub_backend/internal/platform/crypto"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Locker serialises work on one key. The returned unlock func must be called
// exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// NewLocker returns a Redis backed locker when a client is available and an
// in-process one otherwise.
func NewLocker(client *goredis.Client, cfg *config.Config, logger *zap.Logger) Locker {
	if client == nil {
		return NewKeyedMutex()
	}
	return NewRedisLocker(client, cfg.ReorderLockTTL, logger)
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

// KeyedMutex is a set of mutexes created on demand per key.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.ch
				m.release(key, e)
			})
		}, nil
	case <-ctx.Done():
		m.release(key, e)
		return nil, common.ErrLocked.WithDetails(fmt.Sprintf("Timed out waiting for %s.", key))
	}
}

func (m *KeyedMutex) release(key string, e *keyedEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
	}
}

// size reports the number of live keys.
func (m *KeyedMutex) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// Deletes the key only while it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker takes a SET NX PX lock shared by every API instance.
type RedisLocker struct {
	client *goredis.Client
	ttl    time.Duration
	retry  time.Duration
	logger *zap.Logger
}

func NewRedisLocker(client *goredis.Client, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		retry:  50 * time.Millisecond,
		logger: logger.Named("RedisLocker"),
	}
}

// Lock waits at most one TTL for the lock.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token, err := crypto.GenerateSecureRandomString(16)
	if err != nil {
		return nil, fmt.Errorf("failed to generate lock token: %w", err)
	}
	redisKey := "lock:" + key
	deadline := time.Now().Add(l.ttl)

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return func() {
				// The lock is released even if the request was cancelled.
				if err := releaseScript.Run(context.WithoutCancel(ctx), l.client, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, goredis.Nil) {
					l.logger.Warn("Failed to release lock", zap.String("key", key), zap.Error(err))
				}
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, common.ErrLocked.WithDetails(fmt.Sprintf("%s is locked by another request.", key))
		}
		select {
		case <-ctx.Done():
			return nil, common.ErrLocked.WithDetails(fmt.Sprintf("Timed out waiting for %s.", key))
		case <-time.After(l.retry):
		}
	}
}
