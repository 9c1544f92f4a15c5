package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned when a key is missing or expired.
	ErrNotFound = errors.New("session: key not found")
	// ErrConflict is returned when Update keeps losing to concurrent writers.
	ErrConflict = errors.New("session: concurrent update")
)

// maxUpdateAttempts bounds optimistic retries in RedisStore.Update.
const maxUpdateAttempts = 8

// UpdateFunc maps the current value of a key to its next value. A nil result
// deletes the key. It may run more than once and must not have side effects.
type UpdateFunc func(current []byte) ([]byte, error)

// Store is the key/value backend that holds sessions and batches.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Update applies fn atomically to an existing key.
	Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(key)
}

func (s *MemoryStore) getLocked(key string) ([]byte, error) {
	entry, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return nil, ErrNotFound
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, value, ttl)
	return nil
}

func (s *MemoryStore) setLocked(key string, value []byte, ttl time.Duration) {
	copied := make([]byte, len(value))
	copy(copied, value)
	entry := memoryEntry{value: copied}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = entry
}

// Update runs fn while holding the store lock.
func (s *MemoryStore) Update(_ context.Context, key string, ttl time.Duration, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, errGet := s.getLocked(key)
	if errGet != nil {
		return errGet
	}
	next, errFn := fn(current)
	if errFn != nil {
		return errFn
	}
	if next == nil {
		delete(s.entries, key)
		return nil
	}
	s.setLocked(key, next, ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}

// RedisStore keeps entries in Redis under an optional key prefix.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: strings.TrimSpace(prefix)}
}

// DialRedis opens a client and verifies the connection with PING.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if errPing := client.Ping(ctx).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	return client, nil
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, errGet := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(errGet, redis.Nil) {
		return nil, ErrNotFound
	}
	if errGet != nil {
		return nil, errGet
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, s.key(key), value, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, 0, len(keys))
	for _, k := range keys {
		prefixed = append(prefixed, s.key(k))
	}
	return s.client.Del(ctx, prefixed...).Err()
}

// Update runs fn inside WATCH/MULTI and retries when the key changed underneath.
func (s *RedisStore) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error {
	if ttl < 0 {
		ttl = 0
	}
	k := s.key(key)
	txf := func(tx *redis.Tx) error {
		current, errGet := tx.Get(ctx, k).Bytes()
		if errors.Is(errGet, redis.Nil) {
			return ErrNotFound
		}
		if errGet != nil {
			return errGet
		}
		next, errFn := fn(current)
		if errFn != nil {
			return errFn
		}
		_, errPipe := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, k)
				return nil
			}
			pipe.Set(ctx, k, next, ttl)
			return nil
		})
		return errPipe
	}
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		errWatch := s.client.Watch(ctx, txf, k)
		if errors.Is(errWatch, redis.TxFailedErr) {
			continue
		}
		return errWatch
	}
	return ErrConflict
}
