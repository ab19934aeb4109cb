package runs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "zonerev:lock:%s"

// Locker grants exclusive use of a named resource for at most ttl.
// Acquire fails with ErrLocked while another holder owns it.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error)
}

// Lease releases only the holder's own lock, even after the ttl passed and
// someone else took over.
type Lease interface {
	Release(ctx context.Context) error
}

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type RedisLocker struct {
	redis *redis.Client
}

func NewRedisLocker(redis *redis.Client) *RedisLocker {
	return &RedisLocker{redis: redis}
}

func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	key := fmt.Sprintf(lockKeyPrefix, name)
	token := uuid.NewString()
	ok, err := l.redis.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, name)
	}
	return &redisLease{redis: l.redis, key: key, token: token}, nil
}

type redisLease struct {
	redis *redis.Client
	key   string
	token string
}

func (r *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, r.redis, []string{r.key}, r.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("redis: release %s: %w", r.key, err)
	}
	return nil
}

// MemoryLocker is the in-process Locker used without Redis.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]memoryHold
	clock func() time.Time
}

type memoryHold struct {
	token   string
	expires time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]memoryHold), clock: time.Now}
}

func (m *MemoryLocker) Acquire(_ context.Context, name string, ttl time.Duration) (Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock()
	if h, ok := m.held[name]; ok && now.Before(h.expires) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, name)
	}
	token := uuid.NewString()
	m.held[name] = memoryHold{token: token, expires: now.Add(ttl)}
	return &memoryLease{locker: m, name: name, token: token}, nil
}

type memoryLease struct {
	locker *MemoryLocker
	name   string
	token  string
}

func (l *memoryLease) Release(context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	if h, ok := l.locker.held[l.name]; ok && h.token == l.token {
		delete(l.locker.held, l.name)
	}
	return nil
}
