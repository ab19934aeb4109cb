// README: Last-run reports in Redis, one key per grain.
package runs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	lastRunKeyPrefix = "zonerev:runs:%s:last"
	lastRunTTL       = 30 * 24 * time.Hour
)

// Status keeps the latest report per grain.
type Status interface {
	Save(ctx context.Context, r Report) error
	Last(ctx context.Context, grain string) (Report, error)
}

type RedisStatus struct {
	redis *redis.Client
}

func NewRedisStatus(redis *redis.Client) *RedisStatus {
	return &RedisStatus{redis: redis}
}

func (s *RedisStatus) Save(ctx context.Context, r Report) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, lastRunKey(r.Grain), b, lastRunTTL).Err()
}

func (s *RedisStatus) Last(ctx context.Context, grain string) (Report, error) {
	val, err := s.redis.Get(ctx, lastRunKey(grain)).Bytes()
	if err == redis.Nil {
		return Report{}, ErrNotFound
	}
	if err != nil {
		return Report{}, err
	}
	var r Report
	if err := json.Unmarshal(val, &r); err != nil {
		return Report{}, fmt.Errorf("decode last %s run: %w", grain, err)
	}
	return r, nil
}

func lastRunKey(grain string) string {
	return fmt.Sprintf(lastRunKeyPrefix, grain)
}

// MemoryStatus serves single-process deployments and tests.
type MemoryStatus struct {
	mu   sync.RWMutex
	last map[string]Report
}

func NewMemoryStatus() *MemoryStatus {
	return &MemoryStatus{last: make(map[string]Report)}
}

func (m *MemoryStatus) Save(_ context.Context, r Report) error {
	m.mu.Lock()
	m.last[r.Grain] = r
	m.mu.Unlock()
	return nil
}

func (m *MemoryStatus) Last(_ context.Context, grain string) (Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.last[grain]
	if !ok {
		return Report{}, ErrNotFound
	}
	return r, nil
}
