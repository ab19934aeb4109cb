package stats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"zonerev/internal/modules/aggregate"
	"zonerev/internal/types"
)

// MemoryStore is an in-process Sink with the same swap semantics as Store.
// Used for dry runs and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[aggregate.Grain][]Row
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[aggregate.Grain][]Row)}
}

func (m *MemoryStore) ReplaceWindow(ctx context.Context, g aggregate.Grain, window types.TimeRange, rows []Row) (Replaced, error) {
	if err := checkWindow(window, rows); err != nil {
		return Replaced{}, err
	}
	if err := ctx.Err(); err != nil {
		return Replaced{}, &SinkTransactionError{Stage: "begin", Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.rows[g]
	next := make([]Row, 0, len(current)+len(rows))
	var deleted int64
	for _, r := range current {
		if window.Contains(r.Bucket) {
			deleted++
			continue
		}
		next = append(next, r)
	}
	seen := make(map[rowKey]struct{}, len(rows))
	for _, r := range rows {
		k := rowKey{r.Bucket.UnixNano(), r.CityID, r.ZoneID, r.ZoneName}
		if _, dup := seen[k]; dup {
			err := fmt.Errorf("duplicate key (%s, %d, %d, %q)",
				r.Bucket.UTC().Format(time.RFC3339), r.CityID, r.ZoneID, r.ZoneName)
			return Replaced{}, &SinkTransactionError{Stage: "insert", Err: err}
		}
		seen[k] = struct{}{}
	}
	next = append(next, rows...)
	SortRows(next)
	m.rows[g] = next
	return Replaced{Deleted: deleted, Inserted: int64(len(rows))}, nil
}

// rowKey mirrors the result tables' primary key.
type rowKey struct {
	bucket   int64
	cityID   int64
	zoneID   int64
	zoneName string
}

// Window returns a copy of the rows in window, in key order.
func (m *MemoryStore) Window(_ context.Context, g aggregate.Grain, window types.TimeRange) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Row
	for _, r := range m.rows[g] {
		if window.Contains(r.Bucket) {
			out = append(out, r)
		}
	}
	return out, nil
}
