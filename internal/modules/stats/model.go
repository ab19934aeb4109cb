// README: Aggregated zone statistics rows and the window-replacing sink contract.
package stats

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"zonerev/internal/modules/aggregate"
	"zonerev/internal/types"
)

var (
	ErrSinkTransaction  = errors.New("sink transaction failed")
	ErrRowOutsideWindow = errors.New("row bucket outside replaced window")
	ErrInvalidWindow    = errors.New("invalid window")
)

// Row is the persisted unit, one per (bucket, city, zone).
type Row struct {
	Bucket   time.Time
	CityID   int64
	ZoneID   int64
	ZoneName string

	Kvt             float64
	Rides           float64
	Gross           float64
	BonusPaid       float64
	Discount        float64
	Subscription    float64
	Debt            float64
	SubRevenue      float64
	MultiSubRevenue float64

	GeneratedAt time.Time
}

// Replaced reports what a ReplaceWindow call changed.
type Replaced struct {
	Deleted  int64
	Inserted int64
}

// Sink atomically swaps the rows of a window: after a successful call the
// window holds exactly rows; after a failed call it is unchanged.
type Sink interface {
	ReplaceWindow(ctx context.Context, g aggregate.Grain, window types.TimeRange, rows []Row) (Replaced, error)
}

// SinkTransactionError tells at which step the replace transaction failed.
type SinkTransactionError struct {
	Stage string
	Err   error
}

func (e *SinkTransactionError) Error() string {
	return fmt.Sprintf("stats sink %s: %v", e.Stage, e.Err)
}

func (e *SinkTransactionError) Unwrap() []error { return []error{ErrSinkTransaction, e.Err} }

// Tables names the destination table per grain, optionally schema-qualified.
type Tables struct {
	Hourly string
	Daily  string
}

func (t Tables) For(g aggregate.Grain) (name []string, bucketColumn string, err error) {
	switch g {
	case aggregate.Hourly:
		return strings.Split(t.Hourly, "."), "timestamp_hour", nil
	case aggregate.Daily:
		return strings.Split(t.Daily, "."), "date", nil
	default:
		return nil, "", fmt.Errorf("%w: %v", aggregate.ErrUnknownGrain, g)
	}
}

func checkWindow(window types.TimeRange, rows []Row) error {
	if !window.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidWindow, window)
	}
	for _, r := range rows {
		if !window.Contains(r.Bucket) {
			return fmt.Errorf("%w: row (%s, city %d, zone %d) not in %s",
				ErrRowOutsideWindow, r.Bucket.UTC().Format(time.RFC3339), r.CityID, r.ZoneID, window)
		}
	}
	return nil
}

// SortRows orders rows by their key so repeated runs emit identical sequences.
func SortRows(rows []Row) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.Bucket.Equal(b.Bucket) {
			return a.Bucket.Before(b.Bucket)
		}
		if a.CityID != b.CityID {
			return a.CityID < b.CityID
		}
		if a.ZoneID != b.ZoneID {
			return a.ZoneID < b.ZoneID
		}
		return a.ZoneName < b.ZoneName
	})
}
