// README: Time grains (hour/day) used to bucket attributed samples.
package aggregate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"zonerev/internal/types"
)

var ErrUnknownGrain = errors.New("unknown grain")

type Grain int

const (
	Hourly Grain = iota + 1
	Daily
)

func (g Grain) String() string {
	switch g {
	case Hourly:
		return "hourly"
	case Daily:
		return "daily"
	default:
		return fmt.Sprintf("grain(%d)", int(g))
	}
}

func ParseGrain(s string) (Grain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hourly", "hour", "h":
		return Hourly, nil
	case "daily", "day", "d":
		return Daily, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownGrain, s)
	}
}

// Truncate returns the start of the bucket containing t, computed on the
// wall clock of loc. The result is in UTC so buckets compare equal as map keys.
func (g Grain) Truncate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	switch g {
	case Daily:
		return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc).UTC()
	default:
		// Step back from the instant itself: rebuilding the wall clock hour
		// would fold the repeated hour of a DST rollback onto its first occurrence.
		sub := time.Duration(lt.Minute())*time.Minute +
			time.Duration(lt.Second())*time.Second +
			time.Duration(lt.Nanosecond())
		return lt.Add(-sub).UTC()
	}
}

// Next returns the start of the bucket following the one starting at bucket.
func (g Grain) Next(bucket time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	if g == Daily {
		lt := bucket.In(loc)
		return time.Date(lt.Year(), lt.Month(), lt.Day()+1, 0, 0, 0, 0, loc).UTC()
	}
	return bucket.Add(time.Hour).UTC()
}

// Window is the recompute range for a run at now: from the bucket that
// contained now-lookback up to the end of the current bucket.
func (g Grain) Window(now time.Time, lookback time.Duration, loc *time.Location) types.TimeRange {
	return types.TimeRange{
		From: g.Truncate(now.Add(-lookback), loc),
		To:   g.Next(g.Truncate(now, loc), loc),
	}
}

// Align widens r to whole buckets so that every bucket a sample in r
// truncates to lies inside the result.
func (g Grain) Align(r types.TimeRange, loc *time.Location) types.TimeRange {
	from := g.Truncate(r.From, loc)
	to := g.Truncate(r.To, loc)
	if to.Before(r.To) {
		to = g.Next(to, loc)
	}
	return types.TimeRange{From: from, To: to}
}
