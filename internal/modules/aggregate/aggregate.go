// README: Grain aggregator: groups attributed samples by (bucket, city, zone).
package aggregate

import (
	"fmt"
	"time"

	"zonerev/internal/modules/attribution"
)

type nameGuard map[int64]string

func (g nameGuard) check(zoneID int64, name string) error {
	if prev, ok := g[zoneID]; ok && prev != name {
		return &InconsistentZoneNameError{ZoneID: zoneID, First: prev, Second: name}
	}
	g[zoneID] = name
	return nil
}

func keyOf(r attribution.Result, g Grain, loc *time.Location) Key {
	return Key{
		Bucket:   g.Truncate(r.Timestamp, loc),
		CityID:   r.CityID,
		ZoneID:   r.ZoneID,
		ZoneName: r.ZoneName,
	}
}

// Telemetry counts attributed telemetry samples. Daily kvt is derived from
// the hourly counts, see RollupDaily.
func Telemetry(results []attribution.Result, g Grain, loc *time.Location) (map[Key]TelemetryStats, error) {
	guard := nameGuard{}
	hourly := make(map[Key]TelemetryStats)
	for _, r := range results {
		if err := guard.check(r.ZoneID, r.ZoneName); err != nil {
			return nil, err
		}
		k := keyOf(r, Hourly, loc)
		s := hourly[k]
		s.Kvt++
		hourly[k] = s
	}
	if g == Hourly {
		return hourly, nil
	}
	daily, _, err := RollupDaily(hourly, nil, loc)
	return daily, err
}

// Rides sums ride records. amounts[i] belongs to results[i].
func Rides(results []attribution.Result, amounts []RideAmounts, g Grain, loc *time.Location) (map[Key]RideStats, error) {
	if len(results) != len(amounts) {
		return nil, fmt.Errorf("aggregate rides: %d results but %d amount records", len(results), len(amounts))
	}
	guard := nameGuard{}
	out := make(map[Key]RideStats)
	for i, r := range results {
		if err := guard.check(r.ZoneID, r.ZoneName); err != nil {
			return nil, err
		}
		a := amounts[i]
		k := keyOf(r, g, loc)
		out[k] = out[k].add(RideStats{
			Rides:        1,
			Gross:        a.Amount,
			BonusPaid:    a.Discount,
			Discount:     a.BonusDiscount,
			Subscription: a.Subscription,
		})
	}
	return out, nil
}

// RollupDaily folds hourly aggregates into calendar days of loc. Daily kvt
// is the mean over the hours in which the (city, zone) was observed; ride
// fields are summed. Either map may be nil.
func RollupDaily(telemetry map[Key]TelemetryStats, rides map[Key]RideStats, loc *time.Location) (map[Key]TelemetryStats, map[Key]RideStats, error) {
	guard := nameGuard{}

	type acc struct {
		sum   float64
		hours int
	}
	sums := make(map[Key]acc)
	for k, s := range telemetry {
		if err := guard.check(k.ZoneID, k.ZoneName); err != nil {
			return nil, nil, err
		}
		dk := k
		dk.Bucket = Daily.Truncate(k.Bucket, loc)
		a := sums[dk]
		a.sum += s.Kvt
		a.hours++
		sums[dk] = a
	}
	dailyTelemetry := make(map[Key]TelemetryStats, len(sums))
	for k, a := range sums {
		dailyTelemetry[k] = TelemetryStats{Kvt: a.sum / float64(a.hours)}
	}

	guard = nameGuard{}
	dailyRides := make(map[Key]RideStats)
	for k, s := range rides {
		if err := guard.check(k.ZoneID, k.ZoneName); err != nil {
			return nil, nil, err
		}
		dk := k
		dk.Bucket = Daily.Truncate(k.Bucket, loc)
		dailyRides[dk] = dailyRides[dk].add(s)
	}
	return dailyTelemetry, dailyRides, nil
}

// KvtByBucket totals kvt per bucket, for run diagnostics.
func KvtByBucket(telemetry map[Key]TelemetryStats) map[time.Time]float64 {
	out := make(map[time.Time]float64)
	for k, s := range telemetry {
		out[k.Bucket] += s.Kvt
	}
	return out
}
