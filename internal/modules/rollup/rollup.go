// README: Rollup merger: left-joins telemetry, ride and share aggregates into stats rows.
package rollup

import (
	"time"

	"zonerev/internal/modules/aggregate"
	"zonerev/internal/modules/distribution"
	"zonerev/internal/modules/stats"
)

// Summary describes what the join kept and what it dropped.
type Summary struct {
	Rows            int
	MatchedRideKeys int
	DroppedRideKeys int
	DroppedRides    int64
}

// Merge builds one row per telemetry key. Ride and share fields of keys with
// no ride aggregate are zero. Keys present only in rides produce no row and
// are reported in the summary instead.
func Merge(
	telemetry map[aggregate.Key]aggregate.TelemetryStats,
	rides map[aggregate.Key]aggregate.RideStats,
	shares map[aggregate.Key]distribution.Share,
	now time.Time,
) ([]stats.Row, Summary) {
	rows := make([]stats.Row, 0, len(telemetry))
	var sum Summary

	for k, t := range telemetry {
		r, ok := rides[k]
		if ok {
			sum.MatchedRideKeys++
		}
		sh := shares[k]
		rows = append(rows, stats.Row{
			Bucket:          k.Bucket,
			CityID:          k.CityID,
			ZoneID:          k.ZoneID,
			ZoneName:        k.ZoneName,
			Kvt:             t.Kvt,
			Rides:           float64(r.Rides),
			Gross:           r.Gross,
			BonusPaid:       r.BonusPaid,
			Discount:        r.Discount,
			Subscription:    r.Subscription,
			Debt:            sh.Debt,
			SubRevenue:      sh.SubRevenue,
			MultiSubRevenue: sh.MultiSubRevenue,
			GeneratedAt:     now,
		})
	}

	for k, r := range rides {
		if _, ok := telemetry[k]; !ok {
			sum.DroppedRideKeys++
			sum.DroppedRides += r.Rides
		}
	}

	stats.SortRows(rows)
	sum.Rows = len(rows)
	return rows, sum
}
