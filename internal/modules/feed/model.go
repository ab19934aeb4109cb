// README: Upstream feeds: vehicle telemetry snapshots, ride revenue records, and city totals.
package feed

import (
	"errors"
	"fmt"
	"time"

	"zonerev/internal/modules/aggregate"
	"zonerev/internal/modules/attribution"
	"zonerev/internal/types"
)

var ErrSource = errors.New("upstream source failed")

// TelemetrySample is one vehicle position from the latest snapshot of an hour.
type TelemetrySample struct {
	VehicleID  int64
	Timestamp  time.Time
	CityID     int64
	Position   types.Point
	StatusCode int
}

// RideRecord is one ride with its start position and amounts.
type RideRecord struct {
	RideID            int64
	Timestamp         time.Time
	CityID            int64
	Start             types.Point
	RideAmount        float64
	Discount          float64
	BonusDiscount     float64
	SubscriptionPrice float64
}

// SourceError carries the failing query and the requested window.
type SourceError struct {
	Query  string
	Window types.TimeRange
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("feed %s %s: %v", e.Query, e.Window, e.Err)
}

func (e *SourceError) Unwrap() []error { return []error{ErrSource, e.Err} }

// TelemetrySamples converts snapshots to attribution samples. The sample id
// is the vehicle id; with the snapshot timestamp it names the history row.
func TelemetrySamples(in []TelemetrySample) []attribution.Sample {
	out := make([]attribution.Sample, len(in))
	for i, t := range in {
		out[i] = attribution.Sample{ID: t.VehicleID, Timestamp: t.Timestamp, CityID: t.CityID, Position: t.Position}
	}
	return out
}

// RideSamples splits rides into attribution samples and the parallel slice of
// amounts expected by aggregate.Rides.
func RideSamples(in []RideRecord) ([]attribution.Sample, []aggregate.RideAmounts) {
	samples := make([]attribution.Sample, len(in))
	amounts := make([]aggregate.RideAmounts, len(in))
	for i, r := range in {
		samples[i] = attribution.Sample{ID: r.RideID, Timestamp: r.Timestamp, CityID: r.CityID, Position: r.Start}
		amounts[i] = aggregate.RideAmounts{
			Amount:        r.RideAmount,
			Discount:      r.Discount,
			BonusDiscount: r.BonusDiscount,
			Subscription:  r.SubscriptionPrice,
		}
	}
	return samples, amounts
}
