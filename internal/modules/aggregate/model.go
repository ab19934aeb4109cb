package aggregate

import (
	"fmt"
	"time"
)

// Key identifies one aggregated row. ZoneName rides along for readability
// and must agree with ZoneID.
type Key struct {
	Bucket   time.Time
	CityID   int64
	ZoneID   int64
	ZoneName string
}

// CityKey is the granularity of the shared financial totals.
type CityKey struct {
	Bucket time.Time
	CityID int64
}

func (k Key) City() CityKey { return CityKey{Bucket: k.Bucket, CityID: k.CityID} }

// TelemetryStats holds the vehicle count for a key. At daily grain it is the
// mean of the hourly counts.
type TelemetryStats struct {
	Kvt float64
}

// RideStats holds ride-derived counts and sums for a key.
type RideStats struct {
	Rides        int64
	Gross        float64
	BonusPaid    float64
	Discount     float64
	Subscription float64
}

func (r RideStats) add(o RideStats) RideStats {
	return RideStats{
		Rides:        r.Rides + o.Rides,
		Gross:        r.Gross + o.Gross,
		BonusPaid:    r.BonusPaid + o.BonusPaid,
		Discount:     r.Discount + o.Discount,
		Subscription: r.Subscription + o.Subscription,
	}
}

// RideAmounts are the financial fields of one ride record.
type RideAmounts struct {
	Amount        float64
	Discount      float64
	BonusDiscount float64
	Subscription  float64
}

// InconsistentZoneNameError signals catalog/data drift: one zone id carried
// two different names within a single aggregation.
type InconsistentZoneNameError struct {
	ZoneID int64
	First  string
	Second string
}

func (e *InconsistentZoneNameError) Error() string {
	return fmt.Sprintf("zone %d seen as both %q and %q", e.ZoneID, e.First, e.Second)
}
