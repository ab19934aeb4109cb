package rollup_test

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"zonerev/internal/modules/aggregate"
	"zonerev/internal/modules/distribution"
	"zonerev/internal/modules/rollup"
)

func TestMerge(t *testing.T) {
	bucket := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	now := time.Date(2024, 1, 1, 12, 5, 0, 0, time.UTC)
	z1 := aggregate.Key{Bucket: bucket, CityID: 1, ZoneID: 1, ZoneName: "Z1"}
	z0 := aggregate.Key{Bucket: bucket, CityID: 1, ZoneID: 0, ZoneName: "0"}

	Convey("Given one vehicle in Z1 with a ride and one unassigned vehicle", t, func() {
		telemetry := map[aggregate.Key]aggregate.TelemetryStats{
			z1: {Kvt: 1},
			z0: {Kvt: 1},
		}
		rides := map[aggregate.Key]aggregate.RideStats{
			z1: {Rides: 1, Gross: 100},
		}
		inputs := map[aggregate.CityKey]distribution.Input{
			z1.City(): {Debt: 50},
		}
		shares := distribution.Distribute(inputs, rides)

		Convey("Merge emits both keys with the city debt on the riding zone", func() {
			rows, sum := rollup.Merge(telemetry, rides, shares, now)
			So(rows, ShouldHaveLength, 2)
			So(sum.Rows, ShouldEqual, 2)
			So(sum.MatchedRideKeys, ShouldEqual, 1)
			So(sum.DroppedRideKeys, ShouldEqual, 0)

			unassigned, zoned := rows[0], rows[1]
			So(unassigned.ZoneID, ShouldEqual, int64(0))
			So(unassigned.ZoneName, ShouldEqual, "0")
			So(unassigned.Kvt, ShouldEqual, 1.0)
			So(unassigned.Rides, ShouldEqual, 0.0)
			So(unassigned.Debt, ShouldEqual, 0.0)

			So(zoned.ZoneID, ShouldEqual, int64(1))
			So(zoned.Kvt, ShouldEqual, 1.0)
			So(zoned.Rides, ShouldEqual, 1.0)
			So(zoned.Gross, ShouldEqual, 100.0)
			So(zoned.Debt, ShouldEqual, 50.0)
		})

		Convey("Every row carries the supplied generation time", func() {
			rows, _ := rollup.Merge(telemetry, rides, shares, now)
			for _, r := range rows {
				So(r.GeneratedAt, ShouldEqual, now)
			}
		})
	})

	Convey("Given ride keys without telemetry", t, func() {
		telemetry := map[aggregate.Key]aggregate.TelemetryStats{z0: {Kvt: 3}}
		rides := map[aggregate.Key]aggregate.RideStats{z1: {Rides: 4, Gross: 40}}

		Convey("They are dropped and counted", func() {
			rows, sum := rollup.Merge(telemetry, rides, nil, now)
			So(rows, ShouldHaveLength, 1)
			So(rows[0].ZoneID, ShouldEqual, int64(0))
			So(sum.DroppedRideKeys, ShouldEqual, 1)
			So(sum.DroppedRides, ShouldEqual, int64(4))
		})
	})

	Convey("Given no telemetry at all", t, func() {
		Convey("Merge returns an empty, non-nil slice", func() {
			rows, sum := rollup.Merge(nil, nil, nil, now)
			So(rows, ShouldNotBeNil)
			So(rows, ShouldBeEmpty)
			So(sum.Rows, ShouldEqual, 0)
		})
	})
}

func TestMerge_Deterministic(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	telemetry := make(map[aggregate.Key]aggregate.TelemetryStats)
	for h := 0; h < 5; h++ {
		for city := int64(1); city <= 3; city++ {
			for zone := int64(0); zone < 4; zone++ {
				k := aggregate.Key{Bucket: base.Add(time.Duration(h) * time.Hour), CityID: city, ZoneID: zone, ZoneName: "z"}
				telemetry[k] = aggregate.TelemetryStats{Kvt: float64(h + int(zone))}
			}
		}
	}

	first, _ := rollup.Merge(telemetry, nil, nil, base)
	for i := 0; i < 10; i++ {
		again, _ := rollup.Merge(telemetry, nil, nil, base)
		if len(again) != len(first) {
			t.Fatalf("row count changed: %d vs %d", len(again), len(first))
		}
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("row %d differs between runs: %+v vs %+v", j, first[j], again[j])
			}
		}
	}
	for j := 1; j < len(first); j++ {
		a, b := first[j-1], first[j]
		if b.Bucket.Before(a.Bucket) || (b.Bucket.Equal(a.Bucket) && b.CityID < a.CityID) {
			t.Fatalf("rows out of order at %d", j)
		}
	}
}
