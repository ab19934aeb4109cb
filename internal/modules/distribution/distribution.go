// README: Distribution engine: spreads city-level totals over zones by ride share.
package distribution

import "zonerev/internal/modules/aggregate"

// Input holds the shared totals of one (bucket, city) that cannot be
// attributed to a zone directly.
type Input struct {
	Debt            float64
	SubRevenue      float64
	MultiSubRevenue float64
}

// Share is a zone's portion of the Input totals of its (bucket, city).
type Share struct {
	Debt            float64
	SubRevenue      float64
	MultiSubRevenue float64
}

// Distribute apportions every (bucket, city) total across the zones that
// have ride aggregates in that bucket and city, weighted by ride count.
// A city with zero rides yields zero shares. Missing inputs count as zero.
func Distribute(inputs map[aggregate.CityKey]Input, rides map[aggregate.Key]aggregate.RideStats) map[aggregate.Key]Share {
	totals := make(map[aggregate.CityKey]int64)
	for k, s := range rides {
		totals[k.City()] += s.Rides
	}

	out := make(map[aggregate.Key]Share, len(rides))
	for k, s := range rides {
		total := totals[k.City()]
		if total == 0 {
			out[k] = Share{}
			continue
		}
		in := inputs[k.City()]
		frac := float64(s.Rides) / float64(total)
		out[k] = Share{
			Debt:            in.Debt * frac,
			SubRevenue:      in.SubRevenue * frac,
			MultiSubRevenue: in.MultiSubRevenue * frac,
		}
	}
	return out
}

// Undistributed returns the inputs whose (bucket, city) has no ride in any
// zone; their totals are not represented in any share.
func Undistributed(inputs map[aggregate.CityKey]Input, rides map[aggregate.Key]aggregate.RideStats) []aggregate.CityKey {
	totals := make(map[aggregate.CityKey]int64)
	for k, s := range rides {
		totals[k.City()] += s.Rides
	}
	var out []aggregate.CityKey
	for ck, in := range inputs {
		if in == (Input{}) {
			continue
		}
		if totals[ck] == 0 {
			out = append(out, ck)
		}
	}
	return out
}
