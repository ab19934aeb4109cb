// README: Attribution inputs/outputs. A sample is attributed to at most one zone.
package attribution

import (
	"errors"
	"time"

	"zonerev/internal/types"
)

// Implementation names accepted by New.
const (
	KindBruteForce = "bruteforce"
	KindRTree      = "rtree"
)

var ErrUnknownAttributor = errors.New("unknown attributor")

// Sample is the geometry-only view of a telemetry sample or a ride start.
type Sample struct {
	ID        int64
	Timestamp time.Time
	CityID    int64
	Position  types.Point
}

// Result pairs a sample with its zone. Matches is the number of catalog
// zones containing the point; anything above 1 means overlapping zones and
// the first one in catalog order was chosen.
type Result struct {
	Sample
	ZoneID   int64
	ZoneName string
	Matches  int
}

func (r Result) Assigned() bool { return r.Matches > 0 }

// Attributor assigns every sample to its containing zone.
type Attributor interface {
	Attribute(samples []Sample) ([]Result, error)
}
