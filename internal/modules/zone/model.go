// README: Zone catalog entities. A zone is a named polygon used to attribute geo points.
package zone

import (
	"errors"

	"github.com/paulmach/orb"

	"zonerev/internal/types"
)

// UnassignedID is reserved for samples that fall inside no catalog polygon.
const (
	UnassignedID   int64 = 0
	UnassignedName       = "0"
)

var (
	ErrCatalog         = errors.New("zone catalog unavailable")
	ErrInvalidBoundary = errors.New("invalid zone boundary")
)

// Zone is immutable for the duration of a run.
type Zone struct {
	ID       int64
	Name     string
	Boundary []types.Point
}

// Record is a raw catalog row before its boundary is decoded.
type Record struct {
	ID      int64
	Name    string
	Encoded string
}

// Ring returns the boundary as a closed planar ring with X=lng, Y=lat.
func (z Zone) Ring() orb.Ring {
	ring := make(orb.Ring, 0, len(z.Boundary)+1)
	for _, p := range z.Boundary {
		ring = append(ring, orb.Point{p.Lng, p.Lat})
	}
	if len(ring) > 0 && !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return ring
}

// Bound is the zone's bounding box in the same X=lng, Y=lat space as Ring.
func (z Zone) Bound() orb.Bound {
	return z.Ring().Bound()
}

// Validate checks that the boundary has at least three distinct vertices
// and only in-range coordinates.
func (z Zone) Validate() error {
	if z.ID == UnassignedID {
		return errors.New("zone id 0 is reserved for unassigned samples")
	}
	for _, p := range z.Boundary {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	distinct := make(map[types.Point]struct{}, len(z.Boundary))
	for _, p := range z.Boundary {
		distinct[p] = struct{}{}
	}
	if len(distinct) < 3 {
		return ErrInvalidBoundary
	}
	return nil
}
