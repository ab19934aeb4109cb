// README: Point-in-zone attribution: brute-force scan and R-tree pre-filtered variants.
package attribution

import (
	"fmt"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/tidwall/rtree"

	"zonerev/internal/modules/zone"
)

// New returns the attributor registered under kind.
func New(kind string, zones []zone.Zone) (Attributor, error) {
	switch kind {
	case KindBruteForce:
		return NewBruteForce(zones), nil
	case KindRTree, "":
		return NewIndexed(zones), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAttributor, kind)
	}
}

// polygons holds the planar form of the catalog, indexed by catalog position.
type polygons struct {
	zones []zone.Zone
	rings []orb.Ring
}

func newPolygons(zones []zone.Zone) polygons {
	p := polygons{zones: zones, rings: make([]orb.Ring, len(zones))}
	for i, z := range zones {
		p.rings[i] = z.Ring()
	}
	return p
}

// resolve tests the candidate zones (ascending catalog positions) and keeps
// the first hit. RingContains treats edges and vertices as inside.
func (p polygons) resolve(s Sample, pt orb.Point, candidates []int) Result {
	res := Result{Sample: s, ZoneID: zone.UnassignedID, ZoneName: zone.UnassignedName}
	for _, i := range candidates {
		if !planar.RingContains(p.rings[i], pt) {
			continue
		}
		if res.Matches == 0 {
			res.ZoneID = p.zones[i].ID
			res.ZoneName = p.zones[i].Name
		}
		res.Matches++
	}
	return res
}

func toPlanar(s Sample) (orb.Point, error) {
	if err := s.Position.Validate(); err != nil {
		return orb.Point{}, fmt.Errorf("sample %d at %s: %w", s.ID, s.Timestamp.UTC().Format(time.RFC3339), err)
	}
	return orb.Point{s.Position.Lng, s.Position.Lat}, nil
}

// BruteForce checks every sample against every zone.
type BruteForce struct {
	polys polygons
	all   []int
}

func NewBruteForce(zones []zone.Zone) *BruteForce {
	all := make([]int, len(zones))
	for i := range all {
		all[i] = i
	}
	return &BruteForce{polys: newPolygons(zones), all: all}
}

func (b *BruteForce) Attribute(samples []Sample) ([]Result, error) {
	out := make([]Result, len(samples))
	for i, s := range samples {
		pt, err := toPlanar(s)
		if err != nil {
			return nil, err
		}
		out[i] = b.polys.resolve(s, pt, b.all)
	}
	return out, nil
}

// Indexed narrows candidates with an R-tree over zone bounding boxes before
// running the same containment test as BruteForce.
type Indexed struct {
	polys polygons
	tree  rtree.RTree
}

func NewIndexed(zones []zone.Zone) *Indexed {
	idx := &Indexed{polys: newPolygons(zones)}
	for i, ring := range idx.polys.rings {
		b := ring.Bound()
		idx.tree.Insert([2]float64{b.Min[0], b.Min[1]}, [2]float64{b.Max[0], b.Max[1]}, i)
	}
	return idx
}

func (x *Indexed) Attribute(samples []Sample) ([]Result, error) {
	out := make([]Result, len(samples))
	var candidates []int
	for i, s := range samples {
		pt, err := toPlanar(s)
		if err != nil {
			return nil, err
		}
		candidates = candidates[:0]
		q := [2]float64{pt[0], pt[1]}
		x.tree.Search(q, q, func(_, _ [2]float64, data interface{}) bool {
			candidates = append(candidates, data.(int))
			return true
		})
		sort.Ints(candidates)
		out[i] = x.polys.resolve(s, pt, candidates)
	}
	return out, nil
}
