// README: Zone catalog service: loads active zones and decodes their boundaries.
package zone

import (
	"context"
	"fmt"

	"zonerev/internal/maps"
)

// Source is the read side of the catalog.
type Source interface {
	Active(ctx context.Context, namePattern string) ([]Record, error)
}

type Service struct {
	source      Source
	namePattern string
}

func NewService(source Source, namePattern string) *Service {
	return &Service{source: source, namePattern: namePattern}
}

// Load fetches and decodes the catalog. Any corrupt boundary aborts the load
// since it would invalidate every attribution of the run.
func (s *Service) Load(ctx context.Context) ([]Zone, error) {
	records, err := s.source.Active(ctx, s.namePattern)
	if err != nil {
		return nil, fmt.Errorf("%w: pattern %q: %v", ErrCatalog, s.namePattern, err)
	}
	return Decode(records)
}

// Decode converts raw catalog rows into validated zones, preserving order.
func Decode(records []Record) ([]Zone, error) {
	zones := make([]Zone, 0, len(records))
	for _, r := range records {
		boundary, err := maps.DecodeBoundary(r.Encoded)
		if err != nil {
			return nil, fmt.Errorf("zone %d (%s): %w", r.ID, r.Name, err)
		}
		z := Zone{ID: r.ID, Name: r.Name, Boundary: boundary}
		if err := z.Validate(); err != nil {
			return nil, fmt.Errorf("zone %d (%s): %w", r.ID, r.Name, err)
		}
		zones = append(zones, z)
	}
	return zones, nil
}

// OverlappingBounds lists id pairs whose bounding boxes intersect. Only a
// hint: intersecting boxes do not imply intersecting polygons.
func OverlappingBounds(zones []Zone) [][2]int64 {
	var pairs [][2]int64
	for i := 0; i < len(zones); i++ {
		bi := zones[i].Bound()
		for j := i + 1; j < len(zones); j++ {
			if bi.Intersects(zones[j].Bound()) {
				pairs = append(pairs, [2]int64{zones[i].ID, zones[j].ID})
			}
		}
	}
	return pairs
}
