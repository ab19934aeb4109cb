package attribution

import (
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"zonerev/internal/modules/zone"
	"zonerev/internal/types"
)

func square(id int64, name string, lat, lng, size float64) zone.Zone {
	return zone.Zone{ID: id, Name: name, Boundary: []types.Point{
		{Lat: lat, Lng: lng}, {Lat: lat, Lng: lng + size}, {Lat: lat + size, Lng: lng + size}, {Lat: lat + size, Lng: lng},
	}}
}

func scenarioZones() []zone.Zone {
	return []zone.Zone{
		square(1, "Z1", 0, 0, 2),
		square(2, "Z2", 10, 10, 2),
	}
}

func implementations(zones []zone.Zone) map[string]Attributor {
	return map[string]Attributor{
		KindBruteForce: NewBruteForce(zones),
		KindRTree:      NewIndexed(zones),
	}
}

func TestAttribute_Containment(t *testing.T) {
	tests := []struct {
		name     string
		pos      types.Point
		wantZone int64
		wantName string
	}{
		{"interior", types.Point{Lat: 1, Lng: 1}, 1, "Z1"},
		{"second zone", types.Point{Lat: 11, Lng: 11.5}, 2, "Z2"},
		{"on vertex", types.Point{Lat: 0, Lng: 0}, 1, "Z1"},
		{"on far vertex", types.Point{Lat: 2, Lng: 2}, 1, "Z1"},
		{"on edge", types.Point{Lat: 1, Lng: 2}, 1, "Z1"},
		{"far outside", types.Point{Lat: 20, Lng: 20}, zone.UnassignedID, zone.UnassignedName},
		{"between zones", types.Point{Lat: 5, Lng: 5}, zone.UnassignedID, zone.UnassignedName},
	}
	for kind, a := range implementations(scenarioZones()) {
		for _, tt := range tests {
			t.Run(kind+"/"+tt.name, func(t *testing.T) {
				res, err := a.Attribute([]Sample{{ID: 1, CityID: 1, Position: tt.pos}})
				if err != nil {
					t.Fatalf("Attribute() error = %v", err)
				}
				if res[0].ZoneID != tt.wantZone || res[0].ZoneName != tt.wantName {
					t.Errorf("got zone (%d, %q), want (%d, %q)", res[0].ZoneID, res[0].ZoneName, tt.wantZone, tt.wantName)
				}
			})
		}
	}
}

func TestAttribute_OverlapFirstCatalogZoneWins(t *testing.T) {
	zones := []zone.Zone{
		square(9, "late id first in catalog", 0, 0, 4),
		square(4, "second", 1, 1, 4),
	}
	for kind, a := range implementations(zones) {
		res, err := a.Attribute([]Sample{{ID: 1, Position: types.Point{Lat: 2, Lng: 2}}})
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if res[0].ZoneID != 9 {
			t.Errorf("%s: zone = %d, want 9", kind, res[0].ZoneID)
		}
		if res[0].Matches != 2 {
			t.Errorf("%s: matches = %d, want 2", kind, res[0].Matches)
		}
	}
}

func TestAttribute_InvalidCoordinateFailsBatch(t *testing.T) {
	for kind, a := range implementations(scenarioZones()) {
		_, err := a.Attribute([]Sample{
			{ID: 1, Position: types.Point{Lat: 1, Lng: 1}},
			{ID: 4711, Timestamp: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), Position: types.Point{Lat: 91, Lng: 1}},
		})
		if !errors.Is(err, types.ErrInvalidCoordinate) {
			t.Errorf("%s: expected ErrInvalidCoordinate, got %v", kind, err)
		}
		if err != nil && !strings.Contains(err.Error(), "sample 4711 at 2024-01-01T10:00:00Z") {
			t.Errorf("%s: error does not name the sample: %v", kind, err)
		}
	}
}

func TestAttribute_NoZones(t *testing.T) {
	for kind, a := range implementations(nil) {
		res, err := a.Attribute([]Sample{{ID: 1, Position: types.Point{Lat: 1, Lng: 1}}})
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if res[0].Assigned() || res[0].ZoneName != "0" {
			t.Errorf("%s: expected unassigned, got %+v", kind, res[0])
		}
	}
}

func TestIndexedMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var zones []zone.Zone
	for i := 0; i < 40; i++ {
		zones = append(zones, square(int64(i+1), "z", rng.Float64()*20, rng.Float64()*20, 0.5+rng.Float64()*3))
	}
	samples := make([]Sample, 2000)
	for i := range samples {
		samples[i] = Sample{ID: int64(i), Position: types.Point{Lat: rng.Float64()*25 - 2, Lng: rng.Float64()*25 - 2}}
	}

	want, err := NewBruteForce(zones).Attribute(samples)
	if err != nil {
		t.Fatal(err)
	}
	got, err := NewIndexed(zones).Attribute(samples)
	if err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if want[i].ZoneID != got[i].ZoneID || want[i].Matches != got[i].Matches {
			t.Fatalf("sample %d: brute force %+v, indexed %+v", i, want[i], got[i])
		}
	}
}

func TestNew(t *testing.T) {
	if _, ok := mustNew(t, KindBruteForce).(*BruteForce); !ok {
		t.Error("expected *BruteForce")
	}
	if _, ok := mustNew(t, KindRTree).(*Indexed); !ok {
		t.Error("expected *Indexed")
	}
	if _, err := New("quadtree", nil); !errors.Is(err, ErrUnknownAttributor) {
		t.Errorf("expected ErrUnknownAttributor, got %v", err)
	}
}

func mustNew(t *testing.T, kind string) Attributor {
	t.Helper()
	a, err := New(kind, scenarioZones())
	if err != nil {
		t.Fatalf("New(%q): %v", kind, err)
	}
	return a
}
