package maps

import (
	"context"
	"errors"
	"fmt"

	"googlemaps.github.io/maps"

	"zonerev/internal/types"
)

var ErrNoAddress = errors.New("no address for position")

// reverseGeocoder is the part of *maps.Client the Geocoder calls.
type reverseGeocoder interface {
	ReverseGeocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// Geocoder turns a position into a human-readable address.
type Geocoder struct {
	client   reverseGeocoder
	language string
}

// NewGeocoder creates a Geocoder with the given API key. language may be empty.
func NewGeocoder(apiKey, language string) (*Geocoder, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &Geocoder{client: client, language: language}, nil
}

// Label returns the formatted address of the first reverse geocoding result.
func (g *Geocoder) Label(ctx context.Context, p types.Point) (string, error) {
	results, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng:   &maps.LatLng{Lat: p.Lat, Lng: p.Lng},
		Language: g.language,
	})
	if err != nil {
		return "", fmt.Errorf("maps api error: %w", err)
	}
	for _, r := range results {
		if r.FormattedAddress != "" {
			return r.FormattedAddress, nil
		}
	}
	return "", ErrNoAddress
}
