// README: Zone boundary codec on top of the Google encoded-polyline format.
package maps

import (
	"errors"
	"fmt"

	"googlemaps.github.io/maps"

	"zonerev/internal/types"
)

// ErrDecode is matched by every *DecodeError.
var ErrDecode = errors.New("boundary decode failed")

const (
	alphabetMin = 63
	alphabetMax = 126
	// A 64-bit value never needs more than 13 five-bit chunks.
	maxChunks = 13
)

// DecodeError describes where an encoded boundary stopped being valid.
type DecodeError struct {
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode boundary at offset %d: %s", e.Offset, e.Reason)
}

func (e *DecodeError) Unwrap() error { return ErrDecode }

// DecodeBoundary turns an encoded polyline into its ordered vertex sequence.
// The maps client tolerates truncated input silently, so the string is
// checked for a well-formed sequence of lat/lng varint pairs first.
func DecodeBoundary(encoded string) ([]types.Point, error) {
	if err := validate(encoded); err != nil {
		return nil, err
	}
	path, err := maps.DecodePolyline(encoded)
	if err != nil {
		return nil, &DecodeError{Offset: len(encoded), Reason: err.Error()}
	}
	points := make([]types.Point, len(path))
	for i, ll := range path {
		points[i] = types.Point{Lat: ll.Lat, Lng: ll.Lng}
	}
	return points, nil
}

// EncodeBoundary is the inverse of DecodeBoundary at 1e-5 precision.
func EncodeBoundary(points []types.Point) string {
	path := make([]maps.LatLng, len(points))
	for i, p := range points {
		path[i] = maps.LatLng{Lat: p.Lat, Lng: p.Lng}
	}
	return maps.Encode(path)
}

func validate(encoded string) error {
	values, chunks := 0, 0
	for i := 0; i < len(encoded); i++ {
		c := encoded[i]
		if c < alphabetMin || c > alphabetMax {
			return &DecodeError{Offset: i, Reason: fmt.Sprintf("byte %q outside polyline alphabet", c)}
		}
		chunks++
		if chunks > maxChunks {
			return &DecodeError{Offset: i, Reason: "varint overflow"}
		}
		if c-alphabetMin < 0x20 {
			values++
			chunks = 0
		}
	}
	if chunks != 0 {
		return &DecodeError{Offset: len(encoded), Reason: "truncated varint"}
	}
	if values%2 != 0 {
		return &DecodeError{Offset: len(encoded), Reason: "latitude without longitude"}
	}
	return nil
}
