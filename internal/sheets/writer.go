// README: Zone metadata sheet: clears a Google Sheets range and rewrites the zone catalog into it.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb/planar"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"zonerev/internal/modules/zone"
	"zonerev/internal/types"
)

var ErrMetadataSink = errors.New("metadata sink failed")

// MetadataSinkError is reported, never fatal to a run.
type MetadataSinkError struct {
	Stage string
	Err   error
}

func (e *MetadataSinkError) Error() string {
	return fmt.Sprintf("sheets %s: %v", e.Stage, e.Err)
}

func (e *MetadataSinkError) Unwrap() []error { return []error{ErrMetadataSink, e.Err} }

// Values is the subset of the Sheets values API the writer needs.
type Values interface {
	Clear(ctx context.Context, spreadsheetID, a1Range string) error
	Update(ctx context.Context, spreadsheetID, a1Range string, rows [][]interface{}) error
}

var Header = []interface{}{"zone_id", "zone_name", "vertices", "min_lat", "min_lng", "max_lat", "max_lng", "note", "refreshed_at"}

const unassignedNote = "fallback for positions outside every zone"

// Labeler names a position, typically by reverse geocoding it.
type Labeler interface {
	Label(ctx context.Context, p types.Point) (string, error)
}

type Writer struct {
	values        Values
	labeler       Labeler
	spreadsheetID string
	a1Range       string
	now           func() time.Time
}

type Option func(*Writer)

// WithLabeler fills the note column with the label of each zone centroid.
// Labels that fail to resolve are left blank.
func WithLabeler(l Labeler) Option {
	return func(w *Writer) { w.labeler = l }
}

func NewWriter(values Values, spreadsheetID, a1Range string, opts ...Option) *Writer {
	w := &Writer{values: values, spreadsheetID: spreadsheetID, a1Range: a1Range, now: time.Now}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Refresh replaces the sheet range with one row per zone, preceded by the
// header and the unassigned fallback. Single attempt.
func (w *Writer) Refresh(ctx context.Context, zones []zone.Zone) error {
	if err := w.values.Clear(ctx, w.spreadsheetID, w.a1Range); err != nil {
		return &MetadataSinkError{Stage: "clear", Err: err}
	}
	rows := Rows(zones, w.labels(ctx, zones), w.now())
	if err := w.values.Update(ctx, w.spreadsheetID, w.a1Range, rows); err != nil {
		return &MetadataSinkError{Stage: "update", Err: err}
	}
	return nil
}

func (w *Writer) labels(ctx context.Context, zones []zone.Zone) map[int64]string {
	if w.labeler == nil {
		return nil
	}
	out := make(map[int64]string, len(zones))
	for _, z := range zones {
		if ctx.Err() != nil {
			break
		}
		c, _ := planar.CentroidArea(z.Ring())
		label, err := w.labeler.Label(ctx, types.Point{Lat: c.Y(), Lng: c.X()})
		if err != nil {
			continue
		}
		out[z.ID] = label
	}
	return out
}

// Rows renders the sheet content. labels is keyed by zone id and may be nil.
func Rows(zones []zone.Zone, labels map[int64]string, refreshedAt time.Time) [][]interface{} {
	stamp := refreshedAt.UTC().Format(time.RFC3339)
	out := make([][]interface{}, 0, len(zones)+2)
	out = append(out, Header)
	out = append(out, []interface{}{zone.UnassignedID, zone.UnassignedName, 0, "", "", "", "", unassignedNote, stamp})
	for _, z := range zones {
		b := z.Bound()
		out = append(out, []interface{}{
			z.ID, z.Name, len(z.Boundary),
			b.Min.Y(), b.Min.X(), b.Max.Y(), b.Max.X(),
			labels[z.ID], stamp,
		})
	}
	return out
}

type googleValues struct {
	svc *gsheets.Service
}

// NewGoogleValues builds the Sheets client. An empty credentialsFile falls
// back to application default credentials.
func NewGoogleValues(ctx context.Context, credentialsFile string) (Values, error) {
	opts := []option.ClientOption{option.WithScopes(gsheets.SpreadsheetsScope)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets.NewService: %w", err)
	}
	return &googleValues{svc: svc}, nil
}

func (g *googleValues) Clear(ctx context.Context, spreadsheetID, a1Range string) error {
	_, err := g.svc.Spreadsheets.Values.Clear(spreadsheetID, a1Range, &gsheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

func (g *googleValues) Update(ctx context.Context, spreadsheetID, a1Range string, rows [][]interface{}) error {
	_, err := g.svc.Spreadsheets.Values.
		Update(spreadsheetID, a1Range, &gsheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}
