package aggregate

import (
	"errors"
	"testing"
	"time"

	"zonerev/internal/types"
)

func TestGrainTruncate(t *testing.T) {
	plus2 := time.FixedZone("UTC+2", 2*60*60)
	ts := time.Date(2026, 3, 1, 23, 45, 12, 500, time.UTC)

	tests := []struct {
		name string
		g    Grain
		loc  *time.Location
		want time.Time
	}{
		{"hour utc", Hourly, time.UTC, time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)},
		{"day utc", Daily, time.UTC, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"hour nil loc", Hourly, nil, time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)},
		{"day shifted zone crosses midnight", Daily, plus2, time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC)},
		{"hour shifted zone", Hourly, plus2, time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.g.Truncate(ts, tt.loc)
			if !got.Equal(tt.want) {
				t.Errorf("Truncate() = %s, want %s", got, tt.want)
			}
			if got != tt.want.UTC() {
				t.Errorf("Truncate() must return a normalised UTC value usable as a map key")
			}
		})
	}
}

func TestGrainTruncate_DSTRollback(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 2026-11-01 01:00-02:00 local happens twice: 05:00Z (EDT) and 06:00Z (EST).
	tests := []struct {
		name string
		at   time.Time
		want time.Time
	}{
		{"first 01:30", time.Date(2026, 11, 1, 5, 30, 0, 0, time.UTC), time.Date(2026, 11, 1, 5, 0, 0, 0, time.UTC)},
		{"repeated 01:30", time.Date(2026, 11, 1, 6, 30, 0, 0, time.UTC), time.Date(2026, 11, 1, 6, 0, 0, 0, time.UTC)},
		{"after rollback", time.Date(2026, 11, 1, 7, 59, 59, 0, time.UTC), time.Date(2026, 11, 1, 7, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Hourly.Truncate(tt.at, ny); got != tt.want {
				t.Errorf("Truncate() = %s, want %s", got, tt.want)
			}
		})
	}

	day := Daily.Truncate(time.Date(2026, 11, 1, 6, 30, 0, 0, time.UTC), ny)
	if want := time.Date(2026, 11, 1, 4, 0, 0, 0, time.UTC); day != want {
		t.Errorf("daily bucket = %s, want %s", day, want)
	}
	if next := Daily.Next(day, ny); next.Sub(day) != 25*time.Hour {
		t.Errorf("rollback day must last 25h, got %s", next.Sub(day))
	}
}

func TestGrainTruncate_MapKeyStable(t *testing.T) {
	a := Hourly.Truncate(time.Now(), time.UTC)
	b := Hourly.Truncate(a.Add(10*time.Minute).In(time.FixedZone("x", 3600)), time.UTC)
	m := map[Key]int{{Bucket: a, CityID: 1}: 1}
	if _, ok := m[Key{Bucket: b, CityID: 1}]; !ok {
		t.Fatal("buckets of the same hour must be equal map keys")
	}
}

func TestGrainWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 25, 0, 0, time.UTC)

	w := Hourly.Window(now, time.Hour, time.UTC)
	if !w.From.Equal(time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC)) || !w.To.Equal(time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)) {
		t.Errorf("hourly window = %s", w)
	}

	w = Hourly.Window(now, 0, time.UTC)
	if !w.From.Equal(time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)) {
		t.Errorf("zero lookback must start at the current bucket, got %s", w)
	}

	w = Daily.Window(now, 24*time.Hour, time.UTC)
	if !w.From.Equal(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)) || !w.To.Equal(time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("daily window = %s", w)
	}
}

func TestParseGrain(t *testing.T) {
	for in, want := range map[string]Grain{"hourly": Hourly, "HOUR": Hourly, " daily ": Daily, "d": Daily} {
		got, err := ParseGrain(in)
		if err != nil || got != want {
			t.Errorf("ParseGrain(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseGrain("weekly"); !errors.Is(err, ErrUnknownGrain) {
		t.Errorf("expected ErrUnknownGrain, got %v", err)
	}
	if Hourly.String() != "hourly" || Daily.String() != "daily" {
		t.Error("unexpected grain names")
	}
}

func TestGrainAlign(t *testing.T) {
	at := func(d, h, m int) time.Time { return time.Date(2026, 3, d, h, m, 0, 0, time.UTC) }
	tests := []struct {
		name     string
		g        Grain
		in, want types.TimeRange
	}{
		{"aligned hourly unchanged", Hourly, types.TimeRange{From: at(1, 10, 0), To: at(1, 12, 0)}, types.TimeRange{From: at(1, 10, 0), To: at(1, 12, 0)}},
		{"ragged hourly widened", Hourly, types.TimeRange{From: at(1, 10, 30), To: at(1, 11, 10)}, types.TimeRange{From: at(1, 10, 0), To: at(1, 12, 0)}},
		{"ragged daily widened", Daily, types.TimeRange{From: at(1, 10, 30), To: at(2, 1, 0)}, types.TimeRange{From: at(1, 0, 0), To: at(3, 0, 0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.g.Align(tt.in, time.UTC)
			if !got.From.Equal(tt.want.From) || !got.To.Equal(tt.want.To) {
				t.Errorf("Align(%s) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}
