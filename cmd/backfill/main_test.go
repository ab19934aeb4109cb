package main

import (
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	plus3 := time.FixedZone("UTC+3", 3*3600)
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2024-01-02T10:00:00Z", time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), false},
		{"2024-01-02", time.Date(2024, 1, 2, 0, 0, 0, 0, plus3), false},
		{"", time.Time{}, true},
		{"02.01.2024", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := parseTime(tt.in, plus3)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseTime(%q) error = %v", tt.in, err)
		}
		if !tt.wantErr && !got.Equal(tt.want) {
			t.Errorf("parseTime(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
