package infra

import "testing"

func TestRoleClaim(t *testing.T) {
	tests := []struct {
		name   string
		claims map[string]interface{}
		want   string
	}{
		{"ops role", map[string]interface{}{"role": "ops"}, "ops"},
		{"missing", map[string]interface{}{}, ""},
		{"nil claims", nil, ""},
		{"wrong type", map[string]interface{}{"role": 1}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RoleClaim(tt.claims); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}
