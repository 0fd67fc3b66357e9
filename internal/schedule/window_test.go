package schedule

import (
	"testing"
	"time"
)

func TestInWindow(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		at   string
		want bool
	}{
		{"winter evening after close", "2024-01-15T22:00:00Z", false}, // 23:00 local
		{"summer mid-morning", "2024-07-15T10:00:00Z", true},         // 12:00 local
		{"winter open boundary", "2024-01-15T08:00:00Z", true},       // 09:00 local
		{"winter just before open", "2024-01-15T07:59:00Z", false},   // 08:59 local
		{"summer close boundary", "2024-07-15T19:00:00Z", false},     // 21:00 local, exclusive
		{"summer just before close", "2024-07-15T18:59:00Z", true},   // 20:59 local
		{"march uses winter offset", "2024-03-31T20:30:00Z", false},  // 21:30 local
		{"april uses summer offset", "2024-04-01T19:30:00Z", false},  // 21:30 local
		{"october still summer offset", "2024-10-15T07:30:00Z", true}, // 09:30 local
		{"november back to winter", "2024-11-15T07:30:00Z", false},    // 08:30 local
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			at, err := time.Parse(time.RFC3339, tc.at)
			if err != nil {
				t.Fatalf("bad case time: %v", err)
			}
			if got := InWindow(at, 9, 21); got != tc.want {
				t.Fatalf("InWindow(%s) = %v; want %v", tc.at, got, tc.want)
			}
		})
	}
}
