package utils

import (
	"testing"
	"time"
)

func TestWholeDaysBetween(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		end  time.Time
		want int
	}{
		{start.Add(23 * time.Hour), 0},
		{start.Add(24 * time.Hour), 1},
		{start.Add(20*24*time.Hour + time.Hour), 20},
		{start.Add(-time.Hour), 0},
	}
	for _, tc := range cases {
		if got := WholeDaysBetween(start, tc.end); got != tc.want {
			t.Fatalf("WholeDaysBetween(%v) = %d, want %d", tc.end, got, tc.want)
		}
	}
}

func TestCeilInt(t *testing.T) {
	if got := CeilInt(6.0 * 1.3); got != 8 {
		t.Fatalf("expected 8, got %d", got)
	}
	if got := CeilInt(10.0 * 1.3); got != 13 {
		t.Fatalf("expected 13 for float noise, got %d", got)
	}
	if got := CeilInt(7.01); got != 8 {
		t.Fatalf("expected 8, got %d", got)
	}
}
