package utils

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// WholeDaysBetween returns the number of complete days from start to end. It is never negative.
func WholeDaysBetween(start, end time.Time) int {
	if start.IsZero() || end.Before(start) {
		return 0
	}
	return int(end.Sub(start) / day)
}

// FractionalDays converts the span between two timestamps into days.
func FractionalDays(start, end time.Time) float64 {
	return end.Sub(start).Hours() / 24
}

// AddDays shifts t by n whole days.
func AddDays(t time.Time, n int) time.Time {
	return t.Add(time.Duration(n) * day)
}

// CeilInt rounds up to the next integer, tolerating float noise just above an integer.
func CeilInt(v float64) int {
	rounded := math.Round(v)
	if math.Abs(v-rounded) < 1e-9 {
		return int(rounded)
	}
	return int(math.Ceil(v))
}
