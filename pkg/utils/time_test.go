package utils

import (
	"testing"
	"time"
)

func TestRelativeAge(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		at       time.Time
		expected string
	}{
		{now.Add(-30 * time.Second), "0m ago"},
		{now.Add(-90 * time.Second), "1m ago"},
		{now.Add(-5 * time.Minute), "5m ago"},
		{now.Add(-2 * time.Hour), "120m ago"},
		{now.Add(time.Minute), "0m ago"}, // будущее время не должно давать отрицательных меток
	}

	for _, tt := range tests {
		if got := RelativeAge(tt.at, now); got != tt.expected {
			t.Errorf("RelativeAge(%v) = %q, want %q", now.Sub(tt.at), got, tt.expected)
		}
	}
}
