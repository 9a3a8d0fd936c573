package tui

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/jpalmerr/creditpulse/analytics"
)

func TestProgressBar(t *testing.T) {
	plain := lipgloss.NewStyle()
	tests := []struct {
		pct        float64
		wantFilled int
	}{
		{0, 0},
		{50, 5},
		{100, 10},
		{150, 10},
		{-5, 0},
	}
	for _, tt := range tests {
		bar := progressBar(tt.pct, 10, plain, plain)
		if got := strings.Count(bar, "█"); got != tt.wantFilled {
			t.Errorf("progressBar(%v) filled = %d, want %d", tt.pct, got, tt.wantFilled)
		}
		if got := utf8.RuneCountInString(bar); got != 10 {
			t.Errorf("progressBar(%v) width = %d, want 10", tt.pct, got)
		}
	}
}

func TestSparkline(t *testing.T) {
	points := []analytics.PricePoint{{Price: 10}, {Price: 15}, {Price: 20}}
	got := sparkline(points)
	if got != "▁▄█" {
		t.Errorf("sparkline() = %q, want %q", got, "▁▄█")
	}

	flat := sparkline([]analytics.PricePoint{{Price: 3}, {Price: 3}})
	if flat != "▁▁" {
		t.Errorf("flat sparkline() = %q, want %q", flat, "▁▁")
	}

	if sparkline(nil) != "" {
		t.Error("empty sparkline should be empty")
	}
}

func TestSigned(t *testing.T) {
	if got := signed("2.4"); got != "+2.4" {
		t.Errorf("signed(2.4) = %q", got)
	}
	if got := signed("-0.5"); got != "-0.5" {
		t.Errorf("signed(-0.5) = %q", got)
	}
}
