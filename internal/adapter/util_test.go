package adapter

import (
	"testing"

	"github.com/amishk599/jobsync/internal/model"
)

func TestDisplayName(t *testing.T) {
	tests := map[string]string{
		"acme":         "Acme",
		"hugging-face": "Hugging Face",
		"scale_ai":     "Scale Ai",
		"":             "",
	}
	for in, want := range tests {
		if got := displayName(in); got != want {
			t.Errorf("displayName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWindow(t *testing.T) {
	jobs := []model.RawJob{{Title: "a"}, {Title: "b"}, {Title: "c"}}

	tests := []struct {
		offset, limit int
		want          int
	}{
		{0, 0, 3},
		{1, 0, 2},
		{1, 1, 1},
		{3, 0, 0},
		{-1, 2, 2},
	}
	for _, tc := range tests {
		if got := window(jobs, tc.offset, tc.limit); len(got) != tc.want {
			t.Errorf("window(offset=%d, limit=%d) len = %d, want %d", tc.offset, tc.limit, len(got), tc.want)
		}
	}
}

func TestFormatSalaryRange(t *testing.T) {
	tests := []struct {
		lo, hi   float64
		currency string
		want     string
	}{
		{100000, 150000, "USD", "$100,000 - $150,000"},
		{100000, 150000, "", "$100,000 - $150,000"},
		{80000, 95000, "eur", "EUR 80,000 - 95,000"},
		{75000, 0, "USD", "$75,000"},
		{0, 0, "USD", ""},
		{999, 999, "USD", "$999"},
	}
	for _, tc := range tests {
		if got := formatSalaryRange(tc.lo, tc.hi, tc.currency); got != tc.want {
			t.Errorf("formatSalaryRange(%v, %v, %q) = %q, want %q", tc.lo, tc.hi, tc.currency, got, tc.want)
		}
	}
}
