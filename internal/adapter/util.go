package adapter

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/amishk599/jobsync/internal/model"
)

// displayName derives a company display name from its slug:
// "hugging-face" becomes "Hugging Face".
func displayName(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool {
		return r == '-' || r == '_' || unicode.IsSpace(r)
	})
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// window applies offset and limit to a slice. A zero limit means no cap.
func window(jobs []model.RawJob, offset, limit int) []model.RawJob {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(jobs) {
		return nil
	}
	jobs = jobs[offset:]
	if limit > 0 && limit < len(jobs) {
		jobs = jobs[:limit]
	}
	return jobs
}

// valid reports whether a job carries the fields every consumer relies on.
func valid(job model.RawJob) bool {
	return strings.TrimSpace(job.Title) != "" && strings.TrimSpace(job.SourceURL) != ""
}

// formatSalaryRange renders a numeric range, e.g. "$100,000 - $150,000" or
// "EUR 80,000 - 95,000". Returns "" when no bound is known.
func formatSalaryRange(lo, hi float64, currency string) string {
	if lo <= 0 && hi <= 0 {
		return ""
	}
	prefix, sep := "$", "$"
	if c := strings.ToUpper(strings.TrimSpace(currency)); c != "" && c != "USD" {
		prefix, sep = c+" ", ""
	}
	switch {
	case lo > 0 && hi > 0 && hi != lo:
		return prefix + groupThousands(lo) + " - " + sep + groupThousands(hi)
	case lo > 0:
		return prefix + groupThousands(lo)
	default:
		return prefix + groupThousands(hi)
	}
}

func groupThousands(v float64) string {
	s := strconv.FormatInt(int64(v), 10)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// parseTime tries the layouts boards use for publication dates.
func parseTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
