package textnorm

import "regexp"

const rangeSep = `\s*(?:-|–|—|(?i:to))\s*`

// salaryPatterns are tried in order; the first match wins.
var salaryPatterns = []*regexp.Regexp{
	// $100k - $150k, €80K to €95K
	regexp.MustCompile(`[$£€]\s?\d{2,3}(?:\.\d)?[kK]` + rangeSep + `[$£€]?\s?\d{2,3}(?:\.\d)?[kK]`),
	// $100,000 - $150,000
	regexp.MustCompile(`\$\s?\d{1,3}(?:,\d{3})+(?:\.\d{2})?` + rangeSep + `\$?\s?\d{1,3}(?:,\d{3})+(?:\.\d{2})?`),
	// USD 120,000 - 180,000, 120,000 - 180,000 USD
	regexp.MustCompile(`(?:USD\s?\$?\d{1,3}(?:,\d{3})+` + rangeSep + `(?:USD\s?)?\$?\d{1,3}(?:,\d{3})+)|(?:\d{1,3}(?:,\d{3})+` + rangeSep + `\d{1,3}(?:,\d{3})+\s?USD)`),
	// £50,000 - £60,000
	regexp.MustCompile(`[£€]\s?\d{1,3}(?:[,.]\d{3})+` + rangeSep + `[£€]?\s?\d{1,3}(?:[,.]\d{3})+`),
	// 100k-150k
	regexp.MustCompile(`\b\d{2,3}[kK]` + rangeSep + `\d{2,3}[kK]\b`),
	// $40 - $60/hr, $45.50 to $55 per hour
	regexp.MustCompile(`\$\s?\d{2,3}(?:\.\d{2})?` + rangeSep + `\$?\s?\d{2,3}(?:\.\d{2})?\s*(?:/\s?(?:hr|hour)\b|(?i:per hour|an hour|hourly))`),
	// $150,000+, $120k+
	regexp.MustCompile(`[$£€]\s?(?:\d{1,3}(?:,\d{3})+|\d{2,3}[kK])\+`),
}

// ExtractSalaryFromDescription returns the first salary-like substring of
// text, verbatim, or "" when none is found.
func ExtractSalaryFromDescription(text string) string {
	if text == "" {
		return ""
	}
	for _, re := range salaryPatterns {
		if m := re.FindString(text); m != "" {
			return m
		}
	}
	return ""
}
