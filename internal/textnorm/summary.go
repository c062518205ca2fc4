package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// SummaryLength is the rune budget for a job's plain-text summary.
const SummaryLength = 300

// PlainText extracts readable text from an HTML fragment. Block boundaries
// and breaks become spaces, and whitespace is collapsed.
func PlainText(fragment string) string {
	if fragment == "" {
		return ""
	}
	tokens := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	skip := 0
	for {
		tt := tokens.Next()
		switch tt {
		case html.ErrorToken:
			return strings.TrimSpace(collapseSpace(b.String()))
		case html.TextToken:
			if skip == 0 {
				b.Write(tokens.Text())
			}
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			raw, _ := tokens.TagName()
			name := string(raw)
			switch {
			case dropTags[name] && tt == html.StartTagToken:
				skip++
			case dropTags[name] && tt == html.EndTagToken && skip > 0:
				skip--
			}
			if !inlineTags[name] && name != "a" && name != "span" {
				b.WriteByte(' ')
			}
		}
	}
}

// Summarize cuts text to at most limit runes, ending on a word boundary,
// and appends an ellipsis when anything was cut.
func Summarize(text string, limit int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= limit {
		return string(runes)
	}
	cut := runes[:limit]
	if !unicode.IsSpace(runes[limit]) {
		for i := len(cut) - 1; i > 0; i-- {
			if unicode.IsSpace(cut[i]) {
				cut = cut[:i]
				break
			}
		}
	}
	return strings.TrimRightFunc(string(cut), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}) + "…"
}
