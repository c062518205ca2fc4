package discovery

import (
	"strings"
	"unicode"

	"github.com/gosimple/slug"
)

// SlugVariations returns the board slugs worth probing for a company name, in
// probe order: hyphenated, no separator, then the original when it is
// already URL-safe. Duplicates are dropped.
func SlugVariations(name string) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	hyphenated := slug.Make(splitWords(name))
	joined := strings.ReplaceAll(hyphenated, "-", "")
	original := strings.ToLower(name)
	if strings.IndexFunc(original, unicode.IsSpace) >= 0 {
		original = ""
	}

	var out []string
	seen := make(map[string]bool)
	for _, v := range []string{hyphenated, joined, original} {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// splitWords separates underscore, hyphen and camelCase boundaries with spaces.
func splitWords(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-':
			b.WriteByte(' ')
			continue
		case i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]):
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
