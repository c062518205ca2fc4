package filter

import "strings"

// KeywordFilter matches postings where any of the inspected fields contains
// any of its keywords. Matching is case-insensitive. An empty keyword list
// is treated as "match all".
type KeywordFilter struct {
	keywords []string
}

// NewKeywordFilter returns a filter over the given keywords.
func NewKeywordFilter(keywords []string) *KeywordFilter {
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			lowered = append(lowered, kw)
		}
	}
	return &KeywordFilter{keywords: lowered}
}

// NewRemoteFilter matches postings whose location, commitment or description
// mentions remote work.
func NewRemoteFilter() *KeywordFilter {
	return NewKeywordFilter([]string{"remote"})
}

// NewWorldwideFilter matches location restrictions open to any country.
func NewWorldwideFilter() *KeywordFilter {
	return NewKeywordFilter([]string{"worldwide", "anywhere"})
}

// Match returns true if any field contains any keyword.
func (f *KeywordFilter) Match(fields ...string) bool {
	if len(f.keywords) == 0 {
		return true
	}
	for _, field := range fields {
		if field == "" {
			continue
		}
		lower := strings.ToLower(field)
		for _, kw := range f.keywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}
