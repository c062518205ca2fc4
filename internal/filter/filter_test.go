package filter

import "testing"

func TestKeywordFilter_Match(t *testing.T) {
	tests := []struct {
		name      string
		keywords  []string
		fields    []string
		wantMatch bool
	}{
		{
			name:      "location mentions remote",
			keywords:  []string{"remote"},
			fields:    []string{"Remote - US", "Full-time", ""},
			wantMatch: true,
		},
		{
			name:      "only the description mentions remote",
			keywords:  []string{"remote"},
			fields:    []string{"New York, NY", "Full-time", "This role is fully remote."},
			wantMatch: true,
		},
		{
			name:      "case insensitive matching",
			keywords:  []string{"REMOTE"},
			fields:    []string{"remote (EMEA)"},
			wantMatch: true,
		},
		{
			name:      "no field matches",
			keywords:  []string{"remote"},
			fields:    []string{"London, UK", "On-site"},
			wantMatch: false,
		},
		{
			name:      "any of several keywords",
			keywords:  []string{"worldwide", "anywhere"},
			fields:    []string{"Anywhere in the world"},
			wantMatch: true,
		},
		{
			name:      "empty keyword list passes all",
			keywords:  []string{},
			fields:    []string{"Anywhere"},
			wantMatch: true,
		},
		{
			name:      "blank keywords are ignored",
			keywords:  []string{" ", ""},
			fields:    []string{"Berlin"},
			wantMatch: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewKeywordFilter(tt.keywords)
			if got := f.Match(tt.fields...); got != tt.wantMatch {
				t.Errorf("Match(%q) = %v, want %v", tt.fields, got, tt.wantMatch)
			}
		})
	}
}

func TestPresetFilters(t *testing.T) {
	if !NewRemoteFilter().Match("Remote, Canada") {
		t.Error("remote filter should match \"Remote, Canada\"")
	}
	if NewRemoteFilter().Match("Toronto") {
		t.Error("remote filter should not match \"Toronto\"")
	}
	if !NewWorldwideFilter().Match("Worldwide") {
		t.Error("worldwide filter should match \"Worldwide\"")
	}
	if NewWorldwideFilter().Match("USA Only") {
		t.Error("worldwide filter should not match \"USA Only\"")
	}
}
