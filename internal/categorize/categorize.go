package categorize

import (
	"strings"
	"unicode"

	"github.com/amishk599/jobsync/internal/model"
)

// DefaultCategoryID is returned when no keyword matches.
const DefaultCategoryID = 13

type category struct {
	id       int
	name     string
	keywords []string
}

// taxonomy is ordered: on equal scores the earlier category wins.
var taxonomy = []category{
	{1, "Software Development", []string{
		"software", "developer", "engineer", "backend", "frontend", "front-end", "back-end",
		"full stack", "fullstack", "golang", "python", "java", "javascript", "typescript",
		"react", "node", "ruby", "rails", "php", "rust", "ios", "android", "mobile", "api",
	}},
	{2, "Customer Support", []string{
		"customer support", "customer success", "support specialist", "help desk", "helpdesk",
		"customer service", "technical support", "support engineer", "tickets", "zendesk",
	}},
	{3, "Design", []string{
		"designer", "design", "figma", "ux", "ui", "user experience", "illustrator",
		"graphic", "visual", "brand design", "motion",
	}},
	{4, "Marketing", []string{
		"marketing", "seo", "content marketing", "growth", "social media", "campaign",
		"brand", "demand generation", "copywriter", "ppc", "email marketing",
	}},
	{5, "Sales", []string{
		"sales", "account executive", "business development", "sdr", "bdr",
		"account manager", "quota", "pipeline", "revenue", "closing",
	}},
	{6, "Product", []string{
		"product manager", "product owner", "product management", "roadmap",
		"product lead", "product strategy",
	}},
	{7, "Data", []string{
		"data scientist", "data engineer", "data analyst", "machine learning", "analytics",
		"sql", "etl", "statistics", "ml", "ai", "deep learning", "bi",
	}},
	{8, "DevOps / Sysadmin", []string{
		"devops", "sre", "site reliability", "kubernetes", "terraform", "infrastructure",
		"sysadmin", "system administrator", "aws", "gcp", "azure", "docker", "platform engineer",
	}},
	{9, "Finance / Legal", []string{
		"finance", "accountant", "accounting", "legal", "counsel", "lawyer", "paralegal",
		"bookkeeper", "controller", "tax", "compliance", "audit",
	}},
	{10, "Human Resources", []string{
		"recruiter", "recruiting", "talent acquisition", "human resources", "people operations",
		"hr", "people partner", "payroll",
	}},
	{11, "QA", []string{
		"qa", "quality assurance", "test engineer", "tester", "sdet", "test automation",
		"selenium", "cypress",
	}},
	{12, "Writing", []string{
		"writer", "technical writer", "editor", "content writer", "journalist",
		"documentation", "proofreader",
	}},
	{DefaultCategoryID, "All Others", nil},
}

// Categories returns the lookup rows the store must hold.
func Categories() []model.Category {
	out := make([]model.Category, 0, len(taxonomy))
	for _, c := range taxonomy {
		out = append(out, model.Category{ID: c.id, Name: c.name})
	}
	return out
}

// Categorize scores title, description and tags against the keyword table
// and returns the winning category id. Pure and deterministic.
func Categorize(title, description string, tags []string) int {
	text := normalize(title + " " + description + " " + strings.Join(tags, " "))

	bestID, bestScore := DefaultCategoryID, 0
	for _, c := range taxonomy {
		score := 0
		for _, kw := range c.keywords {
			score += countKeyword(text, kw)
		}
		if score > bestScore {
			bestID, bestScore = c.id, score
		}
	}
	return bestID
}

// SuggestFromTitles picks a category for a whole board from its job titles.
func SuggestFromTitles(titles []string) int {
	return Categorize(strings.Join(titles, " "), "", nil)
}

// normalize lowercases text and turns punctuation into single spaces, keeping
// characters that occur inside technology names. The result is padded with
// spaces.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' || r == '-' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}

// countKeyword counts whole-word hits for short keywords, where substrings
// would be noisy ("ui" in "build"), and substring hits otherwise.
func countKeyword(text, kw string) int {
	if len(kw) > 3 {
		return strings.Count(text, kw)
	}
	n := 0
	for _, w := range strings.Fields(text) {
		if w == kw {
			n++
		}
	}
	return n
}
