package ingest

import (
	"strings"

	"github.com/amishk599/jobsync/internal/categorize"
	"github.com/amishk599/jobsync/internal/model"
	"github.com/amishk599/jobsync/internal/textnorm"
)

// Normalize turns a listing from a source into the record that gets stored:
// entities repaired, HTML sanitized, a plain-text summary cut, salary filled
// from the description when the source had none, and a category assigned.
func Normalize(raw model.RawJob) *model.Job {
	decoded := textnorm.DecodeHTMLEntities(raw.Description)
	full := textnorm.SanitizeHTML(decoded)
	plain := textnorm.PlainText(full)

	title := strings.TrimSpace(textnorm.DecodeHTMLEntities(raw.Title))
	company := strings.TrimSpace(textnorm.DecodeHTMLEntities(raw.Company))

	salary := strings.TrimSpace(textnorm.DecodeHTMLEntities(raw.Salary))
	if salary == "" {
		salary = textnorm.ExtractSalaryFromDescription(plain)
	}

	remoteType := raw.RemoteType
	if remoteType == "" {
		remoteType = model.RemoteTypeRemote
	}

	return &model.Job{
		Title:           title,
		Company:         company,
		Description:     textnorm.Summarize(plain, textnorm.SummaryLength),
		DescriptionRaw:  raw.Description,
		FullDescription: full,
		Location:        strings.TrimSpace(textnorm.DecodeHTMLEntities(raw.Location)),
		Salary:          salary,
		PostedAt:        raw.PostedAt,
		SourceURL:       strings.TrimSpace(raw.SourceURL),
		SourceName:      raw.SourceName,
		Tags:            raw.Tags,
		CategoryID:      categorize.Categorize(title, plain, raw.Tags),
		RemoteType:      remoteType,
		IsCleansed:      true,
	}
}
