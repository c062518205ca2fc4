package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/amishk599/jobsync/internal/fetcher"
	"github.com/amishk599/jobsync/internal/filter"
	"github.com/amishk599/jobsync/internal/model"
)

const leverBaseURL = "https://api.lever.co/v0/postings"

// leverCategories represents the categories object in a Lever job.
type leverCategories struct {
	Team         string   `json:"team"`
	Department   string   `json:"department"`
	Location     string   `json:"location"`
	Commitment   string   `json:"commitment"`
	AllLocations []string `json:"allLocations"`
}

type leverSalaryRange struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Currency string  `json:"currency"`
}

// leverJob represents a single job in the Lever API response.
type leverJob struct {
	ID               string            `json:"id"`
	Text             string            `json:"text"`
	Description      string            `json:"description"`
	DescriptionPlain string            `json:"descriptionPlain"`
	Additional       string            `json:"additional"`
	Categories       leverCategories   `json:"categories"`
	CreatedAt        int64             `json:"createdAt"`
	WorkplaceType    string            `json:"workplaceType"`
	HostedURL        string            `json:"hostedUrl"`
	SalaryRange      *leverSalaryRange `json:"salaryRange"`
}

// LeverAdapter fetches jobs from the Lever public postings API.
type LeverAdapter struct {
	client    *fetcher.Client
	companies []string
	remote    *filter.KeywordFilter
	logger    *slog.Logger
}

// NewLeverAdapter creates an adapter over the given company slugs.
func NewLeverAdapter(client *fetcher.Client, companies []string, logger *slog.Logger) *LeverAdapter {
	return &LeverAdapter{
		client:    client,
		companies: companies,
		remote:    filter.NewRemoteFilter(),
		logger:    logger.With("source", "lever"),
	}
}

func (a *LeverAdapter) Name() string           { return "lever" }
func (a *LeverAdapter) Kind() model.SourceKind { return model.KindATS }
func (a *LeverAdapter) Companies() []string    { return a.companies }

// Fetch streams one batch per company with remote openings.
func (a *LeverAdapter) Fetch(opts model.FetchOptions) model.BatchStream {
	return newCompanyStream(a.Name(), a.list, a.companies, opts, a.logger)
}

// Probe reports whether slug has a Lever board.
func (a *LeverAdapter) Probe(ctx context.Context, slug string) (model.BoardSummary, error) {
	return probeBoard(ctx, a.Name(), a.list, slug)
}

func (a *LeverAdapter) list(ctx context.Context, slug string) ([]listing, error) {
	url := fmt.Sprintf("%s/%s?mode=json", leverBaseURL, slug)

	var leverJobs []leverJob
	if err := getBoard(ctx, a.client, a.Name(), slug, url, &leverJobs); err != nil {
		return nil, err
	}

	listings := make([]listing, 0, len(leverJobs))
	for _, lj := range leverJobs {
		// Prefer allLocations if available, fall back to location.
		location := lj.Categories.Location
		if len(lj.Categories.AllLocations) > 0 {
			location = strings.Join(lj.Categories.AllLocations, ", ")
		}

		// createdAt is Unix milliseconds.
		var postedAt *time.Time
		if lj.CreatedAt > 0 {
			t := time.UnixMilli(lj.CreatedAt).UTC()
			postedAt = &t
		}

		description := lj.Description
		if lj.Additional != "" {
			description += lj.Additional
		}

		job := model.RawJob{
			ExternalID:  lj.ID,
			Title:       strings.TrimSpace(lj.Text),
			Company:     displayName(slug),
			Description: description,
			Location:    location,
			PostedAt:    postedAt,
			SourceURL:   lj.HostedURL,
			SourceName:  a.Name(),
		}
		if lj.SalaryRange != nil {
			job.Salary = formatSalaryRange(lj.SalaryRange.Min, lj.SalaryRange.Max, lj.SalaryRange.Currency)
		}
		for _, tag := range []string{lj.Categories.Team, lj.Categories.Commitment} {
			if tag != "" {
				job.Tags = append(job.Tags, tag)
			}
		}

		department := lj.Categories.Department
		if department == "" {
			department = lj.Categories.Team
		}

		listings = append(listings, listing{
			job:        job,
			department: department,
			remote: strings.EqualFold(lj.WorkplaceType, "remote") ||
				a.remote.Match(location, lj.Categories.Commitment, lj.DescriptionPlain),
		})
	}
	return listings, nil
}
