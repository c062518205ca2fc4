package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/amishk599/jobsync/internal/fetcher"
	"github.com/amishk599/jobsync/internal/filter"
	"github.com/amishk599/jobsync/internal/model"
)

const ashbyBaseURL = "https://api.ashbyhq.com/posting-api/job-board"

type ashbyCompensation struct {
	TierSummary   string `json:"compensationTierSummary"`
	SalarySummary string `json:"scrapeableCompensationSalarySummary"`
}

// ashbyJob represents a single job in the Ashby API response.
type ashbyJob struct {
	ID               string             `json:"id"`
	Title            string             `json:"title"`
	Department       string             `json:"department"`
	Team             string             `json:"team"`
	EmploymentType   string             `json:"employmentType"`
	Location         string             `json:"location"`
	IsRemote         bool               `json:"isRemote"`
	WorkplaceType    string             `json:"workplaceType"`
	DescriptionHTML  string             `json:"descriptionHtml"`
	DescriptionPlain string             `json:"descriptionPlain"`
	JobUrl           string             `json:"jobUrl"`
	PublishedAt      string             `json:"publishedAt"`
	IsListed         bool               `json:"isListed"`
	Compensation     *ashbyCompensation `json:"compensation"`
}

// ashbyResponse is the top-level Ashby job board API response.
type ashbyResponse struct {
	Jobs []ashbyJob `json:"jobs"`
}

// AshbyAdapter fetches jobs from the Ashby public job board API.
type AshbyAdapter struct {
	client    *fetcher.Client
	companies []string
	remote    *filter.KeywordFilter
	logger    *slog.Logger
}

// NewAshbyAdapter creates an adapter over the given job board names.
func NewAshbyAdapter(client *fetcher.Client, companies []string, logger *slog.Logger) *AshbyAdapter {
	return &AshbyAdapter{
		client:    client,
		companies: companies,
		remote:    filter.NewRemoteFilter(),
		logger:    logger.With("source", "ashby"),
	}
}

func (a *AshbyAdapter) Name() string           { return "ashby" }
func (a *AshbyAdapter) Kind() model.SourceKind { return model.KindATS }
func (a *AshbyAdapter) Companies() []string    { return a.companies }

// Fetch streams one batch per company with remote openings.
func (a *AshbyAdapter) Fetch(opts model.FetchOptions) model.BatchStream {
	return newCompanyStream(a.Name(), a.list, a.companies, opts, a.logger)
}

// Probe reports whether slug has an Ashby job board.
func (a *AshbyAdapter) Probe(ctx context.Context, slug string) (model.BoardSummary, error) {
	return probeBoard(ctx, a.Name(), a.list, slug)
}

func (a *AshbyAdapter) list(ctx context.Context, slug string) ([]listing, error) {
	url := fmt.Sprintf("%s/%s?includeCompensation=true", ashbyBaseURL, slug)

	var ashbyResp ashbyResponse
	if err := getBoard(ctx, a.client, a.Name(), slug, url, &ashbyResp); err != nil {
		return nil, err
	}

	listings := make([]listing, 0, len(ashbyResp.Jobs))
	for _, aj := range ashbyResp.Jobs {
		if !aj.IsListed {
			continue
		}

		job := model.RawJob{
			ExternalID:  aj.ID,
			Title:       strings.TrimSpace(aj.Title),
			Company:     displayName(slug),
			Description: aj.DescriptionHTML,
			Location:    aj.Location,
			PostedAt:    parseTime(aj.PublishedAt),
			SourceURL:   aj.JobUrl,
			SourceName:  a.Name(),
		}
		if aj.Compensation != nil {
			job.Salary = aj.Compensation.SalarySummary
			if job.Salary == "" {
				job.Salary = aj.Compensation.TierSummary
			}
		}
		for _, tag := range []string{aj.Team, aj.EmploymentType} {
			if tag != "" {
				job.Tags = append(job.Tags, tag)
			}
		}

		listings = append(listings, listing{
			job:        job,
			department: aj.Department,
			remote: aj.IsRemote || strings.EqualFold(aj.WorkplaceType, "remote") ||
				a.remote.Match(aj.Location, aj.EmploymentType, aj.DescriptionPlain),
		})
	}
	return listings, nil
}
