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

const greenhouseBaseURL = "https://boards-api.greenhouse.io/v1/boards"

// greenhouseJob represents a single job in the Greenhouse API response.
type greenhouseJob struct {
	ID          int64                `json:"id"`
	Title       string               `json:"title"`
	CompanyName string               `json:"company_name"`
	Location    greenhouseLocation   `json:"location"`
	AbsoluteURL string               `json:"absolute_url"`
	UpdatedAt   string               `json:"updated_at"`
	FirstPub    string               `json:"first_published"`
	Content     string               `json:"content"`
	Departments []greenhouseName     `json:"departments"`
	Metadata    []greenhouseMetadata `json:"metadata"`
}

type greenhouseLocation struct {
	Name string `json:"name"`
}

type greenhouseName struct {
	Name string `json:"name"`
}

// greenhouseMetadata values are free-form; only strings are used.
type greenhouseMetadata struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// greenhouseResponse is the top-level Greenhouse jobs API response.
type greenhouseResponse struct {
	Jobs []greenhouseJob `json:"jobs"`
}

// GreenhouseAdapter fetches jobs from the Greenhouse public boards API.
type GreenhouseAdapter struct {
	client    *fetcher.Client
	companies []string
	remote    *filter.KeywordFilter
	logger    *slog.Logger
}

// NewGreenhouseAdapter creates an adapter over the given board tokens.
func NewGreenhouseAdapter(client *fetcher.Client, companies []string, logger *slog.Logger) *GreenhouseAdapter {
	return &GreenhouseAdapter{
		client:    client,
		companies: companies,
		remote:    filter.NewRemoteFilter(),
		logger:    logger.With("source", "greenhouse"),
	}
}

func (a *GreenhouseAdapter) Name() string           { return "greenhouse" }
func (a *GreenhouseAdapter) Kind() model.SourceKind { return model.KindATS }
func (a *GreenhouseAdapter) Companies() []string    { return a.companies }

// Fetch streams one batch per company with remote openings.
func (a *GreenhouseAdapter) Fetch(opts model.FetchOptions) model.BatchStream {
	return newCompanyStream(a.Name(), a.list, a.companies, opts, a.logger)
}

// Probe reports whether slug has a Greenhouse board.
func (a *GreenhouseAdapter) Probe(ctx context.Context, slug string) (model.BoardSummary, error) {
	return probeBoard(ctx, a.Name(), a.list, slug)
}

func (a *GreenhouseAdapter) list(ctx context.Context, slug string) ([]listing, error) {
	url := fmt.Sprintf("%s/%s/jobs?content=true", greenhouseBaseURL, slug)

	var ghResp greenhouseResponse
	if err := getBoard(ctx, a.client, a.Name(), slug, url, &ghResp); err != nil {
		return nil, err
	}

	listings := make([]listing, 0, len(ghResp.Jobs))
	for _, gj := range ghResp.Jobs {
		company := gj.CompanyName
		if company == "" {
			company = displayName(slug)
		}

		job := model.RawJob{
			ExternalID:  fmt.Sprintf("%d", gj.ID),
			Title:       strings.TrimSpace(gj.Title),
			Company:     company,
			Description: gj.Content,
			Location:    gj.Location.Name,
			Salary:      greenhouseSalary(gj.Metadata),
			SourceURL:   gj.AbsoluteURL,
			SourceName:  a.Name(),
		}

		published := gj.FirstPub
		if published == "" {
			published = gj.UpdatedAt
		}
		job.PostedAt = parseTime(published)

		var department string
		for _, d := range gj.Departments {
			job.Tags = append(job.Tags, d.Name)
			if department == "" {
				department = d.Name
			}
		}

		listings = append(listings, listing{
			job:        job,
			department: department,
			remote:     a.remote.Match(gj.Location.Name, gj.Title, gj.Content),
		})
	}
	return listings, nil
}

// greenhouseSalary looks for a compensation-like metadata field.
func greenhouseSalary(metadata []greenhouseMetadata) string {
	for _, m := range metadata {
		name := strings.ToLower(m.Name)
		if !strings.Contains(name, "salary") && !strings.Contains(name, "compensation") && !strings.Contains(name, "pay range") {
			continue
		}
		if v, ok := m.Value.(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
