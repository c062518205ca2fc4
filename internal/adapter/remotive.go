package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/amishk599/jobsync/internal/fetcher"
	"github.com/amishk599/jobsync/internal/filter"
	"github.com/amishk599/jobsync/internal/model"
)

const remotiveBaseURL = "https://remotive.com/api/remote-jobs"

type remotiveJob struct {
	ID                        int64    `json:"id"`
	URL                       string   `json:"url"`
	Title                     string   `json:"title"`
	CompanyName               string   `json:"company_name"`
	Category                  string   `json:"category"`
	Tags                      []string `json:"tags"`
	JobType                   string   `json:"job_type"`
	PublicationDate           string   `json:"publication_date"`
	CandidateRequiredLocation string   `json:"candidate_required_location"`
	Salary                    string   `json:"salary"`
	Description               string   `json:"description"`
}

type remotiveResponse struct {
	JobCount int           `json:"job-count"`
	Jobs     []remotiveJob `json:"jobs"`
}

// RemotiveAdapter reads one category of the Remotive feed per call and keeps
// only postings open worldwide.
type RemotiveAdapter struct {
	client     *fetcher.Client
	categories []string
	limit      int
	worldwide  *filter.KeywordFilter
	logger     *slog.Logger
}

// NewRemotiveAdapter creates the adapter. limit is the feed's page size.
func NewRemotiveAdapter(client *fetcher.Client, categories []string, limit int, logger *slog.Logger) *RemotiveAdapter {
	if limit <= 0 {
		limit = 100
	}
	return &RemotiveAdapter{
		client:     client,
		categories: categories,
		limit:      limit,
		worldwide:  filter.NewWorldwideFilter(),
		logger:     logger.With("source", "remotive"),
	}
}

func (a *RemotiveAdapter) Name() string           { return "remotive" }
func (a *RemotiveAdapter) Kind() model.SourceKind { return model.KindAggregator }
func (a *RemotiveAdapter) Tags() []string         { return a.categories }

// Fetch reads the feed for the category in opts.Query.
func (a *RemotiveAdapter) Fetch(opts model.FetchOptions) model.BatchStream {
	return newFeedStream(a.Name(), func(ctx context.Context, _, size int) ([]feedItem, error) {
		return a.page(ctx, opts.Query, size)
	}, false, a.limit, opts, a.logger)
}

func (a *RemotiveAdapter) page(ctx context.Context, category string, size int) ([]feedItem, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", size))
	if category != "" {
		q.Set("category", category)
	}

	var resp remotiveResponse
	if err := a.client.GetJSON(ctx, remotiveBaseURL+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	items := make([]feedItem, 0, len(resp.Jobs))
	for _, rj := range resp.Jobs {
		tags := append([]string{}, rj.Tags...)
		if rj.Category != "" {
			tags = append(tags, rj.Category)
		}

		items = append(items, feedItem{
			job: model.RawJob{
				ExternalID:  fmt.Sprintf("%d", rj.ID),
				Title:       strings.TrimSpace(rj.Title),
				Company:     rj.CompanyName,
				Description: rj.Description,
				Location:    rj.CandidateRequiredLocation,
				Salary:      strings.TrimSpace(rj.Salary),
				PostedAt:    parseTime(rj.PublicationDate),
				SourceURL:   rj.URL,
				SourceName:  a.Name(),
				Tags:        tags,
				RemoteType:  model.RemoteTypeFullyRemote,
			},
			keep: a.worldwide.Match(rj.CandidateRequiredLocation),
		})
	}
	return items, nil
}
