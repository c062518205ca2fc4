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

const jobicyBaseURL = "https://jobicy.com/api/v2/remote-jobs"

type jobicyJob struct {
	ID              int64    `json:"id"`
	URL             string   `json:"url"`
	JobTitle        string   `json:"jobTitle"`
	CompanyName     string   `json:"companyName"`
	JobIndustry     []string `json:"jobIndustry"`
	JobType         []string `json:"jobType"`
	JobGeo          string   `json:"jobGeo"`
	JobExcerpt      string   `json:"jobExcerpt"`
	JobDescription  string   `json:"jobDescription"`
	PubDate         string   `json:"pubDate"`
	AnnualSalaryMin float64  `json:"annualSalaryMin"`
	AnnualSalaryMax float64  `json:"annualSalaryMax"`
	SalaryCurrency  string   `json:"salaryCurrency"`
}

type jobicyResponse struct {
	JobCount int         `json:"jobCount"`
	Jobs     []jobicyJob `json:"jobs"`
}

// JobicyAdapter reads one industry slice of the Jobicy feed per call. The
// industry is chosen by the caller through FetchOptions.Query.
type JobicyAdapter struct {
	client     *fetcher.Client
	industries []string
	count      int
	worldwide  *filter.KeywordFilter
	logger     *slog.Logger
}

// NewJobicyAdapter creates the adapter. count is the feed's page size (max 50).
func NewJobicyAdapter(client *fetcher.Client, industries []string, count int, logger *slog.Logger) *JobicyAdapter {
	if count <= 0 || count > 50 {
		count = 50
	}
	return &JobicyAdapter{
		client:     client,
		industries: industries,
		count:      count,
		worldwide:  filter.NewWorldwideFilter(),
		logger:     logger.With("source", "jobicy"),
	}
}

func (a *JobicyAdapter) Name() string           { return "jobicy" }
func (a *JobicyAdapter) Kind() model.SourceKind { return model.KindAggregator }
func (a *JobicyAdapter) Tags() []string         { return a.industries }

// Fetch reads the feed for opts.Query, or the whole feed when it is empty.
func (a *JobicyAdapter) Fetch(opts model.FetchOptions) model.BatchStream {
	return newFeedStream(a.Name(), func(ctx context.Context, _, size int) ([]feedItem, error) {
		return a.page(ctx, opts.Query, size)
	}, false, a.count, opts, a.logger)
}

func (a *JobicyAdapter) page(ctx context.Context, industry string, size int) ([]feedItem, error) {
	q := url.Values{}
	q.Set("count", fmt.Sprintf("%d", size))
	if industry != "" {
		q.Set("industry", industry)
	}

	var resp jobicyResponse
	if err := a.client.GetJSON(ctx, jobicyBaseURL+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	items := make([]feedItem, 0, len(resp.Jobs))
	for _, jj := range resp.Jobs {
		remoteType := model.RemoteTypeRemote
		if a.worldwide.Match(jj.JobGeo) {
			remoteType = model.RemoteTypeFullyRemote
		}

		description := jj.JobDescription
		if description == "" {
			description = jj.JobExcerpt
		}

		items = append(items, feedItem{
			job: model.RawJob{
				ExternalID:  fmt.Sprintf("%d", jj.ID),
				Title:       strings.TrimSpace(jj.JobTitle),
				Company:     jj.CompanyName,
				Description: description,
				Location:    jj.JobGeo,
				Salary:      formatSalaryRange(jj.AnnualSalaryMin, jj.AnnualSalaryMax, jj.SalaryCurrency),
				PostedAt:    parseTime(jj.PubDate),
				SourceURL:   jj.URL,
				SourceName:  a.Name(),
				Tags:        append(append([]string{}, jj.JobIndustry...), jj.JobType...),
				RemoteType:  remoteType,
			},
			keep: true,
		})
	}
	return items, nil
}
