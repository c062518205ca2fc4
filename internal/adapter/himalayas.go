package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/amishk599/jobsync/internal/fetcher"
	"github.com/amishk599/jobsync/internal/model"
)

const himalayasBaseURL = "https://himalayas.app/jobs/api"

type himalayasJob struct {
	GUID                 string   `json:"guid"`
	Title                string   `json:"title"`
	Excerpt              string   `json:"excerpt"`
	CompanyName          string   `json:"companyName"`
	EmploymentType       string   `json:"employmentType"`
	MinSalary            float64  `json:"minSalary"`
	MaxSalary            float64  `json:"maxSalary"`
	Currency             string   `json:"currency"`
	LocationRestrictions []string `json:"locationRestrictions"`
	Categories           []string `json:"categories"`
	Description          string   `json:"description"`
	PubDate              int64    `json:"pubDate"`
	ApplicationLink      string   `json:"applicationLink"`
}

type himalayasResponse struct {
	TotalCount int            `json:"totalCount"`
	Jobs       []himalayasJob `json:"jobs"`
}

// HimalayasAdapter pages through the Himalayas remote-jobs feed, keeping
// postings without location restrictions.
type HimalayasAdapter struct {
	client   *fetcher.Client
	pageSize int
	logger   *slog.Logger
}

// NewHimalayasAdapter creates the adapter. pageSize is the feed's limit parameter.
func NewHimalayasAdapter(client *fetcher.Client, pageSize int, logger *slog.Logger) *HimalayasAdapter {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &HimalayasAdapter{
		client:   client,
		pageSize: pageSize,
		logger:   logger.With("source", "himalayas"),
	}
}

func (a *HimalayasAdapter) Name() string           { return "himalayas" }
func (a *HimalayasAdapter) Kind() model.SourceKind { return model.KindAggregator }

// Fetch streams feed pages starting at opts.JobOffset.
func (a *HimalayasAdapter) Fetch(opts model.FetchOptions) model.BatchStream {
	return newFeedStream(a.Name(), a.page, true, a.pageSize, opts, a.logger)
}

func (a *HimalayasAdapter) page(ctx context.Context, offset, size int) ([]feedItem, error) {
	url := fmt.Sprintf("%s?offset=%d&limit=%d", himalayasBaseURL, offset, size)

	var resp himalayasResponse
	if err := a.client.GetJSON(ctx, url, &resp); err != nil {
		return nil, err
	}

	items := make([]feedItem, 0, len(resp.Jobs))
	for _, hj := range resp.Jobs {
		var postedAt *time.Time
		if hj.PubDate > 0 {
			t := time.Unix(hj.PubDate, 0).UTC()
			postedAt = &t
		}

		sourceURL := hj.ApplicationLink
		if sourceURL == "" {
			sourceURL = hj.GUID
		}

		description := hj.Description
		if description == "" {
			description = hj.Excerpt
		}

		items = append(items, feedItem{
			job: model.RawJob{
				ExternalID:  hj.GUID,
				Title:       strings.TrimSpace(hj.Title),
				Company:     hj.CompanyName,
				Description: description,
				Location:    "Worldwide",
				Salary:      formatSalaryRange(hj.MinSalary, hj.MaxSalary, hj.Currency),
				PostedAt:    postedAt,
				SourceURL:   sourceURL,
				SourceName:  a.Name(),
				Tags:        hj.Categories,
				RemoteType:  model.RemoteTypeFullyRemote,
			},
			keep: len(hj.LocationRestrictions) == 0,
		})
	}
	return items, nil
}
