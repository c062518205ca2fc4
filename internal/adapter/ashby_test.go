package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amishk599/jobsync/internal/model"
)

const ashbyPayload = `{
	"jobs": [
		{
			"id": "a1",
			"title": "Staff Engineer",
			"department": "Engineering",
			"team": "Core",
			"employmentType": "FullTime",
			"location": "New York",
			"isRemote": true,
			"descriptionHtml": "<p>Lead projects.</p>",
			"descriptionPlain": "Lead projects.",
			"jobUrl": "https://jobs.ashbyhq.com/acme/a1",
			"publishedAt": "2026-02-12T08:00:00.000+00:00",
			"isListed": true,
			"compensation": {"compensationTierSummary": "$180K – $220K • Offers Equity", "scrapeableCompensationSalarySummary": "$180K - $220K"}
		},
		{
			"id": "a2",
			"title": "Recruiter",
			"department": "People",
			"location": "London",
			"isRemote": false,
			"jobUrl": "https://jobs.ashbyhq.com/acme/a2",
			"isListed": true
		},
		{
			"id": "a3",
			"title": "Hidden Role",
			"location": "Remote",
			"isRemote": true,
			"jobUrl": "https://jobs.ashbyhq.com/acme/a3",
			"isListed": false
		},
		{
			"id": "a4",
			"title": "",
			"location": "Remote",
			"isRemote": true,
			"jobUrl": "https://jobs.ashbyhq.com/acme/a4",
			"isListed": true
		}
	]
}`

func TestAshby_FetchSkipsUnlistedAndMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/posting-api/job-board/acme" || r.URL.Query().Get("includeCompensation") != "true" {
			t.Errorf("unexpected request: %s", r.URL)
		}
		jsonHandler(ashbyPayload)(w, r)
	}))
	defer srv.Close()

	a := NewAshbyAdapter(newTestClient(srv), []string{"acme"}, discardLogger())
	stream := a.Fetch(model.FetchOptions{})
	batches := drain(t, stream)

	if len(batches) != 1 || len(batches[0].Jobs) != 1 {
		t.Fatalf("expected 1 remote job, got %+v", batches)
	}
	j := batches[0].Jobs[0]
	if j.ExternalID != "a1" || j.Salary != "$180K - $220K" {
		t.Errorf("unexpected job: %+v", j)
	}
	if j.PostedAt == nil {
		t.Error("expected PostedAt to be parsed")
	}
	if got := stream.Stats().Skipped; got != 1 {
		t.Errorf("Skipped = %d, want 1 (untitled job)", got)
	}
}

func TestAshby_ProbeCountsListedJobs(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(ashbyPayload))
	defer srv.Close()

	a := NewAshbyAdapter(newTestClient(srv), nil, discardLogger())
	summary, err := a.Probe(context.Background(), "acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.JobCount != 3 || summary.RemoteJobCount != 2 {
		t.Errorf("unexpected counts: %+v", summary)
	}
	if len(summary.Departments) != 2 {
		t.Errorf("unexpected departments: %v", summary.Departments)
	}
}
