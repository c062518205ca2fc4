package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/amishk599/jobsync/internal/model"
)

// DedupMode picks the key duplicate groups are formed on.
type DedupMode string

const (
	ByTitleCompany DedupMode = "title_company"
	BySourceURL    DedupMode = "source_url"
)

// ParseDedupMode validates a mode name.
func ParseDedupMode(s string) (DedupMode, error) {
	switch m := DedupMode(s); m {
	case ByTitleCompany, BySourceURL:
		return m, nil
	}
	return "", fmt.Errorf("unknown dedup mode %q (want %s or %s)", s, ByTitleCompany, BySourceURL)
}

// directSources are the per-company ATS boards, preferred over aggregator copies.
var directSources = map[string]bool{
	"greenhouse": true,
	"lever":      true,
	"ashby":      true,
}

// IsDirectSource reports whether name is a per-company ATS source.
func IsDirectSource(name string) bool {
	return directSources[strings.ToLower(name)]
}

// DedupStore is the part of the job store duplicate resolution needs.
type DedupStore interface {
	ListJobKeys(ctx context.Context) ([]model.JobKey, error)
	DeleteJobs(ctx context.Context, ids []int64) error
}

// ResolveDuplicates deletes every duplicate job except one survivor per group
// and returns how many rows were removed.
func ResolveDuplicates(ctx context.Context, store DedupStore, mode DedupMode, logger *slog.Logger) (int, error) {
	keys, err := store.ListJobKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolving duplicates: %w", err)
	}

	losers := PlanDuplicates(keys, mode)
	if len(losers) == 0 {
		logger.Info("no duplicates found", "mode", mode, "jobs", len(keys))
		return 0, nil
	}
	if err := store.DeleteJobs(ctx, losers); err != nil {
		return 0, fmt.Errorf("resolving duplicates: %w", err)
	}
	logger.Info("removed duplicate jobs", "mode", mode, "jobs", len(keys), "removed", len(losers))
	return len(losers), nil
}

// PlanDuplicates groups keys by mode and returns the IDs to delete, sorted.
func PlanDuplicates(keys []model.JobKey, mode DedupMode) []int64 {
	groups := make(map[string][]model.JobKey)
	for _, k := range keys {
		key := groupKey(k, mode)
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], k)
	}

	var losers []int64
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		survivor := group[0]
		for _, k := range group[1:] {
			if preferred(k, survivor) {
				survivor = k
			}
		}
		for _, k := range group {
			if k.ID != survivor.ID {
				losers = append(losers, k.ID)
			}
		}
	}
	sort.Slice(losers, func(i, j int) bool { return losers[i] < losers[j] })
	return losers
}

// preferred reports whether a should survive over b: direct sources first,
// then the newer row, then the higher ID.
func preferred(a, b model.JobKey) bool {
	if da, db := IsDirectSource(a.SourceName), IsDirectSource(b.SourceName); da != db {
		return da
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func groupKey(k model.JobKey, mode DedupMode) string {
	switch mode {
	case BySourceURL:
		return normalizeURL(k.SourceURL)
	default:
		title := strings.ToLower(strings.TrimSpace(k.Title))
		company := strings.ToLower(strings.TrimSpace(k.Company))
		if title == "" || company == "" {
			return ""
		}
		return title + "\x00" + company
	}
}

// normalizeURL reduces a URL to lowercased origin plus path, without query,
// fragment or trailing slash.
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		if i := strings.IndexAny(raw, "?#"); i >= 0 {
			raw = raw[:i]
		}
		return strings.TrimSuffix(strings.ToLower(raw), "/")
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + strings.TrimSuffix(u.Path, "/")
}
