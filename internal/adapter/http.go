package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/amishk599/jobsync/internal/fetcher"
	"github.com/amishk599/jobsync/internal/model"
)

// getBoard fetches a per-company board, mapping HTTP 404 to model.ErrNoBoard.
func getBoard(ctx context.Context, client *fetcher.Client, source, slug, url string, v any) error {
	err := client.GetJSON(ctx, url, v)
	if err == nil {
		return nil
	}
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s board %s: %w", source, slug, model.ErrNoBoard)
	}
	return fmt.Errorf("%s fetch for %s: %w", source, slug, err)
}
