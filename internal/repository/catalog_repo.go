package repository

import (
	"context"
	"time"

	"github.com/weeklypulls/primecache/internal/domain"
)

// CatalogRepository defines all persistence operations the cache primer
// needs over series and issue rows. The pgx implementation is in
// pg_catalog_repo.go; tests use a hand-written mock (mock_catalog_repo.go).
//
// Series and issue rows are owned by the surrounding application; this
// interface exposes only the fields the primer reads and writes.
type CatalogRepository interface {
	// ListSeries returns every tracked series, ordered by ID.
	ListSeries(ctx context.Context) ([]*domain.Series, error)
	// ListUnfetchedIssues returns every issue with fetched = false.
	ListUnfetchedIssues(ctx context.Context) ([]*domain.Issue, error)

	// MarkSeriesRefreshed records a successful volume fetch: sets
	// last_refreshed_at, clears failure state, and stores the payload.
	MarkSeriesRefreshed(ctx context.Context, id int64, refreshedAt time.Time, payload *domain.VolumePayload) error
	// MarkSeriesFailed records a permanent fetch failure; last_refreshed_at
	// is left untouched.
	MarkSeriesFailed(ctx context.Context, id int64, failedAt time.Time) error
	// MarkIssueFetched records a successful issue fetch and stores the
	// payload.
	MarkIssueFetched(ctx context.Context, id int64, payload *domain.IssuePayload) error
}
