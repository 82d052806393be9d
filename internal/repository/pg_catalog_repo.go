package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/weeklypulls/primecache/internal/domain"
)

type pgCatalogRepository struct {
	pool *pgxpool.Pool
}

// NewPgCatalogRepository returns a CatalogRepository backed by PostgreSQL.
func NewPgCatalogRepository(pool *pgxpool.Pool) CatalogRepository {
	return &pgCatalogRepository{pool: pool}
}

func (r *pgCatalogRepository) ListSeries(ctx context.Context) ([]*domain.Series, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, start_year, last_refreshed_at, last_failed_at, failure_count
		FROM series
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	defer rows.Close()

	var series []*domain.Series
	for rows.Next() {
		s := &domain.Series{}
		if err := rows.Scan(&s.ID, &s.Name, &s.StartYear,
			&s.LastRefreshedAt, &s.LastFailedAt, &s.FailureCount); err != nil {
			return nil, fmt.Errorf("scan series: %w", err)
		}
		series = append(series, s)
	}
	return series, rows.Err()
}

func (r *pgCatalogRepository) ListUnfetchedIssues(ctx context.Context) ([]*domain.Issue, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, series_id, name, number, release_date, fetched
		FROM issues
		WHERE NOT fetched
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list unfetched issues: %w", err)
	}
	defer rows.Close()

	var issues []*domain.Issue
	for rows.Next() {
		i := &domain.Issue{}
		if err := rows.Scan(&i.ID, &i.SeriesID, &i.Name, &i.Number,
			&i.ReleaseDate, &i.Fetched); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, i)
	}
	return issues, rows.Err()
}

func (r *pgCatalogRepository) MarkSeriesRefreshed(ctx context.Context, id int64, refreshedAt time.Time, payload *domain.VolumePayload) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE series
		SET name = $1, start_year = $2,
		    last_refreshed_at = $3, last_failed_at = NULL, failure_count = 0,
		    payload = $4
		WHERE id = $5`,
		payload.Name, payload.StartYear, refreshedAt, payload.Raw, id)
	if err != nil {
		return fmt.Errorf("mark series refreshed: %w", err)
	}
	return nil
}

func (r *pgCatalogRepository) MarkSeriesFailed(ctx context.Context, id int64, failedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE series
		SET last_failed_at = $1, failure_count = failure_count + 1
		WHERE id = $2`, failedAt, id)
	if err != nil {
		return fmt.Errorf("mark series failed: %w", err)
	}
	return nil
}

func (r *pgCatalogRepository) MarkIssueFetched(ctx context.Context, id int64, payload *domain.IssuePayload) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE issues
		SET name = $1, number = $2, release_date = $3, fetched = TRUE, payload = $4
		WHERE id = $5`,
		payload.Name, payload.Number, payload.ReleaseDate, payload.Raw, id)
	if err != nil {
		return fmt.Errorf("mark issue fetched: %w", err)
	}
	return nil
}
