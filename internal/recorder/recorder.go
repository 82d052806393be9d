// Package recorder persists fetch outcomes. Every commit is per-candidate
// and independent: there is no cross-candidate transaction, which is what
// makes a half-finished run safe to resume.
package recorder

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/weeklypulls/primecache/internal/domain"
	"github.com/weeklypulls/primecache/internal/repository"
)

type Recorder struct {
	repo   repository.CatalogRepository
	logger *zap.Logger
}

func New(repo repository.CatalogRepository, logger *zap.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

// Commit persists one outcome:
//
//   - Success: last_refreshed_at = now, failure state cleared, payload
//     stored (issues additionally flip fetched).
//   - PermanentFailure: last_failed_at = now on volume candidates; the
//     series is then skipped by the expired tier until force mode. Issues
//     have no failure field, so issue failures are log-only.
//   - TransientFailure / RateLimited: log line only; the target stays in
//     its prior state and will be re-selected on a later run.
//
// A returned error means the write failed; the outcome itself never does.
func (r *Recorder) Commit(ctx context.Context, c domain.Candidate, out domain.Outcome) error {
	log := r.logger.With(
		zap.String("kind", string(c.Kind)),
		zap.Int64("series_id", c.SeriesID),
		zap.Int64("issue_id", c.IssueID),
		zap.String("outcome", string(out.Kind)),
		zap.Duration("elapsed", out.Elapsed),
	)

	switch out.Kind {
	case domain.OutcomeSuccess:
		now := time.Now().UTC()
		if c.Kind == domain.CandidateIssueBackfill {
			if err := r.repo.MarkIssueFetched(ctx, c.IssueID, out.Issue); err != nil {
				log.Error("failed to persist issue fetch", zap.Error(err))
				return err
			}
		} else {
			if err := r.repo.MarkSeriesRefreshed(ctx, c.SeriesID, now, out.Volume); err != nil {
				log.Error("failed to persist series refresh", zap.Error(err))
				return err
			}
		}
		log.Info("fetched")
		return nil

	case domain.OutcomePermanentFailure:
		log.Warn("permanent failure", zap.Error(out.Err))
		if c.Kind == domain.CandidateIssueBackfill {
			return nil
		}
		now := time.Now().UTC()
		if err := r.repo.MarkSeriesFailed(ctx, c.SeriesID, now); err != nil {
			log.Error("failed to persist series failure", zap.Error(err))
			return err
		}
		return nil

	case domain.OutcomeRateLimited:
		log.Warn("rate limited", zap.Error(out.Err))
		return nil

	default: // transient
		log.Warn("transient failure", zap.Error(out.Err))
		return nil
	}
}

// LogPlanned records what a dry run would have fetched. No persistence.
func (r *Recorder) LogPlanned(c domain.Candidate) {
	r.logger.Info("dry run: would fetch",
		zap.String("kind", string(c.Kind)),
		zap.Int64("series_id", c.SeriesID),
		zap.Int64("issue_id", c.IssueID),
		zap.Bool("forced", c.Forced))
}
