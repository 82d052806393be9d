// Package selector builds the prioritized fetch-candidate sequence for one
// run. Three tiers, never interleaved:
//
//  1. missing volumes (never fetched), ID order
//  2. expired volumes, most overdue first; force mode re-admits
//     previously failed volumes ahead of equally stale ones
//  3. issue backfill, recently started series first, newest releases first
//
// Candidates are rebuilt from persisted state every run, which is what
// makes repeated invocations idempotent.
package selector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/weeklypulls/primecache/internal/domain"
	"github.com/weeklypulls/primecache/internal/policy"
	"github.com/weeklypulls/primecache/internal/repository"
)

// backfillRecentYears bounds the "recent series" partition of tier 3:
// series first published within this many years get their issues fetched
// before any older series' issues.
const backfillRecentYears = 5

// Sequence is a finite, single-pass candidate sequence. Tiers are staged
// lazily: the expired ranking and the backfill ordering are only computed
// once the preceding tier is exhausted, so a run that spends its whole
// budget on missing volumes never pays for sorting the tail.
type Sequence struct {
	stages  []func() []domain.Candidate
	current []domain.Candidate
	pos     int
}

// Next pops the next candidate in priority order. The second return is
// false once the sequence is drained. Not safe for concurrent use; the
// scheduler is the single consumer.
func (s *Sequence) Next() (domain.Candidate, bool) {
	for s.pos >= len(s.current) {
		if len(s.stages) == 0 {
			return domain.Candidate{}, false
		}
		s.current = s.stages[0]()
		s.stages = s.stages[1:]
		s.pos = 0
	}
	c := s.current[s.pos]
	s.pos++
	return c, true
}

// Selector consults persisted state and the refresh policy to build the
// per-run candidate sequence.
type Selector struct {
	repo   repository.CatalogRepository
	logger *zap.Logger
}

func New(repo repository.CatalogRepository, logger *zap.Logger) *Selector {
	return &Selector{repo: repo, logger: logger}
}

// Select loads series and issue state and returns the staged sequence.
// Any persistence error here is fatal for the run (wrapped in
// domain.ErrSelection): no budget has been spent yet and no partial state
// exists to preserve.
func (s *Selector) Select(ctx context.Context, now time.Time, forceVolumes bool) (*Sequence, error) {
	series, err := s.repo.ListSeries(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list series: %v", domain.ErrSelection, err)
	}
	issues, err := s.repo.ListUnfetchedIssues(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list unfetched issues: %v", domain.ErrSelection, err)
	}

	s.logger.Debug("selection state loaded",
		zap.Int("series", len(series)),
		zap.Int("unfetched_issues", len(issues)),
		zap.Bool("force_volumes", forceVolumes))

	return &Sequence{
		stages: []func() []domain.Candidate{
			func() []domain.Candidate { return missingTier(series) },
			func() []domain.Candidate { return expiredTier(series, now, forceVolumes) },
			func() []domain.Candidate { return backfillTier(series, issues, now) },
		},
	}, nil
}

// missingTier: series never fetched, in ID order (ListSeries is already
// ID-ordered; kept explicit for the mock and for determinism).
func missingTier(series []*domain.Series) []domain.Candidate {
	var out []domain.Candidate
	for _, s := range series {
		if !s.Missing() {
			continue
		}
		out = append(out, domain.Candidate{
			Kind:     domain.CandidateMissingVolume,
			SeriesID: s.ID,
		})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].SeriesID < out[b].SeriesID })
	return out
}

// expiredTier: fetched-before series whose data has outlived its refresh
// interval, most overdue first. Series with a recorded permanent failure
// are skipped unless force is set, in which case they are included
// regardless of expiry and win staleness ties.
func expiredTier(series []*domain.Series, now time.Time, force bool) []domain.Candidate {
	var out []domain.Candidate
	for _, s := range series {
		if s.Missing() {
			continue
		}
		failed := s.LastFailedAt != nil
		if failed && !force {
			continue
		}
		forced := failed && force
		if !forced && !policy.IsExpired(s, now) {
			continue
		}
		out = append(out, domain.Candidate{
			Kind:      domain.CandidateExpiredVolume,
			SeriesID:  s.ID,
			Staleness: policy.Staleness(s, now),
			Forced:    forced,
		})
	}
	sort.Slice(out, func(a, b int) bool {
		ca, cb := out[a], out[b]
		if ca.Staleness != cb.Staleness {
			return ca.Staleness > cb.Staleness
		}
		if ca.Forced != cb.Forced {
			return ca.Forced
		}
		return ca.SeriesID < cb.SeriesID
	})
	return out
}

// backfillTier: unfetched issues, split into issues of recently started
// series and everything else. Older-series issues are only reached once no
// recent-series issues remain; both partitions order by release date
// descending (unknown dates last), issue ID as the deterministic tie-break.
func backfillTier(series []*domain.Series, issues []*domain.Issue, now time.Time) []domain.Candidate {
	startYears := make(map[int64]*int, len(series))
	for _, s := range series {
		startYears[s.ID] = s.StartYear
	}
	recentCutoff := now.Year() - backfillRecentYears

	var recent, older []domain.Candidate
	for _, i := range issues {
		c := domain.Candidate{
			Kind:     domain.CandidateIssueBackfill,
			SeriesID: i.SeriesID,
			IssueID:  i.ID,
		}
		year := startYears[i.SeriesID]
		if year != nil && *year >= recentCutoff {
			recent = append(recent, c)
		} else {
			older = append(older, c)
		}
	}

	releaseDates := make(map[int64]*time.Time, len(issues))
	for _, i := range issues {
		releaseDates[i.ID] = i.ReleaseDate
	}
	byRecency := func(cs []domain.Candidate) func(a, b int) bool {
		return func(a, b int) bool {
			da, db := releaseDates[cs[a].IssueID], releaseDates[cs[b].IssueID]
			switch {
			case da != nil && db != nil && !da.Equal(*db):
				return da.After(*db)
			case da != nil && db == nil:
				return true
			case da == nil && db != nil:
				return false
			}
			return cs[a].IssueID < cs[b].IssueID
		}
	}
	sort.Slice(recent, byRecency(recent))
	sort.Slice(older, byRecency(older))

	return append(recent, older...)
}
