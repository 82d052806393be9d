// Package executor performs one rate-gated catalog call per candidate and
// classifies the result. Persistence is the recorder's job; the executor's
// only side effects are the network call and the gate's bookkeeping.
package executor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/weeklypulls/primecache/internal/domain"
	"github.com/weeklypulls/primecache/internal/provider"
	"github.com/weeklypulls/primecache/internal/ratelimiter"
)

type Executor struct {
	catalog provider.Catalog
	gate    *ratelimiter.Gate
	logger  *zap.Logger
}

func New(catalog provider.Catalog, gate *ratelimiter.Gate, logger *zap.Logger) *Executor {
	return &Executor{catalog: catalog, gate: gate, logger: logger}
}

// Fetch acquires a rate-limiter slot, calls the catalog for the
// candidate's target, and classifies the final error. The catalog client's
// own bounded retry runs before control returns here; no retries happen at
// this level.
//
// A non-nil error is returned only when ctx is cancelled while waiting at
// the gate — the call was never issued and no budget should be charged.
func (e *Executor) Fetch(ctx context.Context, c domain.Candidate) (domain.Outcome, error) {
	if err := e.gate.Wait(ctx); err != nil {
		return domain.Outcome{}, fmt.Errorf("rate limiter wait: %w", err)
	}

	// Once a call is issued it runs to completion: cancellation stops the
	// scheduler from picking up the next candidate, never a request already
	// in flight, so the server-side fate of every spent budget unit is
	// known. The catalog client's own timeout still bounds the call.
	callCtx := context.WithoutCancel(ctx)

	start := time.Now()
	out := domain.Outcome{}

	switch c.Kind {
	case domain.CandidateMissingVolume, domain.CandidateExpiredVolume:
		payload, err := e.catalog.FetchVolume(callCtx, c.SeriesID)
		out.Kind = provider.Classify(err)
		out.Volume = payload
		out.Err = err
	case domain.CandidateIssueBackfill:
		payload, err := e.catalog.FetchIssue(callCtx, c.IssueID)
		out.Kind = provider.Classify(err)
		out.Issue = payload
		out.Err = err
	default:
		out.Kind = domain.OutcomePermanentFailure
		out.Err = fmt.Errorf("unknown candidate kind %q", c.Kind)
	}

	out.Elapsed = time.Since(start)

	if out.Kind == domain.OutcomeRateLimited {
		// Distinct log: a burst of these means the gate cadence needs
		// lengthening via FETCH_SAFETY_MARGIN.
		e.logger.Warn("catalog rate limit hit despite gate",
			zap.Int64("series_id", c.SeriesID),
			zap.Int64("issue_id", c.IssueID),
			zap.Error(out.Err))
	}

	return out, nil
}
