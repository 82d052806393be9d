// Package scheduler drains the prioritized candidate sequence through the
// fetch executor until the call budget or the sequence is exhausted.
// Exactly one candidate is in flight at a time: the protected resource is
// the catalog's global quota, not local compute. Overlapping runs would
// double-spend the budget and must be prevented by the external trigger.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/weeklypulls/primecache/internal/domain"
	"github.com/weeklypulls/primecache/internal/executor"
	"github.com/weeklypulls/primecache/internal/recorder"
	"github.com/weeklypulls/primecache/internal/selector"
)

// State is the run lifecycle: a run moves from Selecting through Draining
// to either Completed or Halted. Idle is the state before Run is invoked;
// a Scheduler holds no cross-run state, so Idle never appears in a Report.
type State string

const (
	StateIdle      State = "idle"
	StateSelecting State = "selecting"
	StateDraining  State = "draining"
	StateCompleted State = "completed"
	StateHalted    State = "halted"
)

// Options are the per-run knobs supplied at invocation.
type Options struct {
	// Budget is the ceiling on external calls for this run. Zero is valid:
	// select, spend nothing.
	Budget int
	// DryRun logs planned work and charges the budget without calling the
	// executor or persisting anything.
	DryRun bool
	// ForceVolumes re-admits permanently failed series into the expired tier.
	ForceVolumes bool
}

// Report summarizes a finished run. consumed ≤ Budget holds at every
// observation point, so RemainingBudget is never negative.
type Report struct {
	State             State
	Attempted         int
	Succeeded         int
	TransientFailures int
	PermanentFailures int
	RateLimited       int
	RemainingBudget   int
	Elapsed           time.Duration
}

// MetricHooks carries the metric callbacks injected by main. Using a
// struct keeps the constructor signature clean and the scheduler
// metrics-agnostic.
type MetricHooks struct {
	OnSelected func(kind domain.CandidateKind)
	OnOutcome  func(kind domain.OutcomeKind)
}

type Scheduler struct {
	sel    *selector.Selector
	exec   *executor.Executor
	rec    *recorder.Recorder
	logger *zap.Logger
	hooks  MetricHooks
}

func New(sel *selector.Selector, exec *executor.Executor, rec *recorder.Recorder, logger *zap.Logger, hooks MetricHooks) *Scheduler {
	if hooks.OnSelected == nil {
		hooks.OnSelected = func(domain.CandidateKind) {}
	}
	if hooks.OnOutcome == nil {
		hooks.OnOutcome = func(domain.OutcomeKind) {}
	}
	return &Scheduler{sel: sel, exec: exec, rec: rec, logger: logger, hooks: hooks}
}

// Run executes one complete run. It returns an error only when candidate
// construction fails before any budget is spent; per-candidate failures
// are contained inside the drain loop and reflected in the report. A
// cancelled context halts the run after the in-flight candidate, never
// mid-call — committed progress stays valid, the next invocation
// re-derives the remaining work from persisted state.
func (s *Scheduler) Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.Budget < 0 {
		return nil, domain.ErrNegativeBudget
	}

	start := time.Now()
	s.logger.Info("run starting",
		zap.Int("budget", opts.Budget),
		zap.Bool("dry_run", opts.DryRun),
		zap.Bool("force_volumes", opts.ForceVolumes))

	state := StateSelecting
	// Sequence construction is not charged against the budget.
	seq, err := s.sel.Select(ctx, start.UTC(), opts.ForceVolumes)
	if err != nil {
		s.logger.Error("selection failed", zap.String("state", string(state)), zap.Error(err))
		return nil, err
	}

	state = StateDraining
	report := &Report{}
	consumed := 0

	for {
		if consumed >= opts.Budget {
			state = StateCompleted
			s.logger.Info("budget exhausted", zap.Int("consumed", consumed))
			break
		}
		// Cancellation checkpoint: before popping the next candidate.
		if ctx.Err() != nil {
			state = StateHalted
			break
		}

		c, ok := seq.Next()
		if !ok {
			state = StateCompleted
			s.logger.Info("candidate sequence drained", zap.Int("consumed", consumed))
			break
		}
		s.hooks.OnSelected(c.Kind)

		if opts.DryRun {
			s.rec.LogPlanned(c)
			consumed++
			report.Attempted++
			continue
		}

		out, err := s.exec.Fetch(ctx, c)
		if err != nil {
			// Cancelled at the rate-limiter gate; the call was never
			// issued, so no budget is charged.
			state = StateHalted
			break
		}
		if err := s.rec.Commit(ctx, c, out); err != nil {
			s.logger.Error("commit failed", zap.Error(err))
		}

		// A failed call still spends one unit of the external quota.
		consumed++
		report.Attempted++
		s.hooks.OnOutcome(out.Kind)
		switch out.Kind {
		case domain.OutcomeSuccess:
			report.Succeeded++
		case domain.OutcomePermanentFailure:
			report.PermanentFailures++
		case domain.OutcomeRateLimited:
			report.RateLimited++
			report.TransientFailures++
		default:
			report.TransientFailures++
		}
	}

	report.State = state
	report.RemainingBudget = opts.Budget - consumed
	report.Elapsed = time.Since(start)

	s.logger.Info("run finished",
		zap.String("state", string(report.State)),
		zap.Int("attempted", report.Attempted),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("transient_failures", report.TransientFailures),
		zap.Int("permanent_failures", report.PermanentFailures),
		zap.Int("rate_limited", report.RateLimited),
		zap.Int("remaining_budget", report.RemainingBudget),
		zap.Duration("elapsed", report.Elapsed))

	return report, nil
}
