package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/weeklypulls/primecache/internal/domain"
	"github.com/weeklypulls/primecache/internal/executor"
	"github.com/weeklypulls/primecache/internal/provider"
	"github.com/weeklypulls/primecache/internal/ratelimiter"
	"github.com/weeklypulls/primecache/internal/recorder"
	"github.com/weeklypulls/primecache/internal/repository"
	"github.com/weeklypulls/primecache/internal/scheduler"
	"github.com/weeklypulls/primecache/internal/selector"
)

// fakeCatalog answers every volume fetch with a minimal payload unless an
// error is scripted for that ID.
type fakeCatalog struct {
	errs  map[int64]error
	calls int
}

func (f *fakeCatalog) FetchVolume(_ context.Context, id int64) (*domain.VolumePayload, error) {
	f.calls++
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	return &domain.VolumePayload{ID: id, Name: fmt.Sprintf("Series %d", id), Raw: []byte(`{}`)}, nil
}

func (f *fakeCatalog) FetchIssue(_ context.Context, id int64) (*domain.IssuePayload, error) {
	f.calls++
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	return &domain.IssuePayload{ID: id, Raw: []byte(`{}`)}, nil
}

var _ provider.Catalog = (*fakeCatalog)(nil)

func newScheduler(repo *repository.MockCatalogRepository, cat provider.Catalog) *scheduler.Scheduler {
	logger := zap.NewNop()
	gate := ratelimiter.NewWithInterval(time.Nanosecond)
	return scheduler.New(
		selector.New(repo, logger),
		executor.New(cat, gate, logger),
		recorder.New(repo, logger),
		logger,
		scheduler.MetricHooks{},
	)
}

func TestRun_SingleMissingVolume(t *testing.T) {
	repo := repository.NewMockCatalogRepository()
	repo.AddSeries(&domain.Series{ID: 1})
	sched := newScheduler(repo, &fakeCatalog{})

	before := time.Now().UTC()
	report, err := sched.Run(context.Background(), scheduler.Options{Budget: 1})
	if err != nil {
		t.Fatal(err)
	}

	if report.State != scheduler.StateCompleted {
		t.Fatalf("expected Completed, got %s", report.State)
	}
	if report.Attempted != 1 || report.Succeeded != 1 || report.RemainingBudget != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	s := repo.Series(1)
	if s.LastRefreshedAt == nil || s.LastRefreshedAt.Before(before) {
		t.Fatalf("fetch must set last_refreshed_at to the current time: %+v", s.LastRefreshedAt)
	}
}

func TestRun_BudgetExhaustion(t *testing.T) {
	repo := repository.NewMockCatalogRepository()
	for i := int64(1); i <= 200; i++ {
		repo.AddSeries(&domain.Series{ID: i})
	}
	cat := &fakeCatalog{}
	sched := newScheduler(repo, cat)

	report, err := sched.Run(context.Background(), scheduler.Options{Budget: 180})
	if err != nil {
		t.Fatal(err)
	}

	if report.State != scheduler.StateCompleted {
		t.Fatalf("budget exhaustion is Completed, not an error; got %s", report.State)
	}
	if report.Attempted != 180 || cat.calls != 180 {
		t.Fatalf("expected exactly 180 fetches, report=%+v calls=%d", report, cat.calls)
	}
	if report.RemainingBudget != 0 {
		t.Fatalf("remaining budget should be 0, got %d", report.RemainingBudget)
	}

	// The 20 unvisited series stay missing and are picked up next run.
	missing := 0
	for i := int64(1); i <= 200; i++ {
		if repo.Series(i).LastRefreshedAt == nil {
			missing++
		}
	}
	if missing != 20 {
		t.Fatalf("expected 20 series left missing, got %d", missing)
	}
}

func TestRun_FailuresSpendBudgetButDoNotAbort(t *testing.T) {
	repo := repository.NewMockCatalogRepository()
	repo.AddSeries(&domain.Series{ID: 1})
	repo.AddSeries(&domain.Series{ID: 2})
	repo.AddSeries(&domain.Series{ID: 3})
	cat := &fakeCatalog{errs: map[int64]error{
		1: &provider.HTTPError{StatusCode: 404},
		2: &provider.HTTPError{StatusCode: 503},
	}}
	sched := newScheduler(repo, cat)

	report, err := sched.Run(context.Background(), scheduler.Options{Budget: 10})
	if err != nil {
		t.Fatal(err)
	}

	if report.Attempted != 3 || report.Succeeded != 1 ||
		report.PermanentFailures != 1 || report.TransientFailures != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.RemainingBudget != 7 {
		t.Fatalf("failed calls still spend budget, remaining = %d", report.RemainingBudget)
	}
	if s := repo.Series(1); s.LastFailedAt == nil {
		t.Fatal("permanent failure must be recorded")
	}
	if s := repo.Series(2); s.LastFailedAt != nil {
		t.Fatal("transient failure must not set last_failed_at")
	}
}

func TestRun_PermanentlyFailedSeriesSkippedNextRun(t *testing.T) {
	// Series was fetched once long ago (expired by tier 2 rules) and then
	// recorded a permanent failure.
	repo := repository.NewMockCatalogRepository()
	refreshed := time.Now().UTC().Add(-60 * 24 * time.Hour)
	failed := time.Now().UTC().Add(-24 * time.Hour)
	repo.AddSeries(&domain.Series{ID: 1, LastRefreshedAt: &refreshed, LastFailedAt: &failed})
	cat := &fakeCatalog{errs: map[int64]error{1: &provider.HTTPError{StatusCode: 404}}}
	sched := newScheduler(repo, cat)
	ctx := context.Background()

	t.Run("default mode skips it", func(t *testing.T) {
		report, err := sched.Run(ctx, scheduler.Options{Budget: 5})
		if err != nil {
			t.Fatal(err)
		}
		if report.Attempted != 0 || cat.calls != 0 {
			t.Fatalf("failed series must not be selected without force: %+v", report)
		}
	})

	t.Run("force mode re-admits it", func(t *testing.T) {
		report, err := sched.Run(ctx, scheduler.Options{Budget: 5, ForceVolumes: true})
		if err != nil {
			t.Fatal(err)
		}
		if report.Attempted != 1 || report.PermanentFailures != 1 {
			t.Fatalf("force must re-admit the failed series: %+v", report)
		}
	})
}

func TestRun_DryRunNeverMutates(t *testing.T) {
	repo := repository.NewMockCatalogRepository()
	repo.AddSeries(&domain.Series{ID: 1})
	refreshed := time.Now().UTC().Add(-60 * 24 * time.Hour)
	repo.AddSeries(&domain.Series{ID: 2, LastRefreshedAt: &refreshed})
	repo.AddIssue(&domain.Issue{ID: 10, SeriesID: 2})
	cat := &fakeCatalog{}
	sched := newScheduler(repo, cat)

	report, err := sched.Run(context.Background(), scheduler.Options{Budget: 100, DryRun: true})
	if err != nil {
		t.Fatal(err)
	}

	if cat.calls != 0 {
		t.Fatalf("dry run must not call the catalog, made %d calls", cat.calls)
	}
	// Dry-run still charges the budget per planned candidate.
	if report.Attempted != 3 || report.RemainingBudget != 97 {
		t.Fatalf("unexpected dry-run report: %+v", report)
	}
	if s := repo.Series(1); s.LastRefreshedAt != nil {
		t.Fatal("dry run mutated last_refreshed_at")
	}
	if i := repo.Issue(10); i.Fetched {
		t.Fatal("dry run mutated fetched")
	}
}

func TestRun_ZeroBudgetIsIdempotent(t *testing.T) {
	repo := repository.NewMockCatalogRepository()
	repo.AddSeries(&domain.Series{ID: 1})
	cat := &fakeCatalog{}
	sched := newScheduler(repo, cat)

	for i := 0; i < 2; i++ {
		report, err := sched.Run(context.Background(), scheduler.Options{Budget: 0})
		if err != nil {
			t.Fatal(err)
		}
		if report.State != scheduler.StateCompleted || report.Attempted != 0 {
			t.Fatalf("zero budget must complete with no attempts: %+v", report)
		}
	}
	if cat.calls != 0 {
		t.Fatal("zero budget must not touch the catalog")
	}
	if s := repo.Series(1); s.LastRefreshedAt != nil || s.LastFailedAt != nil {
		t.Fatal("zero-budget runs must leave state untouched")
	}
}

func TestRun_NegativeBudgetRejected(t *testing.T) {
	sched := newScheduler(repository.NewMockCatalogRepository(), &fakeCatalog{})
	if _, err := sched.Run(context.Background(), scheduler.Options{Budget: -1}); !errors.Is(err, domain.ErrNegativeBudget) {
		t.Fatalf("expected ErrNegativeBudget, got %v", err)
	}
}

func TestRun_CancellationHalts(t *testing.T) {
	repo := repository.NewMockCatalogRepository()
	for i := int64(1); i <= 50; i++ {
		repo.AddSeries(&domain.Series{ID: i})
	}
	sched := newScheduler(repo, &fakeCatalog{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := sched.Run(ctx, scheduler.Options{Budget: 50})
	if err != nil {
		t.Fatal(err)
	}
	if report.State != scheduler.StateHalted {
		t.Fatalf("cancelled run must halt, got %s", report.State)
	}
	if report.Attempted != 0 {
		t.Fatalf("pre-cancelled run must not attempt work: %+v", report)
	}
}

func TestRun_SelectionFailureIsFatal(t *testing.T) {
	repo := repository.NewMockCatalogRepository()
	repo.ListSeriesErr = errors.New("connection refused")
	cat := &fakeCatalog{}
	sched := newScheduler(repo, cat)

	_, err := sched.Run(context.Background(), scheduler.Options{Budget: 5})
	if !errors.Is(err, domain.ErrSelection) {
		t.Fatalf("expected ErrSelection, got %v", err)
	}
	if cat.calls != 0 {
		t.Fatal("no budget may be spent when selection fails")
	}
}

func TestRun_MetricHooksObserveProgress(t *testing.T) {
	repo := repository.NewMockCatalogRepository()
	repo.AddSeries(&domain.Series{ID: 1})
	logger := zap.NewNop()

	var selected, outcomes int
	sched := scheduler.New(
		selector.New(repo, logger),
		executor.New(&fakeCatalog{}, ratelimiter.NewWithInterval(time.Nanosecond), logger),
		recorder.New(repo, logger),
		logger,
		scheduler.MetricHooks{
			OnSelected: func(domain.CandidateKind) { selected++ },
			OnOutcome:  func(domain.OutcomeKind) { outcomes++ },
		},
	)

	if _, err := sched.Run(context.Background(), scheduler.Options{Budget: 5}); err != nil {
		t.Fatal(err)
	}
	if selected != 1 || outcomes != 1 {
		t.Fatalf("hooks not invoked: selected=%d outcomes=%d", selected, outcomes)
	}
}
