package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/weeklypulls/primecache/internal/domain"
	"github.com/weeklypulls/primecache/internal/scheduler"
)

// Metrics groups all Prometheus instruments used by a run.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
type Metrics struct {
	CandidatesSelected *prometheus.CounterVec
	FetchOutcomes      *prometheus.CounterVec
	RunDuration        prometheus.Histogram
}

// New registers all instruments with the given registerer and returns the
// populated Metrics struct.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CandidatesSelected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "primecache_candidates_selected_total",
			Help: "Fetch candidates popped from the sequence, by tier.",
		}, []string{"tier"}),

		FetchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "primecache_fetch_outcomes_total",
			Help: "Classified catalog fetch outcomes.",
		}, []string{"outcome"}),

		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "primecache_run_duration_seconds",
			Help:    "Wall-clock duration of a complete priming run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}

	reg.MustRegister(
		m.CandidatesSelected,
		m.FetchOutcomes,
		m.RunDuration,
	)

	return m
}

// SchedulerHooks returns the callbacks expected by scheduler.MetricHooks,
// centralising the observation calls so the scheduler stays import-free.
func (m *Metrics) SchedulerHooks() scheduler.MetricHooks {
	return scheduler.MetricHooks{
		OnSelected: func(kind domain.CandidateKind) {
			m.CandidatesSelected.WithLabelValues(string(kind)).Inc()
		},
		OnOutcome: func(kind domain.OutcomeKind) {
			m.FetchOutcomes.WithLabelValues(string(kind)).Inc()
		},
	}
}

// ObserveRun records the run's wall-clock duration.
func (m *Metrics) ObserveRun(elapsed time.Duration) {
	m.RunDuration.Observe(elapsed.Seconds())
}

// Serve exposes /metrics on addr for the lifetime of ctx. Runs are short
// lived, so the listener exists only so a scrape during a run can observe
// progress; scrape misses at the very end are acceptable.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	go func() {
		logger.Info("metrics listener starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics listener error", zap.Error(err))
		}
	}()
}
