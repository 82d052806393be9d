package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/weeklypulls/primecache/internal/domain"
)

// MockCatalogRepository is a hand-written, in-memory implementation of
// CatalogRepository used in unit tests. No mock-generation library needed.
type MockCatalogRepository struct {
	mu     sync.RWMutex
	series map[int64]*domain.Series
	issues map[int64]*domain.Issue

	// Optional error overrides — set in tests to simulate failure paths.
	ListSeriesErr          error
	ListUnfetchedIssuesErr error
	MarkSeriesRefreshedErr error
	MarkSeriesFailedErr    error
	MarkIssueFetchedErr    error
}

func NewMockCatalogRepository() *MockCatalogRepository {
	return &MockCatalogRepository{
		series: make(map[int64]*domain.Series),
		issues: make(map[int64]*domain.Issue),
	}
}

// AddSeries seeds a series row. The stored value is a copy.
func (m *MockCatalogRepository) AddSeries(s *domain.Series) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *s
	m.series[s.ID] = &clone
}

// AddIssue seeds an issue row. The stored value is a copy.
func (m *MockCatalogRepository) AddIssue(i *domain.Issue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *i
	m.issues[i.ID] = &clone
}

// Series returns a copy of the stored series row, or nil.
func (m *MockCatalogRepository) Series(id int64) *domain.Series {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.series[id]
	if !ok {
		return nil
	}
	clone := *s
	return &clone
}

// Issue returns a copy of the stored issue row, or nil.
func (m *MockCatalogRepository) Issue(id int64) *domain.Issue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.issues[id]
	if !ok {
		return nil
	}
	clone := *i
	return &clone
}

func (m *MockCatalogRepository) ListSeries(_ context.Context) ([]*domain.Series, error) {
	if m.ListSeriesErr != nil {
		return nil, m.ListSeriesErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Series, 0, len(m.series))
	for _, s := range m.series {
		clone := *s
		result = append(result, &clone)
	}
	sort.Slice(result, func(a, b int) bool { return result[a].ID < result[b].ID })
	return result, nil
}

func (m *MockCatalogRepository) ListUnfetchedIssues(_ context.Context) ([]*domain.Issue, error) {
	if m.ListUnfetchedIssuesErr != nil {
		return nil, m.ListUnfetchedIssuesErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Issue
	for _, i := range m.issues {
		if i.Fetched {
			continue
		}
		clone := *i
		result = append(result, &clone)
	}
	sort.Slice(result, func(a, b int) bool { return result[a].ID < result[b].ID })
	return result, nil
}

func (m *MockCatalogRepository) MarkSeriesRefreshed(_ context.Context, id int64, refreshedAt time.Time, payload *domain.VolumePayload) error {
	if m.MarkSeriesRefreshedErr != nil {
		return m.MarkSeriesRefreshedErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.series[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Name = payload.Name
	s.StartYear = payload.StartYear
	t := refreshedAt
	s.LastRefreshedAt = &t
	s.LastFailedAt = nil
	s.FailureCount = 0
	return nil
}

func (m *MockCatalogRepository) MarkSeriesFailed(_ context.Context, id int64, failedAt time.Time) error {
	if m.MarkSeriesFailedErr != nil {
		return m.MarkSeriesFailedErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.series[id]
	if !ok {
		return domain.ErrNotFound
	}
	t := failedAt
	s.LastFailedAt = &t
	s.FailureCount++
	return nil
}

func (m *MockCatalogRepository) MarkIssueFetched(_ context.Context, id int64, payload *domain.IssuePayload) error {
	if m.MarkIssueFetchedErr != nil {
		return m.MarkIssueFetchedErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.issues[id]
	if !ok {
		return domain.ErrNotFound
	}
	i.Name = payload.Name
	i.Number = payload.Number
	i.ReleaseDate = payload.ReleaseDate
	i.Fetched = true
	return nil
}

// compile-time check that the mock implements the interface
var _ CatalogRepository = (*MockCatalogRepository)(nil)
