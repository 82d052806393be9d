// Package policy maps a series' age to its refresh interval tier.
// Pure functions, no side effects: recent series are refreshed weekly,
// mid-age series biweekly, old series monthly.
package policy

import (
	"time"

	"github.com/weeklypulls/primecache/internal/domain"
)

const (
	IntervalWeekly   = 7 * 24 * time.Hour
	IntervalBiweekly = 14 * 24 * time.Hour
	IntervalMonthly  = 30 * 24 * time.Hour
)

// unknownAgeYears places series without a first-published year into the
// slowest tier.
const unknownAgeYears = 100

const hoursPerYear = 24 * 365

// IntervalFor returns the refresh interval for a series of the given age.
// Tier bounds are inclusive on the upper end: a series exactly 3 years old
// is still "recent", exactly 10 years old is still "mid-age".
func IntervalFor(ageYears float64) time.Duration {
	switch {
	case ageYears <= 3:
		return IntervalWeekly
	case ageYears <= 10:
		return IntervalBiweekly
	default:
		return IntervalMonthly
	}
}

// AgeYears computes the series' age at now from its first-published year,
// counted from January 1 of that year.
func AgeYears(s *domain.Series, now time.Time) float64 {
	if s.StartYear == nil {
		return unknownAgeYears
	}
	start := time.Date(*s.StartYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	return now.Sub(start).Hours() / hoursPerYear
}

// Interval returns the refresh interval applicable to the series at now.
func Interval(s *domain.Series, now time.Time) time.Duration {
	return IntervalFor(AgeYears(s, now))
}

// IsExpired reports whether the series' cached data is due for a refresh.
// A never-fetched series is always expired. Monotonic in elapsed time:
// once expired, a series stays expired until refreshed.
func IsExpired(s *domain.Series, now time.Time) bool {
	if s.LastRefreshedAt == nil {
		return true
	}
	return now.Sub(*s.LastRefreshedAt) >= Interval(s, now)
}

// Staleness is how far past its refresh interval the series is at now.
// Negative for series that are not yet due. Most-overdue-first ordering in
// the expired tier sorts on this value descending.
func Staleness(s *domain.Series, now time.Time) time.Duration {
	if s.LastRefreshedAt == nil {
		return time.Duration(1<<63 - 1)
	}
	return now.Sub(*s.LastRefreshedAt) - Interval(s, now)
}
