package domain

import "time"

// Series is a tracked periodical volume whose metadata is cached from the
// external catalog API.
type Series struct {
	ID              int64
	Name            string
	StartYear       *int
	LastRefreshedAt *time.Time
	LastFailedAt    *time.Time
	FailureCount    int
}

// Missing reports whether the series has never been fetched successfully.
// A missing series outranks every expired one during selection.
func (s *Series) Missing() bool {
	return s.LastRefreshedAt == nil
}

// Issue is one discrete release belonging to a Series. Its existence implies
// the parent series has been fetched at least once.
type Issue struct {
	ID          int64
	SeriesID    int64
	Name        string
	Number      string
	ReleaseDate *time.Time
	Fetched     bool
}

// CandidateKind is the tier a fetch candidate was selected under.
type CandidateKind string

const (
	CandidateMissingVolume CandidateKind = "missing_volume"
	CandidateExpiredVolume CandidateKind = "expired_volume"
	CandidateIssueBackfill CandidateKind = "issue_backfill"
)

// Candidate is one unit of pending fetch work. Candidates are rebuilt from
// persisted state every run and never stored.
type Candidate struct {
	Kind     CandidateKind
	SeriesID int64
	// IssueID is set only for CandidateIssueBackfill.
	IssueID int64
	// Staleness is how far past its refresh interval the series is at
	// selection time. Ordering key within the expired tier.
	Staleness time.Duration
	// Forced marks a previously failed series re-admitted by force mode.
	Forced bool
}

// OutcomeKind classifies the result of one executor call.
type OutcomeKind string

const (
	OutcomeSuccess          OutcomeKind = "success"
	OutcomeTransientFailure OutcomeKind = "transient_failure"
	OutcomePermanentFailure OutcomeKind = "permanent_failure"
	OutcomeRateLimited      OutcomeKind = "rate_limited"
)

// Outcome is the classified result of one catalog call, consumed by the
// recorder and discarded.
type Outcome struct {
	Kind    OutcomeKind
	Volume  *VolumePayload
	Issue   *IssuePayload
	Err     error
	Elapsed time.Duration
}

// VolumePayload is the catalog's representation of a series, kept raw
// alongside the fields the cache materializes.
type VolumePayload struct {
	ID            int64
	Name          string
	StartYear     *int
	CountOfIssues int
	Raw           []byte
}

// IssuePayload is the catalog's representation of a single release.
type IssuePayload struct {
	ID          int64
	VolumeID    int64
	Name        string
	Number      string
	ReleaseDate *time.Time
	Raw         []byte
}
