package domain

import "errors"

// Sentinel errors used throughout the application.
var (
	ErrNotFound = errors.New("not found")
	// ErrSelection wraps any persistence failure during candidate
	// construction. It is the only fatal error class: it aborts the run
	// before any budget is spent and maps to a non-zero exit.
	ErrSelection = errors.New("candidate selection failed")
	// ErrNegativeBudget rejects an invalid --limit before a run starts.
	ErrNegativeBudget = errors.New("budget must be non-negative")
)
