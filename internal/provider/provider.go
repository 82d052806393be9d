package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/weeklypulls/primecache/internal/domain"
)

// Catalog abstracts the external catalog API. The real client carries its
// own bounded retry/backoff; callers only see the final error, which
// Classify maps to an outcome kind. Mocking this interface in tests gives
// full control over catalog behaviour without real HTTP calls.
type Catalog interface {
	FetchVolume(ctx context.Context, id int64) (*domain.VolumePayload, error)
	FetchIssue(ctx context.Context, id int64) (*domain.IssuePayload, error)
}

// HTTPError is returned when the catalog responds with a non-2xx status.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("catalog HTTP status %d", e.StatusCode)
}

// ServiceError is an API-level error carried inside a 200 response
// envelope. Code 1 means OK; anything else is an error, with
// rateLimitCode signalling that the API key's quota is spent.
type ServiceError struct {
	Code    int
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("catalog service error %d: %s", e.Code, e.Message)
}

const rateLimitCode = 107

// ErrMalformedResponse marks a response body that could not be decoded.
var ErrMalformedResponse = errors.New("malformed catalog response")

// Classify maps a catalog call error to an outcome kind.
//
//	nil                      → Success
//	429 / API quota error    → RateLimited
//	5xx, network, timeout    → TransientFailure
//	other 4xx, bad payload   → PermanentFailure
//
// Unrecognized errors default to transient: retrying on a later run is
// cheap, a wrongly permanent skip is not.
func Classify(err error) domain.OutcomeKind {
	if err == nil {
		return domain.OutcomeSuccess
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return domain.OutcomeRateLimited
		case httpErr.StatusCode >= 500:
			return domain.OutcomeTransientFailure
		default:
			return domain.OutcomePermanentFailure
		}
	}

	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		if svcErr.Code == rateLimitCode {
			return domain.OutcomeRateLimited
		}
		// Invalid key, object not found, bad filter: retrying won't help.
		return domain.OutcomePermanentFailure
	}

	if errors.Is(err, ErrMalformedResponse) {
		return domain.OutcomePermanentFailure
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return domain.OutcomeTransientFailure
	}

	return domain.OutcomeTransientFailure
}
