package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/weeklypulls/primecache/internal/domain"
)

// ComicVine resource type prefixes used in detail URLs.
const (
	volumePrefix = "4050"
	issuePrefix  = "4000"
)

// ComicVineClient fetches volume and issue metadata from the ComicVine API.
// The base URL is injected from config so tests can point to a local mock.
type ComicVineClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewComicVineClient(baseURL, apiKey string, timeout time.Duration) *ComicVineClient {
	return &ComicVineClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// envelope is ComicVine's response wrapper. StatusCode 1 means OK; error
// conditions (bad key, not found, quota) arrive inside a 200 response.
type envelope struct {
	Error      string          `json:"error"`
	StatusCode int             `json:"status_code"`
	Results    json.RawMessage `json:"results"`
}

type volumeResult struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	StartYear     string `json:"start_year"`
	CountOfIssues int    `json:"count_of_issues"`
}

type issueResult struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Number string `json:"issue_number"`
	Volume struct {
		ID int64 `json:"id"`
	} `json:"volume"`
	StoreDate string `json:"store_date"`
	CoverDate string `json:"cover_date"`
}

// FetchVolume retrieves one volume's metadata.
func (c *ComicVineClient) FetchVolume(ctx context.Context, id int64) (*domain.VolumePayload, error) {
	raw, err := c.get(ctx, fmt.Sprintf("volume/%s-%d", volumePrefix, id),
		"id,name,start_year,count_of_issues")
	if err != nil {
		return nil, err
	}

	var v volumeResult
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: volume %d: %v", ErrMalformedResponse, id, err)
	}

	payload := &domain.VolumePayload{
		ID:            v.ID,
		Name:          v.Name,
		CountOfIssues: v.CountOfIssues,
		Raw:           raw,
	}
	if year, err := parseYear(v.StartYear); err == nil {
		payload.StartYear = &year
	}
	return payload, nil
}

// FetchIssue retrieves one issue's metadata.
func (c *ComicVineClient) FetchIssue(ctx context.Context, id int64) (*domain.IssuePayload, error) {
	raw, err := c.get(ctx, fmt.Sprintf("issue/%s-%d", issuePrefix, id),
		"id,name,issue_number,volume,store_date,cover_date")
	if err != nil {
		return nil, err
	}

	var i issueResult
	if err := json.Unmarshal(raw, &i); err != nil {
		return nil, fmt.Errorf("%w: issue %d: %v", ErrMalformedResponse, id, err)
	}

	payload := &domain.IssuePayload{
		ID:       i.ID,
		VolumeID: i.Volume.ID,
		Name:     i.Name,
		Number:   i.Number,
		Raw:      raw,
	}
	// Store date is when the issue hit shelves; cover date is the fallback.
	if t, err := parseDate(i.StoreDate); err == nil {
		payload.ReleaseDate = &t
	} else if t, err := parseDate(i.CoverDate); err == nil {
		payload.ReleaseDate = &t
	}
	return payload, nil
}

// get performs one GET against the catalog and unwraps the envelope.
func (c *ComicVineClient) get(ctx context.Context, resource, fieldList string) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("format", "json")
	q.Set("field_list", fieldList)
	reqURL := fmt.Sprintf("%s/%s/?%s", c.baseURL, resource, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil, &HTTPError{StatusCode: resp.StatusCode}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if env.StatusCode != 1 {
		return nil, &ServiceError{Code: env.StatusCode, Message: env.Error}
	}

	return env.Results, nil
}

func parseYear(s string) (int, error) {
	var year int
	if _, err := fmt.Sscanf(s, "%d", &year); err != nil {
		return 0, err
	}
	if year < 1800 || year > 3000 {
		return 0, fmt.Errorf("implausible year %d", year)
	}
	return year, nil
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// compile-time check that ComicVineClient implements Catalog
var _ Catalog = (*ComicVineClient)(nil)
