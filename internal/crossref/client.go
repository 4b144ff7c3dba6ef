package crossref

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// BaseURL is the CrossRef REST API base URL.
	BaseURL = "https://api.crossref.org"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// RateLimit is the default request rate. CrossRef asks anonymous
	// clients to stay well below 50 requests per second.
	RateLimit = 5.0

	// DefaultSearchRows is the number of candidates requested per search.
	DefaultSearchRows = 5
)

// Client is a rate-limited HTTP client for the CrossRef REST API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	mailto     string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithMailto sets the contact address sent with every request, which routes
// requests to CrossRef's polite pool.
func WithMailto(addr string) ClientOption {
	return func(c *Client) {
		c.mailto = addr
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithRateLimit sets the maximum requests per second. Non-positive values
// are ignored.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// NewClient creates a new CrossRef API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    BaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// checkHTTPErrors returns an error if the HTTP response indicates a problem.
func checkHTTPErrors(resp *http.Response, doi string) error {
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, doi)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP %d", resp.StatusCode),
			DOI:        doi,
		}
	}
	return nil
}

// get performs a rate-limited GET and returns the response body.
func (c *Client) get(ctx context.Context, path string, params url.Values, doi string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	if c.mailto != "" {
		params.Set("mailto", c.mailto)
	}
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	ua := "catalog/1.0"
	if c.mailto != "" {
		ua += " (mailto:" + c.mailto + ")"
	}
	req.Header.Set("User-Agent", ua)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if err := checkHTTPErrors(resp, doi); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrNetworkError, err)
	}
	return body, nil
}

// GetWork fetches the work registered under doi.
func (c *Client) GetWork(ctx context.Context, doi string) (*Work, error) {
	doi = NormalizeDOI(doi)
	if doi == "" {
		return nil, fmt.Errorf("%w: empty DOI", ErrNotFound)
	}

	body, err := c.get(ctx, "/works/"+url.PathEscape(doi), url.Values{}, doi)
	if err != nil {
		return nil, err
	}

	var resp workResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing work: %v", ErrInvalidResponse, err)
	}
	return decodeWork(resp.Message)
}

// Search runs a bibliographic query and returns up to rows candidate works,
// best match first.
func (c *Client) Search(ctx context.Context, q Query, rows int) ([]Work, error) {
	if rows <= 0 {
		rows = DefaultSearchRows
	}

	params := url.Values{}
	if q.Title != "" {
		params.Set("query.bibliographic", q.Title)
	}
	if q.Author != "" {
		params.Set("query.author", q.Author)
	}
	if len(params) == 0 {
		return nil, fmt.Errorf("%w: query has no title or author", ErrNotFound)
	}
	if y, err := strconv.Atoi(q.Year); err == nil && y > 0 {
		params.Set("filter", fmt.Sprintf("from-pub-date:%d,until-pub-date:%d", y, y))
	}
	params.Set("rows", strconv.Itoa(rows))

	body, err := c.get(ctx, "/works", params, "")
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing search results: %v", ErrInvalidResponse, err)
	}

	works := make([]Work, 0, len(resp.Message.Items))
	for _, item := range resp.Message.Items {
		w, err := decodeWork(item)
		if err != nil {
			return nil, err
		}
		works = append(works, *w)
	}
	return works, nil
}

func decodeWork(raw json.RawMessage) (*Work, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty work", ErrInvalidResponse)
	}
	var w Work
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: parsing work: %v", ErrInvalidResponse, err)
	}
	w.Raw = append(json.RawMessage(nil), raw...)
	return &w, nil
}

// NormalizeDOI normalizes a DOI for comparison: URL and "doi:" prefixes are
// removed, surrounding space trimmed and the result lowercased.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	lower := strings.ToLower(doi)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi.org/", "doi:"} {
		if strings.HasPrefix(lower, prefix) {
			lower = lower[len(prefix):]
			break
		}
	}
	return strings.TrimSpace(lower)
}
