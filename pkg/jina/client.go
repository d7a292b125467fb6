// Package jina provides a client for the Jina AI reader and search API.
package jina

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/article-enhancer/internal/resilience"
)

// Client defines the Jina AI Reader operations.
type Client interface {
	// Read fetches a URL via Jina AI Reader. Content is markdown unless a
	// different return format is requested.
	Read(ctx context.Context, targetURL string, opts ...ReadOption) (*ReadResponse, error)
	// Search performs a web search via Jina AI Search and returns results.
	Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error)
}

// ReadResponse is the parsed Jina API response.
type ReadResponse struct {
	Code int      `json:"code"`
	Data ReadData `json:"data"`
}

// ReadData holds the content from Jina.
type ReadData struct {
	Title   string    `json:"title"`
	URL     string    `json:"url"`
	Content string    `json:"content"`
	HTML    string    `json:"html"`
	Usage   ReadUsage `json:"usage"`
}

// ReadUsage tracks token consumption.
type ReadUsage struct {
	Tokens int `json:"tokens"`
}

// SearchResponse is the parsed Jina Search API response.
type SearchResponse struct {
	Code int            `json:"code"`
	Data []SearchResult `json:"data"`
}

// SearchResult represents a single search result.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Content     string `json:"content"`
	Description string `json:"description"`
}

// ReadOption configures a read request.
type ReadOption func(*readOpts)

type readOpts struct {
	format       string
	waitSelector string
	timeout      time.Duration
}

// WithReturnFormat selects the response body format ("markdown", "html", "text").
func WithReturnFormat(format string) ReadOption {
	return func(o *readOpts) {
		o.format = format
	}
}

// WithWaitForSelector asks the reader to wait until selector is present
// before capturing the page.
func WithWaitForSelector(selector string) ReadOption {
	return func(o *readOpts) {
		o.waitSelector = selector
	}
}

// WithReadTimeout bounds the reader's own page load time.
func WithReadTimeout(d time.Duration) ReadOption {
	return func(o *readOpts) {
		o.timeout = d
	}
}

// SearchOption configures a search request.
type SearchOption func(*searchOpts)

type searchOpts struct {
	siteFilter string
}

// WithSiteFilter restricts search results to a specific domain.
func WithSiteFilter(domain string) SearchOption {
	return func(o *searchOpts) {
		o.siteFilter = domain
	}
}

// Option configures the Jina client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithSearchBaseURL sets a custom search base URL (for testing).
func WithSearchBaseURL(url string) Option {
	return func(c *httpClient) {
		c.searchBaseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetry overrides the retry policy for transient statuses.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	apiKey        string
	baseURL       string
	searchBaseURL string
	http          *http.Client
	retry         resilience.RetryConfig
}

// NewClient creates a new Jina AI Reader client. The API key is optional;
// keyless requests are served at a lower rate limit.
func NewClient(apiKey string, opts ...Option) Client {
	retry := resilience.DefaultRetryConfig()
	retry.InitialBackoff = time.Second
	retry.OnRetry = resilience.RetryLogger("jina", "request")

	c := &httpClient{
		apiKey:        apiKey,
		baseURL:       "https://r.jina.ai",
		searchBaseURL: "https://s.jina.ai",
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: retry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rawResponse struct {
	body   []byte
	status int
}

// do executes an HTTP request, retrying transient statuses (429, 5xx) and
// network failures according to the client's retry policy. The final
// response is returned even when its status is non-2xx.
func (c *httpClient) do(ctx context.Context, req *http.Request) (rawResponse, error) {
	var last rawResponse
	_, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (rawResponse, error) {
		resp, err := c.http.Do(req.Clone(ctx))
		if err != nil {
			return rawResponse{}, err
		}
		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return rawResponse{}, eris.Wrap(readErr, "jina: read response body")
		}

		last = rawResponse{body: body, status: resp.StatusCode}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return last, resilience.NewTransientError(
				eris.Errorf("jina: status %d: %s", resp.StatusCode, string(body)), resp.StatusCode)
		}
		return last, nil
	})
	if err != nil {
		var te *resilience.TransientError
		if errors.As(err, &te) && te.StatusCode != 0 && ctx.Err() == nil {
			// Retries exhausted on a status code: surface it to the caller.
			return last, nil
		}
		return rawResponse{}, err
	}
	return last, nil
}

func (c *httpClient) setAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
}

func (c *httpClient) Read(ctx context.Context, targetURL string, opts ...ReadOption) (*ReadResponse, error) {
	ro := &readOpts{format: "markdown"}
	for _, opt := range opts {
		opt(ro)
	}

	reqURL := fmt.Sprintf("%s/%s", c.baseURL, targetURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "jina: create request")
	}

	c.setAuth(req)
	req.Header.Set("X-Return-Format", ro.format)
	if ro.waitSelector != "" {
		req.Header.Set("X-Wait-For-Selector", ro.waitSelector)
	}
	if ro.timeout > 0 {
		req.Header.Set("X-Timeout", fmt.Sprintf("%d", int(ro.timeout.Seconds())))
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "jina: request failed")
	}

	if resp.status != http.StatusOK {
		return nil, eris.Errorf("jina: unexpected status %d: %s", resp.status, string(resp.body))
	}

	var result ReadResponse
	if err := json.Unmarshal(resp.body, &result); err != nil {
		return nil, eris.Wrap(err, "jina: unmarshal response")
	}

	return &result, nil
}

func (c *httpClient) Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error) {
	so := &searchOpts{}
	for _, opt := range opts {
		opt(so)
	}

	reqURL := fmt.Sprintf("%s/%s", c.searchBaseURL, url.QueryEscape(query))

	if so.siteFilter != "" {
		reqURL += "?site=" + url.QueryEscape(so.siteFilter)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "jina: create search request")
	}
	c.setAuth(req)

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "jina: search request failed")
	}

	// Jina returns 422 when no results are available for the query.
	if resp.status == http.StatusUnprocessableEntity {
		return &SearchResponse{Code: 422}, nil
	}

	if resp.status != http.StatusOK {
		return nil, eris.Errorf("jina: search unexpected status %d: %s", resp.status, string(resp.body))
	}

	var result SearchResponse
	if err := json.Unmarshal(resp.body, &result); err != nil {
		return nil, eris.Wrap(err, "jina: unmarshal search response")
	}

	return &result, nil
}
