package browser

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// HTTPFetcher fetches raw HTML over net/http without executing scripts.
// Wait conditions other than the selector check are no-ops.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher creates an HTTPFetcher that sends the given user agent.
func NewHTTPFetcher(userAgent string) *HTTPFetcher {
	return &HTTPFetcher{
		userAgent: userAgent,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 4,
			},
		},
	}
}

// Fetch performs a GET and returns the body as HTML.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, opts FetchOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", eris.Wrap(err, "browser: create request")
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", navError(url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", navError(url, err)
	}

	if blocked, kind := DetectBlock(resp, body); blocked {
		zap.L().Debug("browser: blocked response",
			zap.String("url", url),
			zap.String("block", string(kind)),
			zap.Int("status", resp.StatusCode),
		)
		return "", navError(url, eris.Errorf("blocked (%s)", kind))
	}
	if resp.StatusCode >= 400 {
		return "", navError(url, eris.Errorf("status %d", resp.StatusCode))
	}

	if opts.WaitSelector != "" {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return "", eris.Wrap(err, "browser: parse body")
		}
		if doc.Find(opts.WaitSelector).Length() == 0 {
			// Without script execution the selector will never appear.
			return "", &NavigationError{URL: url, Timeout: true, Err: eris.Errorf("selector %q not present", opts.WaitSelector)}
		}
	}

	return string(body), nil
}
