package browser

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/article-enhancer/pkg/firecrawl"
)

// FirecrawlFetcher renders pages through the Firecrawl scrape API and returns
// the raw HTML it captured.
type FirecrawlFetcher struct {
	client firecrawl.Client
}

// NewFirecrawlFetcher creates a FirecrawlFetcher backed by client.
func NewFirecrawlFetcher(client firecrawl.Client) *FirecrawlFetcher {
	return &FirecrawlFetcher{client: client}
}

// Fetch scrapes url. A WaitSelector is not supported by the API, so network
// idle and DOM stable waits map to a short fixed delay instead.
func (f *FirecrawlFetcher) Fetch(ctx context.Context, url string, opts FetchOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	req := firecrawl.ScrapeRequest{
		URL:     url,
		Formats: []string{firecrawl.FormatRawHTML},
		Timeout: int(opts.timeout().Milliseconds()),
	}
	if opts.Wait != WaitLoad {
		req.WaitFor = 1000
	}

	resp, err := f.client.Scrape(ctx, req)
	if err != nil {
		return "", navError(url, err)
	}
	if resp.Data.Metadata.StatusCode >= 400 {
		return "", navError(url, eris.Errorf("status %d", resp.Data.Metadata.StatusCode))
	}
	html := resp.Data.RawHTML
	if html == "" {
		html = resp.Data.HTML
	}
	if html == "" {
		return "", navError(url, eris.New("empty page"))
	}
	return html, nil
}
