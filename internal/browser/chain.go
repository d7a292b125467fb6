package browser

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// NamedFetcher pairs a Fetcher with a name for logging.
type NamedFetcher struct {
	Name    string
	Fetcher Fetcher
}

// Named wraps f with a display name.
func Named(name string, f Fetcher) NamedFetcher {
	return NamedFetcher{Name: name, Fetcher: f}
}

// Chain tries fetchers in priority order, returning the first success.
type Chain struct {
	fetchers []NamedFetcher
}

// NewChain creates a Chain. Fetchers are tried in the order given.
func NewChain(fetchers ...NamedFetcher) *Chain {
	return &Chain{fetchers: fetchers}
}

// Fetch tries each fetcher in order for url. Context cancellation stops the
// chain. When every fetcher fails the last error is returned, so a
// *NavigationError from the final fetcher is preserved.
func (c *Chain) Fetch(ctx context.Context, url string, opts FetchOptions) (string, error) {
	var lastErr error
	for _, nf := range c.fetchers {
		html, err := nf.Fetcher.Fetch(ctx, url, opts)
		if err == nil {
			return html, nil
		}
		zap.L().Debug("browser: fetcher failed, trying next",
			zap.String("fetcher", nf.Name),
			zap.String("url", url),
			zap.Error(err),
		)
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", eris.Errorf("browser: no fetchers configured for %s", url)
}
