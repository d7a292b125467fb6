// Package browser loads web pages and returns their rendered HTML.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/article-enhancer/internal/config"
	"github.com/sells-group/article-enhancer/pkg/firecrawl"
	"github.com/sells-group/article-enhancer/pkg/jina"
)

// WaitCondition selects when a navigation counts as finished.
type WaitCondition int

const (
	// WaitLoad waits for the load event.
	WaitLoad WaitCondition = iota
	// WaitNetworkIdle waits until the network is almost idle.
	WaitNetworkIdle
	// WaitDOMStable waits until the DOM stops changing.
	WaitDOMStable
)

func (w WaitCondition) String() string {
	switch w {
	case WaitNetworkIdle:
		return "network_idle"
	case WaitDOMStable:
		return "dom_stable"
	default:
		return "load"
	}
}

// DefaultTimeout bounds a fetch when FetchOptions.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// FetchOptions controls a single fetch.
type FetchOptions struct {
	Wait WaitCondition
	// WaitSelector, when set, must match an element before the page is read.
	WaitSelector string
	Timeout      time.Duration
}

func (o FetchOptions) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

// Fetcher loads a URL and returns the page's full HTML. Every call is
// independent; implementations hold no session state between calls.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts FetchOptions) (string, error)
}

// NavigationError reports a page that could not be loaded in time or at all.
type NavigationError struct {
	URL     string
	Timeout bool
	Err     error
}

func (e *NavigationError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("navigation to %s timed out: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// IsNavigationError reports whether err (or any error it wraps) is a
// *NavigationError.
func IsNavigationError(err error) bool {
	var ne *NavigationError
	return errors.As(err, &ne)
}

func navError(url string, err error) error {
	return &NavigationError{
		URL:     url,
		Timeout: errors.Is(err, context.DeadlineExceeded),
		Err:     err,
	}
}

// New builds the Fetcher selected by cfg.Browser.Driver. The chain driver
// tries rod, then plain HTTP, then Firecrawl when a key is configured, and
// finally Jina.
func New(cfg *config.Config) (Fetcher, error) {
	bc := cfg.Browser
	switch bc.Driver {
	case "rod", "":
		return NewRodFetcher(bc), nil
	case "http":
		return NewHTTPFetcher(bc.UserAgent), nil
	case "jina":
		return NewJinaFetcher(NewJinaClient(cfg.Jina)), nil
	case "firecrawl":
		if cfg.Firecrawl.Key == "" {
			return nil, eris.New("browser: firecrawl driver requires firecrawl.key")
		}
		return NewFirecrawlFetcher(NewFirecrawlClient(cfg.Firecrawl)), nil
	case "chain":
		fetchers := []NamedFetcher{
			Named("rod", NewRodFetcher(bc)),
			Named("http", NewHTTPFetcher(bc.UserAgent)),
		}
		if cfg.Firecrawl.Key != "" {
			fetchers = append(fetchers, Named("firecrawl", NewFirecrawlFetcher(NewFirecrawlClient(cfg.Firecrawl))))
		}
		fetchers = append(fetchers, Named("jina", NewJinaFetcher(NewJinaClient(cfg.Jina))))
		return NewChain(fetchers...), nil
	default:
		return nil, eris.Errorf("browser: unsupported driver %q", bc.Driver)
	}
}

// NewJinaClient builds a Jina client from config.
func NewJinaClient(cfg config.JinaConfig) jina.Client {
	var opts []jina.Option
	if cfg.BaseURL != "" {
		opts = append(opts, jina.WithBaseURL(cfg.BaseURL))
	}
	if cfg.SearchBaseURL != "" {
		opts = append(opts, jina.WithSearchBaseURL(cfg.SearchBaseURL))
	}
	return jina.NewClient(cfg.Key, opts...)
}

// NewFirecrawlClient builds a Firecrawl client from config.
func NewFirecrawlClient(cfg config.FirecrawlConfig) firecrawl.Client {
	var opts []firecrawl.Option
	if cfg.BaseURL != "" {
		opts = append(opts, firecrawl.WithBaseURL(cfg.BaseURL))
	}
	return firecrawl.NewClient(cfg.Key, opts...)
}
