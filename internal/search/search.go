// Package search finds reference pages for an article title.
package search

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/article-enhancer/internal/browser"
	"github.com/sells-group/article-enhancer/internal/config"
	"github.com/sells-group/article-enhancer/internal/model"
	"github.com/sells-group/article-enhancer/internal/resilience"
	"github.com/sells-group/article-enhancer/pkg/jina"
)

// Provider returns ranked result pages for a query. Zero results is a normal
// outcome and is reported as an empty slice with a nil error.
type Provider interface {
	Search(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error)
}

// New builds the Provider selected by cfg.Driver. Browser searches go through
// a circuit breaker so a blocked engine stops costing a page timeout per
// article.
func New(cfg config.SearchConfig, fetcher browser.Fetcher, jc jina.Client) (Provider, error) {
	deny := NewDenylist(cfg.Denylist)
	switch cfg.Driver {
	case "browser", "":
		guarded := browser.NewGuardedFetcher("search", fetcher,
			resilience.FromCircuitConfig(cfg.BreakerThreshold, cfg.BreakerResetSecs))
		return NewBrowserProvider(guarded, cfg, deny), nil
	case "jina":
		if jc == nil {
			return nil, eris.New("search: jina driver requires a jina client")
		}
		return NewJinaProvider(jc, deny), nil
	default:
		return nil, eris.Errorf("search: unsupported driver %q", cfg.Driver)
	}
}

// Denylist rejects result URLs on hosts that never carry article content.
// A host matches an entry when it equals it or is a subdomain of it.
type Denylist struct {
	hosts []string
}

// NewDenylist creates a Denylist from bare host names.
func NewDenylist(hosts []string) *Denylist {
	d := &Denylist{}
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			d.hosts = append(d.hosts, strings.TrimPrefix(h, "www."))
		}
	}
	return d
}

// Allowed reports whether raw is an absolute http(s) URL whose host is not
// denied.
func (d *Denylist) Allowed(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, h := range d.hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return false
		}
	}
	return true
}
