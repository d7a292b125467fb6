package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sells-group/article-enhancer/internal/browser"
	"github.com/sells-group/article-enhancer/internal/config"
	"github.com/sells-group/article-enhancer/internal/extract"
	"github.com/sells-group/article-enhancer/internal/model"
)

// BrowserProvider renders a search engine results page and scrapes the
// organic results from it.
type BrowserProvider struct {
	fetcher         browser.Fetcher
	urlTemplate     string
	resultsSelector string
	itemSelector    string
	headingSelector string
	snippetSelector string
	timeout         time.Duration
	deny            *Denylist
}

// NewBrowserProvider creates a BrowserProvider. Empty selectors fall back to
// the Google results layout.
func NewBrowserProvider(fetcher browser.Fetcher, cfg config.SearchConfig, deny *Denylist) *BrowserProvider {
	p := &BrowserProvider{
		fetcher:         fetcher,
		urlTemplate:     cfg.URLTemplate,
		resultsSelector: cfg.ResultsSelector,
		itemSelector:    cfg.ItemSelector,
		headingSelector: cfg.HeadingSelector,
		snippetSelector: cfg.SnippetSelector,
		timeout:         cfg.Timeout(),
		deny:            deny,
	}
	if p.urlTemplate == "" {
		p.urlTemplate = "https://www.google.com/search?q=%s"
	}
	if p.resultsSelector == "" {
		p.resultsSelector = "#search"
	}
	if p.itemSelector == "" {
		p.itemSelector = "div.g"
	}
	if p.headingSelector == "" {
		p.headingSelector = "h3"
	}
	if p.timeout <= 0 {
		p.timeout = 10 * time.Second
	}
	if p.deny == nil {
		p.deny = NewDenylist(nil)
	}
	return p
}

// Search loads the results page for query. A results container that never
// appears (timeout, consent wall, captcha) yields an empty list.
func (p *BrowserProvider) Search(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error) {
	log := zap.L().With(zap.String("query", query))
	target := fmt.Sprintf(p.urlTemplate, url.QueryEscape(query))

	html, err := p.fetcher.Fetch(ctx, target, browser.FetchOptions{
		Wait:         browser.WaitLoad,
		WaitSelector: p.resultsSelector,
		Timeout:      p.timeout,
	})
	if err != nil {
		if browser.IsNavigationError(err) {
			log.Warn("search: no results page", zap.Error(err))
			return []model.SearchResult{}, nil
		}
		return nil, err
	}

	doc, err := extract.ParseHTML(html)
	if err != nil {
		return nil, err
	}
	results := p.parse(doc, target, maxResults)
	log.Info("search: results", zap.Int("count", len(results)))
	return results, nil
}

func (p *BrowserProvider) parse(doc *goquery.Document, pageURL string, maxResults int) []model.SearchResult {
	base, _ := url.Parse(pageURL)
	seen := make(map[string]bool)
	results := []model.SearchResult{}

	doc.Find(p.itemSelector).EachWithBreak(func(_ int, item *goquery.Selection) bool {
		if maxResults > 0 && len(results) >= maxResults {
			return false
		}
		href, ok := item.Find("a[href]").First().Attr("href")
		if !ok {
			return true
		}
		heading := strings.Join(strings.Fields(item.Find(p.headingSelector).First().Text()), " ")
		if heading == "" {
			return true
		}
		link := resultURL(base, href)
		if link == "" || seen[link] || !p.deny.Allowed(link) {
			return true
		}
		seen[link] = true

		var snippet string
		if p.snippetSelector != "" {
			snippet = strings.Join(strings.Fields(item.Find(p.snippetSelector).First().Text()), " ")
		}
		results = append(results, model.SearchResult{Title: heading, URL: link, Snippet: snippet})
		return true
	})
	return results
}

// resultURL resolves href against the results page and unwraps redirect
// links of the form /url?q=<target>.
func resultURL(base *url.URL, href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Path == "/url" {
		for _, key := range []string{"q", "url"} {
			if target := u.Query().Get(key); target != "" {
				return target
			}
		}
	}
	return u.String()
}
