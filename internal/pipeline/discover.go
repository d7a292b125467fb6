package pipeline

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selection picks which discovered links a scrape run processes.
type Selection string

const (
	// SelectOldest takes the last N links in index order. Blog indexes are
	// assumed to list newest first; this is positional, not verified by date.
	SelectOldest Selection = "oldest"
	// SelectNewest takes the first N links in index order.
	SelectNewest Selection = "newest"
)

// articleContainers are listing blocks whose anchors count as article links
// regardless of path.
const articleContainers = "article a[href], .post a[href], .blog-post a[href], .entry a[href]"

// listingSegments mark index pages rather than posts.
var listingSegments = map[string]bool{
	"page":     true,
	"tag":      true,
	"tags":     true,
	"category": true,
	"author":   true,
	"feed":     true,
}

// DiscoverLinks returns candidate article URLs on an index page in document
// order, resolved against index and de-duplicated.
func DiscoverLinks(doc *goquery.Document, index *url.URL) []string {
	containerNodes := doc.Find(articleContainers)

	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		u := resolveLink(index, href)
		if u == nil {
			return
		}
		if !isArticlePath(u.Path) && !containerNodes.IsSelection(a) {
			return
		}
		if samePage(u, index) || isListingPath(u.Path) {
			return
		}
		s := u.String()
		if seen[s] {
			return
		}
		seen[s] = true
		links = append(links, s)
	})
	return links
}

// SelectLinks applies the selection policy to discovered links.
func SelectLinks(links []string, n int, sel Selection) []string {
	if n <= 0 || len(links) == 0 {
		return []string{}
	}
	if n > len(links) {
		n = len(links)
	}
	var out []string
	if sel == SelectNewest {
		out = links[:n]
	} else {
		out = links[len(links)-n:]
	}
	return append([]string(nil), out...)
}

func resolveLink(base *url.URL, href string) *url.URL {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u
}

func isArticlePath(p string) bool {
	p = strings.ToLower(p)
	return strings.Contains(p, "/blog") || strings.Contains(p, "/article")
}

func isListingPath(p string) bool {
	for _, seg := range strings.Split(strings.ToLower(p), "/") {
		if listingSegments[seg] {
			return true
		}
	}
	return false
}

func samePage(a, b *url.URL) bool {
	return strings.EqualFold(a.Host, b.Host) &&
		strings.TrimSuffix(a.Path, "/") == strings.TrimSuffix(b.Path, "/") &&
		a.RawQuery == b.RawQuery
}
