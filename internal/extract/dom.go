package extract

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// DefaultTitle is returned when a page has no usable title.
const DefaultTitle = "Untitled"

// ParseHTML parses a rendered HTML document.
func ParseHTML(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "extract: parse html")
	}
	return doc, nil
}

// Title returns the first non-empty of: the first <h1>, an <h1> inside
// <article>, og:title, <title>. Falls back to DefaultTitle.
func Title(doc *goquery.Document) string {
	candidates := []func() string{
		func() string { return doc.Find("h1").First().Text() },
		func() string { return doc.Find("article h1").First().Text() },
		func() string { return attr(doc, `meta[property='og:title']`, "content") },
		func() string { return doc.Find("title").First().Text() },
	}
	for _, c := range candidates {
		if t := collapseSpaces(c()); t != "" {
			return t
		}
	}
	return DefaultTitle
}

// MainText returns the normalized main content of doc. Strategies are tried
// in order; the first container whose text is long enough wins. Otherwise all
// long paragraphs in the document are used. The result may be empty.
func MainText(doc *goquery.Document) string {
	return mainText(doc, DefaultStrategies)
}

func mainText(doc *goquery.Document, strategies []Strategy) string {
	for _, s := range strategies {
		if text, ok := s.TryExtract(doc); ok {
			return Normalize(text)
		}
	}
	return Normalize(fallbackParagraphs(doc))
}

var authorSelectors = []string{
	"a[rel='author']",
	"[rel='author']",
	".author a",
	"a.author",
	".author-name",
	".post-author",
	".byline a",
	"[itemprop='author'] [itemprop='name']",
	"[itemprop='author']",
	".author",
	".byline",
}

// Author returns the article author, or "" when none is found.
func Author(doc *goquery.Document) string {
	for _, sel := range authorSelectors {
		if a := collapseSpaces(doc.Find(sel).First().Text()); a != "" {
			return strings.TrimPrefix(a, "By ")
		}
	}
	return collapseSpaces(attr(doc, `meta[name='author']`, "content"))
}

var dateLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"02 Jan 2006",
	"January 2 2006",
	"01/02/2006",
}

// PublishedDate returns the publication date from <time datetime>, a
// date-classed element or article:published_time meta. Values that cannot be
// parsed are ignored; nil means no date.
func PublishedDate(doc *goquery.Document) *time.Time {
	candidates := []string{
		attr(doc, "time[datetime]", "datetime"),
		attr(doc, `[itemprop='datePublished']`, "content"),
		doc.Find("time").First().Text(),
		doc.Find(".date, .post-date, .published, .entry-date, .publish-date").First().Text(),
		attr(doc, `meta[property='article:published_time']`, "content"),
		attr(doc, `meta[name='date']`, "content"),
	}
	for _, c := range candidates {
		if t, ok := parseDate(c); ok {
			return &t
		}
	}
	return nil
}

func parseDate(s string) (time.Time, bool) {
	s = collapseSpaces(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func attr(doc *goquery.Document, selector, name string) string {
	v, _ := doc.Find(selector).First().Attr(name)
	return strings.TrimSpace(v)
}
