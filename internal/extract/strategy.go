package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	// minBlockRunes is the length a paragraph, heading or list item must
	// exceed to be kept from a content container.
	minBlockRunes = 20
	// minContainerRunes is the length a container's text must exceed to be
	// accepted.
	minContainerRunes = 200
	// minFallbackRunes is the length a bare <p> must exceed in the
	// whole-document fallback.
	minFallbackRunes = 50
)

// noiseSelector matches descendants removed from a container before its text
// is collected.
const noiseSelector = "script, style, noscript, nav, footer, aside, header, " +
	".comments, .comment, #comments, .ads, .ad, .advertisement, iframe, button, form"

// blockSelector matches the text-bearing elements collected from a container.
const blockSelector = "p, h1, h2, h3, h4, h5, h6, li"

// Strategy is one content-container candidate, tried in priority order.
type Strategy struct {
	Name     string
	Selector string
}

// DefaultStrategies is the container priority list used by MainText.
var DefaultStrategies = []Strategy{
	{Name: "article", Selector: "article"},
	{Name: "itemprop_body", Selector: "[itemprop='articleBody']"},
	{Name: "article_content", Selector: ".article-content"},
	{Name: "post_content", Selector: ".post-content"},
	{Name: "entry_content", Selector: ".entry-content"},
	{Name: "blog_content", Selector: ".blog-content"},
	{Name: "single_post", Selector: ".single-post"},
	{Name: "post", Selector: ".post"},
	{Name: "main", Selector: "main"},
	{Name: "role_main", Selector: "[role='main']"},
	{Name: "content", Selector: ".content"},
}

// TryExtract returns the container's collected text and whether it is long
// enough to accept. The document is not modified.
func (s Strategy) TryExtract(doc *goquery.Document) (string, bool) {
	container := doc.Find(s.Selector).First()
	if container.Length() == 0 {
		return "", false
	}

	clone := container.Clone()
	clone.Find(noiseSelector).Remove()

	var blocks []string
	clone.Find(blockSelector).Each(func(_ int, sel *goquery.Selection) {
		text := collapseSpaces(sel.Text())
		if utf8.RuneCountInString(text) > minBlockRunes {
			blocks = append(blocks, text)
		}
	})
	if len(blocks) == 0 {
		return "", false
	}

	text := strings.Join(blocks, "\n\n")
	return text, utf8.RuneCountInString(text) > minContainerRunes
}

// fallbackParagraphs joins every sufficiently long <p> in the document.
func fallbackParagraphs(doc *goquery.Document) string {
	var paras []string
	doc.Find("p").Each(func(_ int, sel *goquery.Selection) {
		text := collapseSpaces(sel.Text())
		if utf8.RuneCountInString(text) > minFallbackRunes {
			paras = append(paras, text)
		}
	})
	return strings.Join(paras, "\n\n")
}
