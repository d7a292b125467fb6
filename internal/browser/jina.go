package browser

import (
	"context"
	"html"
	"strings"

	"github.com/sells-group/article-enhancer/pkg/jina"
)

// JinaFetcher renders pages through the Jina AI Reader. The reader returns
// text, which is wrapped into a minimal HTML document so the extractor can
// treat it like any other page.
type JinaFetcher struct {
	client jina.Client
}

// NewJinaFetcher creates a JinaFetcher backed by client.
func NewJinaFetcher(client jina.Client) *JinaFetcher {
	return &JinaFetcher{client: client}
}

// Fetch reads url through Jina and returns it as HTML.
func (f *JinaFetcher) Fetch(ctx context.Context, url string, opts FetchOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	readOpts := []jina.ReadOption{jina.WithReadTimeout(opts.timeout())}
	if opts.WaitSelector != "" {
		readOpts = append(readOpts, jina.WithWaitForSelector(opts.WaitSelector))
	}

	resp, err := f.client.Read(ctx, url, readOpts...)
	if err != nil {
		return "", navError(url, err)
	}
	return wrapText(resp.Data.Title, resp.Data.Content), nil
}

// wrapText renders reader text as <article> with one <p> per paragraph.
// Markdown heading markers become h2 elements.
func wrapText(title, text string) string {
	var b strings.Builder
	b.WriteString("<html><head><title>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</title></head><body><article>")
	if title != "" {
		b.WriteString("<h1>")
		b.WriteString(html.EscapeString(title))
		b.WriteString("</h1>")
	}
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if strings.HasPrefix(para, "#") {
			heading := strings.TrimSpace(strings.TrimLeft(para, "#"))
			if heading == title {
				continue
			}
			b.WriteString("<h2>")
			b.WriteString(html.EscapeString(heading))
			b.WriteString("</h2>")
			continue
		}
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(strings.Join(strings.Fields(para), " ")))
		b.WriteString("</p>")
	}
	b.WriteString("</article></body></html>")
	return b.String()
}
