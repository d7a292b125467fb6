// Package extract pulls the main readable content out of arbitrary web pages.
package extract

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/article-enhancer/internal/browser"
	"github.com/sells-group/article-enhancer/internal/model"
)

// MinContentRunes is the shortest main text Extract will return.
const MinContentRunes = 100

// DefaultTimeout bounds the page fetch of one Extract call.
const DefaultTimeout = 30 * time.Second

var (
	// ErrInsufficientContent means the page yielded too little text to use.
	ErrInsufficientContent = eris.New("extract: insufficient content")
	// ErrFetchFailed means the page could not be loaded.
	ErrFetchFailed = eris.New("extract: fetch failed")
)

// FetchError reports a page Extract could not load. It matches ErrFetchFailed
// with errors.Is and unwraps to the fetcher's error.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("extract: fetch %s failed: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrFetchFailed.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTimeout sets the per-page fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) { e.timeout = d }
}

// WithStrategies replaces the container priority list.
func WithStrategies(s []Strategy) Option {
	return func(e *Extractor) { e.strategies = s }
}

// Extractor fetches pages and extracts their title and main text.
type Extractor struct {
	fetcher    browser.Fetcher
	timeout    time.Duration
	strategies []Strategy
}

// New creates an Extractor that loads pages through fetcher.
func New(fetcher browser.Fetcher, opts ...Option) *Extractor {
	e := &Extractor{
		fetcher:    fetcher,
		timeout:    DefaultTimeout,
		strategies: DefaultStrategies,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract loads url and returns its title and main text. A page that cannot
// be loaded returns ErrFetchFailed; one with less than MinContentRunes of
// text returns ErrInsufficientContent.
func (e *Extractor) Extract(ctx context.Context, url string) (*model.ExtractedContent, error) {
	html, err := e.fetcher.Fetch(ctx, url, browser.FetchOptions{
		Wait:    browser.WaitLoad,
		Timeout: e.timeout,
	})
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	return e.FromHTML(url, html)
}

// FromHTML extracts content from an already rendered document.
func (e *Extractor) FromHTML(url, html string) (*model.ExtractedContent, error) {
	doc, err := ParseHTML(html)
	if err != nil {
		return nil, err
	}

	content, err := checkLength(mainText(doc, e.strategies))
	if err != nil {
		return nil, eris.Wrapf(err, "extract: %s", url)
	}
	return &model.ExtractedContent{
		Title:   Title(doc),
		Content: content,
		URL:     url,
	}, nil
}

// ExtractMultiple extracts each URL in order. Failures, panics included, are
// logged and left out, so the result may be shorter than urls.
func (e *Extractor) ExtractMultiple(ctx context.Context, urls []string) []model.ExtractedContent {
	out := make([]model.ExtractedContent, 0, len(urls))
	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		c, err := e.safeExtract(ctx, u)
		if err != nil {
			level := zap.WarnLevel
			if errors.Is(err, ErrInsufficientContent) {
				level = zap.InfoLevel
			}
			zap.L().Log(level, "extract: skipping reference", zap.String("url", u), zap.Error(err))
			continue
		}
		out = append(out, *c)
	}
	return out
}

func (e *Extractor) safeExtract(ctx context.Context, url string) (c *model.ExtractedContent, err error) {
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, eris.Errorf("extract: panic: %v", r)
		}
	}()
	return e.Extract(ctx, url)
}

func checkLength(text string) (string, error) {
	if n := utf8.RuneCountInString(text); n < MinContentRunes {
		return "", eris.Wrapf(ErrInsufficientContent, "extract: %d characters", n)
	}
	return text, nil
}
