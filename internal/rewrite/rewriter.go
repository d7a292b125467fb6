// Package rewrite produces enhanced article markdown with an LLM.
package rewrite

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/article-enhancer/internal/config"
	"github.com/sells-group/article-enhancer/internal/model"
)

// Rewriter rewrites articles using reference documents.
type Rewriter struct {
	gen      Generator
	err      error
	refChars int
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithReferenceChars sets how much of each reference is quoted in the prompt.
func WithReferenceChars(n int) Option {
	return func(r *Rewriter) {
		if n > 0 {
			r.refChars = n
		}
	}
}

// New creates a Rewriter backed by gen.
func New(gen Generator, opts ...Option) *Rewriter {
	r := &Rewriter{gen: gen, refChars: DefaultReferenceChars}
	if gen == nil {
		r.err = &ConfigurationError{Reason: "no generator"}
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// FromConfig resolves the backend from cfg. A missing backend is not an
// error here; it is returned by Err and by every Rewrite call.
func FromConfig(cfg *config.Config) *Rewriter {
	gen, err := NewGenerator(cfg.Anthropic, cfg.OpenAI)
	r := New(gen, WithReferenceChars(cfg.Enhance.ReferenceChars))
	if err != nil {
		r.err = err
	}
	return r
}

// Err returns the configuration error, if any.
func (r *Rewriter) Err() error {
	return r.err
}

// Rewrite produces enhanced markdown for the article. References are the
// URLs of refs in order; they are never parsed from the generated text.
func (r *Rewriter) Rewrite(ctx context.Context, title, content string, refs []model.ExtractedContent) (*model.RewriteResult, error) {
	if r.err != nil {
		return nil, r.err
	}

	start := time.Now()
	out, err := r.gen.Generate(ctx, BuildPrompt(title, content, refs, r.refChars))
	if err != nil {
		return nil, err
	}

	md := Clean(out)
	if md == "" {
		return nil, eris.New("rewrite: generated content is empty")
	}

	urls := make([]string, 0, len(refs))
	for _, ref := range refs {
		urls = append(urls, ref.URL)
	}

	zap.L().Info("rewrite: generated",
		zap.String("backend", string(r.gen.Backend())),
		zap.Int("references", len(urls)),
		zap.Int("chars", len(md)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &model.RewriteResult{UpdatedContent: md, References: urls}, nil
}
