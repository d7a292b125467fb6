// Package pipeline sequences the scrape and enhancement stages.
package pipeline

import (
	"context"

	"github.com/sells-group/article-enhancer/internal/model"
)

// ReferenceExtractor fetches reference pages and returns the ones that
// yielded usable content, in input order.
type ReferenceExtractor interface {
	ExtractMultiple(ctx context.Context, urls []string) []model.ExtractedContent
}

// Rewriter produces enhanced content from an article and its references.
type Rewriter interface {
	Rewrite(ctx context.Context, title, content string, refs []model.ExtractedContent) (*model.RewriteResult, error)
}
