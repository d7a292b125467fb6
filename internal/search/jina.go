package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/article-enhancer/internal/model"
	"github.com/sells-group/article-enhancer/pkg/jina"
)

// JinaProvider searches through the Jina Search API.
type JinaProvider struct {
	client jina.Client
	deny   *Denylist
}

// NewJinaProvider creates a JinaProvider.
func NewJinaProvider(client jina.Client, deny *Denylist) *JinaProvider {
	if deny == nil {
		deny = NewDenylist(nil)
	}
	return &JinaProvider{client: client, deny: deny}
}

// Search queries Jina. API failures are logged and reported as no results.
func (p *JinaProvider) Search(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error) {
	results := []model.SearchResult{}

	resp, err := p.client.Search(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		zap.L().Warn("search: jina search failed", zap.String("query", query), zap.Error(err))
		return results, nil
	}

	for _, r := range resp.Data {
		if maxResults > 0 && len(results) >= maxResults {
			break
		}
		if r.Title == "" || !p.deny.Allowed(r.URL) {
			continue
		}
		results = append(results, model.SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Description})
	}
	return results, nil
}
