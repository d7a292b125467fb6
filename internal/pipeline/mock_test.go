package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/article-enhancer/internal/browser"
	"github.com/sells-group/article-enhancer/internal/model"
	"github.com/sells-group/article-enhancer/internal/store"
)

// --- Search Mock ---

type mockSearch struct {
	mock.Mock
}

func (m *mockSearch) Search(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error) {
	args := m.Called(ctx, query, maxResults)
	if fn, ok := args.Get(0).(func(context.Context, string, int) []model.SearchResult); ok {
		return fn(ctx, query, maxResults), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SearchResult), args.Error(1)
}

// --- Extractor Mock ---

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) ExtractMultiple(ctx context.Context, urls []string) []model.ExtractedContent {
	args := m.Called(ctx, urls)
	if fn, ok := args.Get(0).(func(context.Context, []string) []model.ExtractedContent); ok {
		return fn(ctx, urls)
	}
	return args.Get(0).([]model.ExtractedContent)
}

// --- Rewriter Mock ---

type mockRewriter struct {
	mock.Mock
}

func (m *mockRewriter) Rewrite(ctx context.Context, title, content string, refs []model.ExtractedContent) (*model.RewriteResult, error) {
	args := m.Called(ctx, title, content, refs)
	if fn, ok := args.Get(0).(func(context.Context, string, string, []model.ExtractedContent) *model.RewriteResult); ok {
		return fn(ctx, title, content, refs), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RewriteResult), args.Error(1)
}

// --- Fetcher Mock ---

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, url string, opts browser.FetchOptions) (string, error) {
	args := m.Called(ctx, url, opts)
	return args.String(0), args.Error(1)
}

// --- Store Mock (only the methods the failure tests reach) ---

type mockStore struct {
	store.Store
	mock.Mock
}

func (m *mockStore) ListArticles(ctx context.Context, filter model.ArticleFilter) ([]model.Article, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Article), args.Error(1)
}

func (m *mockStore) GetArticleByURL(ctx context.Context, url string) (*model.Article, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Article), args.Error(1)
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "articles.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func seedArticle(t *testing.T, st store.Store, title, url string) *model.Article {
	t.Helper()
	a, err := st.CreateArticle(context.Background(), model.ArticleInput{
		Title:       title,
		Content:     "Original content for " + title,
		OriginalURL: url,
	})
	require.NoError(t, err)
	return a
}
