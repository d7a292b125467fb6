package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/article-enhancer/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func sampleInput(url string) model.ArticleInput {
	return model.ArticleInput{
		Title:       "Chatbots for customer support",
		Content:     "Support teams are adopting chatbots.",
		Author:      "BeyondChats",
		OriginalURL: url,
	}
}

func ptr[T any](v T) *T { return &v }

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndGetArticle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		published := time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC)
		in := sampleInput("https://beyondchats.com/blogs/chatbots/")
		in.PublishedDate = &published

		a, err := s.CreateArticle(ctx, in)
		require.NoError(t, err)
		assert.NotEmpty(t, a.ID)
		assert.False(t, a.IsUpdated)
		assert.Nil(t, a.UpdatedContent)
		assert.Empty(t, a.References)

		got, err := s.GetArticle(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a.ID, got.ID)
		assert.Equal(t, in.Title, got.Title)
		assert.Equal(t, in.Content, got.Content)
		assert.Equal(t, "BeyondChats", got.Author)
		require.NotNil(t, got.PublishedDate)
		assert.True(t, published.Equal(*got.PublishedDate))
		assert.False(t, got.IsUpdated)
		assert.Nil(t, got.UpdatedContent)
		assert.NotNil(t, got.References)
		assert.Empty(t, got.References)
	})

	t.Run("GetArticleNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetArticle(context.Background(), "nonexistent")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("GetArticleByURL", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a, err := s.CreateArticle(ctx, sampleInput("https://beyondchats.com/blogs/a/"))
		require.NoError(t, err)

		got, err := s.GetArticleByURL(ctx, "https://beyondchats.com/blogs/a/")
		require.NoError(t, err)
		assert.Equal(t, a.ID, got.ID)

		_, err = s.GetArticleByURL(ctx, "https://beyondchats.com/blogs/missing/")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("DuplicateOriginalURLRejected", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.CreateArticle(ctx, sampleInput("https://beyondchats.com/blogs/dup/"))
		require.NoError(t, err)

		_, err = s.CreateArticle(ctx, sampleInput("https://beyondchats.com/blogs/dup/"))
		assert.ErrorIs(t, err, ErrDuplicate)

		all, err := s.ListArticles(ctx, model.ArticleFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("ListArticlesOldestFirstWithFilter", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var ids []string
		for _, u := range []string{"one", "two", "three"} {
			a, err := s.CreateArticle(ctx, sampleInput("https://beyondchats.com/blogs/"+u+"/"))
			require.NoError(t, err)
			ids = append(ids, a.ID)
			time.Sleep(2 * time.Millisecond)
		}

		_, err := s.MarkEnhanced(ctx, ids[1], "rewritten", []string{"https://ref.example.com"})
		require.NoError(t, err)

		all, err := s.ListArticles(ctx, model.ArticleFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, ids, []string{all[0].ID, all[1].ID, all[2].ID})

		pending, err := s.ListArticles(ctx, model.ArticleFilter{Updated: ptr(false)})
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, ids[0], pending[0].ID)
		assert.Equal(t, ids[2], pending[1].ID)

		done, err := s.ListArticles(ctx, model.ArticleFilter{Updated: ptr(true)})
		require.NoError(t, err)
		require.Len(t, done, 1)
		assert.Equal(t, ids[1], done[0].ID)

		limited, err := s.ListArticles(ctx, model.ArticleFilter{Updated: ptr(false), Limit: 1})
		require.NoError(t, err)
		require.Len(t, limited, 1)
		assert.Equal(t, ids[0], limited[0].ID)

		offset, err := s.ListArticles(ctx, model.ArticleFilter{Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, offset, 2)
		assert.Equal(t, ids[1], offset[0].ID)
	})

	t.Run("ListArticlesEmpty", func(t *testing.T) {
		s := newStore(t)
		all, err := s.ListArticles(context.Background(), model.ArticleFilter{})
		require.NoError(t, err)
		assert.NotNil(t, all)
		assert.Empty(t, all)
	})

	t.Run("UpdateArticlePartial", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a, err := s.CreateArticle(ctx, sampleInput("https://beyondchats.com/blogs/upd/"))
		require.NoError(t, err)

		got, err := s.UpdateArticle(ctx, a.ID, model.ArticleUpdate{Title: ptr("New title")})
		require.NoError(t, err)
		assert.Equal(t, "New title", got.Title)
		assert.Equal(t, a.Content, got.Content)
		assert.Equal(t, a.OriginalURL, got.OriginalURL)

		got, err = s.UpdateArticle(ctx, a.ID, model.ArticleUpdate{References: []string{"https://x.example.com"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"https://x.example.com"}, got.References)

		unchanged, err := s.UpdateArticle(ctx, a.ID, model.ArticleUpdate{})
		require.NoError(t, err)
		assert.Equal(t, "New title", unchanged.Title)
	})

	t.Run("IsUpdatedNeverResets", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a, err := s.CreateArticle(ctx, sampleInput("https://beyondchats.com/blogs/mono/"))
		require.NoError(t, err)

		got, err := s.UpdateArticle(ctx, a.ID, model.ArticleUpdate{IsUpdated: ptr(true), UpdatedContent: ptr("v2")})
		require.NoError(t, err)
		assert.True(t, got.IsUpdated)

		got, err = s.UpdateArticle(ctx, a.ID, model.ArticleUpdate{IsUpdated: ptr(false)})
		require.NoError(t, err)
		assert.True(t, got.IsUpdated)
		require.NotNil(t, got.UpdatedContent)
		assert.Equal(t, "v2", *got.UpdatedContent)
	})

	t.Run("UpdateArticleNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.UpdateArticle(context.Background(), "nonexistent", model.ArticleUpdate{Title: ptr("x")})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("UpdateArticleDuplicateURL", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.CreateArticle(ctx, sampleInput("https://beyondchats.com/blogs/first/"))
		require.NoError(t, err)
		b, err := s.CreateArticle(ctx, sampleInput("https://beyondchats.com/blogs/second/"))
		require.NoError(t, err)

		_, err = s.UpdateArticle(ctx, b.ID, model.ArticleUpdate{OriginalURL: ptr("https://beyondchats.com/blogs/first/")})
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("MarkEnhanced", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a, err := s.CreateArticle(ctx, sampleInput("https://beyondchats.com/blogs/enh/"))
		require.NoError(t, err)

		refs := []string{"https://one.example.com/post", "https://two.example.com/post"}
		got, err := s.MarkEnhanced(ctx, a.ID, "## Rewritten", refs)
		require.NoError(t, err)
		assert.True(t, got.IsUpdated)
		require.NotNil(t, got.UpdatedContent)
		assert.Equal(t, "## Rewritten", *got.UpdatedContent)
		assert.Equal(t, refs, got.References)
		assert.True(t, got.Enhanced())
		// Original content stays untouched.
		assert.Equal(t, a.Content, got.Content)
	})

	t.Run("MarkEnhancedNilRefsStoresEmpty", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a, err := s.CreateArticle(ctx, sampleInput("https://beyondchats.com/blogs/norefs/"))
		require.NoError(t, err)

		got, err := s.MarkEnhanced(ctx, a.ID, "content", nil)
		require.NoError(t, err)
		assert.NotNil(t, got.References)
		assert.Empty(t, got.References)
	})

	t.Run("MarkEnhancedNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.MarkEnhanced(context.Background(), "nonexistent", "c", nil)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("DeleteArticle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a, err := s.CreateArticle(ctx, sampleInput("https://beyondchats.com/blogs/del/"))
		require.NoError(t, err)

		require.NoError(t, s.DeleteArticle(ctx, a.ID))
		_, err = s.GetArticle(ctx, a.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		assert.ErrorIs(t, s.DeleteArticle(ctx, a.ID), ErrNotFound)
	})

	t.Run("MigrateIdempotent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Migrate(context.Background()))
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestSQLiteStore_OpenBadPath(t *testing.T) {
	_, err := NewSQLite(filepath.Join(t.TempDir(), "missing", "dir", "test.db"))
	assert.Error(t, err)
}

func TestSQLiteStore_Ping(t *testing.T) {
	s := newTestSQLite(t)
	assert.NoError(t, s.(*SQLiteStore).Ping(context.Background()))
}
