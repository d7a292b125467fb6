package store

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"

	"github.com/sells-group/article-enhancer/internal/model"
)

var (
	// ErrNotFound is returned when no article matches the lookup.
	ErrNotFound = eris.New("store: article not found")
	// ErrDuplicate is returned when an article with the same original URL
	// already exists.
	ErrDuplicate = eris.New("store: duplicate original url")
)

// Store defines the persistence interface for articles.
type Store interface {
	GetArticle(ctx context.Context, id string) (*model.Article, error)
	GetArticleByURL(ctx context.Context, url string) (*model.Article, error)
	ListArticles(ctx context.Context, filter model.ArticleFilter) ([]model.Article, error)
	CreateArticle(ctx context.Context, in model.ArticleInput) (*model.Article, error)
	UpdateArticle(ctx context.Context, id string, u model.ArticleUpdate) (*model.Article, error)
	// MarkEnhanced stores the rewrite and flips is_updated in a single write.
	MarkEnhanced(ctx context.Context, id, content string, refs []string) (*model.Article, error)
	DeleteArticle(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

var articleColumns = []string{
	"id", "title", "content", "author", "published_date", "original_url",
	"is_updated", "updated_content", "reference_urls", "created_at", "updated_at",
}

// queries builds article SQL for one placeholder dialect.
type queries struct {
	b sq.StatementBuilderType
}

func newQueries(ph sq.PlaceholderFormat) queries {
	return queries{b: sq.StatementBuilder.PlaceholderFormat(ph)}
}

func (q queries) selectArticles() sq.SelectBuilder {
	return q.b.Select(articleColumns...).From("articles")
}

func (q queries) list(filter model.ArticleFilter) sq.SelectBuilder {
	sb := q.selectArticles()
	if filter.Updated != nil {
		sb = sb.Where(sq.Eq{"is_updated": *filter.Updated})
	}
	sb = sb.OrderBy("created_at ASC")
	if filter.Limit > 0 {
		sb = sb.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		sb = sb.Offset(uint64(filter.Offset))
	}
	return sb
}

func (q queries) insert(id string, in model.ArticleInput, now time.Time) sq.InsertBuilder {
	return q.b.Insert("articles").
		Columns("id", "title", "content", "author", "published_date", "original_url",
			"is_updated", "reference_urls", "created_at", "updated_at").
		Values(id, in.Title, in.Content, in.Author, in.PublishedDate, in.OriginalURL,
			false, "[]", now, now)
}

// update applies the non-nil fields of u. is_updated is OR-ed so it can
// never go back to false.
func (q queries) update(id string, u model.ArticleUpdate, now time.Time) (sq.UpdateBuilder, error) {
	ub := q.b.Update("articles").Set("updated_at", now).Where(sq.Eq{"id": id})
	if u.Title != nil {
		ub = ub.Set("title", *u.Title)
	}
	if u.Content != nil {
		ub = ub.Set("content", *u.Content)
	}
	if u.Author != nil {
		ub = ub.Set("author", *u.Author)
	}
	if u.PublishedDate != nil {
		ub = ub.Set("published_date", *u.PublishedDate)
	}
	if u.OriginalURL != nil {
		ub = ub.Set("original_url", *u.OriginalURL)
	}
	if u.IsUpdated != nil {
		ub = ub.Set("is_updated", sq.Expr("is_updated OR ?", *u.IsUpdated))
	}
	if u.UpdatedContent != nil {
		ub = ub.Set("updated_content", *u.UpdatedContent)
	}
	if u.References != nil {
		refs, err := encodeRefs(u.References)
		if err != nil {
			return ub, err
		}
		ub = ub.Set("reference_urls", refs)
	}
	return ub, nil
}

func (q queries) markEnhanced(id, content, refs string, now time.Time) sq.UpdateBuilder {
	return q.b.Update("articles").
		Set("is_updated", true).
		Set("updated_content", content).
		Set("reference_urls", refs).
		Set("updated_at", now).
		Where(sq.Eq{"id": id})
}

func encodeRefs(refs []string) (string, error) {
	if refs == nil {
		refs = []string{}
	}
	b, err := json.Marshal(refs)
	if err != nil {
		return "", eris.Wrap(err, "store: marshal references")
	}
	return string(b), nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanArticle(row scannable) (*model.Article, error) {
	var a model.Article
	var refs []byte
	if err := row.Scan(
		&a.ID, &a.Title, &a.Content, &a.Author, &a.PublishedDate, &a.OriginalURL,
		&a.IsUpdated, &a.UpdatedContent, &refs, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.References = []string{}
	if len(refs) > 0 {
		if err := json.Unmarshal(refs, &a.References); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal references")
		}
	}
	return &a, nil
}
