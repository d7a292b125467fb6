package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/article-enhancer/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
	q  queries
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, q: newQueries(sq.Question)}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS articles (
	id              TEXT PRIMARY KEY,
	title           TEXT NOT NULL,
	content         TEXT NOT NULL,
	author          TEXT NOT NULL DEFAULT '',
	published_date  DATETIME,
	original_url    TEXT NOT NULL UNIQUE,
	is_updated      INTEGER NOT NULL DEFAULT 0,
	updated_content TEXT,
	reference_urls  TEXT NOT NULL DEFAULT '[]',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_articles_is_updated ON articles(is_updated);
CREATE INDEX IF NOT EXISTS idx_articles_created_at ON articles(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Ping verifies the database file is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetArticle(ctx context.Context, id string) (*model.Article, error) {
	query, args, err := s.q.selectArticles().Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build get article")
	}
	a, err := scanArticle(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get article %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get article %s", id)
	}
	return a, nil
}

func (s *SQLiteStore) GetArticleByURL(ctx context.Context, url string) (*model.Article, error) {
	query, args, err := s.q.selectArticles().Where(sq.Eq{"original_url": url}).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build get article by url")
	}
	a, err := scanArticle(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get article by url %s", url)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get article by url %s", url)
	}
	return a, nil
}

func (s *SQLiteStore) ListArticles(ctx context.Context, filter model.ArticleFilter) ([]model.Article, error) {
	query, args, err := s.q.list(filter).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build list articles")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list articles")
	}
	defer rows.Close()

	articles := []model.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan article")
		}
		articles = append(articles, *a)
	}
	return articles, eris.Wrap(rows.Err(), "sqlite: list articles iterate")
}

func (s *SQLiteStore) CreateArticle(ctx context.Context, in model.ArticleInput) (*model.Article, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	query, args, err := s.q.insert(id, in, now).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build insert article")
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isSQLiteUnique(err) {
			return nil, eris.Wrapf(ErrDuplicate, "sqlite: insert article %s", in.OriginalURL)
		}
		return nil, eris.Wrap(err, "sqlite: insert article")
	}

	return &model.Article{
		ID:            id,
		Title:         in.Title,
		Content:       in.Content,
		Author:        in.Author,
		PublishedDate: in.PublishedDate,
		OriginalURL:   in.OriginalURL,
		References:    []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (s *SQLiteStore) UpdateArticle(ctx context.Context, id string, u model.ArticleUpdate) (*model.Article, error) {
	if u.Empty() {
		return s.GetArticle(ctx, id)
	}

	ub, err := s.q.update(id, u, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	query, args, err := ub.ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build update article")
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isSQLiteUnique(err) {
			return nil, eris.Wrapf(ErrDuplicate, "sqlite: update article %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: update article %s", id)
	}
	if err := checkRowsAffected(res, id); err != nil {
		return nil, err
	}
	return s.GetArticle(ctx, id)
}

func (s *SQLiteStore) MarkEnhanced(ctx context.Context, id, content string, refs []string) (*model.Article, error) {
	refsJSON, err := encodeRefs(refs)
	if err != nil {
		return nil, err
	}
	query, args, err := s.q.markEnhanced(id, content, refsJSON, time.Now().UTC()).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build mark enhanced")
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: mark enhanced %s", id)
	}
	if err := checkRowsAffected(res, id); err != nil {
		return nil, err
	}
	return s.GetArticle(ctx, id)
}

func (s *SQLiteStore) DeleteArticle(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete article %s", id)
	}
	return checkRowsAffected(res, id)
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: article %s", id)
	}
	return nil
}

func isSQLiteUnique(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
