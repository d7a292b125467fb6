package store

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/article-enhancer/internal/db"
	"github.com/sells-group/article-enhancer/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	q       queries
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	sqlGetArticle      = `SELECT id, title, content, author, published_date, original_url, is_updated, updated_content, reference_urls, created_at, updated_at FROM articles WHERE id = $1`
	sqlGetArticleByURL = `SELECT id, title, content, author, published_date, original_url, is_updated, updated_content, reference_urls, created_at, updated_at FROM articles WHERE original_url = $1`
	sqlDeleteArticle   = `DELETE FROM articles WHERE id = $1`
)

// preparedStatements lists queries to prepare on each new connection.
// List and partial update SQL is built per call and not prepared.
var preparedStatements = map[string]string{
	"get_article":        sqlGetArticle,
	"get_article_by_url": sqlGetArticleByURL,
	"delete_article":     sqlDeleteArticle,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				// The articles table may not exist before the first migrate.
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
					return nil
				}
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newPostgresWithPool(pool), nil
}

func newPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, q: newQueries(sq.Dollar), closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS articles (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	title           TEXT NOT NULL,
	content         TEXT NOT NULL,
	author          TEXT NOT NULL DEFAULT '',
	published_date  TIMESTAMPTZ,
	original_url    TEXT NOT NULL UNIQUE,
	is_updated      BOOLEAN NOT NULL DEFAULT false,
	updated_content TEXT,
	reference_urls  JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_articles_is_updated ON articles(is_updated);
CREATE INDEX IF NOT EXISTS idx_articles_created_at ON articles(created_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, postgresMigration)
		return err
	})
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetArticle(ctx context.Context, id string) (*model.Article, error) {
	a, err := scanArticle(s.pool.QueryRow(ctx, sqlGetArticle, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get article %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get article %s", id)
	}
	return a, nil
}

func (s *PostgresStore) GetArticleByURL(ctx context.Context, url string) (*model.Article, error) {
	a, err := scanArticle(s.pool.QueryRow(ctx, sqlGetArticleByURL, url))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get article by url %s", url)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get article by url %s", url)
	}
	return a, nil
}

func (s *PostgresStore) ListArticles(ctx context.Context, filter model.ArticleFilter) ([]model.Article, error) {
	query, args, err := s.q.list(filter).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build list articles")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list articles")
	}
	defer rows.Close()

	articles := []model.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan article")
		}
		articles = append(articles, *a)
	}
	return articles, eris.Wrap(rows.Err(), "postgres: list articles iterate")
}

func (s *PostgresStore) CreateArticle(ctx context.Context, in model.ArticleInput) (*model.Article, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	query, args, err := s.q.insert(id, in, now).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build insert article")
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		if isPgUnique(err) {
			return nil, eris.Wrapf(ErrDuplicate, "postgres: insert article %s", in.OriginalURL)
		}
		return nil, eris.Wrap(err, "postgres: insert article")
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

func (s *PostgresStore) UpdateArticle(ctx context.Context, id string, u model.ArticleUpdate) (*model.Article, error) {
	if u.Empty() {
		return s.GetArticle(ctx, id)
	}

	ub, err := s.q.update(id, u, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	query, args, err := ub.ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build update article")
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		if isPgUnique(err) {
			return nil, eris.Wrapf(ErrDuplicate, "postgres: update article %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: update article %s", id)
	}
	if tag.RowsAffected() == 0 {
		return nil, eris.Wrapf(ErrNotFound, "postgres: update article %s", id)
	}
	return s.GetArticle(ctx, id)
}

func (s *PostgresStore) MarkEnhanced(ctx context.Context, id, content string, refs []string) (*model.Article, error) {
	refsJSON, err := encodeRefs(refs)
	if err != nil {
		return nil, err
	}
	query, args, err := s.q.markEnhanced(id, content, refsJSON, time.Now().UTC()).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build mark enhanced")
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: mark enhanced %s", id)
	}
	if tag.RowsAffected() == 0 {
		return nil, eris.Wrapf(ErrNotFound, "postgres: mark enhanced %s", id)
	}
	return s.GetArticle(ctx, id)
}

func (s *PostgresStore) DeleteArticle(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, sqlDeleteArticle, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete article %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: delete article %s", id)
	}
	return nil
}

func isPgUnique(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
