package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/article-enhancer/internal/browser"
	"github.com/sells-group/article-enhancer/internal/extract"
	"github.com/sells-group/article-enhancer/internal/pipeline"
	"github.com/sells-group/article-enhancer/internal/rewrite"
	"github.com/sells-group/article-enhancer/internal/search"
	"github.com/sells-group/article-enhancer/internal/store"
)

// defaultSQLitePath is used when the sqlite driver has no database_url.
const defaultSQLitePath = "articles.db"

// appEnv holds the store and pipeline stages needed by the commands.
type appEnv struct {
	Store    store.Store
	Scraper  *pipeline.Scraper
	Enhancer *pipeline.Enhancer
	Rewriter *rewrite.Rewriter
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = defaultSQLitePath
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv validates config for mode, opens and migrates the store, and wires
// the scrape and enhance stages. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string, enhanceOpts ...pipeline.EnhancerOption) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	fetcher, err := browser.New(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	provider, err := search.New(cfg.Search, fetcher, browser.NewJinaClient(cfg.Jina))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	rw := rewrite.FromConfig(cfg)
	if err := rw.Err(); err != nil {
		zap.L().Warn("rewrite backend unavailable", zap.Error(err))
	}

	opts := append([]pipeline.EnhancerOption{
		pipeline.WithBatchSize(cfg.Enhance.BatchSize),
		pipeline.WithSearchResults(cfg.Enhance.SearchResults),
		pipeline.WithDelay(cfg.Enhance.Delay()),
	}, enhanceOpts...)

	return &appEnv{
		Store:    st,
		Scraper:  pipeline.NewScraper(fetcher, st, cfg.Blog),
		Enhancer: pipeline.NewEnhancer(st, provider, extract.New(fetcher, extract.WithTimeout(cfg.Browser.Timeout())), rw, opts...),
		Rewriter: rw,
	}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode output")
}
