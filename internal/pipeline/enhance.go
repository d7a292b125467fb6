package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/article-enhancer/internal/model"
	"github.com/sells-group/article-enhancer/internal/resilience"
	"github.com/sells-group/article-enhancer/internal/search"
	"github.com/sells-group/article-enhancer/internal/store"
)

const (
	// DefaultBatchSize bounds how many articles one batch picks up.
	DefaultBatchSize = 5
	// DefaultSearchResults is the number of reference pages per article.
	DefaultSearchResults = 2
)

// ErrAlreadyEnhanced is returned by CheckPending for an article whose
// enhancement already completed.
var ErrAlreadyEnhanced = eris.New("pipeline: article already enhanced")

// CheckPending returns ErrAlreadyEnhanced when a is already updated. Whether a
// finished article may be enhanced again is up to the caller; the Enhancer
// rewrites whatever it is given.
func CheckPending(a *model.Article) error {
	if a.IsUpdated {
		return eris.Wrapf(ErrAlreadyEnhanced, "pipeline: article %s", a.ID)
	}
	return nil
}

// EnhancerOption configures an Enhancer.
type EnhancerOption func(*Enhancer)

// WithBatchSize sets the default batch limit.
func WithBatchSize(n int) EnhancerOption {
	return func(e *Enhancer) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithSearchResults sets how many search results are used as references.
func WithSearchResults(n int) EnhancerOption {
	return func(e *Enhancer) {
		if n >= 0 {
			e.searchResults = n
		}
	}
}

// WithDelay spaces consecutive batch articles at least d apart.
func WithDelay(d time.Duration) EnhancerOption {
	return func(e *Enhancer) {
		if d > 0 {
			e.limiter = rate.NewLimiter(rate.Every(d), 1)
		} else {
			e.limiter = nil
		}
	}
}

// Enhancer runs search, reference extraction, rewrite and persistence for
// stored articles.
type Enhancer struct {
	store         store.Store
	search        search.Provider
	extractor     ReferenceExtractor
	rewriter      Rewriter
	batchSize     int
	searchResults int
	limiter       *rate.Limiter
}

// NewEnhancer creates an Enhancer.
func NewEnhancer(st store.Store, sp search.Provider, ex ReferenceExtractor, rw Rewriter, opts ...EnhancerOption) *Enhancer {
	e := &Enhancer{
		store:         st,
		search:        sp,
		extractor:     ex,
		rewriter:      rw,
		batchSize:     DefaultBatchSize,
		searchResults: DefaultSearchResults,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// EnhanceArticle enhances one article by id. Unknown ids return
// store.ErrNotFound.
func (e *Enhancer) EnhanceArticle(ctx context.Context, id string) (*model.Article, error) {
	a, err := e.store.GetArticle(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load article %s", id)
	}
	return e.enhance(ctx, a)
}

// EnhanceBatch enhances up to limit articles that are not yet updated, one at
// a time. A failing article is recorded and the batch moves on; only a store
// listing failure or context cancellation ends it early.
func (e *Enhancer) EnhanceBatch(ctx context.Context, limit int) (*model.BatchResult, error) {
	if limit <= 0 {
		limit = e.batchSize
	}
	pending := false
	articles, err := e.store.ListArticles(ctx, model.ArticleFilter{Updated: &pending, Limit: limit})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list pending articles")
	}

	start := time.Now()
	zap.L().Info("pipeline: batch starting", zap.Int("articles", len(articles)))

	result := &model.BatchResult{Succeeded: []model.Article{}, Failed: []model.BatchFailure{}}
	for i := range articles {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return result, eris.Wrap(err, "pipeline: batch interrupted")
			}
		}
		if err := ctx.Err(); err != nil {
			return result, eris.Wrap(err, "pipeline: batch interrupted")
		}
		updated, err := e.safeEnhance(ctx, &articles[i])
		fold(result, &articles[i], updated, err)
	}

	zap.L().Info("pipeline: batch complete",
		zap.Int("succeeded", result.SuccessCount()),
		zap.Int("failed", result.FailureCount()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// fold records one article's outcome in the batch result.
func fold(result *model.BatchResult, a, updated *model.Article, err error) {
	if err != nil {
		zap.L().Error("pipeline: article enhancement failed",
			zap.String("article_id", a.ID),
			zap.String("title", a.Title),
			zap.Error(err),
		)
		result.Failed = append(result.Failed, model.BatchFailure{
			ArticleID: a.ID,
			Title:     a.Title,
			Error:     err.Error(),
			Kind:      resilience.ClassifyError(err),
		})
		return
	}
	result.Succeeded = append(result.Succeeded, *updated)
}

func (e *Enhancer) safeEnhance(ctx context.Context, a *model.Article) (updated *model.Article, err error) {
	defer func() {
		if r := recover(); r != nil {
			updated, err = nil, eris.Errorf("pipeline: panic enhancing %s: %v", a.ID, r)
		}
	}()
	return e.enhance(ctx, a)
}

func (e *Enhancer) enhance(ctx context.Context, a *model.Article) (*model.Article, error) {
	log := zap.L().With(zap.String("article_id", a.ID), zap.String("title", a.Title))
	start := time.Now()

	// Zero search results configured means rewriting without references.
	var results []model.SearchResult
	if e.searchResults > 0 {
		var err error
		results, err = e.search.Search(ctx, a.Title, e.searchResults)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(err, "pipeline: search")
			}
			log.Warn("pipeline: search failed", zap.Error(err))
			results = nil
		}
	}
	if len(results) == 0 {
		log.Warn("pipeline: no search results, rewriting without references")
	}

	urls := make([]string, 0, len(results))
	for _, r := range results {
		urls = append(urls, r.URL)
	}
	refs := e.extractor.ExtractMultiple(ctx, urls)

	res, err := e.rewriter.Rewrite(ctx, a.Title, a.Content, refs)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: rewrite")
	}

	updated, err := e.store.MarkEnhanced(ctx, a.ID, res.UpdatedContent, res.References)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: save enhancement")
	}

	log.Info("pipeline: article enhanced",
		zap.Int("search_results", len(results)),
		zap.Int("references", len(res.References)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return updated, nil
}
