package pipeline

import (
	"context"
	"errors"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/article-enhancer/internal/browser"
	"github.com/sells-group/article-enhancer/internal/config"
	"github.com/sells-group/article-enhancer/internal/extract"
	"github.com/sells-group/article-enhancer/internal/model"
	"github.com/sells-group/article-enhancer/internal/store"
)

const (
	// MinArticleRunes is the shortest scraped body that is kept.
	MinArticleRunes = 50
	// DefaultScrapeCount is the number of articles selected per run.
	DefaultScrapeCount = 5
	// pageTimeout bounds each index and article fetch.
	pageTimeout = 30 * time.Second
)

// ErrShortArticle marks a scraped page whose body is below MinArticleRunes.
var ErrShortArticle = eris.New("pipeline: article content too short")

// Scraper discovers articles on the blog index and extracts them.
type Scraper struct {
	fetcher   browser.Fetcher
	store     store.Store
	indexURL  string
	count     int
	selection Selection
}

// NewScraper creates a Scraper from blog config. st may be nil when only
// Scrape is used.
func NewScraper(fetcher browser.Fetcher, st store.Store, cfg config.BlogConfig) *Scraper {
	s := &Scraper{
		fetcher:   fetcher,
		store:     st,
		indexURL:  cfg.IndexURL,
		count:     cfg.ScrapeCount,
		selection: Selection(cfg.Selection),
	}
	if s.count <= 0 {
		s.count = DefaultScrapeCount
	}
	if s.selection != SelectNewest {
		s.selection = SelectOldest
	}
	return s
}

// Discover loads the index page and returns every candidate article link.
// A failed index load is fatal for the run.
func (s *Scraper) Discover(ctx context.Context) ([]string, error) {
	index, err := url.Parse(s.indexURL)
	if err != nil || index.Host == "" {
		return nil, eris.Errorf("pipeline: invalid blog index url %q", s.indexURL)
	}

	html, err := s.fetcher.Fetch(ctx, s.indexURL, browser.FetchOptions{
		Wait:    browser.WaitDOMStable,
		Timeout: pageTimeout,
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load blog index")
	}
	doc, err := extract.ParseHTML(html)
	if err != nil {
		return nil, err
	}
	return DiscoverLinks(doc, index), nil
}

// Scrape discovers links, selects the configured subset and extracts each.
// Articles that fail to load or are too short are logged and skipped.
func (s *Scraper) Scrape(ctx context.Context) ([]model.ScrapedArticle, error) {
	articles, _, err := s.scrape(ctx)
	return articles, err
}

func (s *Scraper) scrape(ctx context.Context) ([]model.ScrapedArticle, int, error) {
	links, err := s.Discover(ctx)
	if err != nil {
		return nil, 0, err
	}
	selected := SelectLinks(links, s.count, s.selection)
	zap.L().Info("pipeline: discovered articles",
		zap.String("index", s.indexURL),
		zap.Int("discovered", len(links)),
		zap.Int("selected", len(selected)),
		zap.String("selection", string(s.selection)),
	)

	articles := []model.ScrapedArticle{}
	for _, u := range selected {
		if ctx.Err() != nil {
			return articles, len(links), ctx.Err()
		}
		a, err := s.ScrapeArticle(ctx, u)
		if err != nil {
			zap.L().Warn("pipeline: skipping article", zap.String("url", u), zap.Error(err))
			continue
		}
		articles = append(articles, *a)
	}
	return articles, len(links), nil
}

// ScrapeArticle fetches one article page and extracts its fields.
func (s *Scraper) ScrapeArticle(ctx context.Context, u string) (*model.ScrapedArticle, error) {
	html, err := s.fetcher.Fetch(ctx, u, browser.FetchOptions{
		Wait:    browser.WaitLoad,
		Timeout: pageTimeout,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: fetch %s", u)
	}
	doc, err := extract.ParseHTML(html)
	if err != nil {
		return nil, err
	}

	content := extract.MainText(doc)
	if n := utf8.RuneCountInString(content); n < MinArticleRunes {
		return nil, eris.Wrapf(ErrShortArticle, "pipeline: %s has %d characters", u, n)
	}
	return &model.ScrapedArticle{
		Title:         extract.Title(doc),
		Content:       content,
		Author:        extract.Author(doc),
		PublishedDate: extract.PublishedDate(doc),
		URL:           u,
	}, nil
}

// ScrapeAndPersist scrapes and stores new articles. Articles whose URL is
// already stored are skipped.
func (s *Scraper) ScrapeAndPersist(ctx context.Context) (*model.ScrapeReport, error) {
	if s.store == nil {
		return nil, eris.New("pipeline: scraper has no store")
	}
	scraped, discovered, err := s.scrape(ctx)
	if err != nil {
		return nil, err
	}

	report := &model.ScrapeReport{
		Discovered: discovered,
		Scraped:    len(scraped),
		Articles:   []model.Article{},
	}
	for _, sa := range scraped {
		created, err := s.persist(ctx, sa)
		if err != nil {
			return nil, err
		}
		if created == nil {
			report.Skipped++
			continue
		}
		report.Created++
		report.Articles = append(report.Articles, *created)
	}

	zap.L().Info("pipeline: scrape complete",
		zap.Int("discovered", report.Discovered),
		zap.Int("scraped", report.Scraped),
		zap.Int("created", report.Created),
		zap.Int("skipped", report.Skipped),
	)
	return report, nil
}

// persist creates the article, returning nil when its URL already exists.
func (s *Scraper) persist(ctx context.Context, sa model.ScrapedArticle) (*model.Article, error) {
	if _, err := s.store.GetArticleByURL(ctx, sa.URL); err == nil {
		zap.L().Info("pipeline: article already stored", zap.String("url", sa.URL))
		return nil, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, eris.Wrap(err, "pipeline: check existing article")
	}

	created, err := s.store.CreateArticle(ctx, sa.Input())
	if errors.Is(err, store.ErrDuplicate) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create article")
	}
	return created, nil
}
