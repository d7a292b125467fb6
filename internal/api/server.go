// Package api serves the article store and pipeline over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/article-enhancer/internal/model"
	"github.com/sells-group/article-enhancer/internal/store"
)

const (
	// DefaultRequestTimeout bounds CRUD requests. Scrape and enhance routes
	// run without it.
	DefaultRequestTimeout = 30 * time.Second
	// MaxBatchLimit caps the limit accepted by the batch enhance endpoint.
	MaxBatchLimit = 50

	pingTimeout = 2 * time.Second
)

// Scraper runs a scrape-and-persist pass.
type Scraper interface {
	ScrapeAndPersist(ctx context.Context) (*model.ScrapeReport, error)
}

// Enhancer enhances stored articles.
type Enhancer interface {
	EnhanceArticle(ctx context.Context, id string) (*model.Article, error)
	EnhanceBatch(ctx context.Context, limit int) (*model.BatchResult, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins sets the CORS origins. Empty values are ignored.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		for _, o := range origins {
			if o != "" {
				s.origins = append(s.origins, o)
			}
		}
	}
}

// WithRequestTimeout overrides DefaultRequestTimeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// Server holds the API dependencies.
type Server struct {
	store    store.Store
	scraper  Scraper
	enhancer Enhancer
	origins  []string
	timeout  time.Duration
}

// New creates a Server.
func New(st store.Store, sc Scraper, en Enhancer, opts ...Option) *Server {
	s := &Server{
		store:    st,
		scraper:  sc,
		enhancer: en,
		timeout:  DefaultRequestTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{Status: statusError, Message: "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, envelope{Status: statusError, Message: "method not allowed"})
	})

	r.Get("/health", s.health)
	r.Route("/articles", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.timeout))
			r.Get("/", s.listArticles)
			r.Post("/", s.createArticle)
			r.Get("/{id}", s.getArticle)
			r.Put("/{id}", s.updateArticle)
			r.Delete("/{id}", s.deleteArticle)
		})

		r.Post("/scrape", s.scrape)
		r.Post("/enhance", s.enhanceBatch)
		r.Post("/{id}/enhance", s.enhanceArticle)
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, envelope{Status: statusError, Message: "database unavailable"})
			return
		}
	}
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}
