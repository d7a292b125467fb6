package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/article-enhancer/internal/model"
	"github.com/sells-group/article-enhancer/internal/pipeline"
	"github.com/sells-group/article-enhancer/internal/store"
)

// --- Mocks ---

type mockScraper struct {
	mock.Mock
}

func (m *mockScraper) ScrapeAndPersist(ctx context.Context) (*model.ScrapeReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScrapeReport), args.Error(1)
}

type mockEnhancer struct {
	mock.Mock
}

func (m *mockEnhancer) EnhanceArticle(ctx context.Context, id string) (*model.Article, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Article), args.Error(1)
}

func (m *mockEnhancer) EnhanceBatch(ctx context.Context, limit int) (*model.BatchResult, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BatchResult), args.Error(1)
}

// --- Helpers ---

type response struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type fixture struct {
	store    *store.SQLiteStore
	scraper  *mockScraper
	enhancer *mockEnhancer
	handler  http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	f := &fixture{store: st, scraper: &mockScraper{}, enhancer: &mockEnhancer{}}
	f.handler = New(st, f.scraper, f.enhancer, WithAllowedOrigins("http://localhost:3000", "")).Routes()
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	var resp response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	return rr, resp
}

func (f *fixture) seed(t *testing.T, n int) []*model.Article {
	t.Helper()
	var out []*model.Article
	for i := 1; i <= n; i++ {
		a, err := f.store.CreateArticle(context.Background(), model.ArticleInput{
			Title:       fmt.Sprintf("Article %d", i),
			Content:     "Body",
			OriginalURL: fmt.Sprintf("https://blog.example.com/blogs/%d", i),
		})
		require.NoError(t, err)
		out = append(out, a)
	}
	return out
}

// --- Tests ---

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rr, resp := f.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, "success", resp.Status)
	assert.JSONEq(t, `{"status":"ok"}`, string(resp.Data))
}

func TestCreateArticle(t *testing.T) {
	f := newFixture(t)
	rr, resp := f.do(t, http.MethodPost, "/articles", map[string]any{
		"title":       "Chatbots",
		"content":     "Body text",
		"author":      "Jane",
		"originalUrl": "https://blog.example.com/blogs/chatbots",
	})

	require.Equal(t, http.StatusCreated, rr.Code)
	var a model.Article
	require.NoError(t, json.Unmarshal(resp.Data, &a))
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "Chatbots", a.Title)
	assert.False(t, a.IsUpdated)
	assert.Equal(t, []string{}, a.References)
}

func TestCreateArticle_Validation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		body any
		want string
	}{
		{"missing fields", map[string]any{"title": "x"}, "content is required"},
		{"bad url", map[string]any{"title": "x", "content": "y", "originalUrl": "/relative"}, "absolute http(s) URL"},
		{"malformed json", `{"title":`, "invalid request body"},
		{"unknown field", map[string]any{"title": "x", "bogus": true}, "invalid request body"},
		{"empty body", nil, "request body is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, resp := f.do(t, http.MethodPost, "/articles", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, "error", resp.Status)
			assert.Contains(t, resp.Message, tt.want)
		})
	}
}

func TestCreateArticle_Duplicate(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1)

	rr, resp := f.do(t, http.MethodPost, "/articles", map[string]any{
		"title":       "Again",
		"content":     "Body",
		"originalUrl": "https://blog.example.com/blogs/1",
	})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "error", resp.Status)
}

func TestListArticles(t *testing.T) {
	f := newFixture(t)
	articles := f.seed(t, 3)
	_, err := f.store.MarkEnhanced(context.Background(), articles[0].ID, "better", []string{"https://ref.example.com"})
	require.NoError(t, err)

	rr, resp := f.do(t, http.MethodGet, "/articles", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var all []model.Article
	require.NoError(t, json.Unmarshal(resp.Data, &all))
	assert.Len(t, all, 3)

	_, resp = f.do(t, http.MethodGet, "/articles?updated=false&limit=1", nil)
	var pending []model.Article
	require.NoError(t, json.Unmarshal(resp.Data, &pending))
	require.Len(t, pending, 1)
	assert.False(t, pending[0].IsUpdated)

	_, resp = f.do(t, http.MethodGet, "/articles?updated=true", nil)
	var done []model.Article
	require.NoError(t, json.Unmarshal(resp.Data, &done))
	require.Len(t, done, 1)
	assert.Equal(t, articles[0].ID, done[0].ID)
}

func TestListArticles_Empty(t *testing.T) {
	f := newFixture(t)
	rr, resp := f.do(t, http.MethodGet, "/articles", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, string(resp.Data))
}

func TestListArticles_BadQuery(t *testing.T) {
	f := newFixture(t)
	for _, q := range []string{"updated=maybe", "limit=-1", "offset=x"} {
		rr, _ := f.do(t, http.MethodGet, "/articles?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}
}

func TestGetArticle(t *testing.T) {
	f := newFixture(t)
	a := f.seed(t, 1)[0]

	rr, resp := f.do(t, http.MethodGet, "/articles/"+a.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var got model.Article
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	assert.Equal(t, a.ID, got.ID)

	rr, resp = f.do(t, http.MethodGet, "/articles/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "article not found", resp.Message)
}

func TestUpdateArticle(t *testing.T) {
	f := newFixture(t)
	a := f.seed(t, 1)[0]

	rr, resp := f.do(t, http.MethodPut, "/articles/"+a.ID, map[string]any{"title": "Renamed"})
	require.Equal(t, http.StatusOK, rr.Code)
	var got model.Article
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, "Body", got.Content)

	rr, _ = f.do(t, http.MethodPut, "/articles/"+a.ID, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = f.do(t, http.MethodPut, "/articles/"+a.ID, map[string]any{"isUpdated": true})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = f.do(t, http.MethodPut, "/articles/missing", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteArticle(t *testing.T) {
	f := newFixture(t)
	a := f.seed(t, 1)[0]

	rr, resp := f.do(t, http.MethodDelete, "/articles/"+a.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"id":%q}`, a.ID), string(resp.Data))

	rr, _ = f.do(t, http.MethodDelete, "/articles/"+a.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestScrape(t *testing.T) {
	f := newFixture(t)
	f.scraper.On("ScrapeAndPersist", mock.Anything).Return(&model.ScrapeReport{
		Discovered: 12, Scraped: 5, Created: 4, Skipped: 1, Articles: []model.Article{},
	}, nil)

	rr, resp := f.do(t, http.MethodPost, "/articles/scrape", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var report model.ScrapeReport
	require.NoError(t, json.Unmarshal(resp.Data, &report))
	assert.Equal(t, 4, report.Created)
	assert.Equal(t, 1, report.Skipped)
}

func TestScrape_Failure(t *testing.T) {
	f := newFixture(t)
	f.scraper.On("ScrapeAndPersist", mock.Anything).Return(nil, eris.New("pipeline: load blog index"))

	rr, resp := f.do(t, http.MethodPost, "/articles/scrape", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "internal server error", resp.Message)
}

func TestEnhanceArticle(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, 3)
	pending, done, broken := seeded[0], seeded[1], seeded[2]
	_, err := f.store.MarkEnhanced(context.Background(), done.ID, "already", []string{})
	require.NoError(t, err)

	content := "better"
	f.enhancer.On("EnhanceArticle", mock.Anything, pending.ID).
		Return(&model.Article{ID: pending.ID, IsUpdated: true, UpdatedContent: &content, References: []string{}}, nil)
	f.enhancer.On("EnhanceArticle", mock.Anything, broken.ID).
		Return(nil, errors.New("pipeline: rewrite: llm exploded"))

	tests := []struct {
		name string
		id   string
		code int
	}{
		{"pending", pending.ID, http.StatusOK},
		{"already enhanced", done.ID, http.StatusConflict},
		{"missing", "missing", http.StatusNotFound},
		{"rewrite failure", broken.ID, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, _ := f.do(t, http.MethodPost, "/articles/"+tt.id+"/enhance", nil)
			assert.Equal(t, tt.code, rr.Code)
		})
	}
	f.enhancer.AssertNotCalled(t, "EnhanceArticle", mock.Anything, done.ID)
	f.enhancer.AssertNotCalled(t, "EnhanceArticle", mock.Anything, "missing")
}

// disconnected builds a request whose client has already gone away.
func disconnected(method, path string) *http.Request {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return httptest.NewRequest(method, path, nil).WithContext(ctx)
}

func TestPipelineRoutes_SurviveClientDisconnect(t *testing.T) {
	f := newFixture(t)
	a := f.seed(t, 1)[0]

	var batchCtx, articleCtx, scrapeCtx context.Context
	f.enhancer.On("EnhanceBatch", mock.Anything, 0).Run(func(args mock.Arguments) {
		batchCtx = args.Get(0).(context.Context)
	}).Return(&model.BatchResult{Succeeded: []model.Article{}, Failed: []model.BatchFailure{}}, nil)
	f.enhancer.On("EnhanceArticle", mock.Anything, a.ID).Run(func(args mock.Arguments) {
		articleCtx = args.Get(0).(context.Context)
	}).Return(a, nil)
	f.scraper.On("ScrapeAndPersist", mock.Anything).Run(func(args mock.Arguments) {
		scrapeCtx = args.Get(0).(context.Context)
	}).Return(&model.ScrapeReport{Articles: []model.Article{}}, nil)

	for _, path := range []string{"/articles/enhance", "/articles/" + a.ID + "/enhance", "/articles/scrape"} {
		rr := httptest.NewRecorder()
		f.handler.ServeHTTP(rr, disconnected(http.MethodPost, path))
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}

	for name, ctx := range map[string]context.Context{"batch": batchCtx, "article": articleCtx, "scrape": scrapeCtx} {
		require.NotNil(t, ctx, name)
		assert.NoError(t, ctx.Err(), name)
	}
}

func TestEnhanceBatch_ReportsCounts(t *testing.T) {
	f := newFixture(t)
	f.enhancer.On("EnhanceBatch", mock.Anything, 0).Return(&model.BatchResult{
		Succeeded: []model.Article{{ID: "a"}, {ID: "b"}},
		Failed:    []model.BatchFailure{{ArticleID: "c", Title: "C", Error: "boom"}},
	}, nil)

	rr, resp := f.do(t, http.MethodPost, "/articles/enhance", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var got batchResponse
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 2, got.Succeeded)
	assert.Equal(t, 1, got.Failed)
	assert.Equal(t, "c", got.Failures[0].ArticleID)
}

func TestEnhanceBatch_Limit(t *testing.T) {
	f := newFixture(t)
	f.enhancer.On("EnhanceBatch", mock.Anything, 3).Return(&model.BatchResult{
		Succeeded: []model.Article{}, Failed: []model.BatchFailure{},
	}, nil)

	rr, _ := f.do(t, http.MethodPost, "/articles/enhance?limit=3", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr, _ = f.do(t, http.MethodPost, "/articles/enhance", map[string]int{"limit": 3})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr, _ = f.do(t, http.MethodPost, "/articles/enhance?limit=500", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	f.enhancer.AssertNumberOfCalls(t, "EnhanceBatch", 2)
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)
	rr, resp := f.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "error", resp.Status)
}

func TestCORS(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/articles", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/articles", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr = httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoverer(t *testing.T) {
	f := newFixture(t)
	f.enhancer.On("EnhanceBatch", mock.Anything, 0).Run(func(mock.Arguments) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodPost, "/articles/enhance", nil)
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{invalid("bad"), http.StatusBadRequest},
		{eris.Wrap(store.ErrNotFound, "x"), http.StatusNotFound},
		{eris.Wrap(store.ErrDuplicate, "x"), http.StatusConflict},
		{eris.Wrap(pipeline.ErrAlreadyEnhanced, "x"), http.StatusConflict},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		code, _ := classify(tt.err)
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}
