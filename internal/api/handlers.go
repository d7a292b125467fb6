package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/article-enhancer/internal/model"
	"github.com/sells-group/article-enhancer/internal/pipeline"
)

// maxBodyBytes caps request bodies; article content is plain text.
const maxBodyBytes = 4 << 20

// batchResponse reports a batch enhancement with its counts.
type batchResponse struct {
	Total     int                  `json:"total"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
	Articles  []model.Article      `json:"articles"`
	Failures  []model.BatchFailure `json:"failures"`
}

func newBatchResponse(res *model.BatchResult) batchResponse {
	return batchResponse{
		Total:     res.Total(),
		Succeeded: res.SuccessCount(),
		Failed:    res.FailureCount(),
		Articles:  res.Succeeded,
		Failures:  res.Failed,
	}
}

func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	articles, err := s.store.ListArticles(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if articles == nil {
		articles = []model.Article{}
	}
	writeData(w, http.StatusOK, articles)
}

func (s *Server) getArticle(w http.ResponseWriter, r *http.Request) {
	a, err := s.store.GetArticle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, a)
}

func (s *Server) createArticle(w http.ResponseWriter, r *http.Request) {
	var in model.ArticleInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validateInput(in); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := s.store.CreateArticle(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, a)
}

func (s *Server) updateArticle(w http.ResponseWriter, r *http.Request) {
	var u model.ArticleUpdate
	if err := decode(w, r, &u); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validateUpdate(u); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := s.store.UpdateArticle(r.Context(), chi.URLParam(r, "id"), u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, a)
}

func (s *Server) deleteArticle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteArticle(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id})
}

// pipelineContext keeps request values but drops cancellation, so a client
// that disconnects does not stop a scrape or batch halfway. Only process
// shutdown does.
func pipelineContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	report, err := s.scraper.ScrapeAndPersist(pipelineContext(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, report)
}

// enhanceArticle refuses articles that were already enhanced; the enhancer
// itself does not.
func (s *Server) enhanceArticle(w http.ResponseWriter, r *http.Request) {
	ctx := pipelineContext(r)
	id := chi.URLParam(r, "id")
	current, err := s.store.GetArticle(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := pipeline.CheckPending(current); err != nil {
		writeError(w, r, err)
		return
	}

	a, err := s.enhancer.EnhanceArticle(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, a)
}

func (s *Server) enhanceBatch(w http.ResponseWriter, r *http.Request) {
	limit, err := batchLimit(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.enhancer.EnhanceBatch(pipelineContext(r), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, newBatchResponse(res))
}

// decode reads a JSON body into v. Unknown fields are rejected.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return invalid("request body is required")
		}
		return invalid("invalid request body: " + err.Error())
	}
	return nil
}

// batchLimit reads the limit from the query string or an optional JSON body.
// Zero means the enhancer default.
func batchLimit(w http.ResponseWriter, r *http.Request) (int, error) {
	limit := 0
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			return 0, invalid("limit must be an integer")
		}
		limit = n
	} else if r.ContentLength != 0 {
		var body struct {
			Limit int `json:"limit"`
		}
		if err := decode(w, r, &body); err != nil && !isEmptyBody(err) {
			return 0, err
		}
		limit = body.Limit
	}
	if limit < 0 || limit > MaxBatchLimit {
		return 0, invalid("limit must be between 0 and " + strconv.Itoa(MaxBatchLimit))
	}
	return limit, nil
}

func isEmptyBody(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) && ve.Message == "request body is required"
}

func parseFilter(q url.Values) (model.ArticleFilter, error) {
	var f model.ArticleFilter
	if v := q.Get("updated"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, invalid("updated must be true or false")
		}
		f.Updated = &b
	}
	for key, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, invalid(key + " must be a non-negative integer")
		}
		*dst = n
	}
	return f, nil
}

func validateInput(in model.ArticleInput) error {
	var problems []string
	if strings.TrimSpace(in.Title) == "" {
		problems = append(problems, "title is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		problems = append(problems, "content is required")
	}
	if strings.TrimSpace(in.OriginalURL) == "" {
		problems = append(problems, "originalUrl is required")
	} else if !validURL(in.OriginalURL) {
		problems = append(problems, "originalUrl must be an absolute http(s) URL")
	}
	if len(problems) > 0 {
		return invalid(strings.Join(problems, "; "))
	}
	return nil
}

func validateUpdate(u model.ArticleUpdate) error {
	if u.Empty() {
		return invalid("no fields to update")
	}
	var problems []string
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		problems = append(problems, "title must not be empty")
	}
	if u.Content != nil && strings.TrimSpace(*u.Content) == "" {
		problems = append(problems, "content must not be empty")
	}
	if u.OriginalURL != nil && !validURL(*u.OriginalURL) {
		problems = append(problems, "originalUrl must be an absolute http(s) URL")
	}
	if u.IsUpdated != nil && *u.IsUpdated && u.UpdatedContent == nil {
		problems = append(problems, "isUpdated requires updatedContent")
	}
	if len(problems) > 0 {
		return invalid(strings.Join(problems, "; "))
	}
	return nil
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
