package model

// SearchResult is a single web search hit. Never persisted.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// ExtractedContent is the best-effort main content of one external page.
type ExtractedContent struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// RewriteResult is the output of the article rewriter. References are the
// URLs of the reference documents in input order.
type RewriteResult struct {
	UpdatedContent string   `json:"updatedContent"`
	References     []string `json:"references"`
}

// BatchFailure records one article that failed during a batch.
type BatchFailure struct {
	ArticleID string `json:"articleId"`
	Title     string `json:"title"`
	Error     string `json:"error"`
	// Kind is "transient" when a later batch may succeed, else "permanent".
	Kind string `json:"kind"`
}

// BatchResult accumulates per-article outcomes of an enhancement batch.
type BatchResult struct {
	Succeeded []Article      `json:"articles"`
	Failed    []BatchFailure `json:"failures"`
}

// SuccessCount returns the number of articles enhanced in the batch.
func (r *BatchResult) SuccessCount() int { return len(r.Succeeded) }

// FailureCount returns the number of articles that failed in the batch.
func (r *BatchResult) FailureCount() int { return len(r.Failed) }

// Total returns the number of articles attempted.
func (r *BatchResult) Total() int { return len(r.Succeeded) + len(r.Failed) }
