package model

import "time"

// Article is a blog post scraped from the source site. OriginalURL is
// unique across the store.
type Article struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	Author         string     `json:"author,omitempty"`
	PublishedDate  *time.Time `json:"publishedDate,omitempty"`
	OriginalURL    string     `json:"originalUrl"`
	IsUpdated      bool       `json:"isUpdated"`
	UpdatedContent *string    `json:"updatedContent,omitempty"`
	References     []string   `json:"references"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Enhanced reports whether the article carries a completed enhancement.
func (a *Article) Enhanced() bool {
	return a.IsUpdated && a.UpdatedContent != nil
}

// ArticleInput holds the fields accepted when creating an article.
type ArticleInput struct {
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Author        string     `json:"author,omitempty"`
	PublishedDate *time.Time `json:"publishedDate,omitempty"`
	OriginalURL   string     `json:"originalUrl"`
}

// ArticleUpdate is a partial update. Nil fields are left unchanged.
// IsUpdated can only move from false to true; a false value never resets it.
type ArticleUpdate struct {
	Title          *string    `json:"title,omitempty"`
	Content        *string    `json:"content,omitempty"`
	Author         *string    `json:"author,omitempty"`
	PublishedDate  *time.Time `json:"publishedDate,omitempty"`
	OriginalURL    *string    `json:"originalUrl,omitempty"`
	IsUpdated      *bool      `json:"isUpdated,omitempty"`
	UpdatedContent *string    `json:"updatedContent,omitempty"`
	References     []string   `json:"references,omitempty"`
}

// Empty reports whether the update carries no fields.
func (u ArticleUpdate) Empty() bool {
	return u.Title == nil && u.Content == nil && u.Author == nil &&
		u.PublishedDate == nil && u.OriginalURL == nil && u.IsUpdated == nil &&
		u.UpdatedContent == nil && u.References == nil
}

// ArticleFilter specifies criteria for listing articles.
type ArticleFilter struct {
	Updated *bool `json:"updated,omitempty"`
	Limit   int   `json:"limit,omitempty"`
	Offset  int   `json:"offset,omitempty"`
}

// ScrapedArticle is a record produced by the scrape orchestrator before it
// is persisted.
type ScrapedArticle struct {
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Author        string     `json:"author,omitempty"`
	PublishedDate *time.Time `json:"publishedDate,omitempty"`
	URL           string     `json:"url"`
}

// Input converts the scraped record into store create fields.
func (s ScrapedArticle) Input() ArticleInput {
	return ArticleInput{
		Title:         s.Title,
		Content:       s.Content,
		Author:        s.Author,
		PublishedDate: s.PublishedDate,
		OriginalURL:   s.URL,
	}
}

// ScrapeReport summarizes one scrape-and-persist run.
type ScrapeReport struct {
	Discovered int       `json:"discovered"`
	Scraped    int       `json:"scraped"`
	Created    int       `json:"created"`
	Skipped    int       `json:"skipped"`
	Articles   []Article `json:"articles"`
}
