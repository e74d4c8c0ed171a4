package models

import (
	"time"
)

// FeedSource is one fixed upstream RSS/Atom endpoint
type FeedSource struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Category string `json:"category"`
}

// RawArticle is a feed entry normalized to a common shape. It lives for one pipeline run.
type RawArticle struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	PublishedAt time.Time `json:"pub_date"`
	Content     string    `json:"content,omitempty"`
	Snippet     string    `json:"content_snippet,omitempty"`
	SourceName  string    `json:"source"`
	ImageURL    string    `json:"image_url,omitempty"`
}

// ProcessedArticle is the persisted, enriched article served to clients
type ProcessedArticle struct {
	ID              string    `json:"id"`
	OriginalTitle   string    `json:"originalTitle"`
	TranslatedTitle string    `json:"titleKo"`
	Link            string    `json:"link"`
	PublishedAt     time.Time `json:"pubDate"`
	SourceName      string    `json:"source"`
	SummaryBullets  []string  `json:"summary"`
	ImageURL        string    `json:"imageUrl,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	ErrorNote       string    `json:"error,omitempty"`
}

// Degraded reports whether enrichment failed for this article
func (a ProcessedArticle) Degraded() bool {
	return a.ErrorNote != ""
}

// RetentionEntry is the slice of a row the retention trim needs
type RetentionEntry struct {
	ID          string
	PublishedAt time.Time
}

// FeedsMeta accompanies the read endpoint payload
type FeedsMeta struct {
	Total     int       `json:"total"`
	Processed int       `json:"processed"`
	Timestamp time.Time `json:"timestamp"`
}

// FeedsResponse is the read endpoint payload
type FeedsResponse struct {
	Articles []ProcessedArticle `json:"articles"`
	Meta     FeedsMeta          `json:"meta"`
}

// RunResponse is returned by the trigger endpoint on success
type RunResponse struct {
	Message   string `json:"message"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
}

// ErrorResponse is returned by the trigger endpoint on failure
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
