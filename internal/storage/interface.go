package storage

import (
	"context"
	"errors"

	"feedbrief/internal/models"
)

var ErrClosed = errors.New("storage is closed")

// Store is the persisted article collection. Articles are keyed by link;
// the id is derived from it.
type Store interface {
	// ExistingLinks returns every link currently stored
	ExistingLinks(ctx context.Context) (map[string]struct{}, error)
	// UpsertArticles writes the batch in a single transaction. A conflicting
	// link overwrites the stored row.
	UpsertArticles(ctx context.Context, articles []models.ProcessedArticle) error
	// RetentionEntries lists id and publish date of every row, newest first
	RetentionEntries(ctx context.Context) ([]models.RetentionEntry, error)
	DeleteArticles(ctx context.Context, ids []string) (int64, error)
	// ListRecent returns at most limit articles, newest first
	ListRecent(ctx context.Context, limit int) ([]models.ProcessedArticle, error)
	Count(ctx context.Context) (int, error)

	Ping(ctx context.Context) error
	Close() error
}
