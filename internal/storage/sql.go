package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"feedbrief/internal/models"

	sq "github.com/Masterminds/squirrel"
	"github.com/sirupsen/logrus"
)

const (
	articlesTable = "articles"

	// rows per INSERT statement, well under SQLite's bound parameter limit
	upsertChunkSize = 50
)

var articleColumns = []string{
	"id", "original_title", "title_ko", "link", "pub_date",
	"source", "summary", "image_url", "created_at", "error_note",
}

// created_at keeps the value of the first insert
var upsertSuffix = "ON CONFLICT (link) DO UPDATE SET " + strings.Join([]string{
	"id = excluded.id",
	"original_title = excluded.original_title",
	"title_ko = excluded.title_ko",
	"pub_date = excluded.pub_date",
	"source = excluded.source",
	"summary = excluded.summary",
	"image_url = excluded.image_url",
	"error_note = excluded.error_note",
}, ", ")

// SQLStore implements Store on database/sql. The dialect changes the
// placeholder format, the schema and how the summary column is encoded.
type SQLStore struct {
	db      *sql.DB
	name    string
	builder sq.StatementBuilderType
	summary summaryCodec
	log     logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
}

func newSQLStore(db *sql.DB, name string, placeholder sq.PlaceholderFormat, summary summaryCodec, log logrus.FieldLogger) *SQLStore {
	return &SQLStore{
		db:      db,
		name:    name,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
		summary: summary,
		log:     log.WithFields(logrus.Fields{"component": "storage", "driver": name}),
	}
}

// Driver names the backing database
func (s *SQLStore) Driver() string {
	return s.name
}

func (s *SQLStore) ExistingLinks(ctx context.Context) (map[string]struct{}, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	query, args, err := s.builder.Select("link").From(articlesTable).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build links query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	links := make(map[string]struct{})
	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links[link] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return links, nil
}

func (s *SQLStore) UpsertArticles(ctx context.Context, articles []models.ProcessedArticle) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if len(articles) == 0 {
		return nil
	}

	// A statement must not touch the same link twice, so the last entry wins
	articles = lastByLink(articles)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for start := 0; start < len(articles); start += upsertChunkSize {
		end := start + upsertChunkSize
		if end > len(articles) {
			end = len(articles)
		}

		insert := s.builder.Insert(articlesTable).Columns(articleColumns...)
		for _, article := range articles[start:end] {
			values, err := s.articleValues(article)
			if err != nil {
				return err
			}
			insert = insert.Values(values...)
		}

		query, args, err := insert.Suffix(upsertSuffix).ToSql()
		if err != nil {
			return fmt.Errorf("build upsert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert articles: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}

	s.log.WithField("count", len(articles)).Debug("Upserted articles")
	return nil
}

func (s *SQLStore) RetentionEntries(ctx context.Context) ([]models.RetentionEntry, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	query, args, err := s.builder.Select("id", "pub_date").
		From(articlesTable).
		OrderBy("pub_date DESC", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build retention query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query retention entries: %w", err)
	}
	defer rows.Close()

	var entries []models.RetentionEntry
	for rows.Next() {
		var entry models.RetentionEntry
		if err := rows.Scan(&entry.ID, &entry.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan retention entry: %w", err)
		}
		entry.PublishedAt = entry.PublishedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return entries, nil
}

func (s *SQLStore) DeleteArticles(ctx context.Context, ids []string) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := s.builder.Delete(articlesTable).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete articles: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if deleted > 0 {
		s.log.WithField("count", deleted).Info("Deleted articles")
	}
	return deleted, nil
}

func (s *SQLStore) ListRecent(ctx context.Context, limit int) ([]models.ProcessedArticle, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	selectQuery := s.builder.Select(articleColumns...).
		From(articlesTable).
		OrderBy("pub_date DESC", "id")
	if limit > 0 {
		selectQuery = selectQuery.Limit(uint64(limit))
	}

	query, args, err := selectQuery.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	articles := make([]models.ProcessedArticle, 0)
	for rows.Next() {
		article, err := s.scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return articles, nil
}

func (s *SQLStore) Count(ctx context.Context) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	query, args, err := s.builder.Select("COUNT(*)").From(articlesTable).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return count, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *SQLStore) articleValues(article models.ProcessedArticle) ([]interface{}, error) {
	bullets := article.SummaryBullets
	if bullets == nil {
		bullets = []string{}
	}
	summary, err := s.summary.Value(bullets)
	if err != nil {
		return nil, fmt.Errorf("encode summary of %s: %w", article.Link, err)
	}

	createdAt := article.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return []interface{}{
		article.ID,
		article.OriginalTitle,
		article.TranslatedTitle,
		article.Link,
		dbTime(article.PublishedAt),
		article.SourceName,
		summary,
		nullString(article.ImageURL),
		dbTime(createdAt),
		nullString(article.ErrorNote),
	}, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *SQLStore) scanArticle(row rowScanner) (models.ProcessedArticle, error) {
	var (
		article   models.ProcessedArticle
		bullets   []string
		imageURL  sql.NullString
		errorNote sql.NullString
	)

	err := row.Scan(
		&article.ID,
		&article.OriginalTitle,
		&article.TranslatedTitle,
		&article.Link,
		&article.PublishedAt,
		&article.SourceName,
		s.summary.Scanner(&bullets),
		&imageURL,
		&article.CreatedAt,
		&errorNote,
	)
	if err != nil {
		return models.ProcessedArticle{}, fmt.Errorf("scan article: %w", err)
	}

	article.SummaryBullets = bullets
	if article.SummaryBullets == nil {
		article.SummaryBullets = []string{}
	}

	article.PublishedAt = article.PublishedAt.UTC()
	article.CreatedAt = article.CreatedAt.UTC()
	article.ImageURL = imageURL.String
	article.ErrorNote = errorNote.String
	return article, nil
}

// dbTime normalizes timestamps to whole seconds in UTC so that their text
// form in SQLite sorts chronologically.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func lastByLink(articles []models.ProcessedArticle) []models.ProcessedArticle {
	position := make(map[string]int, len(articles))
	out := make([]models.ProcessedArticle, 0, len(articles))
	for _, article := range articles {
		if idx, ok := position[article.Link]; ok {
			out[idx] = article
			continue
		}
		position[article.Link] = len(out)
		out = append(out, article)
	}
	return out
}
