package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"feedbrief/internal/config"
	"feedbrief/internal/logging"
	"feedbrief/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	store, err := NewSQLiteStorage(t.TempDir(), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testArticle(n int, published time.Time) models.ProcessedArticle {
	link := fmt.Sprintf("https://example.com/%d", n)
	return models.ProcessedArticle{
		ID:              fmt.Sprintf("id-%d", n),
		OriginalTitle:   fmt.Sprintf("Title %d", n),
		TranslatedTitle: fmt.Sprintf("제목 %d", n),
		Link:            link,
		PublishedAt:     published,
		SourceName:      "Test Source",
		SummaryBullets:  []string{"one", "two", "three"},
		CreatedAt:       published.Add(time.Minute),
	}
}

func TestSQLiteStorage_BasicOperations(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	assert.Equal(t, "sqlite", store.Driver())

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	older := testArticle(1, base.Add(-time.Hour))
	newer := testArticle(2, base)
	newer.ImageURL = "https://cdn.example.com/2.jpg"
	newer.ErrorNote = "missing credential"

	require.NoError(t, store.UpsertArticles(ctx, []models.ProcessedArticle{older, newer}))

	links, err := store.ExistingLinks(ctx)
	require.NoError(t, err)
	assert.Len(t, links, 2)
	assert.Contains(t, links, older.Link)
	assert.Contains(t, links, newer.Link)

	articles, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, articles, 2)

	assert.Equal(t, newer.ID, articles[0].ID)
	assert.Equal(t, newer.TranslatedTitle, articles[0].TranslatedTitle)
	assert.Equal(t, newer.ImageURL, articles[0].ImageURL)
	assert.Equal(t, newer.ErrorNote, articles[0].ErrorNote)
	assert.Equal(t, []string{"one", "two", "three"}, articles[0].SummaryBullets)
	assert.True(t, base.Equal(articles[0].PublishedAt))

	assert.Equal(t, older.ID, articles[1].ID)
	assert.Empty(t, articles[1].ImageURL)
	assert.Empty(t, articles[1].ErrorNote)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, store.Ping(ctx))
}

func TestSQLiteStorage_UpsertOverwritesByLink(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	published := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	first := testArticle(1, published)
	first.ErrorNote = "rate limited"
	first.SummaryBullets = []string{"failed"}
	require.NoError(t, store.UpsertArticles(ctx, []models.ProcessedArticle{first}))

	second := first
	second.ErrorNote = ""
	second.TranslatedTitle = "새 제목"
	second.SummaryBullets = []string{"a", "b", "c"}
	second.CreatedAt = published.Add(time.Hour)
	require.NoError(t, store.UpsertArticles(ctx, []models.ProcessedArticle{second}))

	articles, err := store.ListRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, articles, 1)

	got := articles[0]
	assert.Equal(t, "새 제목", got.TranslatedTitle)
	assert.Equal(t, []string{"a", "b", "c"}, got.SummaryBullets)
	assert.Empty(t, got.ErrorNote)
	assert.True(t, first.CreatedAt.Equal(got.CreatedAt), "created_at keeps the first insert")
}

func TestSQLiteStorage_UpsertDuplicateLinksInBatch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	published := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a := testArticle(1, published)
	b := a
	b.TranslatedTitle = "last wins"

	require.NoError(t, store.UpsertArticles(ctx, []models.ProcessedArticle{a, b}))

	articles, err := store.ListRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "last wins", articles[0].TranslatedTitle)
}

func TestSQLiteStorage_UpsertLargeBatch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	batch := make([]models.ProcessedArticle, 0, 120)
	for i := 0; i < 120; i++ {
		batch = append(batch, testArticle(i, base.Add(time.Duration(i)*time.Minute)))
	}
	require.NoError(t, store.UpsertArticles(ctx, batch))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 120, count)

	recent, err := store.ListRecent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recent, 5)
	assert.Equal(t, "id-119", recent[0].ID)
}

func TestSQLiteStorage_RetentionAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	var batch []models.ProcessedArticle
	for i := 0; i < 5; i++ {
		// Insert out of order to check sorting
		batch = append(batch, testArticle(i, base.Add(time.Duration((i*3)%5)*time.Hour)))
	}
	require.NoError(t, store.UpsertArticles(ctx, batch))

	entries, err := store.RetentionEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].PublishedAt.After(entries[i-1].PublishedAt), "entries must be newest first")
	}

	deleted, err := store.DeleteArticles(ctx, []string{entries[3].ID, entries[4].ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	deleted, err = store.DeleteArticles(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSQLiteStorage_EmptyStore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	links, err := store.ExistingLinks(ctx)
	require.NoError(t, err)
	assert.Empty(t, links)

	articles, err := store.ListRecent(ctx, 200)
	require.NoError(t, err)
	assert.NotNil(t, articles)
	assert.Empty(t, articles)

	require.NoError(t, store.UpsertArticles(ctx, nil))
}

func TestSQLiteStorage_Persistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewSQLiteStorage(dir, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, store.UpsertArticles(ctx, []models.ProcessedArticle{testArticle(1, time.Now())}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStorage(dir, logging.Discard())
	require.NoError(t, err)
	defer reopened.Close()

	links, err := reopened.ExistingLinks(ctx)
	require.NoError(t, err)
	assert.Contains(t, links, "https://example.com/1")
}

func TestSQLiteStorage_MigratesMissingColumn(t *testing.T) {
	dir := t.TempDir()

	legacy, err := sql.Open("sqlite3", filepath.Join(dir, sqliteFileName))
	require.NoError(t, err)
	_, err = legacy.Exec(`CREATE TABLE articles (
		id TEXT PRIMARY KEY,
		original_title TEXT NOT NULL,
		title_ko TEXT NOT NULL,
		link TEXT UNIQUE NOT NULL,
		pub_date DATETIME NOT NULL,
		source TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '[]',
		image_url TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	require.NoError(t, err)
	require.NoError(t, legacy.Close())

	store, err := NewSQLiteStorage(dir, logging.Discard())
	require.NoError(t, err)
	defer store.Close()

	article := testArticle(1, time.Now())
	article.ErrorNote = "rate limited"
	require.NoError(t, store.UpsertArticles(context.Background(), []models.ProcessedArticle{article}))

	articles, err := store.ListRecent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "rate limited", articles[0].ErrorNote)
}

func TestSQLiteStorage_Closed(t *testing.T) {
	store, err := NewSQLiteStorage(t.TempDir(), logging.Discard())
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err = store.ExistingLinks(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, store.Ping(context.Background()), ErrClosed)
}

func TestNewStorage(t *testing.T) {
	store, err := NewStorage(config.DatabaseConfig{Driver: config.DriverSQLite, DataDir: t.TempDir()}, logging.Discard())
	require.NoError(t, err)
	defer store.Close()

	_, err = NewStorage(config.DatabaseConfig{Driver: "oracle"}, logging.Discard())
	assert.Error(t, err)
}
