package feeds

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"feedbrief/internal/models"

	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"
)

const (
	DefaultItemsPerFeed = 15
	DefaultUserAgent    = "feedbrief/1.0 (+https://github.com/feedbrief)"

	untitled = "No title"
)

// Options tunes how feeds are retrieved
type Options struct {
	ItemsPerFeed int
	Timeout      time.Duration
	UserAgent    string
	Client       *http.Client
}

// Fetcher retrieves the fixed set of feed sources concurrently
type Fetcher struct {
	sources      []models.FeedSource
	itemsPerFeed int
	userAgent    string
	client       *http.Client
	log          logrus.FieldLogger
	now          func() time.Time
}

// FeedResult is the outcome of fetching one source
type FeedResult struct {
	Source   models.FeedSource
	Articles []models.RawArticle
	Error    error
}

func New(sources []models.FeedSource, opts Options, log logrus.FieldLogger) *Fetcher {
	if opts.ItemsPerFeed <= 0 {
		opts.ItemsPerFeed = DefaultItemsPerFeed
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &Fetcher{
		sources:      sources,
		itemsPerFeed: opts.ItemsPerFeed,
		userAgent:    opts.UserAgent,
		client:       client,
		log:          log.WithField("component", "fetcher"),
		now:          time.Now,
	}
}

// Sources returns the configured feed sources
func (f *Fetcher) Sources() []models.FeedSource {
	out := make([]models.FeedSource, len(f.sources))
	copy(out, f.sources)
	return out
}

// FetchAll retrieves every source concurrently. A failing source is logged and
// contributes nothing; it never affects the others. The combined result is
// sorted newest-first.
func (f *Fetcher) FetchAll(ctx context.Context) []models.RawArticle {
	results := f.fetchSourcesParallel(ctx)

	var allArticles []models.RawArticle
	for _, result := range results {
		if result.Error != nil {
			f.log.WithFields(logrus.Fields{
				"source": result.Source.Name,
				"url":    result.Source.URL,
			}).WithError(result.Error).Warn("Error fetching feed")
			continue
		}
		allArticles = append(allArticles, result.Articles...)
	}

	sort.SliceStable(allArticles, func(i, j int) bool {
		return allArticles[i].PublishedAt.After(allArticles[j].PublishedAt)
	})

	f.log.WithFields(logrus.Fields{
		"sources":  len(f.sources),
		"articles": len(allArticles),
	}).Debug("Fetched feeds")

	return allArticles
}

// fetchSourcesParallel returns one result per source, in source order
func (f *Fetcher) fetchSourcesParallel(ctx context.Context) []FeedResult {
	results := make([]FeedResult, len(f.sources))

	var wg sync.WaitGroup
	for i, source := range f.sources {
		wg.Add(1)
		go func(idx int, src models.FeedSource) {
			defer wg.Done()
			articles, err := f.FetchSource(ctx, src)
			results[idx] = FeedResult{
				Source:   src,
				Articles: articles,
				Error:    err,
			}
		}(i, source)
	}

	wg.Wait()
	return results
}

// FetchSource retrieves and normalizes a single feed, keeping at most the
// first ItemsPerFeed entries in feed order.
func (f *Fetcher) FetchSource(ctx context.Context, src models.FeedSource) (articles []models.RawArticle, err error) {
	defer func() {
		// A malformed document must not take down the other fetches
		if r := recover(); r != nil {
			articles = nil
			err = fmt.Errorf("panic while parsing feed: %v", r)
		}
	}()

	// gofeed.Parser keeps per-parse state, so each fetch gets its own
	parser := gofeed.NewParser()
	parser.Client = f.client
	parser.UserAgent = f.userAgent

	feed, err := parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := feed.Items
	if len(items) > f.itemsPerFeed {
		items = items[:f.itemsPerFeed]
	}

	articles = make([]models.RawArticle, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		article, ok := f.toRawArticle(item, src)
		if !ok {
			continue
		}
		articles = append(articles, article)
	}

	return articles, nil
}

func (f *Fetcher) toRawArticle(item *gofeed.Item, src models.FeedSource) (models.RawArticle, bool) {
	link := strings.TrimSpace(item.Link)
	if link == "" {
		f.log.WithField("source", src.Name).Debug("Skipping entry without link")
		return models.RawArticle{}, false
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = untitled
	}

	content := item.Content
	if strings.TrimSpace(content) == "" {
		content = item.Description
	}

	return models.RawArticle{
		Title:       title,
		Link:        link,
		PublishedAt: publishedAt(item, f.now),
		Content:     content,
		Snippet:     Snippet(item.Description, item.Content),
		SourceName:  src.Name,
		ImageURL:    ResolveImage(item),
	}, true
}

func publishedAt(item *gofeed.Item, now func() time.Time) time.Time {
	if item.PublishedParsed != nil && !item.PublishedParsed.IsZero() {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil && !item.UpdatedParsed.IsZero() {
		return item.UpdatedParsed.UTC()
	}
	return now().UTC()
}
