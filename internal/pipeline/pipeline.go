package pipeline

import (
	"context"
	"sync"
	"time"

	"feedbrief/internal/models"

	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxArticles = 200
	DefaultMaxPerRun   = 10
)

type Fetcher interface {
	FetchAll(ctx context.Context) []models.RawArticle
}

type Enricher interface {
	EnrichAll(ctx context.Context, articles []models.RawArticle) []models.ProcessedArticle
}

// Store is the part of the persisted collection a run touches
type Store interface {
	ExistingLinks(ctx context.Context) (map[string]struct{}, error)
	UpsertArticles(ctx context.Context, articles []models.ProcessedArticle) error
	RetentionEntries(ctx context.Context) ([]models.RetentionEntry, error)
	DeleteArticles(ctx context.Context, ids []string) (int64, error)
}

type Options struct {
	// MaxArticles is the retention cap
	MaxArticles int
	// MaxPerRun bounds how many new articles one run enriches
	MaxPerRun int
}

// Result summarizes a completed run
type Result struct {
	Processed int
	Total     int
	Fetched   int
	New       int
	Deleted   int64
	Stage     Stage
	Duration  time.Duration
}

// Pipeline runs fetch, dedupe, enrichment, upsert and retention trim. It
// keeps no state between runs; the store's link set is the only memory.
type Pipeline struct {
	fetcher  Fetcher
	store    Store
	enricher Enricher
	opts     Options
	log      logrus.FieldLogger

	// serializes runs started in this process
	mu sync.Mutex
}

func New(fetcher Fetcher, store Store, enricher Enricher, opts Options, log logrus.FieldLogger) *Pipeline {
	if opts.MaxArticles <= 0 {
		opts.MaxArticles = DefaultMaxArticles
	}
	if opts.MaxPerRun <= 0 {
		opts.MaxPerRun = DefaultMaxPerRun
	}

	return &Pipeline{
		fetcher:  fetcher,
		store:    store,
		enricher: enricher,
		opts:     opts,
		log:      log.WithField("component", "pipeline"),
	}
}

// Run performs one ingestion run. Only storage failures before the trim are
// fatal; they come back as *RunError.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	started := time.Now()
	var result Result

	p.enter(StageFetching)
	raw := p.fetcher.FetchAll(ctx)
	result.Fetched = len(raw)

	p.enter(StageDiffing)
	existing, err := p.store.ExistingLinks(ctx)
	if err != nil {
		return p.fail(result, StageDiffing, err)
	}
	fresh := newArticles(raw, existing)
	result.New = len(fresh)

	if len(fresh) == 0 {
		result.Total = len(existing)
		return p.done(result, started), nil
	}

	p.enter(StageEnriching)
	selected := fresh
	if len(selected) > p.opts.MaxPerRun {
		selected = selected[:p.opts.MaxPerRun]
	}
	processed := p.enricher.EnrichAll(ctx, selected)
	result.Processed = len(processed)

	p.enter(StagePersisting)
	if err := p.store.UpsertArticles(ctx, processed); err != nil {
		return p.fail(result, StagePersisting, err)
	}

	p.enter(StageTrimming)
	result.Total, result.Deleted = p.trim(ctx)

	return p.done(result, started), nil
}

// trim evicts the oldest rows beyond the retention cap. Failures are logged
// and never fail the run.
func (p *Pipeline) trim(ctx context.Context) (int, int64) {
	entries, err := p.store.RetentionEntries(ctx)
	if err != nil {
		p.log.WithError(err).Warn("Failed to list articles for retention")
		return 0, 0
	}

	count := len(entries)
	if count <= p.opts.MaxArticles {
		return count, 0
	}

	ids := make([]string, 0, count-p.opts.MaxArticles)
	for _, entry := range entries[p.opts.MaxArticles:] {
		ids = append(ids, entry.ID)
	}

	deleted, err := p.store.DeleteArticles(ctx, ids)
	if err != nil {
		p.log.WithError(err).WithField("count", len(ids)).Warn("Failed to trim articles beyond retention cap")
		return count, 0
	}

	total := count - int(deleted)
	if deleted < int64(len(ids)) {
		// another writer changed the table between listing and delete
		if fresh, err := p.store.RetentionEntries(ctx); err == nil {
			total = len(fresh)
		}
	}

	return total, deleted
}

func (p *Pipeline) enter(stage Stage) {
	p.log.WithField("stage", stage.String()).Debug("Pipeline stage")
}

func (p *Pipeline) fail(result Result, stage Stage, err error) (Result, error) {
	result.Stage = StageFailed
	p.log.WithField("stage", stage.String()).WithError(err).Error("Pipeline run failed")
	return result, &RunError{Stage: stage, Err: err}
}

func (p *Pipeline) done(result Result, started time.Time) Result {
	result.Stage = StageDone
	result.Duration = time.Since(started)

	p.log.WithFields(logrus.Fields{
		"fetched":   result.Fetched,
		"new":       result.New,
		"processed": result.Processed,
		"total":     result.Total,
		"deleted":   result.Deleted,
		"duration":  result.Duration.String(),
	}).Info("Pipeline run completed")

	return result
}

// newArticles keeps the articles whose link is not stored yet, in input
// order. A link seen twice in one fetch is taken once.
func newArticles(raw []models.RawArticle, existing map[string]struct{}) []models.RawArticle {
	seen := make(map[string]struct{}, len(raw))
	fresh := make([]models.RawArticle, 0, len(raw))
	for _, article := range raw {
		if _, ok := existing[article.Link]; ok {
			continue
		}
		if _, ok := seen[article.Link]; ok {
			continue
		}
		seen[article.Link] = struct{}{}
		fresh = append(fresh, article)
	}
	return fresh
}
