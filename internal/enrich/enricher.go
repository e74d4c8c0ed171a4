package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	"feedbrief/internal/feeds"
	"feedbrief/internal/models"

	"github.com/pemistahl/lingua-go"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPromptMaxChars = 2000
	DefaultTargetLanguage = "Korean"

	missingCredentialBullet = "Summary unavailable: the summarization service is not configured."
	failedBullet            = "Summary unavailable: an error occurred while processing this article."
)

const systemPromptTemplate = `You are a technology journalist covering startups.
Translate the article title into %[1]s and summarize the article in exactly three points for a startup audience, written in %[1]s.

Respond with a JSON object only, in this exact shape:
{
  "title_ko": "translated title",
  "summary": [
    "1. What happened (the core event or announcement)",
    "2. Why it matters (market or industry impact)",
    "3. What it means for startups (opportunity, threat or lesson)"
  ]
}`

// Options tunes prompt construction
type Options struct {
	PromptMaxChars int
	TargetLanguage string
}

// Enricher turns raw feed entries into processed articles. It never fails:
// every problem is folded into a degraded article carrying an error note.
type Enricher struct {
	completer      Completer
	maxChars       int
	targetLanguage string
	systemPrompt   string
	detector       lingua.LanguageDetector
	log            logrus.FieldLogger
	now            func() time.Time
}

// New creates an Enricher. A nil completer means no credential is
// configured and every article is degraded without a network call.
func New(completer Completer, opts Options, log logrus.FieldLogger) *Enricher {
	if opts.PromptMaxChars <= 0 {
		opts.PromptMaxChars = DefaultPromptMaxChars
	}
	if strings.TrimSpace(opts.TargetLanguage) == "" {
		opts.TargetLanguage = DefaultTargetLanguage
	}

	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(
			lingua.English, lingua.German, lingua.French, lingua.Spanish,
			lingua.Chinese, lingua.Japanese, lingua.Korean, lingua.Russian,
			lingua.Italian, lingua.Portuguese, lingua.Dutch,
		).
		Build()

	return &Enricher{
		completer:      completer,
		maxChars:       opts.PromptMaxChars,
		targetLanguage: opts.TargetLanguage,
		systemPrompt:   fmt.Sprintf(systemPromptTemplate, opts.TargetLanguage),
		detector:       detector,
		log:            log.WithField("component", "enricher"),
		now:            time.Now,
	}
}

// Configured reports whether a summarization service is available
func (e *Enricher) Configured() bool {
	return e.completer != nil
}

// Enrich summarizes one article
func (e *Enricher) Enrich(ctx context.Context, raw models.RawArticle) models.ProcessedArticle {
	if e.completer == nil {
		return e.degraded(raw, ErrMissingCredential.Error(), missingCredentialBullet)
	}

	summary, err := e.summarize(ctx, raw)
	if err != nil {
		e.log.WithField("link", raw.Link).WithError(err).Warn("Enrichment failed, storing degraded article")
		return e.degraded(raw, err.Error(), failedBullet)
	}

	article := e.base(raw)
	article.TranslatedTitle = summary.TranslatedTitle
	if article.TranslatedTitle == "" {
		article.TranslatedTitle = raw.Title
	}
	article.SummaryBullets = summary.Bullets
	return article
}

// EnrichAll processes articles one at a time, in order. Results line up with
// the input.
func (e *Enricher) EnrichAll(ctx context.Context, articles []models.RawArticle) []models.ProcessedArticle {
	processed := make([]models.ProcessedArticle, 0, len(articles))
	for _, article := range articles {
		processed = append(processed, e.Enrich(ctx, article))
	}
	return processed
}

func (e *Enricher) summarize(ctx context.Context, raw models.RawArticle) (Summary, error) {
	reply, err := e.completer.Complete(ctx, e.systemPrompt, e.userPrompt(raw))
	if err != nil {
		return Summary{}, err
	}
	if strings.TrimSpace(reply) == "" {
		return Summary{}, ErrEmptyResponse
	}
	return ParseSummary(reply)
}

func (e *Enricher) userPrompt(raw models.RawArticle) string {
	body := promptBody(raw, e.maxChars)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\n\n", raw.Title)
	if lang := e.detectLanguage(raw.Title + "\n" + body); lang != "" {
		fmt.Fprintf(&sb, "Source language: %s\n\n", lang)
	}
	fmt.Fprintf(&sb, "Content: %s", body)
	return sb.String()
}

func (e *Enricher) detectLanguage(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	language, exists := e.detector.DetectLanguageOf(text)
	if !exists {
		return ""
	}
	return language.String()
}

func (e *Enricher) base(raw models.RawArticle) models.ProcessedArticle {
	return models.ProcessedArticle{
		ID:              feeds.ArticleID(raw.Link),
		OriginalTitle:   raw.Title,
		TranslatedTitle: raw.Title,
		Link:            raw.Link,
		PublishedAt:     raw.PublishedAt,
		SourceName:      raw.SourceName,
		SummaryBullets:  []string{},
		ImageURL:        raw.ImageURL,
		CreatedAt:       e.now().UTC(),
	}
}

func (e *Enricher) degraded(raw models.RawArticle, note, bullet string) models.ProcessedArticle {
	article := e.base(raw)
	article.SummaryBullets = []string{bullet}
	article.ErrorNote = note
	return article
}

// promptBody picks the snippet, then the full content, then the title, and
// cuts it to at most maxChars runes.
func promptBody(raw models.RawArticle, maxChars int) string {
	body := raw.Title
	for _, candidate := range []string{raw.Snippet, raw.Content} {
		if strings.TrimSpace(candidate) != "" {
			body = candidate
			break
		}
	}
	return truncateRunes(body, maxChars)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
