package seeder

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/flakerslabs/sentinel/backend/internal/models"
	"github.com/flakerslabs/sentinel/backend/internal/repository"
	"github.com/flakerslabs/sentinel/backend/pkg/utils"
	"github.com/gocolly/colly/v2"
	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"
)

// Embedder produces embedding vectors for chunk texts.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Options control the crawl.
type Options struct {
	MaxPages    int
	Parallelism int
	Delay       time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxPages:    200,
		Parallelism: 4,
		Delay:       200 * time.Millisecond,
	}
}

// page is one crawled document before chunking.
type page struct {
	URL   string
	Title string
	Text  string
}

// Ingestor crawls an assistant's site and indexes its content as embedded
// chunks.
type Ingestor struct {
	chunks    repository.ChunkRepository
	embedder  Embedder
	processor *ContentProcessor
	opts      Options
	logger    *logrus.Logger
}

func NewIngestor(chunks repository.ChunkRepository, embedder Embedder, opts Options, logger *logrus.Logger) *Ingestor {
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultOptions().MaxPages
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultOptions().Parallelism
	}

	return &Ingestor{
		chunks:    chunks,
		embedder:  embedder,
		processor: NewContentProcessor(),
		opts:      opts,
		logger:    logger,
	}
}

// Ingest crawls the assistant's site, chunks and embeds the content, and
// stores the chunks. Returns the number of chunks indexed.
func (i *Ingestor) Ingest(ctx context.Context, assistant *models.Assistant) (int, error) {
	pages, err := i.crawl(ctx, assistant.SiteURL)
	if err != nil {
		return 0, fmt.Errorf("crawl failed: %w", err)
	}
	if len(pages) == 0 {
		return 0, fmt.Errorf("no crawlable content found at %s", assistant.SiteURL)
	}

	i.logger.WithFields(logrus.Fields{
		"assistant_id": assistant.ID,
		"pages":        len(pages),
	}).Info("Crawl completed, indexing content")

	total := 0
	for _, p := range pages {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}

		count, err := i.indexPage(ctx, assistant, p)
		if err != nil {
			return total, err
		}
		total += count
	}

	return total, nil
}

func (i *Ingestor) indexPage(ctx context.Context, assistant *models.Assistant, p page) (int, error) {
	cleaned := i.processor.CleanContent(p.Text)
	intent := i.processor.ClassifyIntent(p.URL, cleaned)

	texts := i.processor.ChunkText(cleaned)
	if len(texts) == 0 {
		return 0, nil
	}

	// Skip chunks whose content is already indexed.
	chunks := make([]models.ContentChunk, 0, len(texts))
	pending := make([]string, 0, len(texts))
	for idx, text := range texts {
		hash := utils.MD5Hash(text)
		exists, err := i.chunks.ExistsByHash(assistant.ID, hash)
		if err != nil {
			return 0, fmt.Errorf("hash lookup failed: %w", err)
		}
		if exists {
			continue
		}

		chunks = append(chunks, models.ContentChunk{
			AssistantID: assistant.ID,
			TenantID:    assistant.TenantID,
			SourceURL:   p.URL,
			Title:       p.Title,
			Text:        text,
			Intent:      intent,
			ContentHash: hash,
			ChunkIndex:  idx,
		})
		pending = append(pending, text)
	}

	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, err := i.embedder.EmbedBatch(ctx, pending)
	if err != nil {
		return 0, err
	}
	for idx := range chunks {
		chunks[idx].Embedding = pgvector.NewVector(vectors[idx])
	}

	if err := i.chunks.CreateBatch(chunks); err != nil {
		return 0, fmt.Errorf("failed to store chunks: %w", err)
	}

	return len(chunks), nil
}

// crawl fetches same-domain pages starting from siteURL.
func (i *Ingestor) crawl(ctx context.Context, siteURL string) ([]page, error) {
	parsed, err := url.Parse(siteURL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid site URL %q", siteURL)
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Host),
		colly.MaxDepth(3),
		colly.Async(true),
		colly.UserAgent("sentinel-ingest/1.0"),
	)

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: i.opts.Parallelism,
		Delay:       i.opts.Delay,
	}); err != nil {
		return nil, err
	}

	// Async collectors run callbacks concurrently.
	var mu sync.Mutex
	var pages []page

	full := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(pages) >= i.opts.MaxPages
	}

	collector.OnHTML("html", func(e *colly.HTMLElement) {
		if ctx.Err() != nil || full() {
			return
		}

		text := extractBodyText(e)
		if strings.TrimSpace(text) == "" {
			return
		}

		mu.Lock()
		if len(pages) < i.opts.MaxPages {
			pages = append(pages, page{
				URL:   e.Request.URL.String(),
				Title: strings.TrimSpace(e.ChildText("title")),
				Text:  text,
			})
		}
		mu.Unlock()
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		if ctx.Err() != nil || full() {
			return
		}

		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" || strings.Contains(link, "#") {
			return
		}
		e.Request.Visit(link)
	})

	collector.OnError(func(r *colly.Response, err error) {
		i.logger.WithError(err).WithField("url", r.Request.URL.String()).Debug("Page fetch failed")
	})

	if err := collector.Visit(siteURL); err != nil {
		return nil, err
	}
	collector.Wait()

	return pages, nil
}

// extractBodyText pulls readable text, skipping navigation and scripts.
func extractBodyText(e *colly.HTMLElement) string {
	body := e.DOM.Find("body").Clone()
	body.Find("script, style, nav, header, footer, noscript, svg, form").Remove()
	return body.Text()
}
