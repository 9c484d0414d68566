package retrieval

import (
	"context"
	"sort"
	"time"

	"github.com/flakerslabs/sentinel/backend/internal/index"
	"github.com/flakerslabs/sentinel/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// Embedder turns query text into a vector, retrying transient failures.
type Embedder interface {
	EmbedWithRetry(ctx context.Context, text string) ([]float32, error)
}

// Options control ranking cutoffs and per-stage deadlines.
type Options struct {
	TopK          int
	MinRelevance  float64
	EmbedTimeout  time.Duration
	SearchTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		TopK:          5,
		MinRelevance:  0.4,
		EmbedTimeout:  5 * time.Second,
		SearchTimeout: 3 * time.Second,
	}
}

// Orchestrator runs the embed -> search -> verify -> rank pipeline. It never
// makes governance decisions; it only produces Evidence.
type Orchestrator struct {
	embedder Embedder
	index    index.Index
	opts     Options
	logger   *logrus.Logger
}

func NewOrchestrator(embedder Embedder, idx index.Index, opts Options, logger *logrus.Logger) *Orchestrator {
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.EmbedTimeout <= 0 {
		opts.EmbedTimeout = DefaultOptions().EmbedTimeout
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = DefaultOptions().SearchTimeout
	}

	return &Orchestrator{
		embedder: embedder,
		index:    idx,
		opts:     opts,
		logger:   logger,
	}
}

// Retrieve produces ranked evidence for a query. Empty evidence means the
// index had nothing relevant; it is a normal outcome, not an error. Upstream
// failures (embedding, index) propagate as their typed errors.
func (o *Orchestrator) Retrieve(ctx context.Context, assistant *models.Assistant, queryText string) (models.Evidence, error) {
	embedCtx, cancel := context.WithTimeout(ctx, o.opts.EmbedTimeout)
	embedding, err := o.embedder.EmbedWithRetry(embedCtx, queryText)
	cancel()
	if err != nil {
		return nil, err
	}

	// Over-fetch so URL dedup still leaves enough candidates for the cutoff.
	hits, err := o.search(ctx, assistant, embedding, o.opts.TopK*3)
	if err != nil {
		return nil, err
	}

	verified := o.verifyOwnership(assistant, hits)
	deduped := dedupeBySource(verified)

	sort.SliceStable(deduped, func(i, j int) bool {
		if deduped[i].Score != deduped[j].Score {
			return deduped[i].Score > deduped[j].Score
		}
		return deduped[i].CreatedAt.After(deduped[j].CreatedAt)
	})

	evidence := make(models.Evidence, 0, o.opts.TopK)
	for _, hit := range deduped {
		if hit.Score < o.opts.MinRelevance {
			continue
		}
		evidence = append(evidence, models.EvidenceItem{
			ChunkID:     hit.ChunkID,
			AssistantID: hit.AssistantID,
			TenantID:    hit.TenantID,
			SourceURL:   hit.SourceURL,
			Title:       hit.Title,
			Text:        hit.Text,
			Intent:      hit.Intent,
			Score:       hit.Score,
			Rank:        len(evidence) + 1,
			CreatedAt:   hit.CreatedAt,
		})
		if len(evidence) == o.opts.TopK {
			break
		}
	}

	o.logger.WithFields(logrus.Fields{
		"assistant_id": assistant.ID,
		"raw_hits":     len(hits),
		"evidence":     len(evidence),
	}).Debug("Retrieval completed")

	return evidence, nil
}

// search queries the index with one transparent retry on backend failure.
func (o *Orchestrator) search(ctx context.Context, assistant *models.Assistant, embedding []float32, limit int) ([]index.Hit, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, &index.UnavailableError{Err: ctx.Err()}
			case <-time.After(200 * time.Millisecond):
			}
		}

		searchCtx, cancel := context.WithTimeout(ctx, o.opts.SearchTimeout)
		hits, err := o.index.Search(searchCtx, assistant.TenantID, assistant.ID, embedding, limit)
		cancel()
		if err == nil {
			return hits, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		o.logger.WithError(err).Warn("Index search failed, retrying")
	}
	return nil, lastErr
}

// verifyOwnership drops hits not owned by the queried assistant and tenant.
// The index already filters on both; a mismatch here means the index is
// broken, so the hit is excluded and logged rather than trusted.
func (o *Orchestrator) verifyOwnership(assistant *models.Assistant, hits []index.Hit) []index.Hit {
	verified := make([]index.Hit, 0, len(hits))
	for _, hit := range hits {
		if hit.TenantID != assistant.TenantID || hit.AssistantID != assistant.ID {
			o.logger.WithFields(logrus.Fields{
				"assistant_id":    assistant.ID,
				"expected_tenant": assistant.TenantID,
				"hit_assistant":   hit.AssistantID,
				"hit_tenant":      hit.TenantID,
				"chunk_id":        hit.ChunkID,
			}).Error("Ownership mismatch in index results, dropping hit")
			continue
		}
		verified = append(verified, hit)
	}
	return verified
}

// dedupeBySource keeps only the highest-scoring hit per source URL,
// preserving first-seen order for the sort's stability.
func dedupeBySource(hits []index.Hit) []index.Hit {
	best := make(map[string]int, len(hits))
	deduped := make([]index.Hit, 0, len(hits))
	for _, hit := range hits {
		if i, seen := best[hit.SourceURL]; seen {
			if hit.Score > deduped[i].Score {
				deduped[i] = hit
			}
			continue
		}
		best[hit.SourceURL] = len(deduped)
		deduped = append(deduped, hit)
	}
	return deduped
}
