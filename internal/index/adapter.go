package index

import (
	"context"
	"fmt"
	"time"

	"github.com/flakerslabs/sentinel/backend/internal/repository"
	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"
)

// Hit is one raw search result before governance sees it.
type Hit struct {
	ChunkID     string
	AssistantID string
	TenantID    string
	SourceURL   string
	Title       string
	Text        string
	Intent      string
	Score       float64
	CreatedAt   time.Time
}

// Index is the content search surface. Implementations must scope every
// search to the given tenant; callers re-verify anyway.
type Index interface {
	Search(ctx context.Context, tenantID, assistantID string, embedding []float32, limit int) ([]Hit, error)
}

// UnavailableError marks a failed index backend. Handlers map it to 503;
// it is never downgraded to a refusal.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("content index unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// PgVector is the Postgres-backed index over the content_chunks table.
type PgVector struct {
	chunks repository.ChunkRepository
	logger *logrus.Logger
}

func NewPgVector(chunks repository.ChunkRepository, logger *logrus.Logger) *PgVector {
	return &PgVector{chunks: chunks, logger: logger}
}

func (p *PgVector) Search(ctx context.Context, tenantID, assistantID string, embedding []float32, limit int) ([]Hit, error) {
	matches, err := p.chunks.SearchSimilar(ctx, tenantID, assistantID, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, &UnavailableError{Err: err}
	}

	hits := make([]Hit, 0, len(matches))
	for _, m := range matches {
		hits = append(hits, Hit{
			ChunkID:     m.ID,
			AssistantID: m.AssistantID,
			TenantID:    m.TenantID,
			SourceURL:   m.SourceURL,
			Title:       m.Title,
			Text:        m.Text,
			Intent:      m.Intent,
			Score:       m.Similarity,
			CreatedAt:   m.CreatedAt,
		})
	}

	p.logger.WithFields(logrus.Fields{
		"assistant_id": assistantID,
		"hits":         len(hits),
	}).Debug("Index search completed")

	return hits, nil
}
