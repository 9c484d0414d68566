package index

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/flakerslabs/sentinel/backend/internal/models"
	"github.com/flakerslabs/sentinel/backend/internal/repository"
	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChunkRepo struct {
	matches []repository.ChunkMatch
	err     error

	gotTenant    string
	gotAssistant string
	gotLimit     int
}

func (s *stubChunkRepo) CreateBatch(chunks []models.ContentChunk) error { return nil }

func (s *stubChunkRepo) SearchSimilar(ctx context.Context, tenantID, assistantID string, embedding pgvector.Vector, limit int) ([]repository.ChunkMatch, error) {
	s.gotTenant = tenantID
	s.gotAssistant = assistantID
	s.gotLimit = limit
	return s.matches, s.err
}

func (s *stubChunkRepo) ExistsByHash(assistantID, contentHash string) (bool, error) {
	return false, nil
}

func (s *stubChunkRepo) DeleteByAssistant(assistantID string) error { return nil }

func (s *stubChunkRepo) CountByAssistant(assistantID string) (int64, error) { return 0, nil }

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestSearchMapsMatchesToHits(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &stubChunkRepo{
		matches: []repository.ChunkMatch{
			{
				ID:          "chunk-1",
				AssistantID: "asst-1",
				TenantID:    "tenant-1",
				SourceURL:   "https://acme.test/faq",
				Title:       "FAQ",
				Text:        "Shipping takes two days.",
				Intent:      models.IntentFAQ,
				Similarity:  0.82,
				CreatedAt:   created,
			},
		},
	}

	idx := NewPgVector(repo, testLogger())

	hits, err := idx.Search(context.Background(), "tenant-1", "asst-1", []float32{0.1, 0.2}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	assert.Equal(t, "chunk-1", hits[0].ChunkID)
	assert.Equal(t, "tenant-1", hits[0].TenantID)
	assert.Equal(t, 0.82, hits[0].Score)
	assert.Equal(t, created, hits[0].CreatedAt)

	assert.Equal(t, "tenant-1", repo.gotTenant)
	assert.Equal(t, "asst-1", repo.gotAssistant)
	assert.Equal(t, 5, repo.gotLimit)
}

func TestSearchWrapsBackendFailure(t *testing.T) {
	repo := &stubChunkRepo{err: errors.New("connection refused")}
	idx := NewPgVector(repo, testLogger())

	_, err := idx.Search(context.Background(), "tenant-1", "asst-1", []float32{0.1}, 5)
	require.Error(t, err)

	var unavailable *UnavailableError
	assert.True(t, errors.As(err, &unavailable))
	assert.Contains(t, err.Error(), "content index unavailable")
}

func TestSearchEmptyResultIsNotAnError(t *testing.T) {
	idx := NewPgVector(&stubChunkRepo{}, testLogger())

	hits, err := idx.Search(context.Background(), "tenant-1", "asst-1", []float32{0.1}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
