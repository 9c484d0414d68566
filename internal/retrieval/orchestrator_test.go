package retrieval

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/flakerslabs/sentinel/backend/internal/index"
	"github.com/flakerslabs/sentinel/backend/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	vector []float32
	err    error
}

func (s *stubEmbedder) EmbedWithRetry(ctx context.Context, text string) ([]float32, error) {
	return s.vector, s.err
}

type stubIndex struct {
	hits  []index.Hit
	errs  []error
	calls int
}

func (s *stubIndex) Search(ctx context.Context, tenantID, assistantID string, embedding []float32, limit int) ([]index.Hit, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return s.hits, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testAssistant() *models.Assistant {
	return &models.Assistant{
		ID:       "asst-1",
		TenantID: "tenant-1",
		Status:   models.StatusReady,
	}
}

func newTestOrchestrator(embedder Embedder, idx index.Index) *Orchestrator {
	return NewOrchestrator(embedder, idx, DefaultOptions(), testLogger())
}

func hit(id, url string, score float64, created time.Time) index.Hit {
	return index.Hit{
		ChunkID:     id,
		AssistantID: "asst-1",
		TenantID:    "tenant-1",
		SourceURL:   url,
		Text:        "text for " + id,
		Intent:      models.IntentFAQ,
		Score:       score,
		CreatedAt:   created,
	}
}

func TestRetrieveRanksByScoreThenRecency(t *testing.T) {
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	idx := &stubIndex{hits: []index.Hit{
		hit("a", "https://acme.test/a", 0.7, older),
		hit("b", "https://acme.test/b", 0.9, older),
		hit("c", "https://acme.test/c", 0.7, newer),
	}}

	o := newTestOrchestrator(&stubEmbedder{vector: []float32{0.1}}, idx)

	evidence, err := o.Retrieve(context.Background(), testAssistant(), "question")
	require.NoError(t, err)
	require.Len(t, evidence, 3)

	assert.Equal(t, "b", evidence[0].ChunkID)
	assert.Equal(t, "c", evidence[1].ChunkID) // newer wins the 0.7 tie
	assert.Equal(t, "a", evidence[2].ChunkID)
	assert.Equal(t, []int{1, 2, 3}, []int{evidence[0].Rank, evidence[1].Rank, evidence[2].Rank})
}

func TestRetrieveDedupesByURLKeepingBestScore(t *testing.T) {
	now := time.Now()
	idx := &stubIndex{hits: []index.Hit{
		hit("low", "https://acme.test/page", 0.5, now),
		hit("high", "https://acme.test/page", 0.8, now),
		hit("other", "https://acme.test/other", 0.6, now),
	}}

	o := newTestOrchestrator(&stubEmbedder{vector: []float32{0.1}}, idx)

	evidence, err := o.Retrieve(context.Background(), testAssistant(), "question")
	require.NoError(t, err)
	require.Len(t, evidence, 2)

	assert.Equal(t, "high", evidence[0].ChunkID)
	assert.Equal(t, 0.8, evidence[0].Score)
	assert.Equal(t, "other", evidence[1].ChunkID)
}

func TestRetrieveAppliesRelevanceCutoffAndTopK(t *testing.T) {
	now := time.Now()
	hits := []index.Hit{
		hit("1", "https://acme.test/1", 0.95, now),
		hit("2", "https://acme.test/2", 0.90, now),
		hit("3", "https://acme.test/3", 0.85, now),
		hit("4", "https://acme.test/4", 0.80, now),
		hit("5", "https://acme.test/5", 0.75, now),
		hit("6", "https://acme.test/6", 0.70, now),
		hit("7", "https://acme.test/7", 0.39, now),
	}

	o := newTestOrchestrator(&stubEmbedder{vector: []float32{0.1}}, &stubIndex{hits: hits})

	evidence, err := o.Retrieve(context.Background(), testAssistant(), "question")
	require.NoError(t, err)
	require.Len(t, evidence, 5)
	for _, item := range evidence {
		assert.GreaterOrEqual(t, item.Score, 0.4)
	}
	assert.Equal(t, "5", evidence[4].ChunkID)
}

func TestRetrieveDropsTenantMismatches(t *testing.T) {
	now := time.Now()
	foreign := hit("foreign", "https://evil.test/x", 0.99, now)
	foreign.TenantID = "tenant-2"

	idx := &stubIndex{hits: []index.Hit{
		foreign,
		hit("ours", "https://acme.test/ok", 0.7, now),
	}}

	o := newTestOrchestrator(&stubEmbedder{vector: []float32{0.1}}, idx)

	evidence, err := o.Retrieve(context.Background(), testAssistant(), "question")
	require.NoError(t, err)
	require.Len(t, evidence, 1)
	assert.Equal(t, "ours", evidence[0].ChunkID)
}

func TestRetrieveDropsForeignAssistantChunks(t *testing.T) {
	now := time.Now()
	// Same tenant, different assistant: a broken index response must not
	// leak another assistant's content, however well it scores.
	foreign := hit("foreign", "https://acme.test/other-bot", 0.99, now)
	foreign.AssistantID = "asst-2"

	idx := &stubIndex{hits: []index.Hit{
		foreign,
		hit("ours", "https://acme.test/ok", 0.7, now),
	}}

	o := newTestOrchestrator(&stubEmbedder{vector: []float32{0.1}}, idx)

	evidence, err := o.Retrieve(context.Background(), testAssistant(), "question")
	require.NoError(t, err)
	require.Len(t, evidence, 1)
	assert.Equal(t, "ours", evidence[0].ChunkID)
}

func TestRetrieveEmptyEvidenceIsNotAnError(t *testing.T) {
	o := newTestOrchestrator(&stubEmbedder{vector: []float32{0.1}}, &stubIndex{})

	evidence, err := o.Retrieve(context.Background(), testAssistant(), "question")
	require.NoError(t, err)
	assert.True(t, evidence.Empty())
}

func TestRetrievePropagatesEmbeddingError(t *testing.T) {
	embedErr := errors.New("embedding exploded")
	o := newTestOrchestrator(&stubEmbedder{err: embedErr}, &stubIndex{})

	_, err := o.Retrieve(context.Background(), testAssistant(), "question")
	assert.ErrorIs(t, err, embedErr)
}

func TestRetrieveRetriesIndexOnce(t *testing.T) {
	now := time.Now()
	idx := &stubIndex{
		hits: []index.Hit{hit("a", "https://acme.test/a", 0.7, now)},
		errs: []error{&index.UnavailableError{Err: errors.New("transient")}, nil},
	}

	o := newTestOrchestrator(&stubEmbedder{vector: []float32{0.1}}, idx)

	evidence, err := o.Retrieve(context.Background(), testAssistant(), "question")
	require.NoError(t, err)
	assert.Len(t, evidence, 1)
	assert.Equal(t, 2, idx.calls)
}

func TestRetrieveGivesUpAfterSecondIndexFailure(t *testing.T) {
	idx := &stubIndex{
		errs: []error{
			&index.UnavailableError{Err: errors.New("down")},
			&index.UnavailableError{Err: errors.New("still down")},
		},
	}

	o := newTestOrchestrator(&stubEmbedder{vector: []float32{0.1}}, idx)

	_, err := o.Retrieve(context.Background(), testAssistant(), "question")
	require.Error(t, err)

	var unavailable *index.UnavailableError
	assert.True(t, errors.As(err, &unavailable))
	assert.Equal(t, 2, idx.calls)
}
