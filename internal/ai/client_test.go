package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/flakerslabs/sentinel/backend/internal/config"
	"github.com/flakerslabs/sentinel/backend/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testClient(baseURL string) *Client {
	cfg := &config.Config{}
	cfg.OpenAI.APIKey = "test-key"
	cfg.OpenAI.BaseURL = baseURL
	cfg.OpenAI.ChatModel = "gpt-4o-mini"
	cfg.OpenAI.EmbeddingModel = "text-embedding-3-small"
	cfg.OpenAI.MaxTokens = 800
	cfg.OpenAI.Temperature = 0.3
	return NewClient(cfg, testLogger())
}

func writeEmbeddings(w http.ResponseWriter, count int) {
	type item struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	}
	data := make([]item, count)
	for i := range data {
		data[i] = item{
			Object:    "embedding",
			Index:     i,
			Embedding: []float32{float32(i), 0.5, 0.25},
		}
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"object": "list",
		"data":   data,
		"model":  "text-embedding-3-small",
		"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
	})
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/embeddings", r.URL.Path)

		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeEmbeddings(w, len(req.Input))
	}))
	defer server.Close()

	client := testClient(server.URL + "/v1")

	vectors, err := client.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, float32(0), vectors[0][0])
	assert.Equal(t, float32(1), vectors[1][0])
	assert.Equal(t, float32(2), vectors[2][0])
}

func TestEmbedWrapsUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"upstream down"}}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := testClient(server.URL + "/v1")

	_, err := client.Embed(context.Background(), "hello")
	require.Error(t, err)

	var embErr *EmbeddingError
	assert.True(t, errors.As(err, &embErr))
	assert.Equal(t, "text-embedding-3-small", embErr.Model)
}

func TestEmbedWithRetryRecoversOnce(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, `{"error":{"message":"flaky"}}`, http.StatusInternalServerError)
			return
		}
		writeEmbeddings(w, 1)
	}))
	defer server.Close()

	client := testClient(server.URL + "/v1")

	vector, err := client.EmbedWithRetry(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vector, 3)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbedWithRetryGivesUpAfterSecondFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"message":"still down"}}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	client := testClient(server.URL + "/v1")

	_, err := client.EmbedWithRetry(context.Background(), "hello")
	require.Error(t, err)

	var embErr *EmbeddingError
	assert.True(t, errors.As(err, &embErr))
	assert.Equal(t, int32(2), calls.Load())
}

func TestSynthesizeGroundedAnswer(t *testing.T) {
	var systemPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		systemPrompt = req.Messages[0].Content

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "Refunds take 5 business days."}},
			},
			"usage": map[string]int{"total_tokens": 42},
		})
	}))
	defer server.Close()

	client := testClient(server.URL + "/v1")

	evidence := models.Evidence{
		{Rank: 1, SourceURL: "https://acme.test/refunds", Intent: models.IntentPolicy, Text: "Refunds are processed within 5 business days."},
	}

	answer, err := client.Synthesize(context.Background(), "how long do refunds take?", evidence, true)
	require.NoError(t, err)
	assert.Equal(t, "Refunds take 5 business days.", answer)
	assert.Contains(t, systemPrompt, "https://acme.test/refunds")
	assert.Contains(t, systemPrompt, "verbatim")
}

func TestSynthesizeWithoutPolicyQuoteOmitsVerbatimRule(t *testing.T) {
	evidence := models.Evidence{
		{Rank: 1, SourceURL: "https://acme.test/docs", Intent: models.IntentDocumentation, Text: "Install with the CLI."},
	}

	prompt := buildSystemPrompt(evidence, false)
	assert.NotContains(t, prompt, "verbatim")
	assert.Contains(t, prompt, "ONLY the context below")
}

func TestSynthesizeRejectsEmptyEvidence(t *testing.T) {
	client := testClient("http://127.0.0.1:0/v1")

	_, err := client.Synthesize(context.Background(), "hello", models.Evidence{}, false)
	require.Error(t, err)

	var synErr *SynthesisError
	assert.True(t, errors.As(err, &synErr))
}

func TestSynthesizeWrapsUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := testClient(server.URL + "/v1")

	evidence := models.Evidence{
		{Rank: 1, SourceURL: "https://acme.test/docs", Intent: models.IntentDocumentation, Text: "Some text."},
	}

	_, err := client.Synthesize(context.Background(), "hello", evidence, false)
	require.Error(t, err)

	var synErr *SynthesisError
	assert.True(t, errors.As(err, &synErr))
	assert.Equal(t, "gpt-4o-mini", synErr.Model)
}
