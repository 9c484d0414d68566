package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/flakerslabs/sentinel/backend/internal/config"
	"github.com/flakerslabs/sentinel/backend/internal/models"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

const embeddingBatchSize = 100

// Client wraps the OpenAI API for embeddings and grounded answer synthesis.
type Client struct {
	api            *openai.Client
	chatModel      string
	embeddingModel openai.EmbeddingModel
	maxTokens      int
	temperature    float32
	logger         *logrus.Logger
}

func NewClient(cfg *config.Config, logger *logrus.Logger) *Client {
	clientConfig := openai.DefaultConfig(cfg.OpenAI.APIKey)
	if cfg.OpenAI.BaseURL != "" {
		clientConfig.BaseURL = cfg.OpenAI.BaseURL
	}

	return &Client{
		api:            openai.NewClientWithConfig(clientConfig),
		chatModel:      cfg.OpenAI.ChatModel,
		embeddingModel: openai.EmbeddingModel(cfg.OpenAI.EmbeddingModel),
		maxTokens:      cfg.OpenAI.MaxTokens,
		temperature:    float32(cfg.OpenAI.Temperature),
		logger:         logger,
	}
}

// Ping verifies the API is reachable with the configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.ListModels(ctx)
	return err
}

// Embed returns the embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in batches, preserving input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embeddingBatchSize {
		end := start + embeddingBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: c.embeddingModel,
			Input: texts[start:end],
		})
		if err != nil {
			return nil, &EmbeddingError{Model: string(c.embeddingModel), Err: err}
		}
		if len(resp.Data) != end-start {
			return nil, &EmbeddingError{
				Model: string(c.embeddingModel),
				Err:   fmt.Errorf("expected %d embeddings, got %d", end-start, len(resp.Data)),
			}
		}

		for _, item := range resp.Data {
			vectors = append(vectors, item.Embedding)
		}
	}

	return vectors, nil
}

// Synthesize generates an answer grounded exclusively in the given evidence.
// The caller has already decided ANSWER; this step only phrases it.
func (c *Client) Synthesize(ctx context.Context, query string, evidence models.Evidence, policyQuote bool) (string, error) {
	if evidence.Empty() {
		return "", &SynthesisError{
			Model: c.chatModel,
			Err:   fmt.Errorf("synthesis requires evidence"),
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.chatModel,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: buildSystemPrompt(evidence, policyQuote),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: query,
			},
		},
	})
	if err != nil {
		return "", &SynthesisError{Model: c.chatModel, Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &SynthesisError{Model: c.chatModel, Err: fmt.Errorf("no completion choices returned")}
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", &SynthesisError{Model: c.chatModel, Err: fmt.Errorf("empty completion")}
	}

	c.logger.WithFields(logrus.Fields{
		"model":        c.chatModel,
		"evidence":     len(evidence),
		"policy_quote": policyQuote,
		"tokens":       resp.Usage.TotalTokens,
	}).Debug("Answer synthesized")

	return answer, nil
}

// buildSystemPrompt constrains the model to the retrieved context. Context
// blocks are numbered in rank order so citations stay traceable.
func buildSystemPrompt(evidence models.Evidence, policyQuote bool) string {
	var b strings.Builder

	b.WriteString("You are a customer assistant. Answer the user's question using ONLY the context below.\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Never use knowledge outside the provided context.\n")
	b.WriteString("- If the context does not contain the answer, say you don't have that information.\n")
	b.WriteString("- Do not speculate, do not invent URLs, prices, or dates.\n")
	b.WriteString("- Keep the answer concise and directly useful.\n")
	if policyQuote {
		b.WriteString("- The question touches policy or legal content: quote the relevant passage verbatim instead of paraphrasing it.\n")
	}

	b.WriteString("\nContext:\n")
	for _, item := range evidence {
		fmt.Fprintf(&b, "[%d] (%s) %s\n%s\n\n", item.Rank, item.Intent, item.SourceURL, item.Text)
	}

	return b.String()
}
