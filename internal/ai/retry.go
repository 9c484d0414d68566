package ai

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Retry configuration for embedding calls. Embeddings are idempotent, so one
// transparent retry is safe; synthesis never goes through this path.
type RetryConfig struct {
	MaxRetries        int
	InitialDelay      time.Duration
	BackoffMultiplier float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        1,
		InitialDelay:      200 * time.Millisecond,
		BackoffMultiplier: 1.5,
	}
}

// EmbedWithRetry embeds a single text, retrying transient failures per the
// retry config.
func (c *Client) EmbedWithRetry(ctx context.Context, text string) ([]float32, error) {
	return c.embedRetry(ctx, text, DefaultRetryConfig())
}

func (c *Client) embedRetry(ctx context.Context, text string, cfg RetryConfig) ([]float32, error) {
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"delay":   delay.String(),
			}).Warn("Retrying embedding request")

			select {
			case <-ctx.Done():
				return nil, &EmbeddingError{Model: string(c.embeddingModel), Err: ctx.Err()}
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * cfg.BackoffMultiplier)
		}

		vector, err := c.Embed(ctx, text)
		if err == nil {
			return vector, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}
