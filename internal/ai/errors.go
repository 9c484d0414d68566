package ai

import "fmt"

// EmbeddingError marks an upstream embedding failure. Handlers map it to 503;
// it is never converted into a governance refusal.
type EmbeddingError struct {
	Model string
	Err   error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding request failed (model=%s): %v", e.Model, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// SynthesisError marks an upstream chat-completion failure. Synthesis is never
// retried automatically: a duplicate completion costs real money.
type SynthesisError struct {
	Model string
	Err   error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis request failed (model=%s): %v", e.Model, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }
