package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/flakerslabs/sentinel/backend/internal/governance"
	"github.com/flakerslabs/sentinel/backend/internal/models"
	"github.com/google/uuid"
)

// maxAnswerRunes caps synthesized answers; overruns are clamped at a sentence
// boundary rather than mid-word.
const maxAnswerRunes = 1000

// InvariantError marks a decision that violates the composition contract,
// e.g. an ANSWER without sources. It indicates a bug, never a user error.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("decision invariant violated: %s", e.Msg)
}

// Composer assembles the final audit record from the pipeline result, the
// evidence, and the synthesized answer. Composition is pure apart from the
// fresh record ID and timing.
type Composer struct{}

func NewComposer() *Composer {
	return &Composer{}
}

// Compose builds the decision record. For ANSWER it requires a non-empty
// answer and at least one source; for REFUSE it requires a reason and strips
// any answer text.
func (c *Composer) Compose(query models.Query, result governance.Result, evidence models.Evidence, answer string, startedAt time.Time) (*models.GovernanceDecision, error) {
	decision := &models.GovernanceDecision{
		ID:               uuid.NewString(),
		AssistantID:      query.AssistantID,
		SessionID:        query.SessionID,
		QueryText:        query.Text,
		Decision:         result.Decision,
		RulesApplied:     result.RulesApplied,
		PolicyQuote:      result.PolicyQuote,
		Sources:          models.SourceList{},
		ProcessingTimeMs: int(time.Since(startedAt).Milliseconds()),
	}

	switch result.Decision {
	case models.DecisionAnswer:
		cleaned := CleanAnswer(answer)
		if cleaned == "" {
			return nil, &InvariantError{Msg: "ANSWER with empty synthesis output"}
		}
		sources := evidence.Sources()
		if len(sources) == 0 {
			return nil, &InvariantError{Msg: "ANSWER with no evidence sources"}
		}
		decision.Answer = cleaned
		decision.Sources = sources

	case models.DecisionRefuse:
		if result.Reason == "" {
			return nil, &InvariantError{Msg: "REFUSE without a reason"}
		}
		decision.Reason = result.Reason

	default:
		return nil, &InvariantError{Msg: fmt.Sprintf("unknown decision type %q", result.Decision)}
	}

	return decision, nil
}

// greetingPrefixes are boilerplate openers models tend to emit despite the
// prompt; they add nothing to a grounded answer.
var greetingPrefixes = []string{
	"sure!", "sure,", "sure.",
	"certainly!", "certainly,",
	"of course!", "of course,",
	"great question!", "great question,",
	"hello!", "hi there!",
}

// CleanAnswer normalizes synthesized text: collapses whitespace, strips
// greeting boilerplate, and clamps overlong answers at a sentence boundary.
func CleanAnswer(answer string) string {
	cleaned := strings.Join(strings.Fields(answer), " ")

	for _, prefix := range greetingPrefixes {
		if len(cleaned) > len(prefix) && strings.HasPrefix(strings.ToLower(cleaned), prefix) {
			cleaned = strings.TrimSpace(cleaned[len(prefix):])
			break
		}
	}

	runes := []rune(cleaned)
	if len(runes) <= maxAnswerRunes {
		return cleaned
	}

	clamped := string(runes[:maxAnswerRunes])
	if i := strings.LastIndexAny(clamped, ".!?"); i > 0 {
		return strings.TrimSpace(clamped[:i+1])
	}
	return strings.TrimSpace(clamped)
}
