package governance

import (
	"github.com/flakerslabs/sentinel/backend/internal/models"
)

// DefaultConfidenceThreshold applies when an assistant has no explicit
// threshold configured.
const DefaultConfidenceThreshold = 0.6

// Config is the per-assistant governance configuration, fixed for the
// lifetime of one evaluation.
type Config struct {
	TenantID            string
	AllowedIntents      []string
	ConfidenceThreshold float64
}

func (c Config) threshold() float64 {
	if c.ConfidenceThreshold <= 0 {
		return DefaultConfidenceThreshold
	}
	return c.ConfidenceThreshold
}

// Rule is one governance check. Halting rules refuse the query on failure and
// stop the pipeline; non-halting rules only annotate the result.
type Rule struct {
	Name        string
	Description string
	HaltsOnFail bool
	FailReason  models.RefusalReason
	Evaluate    func(cfg Config, evidence models.Evidence, res *Result) bool
}

// Rule names, in pipeline order.
const (
	RuleTenantIsolation     = "tenant_isolation"
	RuleRequireContext      = "require_context"
	RuleConfidenceThreshold = "confidence_threshold"
	RuleIntentFiltering     = "intent_filtering"
	RulePolicyQuoteOnly     = "policy_quote_only"
	RuleAttributionRequired = "attribution_required"
)

// defaultRules is the fixed ordered rule set. Order is part of the contract:
// audit trails from different deployments must be comparable.
func defaultRules() []Rule {
	return []Rule{
		{
			Name:        RuleTenantIsolation,
			Description: "every evidence item must belong to the assistant's tenant",
			HaltsOnFail: true,
			FailReason:  models.ReasonCrossTenant,
			Evaluate: func(cfg Config, evidence models.Evidence, res *Result) bool {
				for _, item := range evidence {
					if item.TenantID != cfg.TenantID {
						return false
					}
				}
				return true
			},
		},
		{
			Name:        RuleRequireContext,
			Description: "answers require at least one evidence item",
			HaltsOnFail: true,
			FailReason:  models.ReasonNoContext,
			Evaluate: func(cfg Config, evidence models.Evidence, res *Result) bool {
				return !evidence.Empty()
			},
		},
		{
			Name:        RuleConfidenceThreshold,
			Description: "top evidence relevance must meet the assistant's threshold",
			HaltsOnFail: true,
			FailReason:  models.ReasonInsufficientConfidence,
			Evaluate: func(cfg Config, evidence models.Evidence, res *Result) bool {
				// Inclusive boundary: a score exactly at the threshold passes.
				return evidence.Top().Score >= cfg.threshold()
			},
		},
		{
			Name:        RuleIntentFiltering,
			Description: "evidence intents must intersect the assistant's allowed set",
			HaltsOnFail: true,
			FailReason:  models.ReasonOutOfScope,
			Evaluate: func(cfg Config, evidence models.Evidence, res *Result) bool {
				// An empty allowed set means unrestricted.
				if len(cfg.AllowedIntents) == 0 {
					return true
				}
				allowed := make(map[string]bool, len(cfg.AllowedIntents))
				for _, intent := range cfg.AllowedIntents {
					allowed[intent] = true
				}
				for _, item := range evidence {
					if allowed[item.Intent] {
						return true
					}
				}
				return false
			},
		},
		{
			Name:        RulePolicyQuoteOnly,
			Description: "policy and legal content must be quoted verbatim, not paraphrased",
			HaltsOnFail: false,
			Evaluate: func(cfg Config, evidence models.Evidence, res *Result) bool {
				for _, item := range evidence {
					if item.Intent == models.IntentPolicy || item.Intent == models.IntentLegal {
						res.PolicyQuote = true
						break
					}
				}
				return true
			},
		},
		{
			Name:        RuleAttributionRequired,
			Description: "every answer must carry its source citations",
			HaltsOnFail: false,
			Evaluate: func(cfg Config, evidence models.Evidence, res *Result) bool {
				// Evidence is non-empty by the time this runs, so sources
				// always exist; the composer enforces the invariant again.
				return true
			},
		},
	}
}
