package governance

import (
	"io"
	"testing"

	"github.com/flakerslabs/sentinel/backend/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline() *Pipeline {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewPipeline(logger)
}

func evidenceWith(score float64, intent string) models.Evidence {
	return models.Evidence{
		{
			ChunkID:   "chunk-1",
			TenantID:  "tenant-1",
			SourceURL: "https://acme.test/page",
			Intent:    intent,
			Score:     score,
			Rank:      1,
		},
	}
}

func baseConfig() Config {
	return Config{
		TenantID:            "tenant-1",
		ConfidenceThreshold: 0.6,
	}
}

func TestAllRulesPassYieldsAnswer(t *testing.T) {
	p := newTestPipeline()

	res := p.Evaluate(baseConfig(), evidenceWith(0.8, models.IntentFAQ))

	assert.Equal(t, models.DecisionAnswer, res.Decision)
	assert.Empty(t, res.Reason)
	assert.Empty(t, res.RulesFailed)
	// An ANSWER means every rule ran.
	assert.Equal(t, models.RuleList(p.RuleNames()), res.RulesApplied)
	assert.Equal(t, p.RuleNames(), res.RulesPassed)
}

func TestEmptyEvidenceRefusesNoContext(t *testing.T) {
	p := newTestPipeline()

	res := p.Evaluate(baseConfig(), models.Evidence{})

	assert.Equal(t, models.DecisionRefuse, res.Decision)
	assert.Equal(t, models.ReasonNoContext, res.Reason)
	// Evaluation stops at the halting failure.
	assert.Equal(t, models.RuleList{RuleTenantIsolation, RuleRequireContext}, res.RulesApplied)
	assert.Equal(t, []string{RuleRequireContext}, res.RulesFailed)
}

func TestCrossTenantEvidenceHaltsImmediately(t *testing.T) {
	p := newTestPipeline()

	evidence := evidenceWith(0.9, models.IntentFAQ)
	evidence[0].TenantID = "tenant-2"

	res := p.Evaluate(baseConfig(), evidence)

	assert.Equal(t, models.DecisionRefuse, res.Decision)
	assert.Equal(t, models.ReasonCrossTenant, res.Reason)
	assert.Equal(t, models.RuleList{RuleTenantIsolation}, res.RulesApplied)
}

func TestConfidenceBelowThresholdRefuses(t *testing.T) {
	p := newTestPipeline()

	res := p.Evaluate(baseConfig(), evidenceWith(0.59, models.IntentFAQ))

	assert.Equal(t, models.DecisionRefuse, res.Decision)
	assert.Equal(t, models.ReasonInsufficientConfidence, res.Reason)
	assert.Equal(t, models.RuleList{
		RuleTenantIsolation, RuleRequireContext, RuleConfidenceThreshold,
	}, res.RulesApplied)
}

func TestConfidenceExactlyAtThresholdPasses(t *testing.T) {
	p := newTestPipeline()

	res := p.Evaluate(baseConfig(), evidenceWith(0.6, models.IntentFAQ))

	assert.Equal(t, models.DecisionAnswer, res.Decision)
}

func TestConfidenceChecksTopItemOnly(t *testing.T) {
	p := newTestPipeline()

	evidence := evidenceWith(0.9, models.IntentFAQ)
	evidence = append(evidence, models.EvidenceItem{
		ChunkID:   "chunk-2",
		TenantID:  "tenant-1",
		SourceURL: "https://acme.test/other",
		Intent:    models.IntentFAQ,
		Score:     0.41,
		Rank:      2,
	})

	res := p.Evaluate(baseConfig(), evidence)
	assert.Equal(t, models.DecisionAnswer, res.Decision)
}

func TestZeroThresholdFallsBackToDefault(t *testing.T) {
	p := newTestPipeline()

	cfg := baseConfig()
	cfg.ConfidenceThreshold = 0

	res := p.Evaluate(cfg, evidenceWith(0.55, models.IntentFAQ))
	assert.Equal(t, models.DecisionRefuse, res.Decision)
	assert.Equal(t, models.ReasonInsufficientConfidence, res.Reason)
}

func TestDisallowedIntentRefusesOutOfScope(t *testing.T) {
	p := newTestPipeline()

	cfg := baseConfig()
	cfg.AllowedIntents = []string{models.IntentSupport, models.IntentFAQ}

	res := p.Evaluate(cfg, evidenceWith(0.8, models.IntentPricing))

	assert.Equal(t, models.DecisionRefuse, res.Decision)
	assert.Equal(t, models.ReasonOutOfScope, res.Reason)
	assert.Equal(t, models.RuleList{
		RuleTenantIsolation, RuleRequireContext, RuleConfidenceThreshold, RuleIntentFiltering,
	}, res.RulesApplied)
}

func TestAnyAllowedIntentInEvidencePasses(t *testing.T) {
	p := newTestPipeline()

	cfg := baseConfig()
	cfg.AllowedIntents = []string{models.IntentSupport}

	evidence := evidenceWith(0.8, models.IntentPricing)
	evidence = append(evidence, models.EvidenceItem{
		ChunkID:   "chunk-2",
		TenantID:  "tenant-1",
		SourceURL: "https://acme.test/help",
		Intent:    models.IntentSupport,
		Score:     0.7,
		Rank:      2,
	})

	res := p.Evaluate(cfg, evidence)
	assert.Equal(t, models.DecisionAnswer, res.Decision)
}

func TestEmptyAllowedIntentsMeansUnrestricted(t *testing.T) {
	p := newTestPipeline()

	cfg := baseConfig()
	cfg.AllowedIntents = nil

	res := p.Evaluate(cfg, evidenceWith(0.8, models.IntentMarketing))
	assert.Equal(t, models.DecisionAnswer, res.Decision)
}

func TestPolicyIntentSetsQuoteFlag(t *testing.T) {
	p := newTestPipeline()

	for _, intent := range []string{models.IntentPolicy, models.IntentLegal} {
		res := p.Evaluate(baseConfig(), evidenceWith(0.8, intent))
		assert.Equal(t, models.DecisionAnswer, res.Decision)
		assert.True(t, res.PolicyQuote, "intent %s should set the quote flag", intent)
	}

	res := p.Evaluate(baseConfig(), evidenceWith(0.8, models.IntentFAQ))
	assert.False(t, res.PolicyQuote)
}

func TestPolicyIntentInSecondaryEvidenceAlsoSetsQuoteFlag(t *testing.T) {
	p := newTestPipeline()

	evidence := evidenceWith(0.8, models.IntentFAQ)
	evidence = append(evidence, models.EvidenceItem{
		ChunkID:   "chunk-2",
		TenantID:  "tenant-1",
		SourceURL: "https://acme.test/terms",
		Intent:    models.IntentLegal,
		Score:     0.65,
		Rank:      2,
	})

	res := p.Evaluate(baseConfig(), evidence)
	assert.Equal(t, models.DecisionAnswer, res.Decision)
	assert.True(t, res.PolicyQuote)
}

func TestEvaluationIsDeterministic(t *testing.T) {
	p := newTestPipeline()

	cfg := baseConfig()
	cfg.AllowedIntents = []string{models.IntentPolicy}
	evidence := evidenceWith(0.72, models.IntentPolicy)

	first := p.Evaluate(cfg, evidence)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, p.Evaluate(cfg, evidence))
	}
}

func TestRuleOrderIsFixed(t *testing.T) {
	p := newTestPipeline()

	require.Equal(t, []string{
		RuleTenantIsolation,
		RuleRequireContext,
		RuleConfidenceThreshold,
		RuleIntentFiltering,
		RulePolicyQuoteOnly,
		RuleAttributionRequired,
	}, p.RuleNames())
}
