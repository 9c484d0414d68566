package governance

import (
	"github.com/flakerslabs/sentinel/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// Result is the outcome of one pipeline run. RulesApplied records, in order,
// every rule that executed; a halting failure cuts the list short.
type Result struct {
	Decision     models.DecisionType
	Reason       models.RefusalReason
	RulesApplied models.RuleList
	RulesPassed  []string
	RulesFailed  []string
	PolicyQuote  bool
}

// Answered reports whether the pipeline allowed an answer.
func (r Result) Answered() bool { return r.Decision == models.DecisionAnswer }

// Pipeline evaluates the fixed ordered rule set against one query's evidence.
// Evaluation is pure: same config and evidence always produce the same result.
type Pipeline struct {
	rules  []Rule
	logger *logrus.Logger
}

func NewPipeline(logger *logrus.Logger) *Pipeline {
	return &Pipeline{
		rules:  defaultRules(),
		logger: logger,
	}
}

// RuleNames returns the rule names in evaluation order.
func (p *Pipeline) RuleNames() []string {
	names := make([]string, len(p.rules))
	for i, rule := range p.rules {
		names[i] = rule.Name
	}
	return names
}

// Evaluate runs the rules in order. The first halting failure refuses the
// query and stops evaluation; if every rule passes, the decision is ANSWER.
func (p *Pipeline) Evaluate(cfg Config, evidence models.Evidence) Result {
	res := Result{
		RulesApplied: make(models.RuleList, 0, len(p.rules)),
	}

	for _, rule := range p.rules {
		res.RulesApplied = append(res.RulesApplied, rule.Name)

		if rule.Evaluate(cfg, evidence, &res) {
			res.RulesPassed = append(res.RulesPassed, rule.Name)
			continue
		}

		res.RulesFailed = append(res.RulesFailed, rule.Name)
		if rule.HaltsOnFail {
			res.Decision = models.DecisionRefuse
			res.Reason = rule.FailReason

			p.logger.WithFields(logrus.Fields{
				"rule":   rule.Name,
				"reason": res.Reason,
			}).Info("Governance rule refused query")

			return res
		}
	}

	res.Decision = models.DecisionAnswer
	return res
}
