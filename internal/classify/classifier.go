// Package classify decides whether an issue can be analyzed purely by
// deterministic rules or needs LLM-assisted reasoning.
package classify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nealali/agentic-triage-copilot/internal/models"
)

// Confidence expresses how sure the classifier is about its verdict.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Result is the classification verdict.
type Result struct {
	IssueType    models.IssueType
	Confidence   Confidence
	Method       string // "rule_based" or "llm_fallback"
	MatchedRules []string
	// Score is negative for deterministic leanings, positive for LLM.
	Score float64
}

// Fallback breaks low-confidence ties using an external collaborator.
// Errors degrade to the rule-based result, never fail classification.
type Fallback interface {
	ClassifyIssue(ctx context.Context, issue models.IssueCreate) (models.IssueType, error)
}

// Ordered keyword tables. Declaration order is the tie-break: the first
// matching entry of the highest-priority table wins.
var llmRequiredKeywords = []string{
	"requires review",
	"requires manual",
	"requires medical",
	"manual review",
	"medical review",
	"clinical review",
	"complex",
	"ambiguous",
	"unclear",
	"may be",
	"suspected",
	"clinical significance",
	"significance unclear",
	"context needed",
	"clinical context",
	"medical judgment",
	"discrepancy",
	"differs from",
	"conflicts",
	"reconciliation",
	"assess if",
	"determine if",
	"need to assess",
	"need to determine",
	"uncommon",
	"not in standard",
	"not standard",
	"not in dictionary",
	"not found in",
	"multiple related",
	"related conditions",
}

var deterministicPatterns = []string{
	"missing",
	"out of range",
	"outside range",
	"outside limits",
	"invalid",
	"before start",
	"after end",
	"end before start",
	"duplicate",
	"inconsistent units",
	"partial date",
	"incomplete",
}

var complexityIndicators = []string{
	"timeline conflicts",
	"date reconciliation",
	"impact on",
	"affects",
	"calculations",
	"bmi",
	"combination product",
	"coding issue",
}

var simplePatterns = []string{
	"required field",
	"field required",
	"value required",
}

// Classifier scores issues against ordered keyword/pattern tables.
type Classifier struct {
	domainRules []DomainRule
	fallback    Fallback
	logger      *slog.Logger
}

// New constructs a Classifier. domainRules may come from LoadDomainRules;
// fallback may be nil to disable the external tie-break.
func New(domainRules []DomainRule, fallback Fallback, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	if domainRules == nil {
		domainRules = defaultDomainRules()
	}
	return &Classifier{domainRules: domainRules, fallback: fallback, logger: logger}
}

// Classify determines the issue type. Pure except for the optional fallback
// call, whose failure degrades to the rule-based result.
func (c *Classifier) Classify(ctx context.Context, issue models.IssueCreate) Result {
	result := c.classifyRuleBased(issue)

	if result.Confidence == ConfidenceLow && c.fallback != nil {
		issueType, err := c.fallback.ClassifyIssue(ctx, issue)
		if err != nil {
			c.logger.Warn("classifier fallback failed, keeping rule-based result", slog.Any("error", err))
			return result
		}
		result.IssueType = issueType
		result.Confidence = ConfidenceHigh
		result.Method = "llm_fallback"
	}

	return result
}

func (c *Classifier) classifyRuleBased(issue models.IssueCreate) Result {
	desc := strings.ToLower(issue.Description)

	// High-priority general rules first: explicit complexity keywords, then
	// explicit deterministic patterns.
	for _, keyword := range llmRequiredKeywords {
		if strings.Contains(desc, keyword) {
			return Result{
				IssueType:    models.TypeLLMRequired,
				Confidence:   ConfidenceHigh,
				Method:       "rule_based",
				MatchedRules: []string{"complexity keyword: " + keyword},
				Score:        1.0,
			}
		}
	}
	for _, pattern := range deterministicPatterns {
		if strings.Contains(desc, pattern) && isSimpleDeterministic(pattern, desc) {
			return Result{
				IssueType:    models.TypeDeterministic,
				Confidence:   ConfidenceHigh,
				Method:       "rule_based",
				MatchedRules: []string{"deterministic pattern: " + pattern},
				Score:        -1.0,
			}
		}
	}

	// Weighted scoring for everything below the explicit tables.
	var llmScore, detScore float64
	var matched []string

	if reason := assessEvidenceAmbiguity(issue.EvidencePayload, desc); reason != "" {
		llmScore += 0.5
		matched = append(matched, "evidence ambiguity: "+reason)
	}
	if reason := assessStructuralComplexity(issue.Description, desc); reason != "" {
		llmScore += 0.3
		matched = append(matched, reason)
	}
	for _, indicator := range complexityIndicators {
		if strings.Contains(desc, indicator) {
			llmScore += 0.4
			matched = append(matched, "complexity indicator: "+indicator)
		}
	}
	for _, pattern := range simplePatterns {
		if strings.Contains(desc, pattern) {
			detScore += 0.3
			matched = append(matched, "simple pattern: "+pattern)
		}
	}

	if refinement, kind := c.applyDomainRules(issue.Domain, desc); refinement != "" {
		if kind == models.TypeLLMRequired {
			llmScore += 0.6
		} else {
			detScore += 0.6
		}
		matched = append(matched, "domain rule ("+string(issue.Domain)+"): "+refinement)
	}

	net := llmScore - detScore
	switch {
	case llmScore >= 0.8:
		return Result{IssueType: models.TypeLLMRequired, Confidence: ConfidenceHigh, Method: "rule_based", MatchedRules: matched, Score: net}
	case detScore >= 0.8:
		return Result{IssueType: models.TypeDeterministic, Confidence: ConfidenceHigh, Method: "rule_based", MatchedRules: matched, Score: net}
	case net > 0.3:
		return Result{IssueType: models.TypeLLMRequired, Confidence: ConfidenceMedium, Method: "rule_based", MatchedRules: matched, Score: net}
	case net < -0.3:
		return Result{IssueType: models.TypeDeterministic, Confidence: ConfidenceMedium, Method: "rule_based", MatchedRules: matched, Score: net}
	}

	return Result{IssueType: models.TypeDeterministic, Confidence: ConfidenceLow, Method: "rule_based", MatchedRules: matched, Score: net}
}

func (c *Classifier) applyDomainRules(domain models.IssueDomain, desc string) (string, models.IssueType) {
	for _, rule := range c.domainRules {
		if rule.Domain != domain {
			continue
		}
		for _, pattern := range rule.LLMRequired {
			if strings.Contains(desc, pattern) {
				return pattern, models.TypeLLMRequired
			}
		}
		for _, pattern := range rule.Deterministic {
			if strings.Contains(desc, pattern) {
				return pattern, models.TypeDeterministic
			}
		}
	}
	return "", models.TypeDeterministic
}

// isSimpleDeterministic applies exclusion checks for patterns that can be
// simple or complex depending on context.
func isSimpleDeterministic(pattern, desc string) bool {
	switch pattern {
	case "out of range":
		return !strings.Contains(desc, "significance")
	case "inconsistent units":
		return !strings.Contains(desc, "impact") &&
			!strings.Contains(desc, "affects") &&
			!strings.Contains(desc, "calculations")
	}
	return true
}

func assessEvidenceAmbiguity(evidence map[string]any, desc string) string {
	if strings.Contains(desc, "conflicts") || strings.Contains(desc, "differs") {
		return "conflicting values in evidence"
	}
	if rows, ok := evidence["rows"].([]any); ok && len(rows) > 1 {
		if strings.Contains(desc, "assess") || strings.Contains(desc, "determine") {
			return "multiple rows requiring assessment"
		}
	}
	if _, hasStart := evidence["start_date"]; hasStart {
		if _, hasEnd := evidence["end_date"]; hasEnd {
			for _, word := range []string{"conflict", "reconciliation", "timeline"} {
				if strings.Contains(desc, word) {
					return "date conflicts in evidence"
				}
			}
		}
	}
	if _, hasRef := evidence["reference"]; hasRef {
		if _, hasVal := evidence["value"]; hasVal {
			if strings.Contains(desc, "differs") || strings.Contains(desc, "discrepancy") {
				return "value-reference discrepancy"
			}
		}
	}
	return ""
}

func assessStructuralComplexity(description, desc string) string {
	if len(description) < 20 {
		return ""
	}
	if len(description) > 100 {
		clauses := strings.Count(desc, ".") + strings.Count(desc, ";") +
			strings.Count(desc, " and ") + strings.Count(desc, " or ")
		if clauses >= 3 && !containsAny(desc, deterministicPatterns) {
			return "long multi-clause description"
		}
	}
	if strings.Contains(description, "?") {
		return "description contains questions"
	}
	conditionals := 0
	for _, word := range []string{" if ", "whether", " may ", " might ", " could ", "possibly"} {
		if strings.Contains(desc, word) {
			conditionals++
		}
	}
	if conditionals >= 2 {
		return "multiple conditional phrases"
	}
	return ""
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
