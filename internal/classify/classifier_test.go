package classify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nealali/agentic-triage-copilot/internal/models"
)

type stubFallback struct {
	result models.IssueType
	err    error
	calls  int
}

func (s *stubFallback) ClassifyIssue(context.Context, models.IssueCreate) (models.IssueType, error) {
	s.calls++
	return s.result, s.err
}

func TestClassifyExplicitComplexityKeyword(t *testing.T) {
	c := New(nil, nil, nil)
	res := c.Classify(context.Background(), models.IssueCreate{
		Domain:      models.DomainAE,
		Description: "Event requires medical review before coding",
	})
	if res.IssueType != models.TypeLLMRequired {
		t.Fatalf("expected llm_required, got %s", res.IssueType)
	}
	if res.Confidence != ConfidenceHigh {
		t.Fatalf("expected high confidence, got %s", res.Confidence)
	}
	if len(res.MatchedRules) == 0 {
		t.Fatalf("expected matched rules")
	}
}

func TestClassifyDeterministicPattern(t *testing.T) {
	c := New(nil, nil, nil)
	res := c.Classify(context.Background(), models.IssueCreate{
		Domain:      models.DomainVS,
		Description: "Missing required diastolic value",
	})
	if res.IssueType != models.TypeDeterministic {
		t.Fatalf("expected deterministic, got %s", res.IssueType)
	}
	if res.Confidence != ConfidenceHigh {
		t.Fatalf("expected high confidence, got %s", res.Confidence)
	}
}

func TestClassifyOutOfRangeExclusion(t *testing.T) {
	c := New(nil, nil, nil)

	simple := c.Classify(context.Background(), models.IssueCreate{
		Domain:      models.DomainLB,
		Description: "Hemoglobin out of range",
	})
	if simple.IssueType != models.TypeDeterministic {
		t.Fatalf("plain out-of-range should be deterministic, got %s", simple.IssueType)
	}

	// "clinical significance" is an explicit complexity keyword and also
	// suppresses the deterministic out-of-range shortcut.
	complexCase := c.Classify(context.Background(), models.IssueCreate{
		Domain:      models.DomainLB,
		Description: "Value out of range, clinical significance unclear",
	})
	if complexCase.IssueType != models.TypeLLMRequired {
		t.Fatalf("significance-qualified out-of-range should be llm_required, got %s", complexCase.IssueType)
	}
}

func TestClassifyDefaultLowConfidence(t *testing.T) {
	c := New(nil, nil, nil)
	res := c.Classify(context.Background(), models.IssueCreate{
		Domain:      models.DomainVS,
		Description: "check this",
	})
	if res.IssueType != models.TypeDeterministic {
		t.Fatalf("expected deterministic default, got %s", res.IssueType)
	}
	if res.Confidence != ConfidenceLow {
		t.Fatalf("expected low confidence, got %s", res.Confidence)
	}
}

func TestClassifyFallbackUsedOnLowConfidence(t *testing.T) {
	fb := &stubFallback{result: models.TypeLLMRequired}
	c := New(nil, fb, nil)
	res := c.Classify(context.Background(), models.IssueCreate{
		Domain:      models.DomainVS,
		Description: "check this",
	})
	if fb.calls != 1 {
		t.Fatalf("expected fallback call, got %d", fb.calls)
	}
	if res.IssueType != models.TypeLLMRequired || res.Method != "llm_fallback" {
		t.Fatalf("expected fallback verdict, got %+v", res)
	}
}

func TestClassifyFallbackErrorDegrades(t *testing.T) {
	fb := &stubFallback{err: errors.New("backend down")}
	c := New(nil, fb, nil)
	res := c.Classify(context.Background(), models.IssueCreate{
		Domain:      models.DomainVS,
		Description: "check this",
	})
	if res.IssueType != models.TypeDeterministic || res.Method != "rule_based" {
		t.Fatalf("expected degraded rule-based verdict, got %+v", res)
	}
}

func TestClassifyFallbackNotCalledOnHighConfidence(t *testing.T) {
	fb := &stubFallback{result: models.TypeLLMRequired}
	c := New(nil, fb, nil)
	c.Classify(context.Background(), models.IssueCreate{
		Domain:      models.DomainAE,
		Description: "duplicate record found",
	})
	if fb.calls != 0 {
		t.Fatalf("fallback should not run on confident results, got %d calls", fb.calls)
	}
}

func TestLoadDomainRulesFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "classifier.yaml")
	data := []byte(`domains:
  - domain: AE
    llm_required: ["custom pattern"]
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	rules, err := LoadDomainRules(path)
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	if len(rules) != 1 || rules[0].Domain != models.DomainAE {
		t.Fatalf("unexpected rules: %+v", rules)
	}

	c := New(rules, nil, nil)
	res := c.Classify(context.Background(), models.IssueCreate{
		Domain:      models.DomainAE,
		Description: "observed a custom pattern in the listing",
	})
	if res.IssueType != models.TypeLLMRequired {
		t.Fatalf("expected custom domain rule to fire, got %s", res.IssueType)
	}
}

func TestLoadDomainRulesMissingFile(t *testing.T) {
	rules, err := LoadDomainRules("does-not-exist.yaml")
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if len(rules) == 0 {
		t.Fatalf("expected default rules")
	}
}
