package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nealali/agentic-triage-copilot/internal/models"
)

type stubEnhancer struct {
	enhancement Enhancement
	err         error
	calls       int
	sawDeadline bool
}

func (s *stubEnhancer) Enhance(ctx context.Context, _ models.Issue, _ models.Recommendation, _ string) (Enhancement, error) {
	s.calls++
	_, s.sawDeadline = ctx.Deadline()
	return s.enhancement, s.err
}

func baseRecommendation() models.Recommendation {
	return models.Recommendation{
		Severity:     models.SeverityHigh,
		Action:       models.ActionQuerySite,
		Confidence:   0.9,
		Rationale:    "deterministic rationale",
		MissingInfo:  []string{},
		Citations:    []string{},
		ToolResults:  models.ToolResults{RuleFired: RuleDateInconsistency},
		DraftMessage: "deterministic draft",
	}
}

func TestAssembleAttachesCitations(t *testing.T) {
	hits := []models.CitationHit{
		{DocID: "doc-1", Title: "AE Query Guidance", Source: "sop", Score: 0.8},
		{DocID: "doc-2", Title: "Date Handling", Source: "manual", Score: 0.5},
	}

	rec := NewAssembler(nil, nil).Assemble(context.Background(),
		testIssue(models.DomainAE, "dates", nil), baseRecommendation(), hits, "keyword", EnhanceOptions{})

	if len(rec.Citations) != 2 || rec.Citations[0] != "doc-1" {
		t.Fatalf("unexpected citations: %v", rec.Citations)
	}
	if len(rec.ToolResults.CitationHits) != 2 {
		t.Fatalf("citation hits not carried: %+v", rec.ToolResults)
	}
	if rec.ToolResults.RetrievalMethod != "keyword" {
		t.Fatalf("retrieval method lost: %s", rec.ToolResults.RetrievalMethod)
	}
}

func TestAssembleEmptyHitsIsValid(t *testing.T) {
	rec := NewAssembler(nil, nil).Assemble(context.Background(),
		testIssue(models.DomainAE, "dates", nil), baseRecommendation(), nil, "vector", EnhanceOptions{})

	if rec.Citations == nil || len(rec.Citations) != 0 {
		t.Fatalf("expected empty non-nil citations, got %v", rec.Citations)
	}
}

func TestAssembleEnhancementApplied(t *testing.T) {
	conf := 0.95
	enh := &stubEnhancer{enhancement: Enhancement{
		Rationale:    "richer rationale",
		Confidence:   &conf,
		DraftMessage: "polished draft",
	}}

	rec := NewAssembler(enh, nil).Assemble(context.Background(),
		testIssue(models.DomainAE, "dates", nil), baseRecommendation(), nil, "keyword",
		EnhanceOptions{Enabled: true, Model: "gpt-4o-mini", Timeout: time.Second})

	if rec.Rationale != "richer rationale" || rec.DraftMessage != "polished draft" {
		t.Fatalf("enhancement not applied: %+v", rec)
	}
	if rec.Confidence != 0.95 {
		t.Fatalf("confidence not adjusted: %f", rec.Confidence)
	}
	if !rec.ToolResults.LLMEnhanced || rec.ToolResults.LLMModel != "gpt-4o-mini" {
		t.Fatalf("enhancement not annotated: %+v", rec.ToolResults)
	}
	if !enh.sawDeadline {
		t.Fatalf("enhancement call should carry a deadline")
	}
	// Action and severity belong to the deterministic layer.
	if rec.Action != models.ActionQuerySite || rec.Severity != models.SeverityHigh {
		t.Fatalf("enhancement must not change action/severity: %s/%s", rec.Action, rec.Severity)
	}
}

func TestAssembleEnhancementFailureDegrades(t *testing.T) {
	enh := &stubEnhancer{err: errors.New("backend timeout")}

	rec := NewAssembler(enh, nil).Assemble(context.Background(),
		testIssue(models.DomainAE, "dates", nil), baseRecommendation(), nil, "keyword",
		EnhanceOptions{Enabled: true, Model: "gpt-4o-mini"})

	if rec.ToolResults.LLMFailureReason != "backend timeout" {
		t.Fatalf("failure reason not recorded: %+v", rec.ToolResults)
	}
	if rec.ToolResults.LLMEnhanced {
		t.Fatalf("failed enhancement must not be marked applied")
	}
	if rec.Rationale != "deterministic rationale" || rec.Confidence != 0.9 {
		t.Fatalf("deterministic values lost: %+v", rec)
	}
}

func TestAssembleEnhancementWithoutBackend(t *testing.T) {
	rec := NewAssembler(nil, nil).Assemble(context.Background(),
		testIssue(models.DomainAE, "dates", nil), baseRecommendation(), nil, "keyword",
		EnhanceOptions{Enabled: true, Model: "gpt-4o-mini"})

	if rec.ToolResults.LLMFailureReason != "enhancement backend not configured" {
		t.Fatalf("missing backend not recorded: %+v", rec.ToolResults)
	}
	if rec.ToolResults.LLMEnhanced {
		t.Fatalf("nothing can be enhanced without a backend")
	}
	if rec.Rationale != "deterministic rationale" {
		t.Fatalf("deterministic values lost: %+v", rec)
	}
}

func TestAssembleEnhancementDisabled(t *testing.T) {
	enh := &stubEnhancer{}

	NewAssembler(enh, nil).Assemble(context.Background(),
		testIssue(models.DomainAE, "dates", nil), baseRecommendation(), nil, "keyword",
		EnhanceOptions{Enabled: false})

	if enh.calls != 0 {
		t.Fatalf("enhancer must not run when disabled, got %d calls", enh.calls)
	}
}

func TestAssembleEmptyEnhancementIgnored(t *testing.T) {
	enh := &stubEnhancer{}

	rec := NewAssembler(enh, nil).Assemble(context.Background(),
		testIssue(models.DomainAE, "dates", nil), baseRecommendation(), nil, "keyword",
		EnhanceOptions{Enabled: true})

	if rec.ToolResults.LLMEnhanced || rec.ToolResults.LLMFailureReason != "" {
		t.Fatalf("empty enhancement should leave the recommendation untouched: %+v", rec.ToolResults)
	}
}

func TestAssembleConfidenceClamped(t *testing.T) {
	conf := 1.7
	enh := &stubEnhancer{enhancement: Enhancement{Confidence: &conf}}

	rec := NewAssembler(enh, nil).Assemble(context.Background(),
		testIssue(models.DomainAE, "dates", nil), baseRecommendation(), nil, "keyword",
		EnhanceOptions{Enabled: true})

	if rec.Confidence != 1.0 {
		t.Fatalf("confidence not clamped: %f", rec.Confidence)
	}
}
