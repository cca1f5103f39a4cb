package repo

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nealali/agentic-triage-copilot/internal/engine"
	"github.com/nealali/agentic-triage-copilot/internal/models"
)

// EnhancementClient talks to the LLM backend. It serves two roles: enhancing
// deterministic recommendations and breaking low-confidence classification
// ties.
type EnhancementClient struct {
	baseURL      string
	enhancePath  string
	classifyPath string
	apiKey       string
	httpClient   *http.Client
}

// NewEnhancementClient constructs a client for the LLM backend.
func NewEnhancementClient(baseURL, enhancePath, apiKey string, timeout time.Duration) *EnhancementClient {
	return &EnhancementClient{
		baseURL:      baseURL,
		enhancePath:  enhancePath,
		classifyPath: "/v1/classify",
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// Enhance asks the backend to refine a deterministic recommendation. The
// backend sees the issue, the deterministic verdict and the retrieved
// citations, and may return enhanced rationale, confidence, draft message
// and missing-info prompts.
func (c *EnhancementClient) Enhance(ctx context.Context, issue models.Issue, rec models.Recommendation, model string) (engine.Enhancement, error) {
	if c == nil || c.baseURL == "" {
		return engine.Enhancement{}, fmt.Errorf("enhancement backend not configured")
	}

	payload := struct {
		Model        string               `json:"model"`
		Domain       models.IssueDomain   `json:"domain"`
		SubjectID    string               `json:"subject_id"`
		Fields       []string             `json:"fields"`
		Description  string               `json:"description"`
		Evidence     map[string]any       `json:"evidence_payload,omitempty"`
		RuleFired    string               `json:"rule_fired"`
		Action       models.Action        `json:"action"`
		Severity     models.Severity      `json:"severity"`
		Confidence   float64              `json:"confidence"`
		Rationale    string               `json:"rationale"`
		DraftMessage string               `json:"draft_message,omitempty"`
		CitationHits []models.CitationHit `json:"citation_hits,omitempty"`
	}{
		Model:        model,
		Domain:       issue.Domain,
		SubjectID:    issue.SubjectID,
		Fields:       issue.Fields,
		Description:  issue.Description,
		Evidence:     issue.EvidencePayload,
		RuleFired:    rec.ToolResults.RuleFired,
		Action:       rec.Action,
		Severity:     rec.Severity,
		Confidence:   rec.Confidence,
		Rationale:    rec.Rationale,
		DraftMessage: rec.DraftMessage,
		CitationHits: rec.ToolResults.CitationHits,
	}

	var enhancement engine.Enhancement
	if err := postJSON(ctx, c.httpClient, joinURL(c.baseURL, c.enhancePath), c.apiKey, payload, &enhancement); err != nil {
		return engine.Enhancement{}, fmt.Errorf("enhancement request failed: %w", err)
	}
	return enhancement, nil
}

// ClassifyIssue asks the backend whether an issue is deterministic or needs
// LLM analysis. Implements the classifier fallback contract.
func (c *EnhancementClient) ClassifyIssue(ctx context.Context, issue models.IssueCreate) (models.IssueType, error) {
	if c == nil || c.baseURL == "" {
		return "", fmt.Errorf("enhancement backend not configured")
	}

	payload := struct {
		Domain      models.IssueDomain `json:"domain"`
		Fields      []string           `json:"fields"`
		Description string             `json:"description"`
	}{
		Domain:      issue.Domain,
		Fields:      issue.Fields,
		Description: issue.Description,
	}

	var response struct {
		IssueType models.IssueType `json:"issue_type"`
	}
	if err := postJSON(ctx, c.httpClient, joinURL(c.baseURL, c.classifyPath), c.apiKey, payload, &response); err != nil {
		return "", fmt.Errorf("classification request failed: %w", err)
	}

	switch response.IssueType {
	case models.TypeDeterministic, models.TypeLLMRequired:
		return response.IssueType, nil
	}
	return "", fmt.Errorf("classification backend returned unknown issue type %q", response.IssueType)
}
