package models

import (
	"time"

	"github.com/google/uuid"
)

// Run records one execution of the analyzer against an issue. Runs are
// append-only and never mutated after creation.
type Run struct {
	RunID          uuid.UUID      `json:"run_id"`
	IssueID        uuid.UUID      `json:"issue_id"`
	RulesVersion   string         `json:"rules_version"`
	Recommendation Recommendation `json:"recommendation"`
	ReplayOfRunID  *uuid.UUID     `json:"replay_of_run_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// RunSummary is the compact shape used by list views.
type RunSummary struct {
	RunID        uuid.UUID `json:"run_id"`
	IssueID      uuid.UUID `json:"issue_id"`
	RulesVersion string    `json:"rules_version"`
	Severity     Severity  `json:"severity"`
	Action       Action    `json:"action"`
	Confidence   float64   `json:"confidence"`
	RuleFired    string    `json:"rule_fired"`
	CreatedAt    time.Time `json:"created_at"`
}

// Summary projects a run into its list-view shape.
func (r Run) Summary() RunSummary {
	return RunSummary{
		RunID:        r.RunID,
		IssueID:      r.IssueID,
		RulesVersion: r.RulesVersion,
		Severity:     r.Recommendation.Severity,
		Action:       r.Recommendation.Action,
		Confidence:   r.Recommendation.Confidence,
		RuleFired:    r.Recommendation.ToolResults.RuleFired,
		CreatedAt:    r.CreatedAt,
	}
}

// AnalyzeRequest is the optional payload for an analysis call.
type AnalyzeRequest struct {
	RulesVersion  string     `json:"rules_version,omitempty"`
	ReplayOfRunID *uuid.UUID `json:"replay_of_run_id,omitempty"`
	UseLLM        *bool      `json:"use_llm,omitempty"`
	UseSemantic   *bool      `json:"use_semantic,omitempty"`
	LLMModel      string     `json:"llm_model,omitempty"`
}
