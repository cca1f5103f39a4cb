package models

import (
	"time"

	"github.com/google/uuid"
)

// DecisionType describes how the reviewer disposed of a run.
type DecisionType string

const (
	DecisionApprove  DecisionType = "APPROVE"
	DecisionOverride DecisionType = "OVERRIDE"
	DecisionEdit     DecisionType = "EDIT"
)

// Valid reports whether d is a known decision type.
func (d DecisionType) Valid() bool {
	switch d {
	case DecisionApprove, DecisionOverride, DecisionEdit:
		return true
	}
	return false
}

// DecisionCreate is the reviewer payload for recording a decision.
// Reason is required for OVERRIDE; Specify is required when FinalAction is
// OTHER. Both rules are enforced before any mutation.
type DecisionCreate struct {
	RunID        uuid.UUID    `json:"run_id"`
	DecisionType DecisionType `json:"decision_type"`
	FinalAction  Action       `json:"final_action"`
	FinalText    string       `json:"final_text,omitempty"`
	Reviewer     string       `json:"reviewer"`
	Reason       string       `json:"reason,omitempty"`
	Specify      string       `json:"specify,omitempty"`
}

// Decision is a stored, append-only human disposition of a run.
type Decision struct {
	DecisionID   uuid.UUID    `json:"decision_id"`
	IssueID      uuid.UUID    `json:"issue_id"`
	RunID        uuid.UUID    `json:"run_id"`
	DecisionType DecisionType `json:"decision_type"`
	FinalAction  Action       `json:"final_action"`
	FinalText    string       `json:"final_text,omitempty"`
	Reviewer     string       `json:"reviewer"`
	Reason       string       `json:"reason,omitempty"`
	Specify      string       `json:"specify,omitempty"`
	CreatedAt    time.Time    `json:"timestamp"`
}
