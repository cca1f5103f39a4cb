package models

import (
	"time"

	"github.com/google/uuid"
)

// IssueSource enumerates where an issue came from.
type IssueSource string

const (
	SourceManual    IssueSource = "manual"
	SourceEditCheck IssueSource = "edit_check"
	SourceListing   IssueSource = "listing"
)

// Valid reports whether s is a known issue source.
func (s IssueSource) Valid() bool {
	switch s {
	case SourceManual, SourceEditCheck, SourceListing:
		return true
	}
	return false
}

// IssueStatus captures the triage lifecycle. Transitions are monotonic:
// open -> triaged -> closed, never backward.
type IssueStatus string

const (
	StatusOpen    IssueStatus = "open"
	StatusTriaged IssueStatus = "triaged"
	StatusClosed  IssueStatus = "closed"
)

// Rank orders statuses so callers can enforce forward-only transitions.
func (s IssueStatus) Rank() int {
	switch s {
	case StatusOpen:
		return 0
	case StatusTriaged:
		return 1
	case StatusClosed:
		return 2
	default:
		return -1
	}
}

// IssueDomain enumerates dataset areas an issue belongs to.
type IssueDomain string

const (
	DomainDM         IssueDomain = "DM"
	DomainVS         IssueDomain = "VS"
	DomainLB         IssueDomain = "LB"
	DomainAE         IssueDomain = "AE"
	DomainCommercial IssueDomain = "COMMERCIAL"
	DomainMedical    IssueDomain = "MEDICAL"
)

// Valid reports whether d is a known issue domain.
func (d IssueDomain) Valid() bool {
	switch d {
	case DomainDM, DomainVS, DomainLB, DomainAE, DomainCommercial, DomainMedical:
		return true
	}
	return false
}

// IssueType records how analysis should be performed for the issue.
type IssueType string

const (
	TypeDeterministic IssueType = "deterministic"
	TypeLLMRequired   IssueType = "llm_required"
)

// IssueCreate is the client payload for creating an issue. System-managed
// fields (id, timestamps, status) are deliberately absent.
type IssueCreate struct {
	Source          IssueSource    `json:"source"`
	Domain          IssueDomain    `json:"domain"`
	SubjectID       string         `json:"subject_id"`
	Fields          []string       `json:"fields"`
	Description     string         `json:"description"`
	EvidencePayload map[string]any `json:"evidence_payload"`
}

// Issue is the stored finding awaiting triage. Immutable after creation
// except for Status, which changes only as a side effect of decision
// recording.
type Issue struct {
	IssueID         uuid.UUID      `json:"issue_id"`
	Source          IssueSource    `json:"source"`
	Domain          IssueDomain    `json:"domain"`
	SubjectID       string         `json:"subject_id"`
	Fields          []string       `json:"fields"`
	Description     string         `json:"description"`
	EvidencePayload map[string]any `json:"evidence_payload"`
	IssueType       IssueType      `json:"issue_type"`
	Status          IssueStatus    `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
}
