package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditEventType enumerates the state-changing actions the ledger records.
type AuditEventType string

const (
	EventIssueCreated     AuditEventType = "issue_created"
	EventAnalysisRun      AuditEventType = "analysis_run"
	EventDecisionRecorded AuditEventType = "decision_recorded"
	EventDocumentIngested AuditEventType = "document_ingested"
)

// AuditEvent is one append-only entry in the audit trail. Events are never
// mutated or deleted; every mutating operation produces exactly one.
type AuditEvent struct {
	EventID       uuid.UUID      `json:"event_id"`
	CorrelationID uuid.UUID      `json:"correlation_id"`
	EventType     AuditEventType `json:"event_type"`
	Actor         string         `json:"actor"`
	IssueID       *uuid.UUID     `json:"issue_id,omitempty"`
	RunID         *uuid.UUID     `json:"run_id,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}
