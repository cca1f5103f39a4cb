// Package store persists issues, runs, decisions, audit events and guidance
// documents. Implementations must apply multi-record writes atomically: a
// mutation and its audit event land together or not at all.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/nealali/agentic-triage-copilot/internal/models"
)

// ErrNotFound is returned for lookups of unknown identifiers.
var ErrNotFound = errors.New("record not found")

// IssueFilter narrows issue listings. Zero values match everything.
type IssueFilter struct {
	Status models.IssueStatus
	Domain models.IssueDomain
}

// AuditFilter narrows audit listings. Nil fields match everything.
type AuditFilter struct {
	IssueID *uuid.UUID
	RunID   *uuid.UUID
}

// Store is the ledger behind the triage service. Runs, decisions and audit
// events are append-only; issues mutate only through UpdateStatus-style
// decision writes.
type Store interface {
	CreateIssue(ctx context.Context, issue models.Issue, event models.AuditEvent) error
	GetIssue(ctx context.Context, id uuid.UUID) (models.Issue, error)
	ListIssues(ctx context.Context, filter IssueFilter) ([]models.Issue, error)

	AppendRun(ctx context.Context, run models.Run, event models.AuditEvent) error
	GetRun(ctx context.Context, id uuid.UUID) (models.Run, error)
	ListRuns(ctx context.Context, issueID uuid.UUID) ([]models.Run, error)

	// RecordDecision appends the decision, moves the issue to status and
	// appends the audit event in one atomic write.
	RecordDecision(ctx context.Context, decision models.Decision, status models.IssueStatus, event models.AuditEvent) error
	ListDecisions(ctx context.Context, issueID uuid.UUID) ([]models.Decision, error)

	ListAuditEvents(ctx context.Context, filter AuditFilter) ([]models.AuditEvent, error)

	AddDocument(ctx context.Context, doc models.Document, event models.AuditEvent) error
	ListDocuments(ctx context.Context) ([]models.Document, error)

	Close() error
}

func matchesAudit(event models.AuditEvent, filter AuditFilter) bool {
	if filter.IssueID != nil && (event.IssueID == nil || *event.IssueID != *filter.IssueID) {
		return false
	}
	if filter.RunID != nil && (event.RunID == nil || *event.RunID != *filter.RunID) {
		return false
	}
	return true
}

func matchesIssue(issue models.Issue, filter IssueFilter) bool {
	if filter.Status != "" && issue.Status != filter.Status {
		return false
	}
	if filter.Domain != "" && issue.Domain != filter.Domain {
		return false
	}
	return true
}
