package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/nealali/agentic-triage-copilot/internal/models"
)

// MemoryStore is the in-process Store used for development and tests.
// A single mutex guards every map, which makes multi-record writes trivially
// atomic.
type MemoryStore struct {
	mu sync.RWMutex

	issues    map[uuid.UUID]models.Issue
	runs      map[uuid.UUID]models.Run
	decisions map[uuid.UUID]models.Decision
	documents map[uuid.UUID]models.Document

	issueOrder    []uuid.UUID
	runOrder      []uuid.UUID
	decisionOrder []uuid.UUID
	documentOrder []uuid.UUID
	audit         []models.AuditEvent
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		issues:    make(map[uuid.UUID]models.Issue),
		runs:      make(map[uuid.UUID]models.Run),
		decisions: make(map[uuid.UUID]models.Decision),
		documents: make(map[uuid.UUID]models.Document),
	}
}

func (s *MemoryStore) CreateIssue(_ context.Context, issue models.Issue, event models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.issues[issue.IssueID]; exists {
		return fmt.Errorf("issue %s already exists", issue.IssueID)
	}
	s.issues[issue.IssueID] = issue
	s.issueOrder = append(s.issueOrder, issue.IssueID)
	s.audit = append(s.audit, event)
	return nil
}

func (s *MemoryStore) GetIssue(_ context.Context, id uuid.UUID) (models.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	issue, ok := s.issues[id]
	if !ok {
		return models.Issue{}, ErrNotFound
	}
	return issue, nil
}

func (s *MemoryStore) ListIssues(_ context.Context, filter IssueFilter) ([]models.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	issues := make([]models.Issue, 0, len(s.issueOrder))
	for _, id := range s.issueOrder {
		if issue := s.issues[id]; matchesIssue(issue, filter) {
			issues = append(issues, issue)
		}
	}
	return issues, nil
}

func (s *MemoryStore) AppendRun(_ context.Context, run models.Run, event models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.issues[run.IssueID]; !ok {
		return ErrNotFound
	}
	if _, exists := s.runs[run.RunID]; exists {
		return fmt.Errorf("run %s already exists", run.RunID)
	}
	s.runs[run.RunID] = run
	s.runOrder = append(s.runOrder, run.RunID)
	s.audit = append(s.audit, event)
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id uuid.UUID) (models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return models.Run{}, ErrNotFound
	}
	return run, nil
}

func (s *MemoryStore) ListRuns(_ context.Context, issueID uuid.UUID) ([]models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]models.Run, 0)
	for _, id := range s.runOrder {
		run := s.runs[id]
		if issueID == uuid.Nil || run.IssueID == issueID {
			runs = append(runs, run)
		}
	}
	return runs, nil
}

func (s *MemoryStore) RecordDecision(_ context.Context, decision models.Decision, status models.IssueStatus, event models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.issues[decision.IssueID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := s.runs[decision.RunID]; !ok {
		return ErrNotFound
	}

	s.decisions[decision.DecisionID] = decision
	s.decisionOrder = append(s.decisionOrder, decision.DecisionID)
	issue.Status = status
	s.issues[decision.IssueID] = issue
	s.audit = append(s.audit, event)
	return nil
}

func (s *MemoryStore) ListDecisions(_ context.Context, issueID uuid.UUID) ([]models.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	decisions := make([]models.Decision, 0)
	for _, id := range s.decisionOrder {
		decision := s.decisions[id]
		if issueID == uuid.Nil || decision.IssueID == issueID {
			decisions = append(decisions, decision)
		}
	}
	return decisions, nil
}

func (s *MemoryStore) ListAuditEvents(_ context.Context, filter AuditFilter) ([]models.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]models.AuditEvent, 0, len(s.audit))
	for _, event := range s.audit {
		if matchesAudit(event, filter) {
			events = append(events, event)
		}
	}
	return events, nil
}

func (s *MemoryStore) AddDocument(_ context.Context, doc models.Document, event models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.documents[doc.DocID]; exists {
		return fmt.Errorf("document %s already exists", doc.DocID)
	}
	s.documents[doc.DocID] = doc
	s.documentOrder = append(s.documentOrder, doc.DocID)
	s.audit = append(s.audit, event)
	return nil
}

func (s *MemoryStore) ListDocuments(_ context.Context) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]models.Document, 0, len(s.documentOrder))
	for _, id := range s.documentOrder {
		docs = append(docs, s.documents[id])
	}
	return docs, nil
}

func (s *MemoryStore) Close() error { return nil }
