package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"

	"github.com/nealali/agentic-triage-copilot/internal/models"
)

// Both backends must satisfy the same contract, so every test runs against
// the memory store and a miniredis-backed Redis store.
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})

	t.Run("redis", func(t *testing.T) {
		srv := miniredis.RunT(t)
		s, err := NewRedisStore(srv.Addr(), "", "", 0)
		if err != nil {
			t.Fatalf("connect: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		fn(t, s)
	})
}

func storedIssue(domain models.IssueDomain) models.Issue {
	return models.Issue{
		IssueID:     uuid.New(),
		Source:      models.SourceManual,
		Domain:      domain,
		SubjectID:   "SUBJ-001",
		Description: "missing weight",
		IssueType:   models.TypeDeterministic,
		Status:      models.StatusOpen,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

func auditEvent(eventType models.AuditEventType, issueID uuid.UUID, runID *uuid.UUID) models.AuditEvent {
	return models.AuditEvent{
		EventID:       uuid.New(),
		CorrelationID: uuid.New(),
		EventType:     eventType,
		Actor:         "tester",
		IssueID:       &issueID,
		RunID:         runID,
		CreatedAt:     time.Now().UTC().Truncate(time.Second),
	}
}

func storedRun(issueID uuid.UUID) models.Run {
	return models.Run{
		RunID:        uuid.New(),
		IssueID:      issueID,
		RulesVersion: "v1",
		Recommendation: models.Recommendation{
			Severity:    models.SeverityMedium,
			Action:      models.ActionDataFix,
			Confidence:  0.7,
			Rationale:   "missing value",
			ToolResults: models.ToolResults{RuleFired: "MISSING_CRITICAL_FIELD"},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestIssueLifecycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		issue := storedIssue(models.DomainVS)

		if err := s.CreateIssue(ctx, issue, auditEvent(models.EventIssueCreated, issue.IssueID, nil)); err != nil {
			t.Fatalf("create issue: %v", err)
		}

		got, err := s.GetIssue(ctx, issue.IssueID)
		if err != nil {
			t.Fatalf("get issue: %v", err)
		}
		if got.SubjectID != issue.SubjectID || got.Status != models.StatusOpen {
			t.Fatalf("issue mismatch: %+v", got)
		}

		if _, err := s.GetIssue(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}

		events, err := s.ListAuditEvents(ctx, AuditFilter{IssueID: &issue.IssueID})
		if err != nil {
			t.Fatalf("list audit: %v", err)
		}
		if len(events) != 1 || events[0].EventType != models.EventIssueCreated {
			t.Fatalf("audit trail wrong: %+v", events)
		}
	})
}

func TestListIssuesFilters(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		vs := storedIssue(models.DomainVS)
		ae := storedIssue(models.DomainAE)
		for _, issue := range []models.Issue{vs, ae} {
			if err := s.CreateIssue(ctx, issue, auditEvent(models.EventIssueCreated, issue.IssueID, nil)); err != nil {
				t.Fatalf("create issue: %v", err)
			}
		}

		all, err := s.ListIssues(ctx, IssueFilter{})
		if err != nil {
			t.Fatalf("list issues: %v", err)
		}
		if len(all) != 2 || all[0].IssueID != vs.IssueID {
			t.Fatalf("expected creation order, got %+v", all)
		}

		onlyAE, err := s.ListIssues(ctx, IssueFilter{Domain: models.DomainAE})
		if err != nil {
			t.Fatalf("list issues: %v", err)
		}
		if len(onlyAE) != 1 || onlyAE[0].IssueID != ae.IssueID {
			t.Fatalf("domain filter wrong: %+v", onlyAE)
		}

		open, err := s.ListIssues(ctx, IssueFilter{Status: models.StatusOpen})
		if err != nil {
			t.Fatalf("list issues: %v", err)
		}
		if len(open) != 2 {
			t.Fatalf("status filter wrong: %+v", open)
		}
	})
}

func TestAppendRunRequiresIssue(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		run := storedRun(uuid.New())

		err := s.AppendRun(ctx, run, auditEvent(models.EventAnalysisRun, run.IssueID, &run.RunID))
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestRunsAppendOnly(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		issue := storedIssue(models.DomainVS)
		if err := s.CreateIssue(ctx, issue, auditEvent(models.EventIssueCreated, issue.IssueID, nil)); err != nil {
			t.Fatalf("create issue: %v", err)
		}

		first := storedRun(issue.IssueID)
		second := storedRun(issue.IssueID)
		second.ReplayOfRunID = &first.RunID
		for _, run := range []models.Run{first, second} {
			run := run
			if err := s.AppendRun(ctx, run, auditEvent(models.EventAnalysisRun, issue.IssueID, &run.RunID)); err != nil {
				t.Fatalf("append run: %v", err)
			}
		}

		runs, err := s.ListRuns(ctx, issue.IssueID)
		if err != nil {
			t.Fatalf("list runs: %v", err)
		}
		if len(runs) != 2 || runs[0].RunID != first.RunID {
			t.Fatalf("runs not in append order: %+v", runs)
		}
		if runs[1].ReplayOfRunID == nil || *runs[1].ReplayOfRunID != first.RunID {
			t.Fatalf("replay linkage lost: %+v", runs[1])
		}

		got, err := s.GetRun(ctx, first.RunID)
		if err != nil {
			t.Fatalf("get run: %v", err)
		}
		if got.Recommendation.ToolResults.RuleFired != "MISSING_CRITICAL_FIELD" {
			t.Fatalf("recommendation lost: %+v", got.Recommendation)
		}

		events, err := s.ListAuditEvents(ctx, AuditFilter{RunID: &second.RunID})
		if err != nil {
			t.Fatalf("list audit: %v", err)
		}
		if len(events) != 1 {
			t.Fatalf("run filter wrong: %+v", events)
		}
	})
}

func TestRecordDecisionUpdatesStatus(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		issue := storedIssue(models.DomainVS)
		if err := s.CreateIssue(ctx, issue, auditEvent(models.EventIssueCreated, issue.IssueID, nil)); err != nil {
			t.Fatalf("create issue: %v", err)
		}
		run := storedRun(issue.IssueID)
		if err := s.AppendRun(ctx, run, auditEvent(models.EventAnalysisRun, issue.IssueID, &run.RunID)); err != nil {
			t.Fatalf("append run: %v", err)
		}

		decision := models.Decision{
			DecisionID:   uuid.New(),
			IssueID:      issue.IssueID,
			RunID:        run.RunID,
			DecisionType: models.DecisionApprove,
			FinalAction:  models.ActionDataFix,
			Reviewer:     "reviewer-1",
			CreatedAt:    time.Now().UTC().Truncate(time.Second),
		}
		if err := s.RecordDecision(ctx, decision, models.StatusTriaged, auditEvent(models.EventDecisionRecorded, issue.IssueID, &run.RunID)); err != nil {
			t.Fatalf("record decision: %v", err)
		}

		got, err := s.GetIssue(ctx, issue.IssueID)
		if err != nil {
			t.Fatalf("get issue: %v", err)
		}
		if got.Status != models.StatusTriaged {
			t.Fatalf("status not updated: %s", got.Status)
		}

		decisions, err := s.ListDecisions(ctx, issue.IssueID)
		if err != nil {
			t.Fatalf("list decisions: %v", err)
		}
		if len(decisions) != 1 || decisions[0].Reviewer != "reviewer-1" {
			t.Fatalf("decision lost: %+v", decisions)
		}

		events, err := s.ListAuditEvents(ctx, AuditFilter{IssueID: &issue.IssueID})
		if err != nil {
			t.Fatalf("list audit: %v", err)
		}
		if len(events) != 3 {
			t.Fatalf("expected 3 audit events, got %d", len(events))
		}
	})
}

func TestRecordDecisionUnknownRun(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		issue := storedIssue(models.DomainVS)
		if err := s.CreateIssue(ctx, issue, auditEvent(models.EventIssueCreated, issue.IssueID, nil)); err != nil {
			t.Fatalf("create issue: %v", err)
		}

		decision := models.Decision{
			DecisionID: uuid.New(),
			IssueID:    issue.IssueID,
			RunID:      uuid.New(),
		}
		err := s.RecordDecision(ctx, decision, models.StatusTriaged, auditEvent(models.EventDecisionRecorded, issue.IssueID, nil))
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestDocuments(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		doc := models.Document{
			DocID:     uuid.New(),
			Title:     "AE Query Guidance",
			Source:    "sop",
			Tags:      []string{"ae", "dates"},
			Content:   "How to query adverse event date issues",
			CreatedAt: time.Now().UTC().Truncate(time.Second),
		}
		event := models.AuditEvent{
			EventID:       uuid.New(),
			CorrelationID: uuid.New(),
			EventType:     models.EventDocumentIngested,
			Actor:         "tester",
			CreatedAt:     time.Now().UTC(),
		}

		if err := s.AddDocument(ctx, doc, event); err != nil {
			t.Fatalf("add document: %v", err)
		}

		docs, err := s.ListDocuments(ctx)
		if err != nil {
			t.Fatalf("list documents: %v", err)
		}
		if len(docs) != 1 || docs[0].Title != doc.Title || len(docs[0].Tags) != 2 {
			t.Fatalf("document lost: %+v", docs)
		}
	})
}
