// Package triage is the service facade: it ties the classifier, analyzer,
// retrieval and assembler to the ledger store and enforces the workflow
// rules (per-issue serialization, monotonic status, append-only audit).
package triage

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nealali/agentic-triage-copilot/internal/classify"
	"github.com/nealali/agentic-triage-copilot/internal/engine"
	"github.com/nealali/agentic-triage-copilot/internal/eval"
	"github.com/nealali/agentic-triage-copilot/internal/metrics"
	"github.com/nealali/agentic-triage-copilot/internal/models"
	"github.com/nealali/agentic-triage-copilot/internal/retrieval"
	"github.com/nealali/agentic-triage-copilot/internal/store"
	"github.com/nealali/agentic-triage-copilot/internal/utils"
)

// Options carries the per-deployment behaviour knobs.
type Options struct {
	RulesVersion    string
	EnhanceEnabled  bool
	EnhanceModel    string
	EnhanceTimeout  time.Duration
	SemanticDefault bool
}

// Service implements the triage workflow operations.
type Service struct {
	store      store.Store
	classifier *classify.Classifier
	analyzer   *engine.Analyzer
	assembler  *engine.Assembler
	keywordRet retrieval.Retriever
	vectorRet  retrieval.Retriever
	opts       Options
	logger     *slog.Logger
	latencies  *utils.LatencyTracker
	locks      *issueLocks
	now        func() time.Time
}

// NewService constructs the service facade. vectorRet may be nil when no
// embedding backend is configured; semantic requests then use keyword
// retrieval.
func NewService(s store.Store, classifier *classify.Classifier, analyzer *engine.Analyzer, assembler *engine.Assembler, keywordRet, vectorRet retrieval.Retriever, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RulesVersion == "" {
		opts.RulesVersion = "v1"
	}
	return &Service{
		store:      s,
		classifier: classifier,
		analyzer:   analyzer,
		assembler:  assembler,
		keywordRet: keywordRet,
		vectorRet:  vectorRet,
		opts:       opts,
		logger:     logger,
		latencies:  utils.NewLatencyTracker(1024),
		locks:      newIssueLocks(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateIssue validates, classifies and stores a new issue together with its
// issue_created audit event.
func (s *Service) CreateIssue(ctx context.Context, payload models.IssueCreate) (models.Issue, error) {
	if err := validateIssueCreate(payload); err != nil {
		return models.Issue{}, err
	}

	verdict := s.classifier.Classify(ctx, payload)

	issue := models.Issue{
		IssueID:         uuid.New(),
		Source:          payload.Source,
		Domain:          payload.Domain,
		SubjectID:       payload.SubjectID,
		Fields:          payload.Fields,
		Description:     payload.Description,
		EvidencePayload: payload.EvidencePayload,
		IssueType:       verdict.IssueType,
		Status:          models.StatusOpen,
		CreatedAt:       s.now(),
	}

	event := s.newEvent(ctx, models.EventIssueCreated, "system", &issue.IssueID, nil, map[string]any{
		"source":                payload.Source,
		"domain":                payload.Domain,
		"issue_type":            verdict.IssueType,
		"classifier_method":     verdict.Method,
		"classifier_confidence": verdict.Confidence,
	})

	if err := s.store.CreateIssue(ctx, issue, event); err != nil {
		return models.Issue{}, err
	}

	metrics.IncIssueCreated(string(verdict.IssueType))
	s.logger.Info("issue created",
		slog.String("issue_id", issue.IssueID.String()),
		slog.String("issue_type", string(verdict.IssueType)),
		slog.String("classifier_method", verdict.Method))
	return issue, nil
}

// GetIssue returns one issue.
func (s *Service) GetIssue(ctx context.Context, id uuid.UUID) (models.Issue, error) {
	issue, err := s.store.GetIssue(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Issue{}, notFoundf("issue %s", id)
	}
	return issue, err
}

// ListIssues returns issues matching the filter in creation order.
func (s *Service) ListIssues(ctx context.Context, filter store.IssueFilter) ([]models.Issue, error) {
	return s.store.ListIssues(ctx, filter)
}

// AnalyzeIssue runs the deterministic battery, retrieval and optional
// enhancement, then appends the run and its audit event atomically. The
// slow collaborator calls happen outside the per-issue lock; only the
// commit is serialized. Analysis never changes issue status.
func (s *Service) AnalyzeIssue(ctx context.Context, issueID uuid.UUID, req models.AnalyzeRequest) (models.Run, error) {
	start := time.Now()
	run, err := s.analyzeIssue(ctx, issueID, req)
	duration := time.Since(start)

	if err != nil {
		if !errors.Is(err, ErrValidation) && !errors.Is(err, ErrNotFound) {
			metrics.ObserveAnalysis(duration, metrics.OutcomeError)
		}
		return models.Run{}, err
	}

	s.latencies.Observe(duration)
	metrics.ObserveAnalysis(duration, metrics.OutcomeSuccess)
	if count := s.latencies.Total(); count >= 20 && count%20 == 0 {
		s.logger.Info("analysis latency", slog.Duration("p95", s.latencies.Percentile(95)), slog.Int("samples", count))
	}
	return run, nil
}

func (s *Service) analyzeIssue(ctx context.Context, issueID uuid.UUID, req models.AnalyzeRequest) (models.Run, error) {
	issue, err := s.GetIssue(ctx, issueID)
	if err != nil {
		return models.Run{}, err
	}

	if req.ReplayOfRunID != nil {
		prior, err := s.store.GetRun(ctx, *req.ReplayOfRunID)
		if errors.Is(err, store.ErrNotFound) {
			return models.Run{}, notFoundf("run %s", *req.ReplayOfRunID)
		}
		if err != nil {
			return models.Run{}, err
		}
		if prior.IssueID != issueID {
			return models.Run{}, validationf("run %s does not belong to issue %s", prior.RunID, issueID)
		}
	}

	rec := s.analyzer.Analyze(issue)

	docs, err := s.store.ListDocuments(ctx)
	if err != nil {
		return models.Run{}, err
	}
	hits, method, err := s.selectRetriever(issue.IssueType, req.UseSemantic).Retrieve(ctx, retrievalQuery(issue), docs)
	if err != nil {
		s.logger.Warn("retrieval failed, continuing without citations",
			slog.String("issue_id", issueID.String()), slog.Any("error", err))
		hits = nil
	}

	rec = s.assembler.Assemble(ctx, issue, rec, hits, method, s.enhanceOptions(issue, req))
	if req.ReplayOfRunID != nil {
		rec.ToolResults.ReplayOfRunID = req.ReplayOfRunID.String()
	}

	rulesVersion := req.RulesVersion
	if rulesVersion == "" {
		rulesVersion = s.opts.RulesVersion
	}

	lock := s.locks.get(issueID)
	lock.Lock()
	defer lock.Unlock()

	// The issue may have vanished while collaborators ran.
	if _, err := s.GetIssue(ctx, issueID); err != nil {
		return models.Run{}, err
	}

	run := models.Run{
		RunID:          uuid.New(),
		IssueID:        issueID,
		RulesVersion:   rulesVersion,
		Recommendation: rec,
		ReplayOfRunID:  req.ReplayOfRunID,
		CreatedAt:      s.now(),
	}
	event := s.newEvent(ctx, models.EventAnalysisRun, "system", &issueID, &run.RunID, map[string]any{
		"rule_fired":       rec.ToolResults.RuleFired,
		"action":           rec.Action,
		"severity":         rec.Severity,
		"retrieval_method": rec.ToolResults.RetrievalMethod,
		"llm_enhanced":     rec.ToolResults.LLMEnhanced,
		"rules_version":    rulesVersion,
	})

	if err := s.store.AppendRun(ctx, run, event); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Run{}, notFoundf("issue %s", issueID)
		}
		return models.Run{}, err
	}
	return run, nil
}

// GetRun returns one run.
func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (models.Run, error) {
	run, err := s.store.GetRun(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Run{}, notFoundf("run %s", id)
	}
	return run, err
}

// ListRuns returns the runs for one issue in append order.
func (s *Service) ListRuns(ctx context.Context, issueID uuid.UUID) ([]models.Run, error) {
	if _, err := s.GetIssue(ctx, issueID); err != nil {
		return nil, err
	}
	return s.store.ListRuns(ctx, issueID)
}

// RecordDecision validates the reviewer's disposition, transitions the issue
// status forward and appends the decision plus its audit event atomically.
// The whole operation holds the per-issue lock.
func (s *Service) RecordDecision(ctx context.Context, issueID uuid.UUID, payload models.DecisionCreate) (models.Decision, error) {
	if err := validateDecisionCreate(payload); err != nil {
		return models.Decision{}, err
	}

	lock := s.locks.get(issueID)
	lock.Lock()
	defer lock.Unlock()

	issue, err := s.GetIssue(ctx, issueID)
	if err != nil {
		return models.Decision{}, err
	}
	run, err := s.GetRun(ctx, payload.RunID)
	if err != nil {
		return models.Decision{}, err
	}
	if run.IssueID != issueID {
		return models.Decision{}, notFoundf("run %s does not belong to issue %s", run.RunID, issueID)
	}

	status := models.StatusTriaged
	if payload.FinalAction == models.ActionIgnore {
		status = models.StatusClosed
	}
	// Status never moves backward.
	if status.Rank() < issue.Status.Rank() {
		status = issue.Status
	}

	decision := models.Decision{
		DecisionID:   uuid.New(),
		IssueID:      issueID,
		RunID:        payload.RunID,
		DecisionType: payload.DecisionType,
		FinalAction:  payload.FinalAction,
		FinalText:    payload.FinalText,
		Reviewer:     payload.Reviewer,
		Reason:       payload.Reason,
		Specify:      payload.Specify,
		CreatedAt:    s.now(),
	}
	event := s.newEvent(ctx, models.EventDecisionRecorded, payload.Reviewer, &issueID, &payload.RunID, map[string]any{
		"decision_type": payload.DecisionType,
		"final_action":  payload.FinalAction,
		"status":        status,
	})

	if err := s.store.RecordDecision(ctx, decision, status, event); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Decision{}, notFoundf("issue %s or run %s", issueID, payload.RunID)
		}
		return models.Decision{}, err
	}

	metrics.IncDecision(string(payload.FinalAction))
	s.logger.Info("decision recorded",
		slog.String("issue_id", issueID.String()),
		slog.String("run_id", payload.RunID.String()),
		slog.String("decision_type", string(payload.DecisionType)),
		slog.String("status", string(status)))
	return decision, nil
}

// ListDecisions returns the decisions for one issue in append order.
func (s *Service) ListDecisions(ctx context.Context, issueID uuid.UUID) ([]models.Decision, error) {
	if _, err := s.GetIssue(ctx, issueID); err != nil {
		return nil, err
	}
	return s.store.ListDecisions(ctx, issueID)
}

// ListAuditEvents returns audit events matching the filter in append order.
func (s *Service) ListAuditEvents(ctx context.Context, filter store.AuditFilter) ([]models.AuditEvent, error) {
	return s.store.ListAuditEvents(ctx, filter)
}

// AddDocument ingests a guidance document with its audit event.
func (s *Service) AddDocument(ctx context.Context, payload models.DocumentCreate) (models.Document, error) {
	if strings.TrimSpace(payload.Title) == "" {
		return models.Document{}, validationf("title is required")
	}
	if strings.TrimSpace(payload.Content) == "" {
		return models.Document{}, validationf("content is required")
	}

	doc := models.Document{
		DocID:     uuid.New(),
		Title:     payload.Title,
		Source:    payload.Source,
		Tags:      payload.Tags,
		Content:   payload.Content,
		CreatedAt: s.now(),
	}
	event := s.newEvent(ctx, models.EventDocumentIngested, "system", nil, nil, map[string]any{
		"doc_id": doc.DocID,
		"title":  doc.Title,
		"source": doc.Source,
	})

	if err := s.store.AddDocument(ctx, doc, event); err != nil {
		return models.Document{}, err
	}
	return doc, nil
}

// ListDocuments returns all stored guidance documents.
func (s *Service) ListDocuments(ctx context.Context) ([]models.Document, error) {
	return s.store.ListDocuments(ctx)
}

// SearchDocuments scores stored documents against a free-text query using
// the default retrieval strategy.
func (s *Service) SearchDocuments(ctx context.Context, query string) ([]models.CitationHit, error) {
	docs, err := s.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	hits, _, err := s.selectRetriever(models.TypeDeterministic, nil).Retrieve(ctx, query, docs)
	return hits, err
}

// Scorecard exports the flattened run view for external evaluation.
func (s *Service) Scorecard(ctx context.Context) ([]eval.Row, error) {
	runs, err := s.store.ListRuns(ctx, uuid.Nil)
	if err != nil {
		return nil, err
	}
	decisions, err := s.store.ListDecisions(ctx, uuid.Nil)
	if err != nil {
		return nil, err
	}
	return eval.BuildScorecard(runs, decisions), nil
}

// selectRetriever resolves the retrieval strategy. Priority: request flag,
// then issue type (llm_required issues get semantic retrieval), then the
// configured default.
func (s *Service) selectRetriever(issueType models.IssueType, useSemantic *bool) retrieval.Retriever {
	semantic := s.opts.SemanticDefault
	if issueType == models.TypeLLMRequired {
		semantic = true
	}
	if useSemantic != nil {
		semantic = *useSemantic
	}
	if semantic && s.vectorRet != nil {
		return s.vectorRet
	}
	return s.keywordRet
}

// enhanceOptions resolves whether enhancement runs for this analysis.
// Priority: request flag, then issue type (llm_required issues are always
// enhanced), then the configured default.
func (s *Service) enhanceOptions(issue models.Issue, req models.AnalyzeRequest) engine.EnhanceOptions {
	enabled := s.opts.EnhanceEnabled || issue.IssueType == models.TypeLLMRequired
	if req.UseLLM != nil {
		enabled = *req.UseLLM
	}
	model := req.LLMModel
	if model == "" {
		model = s.opts.EnhanceModel
	}
	return engine.EnhanceOptions{Enabled: enabled, Model: model, Timeout: s.opts.EnhanceTimeout}
}

func (s *Service) newEvent(ctx context.Context, eventType models.AuditEventType, actor string, issueID, runID *uuid.UUID, payload map[string]any) models.AuditEvent {
	return models.AuditEvent{
		EventID:       uuid.New(),
		CorrelationID: utils.CorrelationIDFromContext(ctx),
		EventType:     eventType,
		Actor:         actor,
		IssueID:       issueID,
		RunID:         runID,
		Payload:       payload,
		CreatedAt:     s.now(),
	}
}

func retrievalQuery(issue models.Issue) string {
	parts := []string{string(issue.Domain), issue.Description}
	parts = append(parts, issue.Fields...)
	return strings.Join(parts, " ")
}

func validateIssueCreate(payload models.IssueCreate) error {
	if !payload.Source.Valid() {
		return validationf("unknown source %q", payload.Source)
	}
	if !payload.Domain.Valid() {
		return validationf("unknown domain %q", payload.Domain)
	}
	if strings.TrimSpace(payload.SubjectID) == "" {
		return validationf("subject_id is required")
	}
	if strings.TrimSpace(payload.Description) == "" {
		return validationf("description is required")
	}
	return nil
}

func validateDecisionCreate(payload models.DecisionCreate) error {
	if payload.RunID == uuid.Nil {
		return validationf("run_id is required")
	}
	if !payload.DecisionType.Valid() {
		return validationf("unknown decision_type %q", payload.DecisionType)
	}
	if !payload.FinalAction.Valid() {
		return validationf("unknown final_action %q", payload.FinalAction)
	}
	if strings.TrimSpace(payload.Reviewer) == "" {
		return validationf("reviewer is required")
	}
	if payload.DecisionType == models.DecisionOverride && strings.TrimSpace(payload.Reason) == "" {
		return validationf("reason is required for OVERRIDE decisions")
	}
	if payload.FinalAction == models.ActionOther && strings.TrimSpace(payload.Specify) == "" {
		return validationf("specify is required when final_action is OTHER")
	}
	return nil
}
