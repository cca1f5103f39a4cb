package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/nealali/agentic-triage-copilot/internal/models"
)

// Enhancement is what an enhancement backend may contribute. Zero-value
// fields mean "keep the deterministic value".
type Enhancement struct {
	Rationale    string   `json:"rationale_enhanced"`
	Confidence   *float64 `json:"confidence_adjusted"`
	DraftMessage string   `json:"draft_message_enhanced"`
	MissingInfo  []string `json:"missing_info_enhanced"`
}

func (e Enhancement) empty() bool {
	return e.Rationale == "" && e.Confidence == nil && e.DraftMessage == "" && e.MissingInfo == nil
}

// Enhancer produces an Enhancement for a deterministic recommendation.
// Implementations call external backends and must honor ctx cancellation.
type Enhancer interface {
	Enhance(ctx context.Context, issue models.Issue, rec models.Recommendation, model string) (Enhancement, error)
}

// EnhanceOptions controls the optional enhancement step per analysis call.
type EnhanceOptions struct {
	Enabled bool
	Model   string
	Timeout time.Duration
}

// Assembler finalizes a recommendation: it attaches citation hits and,
// when requested, folds in an LLM enhancement. Action and severity always
// come from the deterministic analyzer and are never rewritten here.
type Assembler struct {
	enhancer Enhancer
	logger   *slog.Logger
}

// NewAssembler constructs an Assembler. enhancer may be nil when no backend
// is configured.
func NewAssembler(enhancer Enhancer, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{enhancer: enhancer, logger: logger}
}

// Assemble merges citation hits into the recommendation and applies the
// optional enhancement. Enhancement failure is recorded in tool_results and
// never fails the call.
func (a *Assembler) Assemble(ctx context.Context, issue models.Issue, rec models.Recommendation, hits []models.CitationHit, retrievalMethod string, opts EnhanceOptions) models.Recommendation {
	rec.Citations = make([]string, 0, len(hits))
	for _, hit := range hits {
		rec.Citations = append(rec.Citations, hit.DocID)
	}
	rec.ToolResults.CitationHits = hits
	rec.ToolResults.RetrievalMethod = retrievalMethod

	if !opts.Enabled {
		return rec
	}
	if a.enhancer == nil {
		a.logger.Warn("enhancement requested but no backend configured",
			slog.String("issue_id", issue.IssueID.String()))
		rec.ToolResults.LLMFailureReason = "enhancement backend not configured"
		return rec
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	enh, err := a.enhancer.Enhance(ctx, issue, rec, opts.Model)
	if err != nil {
		a.logger.Warn("enhancement failed, keeping deterministic recommendation",
			slog.String("issue_id", issue.IssueID.String()),
			slog.Any("error", err))
		rec.ToolResults.LLMFailureReason = err.Error()
		return rec
	}
	if enh.empty() {
		a.logger.Warn("enhancement returned no fields, keeping deterministic recommendation",
			slog.String("issue_id", issue.IssueID.String()))
		return rec
	}

	if enh.Rationale != "" {
		rec.Rationale = enh.Rationale
	}
	if enh.DraftMessage != "" {
		rec.DraftMessage = enh.DraftMessage
	}
	if enh.Confidence != nil {
		rec.Confidence = clamp01(*enh.Confidence)
	}
	if enh.MissingInfo != nil {
		rec.MissingInfo = enh.MissingInfo
	}
	rec.ToolResults.LLMEnhanced = true
	rec.ToolResults.LLMModel = opts.Model

	return rec
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
