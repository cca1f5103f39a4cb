// Package engine holds the deterministic analysis core: a fixed battery of
// rule checks and the assembler that folds in citations and enhancement.
package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/nealali/agentic-triage-copilot/internal/models"
	"github.com/nealali/agentic-triage-copilot/internal/utils"
)

// Rule names emitted in tool_results.rule_fired.
const (
	RuleDateInconsistency = "AE_DATE_INCONSISTENCY"
	RuleMissingField      = "MISSING_CRITICAL_FIELD"
	RuleOutOfRange        = "OUT_OF_RANGE"
	RuleDuplicateRecord   = "DUPLICATE_RECORD"
	RuleFallback          = "FALLBACK"
)

// maxOutOfRangeSignals caps how many suspicious values land in tool_results.
const maxOutOfRangeSignals = 5

// check is one deterministic rule. eval returns the recommendation and true
// when the rule fires.
type check struct {
	name string
	eval func(issue models.Issue) (models.Recommendation, bool)
}

// Analyzer evaluates issues against a priority-ordered check battery.
// First firing check wins, so identical input always yields identical output.
type Analyzer struct {
	checks []check
	logger *slog.Logger
}

// NewAnalyzer constructs the analyzer with its built-in check order.
func NewAnalyzer(logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Analyzer{logger: logger}
	a.checks = []check{
		{name: RuleDateInconsistency, eval: a.checkDateOrder},
		{name: RuleMissingField, eval: a.checkMissingField},
		{name: RuleOutOfRange, eval: a.checkOutOfRange},
		{name: RuleDuplicateRecord, eval: a.checkDuplicate},
	}
	return a
}

// Analyze runs the check battery and returns the first match, or the fallback
// recommendation when no check fires. Pure: no I/O, no randomness.
func (a *Analyzer) Analyze(issue models.Issue) models.Recommendation {
	for _, c := range a.checks {
		if rec, fired := c.eval(issue); fired {
			a.logger.Debug("deterministic rule fired",
				slog.String("issue_id", issue.IssueID.String()),
				slog.String("rule", c.name))
			return rec
		}
	}
	return a.fallback(issue)
}

func (a *Analyzer) checkDateOrder(issue models.Issue) (models.Recommendation, bool) {
	desc := strings.ToLower(issue.Description)
	keywordHit := strings.Contains(desc, "end") &&
		strings.Contains(desc, "before") &&
		strings.Contains(desc, "start")

	start, startFound := extractDate(issue.EvidencePayload, "start")
	end, endFound := extractDate(issue.EvidencePayload, "end")
	endBeforeStart := startFound && endFound && end.Before(start)

	if !keywordHit && !endBeforeStart {
		return models.Recommendation{}, false
	}

	return models.Recommendation{
		Severity:    models.SeverityHigh,
		Action:      models.ActionQuerySite,
		Confidence:  0.9,
		Rationale:   "Potential date inconsistency: end appears to be before start.",
		MissingInfo: []string{},
		Citations:   []string{},
		ToolResults: models.ToolResults{
			RuleFired: RuleDateInconsistency,
			Signals: models.CheckSignals{
				KeywordMatch:     keywordHit,
				ParsedStartFound: startFound,
				ParsedEndFound:   endFound,
				EndBeforeStart:   endBeforeStart,
			},
		},
		DraftMessage: buildQuerySiteMessage(issue),
	}, true
}

func (a *Analyzer) checkMissingField(issue models.Issue) (models.Recommendation, bool) {
	keywordHit := strings.Contains(strings.ToLower(issue.Description), "missing")
	missingInEvidence := hasMissingValue(issue.EvidencePayload)
	if !keywordHit && !missingInEvidence {
		return models.Recommendation{}, false
	}

	return models.Recommendation{
		Severity:    models.SeverityMedium,
		Action:      models.ActionDataFix,
		Confidence:  0.7,
		Rationale:   "Missing value(s) detected for one or more critical fields.",
		MissingInfo: []string{},
		Citations:   []string{},
		ToolResults: models.ToolResults{
			RuleFired: RuleMissingField,
			Signals: models.CheckSignals{
				KeywordMatch:         keywordHit,
				MissingValueDetected: missingInEvidence,
			},
		},
		DraftMessage: buildDataFixMessage(issue),
	}, true
}

func (a *Analyzer) checkOutOfRange(issue models.Issue) (models.Recommendation, bool) {
	keywordHit := strings.Contains(strings.ToLower(issue.Description), "out of range")

	var suspicious []models.OutOfRangeValue
	extreme := false
	for _, sig := range extractNumericSignals(issue.EvidencePayload) {
		out, far := classifyNumericSignal(sig.KeyPath, sig.Value)
		if !out {
			continue
		}
		suspicious = append(suspicious, sig)
		if far {
			extreme = true
		}
	}
	if !keywordHit && len(suspicious) == 0 {
		return models.Recommendation{}, false
	}

	severity := models.SeverityMedium
	if extreme {
		severity = models.SeverityHigh
	}

	capped := suspicious
	if len(capped) > maxOutOfRangeSignals {
		capped = capped[:maxOutOfRangeSignals]
	}

	return models.Recommendation{
		Severity:    severity,
		Action:      models.ActionQuerySite,
		Confidence:  0.7,
		Rationale:   "Potential out-of-range value(s) detected in evidence.",
		MissingInfo: []string{},
		Citations:   []string{},
		ToolResults: models.ToolResults{
			RuleFired: RuleOutOfRange,
			Signals: models.CheckSignals{
				KeywordMatch:     keywordHit,
				OutOfRangeValues: capped,
				OutOfRangeCount:  len(suspicious),
			},
		},
		DraftMessage: buildQuerySiteMessage(issue),
	}, true
}

func (a *Analyzer) checkDuplicate(issue models.Issue) (models.Recommendation, bool) {
	if !strings.Contains(strings.ToLower(issue.Description), "duplicate") {
		return models.Recommendation{}, false
	}

	return models.Recommendation{
		Severity:    models.SeverityLow,
		Action:      models.ActionDataFix,
		Confidence:  0.6,
		Rationale:   "Possible duplicate record indicated by the issue description.",
		MissingInfo: []string{},
		Citations:   []string{},
		ToolResults: models.ToolResults{
			RuleFired: RuleDuplicateRecord,
			Signals:   models.CheckSignals{KeywordMatch: true},
		},
		DraftMessage: buildDataFixMessage(issue),
	}, true
}

// fallback is the safe default when no deterministic signal is strong enough.
func (a *Analyzer) fallback(issue models.Issue) models.Recommendation {
	return models.Recommendation{
		Severity:   models.SeverityLow,
		Action:     models.ActionMedicalReview,
		Confidence: 0.3,
		Rationale:  "Insufficient deterministic signals to make a strong recommendation.",
		MissingInfo: []string{
			"Confirm which records/visits are impacted.",
			"Provide relevant start/end dates or measurement values.",
			"Confirm the expected rule/specification for this check.",
		},
		Citations: []string{},
		ToolResults: models.ToolResults{
			RuleFired: RuleFallback,
			Signals:   models.CheckSignals{KeywordMatch: false},
		},
	}
}

// extractDate scans top-level evidence keys containing the hint ("start" or
// "end") and returns the first parseable date. Keys are visited in sorted
// order so evidence maps analyze identically across runs.
func extractDate(evidence map[string]any, hint string) (time.Time, bool) {
	keys := make([]string, 0, len(evidence))
	for k := range evidence {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if !strings.Contains(strings.ToLower(k), hint) {
			continue
		}
		s, ok := evidence[k].(string)
		if !ok {
			continue
		}
		if t, ok := utils.ParseISODate(s); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// hasMissingValue walks the evidence payload looking for obvious missingness:
// nil, empty strings, or common null spellings from JSON exports.
func hasMissingValue(evidence map[string]any) bool {
	missing := false
	walkValues(evidence, func(v any) {
		if missing {
			return
		}
		if v == nil {
			missing = true
			return
		}
		if s, ok := v.(string); ok {
			switch strings.ToLower(strings.TrimSpace(s)) {
			case "", "null", "none", "na", "n/a":
				missing = true
			}
		}
	})
	return missing
}

func walkValues(obj any, visit func(v any)) {
	switch v := obj.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walkValues(v[k], visit)
		}
	case []any:
		for _, item := range v {
			walkValues(item, visit)
		}
	default:
		visit(v)
	}
}

// extractNumericSignals collects numeric leaves with their key paths.
// Paths follow JSON decoding conventions: float64 for numbers.
func extractNumericSignals(evidence map[string]any) []models.OutOfRangeValue {
	var signals []models.OutOfRangeValue

	var walk func(obj any, path string)
	walk = func(obj any, path string) {
		switch v := obj.(type) {
		case map[string]any:
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				child := k
				if path != "" {
					child = path + "." + k
				}
				walk(v[k], child)
			}
		case []any:
			for i, item := range v {
				walk(item, fmt.Sprintf("%s[%d]", path, i))
			}
		case float64:
			signals = append(signals, models.OutOfRangeValue{KeyPath: path, Value: v})
		case int:
			signals = append(signals, models.OutOfRangeValue{KeyPath: path, Value: float64(v)})
		case int64:
			signals = append(signals, models.OutOfRangeValue{KeyPath: path, Value: float64(v)})
		}
	}
	walk(evidence, "")
	return signals
}

// classifyNumericSignal applies plausibility bounds keyed off the field name.
// The second result marks values at least twice beyond a bound, which bumps
// the finding to HIGH severity.
func classifyNumericSignal(keyPath string, value float64) (out, far bool) {
	k := strings.ToLower(keyPath)

	var lo, hi float64
	switch {
	case strings.Contains(k, "sys") || strings.Contains(k, "sbp"):
		lo, hi = 50, 250
	case strings.Contains(k, "dia") || strings.Contains(k, "dbp"):
		lo, hi = 30, 150
	case strings.Contains(k, "hr") || strings.Contains(k, "pulse"):
		lo, hi = 30, 220
	case strings.Contains(k, "temp"):
		lo, hi = 34, 43
	default:
		lo, hi = -1_000_000, 1_000_000
	}

	switch {
	case value > hi:
		return true, value > 2*hi
	case value < lo:
		if lo > 0 {
			return true, value < lo/2
		}
		return true, value < 2*lo
	}
	return false, false
}

func buildQuerySiteMessage(issue models.Issue) string {
	return fmt.Sprintf(
		"Subject %s: Please review the following potential issue in %s for fields [%s]. %s "+
			"Kindly confirm and/or provide clarification/corrections as appropriate.",
		issue.SubjectID, issue.Domain, fieldsList(issue.Fields), issue.Description)
}

func buildDataFixMessage(issue models.Issue) string {
	return fmt.Sprintf(
		"Recommended data fix for subject %s in %s for fields [%s]. "+
			"Review the evidence payload and apply a consistent correction.",
		issue.SubjectID, issue.Domain, fieldsList(issue.Fields))
}

func fieldsList(fields []string) string {
	if len(fields) == 0 {
		return "(unspecified fields)"
	}
	return strings.Join(fields, ", ")
}
