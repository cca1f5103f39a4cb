package models

// Action is the recommended next step for an issue.
type Action string

const (
	ActionQuerySite     Action = "QUERY_SITE"
	ActionDataFix       Action = "DATA_FIX"
	ActionMedicalReview Action = "MEDICAL_REVIEW"
	ActionIgnore        Action = "IGNORE"
	ActionOther         Action = "OTHER"
)

// Valid reports whether a is a known action value.
func (a Action) Valid() bool {
	switch a {
	case ActionQuerySite, ActionDataFix, ActionMedicalReview, ActionIgnore, ActionOther:
		return true
	}
	return false
}

// Severity captures how urgent the issue appears to be.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// OutOfRangeValue is one suspicious numeric signal found in evidence.
type OutOfRangeValue struct {
	KeyPath string  `json:"key_path"`
	Value   float64 `json:"value"`
}

// CheckSignals holds the small structured evidence a deterministic check
// produces. Fields are optional; each check populates only its own.
type CheckSignals struct {
	KeywordMatch         bool              `json:"keyword_match"`
	ParsedStartFound     bool              `json:"parsed_start_found,omitempty"`
	ParsedEndFound       bool              `json:"parsed_end_found,omitempty"`
	EndBeforeStart       bool              `json:"end_before_start,omitempty"`
	MissingValueDetected bool              `json:"missing_value_detected,omitempty"`
	OutOfRangeValues     []OutOfRangeValue `json:"out_of_range_values,omitempty"`
	OutOfRangeCount      int               `json:"out_of_range_count,omitempty"`
}

// CitationHit is one retrieved guidance document reference.
type CitationHit struct {
	DocID  string  `json:"doc_id"`
	Title  string  `json:"title"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// ToolResults is the versioned, documented evidence contract attached to a
// recommendation. Keys are explicit struct fields rather than an open map so
// the analyzer's output stays testable.
type ToolResults struct {
	RuleFired        string        `json:"rule_fired"`
	Signals          CheckSignals  `json:"signals"`
	RetrievalMethod  string        `json:"retrieval_method,omitempty"`
	CitationHits     []CitationHit `json:"citation_hits,omitempty"`
	LLMEnhanced      bool          `json:"llm_enhanced,omitempty"`
	LLMModel         string        `json:"llm_model,omitempty"`
	LLMFailureReason string        `json:"llm_failure_reason,omitempty"`
	ReplayOfRunID    string        `json:"replay_of_run_id,omitempty"`
}

// Recommendation is the structured output of analysis. Action and Severity
// come solely from the deterministic analyzer; enhancement may only touch
// rationale, draft message and confidence.
type Recommendation struct {
	Severity     Severity    `json:"severity"`
	Action       Action      `json:"action"`
	Confidence   float64     `json:"confidence"`
	Rationale    string      `json:"rationale"`
	MissingInfo  []string    `json:"missing_info"`
	Citations    []string    `json:"citations"`
	ToolResults  ToolResults `json:"tool_results"`
	DraftMessage string      `json:"draft_message,omitempty"`
}
