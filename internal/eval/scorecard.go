// Package eval exports flattened run views for external evaluation.
package eval

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nealali/agentic-triage-copilot/internal/models"
)

// Row is one scorecard entry per stored run, with the latest recorded
// decision folded in when one exists. Full evidence and tool payloads are
// deliberately excluded to keep exports small.
type Row struct {
	IssueID      uuid.UUID           `json:"issue_id"`
	RunID        uuid.UUID           `json:"run_id"`
	CreatedAt    time.Time           `json:"created_at"`
	Severity     models.Severity     `json:"severity"`
	Action       models.Action       `json:"action"`
	Confidence   float64             `json:"confidence"`
	RuleFired    string              `json:"rule_fired"`
	Decided      bool                `json:"decided"`
	DecisionType models.DecisionType `json:"decision_type,omitempty"`
	FinalAction  models.Action       `json:"final_action,omitempty"`
}

// BuildScorecard flattens runs into rows, ordered by issue id then run
// creation time so exports are stable and diffable. decisions must be in
// append order; the last decision for a run wins.
func BuildScorecard(runs []models.Run, decisions []models.Decision) []Row {
	latest := make(map[uuid.UUID]models.Decision, len(decisions))
	for _, d := range decisions {
		latest[d.RunID] = d
	}

	sorted := append([]models.Run(nil), runs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].IssueID != sorted[j].IssueID {
			return sorted[i].IssueID.String() < sorted[j].IssueID.String()
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	rows := make([]Row, 0, len(sorted))
	for _, run := range sorted {
		rec := run.Recommendation
		row := Row{
			IssueID:    run.IssueID,
			RunID:      run.RunID,
			CreatedAt:  run.CreatedAt,
			Severity:   rec.Severity,
			Action:     rec.Action,
			Confidence: rec.Confidence,
			RuleFired:  rec.ToolResults.RuleFired,
		}
		if decision, ok := latest[run.RunID]; ok {
			row.Decided = true
			row.DecisionType = decision.DecisionType
			row.FinalAction = decision.FinalAction
		}
		rows = append(rows, row)
	}
	return rows
}
