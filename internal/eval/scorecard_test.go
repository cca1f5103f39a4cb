package eval

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nealali/agentic-triage-copilot/internal/models"
)

func run(issueID uuid.UUID, createdAt time.Time, rule string) models.Run {
	return models.Run{
		RunID:   uuid.New(),
		IssueID: issueID,
		Recommendation: models.Recommendation{
			Severity:    models.SeverityMedium,
			Action:      models.ActionDataFix,
			Confidence:  0.7,
			ToolResults: models.ToolResults{RuleFired: rule},
		},
		CreatedAt: createdAt,
	}
}

func TestBuildScorecardOrdering(t *testing.T) {
	issueA := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	issueB := uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	now := time.Now().UTC()

	later := run(issueA, now.Add(time.Minute), "OUT_OF_RANGE")
	earlier := run(issueA, now, "MISSING_CRITICAL_FIELD")
	other := run(issueB, now, "DUPLICATE_RECORD")

	rows := BuildScorecard([]models.Run{other, later, earlier}, nil)

	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].RunID != earlier.RunID || rows[1].RunID != later.RunID {
		t.Fatalf("issue A runs not in creation order: %+v", rows)
	}
	if rows[2].IssueID != issueB {
		t.Fatalf("issues not ordered by id: %+v", rows)
	}
	if rows[0].RuleFired != "MISSING_CRITICAL_FIELD" {
		t.Fatalf("rule_fired lost: %+v", rows[0])
	}
}

func TestBuildScorecardFoldsLatestDecision(t *testing.T) {
	issueID := uuid.New()
	r := run(issueID, time.Now().UTC(), "FALLBACK")

	decisions := []models.Decision{
		{DecisionID: uuid.New(), IssueID: issueID, RunID: r.RunID, DecisionType: models.DecisionApprove, FinalAction: models.ActionMedicalReview},
		{DecisionID: uuid.New(), IssueID: issueID, RunID: r.RunID, DecisionType: models.DecisionOverride, FinalAction: models.ActionIgnore},
	}

	rows := BuildScorecard([]models.Run{r}, decisions)

	if len(rows) != 1 || !rows[0].Decided {
		t.Fatalf("decision not folded: %+v", rows)
	}
	if rows[0].DecisionType != models.DecisionOverride || rows[0].FinalAction != models.ActionIgnore {
		t.Fatalf("latest decision should win: %+v", rows[0])
	}
}

func TestBuildScorecardUndecidedRun(t *testing.T) {
	rows := BuildScorecard([]models.Run{run(uuid.New(), time.Now().UTC(), "FALLBACK")}, nil)

	if len(rows) != 1 || rows[0].Decided || rows[0].DecisionType != "" {
		t.Fatalf("undecided run mis-reported: %+v", rows)
	}
}
