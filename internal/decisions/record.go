package decisions

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/temirov/repogov/internal/risk"
)

// PolicyStatement is stamped on every decision record.
const PolicyStatement = "NO DELETE. MOVE ONLY to TRASH."

const archiveAgeThresholdDaysConstant = 365

// FinalTag is the lifecycle verdict stored with a decision.
type FinalTag string

// Final tags.
const (
	FinalTagActive  FinalTag = "ACTIVE"
	FinalTagArchive FinalTag = "ARCHIVE"
	FinalTagUnknown FinalTag = "UNKNOWN"
)

// Outcome reports what RecordIfAbsent did.
type Outcome string

// Record outcomes.
const (
	OutcomeWritten         Outcome = "WRITTEN"
	OutcomeSkippedExisting Outcome = "SKIPPED_EXISTING"
)

// Record is the durable marker that a repository was planned within a cohort.
type Record struct {
	ID              string        `json:"id"`
	Repo            string        `json:"repo"`
	Cohort          string        `json:"cohort"`
	FinalTag        FinalTag      `json:"final_tag"`
	MoveListCount   int           `json:"move_list_count"`
	MoveListPath    string        `json:"move_list_path"`
	ApplyScriptPath string        `json:"apply_script_path"`
	RiskScore       int           `json:"risk_score"`
	Category        risk.Category `json:"category"`
	Timestamp       time.Time     `json:"timestamp"`
	Policy          string        `json:"policy"`
}

// IsEmpty reports whether the record carries no decision, as happens when a run was terminated
// while writing it.
func (record Record) IsEmpty() bool {
	return len(record.Repo) == 0 && len(record.ID) == 0
}

// FinalTagFor derives the verdict from an assessment.
func FinalTagFor(assessment risk.RiskAssessment) FinalTag {
	if assessment.Repository.LastActivityAt == nil {
		return FinalTagUnknown
	}
	if assessment.Repository.IsArchived || assessment.Category == risk.CategoryArchiveStrong || assessment.AgeDays > archiveAgeThresholdDaysConstant {
		return FinalTagArchive
	}
	return FinalTagActive
}

// NewRecordID returns a lexically sortable identifier for a record created at the given time.
func NewRecordID(createdAt time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(createdAt), entropy).String()
}
