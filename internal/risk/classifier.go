package risk

import (
	"math"
	"strings"
	"time"

	"github.com/temirov/repogov/internal/inventory"
)

const (
	// MissingActivityAgeDays is the age assigned to repositories without an activity timestamp.
	MissingActivityAgeDays = 999999

	privatePointsConstant          = 1
	staleAgeThresholdDaysConstant  = 120
	stalePointsConstant            = 2
	agingAgeThresholdDaysConstant  = 45
	agingPointsConstant            = 1
	missingDescriptionPoints       = 1
	recentAgeThresholdDaysConstant = 30

	archiveStrongThresholdConstant = 6
	duplicateRiskThresholdConstant = 4
	reviewThresholdConstant        = 2

	hoursPerDayConstant = 24

	coreNameFragmentConstant   = "core"
	systemNameFragmentConstant = "system"
)

// Criticality expresses how carefully a repository must be handled.
type Criticality string

// Criticality levels.
const (
	CriticalityHigh   Criticality = "HIGH"
	CriticalityMedium Criticality = "MEDIUM"
	CriticalityLow    Criticality = "LOW"
)

// Category is the governance bucket derived from the risk score.
type Category string

// Categories ordered from most to least severe.
const (
	CategoryArchiveStrong Category = "ARCHIVE_STRONG"
	CategoryDuplicateRisk Category = "DUPLICATE_RISK"
	CategoryReview        Category = "REVIEW"
	CategorySafe          Category = "SAFE"
)

// Categories lists every category in severity order.
var Categories = []Category{CategoryArchiveStrong, CategoryDuplicateRisk, CategoryReview, CategorySafe}

// Criticalities lists every criticality in severity order.
var Criticalities = []Criticality{CriticalityHigh, CriticalityMedium, CriticalityLow}

// Rule names recorded in assessment reasons.
const (
	RulePrivate              = "private"
	RuleStale                = "stale_over_120_days"
	RuleAging                = "aging_over_45_days"
	RuleMissingDescription   = "missing_description"
	RuleNameDuplicate        = "duplicate_name"
	RuleDescriptionDuplicate = "duplicate_description"
)

// Reason is one rule contribution to a risk score.
type Reason struct {
	Rule   string `json:"rule"`
	Points int    `json:"points"`
}

// RiskAssessment is the scored view of one repository.
type RiskAssessment struct {
	Repository  inventory.RepositoryRecord `json:"repository"`
	AgeDays     int                        `json:"age_days"`
	RiskScore   int                        `json:"risk_score"`
	Criticality Criticality                `json:"criticality"`
	Category    Category                   `json:"category"`
	Reasons     []Reason                   `json:"reasons"`
}

// WithAdjustment returns a copy of the assessment with extra points applied and the category re-derived.
func (assessment RiskAssessment) WithAdjustment(rule string, points int) RiskAssessment {
	adjusted := assessment
	adjusted.Reasons = append(append([]Reason{}, assessment.Reasons...), Reason{Rule: rule, Points: points})
	adjusted.RiskScore = assessment.RiskScore + points
	adjusted.Category = CategoryForScore(adjusted.RiskScore)
	return adjusted
}

// Options tune the classifier beyond the fixed scoring rules.
type Options struct {
	CriticalRepositories []string
}

// Classifier scores repositories against a fixed clock.
type Classifier struct {
	now                  time.Time
	criticalRepositories map[string]struct{}
}

// NewClassifier captures the run's reference time so every repository is aged against the same instant.
func NewClassifier(now time.Time, options Options) *Classifier {
	criticalRepositories := make(map[string]struct{}, len(options.CriticalRepositories))
	for _, repositoryName := range options.CriticalRepositories {
		trimmedName := strings.ToLower(strings.TrimSpace(repositoryName))
		if len(trimmedName) == 0 {
			continue
		}
		criticalRepositories[trimmedName] = struct{}{}
	}
	return &Classifier{now: now.UTC(), criticalRepositories: criticalRepositories}
}

// Classify scores a single repository.
func (classifier *Classifier) Classify(record inventory.RepositoryRecord) RiskAssessment {
	ageDays := classifier.AgeDays(record.LastActivityAt)

	reasons := make([]Reason, 0, 3)
	if record.IsPrivate {
		reasons = append(reasons, Reason{Rule: RulePrivate, Points: privatePointsConstant})
	}
	switch {
	case ageDays > staleAgeThresholdDaysConstant:
		reasons = append(reasons, Reason{Rule: RuleStale, Points: stalePointsConstant})
	case ageDays > agingAgeThresholdDaysConstant:
		reasons = append(reasons, Reason{Rule: RuleAging, Points: agingPointsConstant})
	}
	if len(strings.TrimSpace(record.Description)) == 0 {
		reasons = append(reasons, Reason{Rule: RuleMissingDescription, Points: missingDescriptionPoints})
	}

	score := 0
	for _, reason := range reasons {
		score += reason.Points
	}

	return RiskAssessment{
		Repository:  record,
		AgeDays:     ageDays,
		RiskScore:   score,
		Criticality: classifier.criticalityOf(record.Name, ageDays),
		Category:    CategoryForScore(score),
		Reasons:     reasons,
	}
}

// ClassifyAll scores every repository, preserving input order.
func (classifier *Classifier) ClassifyAll(records []inventory.RepositoryRecord) []RiskAssessment {
	assessments := make([]RiskAssessment, 0, len(records))
	for _, record := range records {
		assessments = append(assessments, classifier.Classify(record))
	}
	return assessments
}

// AgeDays returns whole days between the activity timestamp and the classifier clock. Activity in
// the future counts as zero days old.
func (classifier *Classifier) AgeDays(lastActivityAt *time.Time) int {
	if lastActivityAt == nil {
		return MissingActivityAgeDays
	}
	elapsed := classifier.now.Sub(lastActivityAt.UTC())
	if elapsed <= 0 {
		return 0
	}
	return int(math.Floor(elapsed.Hours() / hoursPerDayConstant))
}

func (classifier *Classifier) criticalityOf(repositoryName string, ageDays int) Criticality {
	loweredName := strings.ToLower(repositoryName)
	if strings.Contains(loweredName, coreNameFragmentConstant) || strings.Contains(loweredName, systemNameFragmentConstant) {
		return CriticalityHigh
	}
	if _, listed := classifier.criticalRepositories[loweredName]; listed {
		return CriticalityHigh
	}
	if ageDays <= recentAgeThresholdDaysConstant {
		return CriticalityMedium
	}
	return CriticalityLow
}

// CategoryForScore maps a score onto its category using fixed thresholds.
func CategoryForScore(score int) Category {
	switch {
	case score >= archiveStrongThresholdConstant:
		return CategoryArchiveStrong
	case score >= duplicateRiskThresholdConstant:
		return CategoryDuplicateRisk
	case score >= reviewThresholdConstant:
		return CategoryReview
	default:
		return CategorySafe
	}
}
