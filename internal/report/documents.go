package report

import (
	"time"

	"github.com/temirov/repogov/internal/duplicates"
	"github.com/temirov/repogov/internal/inventory"
	"github.com/temirov/repogov/internal/risk"
)

const (
	// RunIDLayout formats run identifiers as UTC timestamps that are valid directory names.
	RunIDLayout = "2006-01-02T15-04-05Z"

	highestRiskLimitConstant = 25
)

// RunID derives the run identifier from the captured run time.
func RunID(now time.Time) string {
	return now.UTC().Format(RunIDLayout)
}

// RunSnapshot is everything one scan produced, handed to the artifact writer as a unit.
type RunSnapshot struct {
	RunID       string
	GeneratedAt time.Time
	TopN        int
	Enumeration inventory.EnumerationResult
	Ranked      []risk.RiskAssessment
	Detection   duplicates.Detection
	Sampling    duplicates.SampleResult
	BuildErrors []string
}

// RawDocument is the enumeration snapshot persisted as raw.json.
type RawDocument struct {
	RunID              string                       `json:"run_id"`
	GeneratedAt        time.Time                    `json:"generated_at"`
	Owner              string                       `json:"owner"`
	TokenPresent       bool                         `json:"token_present"`
	PublicCount        int                          `json:"public_count"`
	AuthenticatedCount int                          `json:"authenticated_count"`
	MergedTotal        int                          `json:"merged_total"`
	Repositories       []inventory.RepositoryRecord `json:"repositories"`
	Errors             []inventory.EnumerationError `json:"errors"`
}

// IntelligenceDocument is the scored snapshot persisted as intelligence.json.
type IntelligenceDocument struct {
	RunID             string                       `json:"run_id"`
	GeneratedAt       time.Time                    `json:"generated_at"`
	Owner             string                       `json:"owner"`
	Total             int                          `json:"total"`
	TopN              int                          `json:"top_n"`
	CategoryCounts    map[risk.Category]int        `json:"category_counts"`
	CriticalityCounts map[risk.Criticality]int     `json:"criticality_counts"`
	Repositories      []risk.RiskAssessment        `json:"repositories"`
	HighestRisk       []risk.RiskAssessment        `json:"highest_risk"`
	NameGroups        []duplicates.Group           `json:"name_groups"`
	DescriptionGroups []duplicates.Group           `json:"description_groups"`
	ContentGroups     []duplicates.Group           `json:"content_groups"`
	ContentSamples    []duplicates.ContentSample   `json:"content_samples"`
	SampleErrors      []duplicates.SampleError     `json:"sample_errors"`
	Errors            []inventory.EnumerationError `json:"errors"`
	BuildErrors       []string                     `json:"build_errors"`
}

// NewRawDocument builds the raw snapshot document.
func NewRawDocument(snapshot RunSnapshot) RawDocument {
	summary := snapshot.Enumeration.Summary
	return RawDocument{
		RunID:              snapshot.RunID,
		GeneratedAt:        snapshot.GeneratedAt.UTC(),
		Owner:              summary.Owner,
		TokenPresent:       summary.TokenPresent,
		PublicCount:        summary.PublicCount,
		AuthenticatedCount: summary.AuthenticatedCount,
		MergedTotal:        summary.MergedTotal,
		Repositories:       nonNil(snapshot.Enumeration.Records),
		Errors:             nonNil(snapshot.Enumeration.Errors),
	}
}

// NewIntelligenceDocument builds the scored snapshot document. Every category and criticality
// appears in the counts, including those with no repositories.
func NewIntelligenceDocument(snapshot RunSnapshot) IntelligenceDocument {
	categoryCounts := make(map[risk.Category]int, len(risk.Categories))
	for _, category := range risk.Categories {
		categoryCounts[category] = 0
	}
	criticalityCounts := make(map[risk.Criticality]int, len(risk.Criticalities))
	for _, criticality := range risk.Criticalities {
		criticalityCounts[criticality] = 0
	}
	for _, assessment := range snapshot.Ranked {
		categoryCounts[assessment.Category]++
		criticalityCounts[assessment.Criticality]++
	}

	return IntelligenceDocument{
		RunID:             snapshot.RunID,
		GeneratedAt:       snapshot.GeneratedAt.UTC(),
		Owner:             snapshot.Enumeration.Summary.Owner,
		Total:             len(snapshot.Ranked),
		TopN:              snapshot.TopN,
		CategoryCounts:    categoryCounts,
		CriticalityCounts: criticalityCounts,
		Repositories:      nonNil(snapshot.Ranked),
		HighestRisk:       nonNil(HighestRisk(snapshot.Ranked)),
		NameGroups:        nonNil(snapshot.Detection.NameGroups),
		DescriptionGroups: nonNil(snapshot.Detection.DescriptionGroups),
		ContentGroups:     nonNil(snapshot.Sampling.Groups),
		ContentSamples:    nonNil(snapshot.Sampling.Samples),
		SampleErrors:      nonNil(snapshot.Sampling.Errors),
		Errors:            nonNil(snapshot.Enumeration.Errors),
		BuildErrors:       nonNil(snapshot.BuildErrors),
	}
}

// HighestRisk returns the leading ranked assessments shown on the dashboard.
func HighestRisk(ranked []risk.RiskAssessment) []risk.RiskAssessment {
	if len(ranked) <= highestRiskLimitConstant {
		return ranked
	}
	return ranked[:highestRiskLimitConstant]
}

func nonNil[Element any](values []Element) []Element {
	if values == nil {
		return []Element{}
	}
	return values
}
