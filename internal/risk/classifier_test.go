package risk_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/repogov/internal/inventory"
	"github.com/temirov/repogov/internal/risk"
)

var testReferenceTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func daysBefore(days int) *time.Time {
	activity := testReferenceTime.Add(-time.Duration(days) * 24 * time.Hour)
	return &activity
}

func TestClassifierScoresRepositories(testInstance *testing.T) {
	testCases := []struct {
		name                string
		record              inventory.RepositoryRecord
		expectedAge         int
		expectedScore       int
		expectedCategory    risk.Category
		expectedCriticality risk.Criticality
	}{
		{
			name:                "private_stale_without_description",
			record:              inventory.RepositoryRecord{Name: "alpha", IsPrivate: true, LastActivityAt: daysBefore(200)},
			expectedAge:         200,
			expectedScore:       4,
			expectedCategory:    risk.CategoryDuplicateRisk,
			expectedCriticality: risk.CriticalityLow,
		},
		{
			name:                "fresh_public_described",
			record:              inventory.RepositoryRecord{Name: "fresh", Description: "docs", LastActivityAt: daysBefore(3)},
			expectedAge:         3,
			expectedScore:       0,
			expectedCategory:    risk.CategorySafe,
			expectedCriticality: risk.CriticalityMedium,
		},
		{
			name:                "aging_window_boundary",
			record:              inventory.RepositoryRecord{Name: "aging", Description: "x", LastActivityAt: daysBefore(46)},
			expectedAge:         46,
			expectedScore:       1,
			expectedCategory:    risk.CategorySafe,
			expectedCriticality: risk.CriticalityLow,
		},
		{
			name:                "exactly_forty_five_days",
			record:              inventory.RepositoryRecord{Name: "steady", Description: "x", LastActivityAt: daysBefore(45)},
			expectedAge:         45,
			expectedScore:       0,
			expectedCategory:    risk.CategorySafe,
			expectedCriticality: risk.CriticalityLow,
		},
		{
			name:                "exactly_one_hundred_twenty_days",
			record:              inventory.RepositoryRecord{Name: "older", LastActivityAt: daysBefore(120)},
			expectedAge:         120,
			expectedScore:       2,
			expectedCategory:    risk.CategoryReview,
			expectedCriticality: risk.CriticalityLow,
		},
		{
			name:                "missing_activity_uses_sentinel",
			record:              inventory.RepositoryRecord{Name: "ghost"},
			expectedAge:         risk.MissingActivityAgeDays,
			expectedScore:       3,
			expectedCategory:    risk.CategoryReview,
			expectedCriticality: risk.CriticalityLow,
		},
		{
			name:                "core_name_is_high",
			record:              inventory.RepositoryRecord{Name: "Platform-Core", Description: "x", LastActivityAt: daysBefore(400)},
			expectedAge:         400,
			expectedScore:       2,
			expectedCategory:    risk.CategoryReview,
			expectedCriticality: risk.CriticalityHigh,
		},
		{
			name:                "allow_listed_is_high",
			record:              inventory.RepositoryRecord{Name: "Termux", Description: "x", LastActivityAt: daysBefore(10)},
			expectedAge:         10,
			expectedScore:       0,
			expectedCategory:    risk.CategorySafe,
			expectedCriticality: risk.CriticalityHigh,
		},
		{
			name:                "future_activity_is_zero_days",
			record:              inventory.RepositoryRecord{Name: "ahead", Description: "x", LastActivityAt: daysBefore(-2)},
			expectedAge:         0,
			expectedScore:       0,
			expectedCategory:    risk.CategorySafe,
			expectedCriticality: risk.CriticalityMedium,
		},
	}

	classifier := risk.NewClassifier(testReferenceTime, risk.Options{CriticalRepositories: []string{" termux ", ""}})
	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			assessment := classifier.Classify(testCase.record)
			require.Equal(testInstance, testCase.expectedAge, assessment.AgeDays)
			require.Equal(testInstance, testCase.expectedScore, assessment.RiskScore)
			require.Equal(testInstance, testCase.expectedCategory, assessment.Category)
			require.Equal(testInstance, testCase.expectedCriticality, assessment.Criticality)
			require.GreaterOrEqual(testInstance, assessment.RiskScore, 0)

			reasonTotal := 0
			for _, reason := range assessment.Reasons {
				reasonTotal += reason.Points
			}
			require.Equal(testInstance, assessment.RiskScore, reasonTotal)
			require.Equal(testInstance, testCase.record, assessment.Repository)
		})
	}
}

func TestCategoryForScoreThresholds(testInstance *testing.T) {
	testCases := []struct {
		score    int
		expected risk.Category
	}{
		{score: 0, expected: risk.CategorySafe},
		{score: 1, expected: risk.CategorySafe},
		{score: 2, expected: risk.CategoryReview},
		{score: 3, expected: risk.CategoryReview},
		{score: 4, expected: risk.CategoryDuplicateRisk},
		{score: 5, expected: risk.CategoryDuplicateRisk},
		{score: 6, expected: risk.CategoryArchiveStrong},
		{score: 11, expected: risk.CategoryArchiveStrong},
	}

	for _, testCase := range testCases {
		testInstance.Run(string(testCase.expected), func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, risk.CategoryForScore(testCase.score))
		})
	}
}

func TestWithAdjustmentLeavesOriginalUntouched(testInstance *testing.T) {
	classifier := risk.NewClassifier(testReferenceTime, risk.Options{})
	original := classifier.Classify(inventory.RepositoryRecord{Name: "alpha", IsPrivate: true, LastActivityAt: daysBefore(200)})

	adjusted := original.WithAdjustment(risk.RuleDescriptionDuplicate, 4)
	require.Equal(testInstance, 8, adjusted.RiskScore)
	require.Equal(testInstance, risk.CategoryArchiveStrong, adjusted.Category)
	require.Len(testInstance, adjusted.Reasons, len(original.Reasons)+1)

	require.Equal(testInstance, 4, original.RiskScore)
	require.Equal(testInstance, risk.CategoryDuplicateRisk, original.Category)
	require.Len(testInstance, original.Reasons, 3)
}

func TestClassifyAllIsDeterministic(testInstance *testing.T) {
	records := []inventory.RepositoryRecord{
		{Name: "b", LastActivityAt: daysBefore(70)},
		{Name: "a", IsPrivate: true},
	}
	first := risk.NewClassifier(testReferenceTime, risk.Options{}).ClassifyAll(records)
	second := risk.NewClassifier(testReferenceTime, risk.Options{}).ClassifyAll(records)
	require.Equal(testInstance, first, second)
	require.Equal(testInstance, "b", first[0].Repository.Name)
}
