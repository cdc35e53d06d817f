package governance_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/repogov/internal/duplicates"
	"github.com/temirov/repogov/internal/governance"
	"github.com/temirov/repogov/internal/risk"
)

func TestNewServiceValidatesDependencies(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance)
	complete := fixture.dependencies(testInstance, governance.Settings{Owner: testOwnerConstant})

	testCases := []struct {
		name          string
		mutate        func(dependencies *governance.ServiceDependencies)
		expectedError error
	}{
		{
			name:          "missing_source",
			mutate:        func(dependencies *governance.ServiceDependencies) { dependencies.Source = nil },
			expectedError: governance.ErrSourceNotConfigured,
		},
		{
			name:          "missing_writer",
			mutate:        func(dependencies *governance.ServiceDependencies) { dependencies.Writer = nil },
			expectedError: governance.ErrWriterNotConfigured,
		},
		{
			name:   "optional_stages_absent",
			mutate: func(dependencies *governance.ServiceDependencies) { dependencies.Sampler, dependencies.Planner, dependencies.Applier = nil, nil, nil },
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			dependencies := complete
			testCase.mutate(&dependencies)
			service, serviceError := governance.NewService(dependencies)
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, serviceError, testCase.expectedError)
				require.Nil(testInstance, service)
				return
			}
			require.NoError(testInstance, serviceError)
			require.NotNil(testInstance, service)
		})
	}
}

func TestScanRanksSamplesAndWritesArtifacts(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance)
	fixture.sampler.errors = []duplicates.SampleError{{Repository: "alpha", Message: "no well-known file at the repository root"}}
	service, serviceError := governance.NewService(fixture.dependencies(testInstance, governance.Settings{Owner: testOwnerConstant, Token: "secret", SamplingTopN: 2}))
	require.NoError(testInstance, serviceError)

	scan, scanError := service.Scan(context.Background())
	require.NoError(testInstance, scanError)

	require.Equal(testInstance, testRunIDConstant, scan.RunID)
	require.Equal(testInstance, testOwnerConstant, fixture.enumerator.owner)
	require.Equal(testInstance, "secret", fixture.enumerator.token)
	require.Equal(testInstance, []string{"alpha", "bravo"}, fixture.sampler.window)

	rankedNames := make([]string, 0, len(scan.Snapshot.Ranked))
	for _, assessment := range scan.Snapshot.Ranked {
		rankedNames = append(rankedNames, assessment.Repository.Name)
	}
	require.Equal(testInstance, []string{"alpha", "bravo", "charlie"}, rankedNames)
	require.Equal(testInstance, 4, scan.Snapshot.Ranked[0].RiskScore)
	require.Equal(testInstance, risk.CategoryDuplicateRisk, scan.Snapshot.Ranked[0].Category)
	require.Equal(testInstance, []string{"alpha: content sample failed: no well-known file at the repository root"}, scan.Snapshot.BuildErrors)

	require.Equal(testInstance, filepath.Join(fixture.stateRoot, "governance", testRunIDConstant), scan.Artifacts.Directory)
	for _, artifactPath := range scan.Artifacts.Paths() {
		require.FileExists(testInstance, artifactPath)
	}
}

func TestRunPlansTopNIntoRunCohort(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance)
	output := &bytes.Buffer{}
	dependencies := fixture.dependencies(testInstance, governance.Settings{Owner: testOwnerConstant, TopN: 2, SamplingTopN: 3})
	dependencies.Output = output
	service, serviceError := governance.NewService(dependencies)
	require.NoError(testInstance, serviceError)

	result, runError := service.Run(context.Background(), governance.RunOptions{Command: "plan", Plan: true})
	require.NoError(testInstance, runError)

	require.NotNil(testInstance, result.Plan)
	require.Nil(testInstance, result.Apply)
	require.Equal(testInstance, testRunIDConstant, result.Plan.Cohort)
	require.Equal(testInstance, testRunIDConstant, fixture.planner.cohort)
	require.Equal(testInstance, []string{"alpha", "bravo"}, fixture.planner.candidates)
	require.Empty(testInstance, fixture.applier.cohorts)

	require.Contains(testInstance, output.String(), "REPOSITORY")
	require.Contains(testInstance, output.String(), "PLANNED")
	require.Contains(testInstance, output.String(), "3 repositories, 0 errors")

	runLog, readError := os.ReadFile(result.RunLogPath)
	require.NoError(testInstance, readError)
	require.Contains(testInstance, string(runLog), "- "+testRunIDConstant+" | repogov plan")

	require.Equal(testInstance, []string{testRunIDConstant}, fixture.publisher.runIDs)
	require.Contains(testInstance, fixture.publisher.files, filepath.Join(fixture.stateRoot, "move-lists", testRunIDConstant, "alpha__move-list.txt"))
	require.Contains(testInstance, fixture.publisher.files, filepath.Join(fixture.stateRoot, "move-lists", testRunIDConstant, "bravo__apply.sh"))
	require.Len(testInstance, result.Published, len(fixture.publisher.files))
}

func TestRunAppliesNamedCohort(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance)
	service, serviceError := governance.NewService(fixture.dependencies(testInstance, governance.Settings{Owner: testOwnerConstant, TopN: 1}))
	require.NoError(testInstance, serviceError)

	result, runError := service.Run(context.Background(), governance.RunOptions{Command: "run", Plan: true, Apply: true, Cohort: "spring"})
	require.NoError(testInstance, runError)

	require.Equal(testInstance, "spring", fixture.planner.cohort)
	require.Equal(testInstance, []string{"spring"}, fixture.applier.cohorts)
	require.NotNil(testInstance, result.Apply)
	require.Equal(testInstance, filepath.Join(fixture.stateRoot, "apply-reports", testRunIDConstant, "apply_report.json"), result.Apply.ReportPath)
	require.FileExists(testInstance, result.Apply.ReportPath)
	require.Contains(testInstance, fixture.publisher.files, result.Apply.ReportPath)
}

func TestRunApplyWithoutScan(testInstance *testing.T) {
	testCases := []struct {
		name           string
		cohort         string
		applierFailure error
		expectedError  error
	}{
		{
			name:   "applies_cohort",
			cohort: "spring",
		},
		{
			name:          "cohort_required",
			cohort:        "  ",
			expectedError: governance.ErrCohortRequired,
		},
		{
			name:           "applier_failure",
			cohort:         "spring",
			applierFailure: errors.New("decision store unreadable"),
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fixture := newServiceFixture(testInstance)
			fixture.applier.failure = testCase.applierFailure
			service, serviceError := governance.NewService(fixture.dependencies(testInstance, governance.Settings{Owner: testOwnerConstant}))
			require.NoError(testInstance, serviceError)

			result, applyError := service.RunApply(context.Background(), "apply", testCase.cohort)
			switch {
			case testCase.expectedError != nil:
				require.ErrorIs(testInstance, applyError, testCase.expectedError)
				require.Empty(testInstance, fixture.applier.cohorts)
			case testCase.applierFailure != nil:
				require.ErrorIs(testInstance, applyError, testCase.applierFailure)
				require.NoFileExists(testInstance, filepath.Join(fixture.stateRoot, "apply-reports", testRunIDConstant, "apply_report.json"))
			default:
				require.NoError(testInstance, applyError)
				require.Equal(testInstance, testRunIDConstant, result.Scan.RunID)
				require.Empty(testInstance, fixture.enumerator.owner)
				require.FileExists(testInstance, result.Apply.ReportPath)
				require.FileExists(testInstance, result.RunLogPath)
			}
		})
	}
}

func TestRunRequiresConfiguredStages(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance)
	dependencies := fixture.dependencies(testInstance, governance.Settings{Owner: testOwnerConstant})
	dependencies.Planner = nil
	dependencies.Applier = nil
	service, serviceError := governance.NewService(dependencies)
	require.NoError(testInstance, serviceError)

	_, planError := service.Run(context.Background(), governance.RunOptions{Command: "plan", Plan: true})
	require.ErrorIs(testInstance, planError, governance.ErrPlannerNotConfigured)

	_, applyError := service.RunApply(context.Background(), "apply", "spring")
	require.ErrorIs(testInstance, applyError, governance.ErrApplierNotConfigured)
}

func TestRunToleratesPublishFailure(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance)
	fixture.publisher.failure = errPublishUnavailable
	service, serviceError := governance.NewService(fixture.dependencies(testInstance, governance.Settings{Owner: testOwnerConstant}))
	require.NoError(testInstance, serviceError)

	result, runError := service.Run(context.Background(), governance.RunOptions{Command: "scan"})
	require.NoError(testInstance, runError)
	require.Empty(testInstance, result.Published)
	require.Nil(testInstance, result.Plan)
	require.Empty(testInstance, fixture.planner.candidates)
	require.Len(testInstance, fixture.publisher.files, 4)
}

func TestScanFailsWhenArtifactsCannotBeWritten(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance)
	blockingFile := filepath.Join(fixture.stateRoot, "governance")
	require.NoError(testInstance, os.WriteFile(blockingFile, []byte("not a directory"), 0o644))

	service, serviceError := governance.NewService(fixture.dependencies(testInstance, governance.Settings{Owner: testOwnerConstant}))
	require.NoError(testInstance, serviceError)

	_, scanError := service.Scan(context.Background())
	require.Error(testInstance, scanError)
	require.Contains(testInstance, scanError.Error(), "unable to write run artifacts")
}
