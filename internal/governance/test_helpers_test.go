package governance_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/repogov/internal/cleanup"
	"github.com/temirov/repogov/internal/duplicates"
	"github.com/temirov/repogov/internal/governance"
	"github.com/temirov/repogov/internal/inventory"
	"github.com/temirov/repogov/internal/report"
	"github.com/temirov/repogov/internal/repos/filesystem"
	"github.com/temirov/repogov/internal/repos/shared"
	"github.com/temirov/repogov/internal/risk"
	"github.com/temirov/repogov/internal/trash"
)

const (
	testOwnerConstant = "octo"
	testRunIDConstant = "2025-06-01T12-00-00Z"
)

var testNow = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

type stubEnumerator struct {
	records []inventory.RepositoryRecord
	errors  []inventory.EnumerationError
	owner   string
	token   string
}

func (enumerator *stubEnumerator) Enumerate(_ context.Context, owner string, credentials inventory.Credentials) inventory.EnumerationResult {
	enumerator.owner = owner
	enumerator.token = credentials.Token
	return inventory.EnumerationResult{
		Records: enumerator.records,
		Errors:  enumerator.errors,
		Summary: inventory.EnumerationSummary{
			Owner:        owner,
			TokenPresent: credentials.Present(),
			PublicCount:  len(enumerator.records),
			MergedTotal:  len(enumerator.records),
		},
	}
}

type stubSampler struct {
	window []string
	errors []duplicates.SampleError
}

func (sampler *stubSampler) Sample(_ context.Context, _ string, _ string, window []risk.RiskAssessment) duplicates.SampleResult {
	for _, assessment := range window {
		sampler.window = append(sampler.window, assessment.Repository.Name)
	}
	return duplicates.SampleResult{Errors: sampler.errors}
}

type stubPlanner struct {
	cohort     string
	candidates []string
	outputRoot string
}

func (planner *stubPlanner) PlanAll(_ context.Context, cohort string, candidates []risk.RiskAssessment) []cleanup.RepositoryPlan {
	planner.cohort = cohort
	plans := make([]cleanup.RepositoryPlan, 0, len(candidates))
	for _, candidate := range candidates {
		planner.candidates = append(planner.candidates, candidate.Repository.Name)
		plans = append(plans, cleanup.RepositoryPlan{
			Repository:      candidate.Repository.Name,
			Status:          cleanup.PlanStatusPlanned,
			Plan:            cleanup.MoveListPlan{Paths: []string{"build"}},
			MoveListPath:    filepath.Join(planner.outputRoot, cohort, candidate.Repository.Name+"__move-list.txt"),
			ApplyScriptPath: filepath.Join(planner.outputRoot, cohort, candidate.Repository.Name+"__apply.sh"),
		})
	}
	return plans
}

type stubApplier struct {
	cohorts []string
	failure error
}

func (applier *stubApplier) ApplyCohort(_ context.Context, cohort string) (trash.ApplyReport, error) {
	applier.cohorts = append(applier.cohorts, cohort)
	if applier.failure != nil {
		return trash.ApplyReport{}, applier.failure
	}
	return trash.ApplyReport{
		Cohort:      cohort,
		GeneratedAt: testNow,
		Policy:      "NO DELETE. MOVE ONLY to TRASH.",
		Applied:     1,
		Entries:     []trash.ApplyReportEntry{{Repo: "alpha", Status: trash.StatusApplied, Moved: 1}},
	}, nil
}

type recordingPublisher struct {
	mutex   sync.Mutex
	runIDs  []string
	files   []string
	failure error
}

func (publisher *recordingPublisher) Publish(_ context.Context, runID string, filePaths []string) ([]string, error) {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	publisher.runIDs = append(publisher.runIDs, runID)
	publisher.files = append(publisher.files, filePaths...)
	if publisher.failure != nil {
		return nil, publisher.failure
	}
	objects := make([]string, 0, len(filePaths))
	for _, filePath := range filePaths {
		objects = append(objects, runID+"/"+filepath.Base(filePath))
	}
	return objects, nil
}

var errPublishUnavailable = errors.New("bucket unavailable")

func timePointer(value time.Time) *time.Time {
	return &value
}

// fixtureRecords yields a ranking of alpha (stale, private, no description) ahead of the rest.
func fixtureRecords() []inventory.RepositoryRecord {
	return []inventory.RepositoryRecord{
		{Name: "alpha", IsPrivate: true, LastActivityAt: timePointer(testNow.AddDate(0, 0, -200))},
		{Name: "bravo", Description: "service", LastActivityAt: timePointer(testNow.AddDate(0, 0, -60))},
		{Name: "charlie", Description: "library", LastActivityAt: timePointer(testNow.AddDate(0, 0, -5))},
	}
}

type serviceFixture struct {
	stateRoot  string
	enumerator *stubEnumerator
	sampler    *stubSampler
	planner    *stubPlanner
	applier    *stubApplier
	publisher  *recordingPublisher
}

func newServiceFixture(testInstance *testing.T) *serviceFixture {
	testInstance.Helper()
	stateRoot := testInstance.TempDir()
	return &serviceFixture{
		stateRoot:  stateRoot,
		enumerator: &stubEnumerator{records: fixtureRecords()},
		sampler:    &stubSampler{},
		planner:    &stubPlanner{outputRoot: filepath.Join(stateRoot, "move-lists")},
		applier:    &stubApplier{},
		publisher:  &recordingPublisher{},
	}
}

func (fixture *serviceFixture) dependencies(testInstance *testing.T, settings governance.Settings) governance.ServiceDependencies {
	testInstance.Helper()
	writer, writerError := report.NewArtifactWriter(filesystem.OSFileSystem{}, fixture.stateRoot)
	require.NoError(testInstance, writerError)
	return governance.ServiceDependencies{
		Clock:     shared.FixedClock{Instant: testNow},
		Source:    fixture.enumerator,
		Sampler:   fixture.sampler,
		Planner:   fixture.planner,
		Applier:   fixture.applier,
		Writer:    writer,
		Publisher: fixture.publisher,
		Settings:  settings,
	}
}
