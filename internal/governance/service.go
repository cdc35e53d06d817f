package governance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/repogov/internal/cleanup"
	"github.com/temirov/repogov/internal/duplicates"
	"github.com/temirov/repogov/internal/inventory"
	"github.com/temirov/repogov/internal/report"
	"github.com/temirov/repogov/internal/repos/shared"
	"github.com/temirov/repogov/internal/risk"
	"github.com/temirov/repogov/internal/trash"
)

const (
	sourceNotConfiguredMessageConstant    = "repository source not configured"
	writerNotConfiguredMessageConstant    = "artifact writer not configured"
	plannerNotConfiguredMessageConstant   = "cleanup planner not configured"
	applierNotConfiguredMessageConstant   = "move-only executor not configured"
	cohortRequiredMessageConstant         = "a cohort is required to apply move lists"
	writeRunErrorTemplateConstant         = "unable to write run artifacts: %w"
	applyCohortErrorTemplateConstant      = "unable to apply cohort %s: %w"
	writeApplyReportErrorTemplateConstant = "unable to write apply report: %w"
	appendRunLogErrorTemplateConstant     = "unable to append run log: %w"
	sampleBuildErrorTemplateConstant      = "%s: content sample failed: %s"
	logMessageScanCompletedConstant       = "scan completed"
	logMessagePlanCompletedConstant       = "planning completed"
	logMessageApplyCompletedConstant      = "apply completed"
	logMessagePublishFailedConstant       = "artifact publish failed"
	logMessagePublishCompletedConstant    = "artifacts published"
	logMessageRunLogAppendedConstant      = "run log appended"
	logFieldRunIDConstant                 = "run_id"
	logFieldOwnerConstant                 = "owner"
	logFieldTotalConstant                 = "total"
	logFieldErrorsConstant                = "errors"
	logFieldCohortConstant                = "cohort"
	logFieldPlannedConstant               = "planned"
	logFieldAppliedConstant               = "applied"
	logFieldDirectoryConstant             = "directory"
	logFieldObjectsConstant               = "objects"
	logFieldStatusesConstant              = "statuses"
	logFieldPathConstant                  = "path"
	planStatusCountSeparatorConstant      = ", "
	planStatusCountTemplateConstant       = "%s=%d"
)

var (
	// ErrSourceNotConfigured indicates the service was constructed without a repository source.
	ErrSourceNotConfigured = errors.New(sourceNotConfiguredMessageConstant)
	// ErrWriterNotConfigured indicates the service was constructed without an artifact writer.
	ErrWriterNotConfigured = errors.New(writerNotConfiguredMessageConstant)
	// ErrPlannerNotConfigured indicates planning was requested without a planner.
	ErrPlannerNotConfigured = errors.New(plannerNotConfiguredMessageConstant)
	// ErrApplierNotConfigured indicates apply was requested without an executor.
	ErrApplierNotConfigured = errors.New(applierNotConfiguredMessageConstant)
	// ErrCohortRequired indicates apply was requested without naming a cohort.
	ErrCohortRequired = errors.New(cohortRequiredMessageConstant)
)

// RepositoryEnumerator lists an owner's repositories.
type RepositoryEnumerator interface {
	Enumerate(executionContext context.Context, owner string, credentials inventory.Credentials) inventory.EnumerationResult
}

// ContentSampler hashes one well-known file for each repository in the window.
type ContentSampler interface {
	Sample(executionContext context.Context, owner string, token string, window []risk.RiskAssessment) duplicates.SampleResult
}

// CohortPlanner plans ranked candidates into a cohort.
type CohortPlanner interface {
	PlanAll(executionContext context.Context, cohort string, candidates []risk.RiskAssessment) []cleanup.RepositoryPlan
}

// CohortApplier applies a cohort's move lists.
type CohortApplier interface {
	ApplyCohort(executionContext context.Context, cohort string) (trash.ApplyReport, error)
}

// ArtifactPublisher mirrors run outputs to remote storage.
type ArtifactPublisher interface {
	Publish(executionContext context.Context, runID string, filePaths []string) ([]string, error)
}

// Settings carries the run parameters shared by every stage.
type Settings struct {
	Owner                string
	Token                string
	TopN                 int
	SamplingTopN         int
	CriticalRepositories []string
}

// ServiceDependencies supplies the collaborators of the governance pipeline. Sampler, Planner,
// Applier and Publisher are optional; a command that needs a missing stage fails with a sentinel.
type ServiceDependencies struct {
	Logger    *zap.Logger
	Clock     shared.Clock
	Source    RepositoryEnumerator
	Sampler   ContentSampler
	Planner   CohortPlanner
	Applier   CohortApplier
	Writer    *report.ArtifactWriter
	Publisher ArtifactPublisher
	Output    io.Writer
	Settings  Settings
}

// ScanResult is the outcome of enumeration, scoring and duplicate detection for one run.
type ScanResult struct {
	RunID     string
	Snapshot  report.RunSnapshot
	Artifacts report.RunArtifacts
}

// PlanResult is the outcome of planning the top-N into a cohort.
type PlanResult struct {
	Cohort string
	Plans  []cleanup.RepositoryPlan
}

// ApplyResult is the outcome of applying a cohort.
type ApplyResult struct {
	Report     trash.ApplyReport
	ReportPath string
}

// RunOptions selects the stages executed after the scan.
type RunOptions struct {
	Command string
	Plan    bool
	Apply   bool
	Cohort  string
}

// RunResult collects every stage outcome of one invocation.
type RunResult struct {
	Scan       ScanResult
	Plan       *PlanResult
	Apply      *ApplyResult
	RunLogPath string
	Published  []string
}

// Service runs the governance pipeline: scan, plan and apply.
type Service struct {
	dependencies ServiceDependencies
}

// NewService validates dependencies and constructs a Service.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Source == nil {
		return nil, ErrSourceNotConfigured
	}
	if dependencies.Writer == nil {
		return nil, ErrWriterNotConfigured
	}
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	if dependencies.Clock == nil {
		dependencies.Clock = shared.SystemClock{}
	}
	if dependencies.Output == nil {
		dependencies.Output = io.Discard
	}
	return &Service{dependencies: dependencies}, nil
}

// Scan enumerates, scores, detects duplicates, samples the top of the ranking and writes the run
// artifacts. Failing to write the artifacts is the only error.
func (service *Service) Scan(executionContext context.Context) (ScanResult, error) {
	settings := service.dependencies.Settings
	now := service.dependencies.Clock.Now().UTC()
	runID := report.RunID(now)

	enumeration := service.dependencies.Source.Enumerate(executionContext, settings.Owner, inventory.Credentials{Token: settings.Token})

	classifier := risk.NewClassifier(now, risk.Options{CriticalRepositories: settings.CriticalRepositories})
	detection := duplicates.Detect(enumeration.Records)
	ranked := duplicates.Rank(duplicates.Apply(classifier.ClassifyAll(enumeration.Records), detection))

	snapshot := report.RunSnapshot{
		RunID:       runID,
		GeneratedAt: now,
		TopN:        settings.SamplingTopN,
		Enumeration: enumeration,
		Ranked:      ranked,
		Detection:   detection,
	}

	if service.dependencies.Sampler != nil {
		snapshot.Sampling = service.dependencies.Sampler.Sample(executionContext, settings.Owner, settings.Token, topOf(ranked, settings.SamplingTopN))
		for _, sampleError := range snapshot.Sampling.Errors {
			snapshot.BuildErrors = append(snapshot.BuildErrors, fmt.Sprintf(sampleBuildErrorTemplateConstant, sampleError.Repository, sampleError.Message))
		}
	}

	artifacts, writeError := service.dependencies.Writer.WriteRun(snapshot)
	if writeError != nil {
		return ScanResult{}, fmt.Errorf(writeRunErrorTemplateConstant, writeError)
	}

	service.dependencies.Logger.Info(logMessageScanCompletedConstant,
		zap.String(logFieldRunIDConstant, runID),
		zap.String(logFieldOwnerConstant, settings.Owner),
		zap.Int(logFieldTotalConstant, len(ranked)),
		zap.Int(logFieldErrorsConstant, len(enumeration.Errors)),
		zap.String(logFieldDirectoryConstant, artifacts.Directory),
	)
	return ScanResult{RunID: runID, Snapshot: snapshot, Artifacts: artifacts}, nil
}

// Plan plans the top-N ranked repositories of a scan into a cohort. An empty cohort defaults to the
// scan's run identifier.
func (service *Service) Plan(executionContext context.Context, scan ScanResult, cohort string) (PlanResult, error) {
	if service.dependencies.Planner == nil {
		return PlanResult{}, ErrPlannerNotConfigured
	}
	resolvedCohort := strings.TrimSpace(cohort)
	if len(resolvedCohort) == 0 {
		resolvedCohort = scan.RunID
	}

	candidates := topOf(scan.Snapshot.Ranked, service.dependencies.Settings.TopN)
	plans := service.dependencies.Planner.PlanAll(executionContext, resolvedCohort, candidates)

	service.dependencies.Logger.Info(logMessagePlanCompletedConstant,
		zap.String(logFieldCohortConstant, resolvedCohort),
		zap.Int(logFieldPlannedConstant, len(plans)),
		zap.String(logFieldStatusesConstant, summarizePlanStatuses(plans)),
	)
	return PlanResult{Cohort: resolvedCohort, Plans: plans}, nil
}

// Apply runs the move-only executor over a cohort and persists the apply report under the run.
func (service *Service) Apply(executionContext context.Context, runID string, cohort string) (ApplyResult, error) {
	if service.dependencies.Applier == nil {
		return ApplyResult{}, ErrApplierNotConfigured
	}
	trimmedCohort := strings.TrimSpace(cohort)
	if len(trimmedCohort) == 0 {
		return ApplyResult{}, ErrCohortRequired
	}

	applyReport, applyError := service.dependencies.Applier.ApplyCohort(executionContext, trimmedCohort)
	if applyError != nil {
		return ApplyResult{}, fmt.Errorf(applyCohortErrorTemplateConstant, trimmedCohort, applyError)
	}

	reportPath, writeError := service.dependencies.Writer.WriteApplyReport(runID, applyReport)
	if writeError != nil {
		return ApplyResult{}, fmt.Errorf(writeApplyReportErrorTemplateConstant, writeError)
	}

	service.dependencies.Logger.Info(logMessageApplyCompletedConstant,
		zap.String(logFieldCohortConstant, trimmedCohort),
		zap.Int(logFieldAppliedConstant, applyReport.Applied),
		zap.String(logFieldPathConstant, reportPath),
	)
	return ApplyResult{Report: applyReport, ReportPath: reportPath}, nil
}

// Run scans and then plans and applies as requested, printing summary tables, appending the run log
// and mirroring outputs when a publisher is configured.
func (service *Service) Run(executionContext context.Context, options RunOptions) (RunResult, error) {
	scan, scanError := service.Scan(executionContext)
	if scanError != nil {
		return RunResult{}, scanError
	}

	result := RunResult{Scan: scan}
	outputs := scan.Artifacts.Paths()
	report.WriteRiskTable(service.dependencies.Output, scan.Snapshot.Ranked, service.dependencies.Settings.TopN, len(scan.Snapshot.Enumeration.Errors))

	cohort := strings.TrimSpace(options.Cohort)
	if options.Plan || options.Apply {
		planResult, planError := service.Plan(executionContext, scan, cohort)
		if planError != nil {
			return result, planError
		}
		result.Plan = &planResult
		cohort = planResult.Cohort
		report.WritePlanTable(service.dependencies.Output, planResult.Plans)
		outputs = append(outputs, planOutputs(planResult.Plans)...)
	}

	if options.Apply {
		applyResult, applyError := service.Apply(executionContext, scan.RunID, cohort)
		if applyError != nil {
			return result, applyError
		}
		result.Apply = &applyResult
		report.WriteApplyTable(service.dependencies.Output, applyResult.Report)
		outputs = append(outputs, applyResult.ReportPath)
	}

	runLogPath, runLogError := service.appendRunLog(scan.RunID, options.Command, len(scan.Snapshot.Ranked), scan.Snapshot.Enumeration.Summary.TokenPresent, outputs)
	if runLogError != nil {
		return result, runLogError
	}
	result.RunLogPath = runLogPath
	result.Published = service.publish(executionContext, scan.RunID, outputs)
	return result, nil
}

// RunApply applies an existing cohort without scanning.
func (service *Service) RunApply(executionContext context.Context, command string, cohort string) (RunResult, error) {
	runID := report.RunID(service.dependencies.Clock.Now())
	applyResult, applyError := service.Apply(executionContext, runID, cohort)
	if applyError != nil {
		return RunResult{}, applyError
	}
	report.WriteApplyTable(service.dependencies.Output, applyResult.Report)

	outputs := []string{applyResult.ReportPath}
	runLogPath, runLogError := service.appendRunLog(runID, command, len(applyResult.Report.Entries), len(strings.TrimSpace(service.dependencies.Settings.Token)) > 0, outputs)
	if runLogError != nil {
		return RunResult{}, runLogError
	}

	return RunResult{
		Scan:       ScanResult{RunID: runID},
		Apply:      &applyResult,
		RunLogPath: runLogPath,
		Published:  service.publish(executionContext, runID, outputs),
	}, nil
}

func (service *Service) appendRunLog(runID string, command string, total int, tokenPresent bool, outputs []string) (string, error) {
	runLogPath, appendError := service.dependencies.Writer.AppendRunLog(report.RunLogEntry{
		RunID:        runID,
		Command:      command,
		Total:        total,
		TopN:         service.dependencies.Settings.TopN,
		TokenPresent: tokenPresent,
		Outputs:      outputs,
	})
	if appendError != nil {
		return "", fmt.Errorf(appendRunLogErrorTemplateConstant, appendError)
	}
	service.dependencies.Logger.Debug(logMessageRunLogAppendedConstant, zap.String(logFieldPathConstant, runLogPath))
	return runLogPath, nil
}

// publish mirrors outputs; failures are logged and never fail the run.
func (service *Service) publish(executionContext context.Context, runID string, outputs []string) []string {
	if service.dependencies.Publisher == nil {
		return nil
	}
	objects, publishError := service.dependencies.Publisher.Publish(executionContext, runID, outputs)
	if publishError != nil {
		service.dependencies.Logger.Warn(logMessagePublishFailedConstant, zap.String(logFieldRunIDConstant, runID), zap.Error(publishError))
		return objects
	}
	service.dependencies.Logger.Info(logMessagePublishCompletedConstant, zap.String(logFieldRunIDConstant, runID), zap.Int(logFieldObjectsConstant, len(objects)))
	return objects
}

func topOf(ranked []risk.RiskAssessment, limit int) []risk.RiskAssessment {
	if limit <= 0 || limit >= len(ranked) {
		return ranked
	}
	return ranked[:limit]
}

func planOutputs(plans []cleanup.RepositoryPlan) []string {
	var outputs []string
	for _, plan := range plans {
		if plan.Status != cleanup.PlanStatusPlanned {
			continue
		}
		outputs = append(outputs, plan.MoveListPath, plan.ApplyScriptPath)
	}
	return outputs
}

func summarizePlanStatuses(plans []cleanup.RepositoryPlan) string {
	counts := make(map[cleanup.PlanStatus]int)
	for _, plan := range plans {
		counts[plan.Status]++
	}
	ordered := []cleanup.PlanStatus{cleanup.PlanStatusPlanned, cleanup.PlanStatusEmpty, cleanup.PlanStatusSkippedExisting, cleanup.PlanStatusFailed}
	parts := make([]string, 0, len(ordered))
	for _, status := range ordered {
		parts = append(parts, fmt.Sprintf(planStatusCountTemplateConstant, status, counts[status]))
	}
	return strings.Join(parts, planStatusCountSeparatorConstant)
}
