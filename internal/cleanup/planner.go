package cleanup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/repogov/internal/decisions"
	"github.com/temirov/repogov/internal/repos/shared"
	"github.com/temirov/repogov/internal/risk"
)

const (
	moveListFileSuffixConstant      = "__move-list.txt"
	applyScriptFileSuffixConstant   = "__apply.sh"
	timestampLayoutConstant         = time.RFC3339
	moveListPermissionsConstant     = fs.FileMode(0o644)
	applyScriptPermissionsConstant  = fs.FileMode(0o755)
	outputDirectoryPermissions      = fs.FileMode(0o755)
	defaultPlannerWorkersConstant   = 4
	treeSourceMissingMessage        = "tree source not configured"
	decisionStoreMissingMessage     = "decision store not configured"
	fileSystemMissingMessage        = "file system not configured"
	outputRootMissingMessage        = "move list output root not configured"
	lookupErrorTemplateConstant     = "unable to look up decision for %s: %w"
	outputDirectoryErrorTemplate    = "unable to create move list directory %s: %w"
	moveListWriteErrorTemplate      = "unable to write move list %s: %w"
	applyScriptRenderErrorTemplate  = "unable to render apply script for %s: %w"
	applyScriptWriteErrorTemplate   = "unable to write apply script %s: %w"
	recordErrorTemplateConstant     = "unable to record decision for %s: %w"
	logMessagePlanSkippedConstant   = "decision exists; repository skipped"
	logMessagePlanCreatedConstant   = "move list planned"
	logMessagePlanFailedConstant    = "planning failed"
	logFieldRepositoryNameConstant  = "repository"
	logFieldCohortConstant          = "cohort"
	logFieldMoveCountConstant       = "moves"
	logFieldDecisionOutcomeConstant = "decision"
	logFieldDecisionIDConstant      = "decision_id"
)

var (
	// ErrTreeSourceNotConfigured indicates a planner without a tree source.
	ErrTreeSourceNotConfigured = errors.New(treeSourceMissingMessage)
	// ErrDecisionStoreNotConfigured indicates a planner without a decision store.
	ErrDecisionStoreNotConfigured = errors.New(decisionStoreMissingMessage)
	// ErrFileSystemNotConfigured indicates a planner without a file system.
	ErrFileSystemNotConfigured = errors.New(fileSystemMissingMessage)
	// ErrOutputRootNotConfigured indicates a planner without a move list root.
	ErrOutputRootNotConfigured = errors.New(outputRootMissingMessage)
)

// PlanStatus summarizes what happened to one repository during planning.
type PlanStatus string

// Planning statuses.
const (
	PlanStatusPlanned         PlanStatus = "PLANNED"
	PlanStatusEmpty           PlanStatus = "EMPTY"
	PlanStatusSkippedExisting PlanStatus = "SKIPPED_EXISTING"
	PlanStatusFailed          PlanStatus = "FAILED"
)

// RepositoryPlan is the planning outcome for one repository.
type RepositoryPlan struct {
	Repository      string           `json:"repository"`
	Status          PlanStatus       `json:"status"`
	Plan            MoveListPlan     `json:"plan"`
	Decision        decisions.Record `json:"decision"`
	MoveListPath    string           `json:"move_list_path,omitempty"`
	ApplyScriptPath string           `json:"apply_script_path,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// Dependencies supplies collaborators required by the planner.
type Dependencies struct {
	Logger     *zap.Logger
	TreeSource TreeSource
	Store      decisions.Store
	Locker     *decisions.KeyedLocker
	FileSystem shared.FileSystem
	Clock      shared.Clock
	OutputRoot string
	Workers    int
}

// Planner turns ranked repositories into move lists gated by the decision store.
type Planner struct {
	dependencies Dependencies
}

// NewPlanner validates dependencies and constructs a Planner.
func NewPlanner(dependencies Dependencies) (*Planner, error) {
	switch {
	case dependencies.TreeSource == nil:
		return nil, ErrTreeSourceNotConfigured
	case dependencies.Store == nil:
		return nil, ErrDecisionStoreNotConfigured
	case dependencies.FileSystem == nil:
		return nil, ErrFileSystemNotConfigured
	case len(strings.TrimSpace(dependencies.OutputRoot)) == 0:
		return nil, ErrOutputRootNotConfigured
	}
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	if dependencies.Locker == nil {
		dependencies.Locker = decisions.NewKeyedLocker()
	}
	if dependencies.Clock == nil {
		dependencies.Clock = shared.SystemClock{}
	}
	if dependencies.Workers <= 0 {
		dependencies.Workers = defaultPlannerWorkersConstant
	}
	return &Planner{dependencies: dependencies}, nil
}

// PlanRepository plans one repository unless the cohort already holds a decision for it.
func (planner *Planner) PlanRepository(executionContext context.Context, cohort string, candidate risk.RiskAssessment) (RepositoryPlan, error) {
	repositoryName := candidate.Repository.Name
	if keyError := decisions.ValidateKey(cohort, repositoryName); keyError != nil {
		return RepositoryPlan{Repository: repositoryName, Status: PlanStatusFailed, Error: keyError.Error()}, keyError
	}

	unlock := planner.dependencies.Locker.Lock(cohort, repositoryName)
	defer unlock()

	existingDecision, found, lookupError := planner.dependencies.Store.Lookup(executionContext, cohort, repositoryName)
	if lookupError != nil {
		return planner.failure(repositoryName, fmt.Errorf(lookupErrorTemplateConstant, repositoryName, lookupError))
	}
	if found {
		planner.dependencies.Logger.Info(logMessagePlanSkippedConstant,
			zap.String(logFieldRepositoryNameConstant, repositoryName),
			zap.String(logFieldCohortConstant, cohort),
			zap.String(logFieldDecisionIDConstant, existingDecision.ID),
		)
		return RepositoryPlan{
			Repository:      repositoryName,
			Status:          PlanStatusSkippedExisting,
			Decision:        existingDecision,
			MoveListPath:    existingDecision.MoveListPath,
			ApplyScriptPath: existingDecision.ApplyScriptPath,
		}, nil
	}

	entries, treeError := planner.dependencies.TreeSource.ListTree(executionContext, candidate)
	if treeError != nil {
		return planner.failure(repositoryName, treeError)
	}
	plan := Plan(entries)

	now := planner.dependencies.Clock.Now().UTC()
	repositoryPlan := RepositoryPlan{Repository: repositoryName, Status: PlanStatusEmpty, Plan: plan}
	if !plan.IsEmpty() {
		moveListPath, applyScriptPath, writeError := planner.writeArtifacts(cohort, repositoryName, plan, now)
		if writeError != nil {
			return planner.failure(repositoryName, writeError)
		}
		repositoryPlan.Status = PlanStatusPlanned
		repositoryPlan.MoveListPath = moveListPath
		repositoryPlan.ApplyScriptPath = applyScriptPath
	}

	decision := decisions.Record{
		ID:              decisions.NewRecordID(now),
		Repo:            repositoryName,
		Cohort:          cohort,
		FinalTag:        decisions.FinalTagFor(candidate),
		MoveListCount:   plan.Len(),
		MoveListPath:    repositoryPlan.MoveListPath,
		ApplyScriptPath: repositoryPlan.ApplyScriptPath,
		RiskScore:       candidate.RiskScore,
		Category:        candidate.Category,
		Timestamp:       now,
		Policy:          decisions.PolicyStatement,
	}
	outcome, recordError := planner.dependencies.Store.RecordIfAbsent(executionContext, cohort, repositoryName, decision)
	if recordError != nil {
		return planner.failure(repositoryName, fmt.Errorf(recordErrorTemplateConstant, repositoryName, recordError))
	}
	if outcome == decisions.OutcomeSkippedExisting {
		repositoryPlan.Status = PlanStatusSkippedExisting
	}
	repositoryPlan.Decision = decision

	planner.dependencies.Logger.Info(logMessagePlanCreatedConstant,
		zap.String(logFieldRepositoryNameConstant, repositoryName),
		zap.String(logFieldCohortConstant, cohort),
		zap.Int(logFieldMoveCountConstant, plan.Len()),
		zap.String(logFieldDecisionOutcomeConstant, string(outcome)),
	)
	return repositoryPlan, nil
}

// PlanAll plans every candidate with bounded concurrency. Results keep the candidate order and a
// failed repository never stops the others.
func (planner *Planner) PlanAll(executionContext context.Context, cohort string, candidates []risk.RiskAssessment) []RepositoryPlan {
	results := make([]RepositoryPlan, len(candidates))

	var group errgroup.Group
	group.SetLimit(planner.dependencies.Workers)
	for candidateIndex, candidate := range candidates {
		group.Go(func() error {
			repositoryPlan, _ := planner.PlanRepository(executionContext, cohort, candidate)
			results[candidateIndex] = repositoryPlan
			return nil
		})
	}
	_ = group.Wait()
	return results
}

func (planner *Planner) failure(repositoryName string, cause error) (RepositoryPlan, error) {
	planner.dependencies.Logger.Warn(logMessagePlanFailedConstant, zap.String(logFieldRepositoryNameConstant, repositoryName), zap.Error(cause))
	return RepositoryPlan{Repository: repositoryName, Status: PlanStatusFailed, Error: cause.Error()}, cause
}

func (planner *Planner) writeArtifacts(cohort string, repositoryName string, plan MoveListPlan, generatedAt time.Time) (string, string, error) {
	outputDirectory := filepath.Join(planner.dependencies.OutputRoot, cohort)
	if creationError := planner.dependencies.FileSystem.MkdirAll(outputDirectory, outputDirectoryPermissions); creationError != nil {
		return "", "", fmt.Errorf(outputDirectoryErrorTemplate, outputDirectory, creationError)
	}

	moveListFile := repositoryName + moveListFileSuffixConstant
	moveListPath := filepath.Join(outputDirectory, moveListFile)
	moveListContents := strings.Join(plan.Paths, "\n") + "\n"
	if writeError := planner.dependencies.FileSystem.WriteFile(moveListPath, []byte(moveListContents), moveListPermissionsConstant); writeError != nil {
		return "", "", fmt.Errorf(moveListWriteErrorTemplate, moveListPath, writeError)
	}

	scriptFile := repositoryName + applyScriptFileSuffixConstant
	applyScriptPath := filepath.Join(outputDirectory, scriptFile)
	script, renderError := renderApplyScript(applyScriptData{
		Repository:   repositoryName,
		Cohort:       cohort,
		GeneratedAt:  generatedAt.Format(timestampLayoutConstant),
		Policy:       decisions.PolicyStatement,
		ScriptFile:   scriptFile,
		MoveListFile: moveListFile,
	})
	if renderError != nil {
		return "", "", fmt.Errorf(applyScriptRenderErrorTemplate, repositoryName, renderError)
	}
	if writeError := planner.dependencies.FileSystem.WriteFile(applyScriptPath, script, applyScriptPermissionsConstant); writeError != nil {
		return "", "", fmt.Errorf(applyScriptWriteErrorTemplate, applyScriptPath, writeError)
	}
	return moveListPath, applyScriptPath, nil
}
