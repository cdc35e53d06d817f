package trash

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/repogov/internal/cleanup"
	"github.com/temirov/repogov/internal/decisions"
	"github.com/temirov/repogov/internal/githubcli"
	"github.com/temirov/repogov/internal/gitrepo"
	"github.com/temirov/repogov/internal/repos/shared"
)

const (
	// TrashDirectoryName is the directory that receives moved paths inside a working copy.
	TrashDirectoryName = "TRASH"

	commitMessageTemplateConstant     = "cleanup: MOVE ONLY to TRASH (%s)"
	ownerRepositoryTemplateConstant   = "%s/%s"
	commitTimestampLayoutConstant     = time.RFC3339
	trashDirectoryPermissions         = fs.FileMode(0o755)
	cloneDepthConstant                = 1
	stageOperationConstant            = "stage"
	commitOperationConstant           = "commit"
	pushOperationConstant             = "push"
	listDecisionsErrorTemplate        = "unable to list decisions for cohort %s: %w"
	readMoveListErrorTemplate         = "unable to read move list %s: %w"
	workspaceErrorTemplateConstant    = "unable to prepare workspace for %s: %w"
	clonerMissingMessageConstant      = "repository cloner not configured"
	gitMissingMessageConstant         = "git operator not configured"
	workspacesMissingMessageConstant  = "workspace provider not configured"
	fileSystemMissingMessageConstant  = "file system not configured"
	storeMissingMessageConstant       = "decision store not configured"
	logMessageApplyStarted            = "applying move list"
	logMessageApplyCompleted          = "move list applied"
	logMessageApplyFailed             = "move list not applied"
	logMessagePathSkipped             = "unsafe or conflicting path skipped"
	logMessageWorkspaceDiscardFailure = "unable to discard workspace"
	logMessageApplyLimitReached       = "apply limit reached"
	logFieldRepositoryConstant        = "repository"
	logFieldPathConstant              = "path"
	logFieldStatusConstant            = "status"
	logFieldMovedConstant             = "moved"
	logFieldMissingConstant           = "missing"
	logFieldSkippedConstant           = "skipped"
	logFieldWorkspaceConstant         = "workspace"
	logFieldLimitConstant             = "max_apply"
)

var (
	// ErrClonerNotConfigured indicates an executor without a cloner.
	ErrClonerNotConfigured = errors.New(clonerMissingMessageConstant)
	// ErrGitNotConfigured indicates an executor without a git operator.
	ErrGitNotConfigured = errors.New(gitMissingMessageConstant)
	// ErrWorkspacesNotConfigured indicates an executor without workspaces.
	ErrWorkspacesNotConfigured = errors.New(workspacesMissingMessageConstant)
	// ErrFileSystemNotConfigured indicates an executor without a file system.
	ErrFileSystemNotConfigured = errors.New(fileSystemMissingMessageConstant)
	// ErrStoreNotConfigured indicates an executor without a decision store.
	ErrStoreNotConfigured = errors.New(storeMissingMessageConstant)
)

// Status is the outcome of applying one move list.
type Status string

// Apply statuses.
const (
	StatusApplied   Status = "APPLIED"
	StatusNoChanges Status = "NO_CHANGES"
	StatusCloneFail Status = "CLONE_FAIL"
	StatusPushFail  Status = "PUSH_FAIL"
	StatusPlanError Status = "PLAN_UNREADABLE"
)

// RepositoryCloner produces a shallow working copy.
type RepositoryCloner interface {
	CloneRepository(executionContext context.Context, repository string, destination string, options githubcli.CloneOptions) error
}

// GitOperator stages, commits, and pushes the moves in a working copy.
type GitOperator interface {
	StageAll(executionContext context.Context, repositoryPath string) error
	StagedPaths(executionContext context.Context, repositoryPath string) ([]string, error)
	ConfigureIdentity(executionContext context.Context, repositoryPath string, identity gitrepo.Identity) error
	Commit(executionContext context.Context, repositoryPath string, message string) error
	Push(executionContext context.Context, repositoryPath string, token string) error
}

// Workspaces creates and discards scratch directories.
type Workspaces interface {
	Create(prefix string) (string, error)
	Discard(workspacePath string) error
}

// Dependencies supplies collaborators required by the executor.
type Dependencies struct {
	Logger     *zap.Logger
	Cloner     RepositoryCloner
	Git        GitOperator
	Workspaces Workspaces
	FileSystem shared.FileSystem
	Store      decisions.Store
	Clock      shared.Clock
	Owner      string
	Token      string
	Identity   gitrepo.Identity
	MaxApply   int
}

// ApplyReportEntry is the outcome recorded for one repository.
type ApplyReportEntry struct {
	Repo    string `json:"repo"`
	Status  Status `json:"status"`
	Moved   int    `json:"moved"`
	Missing int    `json:"missing"`
	Skipped int    `json:"skipped"`
	Error   string `json:"error,omitempty"`
}

// ApplyReport summarizes one apply pass over a cohort.
type ApplyReport struct {
	Cohort      string             `json:"cohort"`
	GeneratedAt time.Time          `json:"generated_at"`
	Policy      string             `json:"policy"`
	MaxApply    int                `json:"max_apply"`
	Applied     int                `json:"applied"`
	Entries     []ApplyReportEntry `json:"entries"`
}

// Executor moves planned paths into TRASH inside fresh working copies and pushes the result.
type Executor struct {
	dependencies Dependencies
}

// NewExecutor validates dependencies and constructs an Executor.
func NewExecutor(dependencies Dependencies) (*Executor, error) {
	switch {
	case dependencies.Cloner == nil:
		return nil, ErrClonerNotConfigured
	case dependencies.Git == nil:
		return nil, ErrGitNotConfigured
	case dependencies.Workspaces == nil:
		return nil, ErrWorkspacesNotConfigured
	case dependencies.FileSystem == nil:
		return nil, ErrFileSystemNotConfigured
	case dependencies.Store == nil:
		return nil, ErrStoreNotConfigured
	}
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	if dependencies.Clock == nil {
		dependencies.Clock = shared.SystemClock{}
	}
	return &Executor{dependencies: dependencies}, nil
}

// ApplyCohort applies the cohort's non-empty move lists in repository name order and stops once
// MaxApply repositories reached APPLIED. A non-positive MaxApply applies every list.
func (executor *Executor) ApplyCohort(executionContext context.Context, cohort string) (ApplyReport, error) {
	report := ApplyReport{
		Cohort:      cohort,
		GeneratedAt: executor.dependencies.Clock.Now().UTC(),
		Policy:      decisions.PolicyStatement,
		MaxApply:    executor.dependencies.MaxApply,
		Entries:     []ApplyReportEntry{},
	}

	records, listError := executor.dependencies.Store.List(executionContext, cohort)
	if listError != nil {
		return report, fmt.Errorf(listDecisionsErrorTemplate, cohort, listError)
	}

	for _, record := range records {
		if record.MoveListCount == 0 || len(strings.TrimSpace(record.MoveListPath)) == 0 {
			continue
		}
		if executor.dependencies.MaxApply > 0 && report.Applied >= executor.dependencies.MaxApply {
			executor.dependencies.Logger.Info(logMessageApplyLimitReached, zap.Int(logFieldLimitConstant, executor.dependencies.MaxApply))
			break
		}
		if contextError := executionContext.Err(); contextError != nil {
			return report, contextError
		}

		plan, readError := executor.readMoveList(record.MoveListPath)
		if readError != nil {
			report.Entries = append(report.Entries, ApplyReportEntry{Repo: record.Repo, Status: StatusPlanError, Error: readError.Error()})
			continue
		}

		entry := executor.Apply(executionContext, record.Repo, plan)
		if entry.Status == StatusApplied {
			report.Applied++
		}
		report.Entries = append(report.Entries, entry)
	}
	return report, nil
}

// Apply clones one repository, moves the planned paths into TRASH, and pushes a single commit.
// The working copy is always discarded.
func (executor *Executor) Apply(executionContext context.Context, repositoryName string, plan cleanup.MoveListPlan) ApplyReportEntry {
	logger := executor.dependencies.Logger.With(zap.String(logFieldRepositoryConstant, repositoryName))
	logger.Info(logMessageApplyStarted, zap.Int(logFieldMovedConstant, plan.Len()))
	entry := ApplyReportEntry{Repo: repositoryName}

	workspacePath, workspaceError := executor.dependencies.Workspaces.Create(repositoryName)
	if workspaceError != nil {
		return executor.failed(logger, entry, StatusCloneFail, CloneFailureError{Repository: repositoryName, Cause: fmt.Errorf(workspaceErrorTemplateConstant, repositoryName, workspaceError)})
	}
	defer func() {
		if discardError := executor.dependencies.Workspaces.Discard(workspacePath); discardError != nil {
			logger.Warn(logMessageWorkspaceDiscardFailure, zap.String(logFieldWorkspaceConstant, workspacePath), zap.Error(discardError))
		}
	}()

	reference := fmt.Sprintf(ownerRepositoryTemplateConstant, executor.dependencies.Owner, repositoryName)
	if cloneError := executor.dependencies.Cloner.CloneRepository(executionContext, reference, workspacePath, githubcli.CloneOptions{Depth: cloneDepthConstant, Token: executor.dependencies.Token}); cloneError != nil {
		return executor.failed(logger, entry, StatusCloneFail, CloneFailureError{Repository: reference, Cause: cloneError})
	}

	for _, relativePath := range plan.Paths {
		switch executor.moveToTrash(logger, workspacePath, relativePath) {
		case moveResultMoved:
			entry.Moved++
		case moveResultMissing:
			entry.Missing++
		default:
			entry.Skipped++
		}
	}

	gitOperator := executor.dependencies.Git
	if stageError := gitOperator.StageAll(executionContext, workspacePath); stageError != nil {
		return executor.failed(logger, entry, StatusPushFail, PushFailureError{Repository: reference, Stage: stageOperationConstant, Cause: stageError})
	}
	stagedPaths, diffError := gitOperator.StagedPaths(executionContext, workspacePath)
	if diffError != nil {
		return executor.failed(logger, entry, StatusPushFail, PushFailureError{Repository: reference, Stage: stageOperationConstant, Cause: diffError})
	}
	if len(stagedPaths) == 0 {
		entry.Status = StatusNoChanges
		executor.logCompletion(logger, entry)
		return entry
	}

	if identityError := gitOperator.ConfigureIdentity(executionContext, workspacePath, executor.dependencies.Identity); identityError != nil {
		return executor.failed(logger, entry, StatusPushFail, PushFailureError{Repository: reference, Stage: commitOperationConstant, Cause: identityError})
	}
	commitMessage := fmt.Sprintf(commitMessageTemplateConstant, executor.dependencies.Clock.Now().UTC().Format(commitTimestampLayoutConstant))
	if commitError := gitOperator.Commit(executionContext, workspacePath, commitMessage); commitError != nil {
		return executor.failed(logger, entry, StatusPushFail, PushFailureError{Repository: reference, Stage: commitOperationConstant, Cause: commitError})
	}
	if pushError := gitOperator.Push(executionContext, workspacePath, executor.dependencies.Token); pushError != nil {
		return executor.failed(logger, entry, StatusPushFail, PushFailureError{Repository: reference, Stage: pushOperationConstant, Cause: pushError})
	}

	entry.Status = StatusApplied
	executor.logCompletion(logger, entry)
	return entry
}

type moveResult int

const (
	moveResultMoved moveResult = iota
	moveResultMissing
	moveResultSkipped
)

// moveToTrash renames one path to TRASH/<path>. Paths that are absolute, escape the working copy,
// or touch git metadata or an existing trash directory are skipped, as are paths whose trash
// destination is already occupied.
func (executor *Executor) moveToTrash(logger *zap.Logger, workspacePath string, relativePath string) moveResult {
	trimmedPath := strings.TrimSpace(relativePath)
	if len(trimmedPath) == 0 || filepath.IsAbs(trimmedPath) || strings.HasPrefix(trimmedPath, "/") || cleanup.IsExcludedPath(trimmedPath) {
		logger.Warn(logMessagePathSkipped, zap.String(logFieldPathConstant, relativePath))
		return moveResultSkipped
	}

	fileSystem := executor.dependencies.FileSystem
	localPath := filepath.FromSlash(trimmedPath)
	sourcePath := filepath.Join(workspacePath, localPath)
	if _, statError := fileSystem.Lstat(sourcePath); statError != nil {
		if errors.Is(statError, fs.ErrNotExist) {
			return moveResultMissing
		}
		logger.Warn(logMessagePathSkipped, zap.String(logFieldPathConstant, relativePath), zap.Error(statError))
		return moveResultSkipped
	}

	destinationPath := filepath.Join(workspacePath, TrashDirectoryName, localPath)
	if _, statError := fileSystem.Lstat(destinationPath); statError == nil {
		logger.Warn(logMessagePathSkipped, zap.String(logFieldPathConstant, relativePath))
		return moveResultSkipped
	}
	if creationError := fileSystem.MkdirAll(filepath.Dir(destinationPath), trashDirectoryPermissions); creationError != nil {
		logger.Warn(logMessagePathSkipped, zap.String(logFieldPathConstant, relativePath), zap.Error(creationError))
		return moveResultSkipped
	}
	if renameError := fileSystem.Rename(sourcePath, destinationPath); renameError != nil {
		logger.Warn(logMessagePathSkipped, zap.String(logFieldPathConstant, relativePath), zap.Error(renameError))
		return moveResultSkipped
	}
	return moveResultMoved
}

func (executor *Executor) readMoveList(moveListPath string) (cleanup.MoveListPlan, error) {
	contents, readError := executor.dependencies.FileSystem.ReadFile(moveListPath)
	if readError != nil {
		return cleanup.MoveListPlan{}, fmt.Errorf(readMoveListErrorTemplate, moveListPath, readError)
	}
	return ParseMoveList(string(contents)), nil
}

// ParseMoveList reads one path per line, ignoring blank lines and carriage returns.
func ParseMoveList(contents string) cleanup.MoveListPlan {
	var paths []string
	for _, line := range strings.Split(contents, "\n") {
		trimmedLine := strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if len(trimmedLine) == 0 {
			continue
		}
		paths = append(paths, trimmedLine)
	}
	return cleanup.MoveListPlan{Paths: paths}
}

func (executor *Executor) failed(logger *zap.Logger, entry ApplyReportEntry, status Status, cause error) ApplyReportEntry {
	entry.Status = status
	entry.Error = cause.Error()
	logger.Warn(logMessageApplyFailed, zap.String(logFieldStatusConstant, string(status)), zap.Error(cause))
	return entry
}

func (executor *Executor) logCompletion(logger *zap.Logger, entry ApplyReportEntry) {
	logger.Info(logMessageApplyCompleted,
		zap.String(logFieldStatusConstant, string(entry.Status)),
		zap.Int(logFieldMovedConstant, entry.Moved),
		zap.Int(logFieldMissingConstant, entry.Missing),
		zap.Int(logFieldSkippedConstant, entry.Skipped),
	)
}
