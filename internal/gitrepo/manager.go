package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/repogov/internal/execshell"
	"github.com/temirov/repogov/internal/githubauth"
)

const (
	addSubcommandConstant             = "add"
	allFlagConstant                   = "-A"
	diffSubcommandConstant            = "diff"
	cachedFlagConstant                = "--cached"
	nameOnlyFlagConstant              = "--name-only"
	configSubcommandConstant          = "config"
	userNameKeyConstant               = "user.name"
	userEmailKeyConstant              = "user.email"
	commitSubcommandConstant          = "commit"
	messageFlagConstant               = "-m"
	pushSubcommandConstant            = "push"
	configOverrideFlagConstant        = "-c"
	clearCredentialHelperConstant     = "credential.helper="
	githubCredentialHelperConstant    = "credential.helper=!gh auth git-credential"
	executorNotConfiguredMessage      = "git executor not configured"
	repositoryPathRequiredMessage     = "repository path required"
	commitMessageRequiredMessage      = "commit message required"
	gitOperationErrorTemplateConstant = "git %s failed in %s: %w"
	operationStageConstant            = "add"
	operationInspectConstant          = "diff"
	operationConfigureConstant        = "config"
	operationCommitConstant           = "commit"
	operationPushConstant             = "push"
)

var (
	// ErrExecutorNotConfigured indicates the manager was constructed without an executor.
	ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessage)
	// ErrRepositoryPathRequired indicates an empty working copy path.
	ErrRepositoryPathRequired = errors.New(repositoryPathRequiredMessage)
	// ErrCommitMessageRequired indicates an empty commit message.
	ErrCommitMessageRequired = errors.New(commitMessageRequiredMessage)
)

// GitCommandExecutor runs git commands.
type GitCommandExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Identity is the committer recorded on cleanup commits.
type Identity struct {
	Name  string
	Email string
}

// Manager performs the repository-level git operations of a cleanup commit.
type Manager struct {
	executor GitCommandExecutor
}

// NewManager constructs a Manager.
func NewManager(executor GitCommandExecutor) (*Manager, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	return &Manager{executor: executor}, nil
}

// StageAll stages every change in the working copy, including renames.
func (manager *Manager) StageAll(executionContext context.Context, repositoryPath string) error {
	_, executionError := manager.run(executionContext, repositoryPath, operationStageConstant, addSubcommandConstant, allFlagConstant)
	return executionError
}

// StagedPaths lists the paths staged for the next commit.
func (manager *Manager) StagedPaths(executionContext context.Context, repositoryPath string) ([]string, error) {
	executionResult, executionError := manager.run(executionContext, repositoryPath, operationInspectConstant, diffSubcommandConstant, cachedFlagConstant, nameOnlyFlagConstant)
	if executionError != nil {
		return nil, executionError
	}

	var stagedPaths []string
	for _, line := range strings.Split(executionResult.StandardOutput, "\n") {
		if trimmedLine := strings.TrimSpace(line); len(trimmedLine) > 0 {
			stagedPaths = append(stagedPaths, trimmedLine)
		}
	}
	return stagedPaths, nil
}

// ConfigureIdentity sets the local committer identity. Empty fields are left untouched.
func (manager *Manager) ConfigureIdentity(executionContext context.Context, repositoryPath string, identity Identity) error {
	if name := strings.TrimSpace(identity.Name); len(name) > 0 {
		if _, executionError := manager.run(executionContext, repositoryPath, operationConfigureConstant, configSubcommandConstant, userNameKeyConstant, name); executionError != nil {
			return executionError
		}
	}
	if email := strings.TrimSpace(identity.Email); len(email) > 0 {
		if _, executionError := manager.run(executionContext, repositoryPath, operationConfigureConstant, configSubcommandConstant, userEmailKeyConstant, email); executionError != nil {
			return executionError
		}
	}
	return nil
}

// Commit records the staged changes with the provided message.
func (manager *Manager) Commit(executionContext context.Context, repositoryPath string, message string) error {
	if len(strings.TrimSpace(message)) == 0 {
		return ErrCommitMessageRequired
	}
	_, executionError := manager.run(executionContext, repositoryPath, operationCommitConstant, commitSubcommandConstant, messageFlagConstant, message)
	return executionError
}

// Push publishes the current branch to its upstream. A non-empty token is handed to gh through
// GH_TOKEN and gh becomes the only credential helper for this push, so ambient git credentials
// are not required.
func (manager *Manager) Push(executionContext context.Context, repositoryPath string, token string) error {
	trimmedToken := strings.TrimSpace(token)
	if len(trimmedToken) == 0 {
		_, executionError := manager.run(executionContext, repositoryPath, operationPushConstant, pushSubcommandConstant)
		return executionError
	}
	_, executionError := manager.runWithEnvironment(
		executionContext,
		repositoryPath,
		operationPushConstant,
		map[string]string{githubauth.EnvGitHubCLIToken: trimmedToken},
		configOverrideFlagConstant, clearCredentialHelperConstant,
		configOverrideFlagConstant, githubCredentialHelperConstant,
		pushSubcommandConstant,
	)
	return executionError
}

func (manager *Manager) run(executionContext context.Context, repositoryPath string, operation string, arguments ...string) (execshell.ExecutionResult, error) {
	return manager.runWithEnvironment(executionContext, repositoryPath, operation, nil, arguments...)
}

func (manager *Manager) runWithEnvironment(executionContext context.Context, repositoryPath string, operation string, environment map[string]string, arguments ...string) (execshell.ExecutionResult, error) {
	trimmedPath := strings.TrimSpace(repositoryPath)
	if len(trimmedPath) == 0 {
		return execshell.ExecutionResult{}, ErrRepositoryPathRequired
	}

	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            arguments,
		WorkingDirectory:     trimmedPath,
		EnvironmentVariables: environment,
	})
	if executionError != nil {
		return execshell.ExecutionResult{}, fmt.Errorf(gitOperationErrorTemplateConstant, operation, trimmedPath, executionError)
	}
	return executionResult, nil
}
