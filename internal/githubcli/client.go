package githubcli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/temirov/repogov/internal/execshell"
	"github.com/temirov/repogov/internal/githubauth"
	"github.com/temirov/repogov/internal/repos/shared"
)

const (
	repoSubcommandConstant                  = "repo"
	cloneSubcommandConstant                 = "clone"
	gitArgumentsSeparatorConstant           = "--"
	depthFlagConstant                       = "--depth"
	repositoryFieldNameConstant             = "repository"
	destinationFieldNameConstant            = "destination"
	requiredValueMessageConstant            = "value required"
	ownerRepositoryFormatMessageConstant    = "expected owner/name"
	executorNotConfiguredMessageConstant    = "github cli executor not configured"
	defaultCloneDepthConstant               = 1
	operationErrorMessageTemplateConstant   = "%s operation failed"
	operationErrorWithCauseTemplateConstant = "%s operation failed: %s"
	invalidInputErrorTemplateConstant       = "%s: %s"
	cloneRepositoryOperationNameConstant    = OperationName("CloneRepository")
)

// OperationName describes a named GitHub CLI workflow supported by the client.
type OperationName string

// CloneOptions configures CloneRepository.
type CloneOptions struct {
	// Depth limits history; values below one mean a single commit.
	Depth int
	// Token is exported to gh as GH_TOKEN when set.
	Token string
}

// GitHubCommandExecutor is the minimal interface required from execshell.ShellExecutor.
type GitHubCommandExecutor interface {
	ExecuteGitHubCLI(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Client coordinates GitHub CLI invocations through execshell.
type Client struct {
	executor GitHubCommandExecutor
}

var (
	// ErrExecutorNotConfigured indicates the client was constructed without an executor.
	ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)
)

// InvalidInputError surfaces validation issues for operation inputs.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// OperationError wraps execution issues for GitHub CLI operations.
type OperationError struct {
	Operation OperationName
	Cause     error
}

// Error describes the operation failure.
func (operationError OperationError) Error() string {
	if operationError.Cause == nil {
		return fmt.Sprintf(operationErrorMessageTemplateConstant, operationError.Operation)
	}
	return fmt.Sprintf(operationErrorWithCauseTemplateConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// NewClient constructs a GitHub CLI client.
func NewClient(executor GitHubCommandExecutor) (*Client, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	return &Client{executor: executor}, nil
}

// CloneRepository performs a shallow clone with gh repo clone, passing the depth through to git.
func (client *Client) CloneRepository(executionContext context.Context, repository string, destination string, options CloneOptions) error {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	ownerRepository, referenceError := shared.NewOwnerRepository(repositoryIdentifier)
	if referenceError != nil {
		return InvalidInputError{FieldName: repositoryFieldNameConstant, Message: ownerRepositoryFormatMessageConstant}
	}

	destinationPath := strings.TrimSpace(destination)
	if len(destinationPath) == 0 {
		return InvalidInputError{FieldName: destinationFieldNameConstant, Message: requiredValueMessageConstant}
	}

	depth := options.Depth
	if depth < defaultCloneDepthConstant {
		depth = defaultCloneDepthConstant
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			repoSubcommandConstant,
			cloneSubcommandConstant,
			ownerRepository.String(),
			destinationPath,
			gitArgumentsSeparatorConstant,
			depthFlagConstant,
			strconv.Itoa(depth),
		},
	}

	if token := strings.TrimSpace(options.Token); len(token) > 0 {
		commandDetails.EnvironmentVariables = map[string]string{githubauth.EnvGitHubCLIToken: token}
	}

	if _, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails); executionError != nil {
		return OperationError{Operation: cloneRepositoryOperationNameConstant, Cause: executionError}
	}
	return nil
}
