package githubcli_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/repogov/internal/execshell"
	"github.com/temirov/repogov/internal/githubcli"
)

const (
	testRepositoryIdentifierConstant          = "owner/example"
	testDestinationConstant                   = "/tmp/workspace/example"
	testCloneSuccessCaseNameConstant          = "clone_success"
	testCloneCustomDepthCaseNameConstant      = "clone_custom_depth"
	testCloneCommandFailureCaseNameConstant   = "clone_command_failure"
	testCloneRepositoryValidationCaseName     = "clone_repository_validation"
	testCloneRepositoryFormatCaseNameConstant = "clone_repository_format"
	testCloneDestinationValidationCaseName    = "clone_destination_validation"
)

type stubGitHubExecutor struct {
	executeFunc     func(context.Context, execshell.CommandDetails) (execshell.ExecutionResult, error)
	recordedDetails []execshell.CommandDetails
}

func (executor *stubGitHubExecutor) ExecuteGitHubCLI(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.recordedDetails = append(executor.recordedDetails, details)
	if executor.executeFunc != nil {
		return executor.executeFunc(executionContext, details)
	}
	return execshell.ExecutionResult{}, nil
}

func TestNewClientValidation(testInstance *testing.T) {
	testInstance.Run("nil_executor", func(testInstance *testing.T) {
		client, creationError := githubcli.NewClient(nil)
		require.Error(testInstance, creationError)
		require.ErrorIs(testInstance, creationError, githubcli.ErrExecutorNotConfigured)
		require.Nil(testInstance, client)
	})
}

func TestCloneRepository(testInstance *testing.T) {
	testCases := []struct {
		name              string
		repository        string
		destination       string
		options           githubcli.CloneOptions
		executor          *stubGitHubExecutor
		expectedArguments []string
		errorType         any
	}{
		{
			name:              testCloneSuccessCaseNameConstant,
			repository:        " " + testRepositoryIdentifierConstant + " ",
			destination:       testDestinationConstant,
			executor:          &stubGitHubExecutor{},
			expectedArguments: []string{"repo", "clone", testRepositoryIdentifierConstant, testDestinationConstant, "--", "--depth", "1"},
		},
		{
			name:              testCloneCustomDepthCaseNameConstant,
			repository:        testRepositoryIdentifierConstant,
			destination:       testDestinationConstant,
			options:           githubcli.CloneOptions{Depth: 5},
			executor:          &stubGitHubExecutor{},
			expectedArguments: []string{"repo", "clone", testRepositoryIdentifierConstant, testDestinationConstant, "--", "--depth", "5"},
		},
		{
			name:        testCloneCommandFailureCaseNameConstant,
			repository:  testRepositoryIdentifierConstant,
			destination: testDestinationConstant,
			executor: &stubGitHubExecutor{
				executeFunc: func(context.Context, execshell.CommandDetails) (execshell.ExecutionResult, error) {
					return execshell.ExecutionResult{}, errors.New("failure")
				},
			},
			errorType: githubcli.OperationError{},
		},
		{
			name:        testCloneRepositoryValidationCaseName,
			repository:  "  ",
			destination: testDestinationConstant,
			executor:    &stubGitHubExecutor{},
			errorType:   githubcli.InvalidInputError{},
		},
		{
			name:        testCloneRepositoryFormatCaseNameConstant,
			repository:  "example",
			destination: testDestinationConstant,
			executor:    &stubGitHubExecutor{},
			errorType:   githubcli.InvalidInputError{},
		},
		{
			name:        testCloneDestinationValidationCaseName,
			repository:  testRepositoryIdentifierConstant,
			destination: "",
			executor:    &stubGitHubExecutor{},
			errorType:   githubcli.InvalidInputError{},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			client, creationError := githubcli.NewClient(testCase.executor)
			require.NoError(testInstance, creationError)

			cloneError := client.CloneRepository(context.Background(), testCase.repository, testCase.destination, testCase.options)
			if testCase.errorType != nil {
				require.Error(testInstance, cloneError)
				require.IsType(testInstance, testCase.errorType, cloneError)
				return
			}

			require.NoError(testInstance, cloneError)
			require.Len(testInstance, testCase.executor.recordedDetails, 1)
			require.Equal(testInstance, testCase.expectedArguments, testCase.executor.recordedDetails[0].Arguments)
		})
	}
}

func TestCloneRepositoryExportsToken(testInstance *testing.T) {
	executor := &stubGitHubExecutor{}
	client, creationError := githubcli.NewClient(executor)
	require.NoError(testInstance, creationError)

	cloneError := client.CloneRepository(context.Background(), testRepositoryIdentifierConstant, testDestinationConstant, githubcli.CloneOptions{Token: " secret "})
	require.NoError(testInstance, cloneError)
	require.Len(testInstance, executor.recordedDetails, 1)
	require.Equal(testInstance, map[string]string{"GH_TOKEN": "secret"}, executor.recordedDetails[0].EnvironmentVariables)
}
