package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testEnvironmentCohortNameConstant = "REPOGOV_PLANNING_COHORT"
	testEnvironmentFileContent        = "REPOGOV_PLANNING_COHORT=spring-cleanup\n"
)

func TestApplicationVersionFlagPrintsVersionAndExits(testInstance *testing.T) {
	application := NewApplication()
	application.versionResolver = func(context.Context) string {
		return "v1.4.0"
	}

	exitCode := -1
	sentinel := "version-exit"
	application.exitFunction = func(code int) {
		exitCode = code
		panic(sentinel)
	}

	output := &bytes.Buffer{}
	application.rootCommand.SetOut(output)
	application.rootCommand.SetArgs([]string{"--version"})

	require.PanicsWithValue(testInstance, sentinel, func() {
		_ = application.Execute()
	})

	require.Equal(testInstance, "repogov version: v1.4.0\n", output.String())
	require.Equal(testInstance, 0, exitCode)
}

func TestApplicationLoadsEnvironmentFile(testInstance *testing.T) {
	testCases := []struct {
		name                  string
		writeFile             bool
		expectedCohort        string
		expectedErrorContains string
	}{
		{
			name:           "explicit_file",
			writeFile:      true,
			expectedCohort: "spring-cleanup",
		},
		{
			name:                  "explicit_file_missing",
			expectedErrorContains: "unable to load environment file",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			testInstance.Setenv(configurationSearchPathEnvironmentName, testInstance.TempDir())
			testInstance.Cleanup(func() {
				_ = os.Unsetenv(testEnvironmentCohortNameConstant)
			})

			environmentFilePath := filepath.Join(testInstance.TempDir(), "governance.env")
			if testCase.writeFile {
				require.NoError(testInstance, os.WriteFile(environmentFilePath, []byte(testEnvironmentFileContent), 0o600))
			}

			application := NewApplication()
			require.NoError(testInstance, application.rootCommand.PersistentFlags().Set(envFileFlagNameConstant, environmentFilePath))

			initializationError := application.InitializeForCommand("plan")
			if len(testCase.expectedErrorContains) > 0 {
				require.Error(testInstance, initializationError)
				require.Contains(testInstance, initializationError.Error(), testCase.expectedErrorContains)
				return
			}

			require.NoError(testInstance, initializationError)
			require.Equal(testInstance, testCase.expectedCohort, application.configuration.Planning.Cohort)
		})
	}
}

func TestHumanReadableLoggingFollowsLogFormat(testInstance *testing.T) {
	testCases := []struct {
		name      string
		logFormat string
		expected  bool
	}{
		{name: "console", logFormat: "console", expected: true},
		{name: "console_mixed_case", logFormat: " Console ", expected: true},
		{name: "structured", logFormat: "structured", expected: false},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			application := &Application{}
			application.configuration.Common.LogFormat = testCase.logFormat
			require.Equal(testInstance, testCase.expected, application.humanReadableLoggingEnabled())
		})
	}
}
