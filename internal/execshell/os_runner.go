package execshell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"sort"
)

const (
	environmentAssignmentSeparatorConstant = "="
	terminalPromptVariableConstant         = "GIT_TERMINAL_PROMPT"
	terminalPromptDisabledConstant         = "0"
	githubPromptVariableConstant           = "GH_PROMPT_DISABLED"
	githubPromptDisabledConstant           = "1"
)

// OSCommandRunner executes commands with os/exec. Interactive credential prompts are disabled for
// both git and gh so an unattended run fails instead of hanging.
type OSCommandRunner struct {
	environment func() []string
}

// NewOSCommandRunner constructs a runner that inherits the process environment.
func NewOSCommandRunner() *OSCommandRunner {
	return &OSCommandRunner{environment: os.Environ}
}

// Run executes the command and captures its output. A non-zero exit is reported through the result;
// only start failures and context cancellation are returned as errors.
func (runner *OSCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	executable := exec.CommandContext(executionContext, string(command.Name), append([]string{}, command.Details.Arguments...)...)
	executable.Dir = command.Details.WorkingDirectory
	executable.Env = runner.buildEnvironment(command.Details.EnvironmentVariables)

	var standardOutput bytes.Buffer
	var standardError bytes.Buffer
	executable.Stdout = &standardOutput
	executable.Stderr = &standardError
	if len(command.Details.StandardInput) > 0 {
		executable.Stdin = bytes.NewReader(command.Details.StandardInput)
	}

	runError := executable.Run()
	if contextError := executionContext.Err(); contextError != nil {
		return ExecutionResult{}, contextError
	}

	result := ExecutionResult{
		StandardOutput: standardOutput.String(),
		StandardError:  standardError.String(),
	}
	if runError == nil {
		return result, nil
	}

	var exitError *exec.ExitError
	if !errors.As(runError, &exitError) {
		return ExecutionResult{}, runError
	}
	result.ExitCode = exitError.ExitCode()
	return result, nil
}

// buildEnvironment layers the prompt guards and then the command's variables over the inherited
// environment. exec keeps the last value for a duplicated key.
func (runner *OSCommandRunner) buildEnvironment(overrides map[string]string) []string {
	inherited := os.Environ
	if runner != nil && runner.environment != nil {
		inherited = runner.environment
	}

	environment := append([]string{}, inherited()...)
	environment = append(environment,
		terminalPromptVariableConstant+environmentAssignmentSeparatorConstant+terminalPromptDisabledConstant,
		githubPromptVariableConstant+environmentAssignmentSeparatorConstant+githubPromptDisabledConstant,
	)

	overrideNames := make([]string, 0, len(overrides))
	for name := range overrides {
		overrideNames = append(overrideNames, name)
	}
	sort.Strings(overrideNames)
	for _, name := range overrideNames {
		environment = append(environment, name+environmentAssignmentSeparatorConstant+overrides[name])
	}
	return environment
}
