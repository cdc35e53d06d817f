package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
	flagPrefixConstant                      = "-"
	argumentTerminatorConstant              = "--"
)

const (
	gitCloneSubcommandNameConstant    = "clone"
	gitAddSubcommandNameConstant      = "add"
	gitDiffSubcommandNameConstant     = "diff"
	gitConfigSubcommandNameConstant   = "config"
	gitCommitSubcommandNameConstant   = "commit"
	gitPushSubcommandNameConstant     = "push"
	gitConfigOverrideFlagConstant     = "-c"
	gitMessageFlagConstant            = "-m"
	githubRepoSubcommandNameConstant  = "repo"
	githubCloneSubcommandNameConstant = "clone"
)

const (
	gitCloneStartTemplateConstant             = "Cloning %s into %s"
	gitCloneSuccessTemplateConstant           = "Cloned %s into %s"
	gitCloneFailureTemplateConstant           = "Failed to clone %s into %s (exit code %d%s)"
	gitCloneExecutionFailureTemplateConstant  = "Unable to clone %s into %s: %s"
	gitAddStartTemplateConstant               = "Staging %s in %s"
	gitAddSuccessTemplateConstant             = "Staged %s in %s"
	gitAddFailureTemplateConstant             = "Failed to stage %s in %s (exit code %d%s)"
	gitAddExecutionFailureTemplateConstant    = "Unable to stage %s in %s: %s"
	gitDiffStartTemplateConstant              = "Inspecting staged changes in %s"
	gitDiffSuccessTemplateConstant            = "Inspected staged changes in %s"
	gitDiffFailureTemplateConstant            = "Failed to inspect staged changes in %s (exit code %d%s)"
	gitDiffExecutionFailureTemplateConstant   = "Unable to inspect staged changes in %s: %s"
	gitConfigStartTemplateConstant            = "Setting %s in %s"
	gitConfigSuccessTemplateConstant          = "Set %s in %s"
	gitConfigFailureTemplateConstant          = "Failed to set %s in %s (exit code %d%s)"
	gitConfigExecutionFailureTemplateConstant = "Unable to set %s in %s: %s"
	gitCommitStartTemplateConstant            = "Creating commit in %s with message %q"
	gitCommitSuccessTemplateConstant          = "Created commit in %s with message %q"
	gitCommitFailureTemplateConstant          = "Failed to create commit in %s with message %q (exit code %d%s)"
	gitCommitExecutionFailureTemplateConstant = "Unable to create commit in %s with message %q: %s"
	gitPushStartTemplateConstant              = "Pushing %s"
	gitPushSuccessTemplateConstant            = "Pushed %s"
	gitPushFailureTemplateConstant            = "Failed to push %s (exit code %d%s)"
	gitPushExecutionFailureTemplateConstant   = "Unable to push %s: %s"
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	switch command.Name {
	case CommandGit:
		return formatter.describeGitMessage(command, result, failure, stage)
	case CommandGitHub:
		return formatter.describeGitHubMessage(command, result, failure, stage)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := withoutConfigOverrides(command.Details.Arguments)
	if len(arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	workingDirectory := formatter.describeWorkingDirectory(command)
	switch strings.TrimSpace(arguments[0]) {
	case gitCloneSubcommandNameConstant:
		operands := formatter.extractOperands(arguments[1:])
		source := formatter.ensureValue(formatter.operandAtIndex(operands, 0))
		destination := formatter.ensureValue(formatter.operandAtIndex(operands, 1))
		return formatter.selectTemplate(stage, result, failure,
			fmt.Sprintf(gitCloneStartTemplateConstant, source, destination),
			fmt.Sprintf(gitCloneSuccessTemplateConstant, source, destination),
			func(exitCode int, standardErrorSuffix string) string {
				return fmt.Sprintf(gitCloneFailureTemplateConstant, source, destination, exitCode, standardErrorSuffix)
			},
			func(failureDescription string) string {
				return fmt.Sprintf(gitCloneExecutionFailureTemplateConstant, source, destination, failureDescription)
			},
		)
	case gitAddSubcommandNameConstant:
		target := formatter.ensureValue(strings.Join(arguments[1:], commandArgumentsJoinSeparatorConstant))
		return formatter.selectTemplate(stage, result, failure,
			fmt.Sprintf(gitAddStartTemplateConstant, target, workingDirectory),
			fmt.Sprintf(gitAddSuccessTemplateConstant, target, workingDirectory),
			func(exitCode int, standardErrorSuffix string) string {
				return fmt.Sprintf(gitAddFailureTemplateConstant, target, workingDirectory, exitCode, standardErrorSuffix)
			},
			func(failureDescription string) string {
				return fmt.Sprintf(gitAddExecutionFailureTemplateConstant, target, workingDirectory, failureDescription)
			},
		)
	case gitDiffSubcommandNameConstant:
		return formatter.selectTemplate(stage, result, failure,
			fmt.Sprintf(gitDiffStartTemplateConstant, workingDirectory),
			fmt.Sprintf(gitDiffSuccessTemplateConstant, workingDirectory),
			func(exitCode int, standardErrorSuffix string) string {
				return fmt.Sprintf(gitDiffFailureTemplateConstant, workingDirectory, exitCode, standardErrorSuffix)
			},
			func(failureDescription string) string {
				return fmt.Sprintf(gitDiffExecutionFailureTemplateConstant, workingDirectory, failureDescription)
			},
		)
	case gitConfigSubcommandNameConstant:
		key := formatter.ensureValue(formatter.operandAtIndex(formatter.extractOperands(arguments[1:]), 0))
		return formatter.selectTemplate(stage, result, failure,
			fmt.Sprintf(gitConfigStartTemplateConstant, key, workingDirectory),
			fmt.Sprintf(gitConfigSuccessTemplateConstant, key, workingDirectory),
			func(exitCode int, standardErrorSuffix string) string {
				return fmt.Sprintf(gitConfigFailureTemplateConstant, key, workingDirectory, exitCode, standardErrorSuffix)
			},
			func(failureDescription string) string {
				return fmt.Sprintf(gitConfigExecutionFailureTemplateConstant, key, workingDirectory, failureDescription)
			},
		)
	case gitCommitSubcommandNameConstant:
		message := formatter.extractFlagValue(arguments, gitMessageFlagConstant)
		return formatter.selectTemplate(stage, result, failure,
			fmt.Sprintf(gitCommitStartTemplateConstant, workingDirectory, message),
			fmt.Sprintf(gitCommitSuccessTemplateConstant, workingDirectory, message),
			func(exitCode int, standardErrorSuffix string) string {
				return fmt.Sprintf(gitCommitFailureTemplateConstant, workingDirectory, message, exitCode, standardErrorSuffix)
			},
			func(failureDescription string) string {
				return fmt.Sprintf(gitCommitExecutionFailureTemplateConstant, workingDirectory, message, failureDescription)
			},
		)
	case gitPushSubcommandNameConstant:
		return formatter.selectTemplate(stage, result, failure,
			fmt.Sprintf(gitPushStartTemplateConstant, workingDirectory),
			fmt.Sprintf(gitPushSuccessTemplateConstant, workingDirectory),
			func(exitCode int, standardErrorSuffix string) string {
				return fmt.Sprintf(gitPushFailureTemplateConstant, workingDirectory, exitCode, standardErrorSuffix)
			},
			func(failureDescription string) string {
				return fmt.Sprintf(gitPushExecutionFailureTemplateConstant, workingDirectory, failureDescription)
			},
		)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitHubMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	if len(arguments) < 3 || strings.TrimSpace(arguments[0]) != githubRepoSubcommandNameConstant || strings.TrimSpace(arguments[1]) != githubCloneSubcommandNameConstant {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	operands := formatter.extractOperands(arguments[2:])
	repository := formatter.ensureValue(formatter.operandAtIndex(operands, 0))
	destination := formatter.ensureValue(formatter.operandAtIndex(operands, 1))
	return formatter.selectTemplate(stage, result, failure,
		fmt.Sprintf(gitCloneStartTemplateConstant, repository, destination),
		fmt.Sprintf(gitCloneSuccessTemplateConstant, repository, destination),
		func(exitCode int, standardErrorSuffix string) string {
			return fmt.Sprintf(gitCloneFailureTemplateConstant, repository, destination, exitCode, standardErrorSuffix)
		},
		func(failureDescription string) string {
			return fmt.Sprintf(gitCloneExecutionFailureTemplateConstant, repository, destination, failureDescription)
		},
	)
}

func (formatter CommandMessageFormatter) selectTemplate(
	stage messageStage,
	result ExecutionResult,
	failure error,
	startMessage string,
	successMessage string,
	failureMessage func(exitCode int, standardErrorSuffix string) string,
	executionFailureMessage func(failureDescription string) string,
) string {
	switch stage {
	case messageStageStart:
		return startMessage
	case messageStageSuccess:
		return successMessage
	case messageStageFailure:
		return failureMessage(result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return executionFailureMessage(formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandLabel := string(command.Name)
	if len(command.Details.Arguments) > 0 {
		commandLabel = fmt.Sprintf("%s %s", commandLabel, strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant))
	}
	workingDirectorySuffix := formatter.formatWorkingDirectorySuffix(command)
	return fmt.Sprintf(commandLabelTemplateConstant, commandLabel, workingDirectorySuffix)
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

// extractOperands returns positional arguments, stopping at the "--" terminator.
func (formatter CommandMessageFormatter) extractOperands(arguments []string) []string {
	operands := make([]string, 0, len(arguments))
	for _, argument := range arguments {
		trimmedArgument := strings.TrimSpace(argument)
		if trimmedArgument == argumentTerminatorConstant {
			break
		}
		if strings.HasPrefix(trimmedArgument, flagPrefixConstant) {
			continue
		}
		operands = append(operands, trimmedArgument)
	}
	return operands
}

func (formatter CommandMessageFormatter) operandAtIndex(operands []string, index int) string {
	if index < 0 || index >= len(operands) {
		return emptyStringConstant
	}
	return operands[index]
}

func (formatter CommandMessageFormatter) extractFlagValue(arguments []string, flag string) string {
	for index := 0; index < len(arguments)-1; index++ {
		if strings.TrimSpace(arguments[index]) == flag {
			return arguments[index+1]
		}
	}
	return emptyStringConstant
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmedValue
}

// withoutConfigOverrides drops leading "-c key=value" pairs so the subcommand comes first.
func withoutConfigOverrides(arguments []string) []string {
	remaining := arguments
	for len(remaining) >= 2 && remaining[0] == gitConfigOverrideFlagConstant {
		remaining = remaining[2:]
	}
	return remaining
}
