package ui

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/repogov/internal/execshell"
)

const (
	commandStartedMessageTemplateConstant   = "running %s"
	commandCompletedMessageTemplateConstant = "finished %s"
	commandFailedMessageTemplateConstant    = "%s exited with code %d"
	commandExecutionFailureTemplateConstant = "%s could not run: %s"
	workingDirectorySuffixTemplateConstant  = " in %s"
	environmentSuffixTemplateConstant       = " [%s]"
	redactedEnvironmentTemplateConstant     = "%s=***"
	standardErrorSuffixTemplateConstant     = ": %s"
	argumentSeparatorConstant               = " "
	environmentSeparatorConstant            = " "
	redactedPasswordConstant                = "redacted"
	unknownFailureMessageConstant           = "unknown error"
)

// CommandEventFormatter builds one-line console messages for git and gh invocations. Credentials
// never appear: environment values are masked and userinfo in remote URLs is redacted.
type CommandEventFormatter struct{}

// BuildStartedMessage formats the message for a command about to run.
func (formatter CommandEventFormatter) BuildStartedMessage(command execshell.ShellCommand) string {
	return fmt.Sprintf(commandStartedMessageTemplateConstant, formatter.formatCommandLabel(command))
}

// BuildSuccessMessage formats the message for a command that exited with code zero.
func (formatter CommandEventFormatter) BuildSuccessMessage(command execshell.ShellCommand) string {
	return fmt.Sprintf(commandCompletedMessageTemplateConstant, formatter.formatCommandLabel(command))
}

// BuildFailureMessage formats the message for a command that exited non-zero. Only the last
// non-empty line of standard error is kept.
func (formatter CommandEventFormatter) BuildFailureMessage(command execshell.ShellCommand, result execshell.ExecutionResult) string {
	message := fmt.Sprintf(commandFailedMessageTemplateConstant, formatter.formatCommandLabel(command), result.ExitCode)
	if lastLine := lastNonEmptyLine(result.StandardError); len(lastLine) > 0 {
		message += fmt.Sprintf(standardErrorSuffixTemplateConstant, lastLine)
	}
	return message
}

// BuildExecutionFailureMessage formats the message for a command that could not be started.
func (formatter CommandEventFormatter) BuildExecutionFailureMessage(command execshell.ShellCommand, failure error) string {
	failureMessage := unknownFailureMessageConstant
	if failure != nil {
		failureMessage = failure.Error()
	}
	return fmt.Sprintf(commandExecutionFailureTemplateConstant, formatter.formatCommandLabel(command), failureMessage)
}

func (formatter CommandEventFormatter) formatCommandLabel(command execshell.ShellCommand) string {
	labelParts := []string{string(command.Name)}
	for _, argument := range command.Details.Arguments {
		labelParts = append(labelParts, redactArgument(argument))
	}
	label := strings.Join(labelParts, argumentSeparatorConstant)

	if workingDirectory := strings.TrimSpace(command.Details.WorkingDirectory); len(workingDirectory) > 0 {
		label += fmt.Sprintf(workingDirectorySuffixTemplateConstant, workingDirectory)
	}
	if len(command.Details.EnvironmentVariables) > 0 {
		label += fmt.Sprintf(environmentSuffixTemplateConstant, maskedEnvironment(command.Details.EnvironmentVariables))
	}
	return label
}

func redactArgument(argument string) string {
	parsed, parseError := url.Parse(argument)
	if parseError != nil || parsed.User == nil || len(parsed.Host) == 0 {
		return argument
	}
	parsed.User = url.UserPassword(parsed.User.Username(), redactedPasswordConstant)
	return parsed.String()
}

func maskedEnvironment(environment map[string]string) string {
	names := make([]string, 0, len(environment))
	for name := range environment {
		names = append(names, fmt.Sprintf(redactedEnvironmentTemplateConstant, name))
	}
	sort.Strings(names)
	return strings.Join(names, environmentSeparatorConstant)
}

func lastNonEmptyLine(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for lineIndex := len(lines) - 1; lineIndex >= 0; lineIndex-- {
		if trimmed := strings.TrimSpace(lines[lineIndex]); len(trimmed) > 0 {
			return trimmed
		}
	}
	return ""
}

// ConsoleCommandEventLogger renders command lifecycle events through a console-formatted zap logger.
type ConsoleCommandEventLogger struct {
	logger    *zap.Logger
	formatter CommandEventFormatter
}

// NewConsoleCommandEventLogger constructs a console event logger.
func NewConsoleCommandEventLogger(logger *zap.Logger) *ConsoleCommandEventLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleCommandEventLogger{logger: logger, formatter: CommandEventFormatter{}}
}

// CommandStarted implements execshell.CommandEventObserver.
func (eventLogger *ConsoleCommandEventLogger) CommandStarted(command execshell.ShellCommand) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Info(eventLogger.formatter.BuildStartedMessage(command))
}

// CommandCompleted implements execshell.CommandEventObserver. Non-zero exits are warnings because
// the executor records them per repository and continues.
func (eventLogger *ConsoleCommandEventLogger) CommandCompleted(command execshell.ShellCommand, result execshell.ExecutionResult) {
	if eventLogger == nil {
		return
	}
	if result.ExitCode == 0 {
		eventLogger.logger.Info(eventLogger.formatter.BuildSuccessMessage(command))
		return
	}
	eventLogger.logger.Warn(eventLogger.formatter.BuildFailureMessage(command, result))
}

// CommandExecutionFailed implements execshell.CommandEventObserver.
func (eventLogger *ConsoleCommandEventLogger) CommandExecutionFailed(command execshell.ShellCommand, failure error) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Error(eventLogger.formatter.BuildExecutionFailureMessage(command, failure))
}
