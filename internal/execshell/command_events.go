package execshell

// CommandEventObserver is notified around every git and gh invocation.
type CommandEventObserver interface {
	CommandStarted(command ShellCommand)
	// CommandCompleted fires for every exit code, including non-zero ones.
	CommandCompleted(command ShellCommand, result ExecutionResult)
	// CommandExecutionFailed fires when the process could not be started or was interrupted.
	CommandExecutionFailed(command ShellCommand, failure error)
}

// CommandEventObservers fans events out to each registered observer in order.
type CommandEventObservers []CommandEventObserver

// CommandStarted implements CommandEventObserver.
func (observers CommandEventObservers) CommandStarted(command ShellCommand) {
	for _, observer := range observers {
		observer.CommandStarted(command)
	}
}

// CommandCompleted implements CommandEventObserver.
func (observers CommandEventObservers) CommandCompleted(command ShellCommand, result ExecutionResult) {
	for _, observer := range observers {
		observer.CommandCompleted(command, result)
	}
}

// CommandExecutionFailed implements CommandEventObserver.
func (observers CommandEventObservers) CommandExecutionFailed(command ShellCommand, failure error) {
	for _, observer := range observers {
		observer.CommandExecutionFailed(command, failure)
	}
}
