// Package execshell runs git and gh for the move-only executor.
//
// ShellExecutor wraps a CommandRunner with zap logging and fans lifecycle
// events out to any registered observers. OSCommandRunner runs processes
// through os/exec with credential prompts disabled.
package execshell
