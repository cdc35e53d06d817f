// Package githubcli wraps the GitHub CLI for repogov workflows.
//
// It validates inputs for gh subcommands, exposes the narrow interfaces other
// packages consume, and routes every invocation through execshell so tests can
// substitute a recording executor.
package githubcli
