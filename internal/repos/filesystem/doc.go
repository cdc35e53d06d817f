// Package filesystem provides the operating system backed FileSystem used by
// planners and executors, plus scratch workspaces for shallow clones.
package filesystem
