// Package gitrepo runs the git operations that turn moved files into a
// cleanup commit: staging, inspecting the staged set, configuring the
// committer, committing, and pushing.
package gitrepo
