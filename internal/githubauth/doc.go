// Package githubauth resolves the GitHub token shared by the API client and
// the gh CLI.
package githubauth
