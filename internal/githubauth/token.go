package githubauth

import (
	"os"
	"strings"
)

// Environment variable names used by GitHub authentication helpers.
const (
	EnvGitHubCLIToken = "GH_TOKEN"
	EnvGitHubToken    = "GITHUB_TOKEN"
	EnvGitHubAPIToken = "GITHUB_API_TOKEN"
)

// SourceConfiguration labels a token supplied through configuration rather than the environment.
const SourceConfiguration = "configuration"

var tokenPreference = []string{
	EnvGitHubCLIToken,
	EnvGitHubToken,
	EnvGitHubAPIToken,
}

// EnvironmentLookup reads one environment variable.
type EnvironmentLookup func(key string) (string, bool)

// Token is a resolved credential and where it came from. The value is never logged.
type Token struct {
	Value  string
	Source string
}

// Present reports whether a usable token was found.
func (token Token) Present() bool {
	return len(token.Value) > 0
}

// Resolver picks the GitHub token for API listing and gh invocations.
type Resolver struct {
	lookup EnvironmentLookup
}

// NewResolver constructs a Resolver reading the process environment when lookup is nil.
func NewResolver(lookup EnvironmentLookup) Resolver {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return Resolver{lookup: lookup}
}

// Resolve prefers an explicitly configured token, then GH_TOKEN, GITHUB_TOKEN and GITHUB_API_TOKEN
// in that order. Blank values are ignored.
func (resolver Resolver) Resolve(configuredToken string) Token {
	if trimmed := strings.TrimSpace(configuredToken); len(trimmed) > 0 {
		return Token{Value: trimmed, Source: SourceConfiguration}
	}
	for _, key := range tokenPreference {
		if value, ok := resolver.lookup(key); ok {
			if trimmed := strings.TrimSpace(value); len(trimmed) > 0 {
				return Token{Value: trimmed, Source: key}
			}
		}
	}
	return Token{}
}
