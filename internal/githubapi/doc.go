// Package githubapi talks to the GitHub REST API over net/http.
//
// Client applies the retry policy to every GET, follows Link pagination up to
// a page ceiling, classifies failures into typed errors, and keeps an LRU cache
// of tree and content responses so the content sampler and the cleanup planner
// share one fetch per repository.
package githubapi
