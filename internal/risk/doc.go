// Package risk scores repositories for staleness and missing metadata and
// buckets the score into governance categories.
package risk
