// Package retry implements bounded exponential backoff as a policy object.
//
// The classifier decides which failures are transient and the sleeper is
// injectable so tests can observe the backoff schedule without waiting.
package retry
