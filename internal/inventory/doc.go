// Package inventory enumerates an owner's repositories from the public and
// authenticated listings and merges them into a single name-keyed snapshot.
//
// Failures of either listing are recorded as EnumerationError values rather
// than aborting the run.
package inventory
