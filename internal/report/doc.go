// Package report persists run artifacts.
//
// Each scan writes raw.json, intelligence.json and a dashboard in markdown and
// HTML under a directory named by the run identifier. Apply passes write an
// apply report, every run appends to RULES.md, and the artifacts can be
// mirrored to an S3-compatible bucket.
package report
