// Package ui renders git and gh lifecycle events as one-line console messages for the console log
// format. Tokens passed through the environment or embedded in remote URLs are masked.
package ui
