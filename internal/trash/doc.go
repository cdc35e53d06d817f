// Package trash applies move lists to fresh shallow clones.
//
// The executor only renames paths into a TRASH directory and pushes one commit
// per repository; it never deletes files from a working copy.
package trash
