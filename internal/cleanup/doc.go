// Package cleanup plans move-only cleanups.
//
// Plan is a pure function from a tree listing to the disposable paths worth
// moving into TRASH. Planner gates it with the decision store, writes the move
// list and a bash apply script, and records the decision so a cohort never
// plans the same repository twice.
package cleanup
