// Package decisions records, per cohort and repository, that a cleanup plan
// was produced, so later runs skip work that was already decided.
//
// Records are append-only. FileStore and SQLiteStore both implement an
// atomic create-if-absent write; KeyedLocker serializes the lookup and write
// for one key inside a process.
package decisions
