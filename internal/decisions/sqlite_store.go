package decisions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/temirov/repogov/internal/risk"
)

const (
	sqliteDriverNameConstant     = "sqlite"
	sqlitePragmasConstant        = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	currentSchemaVersionConstant = 1
	openDatabaseErrorTemplate    = "unable to open decision database %s: %w"
	migrateDatabaseErrorTemplate = "unable to migrate decision database: %w"
	insertDecisionErrorTemplate  = "unable to record decision %s/%s: %w"
	queryDecisionErrorTemplate   = "unable to read decision %s/%s: %w"
	listCohortErrorTemplate      = "unable to list decisions for cohort %s: %w"
	userVersionErrorTemplate     = "unable to read schema version: %w"
	databasePathMessageConstant  = "decision database path not configured"
	userVersionQueryConstant     = "PRAGMA user_version;"
	setUserVersionTemplate       = "PRAGMA user_version = %d;"
	selectByKeySuffixConstant    = " WHERE cohort = ? AND repo = ?"
	selectByCohortSuffixConstant = " WHERE cohort = ? ORDER BY repo"
)

const decisionsSchemaStatement = `
CREATE TABLE IF NOT EXISTS decisions (
  cohort            TEXT NOT NULL,
  repo              TEXT NOT NULL,
  id                TEXT NOT NULL,
  final_tag         TEXT NOT NULL,
  move_list_count   INTEGER NOT NULL,
  move_list_path    TEXT NOT NULL,
  apply_script_path TEXT NOT NULL,
  risk_score        INTEGER NOT NULL,
  category          TEXT NOT NULL,
  created_at        INTEGER NOT NULL,
  policy            TEXT NOT NULL,
  PRIMARY KEY (cohort, repo)
);`

const insertDecisionStatement = `
INSERT INTO decisions (cohort, repo, id, final_tag, move_list_count, move_list_path, apply_script_path, risk_score, category, created_at, policy)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (cohort, repo) DO NOTHING`

const selectDecisionColumns = `SELECT cohort, repo, id, final_tag, move_list_count, move_list_path, apply_script_path, risk_score, category, created_at, policy FROM decisions`

// ErrDatabasePathNotConfigured indicates a SQLiteStore without a database path.
var ErrDatabasePathNotConfigured = errors.New(databasePathMessageConstant)

// SQLiteStore keeps decisions in a SQLite table keyed by (cohort, repo).
type SQLiteStore struct {
	database *sql.DB
}

// OpenSQLiteStore opens or creates the database and applies pending migrations.
func OpenSQLiteStore(databasePath string) (*SQLiteStore, error) {
	if len(databasePath) == 0 {
		return nil, ErrDatabasePathNotConfigured
	}
	if creationError := os.MkdirAll(filepath.Dir(databasePath), directoryPermissionsConstant); creationError != nil {
		return nil, fmt.Errorf(openDatabaseErrorTemplate, databasePath, creationError)
	}

	database, openError := sql.Open(sqliteDriverNameConstant, databasePath+sqlitePragmasConstant)
	if openError != nil {
		return nil, fmt.Errorf(openDatabaseErrorTemplate, databasePath, openError)
	}
	if migrationError := migrate(database); migrationError != nil {
		database.Close()
		return nil, fmt.Errorf(migrateDatabaseErrorTemplate, migrationError)
	}
	return &SQLiteStore{database: database}, nil
}

// Close releases the database handle.
func (store *SQLiteStore) Close() error {
	return store.database.Close()
}

// RecordIfAbsent inserts the record unless the key already exists.
func (store *SQLiteStore) RecordIfAbsent(executionContext context.Context, cohort string, repository string, record Record) (Outcome, error) {
	if keyError := ValidateKey(cohort, repository); keyError != nil {
		return "", keyError
	}

	result, insertError := store.database.ExecContext(executionContext, insertDecisionStatement,
		cohort,
		repository,
		record.ID,
		string(record.FinalTag),
		record.MoveListCount,
		record.MoveListPath,
		record.ApplyScriptPath,
		record.RiskScore,
		string(record.Category),
		record.Timestamp.UTC().UnixNano(),
		record.Policy,
	)
	if insertError != nil {
		return "", fmt.Errorf(insertDecisionErrorTemplate, cohort, repository, insertError)
	}

	affectedRows, affectedError := result.RowsAffected()
	if affectedError != nil {
		return "", fmt.Errorf(insertDecisionErrorTemplate, cohort, repository, affectedError)
	}
	if affectedRows == 0 {
		return OutcomeSkippedExisting, nil
	}
	return OutcomeWritten, nil
}

// Lookup returns the decision for the key when one exists.
func (store *SQLiteStore) Lookup(executionContext context.Context, cohort string, repository string) (Record, bool, error) {
	if keyError := ValidateKey(cohort, repository); keyError != nil {
		return Record{}, false, keyError
	}

	row := store.database.QueryRowContext(executionContext, selectDecisionColumns+selectByKeySuffixConstant, cohort, repository)
	record, scanError := scanRecord(row)
	if errors.Is(scanError, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if scanError != nil {
		return Record{}, false, fmt.Errorf(queryDecisionErrorTemplate, cohort, repository, scanError)
	}
	return record, true, nil
}

// List returns every decision in the cohort sorted by repository.
func (store *SQLiteStore) List(executionContext context.Context, cohort string) ([]Record, error) {
	rows, queryError := store.database.QueryContext(executionContext, selectDecisionColumns+selectByCohortSuffixConstant, cohort)
	if queryError != nil {
		return nil, fmt.Errorf(listCohortErrorTemplate, cohort, queryError)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, scanError := scanRecord(rows)
		if scanError != nil {
			return nil, fmt.Errorf(listCohortErrorTemplate, cohort, scanError)
		}
		records = append(records, record)
	}
	if iterationError := rows.Err(); iterationError != nil {
		return nil, fmt.Errorf(listCohortErrorTemplate, cohort, iterationError)
	}
	return records, nil
}

type rowScanner interface {
	Scan(destinations ...any) error
}

func scanRecord(scanner rowScanner) (Record, error) {
	var record Record
	var finalTag string
	var category string
	var createdAt int64
	scanError := scanner.Scan(
		&record.Cohort,
		&record.Repo,
		&record.ID,
		&finalTag,
		&record.MoveListCount,
		&record.MoveListPath,
		&record.ApplyScriptPath,
		&record.RiskScore,
		&category,
		&createdAt,
		&record.Policy,
	)
	if scanError != nil {
		return Record{}, scanError
	}
	record.FinalTag = FinalTag(finalTag)
	record.Category = risk.Category(category)
	record.Timestamp = time.Unix(0, createdAt).UTC()
	return record, nil
}

// migrate applies schema migrations tracked by PRAGMA user_version.
func migrate(database *sql.DB) error {
	var version int
	if scanError := database.QueryRow(userVersionQueryConstant).Scan(&version); scanError != nil {
		return fmt.Errorf(userVersionErrorTemplate, scanError)
	}

	if version < 1 {
		if _, execError := database.Exec(decisionsSchemaStatement); execError != nil {
			return execError
		}
	}

	if version < currentSchemaVersionConstant {
		if _, execError := database.Exec(fmt.Sprintf(setUserVersionTemplate, currentSchemaVersionConstant)); execError != nil {
			return execError
		}
	}
	return nil
}
