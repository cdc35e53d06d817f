package decisions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	decisionFileExtensionConstant    = ".json"
	temporaryFilePatternConstant     = ".decision-*.tmp"
	directoryPermissionsConstant     = fs.FileMode(0o755)
	createDirectoryErrorTemplate     = "unable to create decision directory %s: %w"
	readDecisionErrorTemplate        = "unable to read decision %s: %w"
	decodeDecisionErrorTemplate      = "unable to decode decision %s: %w"
	encodeDecisionErrorTemplate      = "unable to encode decision for %s: %w"
	writeTemporaryErrorTemplate      = "unable to stage decision %s: %w"
	publishDecisionErrorTemplate     = "unable to publish decision %s: %w"
	listDecisionsErrorTemplate       = "unable to list decisions in %s: %w"
	rootNotConfiguredMessageConstant = "decision store root not configured"
)

// ErrRootNotConfigured indicates a FileStore without a root directory.
var ErrRootNotConfigured = errors.New(rootNotConfiguredMessageConstant)

// FileStore keeps one JSON document per decision under <root>/<cohort>/<repository>.json.
type FileStore struct {
	rootDirectory string
}

// NewFileStore constructs a FileStore rooted at the provided directory.
func NewFileStore(rootDirectory string) (*FileStore, error) {
	trimmedRoot := strings.TrimSpace(rootDirectory)
	if len(trimmedRoot) == 0 {
		return nil, ErrRootNotConfigured
	}
	return &FileStore{rootDirectory: trimmedRoot}, nil
}

// RecordIfAbsent stages the record in a temporary file and hard-links it into place, so the
// final path either does not exist or holds a complete document. A blank file left by a
// terminated run counts as absent and is discarded before the link.
func (store *FileStore) RecordIfAbsent(executionContext context.Context, cohort string, repository string, record Record) (Outcome, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return "", contextError
	}
	if keyError := ValidateKey(cohort, repository); keyError != nil {
		return "", keyError
	}

	cohortDirectory := filepath.Join(store.rootDirectory, cohort)
	if creationError := os.MkdirAll(cohortDirectory, directoryPermissionsConstant); creationError != nil {
		return "", fmt.Errorf(createDirectoryErrorTemplate, cohortDirectory, creationError)
	}

	decisionPath := store.decisionPath(cohort, repository)
	_, found, readError := readDecision(decisionPath)
	if readError != nil {
		return "", readError
	}
	if found {
		return OutcomeSkippedExisting, nil
	}

	restored, discardError := discardBlankDecision(cohortDirectory, decisionPath)
	if discardError != nil {
		return "", fmt.Errorf(publishDecisionErrorTemplate, decisionPath, discardError)
	}
	if restored {
		return OutcomeSkippedExisting, nil
	}

	payload, encodeError := json.MarshalIndent(record, "", "  ")
	if encodeError != nil {
		return "", fmt.Errorf(encodeDecisionErrorTemplate, repository, encodeError)
	}

	temporaryPath, stageError := stageFile(cohortDirectory, append(payload, '\n'))
	if stageError != nil {
		return "", fmt.Errorf(writeTemporaryErrorTemplate, decisionPath, stageError)
	}
	defer os.Remove(temporaryPath)

	if linkError := os.Link(temporaryPath, decisionPath); linkError != nil {
		if errors.Is(linkError, fs.ErrExist) {
			return OutcomeSkippedExisting, nil
		}
		return "", fmt.Errorf(publishDecisionErrorTemplate, decisionPath, linkError)
	}
	return OutcomeWritten, nil
}

// Lookup reads the decision for the key. Missing and zero-length files report false.
func (store *FileStore) Lookup(executionContext context.Context, cohort string, repository string) (Record, bool, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return Record{}, false, contextError
	}
	if keyError := ValidateKey(cohort, repository); keyError != nil {
		return Record{}, false, keyError
	}
	return readDecision(store.decisionPath(cohort, repository))
}

// List returns every non-empty decision in the cohort sorted by repository.
func (store *FileStore) List(executionContext context.Context, cohort string) ([]Record, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return nil, contextError
	}
	if keyError := ValidateKey(cohort, cohort); keyError != nil {
		return nil, keyError
	}

	cohortDirectory := filepath.Join(store.rootDirectory, cohort)
	directoryEntries, readError := os.ReadDir(cohortDirectory)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf(listDecisionsErrorTemplate, cohortDirectory, readError)
	}

	records := make([]Record, 0, len(directoryEntries))
	for _, directoryEntry := range directoryEntries {
		if directoryEntry.IsDir() || !strings.HasSuffix(directoryEntry.Name(), decisionFileExtensionConstant) || strings.HasPrefix(directoryEntry.Name(), ".") {
			continue
		}
		record, found, recordError := readDecision(filepath.Join(cohortDirectory, directoryEntry.Name()))
		if recordError != nil {
			return nil, recordError
		}
		if found {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(leftIndex int, rightIndex int) bool {
		return records[leftIndex].Repo < records[rightIndex].Repo
	})
	return records, nil
}

func (store *FileStore) decisionPath(cohort string, repository string) string {
	return filepath.Join(store.rootDirectory, cohort, repository+decisionFileExtensionConstant)
}

func readDecision(decisionPath string) (Record, bool, error) {
	contents, readError := os.ReadFile(decisionPath)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf(readDecisionErrorTemplate, decisionPath, readError)
	}
	record, present, decodeError := decodeDecision(contents)
	if decodeError != nil {
		return Record{}, false, fmt.Errorf(decodeDecisionErrorTemplate, decisionPath, decodeError)
	}
	return record, present, nil
}

// decodeDecision is the single presence rule: blank contents and records without an ID or
// repository are absent.
func decodeDecision(contents []byte) (Record, bool, error) {
	if len(bytes.TrimSpace(contents)) == 0 {
		return Record{}, false, nil
	}
	var record Record
	if decodeError := json.Unmarshal(contents, &record); decodeError != nil {
		return Record{}, false, decodeError
	}
	if record.IsEmpty() {
		return Record{}, false, nil
	}
	return record, true, nil
}

// discardBlankDecision moves an existing file that holds no record aside. The file is renamed to a
// private name before it is inspected, so a record published concurrently by another process is
// never lost: if the moved file no longer reads as absent it is linked back and restored is true.
func discardBlankDecision(cohortDirectory string, decisionPath string) (bool, error) {
	if _, statError := os.Lstat(decisionPath); statError != nil {
		if errors.Is(statError, fs.ErrNotExist) {
			return false, nil
		}
		return false, statError
	}

	asidePath, reserveError := stageFile(cohortDirectory, nil)
	if reserveError != nil {
		return false, reserveError
	}
	defer os.Remove(asidePath)

	if renameError := os.Rename(decisionPath, asidePath); renameError != nil {
		if errors.Is(renameError, fs.ErrNotExist) {
			return false, nil
		}
		return false, renameError
	}

	contents, readError := os.ReadFile(asidePath)
	if readError != nil {
		return false, readError
	}
	if _, present, decodeError := decodeDecision(contents); decodeError == nil && !present {
		return false, nil
	}
	if linkError := os.Link(asidePath, decisionPath); linkError != nil && !errors.Is(linkError, fs.ErrExist) {
		return false, linkError
	}
	return true, nil
}

func stageFile(directory string, payload []byte) (string, error) {
	temporaryFile, creationError := os.CreateTemp(directory, temporaryFilePatternConstant)
	if creationError != nil {
		return "", creationError
	}
	temporaryPath := temporaryFile.Name()

	if _, writeError := temporaryFile.Write(payload); writeError != nil {
		temporaryFile.Close()
		os.Remove(temporaryPath)
		return "", writeError
	}
	if syncError := temporaryFile.Sync(); syncError != nil {
		temporaryFile.Close()
		os.Remove(temporaryPath)
		return "", syncError
	}
	if closeError := temporaryFile.Close(); closeError != nil {
		os.Remove(temporaryPath)
		return "", closeError
	}
	return temporaryPath, nil
}
