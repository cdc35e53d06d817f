package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/temirov/repogov/internal/repos/shared"
	"github.com/temirov/repogov/internal/trash"
)

const (
	timestampLayoutConstant          = time.RFC3339
	governanceDirectoryConstant      = "governance"
	applyReportsDirectoryConstant    = "apply-reports"
	rawFileNameConstant              = "raw.json"
	intelligenceFileNameConstant     = "intelligence.json"
	dashboardMarkdownFileConstant    = "dashboard.md"
	dashboardHTMLFileConstant        = "dashboard.html"
	applyReportFileNameConstant      = "apply_report.json"
	runLogFileNameConstant           = "RULES.md"
	runLogMarkerConstant             = "### GOVERNANCE (AUTO)"
	runLogHeaderTemplate             = "\n\n%s\n- Runs recorded below.\n"
	runLogEntryTemplate              = "\n- %s | repogov %s\n  - total_repos=%d top_n=%d token_present=%t\n  - outputs: %s\n  - policy: NO DELETE (MOVE ONLY to TRASH).\n"
	outputSeparatorConstant          = " , "
	jsonIndentConstant               = "  "
	directoryPermissionsConstant     = fs.FileMode(0o755)
	artifactPermissionsConstant      = fs.FileMode(0o644)
	stateRootMissingMessage          = "state root not configured"
	runIDMissingMessage              = "run identifier not provided"
	createDirectoryErrorTemplate     = "unable to create output directory %s: %w"
	encodeArtifactErrorTemplate      = "unable to encode %s: %w"
	writeArtifactErrorTemplate       = "unable to write %s: %w"
	readRunLogErrorTemplate          = "unable to read run log %s: %w"
	fileSystemMissingMessageConstant = "file system not configured"
)

var (
	// ErrStateRootNotConfigured indicates a writer without a state root.
	ErrStateRootNotConfigured = errors.New(stateRootMissingMessage)
	// ErrRunIDMissing indicates an artifact request without a run identifier.
	ErrRunIDMissing = errors.New(runIDMissingMessage)
	// ErrFileSystemNotConfigured indicates a writer without a file system.
	ErrFileSystemNotConfigured = errors.New(fileSystemMissingMessageConstant)
)

// RunArtifacts lists the files written for one scan.
type RunArtifacts struct {
	Directory             string
	RawPath               string
	IntelligencePath      string
	DashboardMarkdownPath string
	DashboardHTMLPath     string
}

// Paths returns the artifact files in a stable order.
func (artifacts RunArtifacts) Paths() []string {
	return []string{artifacts.RawPath, artifacts.IntelligencePath, artifacts.DashboardMarkdownPath, artifacts.DashboardHTMLPath}
}

// RunLogEntry is one line group appended to RULES.md.
type RunLogEntry struct {
	RunID        string
	Command      string
	Total        int
	TopN         int
	TokenPresent bool
	Outputs      []string
}

// ArtifactWriter persists run outputs under the state root.
type ArtifactWriter struct {
	fileSystem shared.FileSystem
	stateRoot  string
}

// NewArtifactWriter constructs an ArtifactWriter.
func NewArtifactWriter(fileSystem shared.FileSystem, stateRoot string) (*ArtifactWriter, error) {
	if fileSystem == nil {
		return nil, ErrFileSystemNotConfigured
	}
	trimmedRoot := strings.TrimSpace(stateRoot)
	if len(trimmedRoot) == 0 {
		return nil, ErrStateRootNotConfigured
	}
	return &ArtifactWriter{fileSystem: fileSystem, stateRoot: trimmedRoot}, nil
}

// WriteRun writes raw.json, intelligence.json, dashboard.md and dashboard.html into
// <state_root>/governance/<runID>/. Identical snapshots produce identical bytes.
func (writer *ArtifactWriter) WriteRun(snapshot RunSnapshot) (RunArtifacts, error) {
	if len(strings.TrimSpace(snapshot.RunID)) == 0 {
		return RunArtifacts{}, ErrRunIDMissing
	}
	directory := filepath.Join(writer.stateRoot, governanceDirectoryConstant, snapshot.RunID)
	if creationError := writer.fileSystem.MkdirAll(directory, directoryPermissionsConstant); creationError != nil {
		return RunArtifacts{}, fmt.Errorf(createDirectoryErrorTemplate, directory, creationError)
	}

	artifacts := RunArtifacts{
		Directory:             directory,
		RawPath:               filepath.Join(directory, rawFileNameConstant),
		IntelligencePath:      filepath.Join(directory, intelligenceFileNameConstant),
		DashboardMarkdownPath: filepath.Join(directory, dashboardMarkdownFileConstant),
		DashboardHTMLPath:     filepath.Join(directory, dashboardHTMLFileConstant),
	}

	rawDocument := NewRawDocument(snapshot)
	intelligenceDocument := NewIntelligenceDocument(snapshot)
	if writeError := writer.writeJSON(artifacts.RawPath, rawDocument); writeError != nil {
		return artifacts, writeError
	}
	if writeError := writer.writeJSON(artifacts.IntelligencePath, intelligenceDocument); writeError != nil {
		return artifacts, writeError
	}

	markdown, markdownError := RenderDashboardMarkdown(intelligenceDocument, rawDocument)
	if markdownError != nil {
		return artifacts, markdownError
	}
	if writeError := writer.writeFile(artifacts.DashboardMarkdownPath, markdown); writeError != nil {
		return artifacts, writeError
	}
	html, htmlError := RenderDashboardHTML(markdown)
	if htmlError != nil {
		return artifacts, htmlError
	}
	if writeError := writer.writeFile(artifacts.DashboardHTMLPath, html); writeError != nil {
		return artifacts, writeError
	}
	return artifacts, nil
}

// WriteApplyReport writes <state_root>/apply-reports/<runID>/apply_report.json.
func (writer *ArtifactWriter) WriteApplyReport(runID string, applyReport trash.ApplyReport) (string, error) {
	if len(strings.TrimSpace(runID)) == 0 {
		return "", ErrRunIDMissing
	}
	directory := filepath.Join(writer.stateRoot, applyReportsDirectoryConstant, runID)
	if creationError := writer.fileSystem.MkdirAll(directory, directoryPermissionsConstant); creationError != nil {
		return "", fmt.Errorf(createDirectoryErrorTemplate, directory, creationError)
	}
	reportPath := filepath.Join(directory, applyReportFileNameConstant)
	if writeError := writer.writeJSON(reportPath, applyReport); writeError != nil {
		return "", writeError
	}
	return reportPath, nil
}

// AppendRunLog appends a run entry to <state_root>/RULES.md, adding the section marker once.
func (writer *ArtifactWriter) AppendRunLog(entry RunLogEntry) (string, error) {
	if creationError := writer.fileSystem.MkdirAll(writer.stateRoot, directoryPermissionsConstant); creationError != nil {
		return "", fmt.Errorf(createDirectoryErrorTemplate, writer.stateRoot, creationError)
	}
	runLogPath := filepath.Join(writer.stateRoot, runLogFileNameConstant)

	existing, readError := writer.fileSystem.ReadFile(runLogPath)
	if readError != nil && !errors.Is(readError, fs.ErrNotExist) {
		return "", fmt.Errorf(readRunLogErrorTemplate, runLogPath, readError)
	}

	var builder strings.Builder
	builder.Write(existing)
	if !strings.Contains(string(existing), runLogMarkerConstant) {
		builder.WriteString(fmt.Sprintf(runLogHeaderTemplate, runLogMarkerConstant))
	}
	builder.WriteString(fmt.Sprintf(runLogEntryTemplate, entry.RunID, entry.Command, entry.Total, entry.TopN, entry.TokenPresent, strings.Join(entry.Outputs, outputSeparatorConstant)))

	if writeError := writer.writeFile(runLogPath, []byte(builder.String())); writeError != nil {
		return "", writeError
	}
	return runLogPath, nil
}

func (writer *ArtifactWriter) writeJSON(targetPath string, document any) error {
	encoded, encodeError := json.MarshalIndent(document, "", jsonIndentConstant)
	if encodeError != nil {
		return fmt.Errorf(encodeArtifactErrorTemplate, filepath.Base(targetPath), encodeError)
	}
	return writer.writeFile(targetPath, append(encoded, '\n'))
}

func (writer *ArtifactWriter) writeFile(targetPath string, contents []byte) error {
	if writeError := writer.fileSystem.WriteFile(targetPath, contents, artifactPermissionsConstant); writeError != nil {
		return fmt.Errorf(writeArtifactErrorTemplate, targetPath, writeError)
	}
	return nil
}
