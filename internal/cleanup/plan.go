package cleanup

import (
	"path"
	"sort"
	"strings"
)

const (
	editorBackupSuffixConstant = "~"
	pathSeparatorConstant      = "/"
)

// EntryType distinguishes files from directories in a tree listing.
type EntryType string

// Tree entry types.
const (
	EntryTypeFile      EntryType = "file"
	EntryTypeDirectory EntryType = "directory"
)

// TreeEntry is one repository path with forward-slash separators.
type TreeEntry struct {
	Path string
	Type EntryType
}

// MoveListPlan is the sorted, deduplicated set of paths to move into TRASH.
type MoveListPlan struct {
	Paths []string `json:"paths"`
}

// Len reports the number of planned moves.
func (plan MoveListPlan) Len() int {
	return len(plan.Paths)
}

// IsEmpty reports whether nothing needs to move.
func (plan MoveListPlan) IsEmpty() bool {
	return len(plan.Paths) == 0
}

var excludedComponents = map[string]struct{}{
	"..":     {},
	".git":   {},
	"TRASH":  {},
	"_TRASH": {},
}

var disposableDirectories = map[string]struct{}{
	"node_modules":  {},
	"dist":          {},
	"build":         {},
	"out":           {},
	"target":        {},
	"coverage":      {},
	".cache":        {},
	"__pycache__":   {},
	".pytest_cache": {},
	".mypy_cache":   {},
	".ruff_cache":   {},
	".next":         {},
	".nuxt":         {},
	".gradle":       {},
	".tox":          {},
	".parcel-cache": {},
	".nyc_output":   {},
	".sass-cache":   {},
	"htmlcov":       {},
}

var disposableFiles = map[string]struct{}{
	".DS_Store":      {},
	"Thumbs.db":      {},
	"desktop.ini":    {},
	"npm-debug.log":  {},
	"yarn-error.log": {},
	".coverage":      {},
}

var disposableExtensions = map[string]struct{}{
	".log":  {},
	".tmp":  {},
	".temp": {},
	".bak":  {},
	".swp":  {},
	".swo":  {},
	".orig": {},
	".pyc":  {},
	".pyo":  {},
}

// Plan selects disposable paths from a tree listing. Any path with a .git, TRASH or _TRASH
// component is never selected. The outermost disposable directory is selected in place of its
// descendants.
func Plan(entries []TreeEntry) MoveListPlan {
	selected := make(map[string]struct{})
	for _, entry := range entries {
		if selectedPath, disposable := disposablePath(entry); disposable {
			selected[selectedPath] = struct{}{}
		}
	}

	paths := make([]string, 0, len(selected))
	for selectedPath := range selected {
		paths = append(paths, selectedPath)
	}
	sort.Strings(paths)
	return MoveListPlan{Paths: paths}
}

// IsExcludedPath reports whether a path lies under git metadata or an existing trash directory.
func IsExcludedPath(relativePath string) bool {
	for _, component := range splitComponents(relativePath) {
		if _, excluded := excludedComponents[component]; excluded {
			return true
		}
	}
	return false
}

func disposablePath(entry TreeEntry) (string, bool) {
	components := splitComponents(entry.Path)
	if len(components) == 0 || IsExcludedPath(entry.Path) {
		return "", false
	}

	lastIndex := len(components) - 1
	for componentIndex, component := range components {
		isDirectoryComponent := componentIndex < lastIndex || entry.Type == EntryTypeDirectory
		if !isDirectoryComponent {
			break
		}
		if _, disposable := disposableDirectories[component]; disposable {
			return strings.Join(components[:componentIndex+1], pathSeparatorConstant), true
		}
	}

	if entry.Type == EntryTypeFile && isDisposableFileName(components[lastIndex]) {
		return strings.Join(components, pathSeparatorConstant), true
	}
	return "", false
}

func isDisposableFileName(fileName string) bool {
	if _, disposable := disposableFiles[fileName]; disposable {
		return true
	}
	if strings.HasSuffix(fileName, editorBackupSuffixConstant) {
		return true
	}
	_, disposable := disposableExtensions[strings.ToLower(path.Ext(fileName))]
	return disposable
}

func splitComponents(relativePath string) []string {
	normalized := strings.ReplaceAll(strings.TrimSpace(relativePath), `\`, pathSeparatorConstant)
	var components []string
	for _, component := range strings.Split(normalized, pathSeparatorConstant) {
		if len(component) == 0 || component == "." {
			continue
		}
		components = append(components, component)
	}
	return components
}
