package cleanup_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/repogov/internal/cleanup"
)

func fileEntry(path string) cleanup.TreeEntry {
	return cleanup.TreeEntry{Path: path, Type: cleanup.EntryTypeFile}
}

func directoryEntry(path string) cleanup.TreeEntry {
	return cleanup.TreeEntry{Path: path, Type: cleanup.EntryTypeDirectory}
}

func TestPlanSelectsDisposablePaths(testInstance *testing.T) {
	testCases := []struct {
		name          string
		entries       []cleanup.TreeEntry
		expectedPaths []string
	}{
		{
			name: "trash_and_git_are_never_selected",
			entries: []cleanup.TreeEntry{
				directoryEntry("build"),
				fileEntry("build/output.bin"),
				directoryEntry("TRASH"),
				directoryEntry("TRASH/build"),
				fileEntry("TRASH/build/x.log"),
				directoryEntry(".git"),
				fileEntry(".git/config"),
			},
			expectedPaths: []string{"build"},
		},
		{
			name: "outermost_disposable_directory_wins",
			entries: []cleanup.TreeEntry{
				fileEntry("web/node_modules/left-pad/index.js"),
				fileEntry("web/node_modules/left-pad/dist/index.js"),
				fileEntry("web/src/app.js"),
			},
			expectedPaths: []string{"web/node_modules"},
		},
		{
			name: "disposable_files_by_name_and_extension",
			entries: []cleanup.TreeEntry{
				fileEntry(".DS_Store"),
				fileEntry("docs/notes.md~"),
				fileEntry("logs/server.LOG"),
				fileEntry("pkg/module.pyc"),
				fileEntry("README.md"),
				fileEntry("main.go"),
			},
			expectedPaths: []string{".DS_Store", "docs/notes.md~", "logs/server.LOG", "pkg/module.pyc"},
		},
		{
			name: "file_named_like_directory_is_kept",
			entries: []cleanup.TreeEntry{
				fileEntry("build"),
				fileEntry("dist"),
			},
			expectedPaths: []string{},
		},
		{
			name: "underscore_trash_and_parent_references_are_excluded",
			entries: []cleanup.TreeEntry{
				fileEntry("_TRASH/debug.log"),
				fileEntry("../outside.log"),
				fileEntry("nested/.git/hooks/pre-commit.bak"),
			},
			expectedPaths: []string{},
		},
		{
			name: "duplicates_collapse",
			entries: []cleanup.TreeEntry{
				directoryEntry("coverage"),
				fileEntry("coverage/index.html"),
				fileEntry("./coverage/lcov.info"),
			},
			expectedPaths: []string{"coverage"},
		},
		{
			name:          "empty_listing",
			entries:       nil,
			expectedPaths: []string{},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			plan := cleanup.Plan(testCase.entries)
			require.Equal(testInstance, testCase.expectedPaths, plan.Paths)
			require.Equal(testInstance, len(testCase.expectedPaths), plan.Len())
			require.Equal(testInstance, len(testCase.expectedPaths) == 0, plan.IsEmpty())
		})
	}
}

func TestPlanIsDeterministic(testInstance *testing.T) {
	entries := []cleanup.TreeEntry{
		fileEntry("b/dist/x.js"),
		fileEntry("a.tmp"),
		directoryEntry("target"),
		fileEntry("z.bak"),
	}
	reversed := make([]cleanup.TreeEntry, len(entries))
	for entryIndex, entry := range entries {
		reversed[len(entries)-1-entryIndex] = entry
	}
	require.Equal(testInstance, cleanup.Plan(entries), cleanup.Plan(reversed))
	require.Equal(testInstance, []string{"a.tmp", "b/dist", "target", "z.bak"}, cleanup.Plan(entries).Paths)
}

func TestIsExcludedPath(testInstance *testing.T) {
	testCases := []struct {
		path     string
		excluded bool
	}{
		{path: ".git/config", excluded: true},
		{path: "TRASH/build", excluded: true},
		{path: "a/_TRASH/b", excluded: true},
		{path: "../escape", excluded: true},
		{path: "build", excluded: false},
		{path: "trash/build", excluded: false},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.path, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.excluded, cleanup.IsExcludedPath(testCase.path))
		})
	}
}
