package filesystem_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/repogov/internal/repos/filesystem"
)

func TestOSWorkspacesCreateAndDiscard(testInstance *testing.T) {
	root := filepath.Join(testInstance.TempDir(), "workspaces")
	workspaces := filesystem.OSWorkspaces{Root: root}

	workspacePath, creationError := workspaces.Create("alpha")
	require.NoError(testInstance, creationError)
	require.DirExists(testInstance, workspacePath)
	require.Equal(testInstance, root, filepath.Dir(workspacePath))
	require.Contains(testInstance, filepath.Base(workspacePath), "alpha-")

	require.NoError(testInstance, os.WriteFile(filepath.Join(workspacePath, "file.txt"), []byte("x"), 0o644))
	require.NoError(testInstance, workspaces.Discard(workspacePath))
	require.NoDirExists(testInstance, workspacePath)
}

func TestOSWorkspacesRefuseForeignPaths(testInstance *testing.T) {
	baseDirectory := testInstance.TempDir()
	root := filepath.Join(baseDirectory, "workspaces")
	outside := filepath.Join(baseDirectory, "keep")
	require.NoError(testInstance, os.MkdirAll(outside, 0o755))

	workspaces := filesystem.OSWorkspaces{Root: root}
	testCases := []struct {
		name string
		path string
	}{
		{name: "sibling", path: outside},
		{name: "root_itself", path: root},
		{name: "parent", path: baseDirectory},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Error(testInstance, workspaces.Discard(testCase.path))
		})
	}
	require.DirExists(testInstance, outside)
}

func TestOSWorkspacesRequireRoot(testInstance *testing.T) {
	_, creationError := filesystem.OSWorkspaces{}.Create("alpha")
	require.ErrorIs(testInstance, creationError, filesystem.ErrWorkspaceRootNotConfigured)
}
