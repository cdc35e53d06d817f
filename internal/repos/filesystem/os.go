package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	workspaceDirectoryPermissions    = fs.FileMode(0o755)
	workspaceOutsideRootTemplate     = "workspace %s is outside %s"
	workspaceCreationErrorTemplate   = "unable to create workspace under %s: %w"
	workspaceRootMissingMessage      = "workspace root not configured"
	workspacePatternSuffixConstant   = "-*"
	parentDirectoryReferenceConstant = ".."
)

// ErrWorkspaceRootNotConfigured indicates workspaces were requested without a root.
var ErrWorkspaceRootNotConfigured = errors.New(workspaceRootMissingMessage)

// OSFileSystem implements FileSystem using the operating system primitives.
type OSFileSystem struct{}

// Stat retrieves file metadata.
func (OSFileSystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Lstat retrieves file metadata without following a trailing symbolic link.
func (OSFileSystem) Lstat(path string) (fs.FileInfo, error) {
	return os.Lstat(path)
}

// Rename renames a path.
func (OSFileSystem) Rename(oldPath string, newPath string) error {
	return os.Rename(oldPath, newPath)
}

// Abs resolves an absolute path.
func (OSFileSystem) Abs(path string) (string, error) {
	return filepath.Abs(path)
}

// MkdirAll ensures a directory hierarchy exists with the provided permissions.
func (OSFileSystem) MkdirAll(path string, permissions fs.FileMode) error {
	return os.MkdirAll(path, permissions)
}

// ReadFile reads file contents.
func (OSFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile writes data to a file with the supplied permissions.
func (OSFileSystem) WriteFile(path string, data []byte, permissions fs.FileMode) error {
	return os.WriteFile(path, data, permissions)
}

// OSWorkspaces hands out scratch directories for shallow clones. They are the tool's own
// directories; discarding one never touches a repository on the remote.
type OSWorkspaces struct {
	Root string
}

// Create makes a fresh directory under the root whose name starts with the prefix.
func (workspaces OSWorkspaces) Create(prefix string) (string, error) {
	root, rootError := workspaces.root()
	if rootError != nil {
		return "", rootError
	}
	if creationError := os.MkdirAll(root, workspaceDirectoryPermissions); creationError != nil {
		return "", fmt.Errorf(workspaceCreationErrorTemplate, root, creationError)
	}
	workspacePath, temporaryError := os.MkdirTemp(root, prefix+workspacePatternSuffixConstant)
	if temporaryError != nil {
		return "", fmt.Errorf(workspaceCreationErrorTemplate, root, temporaryError)
	}
	return workspacePath, nil
}

// Discard removes a workspace previously returned by Create. Paths outside the root are refused.
func (workspaces OSWorkspaces) Discard(workspacePath string) error {
	root, rootError := workspaces.root()
	if rootError != nil {
		return rootError
	}
	absoluteWorkspace, absError := filepath.Abs(workspacePath)
	if absError != nil {
		return absError
	}
	relativePath, relativeError := filepath.Rel(root, absoluteWorkspace)
	if relativeError != nil || relativePath == "." || relativePath == parentDirectoryReferenceConstant || strings.HasPrefix(relativePath, parentDirectoryReferenceConstant+string(filepath.Separator)) {
		return fmt.Errorf(workspaceOutsideRootTemplate, workspacePath, root)
	}
	return os.RemoveAll(absoluteWorkspace)
}

func (workspaces OSWorkspaces) root() (string, error) {
	trimmedRoot := strings.TrimSpace(workspaces.Root)
	if len(trimmedRoot) == 0 {
		return "", ErrWorkspaceRootNotConfigured
	}
	return filepath.Abs(trimmedRoot)
}
