package discovery

import (
	"io/fs"
	"path/filepath"
	"sort"
)

const (
	gitMetadataDirectoryNameConstant = ".git"
	currentDirectoryConstant         = "."
)

// WalkedEntry is one path found beneath a working copy root, using forward slashes.
type WalkedEntry struct {
	Path        string
	IsDirectory bool
}

// FilesystemTreeWalker lists the contents of a checked-out working copy.
type FilesystemTreeWalker struct{}

// NewFilesystemTreeWalker constructs a tree walker backed by filepath.WalkDir.
func NewFilesystemTreeWalker() *FilesystemTreeWalker {
	return &FilesystemTreeWalker{}
}

// WalkTree returns every file and directory under root relative to it. Git metadata is not
// descended into. Symbolic links are reported as files and never followed.
func (walker *FilesystemTreeWalker) WalkTree(root string) ([]WalkedEntry, error) {
	var entries []WalkedEntry

	walkError := filepath.WalkDir(root, func(path string, directoryEntry fs.DirEntry, walkError error) error {
		if walkError != nil {
			return walkError
		}

		relativePath, relativeError := filepath.Rel(root, path)
		if relativeError != nil {
			return relativeError
		}
		if relativePath == currentDirectoryConstant {
			return nil
		}

		if directoryEntry.IsDir() && directoryEntry.Name() == gitMetadataDirectoryNameConstant {
			return fs.SkipDir
		}

		entries = append(entries, WalkedEntry{
			Path:        filepath.ToSlash(relativePath),
			IsDirectory: directoryEntry.IsDir(),
		})
		return nil
	})
	if walkError != nil {
		return nil, walkError
	}

	sort.Slice(entries, func(leftIndex int, rightIndex int) bool {
		return entries[leftIndex].Path < entries[rightIndex].Path
	})
	return entries, nil
}
