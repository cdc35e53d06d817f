package cleanup_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/repogov/internal/cleanup"
	"github.com/temirov/repogov/internal/githubapi"
	"github.com/temirov/repogov/internal/githubcli"
	"github.com/temirov/repogov/internal/inventory"
	"github.com/temirov/repogov/internal/repos/filesystem"
	"github.com/temirov/repogov/internal/risk"
)

type recordingTreeFetcher struct {
	tree      githubapi.Tree
	failure   error
	reference string
	token     string
}

func (fetcher *recordingTreeFetcher) GetTree(_ context.Context, _ string, _ string, reference string, token string) (githubapi.Tree, error) {
	fetcher.reference = reference
	fetcher.token = token
	return fetcher.tree, fetcher.failure
}

type writingCloner struct {
	files       []string
	repository  string
	depth       int
	destination string
	failure     error
}

func (cloner *writingCloner) CloneRepository(_ context.Context, repository string, destination string, options githubcli.CloneOptions) error {
	cloner.repository = repository
	cloner.destination = destination
	cloner.depth = options.Depth
	if cloner.failure != nil {
		return cloner.failure
	}
	for _, relativePath := range cloner.files {
		absolutePath := filepath.Join(destination, filepath.FromSlash(relativePath))
		if creationError := os.MkdirAll(filepath.Dir(absolutePath), 0o755); creationError != nil {
			return creationError
		}
		if writeError := os.WriteFile(absolutePath, []byte("content"), 0o644); writeError != nil {
			return writeError
		}
	}
	return nil
}

func TestAPITreeSourceConvertsEntries(testInstance *testing.T) {
	testCases := []struct {
		name              string
		defaultBranch     string
		expectedReference string
	}{
		{name: "default_branch", defaultBranch: "trunk", expectedReference: "trunk"},
		{name: "missing_branch_uses_head", defaultBranch: "", expectedReference: "HEAD"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fetcher := &recordingTreeFetcher{tree: githubapi.Tree{
				Entries: []githubapi.TreeEntry{
					{Path: "build", Type: "tree"},
					{Path: "build/out.o", Type: "blob"},
					{Path: "vendor/lib", Type: "commit"},
				},
				Truncated: true,
			}}
			source, creationError := cleanup.NewAPITreeSource(zap.NewNop(), fetcher, "octo", "secret")
			require.NoError(testInstance, creationError)

			candidate := risk.RiskAssessment{Repository: inventory.RepositoryRecord{Name: "alpha", DefaultBranch: testCase.defaultBranch}}
			entries, listError := source.ListTree(context.Background(), candidate)
			require.NoError(testInstance, listError)
			require.Equal(testInstance, testCase.expectedReference, fetcher.reference)
			require.Equal(testInstance, "secret", fetcher.token)
			require.Equal(testInstance, []cleanup.TreeEntry{
				{Path: "build", Type: cleanup.EntryTypeDirectory},
				{Path: "build/out.o", Type: cleanup.EntryTypeFile},
			}, entries)
		})
	}
}

func TestAPITreeSourceWrapsFetchErrors(testInstance *testing.T) {
	failure := githubapi.AuthError{URL: "https://api.github.com/repos/octo/alpha/git/trees/main", StatusCode: 401}
	source, creationError := cleanup.NewAPITreeSource(nil, &recordingTreeFetcher{failure: failure}, "octo", "")
	require.NoError(testInstance, creationError)

	_, listError := source.ListTree(context.Background(), risk.RiskAssessment{Repository: inventory.RepositoryRecord{Name: "alpha"}})
	require.Error(testInstance, listError)
	var authError githubapi.AuthError
	require.True(testInstance, errors.As(listError, &authError))
}

func TestNewAPITreeSourceRequiresFetcher(testInstance *testing.T) {
	source, creationError := cleanup.NewAPITreeSource(zap.NewNop(), nil, "octo", "")
	require.ErrorIs(testInstance, creationError, cleanup.ErrTreeFetcherNotConfigured)
	require.Nil(testInstance, source)
}

func TestWorkingCopyTreeSourceWalksShallowClone(testInstance *testing.T) {
	workspaceRoot := testInstance.TempDir()
	cloner := &writingCloner{files: []string{"build/output.bin", "src/main.go", ".git/config"}}
	source, creationError := cleanup.NewWorkingCopyTreeSource(zap.NewNop(), cloner, nil, filesystem.OSWorkspaces{Root: workspaceRoot}, "octo", "")
	require.NoError(testInstance, creationError)

	entries, listError := source.ListTree(context.Background(), risk.RiskAssessment{Repository: inventory.RepositoryRecord{Name: "alpha"}})
	require.NoError(testInstance, listError)
	require.Equal(testInstance, "octo/alpha", cloner.repository)
	require.Equal(testInstance, 1, cloner.depth)
	require.Equal(testInstance, []string{"build"}, cleanup.Plan(entries).Paths)

	_, statError := os.Stat(cloner.destination)
	require.True(testInstance, os.IsNotExist(statError))
}

func TestWorkingCopyTreeSourceDiscardsWorkspaceOnCloneFailure(testInstance *testing.T) {
	workspaceRoot := testInstance.TempDir()
	cloner := &writingCloner{failure: errors.New("clone refused")}
	source, creationError := cleanup.NewWorkingCopyTreeSource(zap.NewNop(), cloner, nil, filesystem.OSWorkspaces{Root: workspaceRoot}, "octo", "")
	require.NoError(testInstance, creationError)

	_, listError := source.ListTree(context.Background(), risk.RiskAssessment{Repository: inventory.RepositoryRecord{Name: "alpha"}})
	require.ErrorContains(testInstance, listError, "clone refused")

	remaining, readError := os.ReadDir(workspaceRoot)
	require.NoError(testInstance, readError)
	require.Empty(testInstance, remaining)
}

func TestNewWorkingCopyTreeSourceValidatesDependencies(testInstance *testing.T) {
	_, clonerError := cleanup.NewWorkingCopyTreeSource(zap.NewNop(), nil, nil, filesystem.OSWorkspaces{Root: "x"}, "octo", "")
	require.ErrorIs(testInstance, clonerError, cleanup.ErrClonerNotConfigured)

	_, workspacesError := cleanup.NewWorkingCopyTreeSource(zap.NewNop(), &writingCloner{}, nil, nil, "octo", "")
	require.ErrorIs(testInstance, workspacesError, cleanup.ErrWorkspacesNotConfigured)
}
