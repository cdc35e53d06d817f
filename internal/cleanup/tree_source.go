package cleanup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/repogov/internal/githubapi"
	"github.com/temirov/repogov/internal/githubcli"
	"github.com/temirov/repogov/internal/repos/discovery"
	"github.com/temirov/repogov/internal/risk"
)

const (
	defaultReferenceConstant          = "HEAD"
	ownerRepositoryTemplateConstant   = "%s/%s"
	treeFetchErrorTemplateConstant    = "unable to list tree of %s: %w"
	cloneErrorTemplateConstant        = "unable to clone %s: %w"
	walkErrorTemplateConstant         = "unable to walk working copy of %s: %w"
	workspaceErrorTemplateConstant    = "unable to prepare workspace for %s: %w"
	treeFetcherMissingMessage         = "tree fetcher not configured"
	clonerMissingMessage              = "repository cloner not configured"
	workspacesMissingMessage          = "workspace provider not configured"
	logMessageTreeTruncatedConstant   = "tree listing truncated; plan covers the returned entries only"
	logMessageWorkspaceDiscardFailure = "unable to discard workspace"
	logFieldRepositoryConstant        = "repository"
	logFieldWorkspaceConstant         = "workspace"
)

var (
	// ErrTreeFetcherNotConfigured indicates an APITreeSource without a fetcher.
	ErrTreeFetcherNotConfigured = errors.New(treeFetcherMissingMessage)
	// ErrClonerNotConfigured indicates a WorkingCopyTreeSource without a cloner.
	ErrClonerNotConfigured = errors.New(clonerMissingMessage)
	// ErrWorkspacesNotConfigured indicates a WorkingCopyTreeSource without workspaces.
	ErrWorkspacesNotConfigured = errors.New(workspacesMissingMessage)
)

// TreeSource lists the paths of a repository's default branch.
type TreeSource interface {
	ListTree(executionContext context.Context, candidate risk.RiskAssessment) ([]TreeEntry, error)
}

// TreeFetcher reads recursive trees from the hosting API.
type TreeFetcher interface {
	GetTree(executionContext context.Context, owner string, repository string, reference string, token string) (githubapi.Tree, error)
}

// APITreeSource lists trees through the recursive tree endpoint.
type APITreeSource struct {
	logger  *zap.Logger
	fetcher TreeFetcher
	owner   string
	token   string
}

// NewAPITreeSource constructs an APITreeSource for one owner.
func NewAPITreeSource(logger *zap.Logger, fetcher TreeFetcher, owner string, token string) (*APITreeSource, error) {
	if fetcher == nil {
		return nil, ErrTreeFetcherNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APITreeSource{logger: logger, fetcher: fetcher, owner: owner, token: token}, nil
}

// ListTree fetches the default branch tree.
func (source *APITreeSource) ListTree(executionContext context.Context, candidate risk.RiskAssessment) ([]TreeEntry, error) {
	repositoryName := candidate.Repository.Name
	tree, treeError := source.fetcher.GetTree(executionContext, source.owner, repositoryName, referenceOf(candidate), source.token)
	if treeError != nil {
		return nil, fmt.Errorf(treeFetchErrorTemplateConstant, repositoryName, treeError)
	}
	if tree.Truncated {
		source.logger.Warn(logMessageTreeTruncatedConstant, zap.String(logFieldRepositoryConstant, repositoryName))
	}

	entries := make([]TreeEntry, 0, len(tree.Entries))
	for _, apiEntry := range tree.Entries {
		switch {
		case apiEntry.IsDirectory():
			entries = append(entries, TreeEntry{Path: apiEntry.Path, Type: EntryTypeDirectory})
		case apiEntry.IsFile():
			entries = append(entries, TreeEntry{Path: apiEntry.Path, Type: EntryTypeFile})
		}
	}
	return entries, nil
}

// RepositoryCloner produces a shallow working copy.
type RepositoryCloner interface {
	CloneRepository(executionContext context.Context, repository string, destination string, options githubcli.CloneOptions) error
}

// WorkingCopyWalker lists a working copy on disk.
type WorkingCopyWalker interface {
	WalkTree(root string) ([]discovery.WalkedEntry, error)
}

// Workspaces creates and discards scratch directories.
type Workspaces interface {
	Create(prefix string) (string, error)
	Discard(workspacePath string) error
}

// WorkingCopyTreeSource lists trees by walking a shallow clone.
type WorkingCopyTreeSource struct {
	logger     *zap.Logger
	cloner     RepositoryCloner
	walker     WorkingCopyWalker
	workspaces Workspaces
	owner      string
	token      string
}

// NewWorkingCopyTreeSource constructs a WorkingCopyTreeSource.
func NewWorkingCopyTreeSource(logger *zap.Logger, cloner RepositoryCloner, walker WorkingCopyWalker, workspaces Workspaces, owner string, token string) (*WorkingCopyTreeSource, error) {
	if cloner == nil {
		return nil, ErrClonerNotConfigured
	}
	if workspaces == nil {
		return nil, ErrWorkspacesNotConfigured
	}
	if walker == nil {
		walker = discovery.NewFilesystemTreeWalker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkingCopyTreeSource{logger: logger, cloner: cloner, walker: walker, workspaces: workspaces, owner: owner, token: token}, nil
}

// ListTree clones the repository into a scratch workspace, walks it, and discards the workspace.
func (source *WorkingCopyTreeSource) ListTree(executionContext context.Context, candidate risk.RiskAssessment) ([]TreeEntry, error) {
	repositoryName := candidate.Repository.Name
	workspacePath, workspaceError := source.workspaces.Create(repositoryName)
	if workspaceError != nil {
		return nil, fmt.Errorf(workspaceErrorTemplateConstant, repositoryName, workspaceError)
	}
	defer func() {
		if discardError := source.workspaces.Discard(workspacePath); discardError != nil {
			source.logger.Warn(logMessageWorkspaceDiscardFailure, zap.String(logFieldWorkspaceConstant, workspacePath), zap.Error(discardError))
		}
	}()

	reference := fmt.Sprintf(ownerRepositoryTemplateConstant, source.owner, repositoryName)
	if cloneError := source.cloner.CloneRepository(executionContext, reference, workspacePath, githubcli.CloneOptions{Depth: 1, Token: source.token}); cloneError != nil {
		return nil, fmt.Errorf(cloneErrorTemplateConstant, reference, cloneError)
	}

	walkedEntries, walkError := source.walker.WalkTree(workspacePath)
	if walkError != nil {
		return nil, fmt.Errorf(walkErrorTemplateConstant, reference, walkError)
	}

	entries := make([]TreeEntry, 0, len(walkedEntries))
	for _, walkedEntry := range walkedEntries {
		entryType := EntryTypeFile
		if walkedEntry.IsDirectory {
			entryType = EntryTypeDirectory
		}
		entries = append(entries, TreeEntry{Path: walkedEntry.Path, Type: entryType})
	}
	return entries, nil
}

func referenceOf(candidate risk.RiskAssessment) string {
	if branch := strings.TrimSpace(candidate.Repository.DefaultBranch); len(branch) > 0 {
		return branch
	}
	return defaultReferenceConstant
}
