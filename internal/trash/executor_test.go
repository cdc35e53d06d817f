package trash_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/repogov/internal/cleanup"
	"github.com/temirov/repogov/internal/decisions"
	"github.com/temirov/repogov/internal/githubcli"
	"github.com/temirov/repogov/internal/gitrepo"
	"github.com/temirov/repogov/internal/repos/filesystem"
	"github.com/temirov/repogov/internal/repos/shared"
	"github.com/temirov/repogov/internal/risk"
	"github.com/temirov/repogov/internal/trash"
)

const testCohortConstant = "2025-06-01T12-00-00Z"

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixtureCloner struct {
	files    map[string][]string
	symlinks map[string]map[string]string
	failures map[string]error
	cloned   []string
}

func (cloner *fixtureCloner) CloneRepository(_ context.Context, repository string, destination string, options githubcli.CloneOptions) error {
	cloner.cloned = append(cloner.cloned, repository)
	if options.Depth != 1 {
		return errors.New("expected a shallow clone")
	}
	if failure, failing := cloner.failures[repository]; failing {
		return failure
	}
	for _, relativePath := range cloner.files[repository] {
		absolutePath := filepath.Join(destination, filepath.FromSlash(relativePath))
		if creationError := os.MkdirAll(filepath.Dir(absolutePath), 0o755); creationError != nil {
			return creationError
		}
		if writeError := os.WriteFile(absolutePath, []byte(relativePath), 0o644); writeError != nil {
			return writeError
		}
	}
	for relativePath, target := range cloner.symlinks[repository] {
		absolutePath := filepath.Join(destination, filepath.FromSlash(relativePath))
		if creationError := os.MkdirAll(filepath.Dir(absolutePath), 0o755); creationError != nil {
			return creationError
		}
		if linkError := os.Symlink(target, absolutePath); linkError != nil {
			return linkError
		}
	}
	return nil
}

type recordingGit struct {
	stagedPaths   []string
	pushFailure   error
	commitMessage string
	identity      gitrepo.Identity
	trashSnapshot []string
	pushToken     string
	pushed        int
}

func (git *recordingGit) StageAll(_ context.Context, repositoryPath string) error {
	git.trashSnapshot = nil
	walkError := filepath.WalkDir(filepath.Join(repositoryPath, trash.TrashDirectoryName), func(walkedPath string, entry os.DirEntry, walkError error) error {
		if walkError != nil {
			return nil
		}
		if !entry.IsDir() {
			relativePath, _ := filepath.Rel(repositoryPath, walkedPath)
			git.trashSnapshot = append(git.trashSnapshot, filepath.ToSlash(relativePath))
		}
		return nil
	})
	return walkError
}

func (git *recordingGit) StagedPaths(context.Context, string) ([]string, error) {
	return git.stagedPaths, nil
}

func (git *recordingGit) ConfigureIdentity(_ context.Context, _ string, identity gitrepo.Identity) error {
	git.identity = identity
	return nil
}

func (git *recordingGit) Commit(_ context.Context, _ string, message string) error {
	git.commitMessage = message
	return nil
}

func (git *recordingGit) Push(_ context.Context, _ string, token string) error {
	git.pushToken = token
	if git.pushFailure != nil {
		return git.pushFailure
	}
	git.pushed++
	return nil
}

type executorFixture struct {
	executor   *trash.Executor
	cloner     *fixtureCloner
	git        *recordingGit
	store      decisions.Store
	stateRoot  string
	workspaces string
	logs       *observer.ObservedLogs
}

func newExecutorFixture(testInstance *testing.T, maxApply int) *executorFixture {
	testInstance.Helper()
	stateRoot := testInstance.TempDir()
	store, storeError := decisions.NewFileStore(filepath.Join(stateRoot, "decisions"))
	require.NoError(testInstance, storeError)

	observedCore, observedLogs := observer.New(zap.InfoLevel)
	fixture := &executorFixture{
		cloner:     &fixtureCloner{files: map[string][]string{}, symlinks: map[string]map[string]string{}, failures: map[string]error{}},
		git:        &recordingGit{stagedPaths: []string{"TRASH/build/output.bin"}},
		store:      store,
		stateRoot:  stateRoot,
		workspaces: filepath.Join(stateRoot, "workspaces"),
		logs:       observedLogs,
	}
	executor, executorError := trash.NewExecutor(trash.Dependencies{
		Logger:     zap.New(observedCore),
		Cloner:     fixture.cloner,
		Git:        fixture.git,
		Workspaces: filesystem.OSWorkspaces{Root: fixture.workspaces},
		FileSystem: filesystem.OSFileSystem{},
		Store:      store,
		Clock:      shared.FixedClock{Instant: testNow},
		Owner:      "octo",
		Token:      "secret",
		Identity:   gitrepo.Identity{Name: "repogov", Email: "repogov@example.com"},
		MaxApply:   maxApply,
	})
	require.NoError(testInstance, executorError)
	fixture.executor = executor
	return fixture
}

func (fixture *executorFixture) recordPlan(testInstance *testing.T, repository string, paths []string) {
	testInstance.Helper()
	moveListPath := ""
	if len(paths) > 0 {
		moveListPath = filepath.Join(fixture.stateRoot, "move-lists", repository+"__move-list.txt")
		require.NoError(testInstance, os.MkdirAll(filepath.Dir(moveListPath), 0o755))
		require.NoError(testInstance, os.WriteFile(moveListPath, []byte(strings.Join(paths, "\n")+"\n"), 0o644))
	}
	_, recordError := fixture.store.RecordIfAbsent(context.Background(), testCohortConstant, repository, decisions.Record{
		ID:            decisions.NewRecordID(testNow),
		Repo:          repository,
		Cohort:        testCohortConstant,
		FinalTag:      decisions.FinalTagArchive,
		MoveListCount: len(paths),
		MoveListPath:  moveListPath,
		Category:      risk.CategoryArchiveStrong,
		Timestamp:     testNow,
		Policy:        decisions.PolicyStatement,
	})
	require.NoError(testInstance, recordError)
}

func TestApplyMovesPathsIntoTrashAndPushes(testInstance *testing.T) {
	fixture := newExecutorFixture(testInstance, 0)
	fixture.cloner.files["octo/alpha"] = []string{"build/output.bin", ".git/config", "TRASH/old/x.log", "src/main.go"}

	entry := fixture.executor.Apply(context.Background(), "alpha", cleanup.MoveListPlan{
		Paths: []string{"build", "gone.log", "../escape", ".git", "TRASH/old", "/etc/passwd"},
	})
	require.Equal(testInstance, trash.StatusApplied, entry.Status)
	require.Equal(testInstance, 1, entry.Moved)
	require.Equal(testInstance, 1, entry.Missing)
	require.Equal(testInstance, 4, entry.Skipped)
	require.Empty(testInstance, entry.Error)

	require.Equal(testInstance, []string{"TRASH/build/output.bin", "TRASH/old/x.log"}, fixture.git.trashSnapshot)
	require.Equal(testInstance, "cleanup: MOVE ONLY to TRASH (2025-06-01T12:00:00Z)", fixture.git.commitMessage)
	require.Equal(testInstance, "repogov", fixture.git.identity.Name)
	require.Equal(testInstance, 1, fixture.git.pushed)
	require.Equal(testInstance, "secret", fixture.git.pushToken)

	remaining, readError := os.ReadDir(fixture.workspaces)
	require.NoError(testInstance, readError)
	require.Empty(testInstance, remaining)
}

func TestApplyMovesDanglingSymlinks(testInstance *testing.T) {
	fixture := newExecutorFixture(testInstance, 0)
	fixture.cloner.files["octo/alpha"] = []string{"cache.tmp"}
	fixture.cloner.symlinks["octo/alpha"] = map[string]string{
		"debug.log":       "does-not-exist",
		"TRASH/cache.tmp": "also-missing",
	}

	entry := fixture.executor.Apply(context.Background(), "alpha", cleanup.MoveListPlan{
		Paths: []string{"cache.tmp", "debug.log"},
	})
	require.Equal(testInstance, trash.StatusApplied, entry.Status)
	require.Equal(testInstance, 1, entry.Moved)
	require.Equal(testInstance, 0, entry.Missing)
	require.Equal(testInstance, 1, entry.Skipped)
	require.Equal(testInstance, []string{"TRASH/cache.tmp", "TRASH/debug.log"}, fixture.git.trashSnapshot)
}

func TestApplyStatuses(testInstance *testing.T) {
	testCases := []struct {
		name           string
		configure      func(fixture *executorFixture)
		expectedStatus trash.Status
		expectedError  string
	}{
		{
			name: "nothing_staged",
			configure: func(fixture *executorFixture) {
				fixture.git.stagedPaths = nil
			},
			expectedStatus: trash.StatusNoChanges,
		},
		{
			name: "clone_failure",
			configure: func(fixture *executorFixture) {
				fixture.cloner.failures["octo/alpha"] = errors.New("repository not found")
			},
			expectedStatus: trash.StatusCloneFail,
			expectedError:  "repository not found",
		},
		{
			name: "push_failure",
			configure: func(fixture *executorFixture) {
				fixture.git.pushFailure = errors.New("protected branch")
			},
			expectedStatus: trash.StatusPushFail,
			expectedError:  "push of octo/alpha failed: protected branch",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fixture := newExecutorFixture(testInstance, 0)
			fixture.cloner.files["octo/alpha"] = []string{"build/output.bin"}
			testCase.configure(fixture)

			entry := fixture.executor.Apply(context.Background(), "alpha", cleanup.MoveListPlan{Paths: []string{"build"}})
			require.Equal(testInstance, testCase.expectedStatus, entry.Status)
			if len(testCase.expectedError) > 0 {
				require.Contains(testInstance, entry.Error, testCase.expectedError)
			} else {
				require.Empty(testInstance, entry.Error)
			}

			remaining, readError := os.ReadDir(fixture.workspaces)
			require.NoError(testInstance, readError)
			require.Empty(testInstance, remaining)
		})
	}
}

func TestApplyCohortHonorsOrderAndLimit(testInstance *testing.T) {
	fixture := newExecutorFixture(testInstance, 2)
	for _, repository := range []string{"delta", "alpha", "charlie", "bravo"} {
		fixture.cloner.files["octo/"+repository] = []string{"dist/app.js"}
		fixture.recordPlan(testInstance, repository, []string{"dist"})
	}
	fixture.recordPlan(testInstance, "empty", nil)
	fixture.cloner.failures["octo/alpha"] = errors.New("clone refused")

	report, applyError := fixture.executor.ApplyCohort(context.Background(), testCohortConstant)
	require.NoError(testInstance, applyError)
	require.Equal(testInstance, testCohortConstant, report.Cohort)
	require.Equal(testInstance, decisions.PolicyStatement, report.Policy)
	require.Equal(testInstance, 2, report.Applied)
	require.Equal(testInstance, []string{"octo/alpha", "octo/bravo", "octo/charlie"}, fixture.cloner.cloned)

	require.Len(testInstance, report.Entries, 3)
	require.Equal(testInstance, "alpha", report.Entries[0].Repo)
	require.Equal(testInstance, trash.StatusCloneFail, report.Entries[0].Status)
	require.Equal(testInstance, trash.StatusApplied, report.Entries[1].Status)
	require.Equal(testInstance, trash.StatusApplied, report.Entries[2].Status)
	require.Equal(testInstance, 1, fixture.logs.FilterMessage("apply limit reached").Len())
}

func TestApplyCohortReportsUnreadableMoveList(testInstance *testing.T) {
	fixture := newExecutorFixture(testInstance, 0)
	fixture.recordPlan(testInstance, "alpha", []string{"dist"})
	require.NoError(testInstance, os.Remove(filepath.Join(fixture.stateRoot, "move-lists", "alpha__move-list.txt")))

	report, applyError := fixture.executor.ApplyCohort(context.Background(), testCohortConstant)
	require.NoError(testInstance, applyError)
	require.Len(testInstance, report.Entries, 1)
	require.Equal(testInstance, trash.StatusPlanError, report.Entries[0].Status)
	require.Empty(testInstance, fixture.cloner.cloned)
}

func TestParseMoveList(testInstance *testing.T) {
	plan := trash.ParseMoveList("build\r\n\n  dist  \nnode_modules")
	require.Equal(testInstance, []string{"build", "dist", "node_modules"}, plan.Paths)
}

func TestNewExecutorValidatesDependencies(testInstance *testing.T) {
	executor, executorError := trash.NewExecutor(trash.Dependencies{})
	require.ErrorIs(testInstance, executorError, trash.ErrClonerNotConfigured)
	require.Nil(testInstance, executor)
}
