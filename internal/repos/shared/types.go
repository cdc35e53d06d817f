package shared

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"time"

	"github.com/temirov/repogov/internal/execshell"
)

const (
	ownerRepositorySeparatorConstant = "/"
	ownerRepositoryTemplateConstant  = "%s/%s"
	emptyValueMessageConstant        = "value must not be empty"
	invalidOwnerMessageTemplate      = "invalid owner %q"
	invalidRepositoryMessageTemplate = "invalid repository name %q"
	invalidOwnerRepositoryTemplate   = "invalid owner/repository %q"
)

var (
	// ErrEmptyValue indicates a required identifier was blank.
	ErrEmptyValue = errors.New(emptyValueMessageConstant)

	ownerPattern      = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?$`)
	repositoryPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
)

// OwnerSlug is a validated account or organization login.
type OwnerSlug string

// NewOwnerSlug trims and validates an owner login.
func NewOwnerSlug(value string) (OwnerSlug, error) {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return "", ErrEmptyValue
	}
	if !ownerPattern.MatchString(trimmed) {
		return "", fmt.Errorf(invalidOwnerMessageTemplate, trimmed)
	}
	return OwnerSlug(trimmed), nil
}

// String returns the owner login.
func (owner OwnerSlug) String() string {
	return string(owner)
}

// RepositoryName is a validated repository name without its owner.
type RepositoryName string

// NewRepositoryName trims and validates a repository name.
func NewRepositoryName(value string) (RepositoryName, error) {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return "", ErrEmptyValue
	}
	if !repositoryPattern.MatchString(trimmed) || trimmed == "." || trimmed == ".." {
		return "", fmt.Errorf(invalidRepositoryMessageTemplate, trimmed)
	}
	return RepositoryName(trimmed), nil
}

// String returns the repository name.
func (name RepositoryName) String() string {
	return string(name)
}

// OwnerRepository identifies a repository as owner/name.
type OwnerRepository struct {
	owner      OwnerSlug
	repository RepositoryName
}

// NewOwnerRepository parses an owner/name reference.
func NewOwnerRepository(value string) (OwnerRepository, error) {
	parts := strings.Split(strings.TrimSpace(value), ownerRepositorySeparatorConstant)
	if len(parts) != 2 {
		return OwnerRepository{}, fmt.Errorf(invalidOwnerRepositoryTemplate, value)
	}
	return OwnerRepositoryFromParts(parts[0], parts[1])
}

// OwnerRepositoryFromParts validates both halves of a repository reference.
func OwnerRepositoryFromParts(owner string, repository string) (OwnerRepository, error) {
	ownerSlug, ownerError := NewOwnerSlug(owner)
	if ownerError != nil {
		return OwnerRepository{}, ownerError
	}
	repositoryName, repositoryError := NewRepositoryName(repository)
	if repositoryError != nil {
		return OwnerRepository{}, repositoryError
	}
	return OwnerRepository{owner: ownerSlug, repository: repositoryName}, nil
}

// Owner returns the owner half.
func (reference OwnerRepository) Owner() OwnerSlug {
	return reference.owner
}

// Repository returns the name half.
func (reference OwnerRepository) Repository() RepositoryName {
	return reference.repository
}

// String formats the reference as owner/name.
func (reference OwnerRepository) String() string {
	return fmt.Sprintf(ownerRepositoryTemplateConstant, reference.owner, reference.repository)
}

// Clock abstracts time acquisition for deterministic testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time source.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock always reports the same instant.
type FixedClock struct {
	Instant time.Time
}

// Now returns the fixed instant.
func (clock FixedClock) Now() time.Time {
	return clock.Instant
}

// FileSystem exposes the filesystem operations used by planners and executors. It has no
// delete operation.
type FileSystem interface {
	Stat(path string) (fs.FileInfo, error)
	Lstat(path string) (fs.FileInfo, error)
	Rename(oldPath string, newPath string) error
	Abs(path string) (string, error)
	MkdirAll(path string, permissions fs.FileMode) error
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, permissions fs.FileMode) error
}

// GitExecutor exposes the subset of shell execution used by repository services.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	ExecuteGitHubCLI(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}
