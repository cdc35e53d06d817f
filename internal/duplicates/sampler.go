package duplicates

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/repogov/internal/githubapi"
	"github.com/temirov/repogov/internal/risk"
)

const (
	fetcherNotConfiguredMessageConstant = "content fetcher not configured"
	noSampleFileMessageConstant         = "no well-known file at the repository root"
	treeFetchErrorTemplateConstant      = "tree fetch failed: %w"
	contentFetchErrorTemplateConstant   = "content fetch failed for %s: %w"
	defaultReferenceConstant            = "HEAD"
	defaultSamplerWorkersConstant       = 4
	logMessageSampleFailedConstant      = "content sample failed"
	logMessageSamplingCompletedConstant = "content sampling completed"
	logFieldRepositoryConstant          = "repository"
	logFieldSampledConstant             = "sampled"
	logFieldGroupsConstant              = "groups"
)

// ErrContentFetcherNotConfigured indicates the sampler was constructed without a fetcher.
var ErrContentFetcherNotConfigured = errors.New(fetcherNotConfiguredMessageConstant)

// wellKnownFiles lists root files in sampling preference order. README variants come first.
var wellKnownFiles = []string{
	"README.md",
	"README",
	"README.rst",
	"README.txt",
	"go.mod",
	"package.json",
	"pyproject.toml",
	"setup.py",
	"requirements.txt",
	"Cargo.toml",
	"pom.xml",
	"build.gradle",
	"Makefile",
	"Dockerfile",
	"index.html",
}

// ContentFetcher reads repository trees and file contents.
type ContentFetcher interface {
	GetTree(executionContext context.Context, owner string, repository string, reference string, token string) (githubapi.Tree, error)
	GetFileContent(executionContext context.Context, owner string, repository string, filePath string, reference string, token string) ([]byte, error)
}

// ContentSample is the hashed well-known file of one repository.
type ContentSample struct {
	Repository string `json:"repository"`
	Path       string `json:"path"`
	Hash       string `json:"hash"`
}

// SampleError records why one repository could not be sampled.
type SampleError struct {
	Repository string `json:"repository"`
	Message    string `json:"message"`
}

// SampleResult holds the content groups found inside the sampling window.
type SampleResult struct {
	Samples []ContentSample `json:"samples"`
	Groups  []Group         `json:"groups"`
	Errors  []SampleError   `json:"errors"`
}

// ContentSampler hashes one well-known file per repository to find content duplicates.
type ContentSampler struct {
	logger  *zap.Logger
	fetcher ContentFetcher
	workers int
}

// NewContentSampler constructs a ContentSampler with bounded concurrency.
func NewContentSampler(logger *zap.Logger, fetcher ContentFetcher, workers int) (*ContentSampler, error) {
	if fetcher == nil {
		return nil, ErrContentFetcherNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = defaultSamplerWorkersConstant
	}
	return &ContentSampler{logger: logger, fetcher: fetcher, workers: workers}, nil
}

// Sample fetches and hashes a file for each assessed repository. Callers pass the ranked top-N;
// repositories outside the window are never sampled.
func (sampler *ContentSampler) Sample(executionContext context.Context, owner string, token string, window []risk.RiskAssessment) SampleResult {
	var mutex sync.Mutex
	result := SampleResult{}

	var group errgroup.Group
	group.SetLimit(sampler.workers)
	for _, assessment := range window {
		repository := assessment.Repository
		group.Go(func() error {
			sample, sampleError := sampler.sampleRepository(executionContext, owner, token, repository.Name, repository.DefaultBranch)
			mutex.Lock()
			defer mutex.Unlock()
			if sampleError != nil {
				sampler.logger.Warn(logMessageSampleFailedConstant, zap.String(logFieldRepositoryConstant, repository.Name), zap.Error(sampleError))
				result.Errors = append(result.Errors, SampleError{Repository: repository.Name, Message: sampleError.Error()})
				return nil
			}
			result.Samples = append(result.Samples, sample)
			return nil
		})
	}
	_ = group.Wait()

	sort.Slice(result.Samples, func(leftIndex int, rightIndex int) bool {
		return result.Samples[leftIndex].Repository < result.Samples[rightIndex].Repository
	})
	sort.Slice(result.Errors, func(leftIndex int, rightIndex int) bool {
		return result.Errors[leftIndex].Repository < result.Errors[rightIndex].Repository
	})

	membersByHash := make(map[string][]string)
	for _, sample := range result.Samples {
		membersByHash[sample.Hash] = append(membersByHash[sample.Hash], sample.Repository)
	}
	result.Groups = collectGroups(SignalContent, membersByHash)

	sampler.logger.Info(logMessageSamplingCompletedConstant, zap.Int(logFieldSampledConstant, len(result.Samples)), zap.Int(logFieldGroupsConstant, len(result.Groups)))
	return result
}

func (sampler *ContentSampler) sampleRepository(executionContext context.Context, owner string, token string, repositoryName string, defaultBranch string) (ContentSample, error) {
	reference := strings.TrimSpace(defaultBranch)
	if len(reference) == 0 {
		reference = defaultReferenceConstant
	}

	tree, treeError := sampler.fetcher.GetTree(executionContext, owner, repositoryName, reference, token)
	if treeError != nil {
		return ContentSample{}, fmt.Errorf(treeFetchErrorTemplateConstant, treeError)
	}

	samplePath, found := SelectSampleFile(tree.Entries)
	if !found {
		return ContentSample{}, errors.New(noSampleFileMessageConstant)
	}

	content, contentError := sampler.fetcher.GetFileContent(executionContext, owner, repositoryName, samplePath, reference, token)
	if contentError != nil {
		return ContentSample{}, fmt.Errorf(contentFetchErrorTemplateConstant, samplePath, contentError)
	}
	return ContentSample{Repository: repositoryName, Path: samplePath, Hash: HashBytes(content)}, nil
}

// SelectSampleFile picks the preferred well-known file among root-level blobs. Names match
// case-insensitively.
func SelectSampleFile(entries []githubapi.TreeEntry) (string, bool) {
	rootFiles := make(map[string]string)
	for _, entry := range entries {
		if !entry.IsFile() || strings.Contains(entry.Path, "/") {
			continue
		}
		loweredPath := strings.ToLower(entry.Path)
		if _, exists := rootFiles[loweredPath]; !exists {
			rootFiles[loweredPath] = entry.Path
		}
	}
	for _, candidate := range wellKnownFiles {
		if actualPath, exists := rootFiles[strings.ToLower(candidate)]; exists {
			return actualPath, true
		}
	}
	return "", false
}
