package governance

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/temirov/repogov/internal/cleanup"
	"github.com/temirov/repogov/internal/decisions"
	"github.com/temirov/repogov/internal/duplicates"
	"github.com/temirov/repogov/internal/execshell"
	"github.com/temirov/repogov/internal/githubapi"
	"github.com/temirov/repogov/internal/githubauth"
	"github.com/temirov/repogov/internal/githubcli"
	"github.com/temirov/repogov/internal/gitrepo"
	"github.com/temirov/repogov/internal/inventory"
	"github.com/temirov/repogov/internal/report"
	"github.com/temirov/repogov/internal/repos/discovery"
	"github.com/temirov/repogov/internal/repos/filesystem"
	"github.com/temirov/repogov/internal/repos/shared"
	"github.com/temirov/repogov/internal/trash"
)

const (
	decisionsDirectoryConstant         = "decisions"
	decisionsDatabaseFileConstant      = "decisions.db"
	moveListsDirectoryConstant         = "move-lists"
	apiClientErrorTemplateConstant     = "unable to construct GitHub API client: %w"
	shellExecutorErrorTemplateConstant = "unable to construct command executor: %w"
	decisionStoreErrorTemplateConstant = "unable to open decision store: %w"
	treeSourceErrorTemplateConstant    = "unable to construct tree source: %w"
	publisherErrorTemplateConstant     = "unable to construct artifact publisher: %w"
	logMessagePipelineReadyConstant    = "governance pipeline ready"
	logFieldStateRootConstant          = "state_root"
	logFieldTreeSourceConstant         = "tree_source"
	logFieldDecisionBackendConstant    = "decision_backend"
	logFieldTokenSourceConstant        = "token_source"
	logFieldPublishConfiguredConstant  = "publish_configured"
	logFieldTokenPresentConstant       = "token_present"
)

// PipelineOptions describes how to assemble a governance pipeline from configuration.
type PipelineOptions struct {
	Logger               *zap.Logger
	Configuration        Configuration
	Output               io.Writer
	Clock                shared.Clock
	CommandEventObserver execshell.CommandEventObserver
	CommandRunner        execshell.CommandRunner
	HTTPClient           *http.Client
	EnvironmentLookup    githubauth.EnvironmentLookup
	Uploader             report.ObjectUploader
}

// Pipeline owns a wired Service and the resources it holds open.
type Pipeline struct {
	Service *Service
	closers []func() error
}

// Close releases resources held by the pipeline.
func (pipeline *Pipeline) Close() error {
	if pipeline == nil {
		return nil
	}
	var closeErrors []error
	for _, closer := range pipeline.closers {
		if closeError := closer(); closeError != nil {
			closeErrors = append(closeErrors, closeError)
		}
	}
	return errors.Join(closeErrors...)
}

// NewPipeline wires every governance stage from a sanitized configuration.
func NewPipeline(options PipelineOptions) (*Pipeline, error) {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := options.Clock
	if clock == nil {
		clock = shared.SystemClock{}
	}
	configuration := options.Configuration
	token := githubauth.NewResolver(options.EnvironmentLookup).Resolve(configuration.Governance.Token)

	apiClient, apiClientError := githubapi.NewClient(logger, githubapi.ClientConfiguration{
		BaseURL:     configuration.Governance.APIBaseURL,
		HTTPTimeout: configuration.Governance.HTTPTimeout,
		MaxPages:    configuration.Governance.MaxPages,
		CacheSize:   configuration.Governance.CacheSize,
		RetryPolicy: configuration.Governance.RetryPolicy(),
		HTTPClient:  options.HTTPClient,
	})
	if apiClientError != nil {
		return nil, fmt.Errorf(apiClientErrorTemplateConstant, apiClientError)
	}

	source, sourceError := inventory.NewSource(logger, apiClient)
	if sourceError != nil {
		return nil, sourceError
	}
	sampler, samplerError := duplicates.NewContentSampler(logger, apiClient, configuration.Governance.Workers)
	if samplerError != nil {
		return nil, samplerError
	}

	fileSystem := filesystem.OSFileSystem{}
	writer, writerError := report.NewArtifactWriter(fileSystem, configuration.Governance.StateRoot)
	if writerError != nil {
		return nil, writerError
	}

	commandRunner := options.CommandRunner
	if commandRunner == nil {
		commandRunner = execshell.NewOSCommandRunner()
	}
	shellExecutor, shellExecutorError := execshell.NewShellExecutor(logger, commandRunner, execshell.WithCommandEventObserver(options.CommandEventObserver))
	if shellExecutorError != nil {
		return nil, fmt.Errorf(shellExecutorErrorTemplateConstant, shellExecutorError)
	}
	cliClient, cliClientError := githubcli.NewClient(shellExecutor)
	if cliClientError != nil {
		return nil, cliClientError
	}
	gitManager, gitManagerError := gitrepo.NewManager(shellExecutor)
	if gitManagerError != nil {
		return nil, gitManagerError
	}
	workspaces := filesystem.OSWorkspaces{Root: configuration.Apply.WorkspaceRoot}

	pipeline := &Pipeline{}
	store, storeError := openDecisionStore(configuration)
	if storeError != nil {
		return nil, fmt.Errorf(decisionStoreErrorTemplateConstant, storeError)
	}
	if closable, isClosable := store.(io.Closer); isClosable {
		pipeline.closers = append(pipeline.closers, closable.Close)
	}

	treeSource, treeSourceError := newTreeSource(logger, configuration, apiClient, cliClient, workspaces, token.Value)
	if treeSourceError != nil {
		_ = pipeline.Close()
		return nil, fmt.Errorf(treeSourceErrorTemplateConstant, treeSourceError)
	}

	planner, plannerError := cleanup.NewPlanner(cleanup.Dependencies{
		Logger:     logger,
		TreeSource: treeSource,
		Store:      store,
		FileSystem: fileSystem,
		Clock:      clock,
		OutputRoot: filepath.Join(configuration.Governance.StateRoot, moveListsDirectoryConstant),
		Workers:    configuration.Governance.Workers,
	})
	if plannerError != nil {
		_ = pipeline.Close()
		return nil, plannerError
	}

	executor, executorError := trash.NewExecutor(trash.Dependencies{
		Logger:     logger,
		Cloner:     cliClient,
		Git:        gitManager,
		Workspaces: workspaces,
		FileSystem: fileSystem,
		Store:      store,
		Clock:      clock,
		Owner:      configuration.Governance.Owner,
		Token:      token.Value,
		Identity:   gitrepo.Identity{Name: configuration.Apply.CommitterName, Email: configuration.Apply.CommitterEmail},
		MaxApply:   configuration.Apply.MaxApply,
	})
	if executorError != nil {
		_ = pipeline.Close()
		return nil, executorError
	}

	publisher, publisherError := newPublisher(logger, configuration.Publish.S3, options.Uploader)
	if publisherError != nil {
		_ = pipeline.Close()
		return nil, fmt.Errorf(publisherErrorTemplateConstant, publisherError)
	}

	serviceDependencies := ServiceDependencies{
		Logger:  logger,
		Clock:   clock,
		Source:  source,
		Sampler: sampler,
		Planner: planner,
		Applier: executor,
		Writer:  writer,
		Output:  options.Output,
		Settings: Settings{
			Owner:                configuration.Governance.Owner,
			Token:                token.Value,
			TopN:                 configuration.Planning.TopN,
			SamplingTopN:         configuration.Governance.SamplingTopN,
			CriticalRepositories: configuration.Governance.CriticalRepositories,
		},
	}
	if publisher != nil {
		serviceDependencies.Publisher = publisher
	}

	service, serviceError := NewService(serviceDependencies)
	if serviceError != nil {
		_ = pipeline.Close()
		return nil, serviceError
	}
	pipeline.Service = service

	logger.Debug(logMessagePipelineReadyConstant,
		zap.String(logFieldStateRootConstant, configuration.Governance.StateRoot),
		zap.String(logFieldTreeSourceConstant, configuration.Planning.TreeSource),
		zap.String(logFieldDecisionBackendConstant, configuration.Decisions.Backend),
		zap.Bool(logFieldTokenPresentConstant, token.Present()),
		zap.String(logFieldTokenSourceConstant, token.Source),
		zap.Bool(logFieldPublishConfiguredConstant, publisher != nil),
	)
	return pipeline, nil
}

func openDecisionStore(configuration Configuration) (decisions.Store, error) {
	if configuration.Decisions.Backend == DecisionBackendSQLite {
		return decisions.OpenSQLiteStore(filepath.Join(configuration.Governance.StateRoot, decisionsDatabaseFileConstant))
	}
	return decisions.NewFileStore(filepath.Join(configuration.Governance.StateRoot, decisionsDirectoryConstant))
}

func newTreeSource(logger *zap.Logger, configuration Configuration, apiClient *githubapi.Client, cliClient *githubcli.Client, workspaces filesystem.OSWorkspaces, token string) (cleanup.TreeSource, error) {
	if configuration.Planning.TreeSource == TreeSourceClone {
		return cleanup.NewWorkingCopyTreeSource(logger, cliClient, discovery.NewFilesystemTreeWalker(), workspaces, configuration.Governance.Owner, token)
	}
	return cleanup.NewAPITreeSource(logger, apiClient, configuration.Governance.Owner, token)
}

// newPublisher returns nil when no object store is configured.
func newPublisher(logger *zap.Logger, configuration report.ObjectStoreConfiguration, uploader report.ObjectUploader) (*report.ObjectStorePublisher, error) {
	if !configuration.Enabled() {
		return nil, nil
	}
	if uploader != nil {
		return report.NewObjectStorePublisherWithUploader(logger, uploader, configuration.Bucket, configuration.Region, configuration.Prefix)
	}
	return report.NewObjectStorePublisher(logger, configuration)
}
