package governance

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/temirov/repogov/internal/githubapi"
	"github.com/temirov/repogov/internal/report"
	"github.com/temirov/repogov/internal/repos/shared"
	"github.com/temirov/repogov/internal/retry"
	"github.com/temirov/repogov/internal/utils/flags"
	pathutils "github.com/temirov/repogov/internal/utils/path"
)

const (
	// TreeSourceAPI lists repository trees through the GitHub API.
	TreeSourceAPI = "api"
	// TreeSourceClone lists repository trees from a shallow working copy.
	TreeSourceClone = "clone"
	// DecisionBackendFile stores one JSON document per decision.
	DecisionBackendFile = "file"
	// DecisionBackendSQLite stores decisions in a single SQLite database.
	DecisionBackendSQLite = "sqlite"

	keySeparatorConstant                    = "."
	defaultStateRootConstant                = "~/.repogov"
	defaultHTTPTimeoutConstant              = "45s"
	defaultRetryBaseDelayConstant           = "1s"
	defaultWorkersConstant                  = 4
	defaultSamplingTopNConstant             = 20
	defaultPlanningTopNConstant             = 10
	defaultMaxApplyConstant                 = 5
	defaultCommitterNameConstant            = "repogov"
	defaultCommitterEmailConstant           = "repogov@users.noreply.github.com"
	workspacesDirectoryConstant             = "workspaces"
	ownerRequiredMessageConstant            = "governance.owner is required"
	ownerInvalidErrorTemplateConstant       = "governance.owner is invalid: %w"
	choiceInvalidErrorTemplateConstant      = "%s: %w"
	treeSourceConfigurationKeyConstant      = "planning.tree_source"
	decisionBackendConfigurationKeyConstant = "decisions.backend"
	stateRootRequiredMessageConstant        = "governance.state_root is required"
	negativeValueErrorTemplateConstant      = "%s must not be negative, got %d"
	planningTopNConfigurationKeyConstant    = "planning.top_n"
	samplingTopNConfigurationKeyConstant    = "governance.sampling_top_n"
	maxApplyConfigurationKeyConstant        = "apply.max_apply"
)

var (
	treeSourceChoice      = flags.NewChoice(TreeSourceAPI, TreeSourceAPI, TreeSourceClone)
	decisionBackendChoice = flags.NewChoice(DecisionBackendFile, DecisionBackendFile, DecisionBackendSQLite)
)

// ErrOwnerRequired indicates that no repository owner was configured.
var ErrOwnerRequired = errors.New(ownerRequiredMessageConstant)

// ErrStateRootRequired indicates that the state root resolved to an empty path.
var ErrStateRootRequired = errors.New(stateRootRequiredMessageConstant)

// Configuration captures every governance setting loaded from configuration files and the environment.
type Configuration struct {
	Governance GovernanceConfiguration `mapstructure:"governance"`
	Planning   PlanningConfiguration   `mapstructure:"planning"`
	Decisions  DecisionsConfiguration  `mapstructure:"decisions"`
	Apply      ApplyConfiguration      `mapstructure:"apply"`
	Publish    PublishConfiguration    `mapstructure:"publish"`
}

// GovernanceConfiguration holds enumeration and scoring settings.
type GovernanceConfiguration struct {
	Owner                string             `mapstructure:"owner"`
	Token                string             `mapstructure:"token"`
	StateRoot            string             `mapstructure:"state_root"`
	APIBaseURL           string             `mapstructure:"api_base_url"`
	HTTPTimeout          time.Duration      `mapstructure:"http_timeout"`
	MaxPages             int                `mapstructure:"max_pages"`
	Retry                RetryConfiguration `mapstructure:"retry"`
	Workers              int                `mapstructure:"workers"`
	SamplingTopN         int                `mapstructure:"sampling_top_n"`
	CacheSize            int                `mapstructure:"cache_size"`
	CriticalRepositories []string           `mapstructure:"critical_repositories"`
}

// RetryConfiguration tunes the exponential backoff applied to GitHub API calls.
type RetryConfiguration struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	Multiplier  float64       `mapstructure:"multiplier"`
}

// PlanningConfiguration controls how many ranked repositories are planned and where trees come from.
type PlanningConfiguration struct {
	TopN       int    `mapstructure:"top_n"`
	Cohort     string `mapstructure:"cohort"`
	TreeSource string `mapstructure:"tree_source"`
}

// DecisionsConfiguration selects the decision store backend.
type DecisionsConfiguration struct {
	Backend string `mapstructure:"backend"`
}

// ApplyConfiguration controls the move-only executor.
type ApplyConfiguration struct {
	MaxApply       int    `mapstructure:"max_apply"`
	WorkspaceRoot  string `mapstructure:"workspace_root"`
	CommitterName  string `mapstructure:"committer_name"`
	CommitterEmail string `mapstructure:"committer_email"`
}

// PublishConfiguration holds optional artifact mirrors.
type PublishConfiguration struct {
	S3 report.ObjectStoreConfiguration `mapstructure:"s3"`
}

// DefaultConfigurationValues returns the baseline configuration keyed for viper defaults. A non-empty
// prefix nests every key beneath it.
func DefaultConfigurationValues(prefix string) map[string]any {
	values := map[string]any{
		"governance.owner":                 "",
		"governance.token":                 "",
		"governance.state_root":            defaultStateRootConstant,
		"governance.api_base_url":          githubapi.DefaultBaseURL,
		"governance.http_timeout":          defaultHTTPTimeoutConstant,
		"governance.max_pages":             githubapi.DefaultMaxPages,
		"governance.retry.max_attempts":    retry.DefaultMaxAttempts,
		"governance.retry.base_delay":      defaultRetryBaseDelayConstant,
		"governance.retry.multiplier":      retry.DefaultMultiplier,
		"governance.workers":               defaultWorkersConstant,
		"governance.sampling_top_n":        defaultSamplingTopNConstant,
		"governance.cache_size":            githubapi.DefaultCacheSize,
		"governance.critical_repositories": []string{},
		"planning.top_n":                   defaultPlanningTopNConstant,
		"planning.cohort":                  "",
		"planning.tree_source":             TreeSourceAPI,
		"decisions.backend":                DecisionBackendFile,
		"apply.max_apply":                  defaultMaxApplyConstant,
		"apply.workspace_root":             "",
		"apply.committer_name":             defaultCommitterNameConstant,
		"apply.committer_email":            defaultCommitterEmailConstant,
		"publish.s3.endpoint":              "",
		"publish.s3.region":                "",
		"publish.s3.access_key":            "",
		"publish.s3.secret_key":            "",
		"publish.s3.bucket":                "",
		"publish.s3.prefix":                "",
		"publish.s3.use_ssl":               true,
	}

	trimmedPrefix := strings.Trim(strings.TrimSpace(prefix), keySeparatorConstant)
	if len(trimmedPrefix) == 0 {
		return values
	}

	prefixed := make(map[string]any, len(values))
	for key, value := range values {
		prefixed[trimmedPrefix+keySeparatorConstant+key] = value
	}
	return prefixed
}

// Sanitize trims values, expands home shortcuts, fills derived paths and validates choices.
func (configuration Configuration) Sanitize(expander *pathutils.HomeExpander) (Configuration, error) {
	sanitized := configuration

	owner, ownerError := sanitizeOwner(configuration.Governance.Owner)
	if ownerError != nil {
		return Configuration{}, ownerError
	}
	sanitized.Governance.Owner = owner
	sanitized.Governance.Token = strings.TrimSpace(configuration.Governance.Token)
	sanitized.Governance.APIBaseURL = strings.TrimSpace(configuration.Governance.APIBaseURL)
	sanitized.Governance.CriticalRepositories = sanitizeNames(configuration.Governance.CriticalRepositories)

	stateRoot := expandPath(expander, configuration.Governance.StateRoot)
	if len(stateRoot) == 0 {
		return Configuration{}, ErrStateRootRequired
	}
	sanitized.Governance.StateRoot = stateRoot

	workspaceRoot := expandPath(expander, configuration.Apply.WorkspaceRoot)
	if len(workspaceRoot) == 0 {
		workspaceRoot = filepath.Join(stateRoot, workspacesDirectoryConstant)
	}
	sanitized.Apply.WorkspaceRoot = workspaceRoot
	sanitized.Apply.CommitterName = strings.TrimSpace(configuration.Apply.CommitterName)
	sanitized.Apply.CommitterEmail = strings.TrimSpace(configuration.Apply.CommitterEmail)

	sanitized.Planning.Cohort = strings.TrimSpace(configuration.Planning.Cohort)
	treeSource, treeSourceError := treeSourceChoice.Normalize(configuration.Planning.TreeSource)
	if treeSourceError != nil {
		return Configuration{}, fmt.Errorf(choiceInvalidErrorTemplateConstant, treeSourceConfigurationKeyConstant, treeSourceError)
	}
	sanitized.Planning.TreeSource = treeSource

	backend, backendError := decisionBackendChoice.Normalize(configuration.Decisions.Backend)
	if backendError != nil {
		return Configuration{}, fmt.Errorf(choiceInvalidErrorTemplateConstant, decisionBackendConfigurationKeyConstant, backendError)
	}
	sanitized.Decisions.Backend = backend

	for key, value := range map[string]int{
		planningTopNConfigurationKeyConstant: configuration.Planning.TopN,
		samplingTopNConfigurationKeyConstant: configuration.Governance.SamplingTopN,
		maxApplyConfigurationKeyConstant:     configuration.Apply.MaxApply,
	} {
		if value < 0 {
			return Configuration{}, fmt.Errorf(negativeValueErrorTemplateConstant, key, value)
		}
	}

	return sanitized, nil
}

// RetryPolicy converts the retry settings into a policy using the GitHub API classifier.
func (configuration GovernanceConfiguration) RetryPolicy() retry.Policy {
	policy := retry.NewPolicy(githubapi.IsRetryable)
	if configuration.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = configuration.Retry.MaxAttempts
	}
	if configuration.Retry.BaseDelay > 0 {
		policy.BaseDelay = configuration.Retry.BaseDelay
	}
	if configuration.Retry.Multiplier > 0 {
		policy.Multiplier = configuration.Retry.Multiplier
	}
	return policy
}

func sanitizeOwner(rawOwner string) (string, error) {
	trimmedOwner := strings.TrimSpace(rawOwner)
	if len(trimmedOwner) == 0 {
		return "", ErrOwnerRequired
	}
	owner, ownerError := shared.NewOwnerSlug(trimmedOwner)
	if ownerError != nil {
		return "", fmt.Errorf(ownerInvalidErrorTemplateConstant, ownerError)
	}
	return owner.String(), nil
}

func sanitizeNames(rawNames []string) []string {
	sanitized := make([]string, 0, len(rawNames))
	for _, candidate := range rawNames {
		trimmed := strings.TrimSpace(candidate)
		if len(trimmed) == 0 {
			continue
		}
		sanitized = append(sanitized, trimmed)
	}
	return sanitized
}

func expandPath(expander *pathutils.HomeExpander, rawPath string) string {
	trimmedPath := strings.TrimSpace(rawPath)
	if len(trimmedPath) == 0 {
		return ""
	}
	return filepath.Clean(expander.Expand(trimmedPath))
}
