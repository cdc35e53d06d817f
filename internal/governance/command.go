package governance

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/repogov/internal/ui"
	pathutils "github.com/temirov/repogov/internal/utils/path"
)

const (
	scanCommandUseConstant                 = "scan"
	scanCommandShortDescriptionConstant    = "Inventory repositories and write the risk report"
	scanCommandLongDescriptionConstant     = "scan enumerates the owner's repositories, scores them for risk, detects duplicates and writes raw.json, intelligence.json and the dashboard for the run."
	planCommandUseConstant                 = "plan"
	planCommandShortDescriptionConstant    = "Scan, then plan move-only cleanup for the highest-risk repositories"
	planCommandLongDescriptionConstant     = "plan runs a scan and writes move lists, apply scripts and decision records for the top-N repositories. Repositories already decided in the cohort are skipped."
	applyCommandUseConstant                = "apply"
	applyCommandShortDescriptionConstant   = "Move a cohort's planned paths into TRASH and push the result"
	applyCommandLongDescriptionConstant    = "apply clones every repository with a non-empty move list in the cohort, renames the planned paths into TRASH, commits and pushes. Nothing is ever deleted."
	runCommandUseConstant                  = "run"
	runCommandShortDescriptionConstant     = "Scan and plan, optionally applying the plan"
	runCommandLongDescriptionConstant      = "run performs scan and plan in one pass and applies the cohort when --apply is given."
	commandExecutionErrorTemplateConstant  = "%s failed: %w"
	unexpectedArgumentsTemplateConstant    = "%s does not accept positional arguments"
	artifactsOutputTemplateConstant        = "run %s: artifacts in %s\n"
	cohortOutputTemplateConstant           = "cohort %s: %d repositories planned\n"
	applyReportOutputTemplateConstant      = "apply report: %s\n"
	flagOwnerNameConstant                  = "owner"
	flagOwnerDescriptionConstant           = "GitHub account whose repositories are governed"
	flagStateRootNameConstant              = "state-root"
	flagStateRootDescriptionConstant       = "Directory receiving run artifacts, move lists and decisions"
	flagTopNNameConstant                   = "top-n"
	flagTopNDescriptionConstant            = "Number of highest-risk repositories to plan"
	flagSamplingTopNNameConstant           = "sampling-top-n"
	flagSamplingTopNDescriptionConstant    = "Number of highest-risk repositories sampled for content duplicates"
	flagCohortNameConstant                 = "cohort"
	flagCohortDescriptionConstant          = "Cohort name for decision records (defaults to the run identifier)"
	flagApplyCohortDescriptionConstant     = "Cohort whose move lists are applied"
	flagTreeSourceNameConstant             = "tree-source"
	flagTreeSourceDescriptionConstant      = "where repository trees are listed from"
	flagDecisionBackendNameConstant        = "decision-backend"
	flagDecisionBackendDescriptionConstant = "storage backend for decision records"
	flagMaxApplyNameConstant               = "max-apply"
	flagMaxApplyDescriptionConstant        = "Maximum number of repositories to push (0 applies every move list)"
	flagApplyNameConstant                  = "apply"
	logMessagePipelineCloseFailedConstant  = "unable to release pipeline resources"
	flagApplyDescriptionConstant           = "Apply the planned cohort after planning"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies the loaded governance configuration.
type ConfigurationProvider func() Configuration

// PipelineFactory assembles a governance pipeline.
type PipelineFactory func(options PipelineOptions) (*Pipeline, error)

type commandMode int

const (
	commandModeScan commandMode = iota
	commandModePlan
	commandModeApply
	commandModeRun
)

// CommandBuilder assembles the scan, plan, apply and run commands.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	ConfigurationProvider        ConfigurationProvider
	HumanReadableLoggingProvider func() bool
	PipelineFactory              PipelineFactory
	HomeExpander                 *pathutils.HomeExpander
}

// Build constructs every governance command.
func (builder *CommandBuilder) Build() ([]*cobra.Command, error) {
	constructors := []func() (*cobra.Command, error){
		builder.BuildScan,
		builder.BuildPlan,
		builder.BuildApply,
		builder.BuildRun,
	}
	commands := make([]*cobra.Command, 0, len(constructors))
	for _, construct := range constructors {
		command, buildError := construct()
		if buildError != nil {
			return nil, buildError
		}
		commands = append(commands, command)
	}
	return commands, nil
}

// BuildScan constructs the scan command.
func (builder *CommandBuilder) BuildScan() (*cobra.Command, error) {
	command := builder.newCommand(commandModeScan, scanCommandUseConstant, scanCommandShortDescriptionConstant, scanCommandLongDescriptionConstant)
	builder.addSharedFlags(command)
	command.Flags().Int(flagSamplingTopNNameConstant, 0, flagSamplingTopNDescriptionConstant)
	return command, nil
}

// BuildPlan constructs the plan command.
func (builder *CommandBuilder) BuildPlan() (*cobra.Command, error) {
	command := builder.newCommand(commandModePlan, planCommandUseConstant, planCommandShortDescriptionConstant, planCommandLongDescriptionConstant)
	builder.addSharedFlags(command)
	builder.addPlanningFlags(command)
	return command, nil
}

// BuildApply constructs the apply command.
func (builder *CommandBuilder) BuildApply() (*cobra.Command, error) {
	command := builder.newCommand(commandModeApply, applyCommandUseConstant, applyCommandShortDescriptionConstant, applyCommandLongDescriptionConstant)
	builder.addSharedFlags(command)
	command.Flags().String(flagCohortNameConstant, "", flagApplyCohortDescriptionConstant)
	command.Flags().String(flagDecisionBackendNameConstant, "", decisionBackendChoice.Usage(flagDecisionBackendDescriptionConstant))
	command.Flags().Int(flagMaxApplyNameConstant, 0, flagMaxApplyDescriptionConstant)
	return command, nil
}

// BuildRun constructs the run command.
func (builder *CommandBuilder) BuildRun() (*cobra.Command, error) {
	command := builder.newCommand(commandModeRun, runCommandUseConstant, runCommandShortDescriptionConstant, runCommandLongDescriptionConstant)
	builder.addSharedFlags(command)
	builder.addPlanningFlags(command)
	command.Flags().Int(flagMaxApplyNameConstant, 0, flagMaxApplyDescriptionConstant)
	command.Flags().Bool(flagApplyNameConstant, false, flagApplyDescriptionConstant)
	return command, nil
}

func (builder *CommandBuilder) newCommand(mode commandMode, use string, short string, long string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.run(command, arguments, mode)
		},
	}
}

func (builder *CommandBuilder) addSharedFlags(command *cobra.Command) {
	command.Flags().String(flagOwnerNameConstant, "", flagOwnerDescriptionConstant)
	command.Flags().String(flagStateRootNameConstant, "", flagStateRootDescriptionConstant)
}

func (builder *CommandBuilder) addPlanningFlags(command *cobra.Command) {
	command.Flags().Int(flagTopNNameConstant, 0, flagTopNDescriptionConstant)
	command.Flags().Int(flagSamplingTopNNameConstant, 0, flagSamplingTopNDescriptionConstant)
	command.Flags().String(flagCohortNameConstant, "", flagCohortDescriptionConstant)
	command.Flags().String(flagTreeSourceNameConstant, "", treeSourceChoice.Usage(flagTreeSourceDescriptionConstant))
	command.Flags().String(flagDecisionBackendNameConstant, "", decisionBackendChoice.Usage(flagDecisionBackendDescriptionConstant))
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string, mode commandMode) error {
	if len(arguments) > 0 {
		return fmt.Errorf(unexpectedArgumentsTemplateConstant, command.Name())
	}

	configuration, configurationError := builder.resolveConfiguration(command)
	if configurationError != nil {
		return configurationError
	}

	logger := builder.resolveLogger()
	pipelineOptions := PipelineOptions{
		Logger:        logger,
		Configuration: configuration,
		Output:        command.OutOrStdout(),
	}
	if builder.HumanReadableLoggingProvider != nil && builder.HumanReadableLoggingProvider() {
		pipelineOptions.CommandEventObserver = ui.NewConsoleCommandEventLogger(logger)
	}

	pipeline, pipelineError := builder.resolvePipelineFactory()(pipelineOptions)
	if pipelineError != nil {
		return pipelineError
	}
	defer func() {
		if closeError := pipeline.Close(); closeError != nil {
			logger.Warn(logMessagePipelineCloseFailedConstant, zap.Error(closeError))
		}
	}()

	runResult, runError := builder.execute(command, pipeline.Service, configuration, mode)
	if runError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, command.Name(), runError)
	}

	output := command.OutOrStdout()
	if len(runResult.Scan.Artifacts.Directory) > 0 {
		fmt.Fprintf(output, artifactsOutputTemplateConstant, runResult.Scan.RunID, runResult.Scan.Artifacts.Directory)
	}
	if runResult.Plan != nil {
		fmt.Fprintf(output, cohortOutputTemplateConstant, runResult.Plan.Cohort, len(runResult.Plan.Plans))
	}
	if runResult.Apply != nil {
		fmt.Fprintf(output, applyReportOutputTemplateConstant, runResult.Apply.ReportPath)
	}
	return nil
}

func (builder *CommandBuilder) execute(command *cobra.Command, service *Service, configuration Configuration, mode commandMode) (RunResult, error) {
	executionContext := command.Context()
	cohort := configuration.Planning.Cohort

	switch mode {
	case commandModeApply:
		return service.RunApply(executionContext, command.Name(), cohort)
	case commandModePlan:
		return service.Run(executionContext, RunOptions{Command: command.Name(), Plan: true, Cohort: cohort})
	case commandModeRun:
		applyRequested, _ := command.Flags().GetBool(flagApplyNameConstant)
		return service.Run(executionContext, RunOptions{Command: command.Name(), Plan: true, Apply: applyRequested, Cohort: cohort})
	default:
		return service.Run(executionContext, RunOptions{Command: command.Name()})
	}
}

// resolveConfiguration applies changed flags over the provided configuration and sanitizes the result.
func (builder *CommandBuilder) resolveConfiguration(command *cobra.Command) (Configuration, error) {
	configuration := Configuration{}
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}

	commandFlags := command.Flags()
	if commandFlags.Changed(flagOwnerNameConstant) {
		configuration.Governance.Owner, _ = commandFlags.GetString(flagOwnerNameConstant)
	}
	if commandFlags.Changed(flagStateRootNameConstant) {
		configuration.Governance.StateRoot, _ = commandFlags.GetString(flagStateRootNameConstant)
	}
	if commandFlags.Changed(flagSamplingTopNNameConstant) {
		configuration.Governance.SamplingTopN, _ = commandFlags.GetInt(flagSamplingTopNNameConstant)
	}
	if commandFlags.Changed(flagTopNNameConstant) {
		configuration.Planning.TopN, _ = commandFlags.GetInt(flagTopNNameConstant)
	}
	if commandFlags.Changed(flagCohortNameConstant) {
		cohortValue, _ := commandFlags.GetString(flagCohortNameConstant)
		configuration.Planning.Cohort = strings.TrimSpace(cohortValue)
	}
	if commandFlags.Changed(flagTreeSourceNameConstant) {
		configuration.Planning.TreeSource, _ = commandFlags.GetString(flagTreeSourceNameConstant)
	}
	if commandFlags.Changed(flagDecisionBackendNameConstant) {
		configuration.Decisions.Backend, _ = commandFlags.GetString(flagDecisionBackendNameConstant)
	}
	if commandFlags.Changed(flagMaxApplyNameConstant) {
		configuration.Apply.MaxApply, _ = commandFlags.GetInt(flagMaxApplyNameConstant)
	}

	expander := builder.HomeExpander
	if expander == nil {
		expander = pathutils.NewHomeExpander()
	}
	sanitized, sanitizeError := configuration.Sanitize(expander)
	if sanitizeError != nil {
		return Configuration{}, sanitizeError
	}
	if command.Name() == applyCommandUseConstant && len(sanitized.Planning.Cohort) == 0 {
		return Configuration{}, ErrCohortRequired
	}
	return sanitized, nil
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}

	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}

	return logger
}

func (builder *CommandBuilder) resolvePipelineFactory() PipelineFactory {
	if builder.PipelineFactory != nil {
		return builder.PipelineFactory
	}
	return NewPipeline
}
