package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/repogov/internal/governance"
	"github.com/temirov/repogov/internal/utils"
)

const (
	applicationNameConstant                  = "repogov"
	applicationShortDescriptionConstant      = "Governance for a GitHub account's repositories"
	applicationLongDescriptionConstant       = "repogov inventories an owner's repositories, ranks them by risk, finds duplicates and plans move-only cleanups that relocate clutter into TRASH instead of deleting it."
	configFileFlagNameConstant               = "config"
	configFileFlagUsageConstant              = "Optional path to a configuration file (YAML or JSON)."
	envFileFlagNameConstant                  = "env-file"
	envFileFlagUsageConstant                 = "Optional path to a dotenv file loaded before configuration (defaults to ./.env when present)."
	logLevelFlagNameConstant                 = "log-level"
	logLevelFlagUsageConstant                = "Override the configured log level."
	logFormatFlagNameConstant                = "log-format"
	logFormatFlagUsageConstant               = "Override the configured log format (structured or console)."
	versionFlagNameConstant                  = "version"
	versionFlagUsageConstant                 = "Print the repogov version and exit."
	versionOutputTemplateConstant            = "%s version: %s\n"
	developmentVersionConstant               = "dev"
	buildInfoDevelopmentVersionConstant      = "(devel)"
	commonConfigurationKeyConstant           = "common"
	commonLogLevelConfigKeyConstant          = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant         = commonConfigurationKeyConstant + ".log_format"
	environmentPrefixConstant                = "REPOGOV"
	configurationSearchPathEnvironmentName   = "REPOGOV_CONFIG_SEARCH_PATH"
	configurationNameConstant                = "config"
	configurationTypeConstant                = "yaml"
	defaultEnvFileNameConstant               = ".env"
	configurationInitializedMessageConstant  = "configuration initialized"
	configurationLogLevelFieldConstant       = "log_level"
	configurationLogFormatFieldConstant      = "log_format"
	configurationFileFieldConstant           = "config_file"
	embeddedDefaultsFieldConstant            = "embedded_defaults"
	configurationLoadErrorTemplateConstant   = "unable to load configuration: %w"
	environmentFileLoadErrorTemplateConstant = "unable to load environment file %s: %w"
	loggerCreationErrorTemplateConstant      = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant          = "unable to flush logger: %w"
	unknownCommandErrorTemplateConstant      = "unknown command %q"
	rootCommandInfoMessageConstant           = "repogov CLI executed"
	rootCommandDebugMessageConstant          = "repogov CLI diagnostics"
	logFieldCommandNameConstant              = "command_name"
	logFieldArgumentCountConstant            = "argument_count"
	logFieldArgumentsConstant                = "arguments"
	loggerNotInitializedMessageConstant      = "logger not initialized"
	defaultConfigurationSearchPathConstant   = "."
	userConfigurationDirectoryNameConstant   = "repogov"
	commandRegistrationFailedMessageConstant = "unable to register governance commands"
)

// applicationVersion is replaced at link time with -ldflags "-X github.com/temirov/repogov/cmd/cli.applicationVersion=v1.2.3".
var applicationVersion = developmentVersionConstant

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common                   ApplicationCommonConfiguration `mapstructure:"common"`
	governance.Configuration `mapstructure:",squash"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand           *cobra.Command
	configurationLoader   *utils.ConfigurationLoader
	loggerFactory         *utils.LoggerFactory
	logger                *zap.Logger
	configuration         ApplicationConfiguration
	configurationMetadata utils.LoadedConfiguration
	configurationFilePath string
	environmentFilePath   string
	logLevelFlagValue     string
	logFormatFlagValue    string
	versionFlagValue      bool
	versionResolver       func(context.Context) string
	exitFunction          func(int)
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		configurationSearchPaths(),
	)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())
	configurationLoader.SetStrictKeys(true)

	application := &Application{
		configurationLoader: configurationLoader,
		loggerFactory:       utils.NewLoggerFactory(),
		logger:              zap.NewNop(),
		versionResolver:     resolveApplicationVersion,
		exitFunction:        os.Exit,
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			if application.versionFlagValue {
				application.printVersion(command)
				return nil
			}
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.environmentFilePath, envFileFlagNameConstant, "", envFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)
	cobraCommand.Flags().BoolVar(&application.versionFlagValue, versionFlagNameConstant, false, versionFlagUsageConstant)

	governanceBuilder := governance.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		ConfigurationProvider: func() governance.Configuration {
			return application.configuration.Configuration
		},
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
	}
	governanceCommands, governanceBuildError := governanceBuilder.Build()
	if governanceBuildError != nil {
		application.logger.Error(commandRegistrationFailedMessageConstant, zap.Error(governanceBuildError))
	}
	cobraCommand.AddCommand(governanceCommands...)

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
func (application *Application) Execute() error {
	return application.ExecuteContext(application.rootCommand.Context())
}

// ExecuteContext runs the command hierarchy under executionContext so cancellation reaches every
// GitHub request and git invocation.
func (application *Application) ExecuteContext(executionContext context.Context) error {
	if executionContext == nil {
		executionContext = context.Background()
	}
	executionError := application.rootCommand.ExecuteContext(executionContext)
	if syncError := application.flushLogger(); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// InitializeForCommand loads configuration as if the named subcommand were about to run.
func (application *Application) InitializeForCommand(commandUse string) error {
	trimmedUse := strings.TrimSpace(commandUse)
	if len(trimmedUse) == 0 {
		return application.initializeConfiguration(application.rootCommand)
	}
	for _, subcommand := range application.rootCommand.Commands() {
		if subcommand.Name() == trimmedUse {
			return application.initializeConfiguration(subcommand)
		}
	}
	return fmt.Errorf(unknownCommandErrorTemplateConstant, trimmedUse)
}

// Configuration returns the most recently loaded configuration.
func (application *Application) Configuration() ApplicationConfiguration {
	return application.configuration
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

// ExecuteContext builds a fresh application instance and executes it under executionContext.
func ExecuteContext(executionContext context.Context) error {
	return NewApplication().ExecuteContext(executionContext)
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	if environmentError := application.loadEnvironmentFile(); environmentError != nil {
		return environmentError
	}

	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:  string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant: string(utils.LogFormatStructured),
	}
	for configurationKey, configurationValue := range governance.DefaultConfigurationValues("") {
		defaultValues[configurationKey] = configurationValue
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}

	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	logger, loggerCreationError := application.loggerFactory.CreateLogger(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = logger

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
		zap.Bool(embeddedDefaultsFieldConstant, application.configurationMetadata.EmbeddedDefaults),
	)

	return nil
}

// loadEnvironmentFile exports dotenv entries without overriding variables already set. An explicit
// --env-file must exist; the implicit ./.env is optional.
func (application *Application) loadEnvironmentFile() error {
	environmentFilePath := strings.TrimSpace(application.environmentFilePath)
	if len(environmentFilePath) > 0 {
		if loadError := godotenv.Load(environmentFilePath); loadError != nil {
			return fmt.Errorf(environmentFileLoadErrorTemplateConstant, environmentFilePath, loadError)
		}
		return nil
	}

	loadError := godotenv.Load(defaultEnvFileNameConstant)
	if loadError != nil && !errors.Is(loadError, fs.ErrNotExist) {
		return fmt.Errorf(environmentFileLoadErrorTemplateConstant, defaultEnvFileNameConstant, loadError)
	}
	return nil
}

func (application *Application) printVersion(command *cobra.Command) {
	fmt.Fprintf(command.OutOrStdout(), versionOutputTemplateConstant, applicationNameConstant, application.versionResolver(command.Context()))
	application.exitFunction(0)
}

func (application *Application) humanReadableLoggingEnabled() bool {
	logFormatValue := strings.TrimSpace(application.configuration.Common.LogFormat)
	return strings.EqualFold(logFormatValue, string(utils.LogFormatConsole))
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}

	application.logger.Info(
		rootCommandInfoMessageConstant,
		zap.String(logFieldCommandNameConstant, command.Name()),
		zap.Int(logFieldArgumentCountConstant, len(arguments)),
	)

	application.logger.Debug(
		rootCommandDebugMessageConstant,
		zap.Strings(logFieldArgumentsConstant, arguments),
	)

	if len(arguments) == 0 {
		return command.Help()
	}

	return nil
}

func (application *Application) flushLogger() error {
	if application.logger == nil {
		return nil
	}

	syncError := application.logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	rootCommand := command.Root()
	if rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}

		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}

// configurationSearchPaths lists the working directory and the user configuration directory, or only
// the directory named by REPOGOV_CONFIG_SEARCH_PATH when it is set.
func configurationSearchPaths() []string {
	if overridePath := strings.TrimSpace(os.Getenv(configurationSearchPathEnvironmentName)); len(overridePath) > 0 {
		return []string{overridePath}
	}

	searchPaths := []string{defaultConfigurationSearchPathConstant}
	if userConfigurationDirectory, directoryError := os.UserConfigDir(); directoryError == nil {
		searchPaths = append(searchPaths, filepath.Join(userConfigurationDirectory, userConfigurationDirectoryNameConstant))
	}
	return searchPaths
}

func resolveApplicationVersion(context.Context) string {
	if applicationVersion != developmentVersionConstant {
		return applicationVersion
	}
	buildInformation, available := debug.ReadBuildInfo()
	if !available {
		return applicationVersion
	}
	moduleVersion := strings.TrimSpace(buildInformation.Main.Version)
	if len(moduleVersion) == 0 || moduleVersion == buildInfoDevelopmentVersionConstant {
		return applicationVersion
	}
	return moduleVersion
}
