package utils

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	configurationKeySeparatorConstant           = "."
	environmentKeySeparatorConstant             = "_"
	listValueSeparatorConstant                  = ","
	embeddedMergeErrorTemplateConstant          = "failed to merge embedded configuration: %w"
	configurationReadErrorTemplateConstant      = "failed to read configuration: %w"
	configurationUnmarshalErrorTemplateConstant = "failed to parse configuration: %w"
)

// ConfigurationLoader layers embedded defaults, a configuration file and prefixed environment
// variables onto a mapstructure-tagged target. Later layers win.
type ConfigurationLoader struct {
	name         string
	format       string
	prefix       string
	searchPaths  []string
	embedded     []byte
	embeddedType string
	strictKeys   bool
	keyReplacer  *strings.Replacer
}

// LoadedConfiguration reports which layers contributed to a load.
type LoadedConfiguration struct {
	ConfigFileUsed   string
	EmbeddedDefaults bool
}

// NewConfigurationLoader creates a loader for <configurationName>.<configurationType> files found on
// searchPaths, with environment overrides named <environmentPrefix>_<SECTION>_<KEY>.
func NewConfigurationLoader(configurationName string, configurationType string, environmentPrefix string, searchPaths []string) *ConfigurationLoader {
	return &ConfigurationLoader{
		name:        configurationName,
		format:      configurationType,
		prefix:      environmentPrefix,
		searchPaths: slices.Clone(searchPaths),
		keyReplacer: strings.NewReplacer(configurationKeySeparatorConstant, environmentKeySeparatorConstant),
	}
}

// SetEmbeddedConfiguration registers the bottom configuration layer. An empty payload clears it.
func (loader *ConfigurationLoader) SetEmbeddedConfiguration(configurationData []byte, configurationType string) {
	if loader == nil {
		return
	}
	loader.embeddedType = strings.TrimSpace(configurationType)
	if len(configurationData) == 0 {
		loader.embedded = nil
		return
	}
	loader.embedded = bytes.Clone(configurationData)
}

// SetStrictKeys makes LoadConfiguration fail on keys that match no field of the target.
func (loader *ConfigurationLoader) SetStrictKeys(strict bool) {
	if loader == nil {
		return
	}
	loader.strictKeys = strict
}

// LoadConfiguration decodes every layer into targetConfiguration. An explicit configurationFilePath
// must exist; otherwise the search paths are probed and a missing file is not an error.
func (loader *ConfigurationLoader) LoadConfiguration(configurationFilePath string, defaultValues map[string]any, targetConfiguration any) (LoadedConfiguration, error) {
	viperInstance := viper.New()
	viperInstance.SetConfigName(loader.name)

	loaded := LoadedConfiguration{}
	if len(loader.embedded) > 0 {
		if mergeError := loader.mergeEmbedded(viperInstance); mergeError != nil {
			return LoadedConfiguration{}, mergeError
		}
		loaded.EmbeddedDefaults = true
	}
	viperInstance.SetConfigType(loader.format)

	for defaultKey, defaultValue := range defaultValues {
		viperInstance.SetDefault(defaultKey, defaultValue)
	}
	loader.bindEnvironment(viperInstance)

	if readError := loader.mergeFile(viperInstance, configurationFilePath); readError != nil {
		return LoadedConfiguration{}, readError
	}
	loaded.ConfigFileUsed = viperInstance.ConfigFileUsed()

	if unmarshalError := viperInstance.Unmarshal(targetConfiguration, loader.decoderOptions()...); unmarshalError != nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationUnmarshalErrorTemplateConstant, unmarshalError)
	}
	return loaded, nil
}

func (loader *ConfigurationLoader) mergeEmbedded(viperInstance *viper.Viper) error {
	embeddedType := loader.format
	if len(loader.embeddedType) > 0 {
		embeddedType = loader.embeddedType
	}
	viperInstance.SetConfigType(embeddedType)
	if mergeError := viperInstance.MergeConfig(bytes.NewReader(loader.embedded)); mergeError != nil {
		return fmt.Errorf(embeddedMergeErrorTemplateConstant, mergeError)
	}
	return nil
}

func (loader *ConfigurationLoader) bindEnvironment(viperInstance *viper.Viper) {
	viperInstance.SetEnvPrefix(loader.prefix)
	viperInstance.SetEnvKeyReplacer(loader.keyReplacer)
	viperInstance.AutomaticEnv()
}

func (loader *ConfigurationLoader) mergeFile(viperInstance *viper.Viper, configurationFilePath string) error {
	if len(configurationFilePath) > 0 {
		viperInstance.SetConfigFile(configurationFilePath)
	} else {
		for _, searchPath := range loader.searchPaths {
			viperInstance.AddConfigPath(searchPath)
		}
	}

	readError := viperInstance.MergeInConfig()
	if readError == nil {
		return nil
	}
	var notFoundError viper.ConfigFileNotFoundError
	if errors.As(readError, &notFoundError) {
		return nil
	}
	return fmt.Errorf(configurationReadErrorTemplateConstant, readError)
}

func (loader *ConfigurationLoader) decoderOptions() []viper.DecoderConfigOption {
	options := []viper.DecoderConfigOption{
		viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(listValueSeparatorConstant),
		)),
	}
	if loader.strictKeys {
		options = append(options, func(decoderConfiguration *mapstructure.DecoderConfig) {
			decoderConfiguration.ErrorUnused = true
		})
	}
	return options
}
