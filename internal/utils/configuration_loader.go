package utils

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	configurationKeyPathSeparatorConstant    = "."
	environmentVariableSeparatorConstant     = "_"
	argumentListSeparatorConstant            = " "
	embeddedLayerErrorTemplateConstant       = "embedded settings are invalid: %w"
	fileLayerErrorTemplateConstant           = "unable to read configuration file: %w"
	decodeConfigurationErrorTemplateConstant = "unable to decode configuration: %w"
)

// ConfigurationSources lists where settings are looked up. Later sources win:
// defaults, then Embedded, then the first matching file, then environment
// variables named <EnvironmentPrefix>_<SECTION>_<KEY>.
type ConfigurationSources struct {
	FileName          string
	Format            string
	EnvironmentPrefix string
	SearchDirectories []string
	Embedded          []byte
}

// ConfigurationLoader resolves layered settings into a typed structure.
type ConfigurationLoader struct {
	sources ConfigurationSources
}

// LoadedConfiguration reports which file, if any, contributed settings.
type LoadedConfiguration struct {
	ConfigFileUsed string
}

// NewConfigurationLoader constructs a loader over a private copy of sources.
func NewConfigurationLoader(sources ConfigurationSources) *ConfigurationLoader {
	sources.SearchDirectories = append([]string(nil), sources.SearchDirectories...)
	sources.Embedded = append([]byte(nil), sources.Embedded...)
	return &ConfigurationLoader{sources: sources}
}

// Load decodes the layered settings into target. An explicit file must exist;
// without one the search directories are tried and a miss is not an error.
func (loader *ConfigurationLoader) Load(explicitFile string, defaults map[string]any, target any) (LoadedConfiguration, error) {
	settings := viper.New()
	settings.SetConfigType(loader.sources.Format)
	for key, value := range defaults {
		settings.SetDefault(key, value)
	}

	if len(loader.sources.Embedded) > 0 {
		if mergeError := settings.MergeConfig(bytes.NewReader(loader.sources.Embedded)); mergeError != nil {
			return LoadedConfiguration{}, fmt.Errorf(embeddedLayerErrorTemplateConstant, mergeError)
		}
	}

	if fileError := loader.mergeFile(settings, strings.TrimSpace(explicitFile)); fileError != nil {
		return LoadedConfiguration{}, fmt.Errorf(fileLayerErrorTemplateConstant, fileError)
	}

	settings.SetEnvPrefix(loader.sources.EnvironmentPrefix)
	settings.SetEnvKeyReplacer(strings.NewReplacer(configurationKeyPathSeparatorConstant, environmentVariableSeparatorConstant))
	settings.AutomaticEnv()

	if decodeError := settings.Unmarshal(target, viper.DecodeHook(configurationDecodeHook())); decodeError != nil {
		return LoadedConfiguration{}, fmt.Errorf(decodeConfigurationErrorTemplateConstant, decodeError)
	}
	return LoadedConfiguration{ConfigFileUsed: settings.ConfigFileUsed()}, nil
}

func (loader *ConfigurationLoader) mergeFile(settings *viper.Viper, explicitFile string) error {
	if len(explicitFile) > 0 {
		settings.SetConfigFile(explicitFile)
		return settings.MergeInConfig()
	}

	settings.SetConfigName(loader.sources.FileName)
	for _, directory := range loader.sources.SearchDirectories {
		settings.AddConfigPath(directory)
	}
	mergeError := settings.MergeInConfig()
	var notFoundError viper.ConfigFileNotFoundError
	if errors.As(mergeError, &notFoundError) {
		return nil
	}
	return mergeError
}

// configurationDecodeHook lets list settings such as engine commands be given
// as one space-separated string, which is the only shape environment variables support.
func configurationDecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(argumentListSeparatorConstant),
	)
}
