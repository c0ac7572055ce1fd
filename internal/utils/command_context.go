package utils

import "context"

// EmbeddedConfigurationLabel names the configuration source when no file was read.
const EmbeddedConfigurationLabel = "embedded defaults"

type configurationFileKey struct{}

// WithConfigurationFile records the configuration file that produced the
// active settings. An empty path means only embedded defaults and environment
// overrides were applied.
func WithConfigurationFile(parentContext context.Context, configurationFile string) context.Context {
	if parentContext == nil {
		parentContext = context.Background()
	}
	return context.WithValue(parentContext, configurationFileKey{}, configurationFile)
}

// ConfigurationSource describes where the settings of a command invocation came from.
func ConfigurationSource(executionContext context.Context) string {
	if executionContext == nil {
		return EmbeddedConfigurationLabel
	}
	configurationFile, _ := executionContext.Value(configurationFileKey{}).(string)
	if len(configurationFile) == 0 {
		return EmbeddedConfigurationLabel
	}
	return configurationFile
}
