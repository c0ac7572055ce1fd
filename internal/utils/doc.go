// Package utils exposes reusable helpers consumed by multiple commands.
//
// ConfigurationLoader merges the embedded defaults, a config file, and
// SCHEMAHOP_ environment overrides through Viper. LoggerFactory builds the zap
// logger every command shares.
package utils
