package engine

import "strings"

// AppliedSource selects where the applied migration set is read from.
type AppliedSource string

const (
	// AppliedSourceEngine reads the applied set from the graph document.
	AppliedSourceEngine AppliedSource = "engine"
	// AppliedSourceDatabase reads the applied set from the bookkeeping table.
	AppliedSourceDatabase AppliedSource = "database"
)

const (
	defaultWorkingDirectoryConstant = "."
	defaultEnvironmentFileConstant  = ".env"
	defaultBookkeepingTableConstant = "django_migrations"
	defaultAppColumnConstant        = "app"
	defaultNameColumnConstant       = "name"
	defaultDatabaseDriverConstant   = "postgres"
	pythonExecutableConstant        = "python"
	manageScriptConstant            = "manage.py"
	migrateSubcommandConstant       = "migrate"
)

// Configuration describes how the migration engine is invoked.
type Configuration struct {
	WorkingDirectory  string               `mapstructure:"working_directory"`
	EnvironmentFile   string               `mapstructure:"env_file"`
	GraphCommand      []string             `mapstructure:"graph_command"`
	MigrateCommand    []string             `mapstructure:"migrate_command"`
	MigrateAllCommand []string             `mapstructure:"migrate_all_command"`
	Applied           AppliedConfiguration `mapstructure:"applied"`
}

// AppliedConfiguration describes the bookkeeping table read when Source is AppliedSourceDatabase.
type AppliedConfiguration struct {
	Source                 AppliedSource `mapstructure:"source"`
	Driver                 string        `mapstructure:"driver"`
	DSN                    string        `mapstructure:"dsn"`
	DSNEnvironmentVariable string        `mapstructure:"dsn_env"`
	Table                  string        `mapstructure:"table"`
	AppColumn              string        `mapstructure:"app_column"`
	NameColumn             string        `mapstructure:"name_column"`
}

// DefaultConfiguration returns the baseline engine configuration. There is no
// default graph command; it must be configured.
func DefaultConfiguration() Configuration {
	return Configuration{
		WorkingDirectory:  defaultWorkingDirectoryConstant,
		EnvironmentFile:   defaultEnvironmentFileConstant,
		MigrateCommand:    []string{pythonExecutableConstant, manageScriptConstant, migrateSubcommandConstant, AppPlaceholder, TargetPlaceholder},
		MigrateAllCommand: []string{pythonExecutableConstant, manageScriptConstant, migrateSubcommandConstant},
		Applied: AppliedConfiguration{
			Source:     AppliedSourceEngine,
			Driver:     defaultDatabaseDriverConstant,
			Table:      defaultBookkeepingTableConstant,
			AppColumn:  defaultAppColumnConstant,
			NameColumn: defaultNameColumnConstant,
		},
	}
}

// Sanitize trims values and fills blanks from DefaultConfiguration.
func (configuration Configuration) Sanitize() Configuration {
	defaults := DefaultConfiguration()
	sanitized := configuration

	sanitized.WorkingDirectory = valueOrDefault(configuration.WorkingDirectory, defaults.WorkingDirectory)
	sanitized.EnvironmentFile = strings.TrimSpace(configuration.EnvironmentFile)
	sanitized.GraphCommand = sanitizeArguments(configuration.GraphCommand)
	sanitized.MigrateCommand = sanitizeArguments(configuration.MigrateCommand)
	if len(sanitized.MigrateCommand) == 0 {
		sanitized.MigrateCommand = defaults.MigrateCommand
	}
	sanitized.MigrateAllCommand = sanitizeArguments(configuration.MigrateAllCommand)
	if len(sanitized.MigrateAllCommand) == 0 {
		sanitized.MigrateAllCommand = defaults.MigrateAllCommand
	}

	sanitized.Applied.Source = AppliedSource(strings.ToLower(valueOrDefault(string(configuration.Applied.Source), string(defaults.Applied.Source))))
	sanitized.Applied.Driver = strings.ToLower(valueOrDefault(configuration.Applied.Driver, defaults.Applied.Driver))
	sanitized.Applied.DSN = strings.TrimSpace(configuration.Applied.DSN)
	sanitized.Applied.DSNEnvironmentVariable = strings.TrimSpace(configuration.Applied.DSNEnvironmentVariable)
	sanitized.Applied.Table = valueOrDefault(configuration.Applied.Table, defaults.Applied.Table)
	sanitized.Applied.AppColumn = valueOrDefault(configuration.Applied.AppColumn, defaults.Applied.AppColumn)
	sanitized.Applied.NameColumn = valueOrDefault(configuration.Applied.NameColumn, defaults.Applied.NameColumn)
	return sanitized
}

func valueOrDefault(value string, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return fallback
	}
	return trimmed
}

func sanitizeArguments(arguments []string) []string {
	sanitized := make([]string, 0, len(arguments))
	for _, argument := range arguments {
		trimmed := strings.TrimSpace(argument)
		if len(trimmed) == 0 {
			continue
		}
		sanitized = append(sanitized, trimmed)
	}
	return sanitized
}
