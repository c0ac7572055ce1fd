package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/temirov/schemahop/internal/execshell"
	"github.com/temirov/schemahop/internal/migration"
)

const (
	graphOperationNameConstant       = "graph query"
	migrateOperationTemplateConstant = "migrate %s %s"
	migrateAllOperationNameConstant  = "migrate"
	operationErrorTemplateConstant   = "migration engine %s failed: %v"
	unsupportedAppliedSourceTemplate = "unsupported applied source %q"
	readAppliedErrorTemplate         = "unable to read applied migrations: %w"
	logMessageGraphLoadedConstant    = "Loaded migration graph"
	logMessageMigratingConstant      = "Migrating application"
	logMessageMigratingAllConstant   = "Reconciling all applications"
	logFieldNodeCountConstant        = "node_count"
	logFieldAppliedCountConstant     = "applied_count"
	logFieldAppliedSourceConstant    = "applied_source"
	logFieldApplicationLabelConstant = "app"
	logFieldTargetNameConstant       = "target"
)

// ErrExecutorNotConfigured indicates that the engine lacks a command executor.
var ErrExecutorNotConfigured = errors.New("engine command executor not configured")

// ErrFilesystemNotConfigured indicates that the engine lacks a filesystem.
var ErrFilesystemNotConfigured = errors.New("engine filesystem not configured")

// ErrGraphCommandNotConfigured indicates that no graph command was configured.
var ErrGraphCommandNotConfigured = errors.New("engine graph_command is not configured")

// OperationError reports a failed engine or database operation.
type OperationError struct {
	Operation string
	Cause     error
}

// Error describes the failed operation.
func (operationError OperationError) Error() string {
	return fmt.Sprintf(operationErrorTemplateConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying failure.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// CommandExecutor runs shell commands.
type CommandExecutor interface {
	Execute(executionContext context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error)
}

// Dependencies wires a CommandEngine.
type Dependencies struct {
	Executor          CommandExecutor
	FileSystem        afero.Fs
	Logger            *zap.Logger
	Output            io.Writer
	DatabaseOpener    DatabaseOpener
	EnvironmentLookup EnvironmentLookup
}

// CommandEngine implements the migration engine through external commands.
type CommandEngine struct {
	executor          CommandExecutor
	fileSystem        afero.Fs
	logger            *zap.Logger
	output            io.Writer
	databaseOpener    DatabaseOpener
	environmentLookup EnvironmentLookup
	configuration     Configuration
}

// NewCommandEngine validates dependencies and constructs a CommandEngine.
func NewCommandEngine(configuration Configuration, dependencies Dependencies) (*CommandEngine, error) {
	if dependencies.Executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	if dependencies.FileSystem == nil {
		return nil, ErrFilesystemNotConfigured
	}

	sanitized := configuration.Sanitize()
	switch sanitized.Applied.Source {
	case AppliedSourceEngine, AppliedSourceDatabase:
	default:
		return nil, fmt.Errorf(unsupportedAppliedSourceTemplate, sanitized.Applied.Source)
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	output := dependencies.Output
	if output == nil {
		output = io.Discard
	}
	databaseOpener := dependencies.DatabaseOpener
	if databaseOpener == nil {
		databaseOpener = OpenDatabase
	}
	environmentLookup := dependencies.EnvironmentLookup
	if environmentLookup == nil {
		environmentLookup = os.LookupEnv
	}

	return &CommandEngine{
		executor:          dependencies.Executor,
		fileSystem:        dependencies.FileSystem,
		logger:            logger,
		output:            output,
		databaseOpener:    databaseOpener,
		environmentLookup: environmentLookup,
		configuration:     sanitized,
	}, nil
}

// LoadState queries the engine for the on-disk graph and the applied set.
func (engine *CommandEngine) LoadState(executionContext context.Context) (State, error) {
	if len(engine.configuration.GraphCommand) == 0 {
		return State{}, ErrGraphCommandNotConfigured
	}

	fileVariables, environmentError := engine.environmentFileVariables()
	if environmentError != nil {
		return State{}, environmentError
	}

	executionResult, executionError := engine.run(executionContext, engine.configuration.GraphCommand, "", "", fileVariables)
	if executionError != nil {
		return State{}, OperationError{Operation: graphOperationNameConstant, Cause: executionError}
	}

	state, decodeError := DecodeGraphDocument([]byte(executionResult.StandardOutput))
	if decodeError != nil {
		return State{}, OperationError{Operation: graphOperationNameConstant, Cause: decodeError}
	}

	if engine.configuration.Applied.Source == AppliedSourceDatabase {
		applied, appliedError := engine.readAppliedFromDatabase(executionContext, fileVariables)
		if appliedError != nil {
			return State{}, appliedError
		}
		state.Applied = applied
	}

	engine.logger.Debug(
		logMessageGraphLoadedConstant,
		zap.Int(logFieldNodeCountConstant, state.Graph.Len()),
		zap.Int(logFieldAppliedCountConstant, len(state.Applied)),
		zap.String(logFieldAppliedSourceConstant, string(engine.configuration.Applied.Source)),
	)
	return state, nil
}

// Migrate moves one application to the target migration, or unapplies it
// entirely for a zero target.
func (engine *CommandEngine) Migrate(executionContext context.Context, target migration.Target) error {
	fileVariables, environmentError := engine.environmentFileVariables()
	if environmentError != nil {
		return environmentError
	}

	engine.logger.Info(logMessageMigratingConstant, zap.String(logFieldApplicationLabelConstant, target.AppLabel), zap.String(logFieldTargetNameConstant, target.TargetName))
	executionResult, executionError := engine.run(executionContext, engine.configuration.MigrateCommand, target.AppLabel, target.TargetName, fileVariables)
	if executionError != nil {
		return OperationError{Operation: fmt.Sprintf(migrateOperationTemplateConstant, target.AppLabel, target.TargetName), Cause: executionError}
	}
	engine.forwardOutput(executionResult)
	return nil
}

// MigrateAll applies every migration defined on disk.
func (engine *CommandEngine) MigrateAll(executionContext context.Context) error {
	fileVariables, environmentError := engine.environmentFileVariables()
	if environmentError != nil {
		return environmentError
	}

	engine.logger.Info(logMessageMigratingAllConstant)
	executionResult, executionError := engine.run(executionContext, engine.configuration.MigrateAllCommand, "", "", fileVariables)
	if executionError != nil {
		return OperationError{Operation: migrateAllOperationNameConstant, Cause: executionError}
	}
	engine.forwardOutput(executionResult)
	return nil
}

func (engine *CommandEngine) run(executionContext context.Context, template []string, appLabel string, targetName string, fileVariables map[string]string) (execshell.ExecutionResult, error) {
	commandName, arguments, renderError := renderCommand(template, appLabel, targetName)
	if renderError != nil {
		return execshell.ExecutionResult{}, renderError
	}
	return engine.executor.Execute(executionContext, execshell.ShellCommand{
		Name: commandName,
		Details: execshell.CommandDetails{
			Arguments:            arguments,
			WorkingDirectory:     engine.configuration.WorkingDirectory,
			EnvironmentVariables: withoutProcessOverrides(fileVariables, engine.environmentLookup),
		},
	})
}

func (engine *CommandEngine) readAppliedFromDatabase(executionContext context.Context, fileVariables map[string]string) (migration.KeySet, error) {
	appliedConfiguration := engine.configuration.Applied
	dataSourceName := engine.resolveDataSourceName(fileVariables)
	if len(dataSourceName) == 0 {
		return nil, ErrDSNNotConfigured
	}

	database, openError := engine.databaseOpener(appliedConfiguration.Driver, dataSourceName)
	if openError != nil {
		return nil, OperationError{Operation: appliedConfiguration.Driver, Cause: openError}
	}
	defer database.Close()

	reader, readerError := NewDatabaseAppliedReader(database, appliedConfiguration)
	if readerError != nil {
		return nil, readerError
	}
	applied, readError := reader.ReadApplied(executionContext)
	if readError != nil {
		return nil, OperationError{Operation: appliedConfiguration.Driver, Cause: fmt.Errorf(readAppliedErrorTemplate, readError)}
	}
	return applied, nil
}

// resolveDataSourceName prefers the named variable from the process
// environment, then from the environment file, then the literal DSN.
func (engine *CommandEngine) resolveDataSourceName(fileVariables map[string]string) string {
	variableName := engine.configuration.Applied.DSNEnvironmentVariable
	if len(variableName) > 0 {
		if processValue, present := engine.environmentLookup(variableName); present && len(strings.TrimSpace(processValue)) > 0 {
			return strings.TrimSpace(processValue)
		}
		if fileValue, present := fileVariables[variableName]; present && len(strings.TrimSpace(fileValue)) > 0 {
			return strings.TrimSpace(fileValue)
		}
	}
	return engine.configuration.Applied.DSN
}

func (engine *CommandEngine) environmentFileVariables() (map[string]string, error) {
	environmentFilePath := engine.configuration.EnvironmentFile
	if len(environmentFilePath) > 0 && !filepath.IsAbs(environmentFilePath) {
		environmentFilePath = filepath.Join(engine.configuration.WorkingDirectory, environmentFilePath)
	}
	return loadEnvironmentFile(engine.fileSystem, environmentFilePath)
}

func (engine *CommandEngine) forwardOutput(executionResult execshell.ExecutionResult) {
	if len(executionResult.StandardOutput) == 0 {
		return
	}
	_, _ = io.WriteString(engine.output, executionResult.StandardOutput)
}
