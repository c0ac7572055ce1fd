package engine_test

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/schemahop/internal/engine"
	"github.com/temirov/schemahop/internal/execshell"
	"github.com/temirov/schemahop/internal/migration"
)

const (
	testWorkingDirectoryConstant = "/workspace/project"
	testGraphDocumentConstant    = `{"applied": [["blog", "0001_initial"], ["blog", "0002_add_author"]],
 "nodes": [
  {"app": "blog", "name": "0001_initial", "parents": []},
  {"app": "blog", "name": "0002_add_author", "parents": [["blog", "0001_initial"]]}
 ]}`
	testEnvironmentFileContentsConstant = "DJANGO_SETTINGS_MODULE=project.settings\nDATABASE_URL=file:from-env-file.db\nHOME_OVERRIDE=ignored\n"
)

type scriptedExecutor struct {
	results          map[string]execshell.ExecutionResult
	failures         map[string]error
	recordedCommands []execshell.ShellCommand
}

func (executor *scriptedExecutor) Execute(executionContext context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	executor.recordedCommands = append(executor.recordedCommands, command)
	commandKey := string(command.Name)
	for _, argument := range command.Details.Arguments {
		commandKey += " " + argument
	}
	if failure, exists := executor.failures[commandKey]; exists {
		return execshell.ExecutionResult{}, failure
	}
	return executor.results[commandKey], nil
}

func newTestConfiguration() engine.Configuration {
	configuration := engine.DefaultConfiguration()
	configuration.WorkingDirectory = testWorkingDirectoryConstant
	configuration.GraphCommand = []string{"python", "manage.py", "migration_graph"}
	return configuration
}

func newTestEngine(testInstance *testing.T, configuration engine.Configuration, executor *scriptedExecutor, fileSystem afero.Fs, output *bytes.Buffer, logger *zap.Logger) *engine.CommandEngine {
	testInstance.Helper()
	commandEngine, creationError := engine.NewCommandEngine(configuration, engine.Dependencies{
		Executor:   executor,
		FileSystem: fileSystem,
		Logger:     logger,
		Output:     output,
		EnvironmentLookup: func(key string) (string, bool) {
			if key == "HOME_OVERRIDE" {
				return "process", true
			}
			return "", false
		},
	})
	require.NoError(testInstance, creationError)
	return commandEngine
}

func TestNewCommandEngineValidation(testInstance *testing.T) {
	testCases := []struct {
		name          string
		configuration engine.Configuration
		dependencies  engine.Dependencies
		expectedError error
	}{
		{
			name:          "executor_required",
			configuration: newTestConfiguration(),
			dependencies:  engine.Dependencies{FileSystem: afero.NewMemMapFs()},
			expectedError: engine.ErrExecutorNotConfigured,
		},
		{
			name:          "filesystem_required",
			configuration: newTestConfiguration(),
			dependencies:  engine.Dependencies{Executor: &scriptedExecutor{}},
			expectedError: engine.ErrFilesystemNotConfigured,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			_, creationError := engine.NewCommandEngine(testCase.configuration, testCase.dependencies)
			require.ErrorIs(testInstance, creationError, testCase.expectedError)
		})
	}

	invalidSource := newTestConfiguration()
	invalidSource.Applied.Source = "ledger"
	_, creationError := engine.NewCommandEngine(invalidSource, engine.Dependencies{Executor: &scriptedExecutor{}, FileSystem: afero.NewMemMapFs()})
	require.Error(testInstance, creationError)
}

func TestLoadStateFromGraphCommand(testInstance *testing.T) {
	fileSystem := afero.NewMemMapFs()
	require.NoError(testInstance, afero.WriteFile(fileSystem, filepath.Join(testWorkingDirectoryConstant, ".env"), []byte(testEnvironmentFileContentsConstant), 0o644))

	executor := &scriptedExecutor{results: map[string]execshell.ExecutionResult{
		"python manage.py migration_graph": {StandardOutput: testGraphDocumentConstant},
	}}
	observerCore, observerLogs := observer.New(zap.DebugLevel)
	commandEngine := newTestEngine(testInstance, newTestConfiguration(), executor, fileSystem, &bytes.Buffer{}, zap.New(observerCore))

	state, loadError := commandEngine.LoadState(context.Background())
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, 2, state.Graph.Len())
	require.True(testInstance, state.Applied.Equal(migration.NewKeySet(
		migration.NodeKey{AppLabel: "blog", MigrationName: "0001_initial"},
		migration.NodeKey{AppLabel: "blog", MigrationName: "0002_add_author"},
	)))

	require.Len(testInstance, executor.recordedCommands, 1)
	recorded := executor.recordedCommands[0]
	require.Equal(testInstance, testWorkingDirectoryConstant, recorded.Details.WorkingDirectory)
	require.Equal(testInstance, "project.settings", recorded.Details.EnvironmentVariables["DJANGO_SETTINGS_MODULE"])
	require.NotContains(testInstance, recorded.Details.EnvironmentVariables, "HOME_OVERRIDE")

	require.Len(testInstance, observerLogs.FilterMessage("Loaded migration graph").All(), 1)
}

func TestLoadStateFailures(testInstance *testing.T) {
	commandFailure := execshell.CommandFailedError{
		Command: execshell.ShellCommand{Name: "python"},
		Result:  execshell.ExecutionResult{ExitCode: 1, StandardError: "ImportError"},
	}

	testCases := []struct {
		name            string
		graphCommand    []string
		results         map[string]execshell.ExecutionResult
		failures        map[string]error
		expectedError   error
		expectOperation bool
	}{
		{
			name:          "graph_command_missing",
			expectedError: engine.ErrGraphCommandNotConfigured,
		},
		{
			name:            "graph_command_fails",
			graphCommand:    []string{"python", "manage.py", "migration_graph"},
			failures:        map[string]error{"python manage.py migration_graph": commandFailure},
			expectOperation: true,
		},
		{
			name:            "graph_document_empty",
			graphCommand:    []string{"python", "manage.py", "migration_graph"},
			results:         map[string]execshell.ExecutionResult{"python manage.py migration_graph": {StandardOutput: "  \n"}},
			expectedError:   engine.ErrEmptyGraphDocument,
			expectOperation: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			configuration := newTestConfiguration()
			configuration.GraphCommand = testCase.graphCommand
			executor := &scriptedExecutor{results: testCase.results, failures: testCase.failures}
			commandEngine := newTestEngine(testInstance, configuration, executor, afero.NewMemMapFs(), &bytes.Buffer{}, zap.NewNop())

			_, loadError := commandEngine.LoadState(context.Background())
			require.Error(testInstance, loadError)
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, loadError, testCase.expectedError)
			}
			if testCase.expectOperation {
				var operationError engine.OperationError
				require.ErrorAs(testInstance, loadError, &operationError)
			}
		})
	}
}

func TestMigrateRendersTargets(testInstance *testing.T) {
	testCases := []struct {
		name              string
		target            migration.Target
		expectedArguments []string
	}{
		{
			name:              "named_target",
			target:            migration.Target{AppLabel: "blog", TargetName: "0001_initial"},
			expectedArguments: []string{"manage.py", "migrate", "blog", "0001_initial"},
		},
		{
			name:              "zero_target",
			target:            migration.Target{AppLabel: "shop", TargetName: migration.ZeroTargetName},
			expectedArguments: []string{"manage.py", "migrate", "shop", "zero"},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &scriptedExecutor{results: map[string]execshell.ExecutionResult{}}
			executor.results["python manage.py migrate "+testCase.target.AppLabel+" "+testCase.target.TargetName] = execshell.ExecutionResult{StandardOutput: "Unapplying migrations\n"}
			output := &bytes.Buffer{}
			commandEngine := newTestEngine(testInstance, newTestConfiguration(), executor, afero.NewMemMapFs(), output, zap.NewNop())

			require.NoError(testInstance, commandEngine.Migrate(context.Background(), testCase.target))
			require.Len(testInstance, executor.recordedCommands, 1)
			require.Equal(testInstance, execshell.CommandName("python"), executor.recordedCommands[0].Name)
			require.Equal(testInstance, testCase.expectedArguments, executor.recordedCommands[0].Details.Arguments)
			require.Equal(testInstance, "Unapplying migrations\n", output.String())
		})
	}
}

func TestMigrateFailuresAreOperationErrors(testInstance *testing.T) {
	commandFailure := execshell.CommandFailedError{
		Command: execshell.ShellCommand{Name: "python"},
		Result:  execshell.ExecutionResult{ExitCode: 1},
	}
	executor := &scriptedExecutor{failures: map[string]error{
		"python manage.py migrate blog zero": commandFailure,
		"python manage.py migrate":           commandFailure,
	}}
	commandEngine := newTestEngine(testInstance, newTestConfiguration(), executor, afero.NewMemMapFs(), &bytes.Buffer{}, zap.NewNop())

	migrateError := commandEngine.Migrate(context.Background(), migration.Target{AppLabel: "blog", TargetName: migration.ZeroTargetName})
	var operationError engine.OperationError
	require.ErrorAs(testInstance, migrateError, &operationError)
	require.Equal(testInstance, "migrate blog zero", operationError.Operation)
	var commandFailedError execshell.CommandFailedError
	require.ErrorAs(testInstance, migrateError, &commandFailedError)

	migrateAllError := commandEngine.MigrateAll(context.Background())
	require.ErrorAs(testInstance, migrateAllError, &operationError)
	require.Equal(testInstance, "migrate", operationError.Operation)
}

func TestLoadStateReadsAppliedSetFromDatabase(testInstance *testing.T) {
	databasePath := filepath.Join(testInstance.TempDir(), "schema.db")
	seedDatabase, openError := sql.Open(engine.DriverSQLite, databasePath)
	require.NoError(testInstance, openError)
	_, createError := seedDatabase.Exec("CREATE TABLE django_migrations (id INTEGER PRIMARY KEY, app TEXT, name TEXT)")
	require.NoError(testInstance, createError)
	_, insertError := seedDatabase.Exec("INSERT INTO django_migrations (app, name) VALUES ('blog', '0001_initial'), ('legacy', '0007_removed')")
	require.NoError(testInstance, insertError)
	require.NoError(testInstance, seedDatabase.Close())

	fileSystem := afero.NewMemMapFs()
	require.NoError(testInstance, afero.WriteFile(fileSystem, filepath.Join(testWorkingDirectoryConstant, ".env"), []byte("SCHEMA_DSN="+databasePath+"\n"), 0o644))

	configuration := newTestConfiguration()
	configuration.Applied.Source = engine.AppliedSourceDatabase
	configuration.Applied.Driver = engine.DriverSQLite
	configuration.Applied.DSNEnvironmentVariable = "SCHEMA_DSN"

	executor := &scriptedExecutor{results: map[string]execshell.ExecutionResult{
		"python manage.py migration_graph": {StandardOutput: testGraphDocumentConstant},
	}}
	commandEngine := newTestEngine(testInstance, configuration, executor, fileSystem, &bytes.Buffer{}, zap.NewNop())

	state, loadError := commandEngine.LoadState(context.Background())
	require.NoError(testInstance, loadError)
	require.True(testInstance, state.Applied.Equal(migration.NewKeySet(
		migration.NodeKey{AppLabel: "blog", MigrationName: "0001_initial"},
		migration.NodeKey{AppLabel: "legacy", MigrationName: "0007_removed"},
	)))
}

func TestLoadStateDatabaseSourceRequiresDSN(testInstance *testing.T) {
	configuration := newTestConfiguration()
	configuration.Applied.Source = engine.AppliedSourceDatabase
	executor := &scriptedExecutor{results: map[string]execshell.ExecutionResult{
		"python manage.py migration_graph": {StandardOutput: testGraphDocumentConstant},
	}}
	commandEngine := newTestEngine(testInstance, configuration, executor, afero.NewMemMapFs(), &bytes.Buffer{}, zap.NewNop())

	_, loadError := commandEngine.LoadState(context.Background())
	require.True(testInstance, errors.Is(loadError, engine.ErrDSNNotConfigured))
}
