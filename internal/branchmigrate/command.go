package branchmigrate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/schemahop/internal/engine"
	"github.com/temirov/schemahop/internal/execshell"
	"github.com/temirov/schemahop/internal/gitrepo"
	"github.com/temirov/schemahop/internal/snapshot"
	"github.com/temirov/schemahop/internal/utils"
)

const (
	commandUseConstant                     = "migrate"
	commandShortDescriptionConstant        = "Reconcile the schema after a branch checkout"
	commandLongDescriptionConstant         = "migrate runs from the post-checkout hook. It rolls back migrations that only exist on the branch being left and applies the migrations of the branch being entered. The stage is read from the SCHEMAHOP_STAGE environment variable."
	workingDirectoryErrorTemplate          = "unable to determine working directory: %w"
	stageResolutionErrorTemplate           = "unable to determine migration stage: %w"
	engineCreationErrorTemplate            = "unable to construct migration engine: %w"
	snapshotStoreCreationErrorTemplate     = "unable to construct snapshot store: %w"
	repositoryManagerCreationErrorTemplate = "unable to construct repository manager: %w"
	logMessageStageFailedConstant          = "Branch migration stage failed"
	logFieldRepositoryPathConstant         = "repository"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// EnvironmentProvider supplies the process environment as a map.
type EnvironmentProvider func() map[string]string

// CommandExecutor runs engine and git commands.
type CommandExecutor interface {
	Execute(executionContext context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error)
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// CommandBuilder assembles the migrate Cobra command.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	Executor                     CommandExecutor
	FileSystem                   afero.Fs
	WorkingDirectory             string
	EnvironmentProvider          EnvironmentProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() CommandConfiguration
}

// Build constructs the migrate command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           commandUseConstant,
		Short:         commandShortDescriptionConstant,
		Long:          commandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          builder.runMigrate,
	}
	return command, nil
}

func (builder *CommandBuilder) runMigrate(command *cobra.Command, arguments []string) error {
	logger := builder.resolveLogger()

	repositoryPath, workingDirectoryError := builder.resolveWorkingDirectory()
	if workingDirectoryError != nil {
		return workingDirectoryError
	}

	stage, stageError := ParseStageEnvironment(builder.resolveEnvironment())
	if stageError != nil {
		return fmt.Errorf(stageResolutionErrorTemplate, stageError)
	}

	configuration := builder.resolveConfiguration().Sanitize(repositoryPath)
	fileSystem := builder.resolveFileSystem()

	executor, executorError := builder.resolveExecutor(logger)
	if executorError != nil {
		return executorError
	}

	migrationEngine, engineError := engine.NewCommandEngine(configuration.Engine, engine.Dependencies{
		Executor:   executor,
		FileSystem: fileSystem,
		Logger:     logger,
		Output:     command.OutOrStdout(),
	})
	if engineError != nil {
		return fmt.Errorf(engineCreationErrorTemplate, engineError)
	}

	snapshotStore, storeError := snapshot.NewStore(fileSystem, configuration.SnapshotDirectory)
	if storeError != nil {
		return fmt.Errorf(snapshotStoreCreationErrorTemplate, storeError)
	}

	repositoryManager, managerError := gitrepo.NewRepositoryManager(executor)
	if managerError != nil {
		return fmt.Errorf(repositoryManagerCreationErrorTemplate, managerError)
	}

	service, serviceError := NewService(ServiceDependencies{
		Logger:         logger,
		Engine:         migrationEngine,
		Snapshots:      snapshotStore,
		VersionControl: repositoryManager.WithOutputStreams(command.OutOrStdout(), command.ErrOrStderr()),
	})
	if serviceError != nil {
		return serviceError
	}

	executionContext := commandContext(command)
	_, runError := service.Run(executionContext, stage, Options{
		RepositoryPath:      repositoryPath,
		ConfigurationSource: utils.ConfigurationSource(executionContext),
	})
	if runError != nil {
		logger.Error(
			logMessageStageFailedConstant,
			zap.Stringer(logFieldStageConstant, stage),
			zap.String(logFieldRepositoryPathConstant, repositoryPath),
			zap.Error(runError),
		)
		return runError
	}
	return nil
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	var logger *zap.Logger
	if builder.LoggerProvider != nil {
		logger = builder.LoggerProvider()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveExecutor(logger *zap.Logger) (CommandExecutor, error) {
	if builder.Executor != nil {
		return builder.Executor, nil
	}

	humanReadableLogging := false
	if builder.HumanReadableLoggingProvider != nil {
		humanReadableLogging = builder.HumanReadableLoggingProvider()
	}
	shellExecutor, creationError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner(), humanReadableLogging)
	if creationError != nil {
		return nil, creationError
	}
	return shellExecutor, nil
}

func (builder *CommandBuilder) resolveFileSystem() afero.Fs {
	if builder.FileSystem != nil {
		return builder.FileSystem
	}
	return afero.NewOsFs()
}

func (builder *CommandBuilder) resolveWorkingDirectory() (string, error) {
	trimmed := strings.TrimSpace(builder.WorkingDirectory)
	if len(trimmed) > 0 {
		return trimmed, nil
	}
	workingDirectory, workingDirectoryError := os.Getwd()
	if workingDirectoryError != nil {
		return "", fmt.Errorf(workingDirectoryErrorTemplate, workingDirectoryError)
	}
	return workingDirectory, nil
}

func (builder *CommandBuilder) resolveEnvironment() map[string]string {
	if builder.EnvironmentProvider != nil {
		return builder.EnvironmentProvider()
	}
	return EnvironmentMap(os.Environ())
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider()
}

func commandContext(command *cobra.Command) context.Context {
	if command != nil && command.Context() != nil {
		return command.Context()
	}
	return context.Background()
}

// IsUsageError reports whether the failure means a stage ran out of order.
func IsUsageError(failure error) bool {
	var notFoundError snapshot.NotFoundError
	var unknownStageError UnknownStageError
	return errors.As(failure, &notFoundError) || errors.As(failure, &unknownStageError)
}
