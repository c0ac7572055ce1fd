package branchsnapshot

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/schemahop/internal/branchmigrate"
	"github.com/temirov/schemahop/internal/engine"
	"github.com/temirov/schemahop/internal/execshell"
	"github.com/temirov/schemahop/internal/gitrepo"
	"github.com/temirov/schemahop/internal/migration"
	"github.com/temirov/schemahop/internal/snapshot"
)

const (
	dumpCommandUseConstant                 = "dump"
	dumpCommandShortDescriptionConstant    = "Record the migrations defined on the current branch"
	dumpCommandLongDescriptionConstant     = "dump writes every migration defined on the checked out branch to a snapshot keyed by the branch name, so that targets can later compare two branches."
	targetsCommandUseConstant              = "targets"
	targetsCommandShortDescriptionConstant = "List rollback targets between two recorded branches"
	targetsCommandLongDescriptionConstant  = "targets compares the snapshots recorded by dump for two branches and prints the migration each application must be moved to before leaving the source branch for the destination branch."
	targetsCommandExampleConstant          = "schemahop targets --src feature/login --dest master"
	sourceFlagNameConstant                 = "src"
	sourceFlagUsageConstant                = "Branch being left"
	destinationFlagNameConstant            = "dest"
	destinationFlagUsageConstant           = "Branch being entered"
	dumpSuccessMessageTemplateConstant     = "Recorded %d migrations of %s in %s\n"
	targetLineTemplateConstant             = "%s %s"
	workingDirectoryErrorTemplate          = "unable to determine working directory: %w"
	engineCreationErrorTemplate            = "unable to construct migration engine: %w"
	snapshotStoreCreationErrorTemplate     = "unable to construct snapshot store: %w"
	repositoryManagerCreationErrorTemplate = "unable to construct repository manager: %w"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// CommandBuilder assembles the dump and targets commands.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	Executor                     branchmigrate.CommandExecutor
	FileSystem                   afero.Fs
	WorkingDirectory             string
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() branchmigrate.CommandConfiguration
	DisableColor                 bool
}

// BuildDump constructs the dump command.
func (builder *CommandBuilder) BuildDump() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           dumpCommandUseConstant,
		Short:         dumpCommandShortDescriptionConstant,
		Long:          dumpCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          builder.runDump,
	}
	return command, nil
}

// BuildTargets constructs the targets command.
func (builder *CommandBuilder) BuildTargets() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           targetsCommandUseConstant,
		Short:         targetsCommandShortDescriptionConstant,
		Long:          targetsCommandLongDescriptionConstant,
		Example:       targetsCommandExampleConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          builder.runTargets,
	}
	command.Flags().String(sourceFlagNameConstant, "", sourceFlagUsageConstant)
	command.Flags().String(destinationFlagNameConstant, "", destinationFlagUsageConstant)
	if markError := command.MarkFlagRequired(sourceFlagNameConstant); markError != nil {
		return nil, markError
	}
	if markError := command.MarkFlagRequired(destinationFlagNameConstant); markError != nil {
		return nil, markError
	}
	return command, nil
}

func (builder *CommandBuilder) runDump(command *cobra.Command, arguments []string) error {
	service, repositoryPath, serviceError := builder.buildService(command)
	if serviceError != nil {
		return serviceError
	}

	result, dumpError := service.Dump(commandContext(command), DumpOptions{RepositoryPath: repositoryPath})
	if dumpError != nil {
		return dumpError
	}

	fmt.Fprintf(command.OutOrStdout(), dumpSuccessMessageTemplateConstant, result.NodeCount, result.BranchName, result.SnapshotPath)
	return nil
}

func (builder *CommandBuilder) runTargets(command *cobra.Command, arguments []string) error {
	sourceBranch, sourceError := command.Flags().GetString(sourceFlagNameConstant)
	if sourceError != nil {
		return sourceError
	}
	destinationBranch, destinationError := command.Flags().GetString(destinationFlagNameConstant)
	if destinationError != nil {
		return destinationError
	}

	service, _, serviceError := builder.buildService(command)
	if serviceError != nil {
		return serviceError
	}

	targets, targetsError := service.FindTargets(commandContext(command), TargetsOptions{
		SourceBranch:      sourceBranch,
		DestinationBranch: destinationBranch,
	})
	if targetsError != nil {
		return targetsError
	}

	zeroHighlight := color.New(color.FgYellow, color.Bold)
	if builder.DisableColor {
		zeroHighlight.DisableColor()
	}
	for _, target := range targets {
		fmt.Fprintln(command.OutOrStdout(), renderTarget(target, zeroHighlight))
	}
	return nil
}

func renderTarget(target migration.Target, zeroHighlight *color.Color) string {
	targetName := target.TargetName
	if target.IsZero() {
		targetName = zeroHighlight.Sprint(targetName)
	}
	return fmt.Sprintf(targetLineTemplateConstant, target.AppLabel, targetName)
}

func (builder *CommandBuilder) buildService(command *cobra.Command) (*Service, string, error) {
	logger := builder.resolveLogger()

	repositoryPath, workingDirectoryError := builder.resolveWorkingDirectory()
	if workingDirectoryError != nil {
		return nil, "", workingDirectoryError
	}

	configuration := builder.resolveConfiguration().Sanitize(repositoryPath)
	fileSystem := builder.resolveFileSystem()

	executor, executorError := builder.resolveExecutor(logger)
	if executorError != nil {
		return nil, "", executorError
	}

	migrationEngine, engineError := engine.NewCommandEngine(configuration.Engine, engine.Dependencies{
		Executor:   executor,
		FileSystem: fileSystem,
		Logger:     logger,
		Output:     command.ErrOrStderr(),
	})
	if engineError != nil {
		return nil, "", fmt.Errorf(engineCreationErrorTemplate, engineError)
	}

	snapshotStore, storeError := snapshot.NewStore(fileSystem, configuration.SnapshotDirectory)
	if storeError != nil {
		return nil, "", fmt.Errorf(snapshotStoreCreationErrorTemplate, storeError)
	}

	repositoryManager, managerError := gitrepo.NewRepositoryManager(executor)
	if managerError != nil {
		return nil, "", fmt.Errorf(repositoryManagerCreationErrorTemplate, managerError)
	}

	service, serviceError := NewService(ServiceDependencies{
		Logger:    logger,
		Engine:    migrationEngine,
		Snapshots: snapshotStore,
		Branches:  repositoryManager,
	})
	if serviceError != nil {
		return nil, "", serviceError
	}
	return service, repositoryPath, nil
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

func (builder *CommandBuilder) resolveExecutor(logger *zap.Logger) (branchmigrate.CommandExecutor, error) {
	if builder.Executor != nil {
		return builder.Executor, nil
	}
	humanReadableLogging := false
	if builder.HumanReadableLoggingProvider != nil {
		humanReadableLogging = builder.HumanReadableLoggingProvider()
	}
	return execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner(), humanReadableLogging)
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

func (builder *CommandBuilder) resolveConfiguration() branchmigrate.CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return branchmigrate.DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider()
}

func commandContext(command *cobra.Command) context.Context {
	if command != nil && command.Context() != nil {
		return command.Context()
	}
	return context.Background()
}
