package hooks

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	pathutils "github.com/temirov/schemahop/internal/utils/path"
)

const (
	commandUseConstant              = "install <dest>"
	commandShortDescriptionConstant = "Install the post-checkout git hook"
	commandLongDescriptionConstant  = "install writes a post-checkout hook into <dest>/.git/hooks that runs the migrate command after every branch checkout. An existing hook is only extended when --append is given."
	commandExampleConstant          = "schemahop install ~/Development/shop --append"
	executableFlagNameConstant      = "executable"
	executableFlagUsageConstant     = "Path of the schemahop executable invoked by the hook (defaults to the running executable)"
	appendFlagNameConstant          = "append"
	appendFlagUsageConstant         = "Append to an existing post-checkout hook"
	hookCreatedMessageTemplate      = "git hook created: %s\n"
	hookAppendedMessageTemplate     = "git hook extended: %s\n"
	executableLookupErrorTemplate   = "unable to determine executable path: %w"
	logMessageHookInstalledConstant = "Installed post-checkout hook"
	logFieldHookPathConstant        = "hook_path"
	logFieldAppendedConstant        = "appended"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ExecutableProvider resolves the path of the running executable.
type ExecutableProvider func() (string, error)

// CommandBuilder assembles the install command.
type CommandBuilder struct {
	LoggerProvider     LoggerProvider
	FileSystem         afero.Fs
	HomeExpander       *pathutils.HomeExpander
	ExecutableProvider ExecutableProvider
}

// Build constructs the install command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           commandUseConstant,
		Short:         commandShortDescriptionConstant,
		Long:          commandLongDescriptionConstant,
		Example:       commandExampleConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ExactArgs(1),
		RunE:          builder.runInstall,
	}
	command.Flags().String(executableFlagNameConstant, "", executableFlagUsageConstant)
	command.Flags().Bool(appendFlagNameConstant, false, appendFlagUsageConstant)
	return command, nil
}

func (builder *CommandBuilder) runInstall(command *cobra.Command, arguments []string) error {
	executable, executableFlagError := command.Flags().GetString(executableFlagNameConstant)
	if executableFlagError != nil {
		return executableFlagError
	}
	appendToExisting, appendFlagError := command.Flags().GetBool(appendFlagNameConstant)
	if appendFlagError != nil {
		return appendFlagError
	}

	if len(executable) == 0 {
		resolvedExecutable, executableError := builder.resolveExecutableProvider()()
		if executableError != nil {
			return fmt.Errorf(executableLookupErrorTemplate, executableError)
		}
		executable = resolvedExecutable
	}

	installer, installerError := NewInstaller(builder.resolveFileSystem(), builder.resolveHomeExpander())
	if installerError != nil {
		return installerError
	}

	result, installError := installer.Install(InstallOptions{
		Destination: arguments[0],
		Executable:  executable,
		Append:      appendToExisting,
	})
	if installError != nil {
		return installError
	}

	builder.resolveLogger().Debug(
		logMessageHookInstalledConstant,
		zap.String(logFieldHookPathConstant, result.HookPath),
		zap.Bool(logFieldAppendedConstant, result.Appended),
	)

	messageTemplate := hookCreatedMessageTemplate
	if result.Appended {
		messageTemplate = hookAppendedMessageTemplate
	}
	fmt.Fprintf(command.OutOrStdout(), messageTemplate, result.HookPath)
	return nil
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

func (builder *CommandBuilder) resolveFileSystem() afero.Fs {
	if builder.FileSystem != nil {
		return builder.FileSystem
	}
	return afero.NewOsFs()
}

func (builder *CommandBuilder) resolveHomeExpander() *pathutils.HomeExpander {
	if builder.HomeExpander != nil {
		return builder.HomeExpander
	}
	return pathutils.NewHomeExpander()
}

func (builder *CommandBuilder) resolveExecutableProvider() ExecutableProvider {
	if builder.ExecutableProvider != nil {
		return builder.ExecutableProvider
	}
	return os.Executable
}
