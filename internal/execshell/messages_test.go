package execshell

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildStartedMessageForPreviousBranchCheckout(t *testing.T) {
	formatter := CommandMessageFormatter{}
	command := ShellCommand{
		Name: CommandGit,
		Details: CommandDetails{
			Arguments:        []string{"checkout", "-", "--quiet"},
			WorkingDirectory: "/workspace/project",
		},
	}

	message := formatter.BuildStartedMessage(command)

	require.Equal(t, "Switching /workspace/project to the previous branch", message)
}

func TestBuildMessagesForNamedBranchCheckout(t *testing.T) {
	formatter := CommandMessageFormatter{}
	command := ShellCommand{
		Name:    CommandGit,
		Details: CommandDetails{Arguments: []string{"checkout", "--quiet", "feature/login"}},
	}

	require.Equal(t, "current directory now on feature/login", formatter.BuildSuccessMessage(command, ExecutionResult{}))
	require.Equal(t, "Failed to switch current directory to feature/login (exit code 1: hook exited with 2)", formatter.BuildFailureMessage(command, ExecutionResult{ExitCode: 1, StandardError: "hook exited with 2\n"}))
}

func TestBuildStartedMessageForOtherGitSubcommandIsGeneric(t *testing.T) {
	formatter := CommandMessageFormatter{}
	command := ShellCommand{
		Name:    CommandGit,
		Details: CommandDetails{Arguments: []string{"rev-parse", "--abbrev-ref", "HEAD"}},
	}

	require.Equal(t, "Running git rev-parse --abbrev-ref HEAD", formatter.BuildStartedMessage(command))
}

func TestBuildFailureMessageForEngineCommandIncludesStandardError(t *testing.T) {
	formatter := CommandMessageFormatter{}
	command := ShellCommand{
		Name: CommandName("python"),
		Details: CommandDetails{
			Arguments:        []string{"manage.py", "migrate", "blog", "zero"},
			WorkingDirectory: "/workspace/project",
		},
	}

	failureMessage := formatter.BuildFailureMessage(command, ExecutionResult{ExitCode: 2, StandardError: "No such app\n"})
	executionFailureMessage := formatter.BuildExecutionFailureMessage(command, errors.New("executable not found"))

	require.Equal(t, "python manage.py migrate blog zero (in /workspace/project) failed with exit code 2: No such app", failureMessage)
	require.Equal(t, "python manage.py migrate blog zero (in /workspace/project) failed: executable not found", executionFailureMessage)
}
