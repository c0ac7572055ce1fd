package hooks_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/temirov/schemahop/internal/hooks"
	pathutils "github.com/temirov/schemahop/internal/utils/path"
)

const (
	testRepositoryPathConstant = "/home/developer/project"
	testHooksDirectoryConstant = testRepositoryPathConstant + "/.git/hooks"
	testHookPathConstant       = testHooksDirectoryConstant + "/post-checkout"
	testExecutableConstant     = "/usr/local/bin/schemahop"
	existingHookConstant       = "#!/bin/sh\necho existing\n"
)

func newTestInstaller(testInstance *testing.T, fileSystem afero.Fs) *hooks.Installer {
	testInstance.Helper()
	expander := pathutils.NewHomeExpanderWithProvider(func() (string, error) { return "/home/developer", nil })
	installer, installerError := hooks.NewInstaller(fileSystem, expander)
	require.NoError(testInstance, installerError)
	return installer
}

func TestInstallWritesNewHook(testInstance *testing.T) {
	fileSystem := afero.NewMemMapFs()
	require.NoError(testInstance, fileSystem.MkdirAll(testHooksDirectoryConstant, 0o755))

	result, installError := newTestInstaller(testInstance, fileSystem).Install(hooks.InstallOptions{
		Destination: "~/project",
		Executable:  testExecutableConstant,
	})
	require.NoError(testInstance, installError)
	require.Equal(testInstance, hooks.InstallResult{HookPath: testHookPathConstant}, result)

	contents, readError := afero.ReadFile(fileSystem, testHookPathConstant)
	require.NoError(testInstance, readError)
	hookScript := string(contents)
	require.True(testInstance, strings.HasPrefix(hookScript, "#!/bin/sh\n"))
	require.Contains(testInstance, hookScript, "# "+testHookPathConstant+"\n")
	require.Contains(testInstance, hookScript, `if [ "$3" = "1" ]; then`)
	require.Contains(testInstance, hookScript, "'"+testExecutableConstant+"' migrate")

	fileInfo, statError := fileSystem.Stat(testHookPathConstant)
	require.NoError(testInstance, statError)
	require.Equal(testInstance, "-rwxr-xr-x", fileInfo.Mode().Perm().String())
}

func TestInstallAppendsWithoutHeader(testInstance *testing.T) {
	fileSystem := afero.NewMemMapFs()
	require.NoError(testInstance, fileSystem.MkdirAll(testHooksDirectoryConstant, 0o755))
	require.NoError(testInstance, afero.WriteFile(fileSystem, testHookPathConstant, []byte(existingHookConstant), 0o644))

	result, installError := newTestInstaller(testInstance, fileSystem).Install(hooks.InstallOptions{
		Destination: testRepositoryPathConstant,
		Executable:  testExecutableConstant,
		Append:      true,
	})
	require.NoError(testInstance, installError)
	require.True(testInstance, result.Appended)

	contents, readError := afero.ReadFile(fileSystem, testHookPathConstant)
	require.NoError(testInstance, readError)
	require.True(testInstance, strings.HasPrefix(string(contents), existingHookConstant))
	require.Equal(testInstance, 1, strings.Count(string(contents), "#!/bin/sh"))
	require.Contains(testInstance, string(contents), "'"+testExecutableConstant+"' migrate")
}

func TestInstallQuotesExecutableForShell(testInstance *testing.T) {
	testCases := []struct {
		name            string
		executable      string
		expectedCommand string
	}{
		{
			name:            "spaces",
			executable:      "/opt/My Tools/schemahop",
			expectedCommand: `'/opt/My Tools/schemahop' migrate`,
		},
		{
			name:            "single_quote",
			executable:      "/home/o'brien/bin/schemahop",
			expectedCommand: `'/home/o'\''brien/bin/schemahop' migrate`,
		},
		{
			name:            "shell_metacharacters",
			executable:      "/tmp/$HOME/\"`id`\"/schemahop",
			expectedCommand: "'/tmp/$HOME/\"`id`\"/schemahop' migrate",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fileSystem := afero.NewMemMapFs()
			require.NoError(testInstance, fileSystem.MkdirAll(testHooksDirectoryConstant, 0o755))

			_, installError := newTestInstaller(testInstance, fileSystem).Install(hooks.InstallOptions{
				Destination: testRepositoryPathConstant,
				Executable:  testCase.executable,
			})
			require.NoError(testInstance, installError)

			contents, readError := afero.ReadFile(fileSystem, testHookPathConstant)
			require.NoError(testInstance, readError)
			require.Contains(testInstance, string(contents), "    "+testCase.expectedCommand+" || exit $?\n")
		})
	}
}

func TestInstallRejectsUnusableDestinations(testInstance *testing.T) {
	testCases := []struct {
		name            string
		prepare         func(fileSystem afero.Fs)
		options         hooks.InstallOptions
		expectedMessage string
	}{
		{
			name:            "not_a_repository",
			prepare:         func(fileSystem afero.Fs) { _ = fileSystem.MkdirAll(testRepositoryPathConstant, 0o755) },
			options:         hooks.InstallOptions{Destination: testRepositoryPathConstant, Executable: testExecutableConstant},
			expectedMessage: "does not appear to contain a git repo",
		},
		{
			name: "git_file_instead_of_directory",
			prepare: func(fileSystem afero.Fs) {
				_ = afero.WriteFile(fileSystem, testRepositoryPathConstant+"/.git", []byte("gitdir: ../worktree"), 0o644)
			},
			options:         hooks.InstallOptions{Destination: testRepositoryPathConstant, Executable: testExecutableConstant},
			expectedMessage: "does not appear to contain a git repo",
		},
		{
			name:            "missing_hooks_directory",
			prepare:         func(fileSystem afero.Fs) { _ = fileSystem.MkdirAll(testRepositoryPathConstant+"/.git", 0o755) },
			options:         hooks.InstallOptions{Destination: testRepositoryPathConstant, Executable: testExecutableConstant},
			expectedMessage: "does not contain a 'hooks' directory",
		},
		{
			name: "existing_hook_without_append",
			prepare: func(fileSystem afero.Fs) {
				_ = fileSystem.MkdirAll(testHooksDirectoryConstant, 0o755)
				_ = afero.WriteFile(fileSystem, testHookPathConstant, []byte(existingHookConstant), 0o755)
			},
			options:         hooks.InstallOptions{Destination: testRepositoryPathConstant, Executable: testExecutableConstant},
			expectedMessage: "already contains a post-checkout hook",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fileSystem := afero.NewMemMapFs()
			testCase.prepare(fileSystem)

			_, installError := newTestInstaller(testInstance, fileSystem).Install(testCase.options)
			var destinationError hooks.DestinationError
			require.ErrorAs(testInstance, installError, &destinationError)
			require.Equal(testInstance, testRepositoryPathConstant, destinationError.Path)
			require.Contains(testInstance, installError.Error(), testCase.expectedMessage)
		})
	}
}

func TestInstallValidatesOptions(testInstance *testing.T) {
	installer := newTestInstaller(testInstance, afero.NewMemMapFs())

	_, destinationError := installer.Install(hooks.InstallOptions{Executable: testExecutableConstant})
	require.ErrorIs(testInstance, destinationError, hooks.ErrDestinationRequired)

	_, executableError := installer.Install(hooks.InstallOptions{Destination: testRepositoryPathConstant})
	require.ErrorIs(testInstance, executableError, hooks.ErrExecutableRequired)

	_, creationError := hooks.NewInstaller(nil, nil)
	require.ErrorIs(testInstance, creationError, hooks.ErrFilesystemNotConfigured)
}

func TestInstallCommand(testInstance *testing.T) {
	fileSystem := afero.NewMemMapFs()
	require.NoError(testInstance, fileSystem.MkdirAll(testHooksDirectoryConstant, 0o755))

	builder := hooks.CommandBuilder{
		FileSystem:         fileSystem,
		ExecutableProvider: func() (string, error) { return testExecutableConstant, nil },
	}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	output := &bytes.Buffer{}
	command.SetOut(output)
	command.SetErr(&bytes.Buffer{})
	command.SetArgs([]string{testRepositoryPathConstant})
	require.NoError(testInstance, command.Execute())
	require.Equal(testInstance, "git hook created: "+testHookPathConstant+"\n", output.String())

	contents, readError := afero.ReadFile(fileSystem, testHookPathConstant)
	require.NoError(testInstance, readError)
	require.Contains(testInstance, string(contents), "'"+testExecutableConstant+"' migrate")

	appendCommand, appendBuildError := builder.Build()
	require.NoError(testInstance, appendBuildError)
	appendOutput := &bytes.Buffer{}
	appendCommand.SetOut(appendOutput)
	appendCommand.SetErr(&bytes.Buffer{})
	appendCommand.SetArgs([]string{testRepositoryPathConstant, "--append", "--executable", "/opt/schemahop"})
	require.NoError(testInstance, appendCommand.Execute())
	require.Equal(testInstance, "git hook extended: "+testHookPathConstant+"\n", appendOutput.String())

	extended, extendedReadError := afero.ReadFile(fileSystem, testHookPathConstant)
	require.NoError(testInstance, extendedReadError)
	require.Contains(testInstance, string(extended), "'/opt/schemahop' migrate")
}
