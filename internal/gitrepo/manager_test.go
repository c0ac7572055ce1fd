package gitrepo_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"github.com/temirov/schemahop/internal/execshell"
	"github.com/temirov/schemahop/internal/gitrepo"
)

const (
	testRepositoryPathConstant = "/workspace/project"
	testStageVariableConstant  = "SCHEMAHOP_STAGE"
	testStageValueConstant     = "TWO"
)

type recordingGitExecutor struct {
	recordedDetails []execshell.CommandDetails
	executionError  error
}

func (executor *recordingGitExecutor) ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.recordedDetails = append(executor.recordedDetails, details)
	return execshell.ExecutionResult{}, executor.executionError
}

func TestNewRepositoryManagerRequiresExecutor(testInstance *testing.T) {
	_, creationError := gitrepo.NewRepositoryManager(nil)
	require.ErrorIs(testInstance, creationError, gitrepo.ErrGitExecutorNotConfigured)
}

func TestCheckoutPrevious(testInstance *testing.T) {
	testCases := []struct {
		name           string
		repositoryPath string
		executorError  error
		expectError    bool
		expectCommand  bool
	}{
		{
			name:           "passes_stage_environment",
			repositoryPath: testRepositoryPathConstant,
			expectCommand:  true,
		},
		{
			name:           "propagates_git_failure",
			repositoryPath: testRepositoryPathConstant,
			executorError:  execshell.CommandFailedError{Command: execshell.ShellCommand{Name: execshell.CommandGit}, Result: execshell.ExecutionResult{ExitCode: 1}},
			expectError:    true,
			expectCommand:  true,
		},
		{
			name:           "requires_repository_path",
			repositoryPath: " ",
			expectError:    true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &recordingGitExecutor{executionError: testCase.executorError}
			manager, creationError := gitrepo.NewRepositoryManager(executor)
			require.NoError(testInstance, creationError)

			checkoutError := manager.CheckoutPrevious(context.Background(), testCase.repositoryPath, map[string]string{testStageVariableConstant: testStageValueConstant})
			if testCase.expectError {
				require.Error(testInstance, checkoutError)
			} else {
				require.NoError(testInstance, checkoutError)
			}

			if !testCase.expectCommand {
				require.Empty(testInstance, executor.recordedDetails)
				return
			}
			require.Len(testInstance, executor.recordedDetails, 1)
			recorded := executor.recordedDetails[0]
			require.Equal(testInstance, []string{"checkout", "-", "--quiet"}, recorded.Arguments)
			require.Equal(testInstance, testRepositoryPathConstant, recorded.WorkingDirectory)
			require.Equal(testInstance, testStageValueConstant, recorded.EnvironmentVariables[testStageVariableConstant])
			if testCase.executorError != nil {
				var commandFailedError execshell.CommandFailedError
				require.ErrorAs(testInstance, checkoutError, &commandFailedError)
			}
		})
	}
}

func TestCheckoutPreviousForwardsOutputStreams(testInstance *testing.T) {
	executor := &recordingGitExecutor{}
	manager, creationError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, creationError)

	var standardOutput bytes.Buffer
	var standardError bytes.Buffer
	streamingManager := manager.WithOutputStreams(&standardOutput, &standardError)

	require.NoError(testInstance, streamingManager.CheckoutPrevious(context.Background(), testRepositoryPathConstant, nil))
	require.NoError(testInstance, manager.CheckoutPrevious(context.Background(), testRepositoryPathConstant, nil))

	require.Len(testInstance, executor.recordedDetails, 2)
	require.Same(testInstance, &standardOutput, executor.recordedDetails[0].StandardOutputStream)
	require.Same(testInstance, &standardError, executor.recordedDetails[0].StandardErrorStream)
	require.Nil(testInstance, executor.recordedDetails[1].StandardOutputStream)
	require.Nil(testInstance, executor.recordedDetails[1].StandardErrorStream)
}

func TestCurrentBranchUnbornRepository(testInstance *testing.T) {
	repositoryPath := testInstance.TempDir()
	_, initError := git.PlainInit(repositoryPath, false)
	require.NoError(testInstance, initError)

	manager, creationError := gitrepo.NewRepositoryManager(&recordingGitExecutor{})
	require.NoError(testInstance, creationError)

	branchName, branchError := manager.CurrentBranch(repositoryPath)
	require.NoError(testInstance, branchError)
	require.Equal(testInstance, "master", branchName)
}

func TestCurrentBranchAfterCommitAndDetach(testInstance *testing.T) {
	repositoryPath := testInstance.TempDir()
	repository, initError := git.PlainInit(repositoryPath, false)
	require.NoError(testInstance, initError)

	worktree, worktreeError := repository.Worktree()
	require.NoError(testInstance, worktreeError)
	require.NoError(testInstance, os.WriteFile(filepath.Join(repositoryPath, "README.md"), []byte("schemahop\n"), 0o644))
	_, addError := worktree.Add("README.md")
	require.NoError(testInstance, addError)
	commitHash, commitError := worktree.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Schemahop Tests", Email: "tests@example.com", When: time.Now()},
	})
	require.NoError(testInstance, commitError)

	require.NoError(testInstance, worktree.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName("feature/login"),
		Create: true,
	}))

	manager, creationError := gitrepo.NewRepositoryManager(&recordingGitExecutor{})
	require.NoError(testInstance, creationError)

	nestedDirectory := filepath.Join(repositoryPath, "apps")
	require.NoError(testInstance, os.MkdirAll(nestedDirectory, 0o755))

	branchName, branchError := manager.CurrentBranch(nestedDirectory)
	require.NoError(testInstance, branchError)
	require.Equal(testInstance, "feature/login", branchName)

	require.NoError(testInstance, worktree.Checkout(&git.CheckoutOptions{Hash: commitHash}))
	_, detachedError := manager.CurrentBranch(repositoryPath)
	require.ErrorIs(testInstance, detachedError, gitrepo.ErrDetachedHead)
}
