package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/temirov/schemahop/internal/execshell"
)

const (
	gitCheckoutSubcommandConstant      = "checkout"
	gitPreviousBranchReferenceConstant = "-"
	gitQuietFlagConstant               = "--quiet"
	checkoutPreviousErrorTemplate      = "unable to check out previous branch in %s: %w"
	openRepositoryErrorTemplate        = "unable to open git repository at %s: %w"
	readHeadErrorTemplate              = "unable to read HEAD in %s: %w"
	repositoryPathRequiredMessage      = "repository path must be provided"
)

// ErrGitExecutorNotConfigured indicates that the repository manager lacks a git executor.
var ErrGitExecutorNotConfigured = errors.New("git executor not configured")

// ErrDetachedHead indicates that HEAD does not point at a branch.
var ErrDetachedHead = errors.New("repository HEAD is detached")

// ErrRepositoryPathRequired indicates that an operation was invoked without a repository path.
var ErrRepositoryPathRequired = errors.New(repositoryPathRequiredMessage)

// GitExecutor runs git commands.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// RepositoryManager performs the branch operations required around a checkout.
type RepositoryManager struct {
	executor             GitExecutor
	standardOutputStream io.Writer
	standardErrorStream  io.Writer
}

// NewRepositoryManager constructs a RepositoryManager.
func NewRepositoryManager(executor GitExecutor) (*RepositoryManager, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	return &RepositoryManager{executor: executor}, nil
}

// WithOutputStreams returns a copy of the manager that forwards checkout
// output, including everything printed by the post-checkout hook, to the
// provided writers.
func (manager *RepositoryManager) WithOutputStreams(standardOutput io.Writer, standardError io.Writer) *RepositoryManager {
	streamingManager := *manager
	streamingManager.standardOutputStream = standardOutput
	streamingManager.standardErrorStream = standardError
	return &streamingManager
}

// CheckoutPrevious runs `git checkout - --quiet` in repositoryPath with the
// provided variables added to the child environment. The call blocks until any
// post-checkout hook triggered by the switch has finished.
func (manager *RepositoryManager) CheckoutPrevious(executionContext context.Context, repositoryPath string, environment map[string]string) error {
	trimmedPath := strings.TrimSpace(repositoryPath)
	if len(trimmedPath) == 0 {
		return ErrRepositoryPathRequired
	}

	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            []string{gitCheckoutSubcommandConstant, gitPreviousBranchReferenceConstant, gitQuietFlagConstant},
		WorkingDirectory:     trimmedPath,
		EnvironmentVariables: environment,
		StandardOutputStream: manager.standardOutputStream,
		StandardErrorStream:  manager.standardErrorStream,
	})
	if executionError != nil {
		return fmt.Errorf(checkoutPreviousErrorTemplate, trimmedPath, executionError)
	}
	return nil
}

// CurrentBranch returns the short name of the branch HEAD points at. Unborn
// branches in freshly initialized repositories are reported by name.
func (manager *RepositoryManager) CurrentBranch(repositoryPath string) (string, error) {
	trimmedPath := strings.TrimSpace(repositoryPath)
	if len(trimmedPath) == 0 {
		return "", ErrRepositoryPathRequired
	}

	repository, openError := git.PlainOpenWithOptions(trimmedPath, &git.PlainOpenOptions{DetectDotGit: true})
	if openError != nil {
		return "", fmt.Errorf(openRepositoryErrorTemplate, trimmedPath, openError)
	}

	headReference, headError := repository.Reference(plumbing.HEAD, false)
	if headError != nil {
		return "", fmt.Errorf(readHeadErrorTemplate, trimmedPath, headError)
	}

	if headReference.Type() != plumbing.SymbolicReference || !headReference.Target().IsBranch() {
		return "", ErrDetachedHead
	}
	return headReference.Target().Short(), nil
}
