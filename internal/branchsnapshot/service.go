package branchsnapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/schemahop/internal/engine"
	"github.com/temirov/schemahop/internal/migration"
	"github.com/temirov/schemahop/internal/snapshot"
)

const (
	graphLoaderMissingMessageConstant    = "migration engine not configured"
	snapshotStoreMissingMessageConstant  = "snapshot store not configured"
	branchReaderMissingMessageConstant   = "branch reader not configured"
	repositoryPathMissingMessageConstant = "repository path must be provided"
	branchNamesMissingMessageConstant    = "source and destination branches must be provided"
	currentBranchErrorTemplateConstant   = "unable to determine current branch: %w"
	loadStateErrorTemplateConstant       = "unable to load migration state: %w"
	writeSnapshotErrorTemplateConstant   = "unable to record migrations of branch %s: %w"
	readSnapshotErrorTemplateConstant    = "unable to read migrations of branch %s: %w"
	resolveTargetsErrorTemplateConstant  = "unable to resolve targets from %s to %s: %w"
	logMessageBranchDumpedConstant       = "Recorded branch migrations"
	logMessageTargetsResolvedConstant    = "Resolved targets between branches"
	logFieldBranchConstant               = "branch"
	logFieldSnapshotPathConstant         = "snapshot_path"
	logFieldNodeCountConstant            = "node_count"
	logFieldSourceBranchConstant         = "src"
	logFieldDestinationBranchConstant    = "dest"
	logFieldTargetCountConstant          = "target_count"
)

var (
	errGraphLoaderMissing    = errors.New(graphLoaderMissingMessageConstant)
	errSnapshotStoreMissing  = errors.New(snapshotStoreMissingMessageConstant)
	errBranchReaderMissing   = errors.New(branchReaderMissingMessageConstant)
	errRepositoryPathMissing = errors.New(repositoryPathMissingMessageConstant)
	errBranchNamesMissing    = errors.New(branchNamesMissingMessageConstant)
)

// GraphLoader queries the migration engine for the current branch state.
type GraphLoader interface {
	LoadState(executionContext context.Context) (engine.State, error)
}

// BranchReader reports the branch checked out in a repository.
type BranchReader interface {
	CurrentBranch(repositoryPath string) (string, error)
}

// SnapshotStore persists branch-keyed migration sets.
type SnapshotStore interface {
	Write(key snapshot.Key, keySet migration.KeySet) error
	Read(key snapshot.Key) (migration.KeySet, error)
	Path(key snapshot.Key) string
}

// ServiceDependencies describes the collaborators for branch snapshots.
type ServiceDependencies struct {
	Logger    *zap.Logger
	Engine    GraphLoader
	Snapshots SnapshotStore
	Branches  BranchReader
}

// DumpOptions configures a dump of the current branch.
type DumpOptions struct {
	RepositoryPath string
}

// DumpResult describes a recorded branch snapshot.
type DumpResult struct {
	BranchName   string
	SnapshotPath string
	NodeCount    int
}

// TargetsOptions names the branches being compared.
type TargetsOptions struct {
	SourceBranch      string
	DestinationBranch string
}

// Service dumps branch snapshots and resolves targets between them.
type Service struct {
	logger    *zap.Logger
	engine    GraphLoader
	snapshots SnapshotStore
	branches  BranchReader
}

// NewService validates dependencies and constructs a Service.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Engine == nil {
		return nil, errGraphLoaderMissing
	}
	if dependencies.Snapshots == nil {
		return nil, errSnapshotStoreMissing
	}
	if dependencies.Branches == nil {
		return nil, errBranchReaderMissing
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		logger:    logger,
		engine:    dependencies.Engine,
		snapshots: dependencies.Snapshots,
		branches:  dependencies.Branches,
	}, nil
}

// Dump writes every migration defined on the current branch to the snapshot
// keyed by the branch name.
func (service *Service) Dump(executionContext context.Context, options DumpOptions) (DumpResult, error) {
	repositoryPath := strings.TrimSpace(options.RepositoryPath)
	if len(repositoryPath) == 0 {
		return DumpResult{}, errRepositoryPathMissing
	}

	branchName, branchError := service.branches.CurrentBranch(repositoryPath)
	if branchError != nil {
		return DumpResult{}, fmt.Errorf(currentBranchErrorTemplateConstant, branchError)
	}

	snapshotKey, keyError := snapshot.BranchKey(branchName)
	if keyError != nil {
		return DumpResult{}, keyError
	}

	state, loadError := service.engine.LoadState(executionContext)
	if loadError != nil {
		return DumpResult{}, fmt.Errorf(loadStateErrorTemplateConstant, loadError)
	}

	nodeKeys := state.Graph.Keys()
	if writeError := service.snapshots.Write(snapshotKey, nodeKeys); writeError != nil {
		return DumpResult{}, fmt.Errorf(writeSnapshotErrorTemplateConstant, branchName, writeError)
	}

	snapshotPath := service.snapshots.Path(snapshotKey)
	service.logger.Info(
		logMessageBranchDumpedConstant,
		zap.String(logFieldBranchConstant, branchName),
		zap.String(logFieldSnapshotPathConstant, snapshotPath),
		zap.Int(logFieldNodeCountConstant, len(nodeKeys)),
	)
	return DumpResult{BranchName: branchName, SnapshotPath: snapshotPath, NodeCount: len(nodeKeys)}, nil
}

// FindTargets resolves the migrations recorded for the source branch but not
// the destination branch into the targets that roll them back.
func (service *Service) FindTargets(executionContext context.Context, options TargetsOptions) ([]migration.Target, error) {
	sourceBranch := strings.TrimSpace(options.SourceBranch)
	destinationBranch := strings.TrimSpace(options.DestinationBranch)
	if len(sourceBranch) == 0 || len(destinationBranch) == 0 {
		return nil, errBranchNamesMissing
	}

	sourceNodes, sourceError := service.readBranch(sourceBranch)
	if sourceError != nil {
		return nil, sourceError
	}
	destinationNodes, destinationError := service.readBranch(destinationBranch)
	if destinationError != nil {
		return nil, destinationError
	}

	state, loadError := service.engine.LoadState(executionContext)
	if loadError != nil {
		return nil, fmt.Errorf(loadStateErrorTemplateConstant, loadError)
	}

	targetSet, resolveError := migration.ResolveTargets(sourceNodes.Difference(destinationNodes), state.Graph)
	if resolveError != nil {
		return nil, fmt.Errorf(resolveTargetsErrorTemplateConstant, sourceBranch, destinationBranch, resolveError)
	}

	targets := targetSet.Sorted()
	service.logger.Debug(
		logMessageTargetsResolvedConstant,
		zap.String(logFieldSourceBranchConstant, sourceBranch),
		zap.String(logFieldDestinationBranchConstant, destinationBranch),
		zap.Int(logFieldTargetCountConstant, len(targets)),
	)
	return targets, nil
}

func (service *Service) readBranch(branchName string) (migration.KeySet, error) {
	snapshotKey, keyError := snapshot.BranchKey(branchName)
	if keyError != nil {
		return nil, keyError
	}
	nodes, readError := service.snapshots.Read(snapshotKey)
	if readError != nil {
		return nil, fmt.Errorf(readSnapshotErrorTemplateConstant, branchName, readError)
	}
	return nodes, nil
}
