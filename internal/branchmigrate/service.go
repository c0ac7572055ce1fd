package branchmigrate

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
	engineMissingMessageConstant         = "migration engine not configured"
	snapshotStoreMissingMessageConstant  = "snapshot store not configured"
	versionControlMissingMessageConstant = "version control not configured"
	repositoryPathMissingMessageConstant = "repository path must be provided"
	loadStateErrorTemplateConstant       = "stage %s: unable to load migration state: %w"
	writeSnapshotErrorTemplateConstant   = "stage %s: unable to record orphaned migrations: %w"
	readSnapshotErrorTemplateConstant    = "stage %s: %w"
	resolveTargetsErrorTemplateConstant  = "stage %s: unable to resolve rollback targets: %w"
	migrateTargetErrorTemplateConstant   = "stage %s: rollback of %s failed: %w"
	migrateAllErrorTemplateConstant      = "stage %s: final migrate failed: %w"
	checkoutErrorTemplateConstant        = "stage %s: %w"
	logMessageStageStartedConstant       = "Branch migration stage started"
	logMessageSnapshotWrittenConstant    = "Recorded migrations missing from the checked out branch"
	logMessageTargetsResolvedConstant    = "Resolved rollback targets"
	logMessageApplicationHeadsConstant   = "Application heads on checked out branch"
	logMessageStageCompletedConstant     = "Branch migration stage completed"
	logFieldStageConstant                = "stage"
	logFieldSnapshotPathConstant         = "snapshot_path"
	logFieldTargetCountConstant          = "target_count"
	logFieldTargetsConstant              = "targets"
	logFieldOrphanedCountConstant        = "orphaned_count"
	logFieldApplicationConstant          = "app"
	logFieldHeadsConstant                = "heads"
	logFieldConfigurationConstant        = "configuration"
)

var (
	errEngineMissing         = errors.New(engineMissingMessageConstant)
	errSnapshotStoreMissing  = errors.New(snapshotStoreMissingMessageConstant)
	errVersionControlMissing = errors.New(versionControlMissingMessageConstant)
	errRepositoryPathMissing = errors.New(repositoryPathMissingMessageConstant)
)

// MigrationEngine loads migration state and applies or reverts migrations.
type MigrationEngine interface {
	LoadState(executionContext context.Context) (engine.State, error)
	Migrate(executionContext context.Context, target migration.Target) error
	MigrateAll(executionContext context.Context) error
}

// SnapshotStore persists migration sets between stages.
type SnapshotStore interface {
	Write(key snapshot.Key, keySet migration.KeySet) error
	Read(key snapshot.Key) (migration.KeySet, error)
	Path(key snapshot.Key) string
}

// VersionControl switches back to the previously checked out branch.
type VersionControl interface {
	CheckoutPrevious(executionContext context.Context, repositoryPath string, environment map[string]string) error
}

// ServiceDependencies describes required collaborators for the orchestrator.
type ServiceDependencies struct {
	Logger         *zap.Logger
	Engine         MigrationEngine
	Snapshots      SnapshotStore
	VersionControl VersionControl
}

// Options configures one orchestrator run.
type Options struct {
	RepositoryPath      string
	ConfigurationSource string
}

// StageResult captures what a stage did.
type StageResult struct {
	Stage         Stage
	SnapshotPath  string
	OrphanedCount int
	Targets       []migration.Target
}

// Service runs the stage-driven reconciliation.
type Service struct {
	logger         *zap.Logger
	engine         MigrationEngine
	snapshots      SnapshotStore
	versionControl VersionControl
}

// NewService constructs a Service with the provided dependencies.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Engine == nil {
		return nil, errEngineMissing
	}
	if dependencies.Snapshots == nil {
		return nil, errSnapshotStoreMissing
	}
	if dependencies.VersionControl == nil {
		return nil, errVersionControlMissing
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		logger:         logger,
		engine:         dependencies.Engine,
		snapshots:      dependencies.Snapshots,
		versionControl: dependencies.VersionControl,
	}, nil
}

// Run executes the given stage. Failures abort the stage without retry and
// leave any later stage unstarted.
func (service *Service) Run(executionContext context.Context, stage Stage, options Options) (StageResult, error) {
	repositoryPath := strings.TrimSpace(options.RepositoryPath)
	if len(repositoryPath) == 0 {
		return StageResult{}, errRepositoryPathMissing
	}

	service.logger.Info(
		logMessageStageStartedConstant,
		zap.Stringer(logFieldStageConstant, stage),
		zap.String(logFieldConfigurationConstant, options.ConfigurationSource),
	)

	var result StageResult
	var runError error
	switch stage {
	case StageUnset:
		result, runError = service.recordOrphanedMigrations(executionContext, repositoryPath)
	case StageTwo:
		result, runError = service.rollbackOrphanedMigrations(executionContext, repositoryPath)
	case StageThree:
		result, runError = service.migrateToHeads(executionContext)
	default:
		return StageResult{}, UnknownStageError{Value: string(stage)}
	}
	if runError != nil {
		return StageResult{}, runError
	}

	service.logger.Info(
		logMessageStageCompletedConstant,
		zap.Stringer(logFieldStageConstant, stage),
		zap.String(logFieldSnapshotPathConstant, result.SnapshotPath),
		zap.Int(logFieldTargetCountConstant, len(result.Targets)),
	)
	return result, nil
}

func (service *Service) recordOrphanedMigrations(executionContext context.Context, repositoryPath string) (StageResult, error) {
	state, loadError := service.engine.LoadState(executionContext)
	if loadError != nil {
		return StageResult{}, fmt.Errorf(loadStateErrorTemplateConstant, StageUnset, loadError)
	}

	orphaned := state.Applied.Difference(state.Graph.Keys())
	snapshotKey := snapshot.SingleSlotKey()
	if writeError := service.snapshots.Write(snapshotKey, orphaned); writeError != nil {
		return StageResult{}, fmt.Errorf(writeSnapshotErrorTemplateConstant, StageUnset, writeError)
	}

	snapshotPath := service.snapshots.Path(snapshotKey)
	service.logger.Info(
		logMessageSnapshotWrittenConstant,
		zap.String(logFieldSnapshotPathConstant, snapshotPath),
		zap.Int(logFieldOrphanedCountConstant, len(orphaned)),
	)
	service.logHeads(state.Graph)

	if checkoutError := service.checkoutPrevious(executionContext, repositoryPath, StageUnset); checkoutError != nil {
		return StageResult{}, checkoutError
	}

	return StageResult{Stage: StageUnset, SnapshotPath: snapshotPath, OrphanedCount: len(orphaned)}, nil
}

func (service *Service) rollbackOrphanedMigrations(executionContext context.Context, repositoryPath string) (StageResult, error) {
	snapshotKey := snapshot.SingleSlotKey()
	orphaned, readError := service.snapshots.Read(snapshotKey)
	if readError != nil {
		return StageResult{}, fmt.Errorf(readSnapshotErrorTemplateConstant, StageTwo, readError)
	}

	state, loadError := service.engine.LoadState(executionContext)
	if loadError != nil {
		return StageResult{}, fmt.Errorf(loadStateErrorTemplateConstant, StageTwo, loadError)
	}

	targetSet, resolveError := migration.ResolveTargets(orphaned, state.Graph)
	if resolveError != nil {
		return StageResult{}, fmt.Errorf(resolveTargetsErrorTemplateConstant, StageTwo, resolveError)
	}

	targets := targetSet.Sorted()
	renderedTargets := make([]string, 0, len(targets))
	for _, target := range targets {
		renderedTargets = append(renderedTargets, target.String())
	}
	service.logger.Info(
		logMessageTargetsResolvedConstant,
		zap.Int(logFieldTargetCountConstant, len(targets)),
		zap.Strings(logFieldTargetsConstant, renderedTargets),
	)

	for _, target := range targets {
		if migrateError := service.engine.Migrate(executionContext, target); migrateError != nil {
			return StageResult{}, fmt.Errorf(migrateTargetErrorTemplateConstant, StageTwo, target, migrateError)
		}
	}

	if checkoutError := service.checkoutPrevious(executionContext, repositoryPath, StageTwo); checkoutError != nil {
		return StageResult{}, checkoutError
	}

	return StageResult{
		Stage:         StageTwo,
		SnapshotPath:  service.snapshots.Path(snapshotKey),
		OrphanedCount: len(orphaned),
		Targets:       targets,
	}, nil
}

func (service *Service) migrateToHeads(executionContext context.Context) (StageResult, error) {
	if migrateError := service.engine.MigrateAll(executionContext); migrateError != nil {
		return StageResult{}, fmt.Errorf(migrateAllErrorTemplateConstant, StageThree, migrateError)
	}
	return StageResult{Stage: StageThree}, nil
}

func (service *Service) checkoutPrevious(executionContext context.Context, repositoryPath string, current Stage) error {
	nextStage, hasNext := current.Next()
	if !hasNext {
		return nil
	}
	environment := map[string]string{StageEnvironmentVariable: string(nextStage)}
	if checkoutError := service.versionControl.CheckoutPrevious(executionContext, repositoryPath, environment); checkoutError != nil {
		return fmt.Errorf(checkoutErrorTemplateConstant, current, checkoutError)
	}
	return nil
}

func (service *Service) logHeads(migrationGraph migration.Graph) {
	if !service.logger.Core().Enabled(zap.DebugLevel) {
		return
	}
	for applicationLabel, heads := range migrationGraph.Heads() {
		renderedHeads := make([]string, 0, len(heads))
		for _, head := range heads {
			renderedHeads = append(renderedHeads, head.MigrationName)
		}
		service.logger.Debug(
			logMessageApplicationHeadsConstant,
			zap.String(logFieldApplicationConstant, applicationLabel),
			zap.Strings(logFieldHeadsConstant, renderedHeads),
		)
	}
}
