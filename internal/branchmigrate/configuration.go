package branchmigrate

import (
	"path/filepath"
	"strings"

	"github.com/temirov/schemahop/internal/engine"
)

const (
	// DefaultSnapshotDirectory is the repository-relative snapshot directory. It must be untracked.
	DefaultSnapshotDirectory = ".schemahop"
)

// CommandConfiguration captures the settings the migrate command reads.
type CommandConfiguration struct {
	SnapshotDirectory string
	Engine            engine.Configuration
}

// DefaultCommandConfiguration returns baseline values for the migrate command.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		SnapshotDirectory: DefaultSnapshotDirectory,
		Engine:            engine.DefaultConfiguration(),
	}
}

// Sanitize trims values, fills defaults, and anchors relative paths at repositoryPath.
func (configuration CommandConfiguration) Sanitize(repositoryPath string) CommandConfiguration {
	sanitized := configuration
	sanitized.SnapshotDirectory = anchorPath(repositoryPath, configuration.SnapshotDirectory, DefaultSnapshotDirectory)
	sanitized.Engine = configuration.Engine.Sanitize()
	sanitized.Engine.WorkingDirectory = anchorPath(repositoryPath, sanitized.Engine.WorkingDirectory, ".")
	return sanitized
}

func anchorPath(repositoryPath string, candidate string, fallback string) string {
	trimmed := strings.TrimSpace(candidate)
	if len(trimmed) == 0 {
		trimmed = fallback
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Join(repositoryPath, trimmed)
}
