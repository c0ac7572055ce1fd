package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/temirov/schemahop/internal/migration"
)

const (
	snapshotDirectoryPermissionsConstant = 0o755
	snapshotFilePermissionsConstant      = 0o644
	pairElementCountConstant             = 2
	notFoundErrorTemplateConstant        = "snapshot %s not found; run the previous stage first"
	encodeErrorTemplateConstant          = "unable to encode snapshot %s: %w"
	decodeErrorTemplateConstant          = "unable to decode snapshot %s: %w"
	writeErrorTemplateConstant           = "unable to write snapshot %s: %w"
	readErrorTemplateConstant            = "unable to read snapshot %s: %w"
	createDirectoryErrorTemplateConstant = "unable to create snapshot directory %s: %w"
	malformedPairErrorTemplateConstant   = "snapshot %s entry %d must hold exactly two strings"
	invalidEntryErrorTemplateConstant    = "snapshot %s entry %d: %w"
)

// ErrFilesystemNotConfigured indicates that a store was created without a filesystem.
var ErrFilesystemNotConfigured = errors.New("snapshot filesystem not configured")

// NotFoundError reports a snapshot document that does not exist.
type NotFoundError struct {
	Path string
}

// Error describes the missing snapshot.
func (notFoundError NotFoundError) Error() string {
	return fmt.Sprintf(notFoundErrorTemplateConstant, notFoundError.Path)
}

// Store reads and writes snapshot documents beneath a root directory.
type Store struct {
	fileSystem    afero.Fs
	rootDirectory string
}

// NewStore constructs a Store rooted at rootDirectory.
func NewStore(fileSystem afero.Fs, rootDirectory string) (*Store, error) {
	if fileSystem == nil {
		return nil, ErrFilesystemNotConfigured
	}
	return &Store{fileSystem: fileSystem, rootDirectory: filepath.Clean(rootDirectory)}, nil
}

// Path returns the filesystem path of the document addressed by key.
func (store *Store) Path(key Key) string {
	return filepath.Join(store.rootDirectory, filepath.FromSlash(key.String()))
}

// Write replaces the document addressed by key with the provided set, creating
// parent directories as needed. Pairs are written in sorted order.
func (store *Store) Write(key Key, keySet migration.KeySet) error {
	snapshotPath := store.Path(key)

	pairs := make([][pairElementCountConstant]string, 0, len(keySet))
	for _, nodeKey := range keySet.Sorted() {
		pairs = append(pairs, [pairElementCountConstant]string{nodeKey.AppLabel, nodeKey.MigrationName})
	}

	encoded, encodeError := json.Marshal(pairs)
	if encodeError != nil {
		return fmt.Errorf(encodeErrorTemplateConstant, snapshotPath, encodeError)
	}

	if mkdirError := store.fileSystem.MkdirAll(filepath.Dir(snapshotPath), snapshotDirectoryPermissionsConstant); mkdirError != nil {
		return fmt.Errorf(createDirectoryErrorTemplateConstant, filepath.Dir(snapshotPath), mkdirError)
	}

	if writeError := afero.WriteFile(store.fileSystem, snapshotPath, encoded, snapshotFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(writeErrorTemplateConstant, snapshotPath, writeError)
	}
	return nil
}

// Read loads the document addressed by key. A missing document yields NotFoundError.
func (store *Store) Read(key Key) (migration.KeySet, error) {
	snapshotPath := store.Path(key)

	contents, readError := afero.ReadFile(store.fileSystem, snapshotPath)
	if readError != nil {
		if errors.Is(readError, os.ErrNotExist) {
			return nil, NotFoundError{Path: snapshotPath}
		}
		return nil, fmt.Errorf(readErrorTemplateConstant, snapshotPath, readError)
	}

	var entries [][]string
	if decodeError := json.Unmarshal(contents, &entries); decodeError != nil {
		return nil, fmt.Errorf(decodeErrorTemplateConstant, snapshotPath, decodeError)
	}

	keySet := make(migration.KeySet, len(entries))
	for entryIndex, entry := range entries {
		if len(entry) != pairElementCountConstant {
			return nil, fmt.Errorf(malformedPairErrorTemplateConstant, snapshotPath, entryIndex)
		}
		nodeKey := migration.NodeKey{AppLabel: entry[0], MigrationName: entry[1]}
		if validationError := migration.ValidateNodeKey(nodeKey); validationError != nil {
			return nil, fmt.Errorf(invalidEntryErrorTemplateConstant, snapshotPath, entryIndex, validationError)
		}
		keySet.Add(nodeKey)
	}
	return keySet, nil
}
