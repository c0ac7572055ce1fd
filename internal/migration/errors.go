package migration

import (
	"fmt"
	"strings"
)

const (
	unknownNodeErrorTemplateConstant    = "migration graph does not define %s"
	missingParentErrorTemplateConstant  = "migration %s depends on %s which is not defined"
	duplicateNodeErrorTemplateConstant  = "migration %s is defined more than once"
	cyclicDependencyTemplateConstant    = "migration %s depending on %s creates a cycle"
	nodeKeyListSeparatorConstant        = ", "
	emptyAppLabelMessageConstant        = "application label must be provided"
	emptyMigrationNameMessageConstant   = "migration name must be provided"
	invalidNodeKeyErrorTemplateConstant = "invalid migration key %q/%q: %s"
)

// UnknownNodeError reports keys that are absent from the migration graph.
type UnknownNodeError struct {
	Keys []NodeKey
}

// Error describes the unknown keys.
func (unknownNodeError UnknownNodeError) Error() string {
	renderedKeys := make([]string, 0, len(unknownNodeError.Keys))
	for _, key := range unknownNodeError.Keys {
		renderedKeys = append(renderedKeys, key.String())
	}
	return fmt.Sprintf(unknownNodeErrorTemplateConstant, strings.Join(renderedKeys, nodeKeyListSeparatorConstant))
}

// MissingParentError reports a dependency on a migration the graph does not define.
type MissingParentError struct {
	Child  NodeKey
	Parent NodeKey
}

// Error describes the dangling dependency.
func (missingParentError MissingParentError) Error() string {
	return fmt.Sprintf(missingParentErrorTemplateConstant, missingParentError.Child, missingParentError.Parent)
}

// DuplicateNodeError reports a key defined by more than one node.
type DuplicateNodeError struct {
	Key NodeKey
}

// Error describes the duplicated key.
func (duplicateNodeError DuplicateNodeError) Error() string {
	return fmt.Sprintf(duplicateNodeErrorTemplateConstant, duplicateNodeError.Key)
}

// CyclicDependencyError reports a dependency edge that would make the graph cyclic.
type CyclicDependencyError struct {
	Child  NodeKey
	Parent NodeKey
}

// Error describes the offending edge.
func (cyclicDependencyError CyclicDependencyError) Error() string {
	return fmt.Sprintf(cyclicDependencyTemplateConstant, cyclicDependencyError.Child, cyclicDependencyError.Parent)
}

// InvalidNodeKeyError reports a key with an empty component.
type InvalidNodeKeyError struct {
	Key     NodeKey
	Message string
}

// Error describes the invalid key.
func (invalidNodeKeyError InvalidNodeKeyError) Error() string {
	return fmt.Sprintf(invalidNodeKeyErrorTemplateConstant, invalidNodeKeyError.Key.AppLabel, invalidNodeKeyError.Key.MigrationName, invalidNodeKeyError.Message)
}

// ValidateNodeKey ensures both key components are present.
func ValidateNodeKey(key NodeKey) error {
	if len(strings.TrimSpace(key.AppLabel)) == 0 {
		return InvalidNodeKeyError{Key: key, Message: emptyAppLabelMessageConstant}
	}
	if len(strings.TrimSpace(key.MigrationName)) == 0 {
		return InvalidNodeKeyError{Key: key, Message: emptyMigrationNameMessageConstant}
	}
	return nil
}
