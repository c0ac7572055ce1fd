package migration

import (
	"fmt"
	"sort"
)

const (
	nodeKeyDisplayTemplateConstant = "%s.%s"
)

// NodeKey identifies a migration by application label and migration name.
type NodeKey struct {
	AppLabel      string
	MigrationName string
}

// String renders the key as app_label.migration_name.
func (key NodeKey) String() string {
	return fmt.Sprintf(nodeKeyDisplayTemplateConstant, key.AppLabel, key.MigrationName)
}

// Node describes a migration and its direct dependencies.
type Node struct {
	Key     NodeKey
	Parents []NodeKey
}

// IsRoot reports whether the node has no parents.
func (node Node) IsRoot() bool {
	return len(node.Parents) == 0
}

// KeySet is an unordered set of migration node keys.
type KeySet map[NodeKey]struct{}

// NewKeySet builds a KeySet containing the provided keys.
func NewKeySet(keys ...NodeKey) KeySet {
	keySet := make(KeySet, len(keys))
	for _, key := range keys {
		keySet[key] = struct{}{}
	}
	return keySet
}

// Add inserts the key into the set.
func (keySet KeySet) Add(key NodeKey) {
	keySet[key] = struct{}{}
}

// Contains reports whether the key is a member of the set.
func (keySet KeySet) Contains(key NodeKey) bool {
	_, exists := keySet[key]
	return exists
}

// Difference returns the keys present in keySet but absent from other.
func (keySet KeySet) Difference(other KeySet) KeySet {
	difference := make(KeySet)
	for key := range keySet {
		if other.Contains(key) {
			continue
		}
		difference.Add(key)
	}
	return difference
}

// Equal reports whether both sets hold exactly the same keys.
func (keySet KeySet) Equal(other KeySet) bool {
	if len(keySet) != len(other) {
		return false
	}
	for key := range keySet {
		if !other.Contains(key) {
			return false
		}
	}
	return true
}

// Sorted returns the keys ordered by application label then migration name.
func (keySet KeySet) Sorted() []NodeKey {
	sortedKeys := make([]NodeKey, 0, len(keySet))
	for key := range keySet {
		sortedKeys = append(sortedKeys, key)
	}
	sortNodeKeys(sortedKeys)
	return sortedKeys
}

func sortNodeKeys(keys []NodeKey) {
	sort.Slice(keys, func(leftIndex int, rightIndex int) bool {
		if keys[leftIndex].AppLabel != keys[rightIndex].AppLabel {
			return keys[leftIndex].AppLabel < keys[rightIndex].AppLabel
		}
		return keys[leftIndex].MigrationName < keys[rightIndex].MigrationName
	})
}
