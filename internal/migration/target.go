package migration

import (
	"fmt"
	"sort"
)

const (
	// ZeroTargetName instructs the migration engine to unapply every migration of an application.
	ZeroTargetName = "zero"

	targetDisplayTemplateConstant = "%s %s"
)

// Target pairs an application label with the migration name, or ZeroTargetName, to migrate it to.
type Target struct {
	AppLabel   string
	TargetName string
}

// IsZero reports whether the target fully unapplies the application.
func (target Target) IsZero() bool {
	return target.TargetName == ZeroTargetName
}

// String renders the target as "app_label target".
func (target Target) String() string {
	return fmt.Sprintf(targetDisplayTemplateConstant, target.AppLabel, target.TargetName)
}

// TargetSet is an unordered, deduplicated collection of targets.
type TargetSet map[Target]struct{}

// Add inserts the target into the set.
func (targetSet TargetSet) Add(target Target) {
	targetSet[target] = struct{}{}
}

// Contains reports whether the target is a member of the set.
func (targetSet TargetSet) Contains(target Target) bool {
	_, exists := targetSet[target]
	return exists
}

// Sorted returns the targets ordered by application label then target name.
func (targetSet TargetSet) Sorted() []Target {
	sortedTargets := make([]Target, 0, len(targetSet))
	for target := range targetSet {
		sortedTargets = append(sortedTargets, target)
	}
	sort.Slice(sortedTargets, func(leftIndex int, rightIndex int) bool {
		if sortedTargets[leftIndex].AppLabel != sortedTargets[rightIndex].AppLabel {
			return sortedTargets[leftIndex].AppLabel < sortedTargets[rightIndex].AppLabel
		}
		return sortedTargets[leftIndex].TargetName < sortedTargets[rightIndex].TargetName
	})
	return sortedTargets
}
