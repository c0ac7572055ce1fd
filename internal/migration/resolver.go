package migration

// ResolveTargets computes the boundary targets that unapply every migration in relevant.
//
// A root migration yields a zero target for its application. Any other
// migration yields one target per parent that is not itself in relevant, so
// only the outer edge of the affected subgraph is named. Every key must be
// defined by migrationGraph; otherwise an UnknownNodeError listing all missing
// keys is returned and no targets are produced.
func ResolveTargets(relevant KeySet, migrationGraph Graph) (TargetSet, error) {
	resolvedNodes := make([]Node, 0, len(relevant))
	var unknownKeys []NodeKey
	for key := range relevant {
		node, exists := migrationGraph.Node(key)
		if !exists {
			unknownKeys = append(unknownKeys, key)
			continue
		}
		resolvedNodes = append(resolvedNodes, node)
	}

	if len(unknownKeys) > 0 {
		sortNodeKeys(unknownKeys)
		return nil, UnknownNodeError{Keys: unknownKeys}
	}

	targets := make(TargetSet)
	for _, node := range resolvedNodes {
		if node.IsRoot() {
			targets.Add(Target{AppLabel: node.Key.AppLabel, TargetName: ZeroTargetName})
			continue
		}
		for _, parent := range node.Parents {
			if relevant.Contains(parent) {
				continue
			}
			targets.Add(Target{AppLabel: parent.AppLabel, TargetName: parent.MigrationName})
		}
	}

	return targets, nil
}
