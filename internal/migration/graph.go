package migration

import (
	"errors"
	"fmt"

	"github.com/dominikbraun/graph"
)

const (
	graphConstructionErrorTemplateConstant = "unable to build migration graph: %w"
)

// Graph is an immutable migration dependency graph keyed by NodeKey.
type Graph struct {
	nodes    map[NodeKey]Node
	children map[NodeKey]KeySet
	order    []NodeKey
}

// NewGraph validates the nodes and assembles a Graph. Every parent must be
// defined by another node and the dependency relation must be acyclic.
func NewGraph(nodes []Node) (Graph, error) {
	nodeHash := func(node Node) NodeKey {
		return node.Key
	}
	dependencyGraph := graph.New(nodeHash, graph.Directed(), graph.PreventCycles())

	nodesByKey := make(map[NodeKey]Node, len(nodes))
	for _, node := range nodes {
		if validationError := ValidateNodeKey(node.Key); validationError != nil {
			return Graph{}, validationError
		}
		if addError := dependencyGraph.AddVertex(node); addError != nil {
			if errors.Is(addError, graph.ErrVertexAlreadyExists) {
				return Graph{}, DuplicateNodeError{Key: node.Key}
			}
			return Graph{}, fmt.Errorf(graphConstructionErrorTemplateConstant, addError)
		}
		nodesByKey[node.Key] = Node{Key: node.Key, Parents: deduplicateParents(node.Parents)}
	}

	children := make(map[NodeKey]KeySet, len(nodesByKey))
	for _, node := range nodesByKey {
		for _, parent := range node.Parents {
			if _, parentDefined := nodesByKey[parent]; !parentDefined {
				return Graph{}, MissingParentError{Child: node.Key, Parent: parent}
			}
			edgeError := dependencyGraph.AddEdge(parent, node.Key)
			switch {
			case edgeError == nil:
			case errors.Is(edgeError, graph.ErrEdgeCreatesCycle):
				return Graph{}, CyclicDependencyError{Child: node.Key, Parent: parent}
			case errors.Is(edgeError, graph.ErrEdgeAlreadyExists):
			default:
				return Graph{}, fmt.Errorf(graphConstructionErrorTemplateConstant, edgeError)
			}
			if children[parent] == nil {
				children[parent] = make(KeySet)
			}
			children[parent].Add(node.Key)
		}
	}

	order, sortError := graph.StableTopologicalSort(dependencyGraph, lessNodeKey)
	if sortError != nil {
		return Graph{}, fmt.Errorf(graphConstructionErrorTemplateConstant, sortError)
	}

	return Graph{nodes: nodesByKey, children: children, order: order}, nil
}

// Node returns the node registered under key.
func (migrationGraph Graph) Node(key NodeKey) (Node, bool) {
	node, exists := migrationGraph.nodes[key]
	return node, exists
}

// Len returns the number of nodes in the graph.
func (migrationGraph Graph) Len() int {
	return len(migrationGraph.nodes)
}

// Keys returns the set of every node key in the graph.
func (migrationGraph Graph) Keys() KeySet {
	keySet := make(KeySet, len(migrationGraph.nodes))
	for key := range migrationGraph.nodes {
		keySet.Add(key)
	}
	return keySet
}

// Order lists node keys so that every parent precedes its children.
func (migrationGraph Graph) Order() []NodeKey {
	return append([]NodeKey(nil), migrationGraph.order...)
}

// Heads returns, per application label, the migrations no other migration of the same application depends on.
func (migrationGraph Graph) Heads() map[string][]NodeKey {
	heads := make(map[string][]NodeKey)
	for _, key := range migrationGraph.order {
		hasSameApplicationChild := false
		for child := range migrationGraph.children[key] {
			if child.AppLabel == key.AppLabel {
				hasSameApplicationChild = true
				break
			}
		}
		if hasSameApplicationChild {
			continue
		}
		heads[key.AppLabel] = append(heads[key.AppLabel], key)
	}
	for applicationLabel := range heads {
		sortNodeKeys(heads[applicationLabel])
	}
	return heads
}

func deduplicateParents(parents []NodeKey) []NodeKey {
	if len(parents) == 0 {
		return nil
	}
	seen := make(KeySet, len(parents))
	ordered := make([]NodeKey, 0, len(parents))
	for _, parent := range parents {
		if seen.Contains(parent) {
			continue
		}
		seen.Add(parent)
		ordered = append(ordered, parent)
	}
	return ordered
}

func lessNodeKey(left NodeKey, right NodeKey) bool {
	if left.AppLabel != right.AppLabel {
		return left.AppLabel < right.AppLabel
	}
	return left.MigrationName < right.MigrationName
}
