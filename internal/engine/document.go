package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/temirov/schemahop/internal/migration"
)

const (
	pairElementCountConstant          = 2
	documentDecodeErrorTemplate       = "unable to decode graph document: %w"
	appliedPairErrorTemplate          = "applied entry %d must hold exactly two strings"
	parentPairErrorTemplate           = "node %s parent %d must hold exactly two strings"
	documentNodeErrorTemplate         = "graph document node %d: %w"
	documentAppliedErrorTemplate      = "graph document applied entry %d: %w"
	documentGraphConstructionTemplate = "graph document is not a valid migration graph: %w"
)

// ErrEmptyGraphDocument indicates that the engine printed nothing.
var ErrEmptyGraphDocument = errors.New("graph document is empty")

// GraphDocument is the JSON or YAML document printed by the graph command.
//
//	{"applied": [["blog", "0001_initial"]],
//	 "nodes": [{"app": "blog", "name": "0001_initial", "parents": []}]}
type GraphDocument struct {
	Applied [][]string     `yaml:"applied"`
	Nodes   []NodeDocument `yaml:"nodes"`
}

// NodeDocument describes one migration in a GraphDocument.
type NodeDocument struct {
	App     string     `yaml:"app"`
	Name    string     `yaml:"name"`
	Parents [][]string `yaml:"parents"`
}

// State is the engine's view of the migration history at one point in time.
type State struct {
	Applied migration.KeySet
	Graph   migration.Graph
}

// DecodeGraphDocument parses a graph document and validates it into a State.
func DecodeGraphDocument(contents []byte) (State, error) {
	if len(bytes.TrimSpace(contents)) == 0 {
		return State{}, ErrEmptyGraphDocument
	}

	var document GraphDocument
	decoder := yaml.NewDecoder(bytes.NewReader(contents))
	decoder.KnownFields(true)
	if decodeError := decoder.Decode(&document); decodeError != nil && !errors.Is(decodeError, io.EOF) {
		return State{}, fmt.Errorf(documentDecodeErrorTemplate, decodeError)
	}

	nodes := make([]migration.Node, 0, len(document.Nodes))
	for nodeIndex, nodeDocument := range document.Nodes {
		nodeKey := migration.NodeKey{AppLabel: nodeDocument.App, MigrationName: nodeDocument.Name}
		if validationError := migration.ValidateNodeKey(nodeKey); validationError != nil {
			return State{}, fmt.Errorf(documentNodeErrorTemplate, nodeIndex, validationError)
		}
		parents := make([]migration.NodeKey, 0, len(nodeDocument.Parents))
		for parentIndex, parentPair := range nodeDocument.Parents {
			if len(parentPair) != pairElementCountConstant {
				return State{}, fmt.Errorf(parentPairErrorTemplate, nodeKey, parentIndex)
			}
			parents = append(parents, migration.NodeKey{AppLabel: parentPair[0], MigrationName: parentPair[1]})
		}
		nodes = append(nodes, migration.Node{Key: nodeKey, Parents: parents})
	}

	migrationGraph, graphError := migration.NewGraph(nodes)
	if graphError != nil {
		return State{}, fmt.Errorf(documentGraphConstructionTemplate, graphError)
	}

	applied, appliedError := decodeAppliedPairs(document.Applied)
	if appliedError != nil {
		return State{}, appliedError
	}

	return State{Applied: applied, Graph: migrationGraph}, nil
}

func decodeAppliedPairs(pairs [][]string) (migration.KeySet, error) {
	applied := make(migration.KeySet, len(pairs))
	for pairIndex, pair := range pairs {
		if len(pair) != pairElementCountConstant {
			return nil, fmt.Errorf(appliedPairErrorTemplate, pairIndex)
		}
		nodeKey := migration.NodeKey{AppLabel: pair[0], MigrationName: pair[1]}
		if validationError := migration.ValidateNodeKey(nodeKey); validationError != nil {
			return nil, fmt.Errorf(documentAppliedErrorTemplate, pairIndex, validationError)
		}
		applied.Add(nodeKey)
	}
	return applied, nil
}
