// Package storage provides the attributed property-graph stores behind the
// generic graph backend.
//
// A generated dataset becomes a labeled property graph: one node per row,
// column and context (labels "row", "col", "ctx") and one weighted edge per
// adjacent pair. Two Engine implementations are provided:
//   - MemoryEngine: maps guarded by an RWMutex, for small and medium graphs
//   - BadgerEngine: BadgerDB-backed, on disk or in memory, for graphs that
//     should outlive the process or exceed the heap
//
// Both are safe for concurrent use and both implement StreamingEngine.
//
// Example Usage:
//
//	engine := storage.NewMemoryEngine()
//	defer engine.Close()
//
//	engine.CreateNode(&storage.Node{
//		ID:         "row-0",
//		Labels:     []string{"row"},
//		Properties: map[string]any{"cluster": 0, "partition": 0},
//	})
//	engine.CreateNode(&storage.Node{ID: "col-0", Labels: []string{"col"}})
//	engine.CreateEdge(&storage.Edge{
//		ID:         "row-0|col-0",
//		StartNode:  "row-0",
//		EndNode:    "col-0",
//		Type:       "row-col",
//		Properties: map[string]any{"weight": 1.5},
//	})
package storage

import (
	"context"
	"errors"
)

// Common errors
var (
	ErrNotFound         = errors.New("storage: not found")
	ErrAlreadyExists    = errors.New("storage: already exists")
	ErrInvalidID        = errors.New("storage: invalid id")
	ErrInvalidData      = errors.New("storage: invalid data")
	ErrInvalidEdge      = errors.New("storage: invalid edge: start or end node not found")
	ErrStorageClosed    = errors.New("storage: closed")
	ErrIterationStopped = errors.New("storage: iteration stopped") // Sentinel to stop streaming early
)

// NodeID is a strongly-typed unique identifier for graph nodes.
//
// Example:
//
//	id := storage.NodeID("row-12")
//	node, err := engine.GetNode(id)
type NodeID string

// EdgeID is a strongly-typed unique identifier for graph edges.
type EdgeID string

// Node is a vertex of the labeled property graph.
//
// Thread Safety:
//
//	Node structs are NOT thread-safe. The storage engine handles concurrency.
type Node struct {
	ID         NodeID         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
}

// Edge is a directed relationship between two nodes.
//
// The generic graph backend treats edges as undirected: StartNode is always
// the endpoint whose axis comes first (row before col before ctx).
type Edge struct {
	ID         EdgeID         `json:"id"`
	StartNode  NodeID         `json:"startNode"`
	EndNode    NodeID         `json:"endNode"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

// Engine defines the storage operations the graph backend relies on.
//
// All Engine implementations MUST be:
//   - Thread-safe: Safe for concurrent access from multiple goroutines
//   - Copy-on-read/write: callers never share memory with stored values
//   - Strict on creation: CreateNode/CreateEdge fail if the ID exists
type Engine interface {
	// Node operations
	CreateNode(node *Node) error
	GetNode(id NodeID) (*Node, error)
	UpdateNode(node *Node) error

	// Edge operations
	CreateEdge(edge *Edge) error
	GetEdge(id EdgeID) (*Edge, error)

	// Query operations
	GetNodesByLabel(label string) ([]*Node, error)
	GetEdgesBetween(startID, endID NodeID) ([]*Edge, error)

	// Bulk operations (graph materialization)
	BulkCreateNodes(nodes []*Node) error
	BulkCreateEdges(edges []*Edge) error

	// Lifecycle
	Close() error

	// Stats
	NodeCount() (int64, error)
	EdgeCount() (int64, error)
}

// StreamingEngine is implemented by engines that can iterate without
// loading every node or edge into memory.
type StreamingEngine interface {
	Engine

	// StreamNodes iterates over all nodes. Return an error from fn to stop;
	// ErrIterationStopped stops without reporting an error.
	StreamNodes(ctx context.Context, fn func(node *Node) error) error

	// StreamEdges iterates over all edges.
	StreamEdges(ctx context.Context, fn func(edge *Edge) error) error
}

// NodeVisitor is a function called for each node during streaming.
type NodeVisitor func(node *Node) error

// EdgeVisitor is a function called for each edge during streaming.
type EdgeVisitor func(edge *Edge) error

// StreamNodes iterates over every node of engine. Engines that do not
// implement StreamingEngine are not supported and yield ErrInvalidData.
func StreamNodes(ctx context.Context, engine Engine, fn NodeVisitor) error {
	streamer, ok := engine.(StreamingEngine)
	if !ok {
		return ErrInvalidData
	}
	err := streamer.StreamNodes(ctx, fn)
	if errors.Is(err, ErrIterationStopped) {
		return nil
	}
	return err
}

// StreamEdges iterates over every edge of engine.
func StreamEdges(ctx context.Context, engine Engine, fn EdgeVisitor) error {
	streamer, ok := engine.(StreamingEngine)
	if !ok {
		return ErrInvalidData
	}
	err := streamer.StreamEdges(ctx, fn)
	if errors.Is(err, ErrIterationStopped) {
		return nil
	}
	return err
}

// CountNodesByLabel counts nodes per label using streaming.
func CountNodesByLabel(ctx context.Context, engine Engine) (map[string]int64, error) {
	counts := make(map[string]int64)
	err := StreamNodes(ctx, engine, func(node *Node) error {
		for _, l := range node.Labels {
			counts[l]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// CountEdgesByType counts edges per type using streaming.
func CountEdgesByType(ctx context.Context, engine Engine) (map[string]int64, error) {
	counts := make(map[string]int64)
	err := StreamEdges(ctx, engine, func(edge *Edge) error {
		counts[edge.Type]++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func copyProperties(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

func copyNode(n *Node) *Node {
	return &Node{
		ID:         n.ID,
		Labels:     append([]string(nil), n.Labels...),
		Properties: copyProperties(n.Properties),
	}
}

func copyEdge(e *Edge) *Edge {
	return &Edge{
		ID:         e.ID,
		StartNode:  e.StartNode,
		EndNode:    e.EndNode,
		Type:       e.Type,
		Properties: copyProperties(e.Properties),
	}
}
