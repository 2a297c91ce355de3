// Package graph re-encodes a dense tensor as a heterogeneous multipartite
// graph.
//
// Every row, column and (for three axes) context becomes a typed node, and
// every cell contributes a weighted edge to each pair of node types it
// joins: row-col for two axes, row-col, row-ctx and col-ctx for three. Two
// representations are available:
//
//   - BackendTensor ("tensor", alias "dgl") builds a HeteroGraph: per edge
//     type, parallel source, destination and weight arrays with one entry per
//     cell, placed on the host or a registered accelerator.
//   - BackendGeneric ("generic", alias "networkx") loads a labeled property
//     graph into a storage.Engine. By default it is a simple graph with one
//     edge per typed node pair; Options.Multigraph keeps one edge per cell.
//
// Example:
//
//	g, err := graph.Build(ctx, dense, graph.Options{Backend: graph.BackendGeneric})
//	if err != nil {
//		return err
//	}
//	fmt.Println(g.EdgeCounts()) // map[col-ctx:24 row-col:80 row-ctx:30]
package graph

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/orneryd/nclustgen/pkg/config"
	"github.com/orneryd/nclustgen/pkg/gpu"
	"github.com/orneryd/nclustgen/pkg/storage"
	"github.com/orneryd/nclustgen/pkg/tensor"
)

// Backend names a graph representation.
type Backend string

const (
	BackendTensor  Backend = "tensor"
	BackendGeneric Backend = "generic"
)

// ParseBackend resolves a backend identifier, accepting the "dgl" and
// "networkx" aliases. Unknown names are configuration errors.
func ParseBackend(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "tensor", "dgl":
		return BackendTensor, nil
	case "generic", "networkx":
		return BackendGeneric, nil
	}
	return "", fmt.Errorf("%w: unknown graph backend %q", config.ErrInvalidConfig, name)
}

// NodeType is a node partition.
type NodeType string

const (
	Row     NodeType = "row"
	Col     NodeType = "col"
	Context NodeType = "ctx"
)

// Relation is the relation name shared by every edge type.
const Relation = "elem"

// EdgeType is a canonical (source, relation, destination) triple.
type EdgeType struct {
	Src NodeType
	Rel string
	Dst NodeType
}

// Key returns the short form used for counts and store edge types,
// e.g. "row-col".
func (e EdgeType) Key() string {
	return string(e.Src) + "-" + string(e.Dst)
}

func (e EdgeType) String() string {
	return fmt.Sprintf("(%s, %s, %s)", e.Src, e.Rel, e.Dst)
}

var (
	RowCol = EdgeType{Src: Row, Rel: Relation, Dst: Col}
	RowCtx = EdgeType{Src: Row, Rel: Relation, Dst: Context}
	ColCtx = EdgeType{Src: Col, Rel: Relation, Dst: Context}
)

// EdgeTypes returns the edge types of a tensor with the given rank.
func EdgeTypes(rank int) []EdgeType {
	if rank == 3 {
		return []EdgeType{RowCol, RowCtx, ColCtx}
	}
	return []EdgeType{RowCol}
}

// NodeTypes returns the node types of a tensor with the given rank, in
// tensor axis order.
func NodeTypes(rank int) []NodeType {
	if rank == 3 {
		return []NodeType{Context, Row, Col}
	}
	return []NodeType{Row, Col}
}

// Partition returns the tensor axis holding nodes of type nt: rows and
// columns are axes 0 and 1 for rank 2, contexts, rows and columns are axes
// 0, 1 and 2 for rank 3.
func Partition(rank int, nt NodeType) int {
	for i, t := range NodeTypes(rank) {
		if t == nt {
			return i
		}
	}
	return -1
}

// NodeID returns the generic-backend identifier of node idx of type nt,
// e.g. "row-3".
func NodeID(nt NodeType, idx int) storage.NodeID {
	return storage.NodeID(string(nt) + "-" + strconv.Itoa(idx))
}

// Graph is implemented by both representations.
type Graph interface {
	// Backend reports the representation.
	Backend() Backend
	// Rank is 2 for bipartite graphs and 3 for tripartite graphs.
	Rank() int
	// NodeCounts returns the number of nodes per node type.
	NodeCounts() map[NodeType]int
	// EdgeCounts returns the number of edges per EdgeType.Key.
	EdgeCounts() map[string]int
	// NumEdges returns the total edge count.
	NumEdges() int
}

// Options selects and configures a backend.
type Options struct {
	Backend Backend
	// Placement applies to the tensor backend only.
	Placement gpu.Placement
	// Manager resolves accelerated placements; nil uses gpu.DefaultManager.
	Manager *gpu.Manager
	// Store receives the generic graph; nil uses a fresh MemoryEngine.
	Store storage.Engine
	// Multigraph keeps one generic edge per cell instead of one per pair.
	Multigraph bool
}

// OptionsFrom builds Options from the graph configuration.
func OptionsFrom(cfg config.GraphConfig) (Options, error) {
	backend, err := ParseBackend(cfg.Backend)
	if err != nil {
		return Options{}, err
	}
	placement, err := gpu.ParsePlacement(cfg.Device, cfg.DeviceIndex)
	if err != nil {
		return Options{}, err
	}
	return Options{Backend: backend, Placement: placement}, nil
}

// Build converts t into the representation selected by opts.Backend.
func Build(ctx context.Context, t *tensor.Dense, opts Options) (Graph, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil tensor", tensor.ErrShape)
	}
	backend, err := ParseBackend(string(opts.Backend))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if backend == BackendTensor {
		g, err := buildHetero(ctx, t, opts)
		if err != nil {
			return nil, err
		}
		return g, nil
	}
	g, err := buildGeneric(ctx, t, opts)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func sumCounts(counts map[string]int) int {
	n := 0
	for _, c := range counts {
		n += c
	}
	return n
}
