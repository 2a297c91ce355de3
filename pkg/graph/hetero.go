package graph

import (
	"context"

	"github.com/orneryd/nclustgen/pkg/gpu"
	"github.com/orneryd/nclustgen/pkg/tensor"
)

// EdgeSet holds the edges of one type as parallel arrays. Edge k joins
// source node Src[k] to destination node Dst[k] with weight W[k].
type EdgeSet struct {
	Src []int32
	Dst []int32
	W   []float64
}

// Len returns the number of edges.
func (e *EdgeSet) Len() int { return len(e.W) }

func newEdgeSet(n int) *EdgeSet {
	return &EdgeSet{
		Src: make([]int32, 0, n),
		Dst: make([]int32, 0, n),
		W:   make([]float64, 0, n),
	}
}

func (e *EdgeSet) add(src, dst int, w float64) {
	e.Src = append(e.Src, int32(src))
	e.Dst = append(e.Dst, int32(dst))
	e.W = append(e.W, w)
}

// HeteroGraph is the tensor-backend representation. Each cell of the source
// tensor yields exactly one edge per edge type, so every EdgeSet has
// rows*cols*contexts entries in cell order.
type HeteroGraph struct {
	rank int

	// Nodes is the node count per type.
	Nodes map[NodeType]int
	// Clusters is the cluster attribute per node type, zero until stamped.
	Clusters map[NodeType][]int
	// Edges maps each canonical edge type to its edges.
	Edges map[EdgeType]*EdgeSet

	// Placement is where the graph lives; Device is nil for local placement.
	Placement gpu.Placement
	Device    *gpu.Device
}

func buildHetero(ctx context.Context, t *tensor.Dense, opts Options) (*HeteroGraph, error) {
	manager := opts.Manager
	if manager == nil {
		manager = gpu.DefaultManager()
	}
	dev, err := manager.Resolve(opts.Placement)
	if err != nil {
		return nil, err
	}

	rank := t.Rank()
	rows, cols, ctxs := t.Rows(), t.Cols(), t.Contexts()
	cells := rows * cols * ctxs

	g := &HeteroGraph{
		rank:      rank,
		Nodes:     map[NodeType]int{Row: rows, Col: cols},
		Clusters:  map[NodeType][]int{Row: make([]int, rows), Col: make([]int, cols)},
		Edges:     make(map[EdgeType]*EdgeSet, 3),
		Placement: opts.Placement,
		Device:    dev,
	}
	if rank == 3 {
		g.Nodes[Context] = ctxs
		g.Clusters[Context] = make([]int, ctxs)
	}
	for _, et := range EdgeTypes(rank) {
		g.Edges[et] = newEdgeSet(cells)
	}

	rc := g.Edges[RowCol]
	rz, cz := g.Edges[RowCtx], g.Edges[ColCtx]
	t.Each(func(z, i, j int, v float64) {
		rc.add(i, j, v)
		if rank == 3 {
			rz.add(i, z, v)
			cz.add(j, z, v)
		}
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *HeteroGraph) Backend() Backend { return BackendTensor }

func (g *HeteroGraph) Rank() int { return g.rank }

func (g *HeteroGraph) NodeCounts() map[NodeType]int {
	out := make(map[NodeType]int, len(g.Nodes))
	for k, v := range g.Nodes {
		out[k] = v
	}
	return out
}

func (g *HeteroGraph) EdgeCounts() map[string]int {
	out := make(map[string]int, len(g.Edges))
	for et, es := range g.Edges {
		out[et.Key()] = es.Len()
	}
	return out
}

func (g *HeteroGraph) NumEdges() int { return sumCounts(g.EdgeCounts()) }
