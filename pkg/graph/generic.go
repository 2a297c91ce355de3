package graph

import (
	"context"
	"fmt"

	"github.com/orneryd/nclustgen/pkg/convert"
	"github.com/orneryd/nclustgen/pkg/storage"
	"github.com/orneryd/nclustgen/pkg/tensor"
)

// edgeBatch bounds the edges handed to one BulkCreateEdges call.
const edgeBatch = 10_000

// Property keys on generic nodes and edges.
const (
	PropCluster   = "cluster"
	PropPartition = "partition"
	PropWeight    = "weight"
)

// GenericGraph is the generic-backend representation, held in a
// storage.Engine. Nodes are labeled with their NodeType and carry the
// cluster and partition properties; edges carry weight and use
// EdgeType.Key as their type.
type GenericGraph struct {
	rank       int
	multigraph bool
	store      storage.Engine
	nodes      map[NodeType]int
	edges      map[string]int
}

// Store returns the engine holding the graph.
func (g *GenericGraph) Store() storage.Engine { return g.store }

// Multigraph reports whether the graph keeps one edge per cell.
func (g *GenericGraph) Multigraph() bool { return g.multigraph }

func (g *GenericGraph) Backend() Backend { return BackendGeneric }

func (g *GenericGraph) Rank() int { return g.rank }

func (g *GenericGraph) NodeCounts() map[NodeType]int {
	out := make(map[NodeType]int, len(g.nodes))
	for k, v := range g.nodes {
		out[k] = v
	}
	return out
}

func (g *GenericGraph) EdgeCounts() map[string]int {
	out := make(map[string]int, len(g.edges))
	for k, v := range g.edges {
		out[k] = v
	}
	return out
}

func (g *GenericGraph) NumEdges() int { return sumCounts(g.edges) }

// Weight returns the weight of the edge between a and b. In a multigraph
// the first matching edge is used.
func (g *GenericGraph) Weight(a, b storage.NodeID) (float64, error) {
	edges, err := g.store.GetEdgesBetween(a, b)
	if err != nil {
		return 0, err
	}
	if len(edges) == 0 {
		return 0, fmt.Errorf("%w: edge %s-%s", storage.ErrNotFound, a, b)
	}
	w, ok := convert.Float(edges[0].Properties, PropWeight)
	if !ok {
		return 0, fmt.Errorf("%w: edge %s has no weight", storage.ErrInvalidData, edges[0].ID)
	}
	return w, nil
}


// pendingEdges accumulates edges in first-seen order. In simple mode a
// repeated pair keeps its position and takes the latest weight.
type pendingEdges struct {
	multigraph bool
	order      []*storage.Edge
	byID       map[storage.EdgeID]*storage.Edge
	counts     map[string]int
}

func (p *pendingEdges) add(et EdgeType, src, dst storage.NodeID, cell int, w float64) {
	id := storage.EdgeID(string(src) + "|" + string(dst))
	if p.multigraph {
		id = storage.EdgeID(fmt.Sprintf("%s|%d", id, cell))
	}
	if e, ok := p.byID[id]; ok {
		e.Properties[PropWeight] = w
		return
	}
	e := &storage.Edge{
		ID:         id,
		StartNode:  src,
		EndNode:    dst,
		Type:       et.Key(),
		Properties: map[string]any{PropWeight: w},
	}
	p.byID[id] = e
	p.order = append(p.order, e)
	p.counts[et.Key()]++
}

func buildGeneric(ctx context.Context, t *tensor.Dense, opts Options) (*GenericGraph, error) {
	store := opts.Store
	if store == nil {
		store = storage.NewMemoryEngine()
	}

	rank := t.Rank()
	shape := t.Shape()
	g := &GenericGraph{
		rank:       rank,
		multigraph: opts.Multigraph,
		store:      store,
		nodes:      make(map[NodeType]int, rank),
	}

	var nodes []*storage.Node
	for axis, nt := range NodeTypes(rank) {
		g.nodes[nt] = shape[axis]
		for i := 0; i < shape[axis]; i++ {
			nodes = append(nodes, &storage.Node{
				ID:         NodeID(nt, i),
				Labels:     []string{string(nt)},
				Properties: map[string]any{PropCluster: 0, PropPartition: axis},
			})
		}
	}
	if err := store.BulkCreateNodes(nodes); err != nil {
		return nil, fmt.Errorf("creating nodes: %w", err)
	}

	pending := &pendingEdges{
		multigraph: opts.Multigraph,
		byID:       make(map[storage.EdgeID]*storage.Edge),
		counts:     make(map[string]int, 3),
	}
	cell := 0
	t.Each(func(z, i, j int, v float64) {
		row, col := NodeID(Row, i), NodeID(Col, j)
		if rank == 2 {
			pending.add(RowCol, row, col, cell, v)
		} else {
			c := NodeID(Context, z)
			pending.add(RowCol, row, col, cell, v)
			pending.add(RowCtx, row, c, cell, v)
			pending.add(ColCtx, col, c, cell, v)
		}
		cell++
	})

	for start := 0; start < len(pending.order); start += edgeBatch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+edgeBatch, len(pending.order))
		if err := store.BulkCreateEdges(pending.order[start:end]); err != nil {
			return nil, fmt.Errorf("creating edges: %w", err)
		}
	}

	if err := g.countStored(ctx, rank, pending.counts); err != nil {
		return nil, fmt.Errorf("counting stored graph: %w", err)
	}
	return g, nil
}

// countStored reads the per-type node and edge counts back from the store,
// restricted to the types of a rank-sized graph. Stores that cannot stream
// keep the counts seen while loading.
func (g *GenericGraph) countStored(ctx context.Context, rank int, loaded map[string]int) error {
	if _, ok := g.store.(storage.StreamingEngine); !ok {
		g.edges = loaded
		return nil
	}

	labels, err := storage.CountNodesByLabel(ctx, g.store)
	if err != nil {
		return err
	}
	types, err := storage.CountEdgesByType(ctx, g.store)
	if err != nil {
		return err
	}

	g.nodes = make(map[NodeType]int, rank)
	for _, nt := range NodeTypes(rank) {
		g.nodes[nt] = int(labels[string(nt)])
	}
	g.edges = make(map[string]int, len(loaded))
	for _, et := range EdgeTypes(rank) {
		g.edges[et.Key()] = int(types[et.Key()])
	}
	return nil
}
