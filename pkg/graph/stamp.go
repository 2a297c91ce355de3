package graph

import (
	"context"
	"fmt"

	"github.com/orneryd/nclustgen/pkg/convert"
	"github.com/orneryd/nclustgen/pkg/engine"
	"github.com/orneryd/nclustgen/pkg/storage"
)

// StampClusters writes 1-based cluster ids into the cluster attribute of
// every member node: cluster k marks its rows, columns and contexts with
// k+1. When clusters overlap the later cluster wins. Graph construction
// never stamps on its own.
func StampClusters(ctx context.Context, g Graph, clusters []engine.Cluster) error {
	counts := g.NodeCounts()
	types := []NodeType{Row, Col, Context}

	for k, c := range clusters {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(c.Axes) > g.Rank() {
			return fmt.Errorf("%w: cluster %d has %d axes for a rank %d graph",
				engine.ErrClusterIndex, k, len(c.Axes), g.Rank())
		}
		for axis, members := range c.Axes {
			nt := types[axis]
			for _, idx := range members {
				if idx < 0 || idx >= counts[nt] {
					return fmt.Errorf("%w: cluster %d %s index %d outside [0,%d)",
						engine.ErrClusterIndex, k, nt, idx, counts[nt])
				}
				if err := stamp(g, nt, idx, k+1); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func stamp(g Graph, nt NodeType, idx, id int) error {
	switch g := g.(type) {
	case *HeteroGraph:
		g.Clusters[nt][idx] = id
		return nil
	case *GenericGraph:
		node, err := g.store.GetNode(NodeID(nt, idx))
		if err != nil {
			return err
		}
		if node.Properties == nil {
			node.Properties = make(map[string]any, 1)
		}
		node.Properties[PropCluster] = id
		return g.store.UpdateNode(node)
	}
	return fmt.Errorf("%w: unsupported graph %T", storage.ErrInvalidData, g)
}

// StampedSizes counts the nodes carrying each non-zero cluster id, per node
// type. Generic graphs are read back from their store.
func StampedSizes(ctx context.Context, g Graph) (map[int]map[NodeType]int, error) {
	sizes := make(map[int]map[NodeType]int)
	add := func(id int, nt NodeType) {
		if id == 0 {
			return
		}
		if sizes[id] == nil {
			sizes[id] = make(map[NodeType]int, g.Rank())
		}
		sizes[id][nt]++
	}

	for _, nt := range NodeTypes(g.Rank()) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch g := g.(type) {
		case *HeteroGraph:
			for _, id := range g.Clusters[nt] {
				add(id, nt)
			}
		case *GenericGraph:
			nodes, err := g.store.GetNodesByLabel(string(nt))
			if err != nil {
				return nil, err
			}
			for _, node := range nodes {
				id, _ := convert.Int(node.Properties, PropCluster)
				add(id, nt)
			}
		default:
			return nil, fmt.Errorf("%w: unsupported graph %T", storage.ErrInvalidData, g)
		}
	}
	return sizes, nil
}
