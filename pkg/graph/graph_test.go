package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/nclustgen/pkg/config"
	"github.com/orneryd/nclustgen/pkg/convert"
	"github.com/orneryd/nclustgen/pkg/engine"
	"github.com/orneryd/nclustgen/pkg/gpu"
	"github.com/orneryd/nclustgen/pkg/storage"
	"github.com/orneryd/nclustgen/pkg/tensor"
)

// grid fills value(z, i, j) = 100*z + 10*i + j.
func grid(t *testing.T, shape ...int) *tensor.Dense {
	t.Helper()
	d, err := tensor.NewDense(shape...)
	require.NoError(t, err)
	d.Each(func(z, i, j int, _ float64) {
		v := float64(100*z + 10*i + j)
		if d.Rank() == 3 {
			d.Set(v, z, i, j)
		} else {
			d.Set(v, i, j)
		}
	})
	return d
}

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in   string
		want Backend
	}{
		{"tensor", BackendTensor},
		{"DGL", BackendTensor},
		{"generic", BackendGeneric},
		{" networkx ", BackendGeneric},
	}
	for _, tt := range tests {
		got, err := ParseBackend(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseBackend("igraph")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestBuild_UnknownBackend(t *testing.T) {
	_, err := Build(context.Background(), grid(t, 2, 2), Options{Backend: "pyg"})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = Build(context.Background(), grid(t, 2, 2), Options{})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestOptionsFrom(t *testing.T) {
	opts, err := OptionsFrom(config.GraphConfig{Backend: "networkx", Device: "gpu", DeviceIndex: 1})
	require.NoError(t, err)
	assert.Equal(t, BackendGeneric, opts.Backend)
	assert.Equal(t, gpu.Placement{Kind: gpu.Accelerated, Index: 1}, opts.Placement)

	_, err = OptionsFrom(config.GraphConfig{Backend: "tensor", Device: "tpu"})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestPartition(t *testing.T) {
	assert.Equal(t, 0, Partition(2, Row))
	assert.Equal(t, 1, Partition(2, Col))
	assert.Equal(t, -1, Partition(2, Context))
	assert.Equal(t, 0, Partition(3, Context))
	assert.Equal(t, 1, Partition(3, Row))
	assert.Equal(t, 2, Partition(3, Col))
}

func TestTensorBackend_TwoAxis(t *testing.T) {
	g, err := Build(context.Background(), grid(t, 4, 3), Options{Backend: BackendTensor})
	require.NoError(t, err)

	h := g.(*HeteroGraph)
	assert.Equal(t, 2, h.Rank())
	assert.Equal(t, map[NodeType]int{Row: 4, Col: 3}, h.NodeCounts())
	assert.Equal(t, map[string]int{"row-col": 12}, h.EdgeCounts())
	assert.Equal(t, 12, h.NumEdges())
	assert.True(t, h.Placement.IsLocal())
	assert.Nil(t, h.Device)

	// Edges follow cell order.
	rc := h.Edges[RowCol]
	assert.Equal(t, int32(2), rc.Src[7])
	assert.Equal(t, int32(1), rc.Dst[7])
	assert.Equal(t, 21.0, rc.W[7])
	assert.NotContains(t, h.Edges, RowCtx)
	assert.Equal(t, []int{0, 0, 0, 0}, h.Clusters[Row])
}

func TestTensorBackend_ThreeAxis(t *testing.T) {
	g, err := Build(context.Background(), grid(t, 3, 10, 8), Options{Backend: BackendTensor})
	require.NoError(t, err)

	assert.Equal(t, map[NodeType]int{Row: 10, Col: 8, Context: 3}, g.NodeCounts())
	assert.Equal(t, map[string]int{"row-col": 240, "row-ctx": 240, "col-ctx": 240}, g.EdgeCounts())
	assert.Equal(t, 3*10*8*3, g.NumEdges())

	h := g.(*HeteroGraph)
	// Cell (z=2, i=4, j=5) is the last context's 45th cell.
	k := 2*80 + 4*8 + 5
	for _, et := range EdgeTypes(3) {
		assert.Equal(t, 245.0, h.Edges[et].W[k], et.String())
	}
	assert.Equal(t, int32(4), h.Edges[RowCtx].Src[k])
	assert.Equal(t, int32(2), h.Edges[RowCtx].Dst[k])
	assert.Equal(t, int32(5), h.Edges[ColCtx].Src[k])
	assert.Equal(t, int32(2), h.Edges[ColCtx].Dst[k])
}

func TestTensorBackend_Placement(t *testing.T) {
	m := gpu.NewManager()
	accel := gpu.Placement{Kind: gpu.Accelerated, Index: 0}

	_, err := Build(context.Background(), grid(t, 2, 2), Options{Backend: BackendTensor, Placement: accel, Manager: m})
	assert.ErrorIs(t, err, gpu.ErrDeviceUnavailable)

	m.Register(gpu.Device{Index: 0, Name: "test"})
	g, err := Build(context.Background(), grid(t, 2, 2), Options{Backend: BackendTensor, Placement: accel, Manager: m})
	require.NoError(t, err)
	h := g.(*HeteroGraph)
	require.NotNil(t, h.Device)
	assert.Equal(t, "test", h.Device.Name)

	// Placement is ignored by the generic backend.
	_, err = Build(context.Background(), grid(t, 2, 2), Options{Backend: BackendGeneric, Placement: accel, Manager: gpu.NewManager()})
	assert.NoError(t, err)
}

func TestGenericBackend_TwoAxis(t *testing.T) {
	g, err := Build(context.Background(), grid(t, 4, 3), Options{Backend: BackendGeneric})
	require.NoError(t, err)

	gg := g.(*GenericGraph)
	assert.Equal(t, map[NodeType]int{Row: 4, Col: 3}, gg.NodeCounts())
	assert.Equal(t, map[string]int{"row-col": 12}, gg.EdgeCounts())

	w, err := gg.Weight("row-2", "col-1")
	require.NoError(t, err)
	assert.Equal(t, 21.0, w)

	node, err := gg.Store().GetNode("col-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"col"}, node.Labels)
	assert.EqualValues(t, 1, node.Properties[PropPartition])
	assert.EqualValues(t, 0, node.Properties[PropCluster])
}

// A 10x8x3 tricluster dataset yields one generic edge per typed pair.
func TestGenericBackend_ThreeAxisCounts(t *testing.T) {
	g, err := Build(context.Background(), grid(t, 3, 10, 8), Options{Backend: BackendGeneric})
	require.NoError(t, err)

	assert.Equal(t, map[NodeType]int{Row: 10, Col: 8, Context: 3}, g.NodeCounts())
	assert.Equal(t, map[string]int{"row-col": 80, "row-ctx": 30, "col-ctx": 24}, g.EdgeCounts())

	store := g.(*GenericGraph).Store()
	labels, err := storage.CountNodesByLabel(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"row": 10, "col": 8, "ctx": 3}, labels)

	types, err := storage.CountEdgesByType(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"row-col": 80, "row-ctx": 30, "col-ctx": 24}, types)

	ctxNode, err := store.GetNode("ctx-1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, ctxNode.Properties[PropPartition])
}

func TestGenericBackend_LastWriteWins(t *testing.T) {
	g, err := Build(context.Background(), grid(t, 3, 10, 8), Options{Backend: BackendGeneric})
	require.NoError(t, err)
	gg := g.(*GenericGraph)

	// row-col pairs repeat across contexts: the last context wins.
	w, err := gg.Weight("row-4", "col-5")
	require.NoError(t, err)
	assert.Equal(t, 245.0, w)

	// row-ctx pairs repeat across columns: the last column wins.
	w, err = gg.Weight("row-4", "ctx-1")
	require.NoError(t, err)
	assert.Equal(t, 147.0, w)

	// col-ctx pairs repeat across rows: the last row wins.
	w, err = gg.Weight("col-5", "ctx-0")
	require.NoError(t, err)
	assert.Equal(t, 95.0, w)

	_, err = gg.Weight("row-0", "row-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGenericBackend_Multigraph(t *testing.T) {
	store, err := storage.NewBadgerEngineInMemory()
	require.NoError(t, err)
	defer store.Close()

	g, err := Build(context.Background(), grid(t, 3, 10, 8), Options{
		Backend:    BackendGeneric,
		Store:      store,
		Multigraph: true,
	})
	require.NoError(t, err)

	assert.True(t, g.(*GenericGraph).Multigraph())
	assert.Equal(t, map[string]int{"row-col": 240, "row-ctx": 240, "col-ctx": 240}, g.EdgeCounts())
	assert.Equal(t, 3*10*8*3, g.NumEdges())

	n, err := store.EdgeCount()
	require.NoError(t, err)
	assert.Equal(t, int64(720), n)

	between, err := store.GetEdgesBetween("row-4", "col-5")
	require.NoError(t, err)
	require.Len(t, between, 3)
	// Cell (z, 4, 5) sits at flat index z*80 + 37.
	ids := []storage.EdgeID{between[0].ID, between[1].ID, between[2].ID}
	assert.ElementsMatch(t, []storage.EdgeID{"row-4|col-5|37", "row-4|col-5|117", "row-4|col-5|197"}, ids)

	edge, err := store.GetEdge("col-5|ctx-2|197")
	require.NoError(t, err)
	assert.EqualValues(t, 245, edge.Properties[PropWeight])
}

func TestGenericBackend_CountsReadFromStore(t *testing.T) {
	store, err := storage.NewBadgerEngineInMemory()
	require.NoError(t, err)
	defer store.Close()

	// Unrelated data in the store is not counted; stored rows are.
	require.NoError(t, store.CreateNode(&storage.Node{ID: "note-1", Labels: []string{"note"}}))
	require.NoError(t, store.CreateNode(&storage.Node{ID: "row-99", Labels: []string{string(Row)}}))

	g, err := Build(context.Background(), grid(t, 4, 3), Options{Backend: BackendGeneric, Store: store})
	require.NoError(t, err)

	assert.Equal(t, map[NodeType]int{Row: 5, Col: 3}, g.NodeCounts())
	assert.Equal(t, map[string]int{"row-col": 12}, g.EdgeCounts())
	assert.Equal(t, 12, g.NumEdges())
}

// loadOnly hides the streaming methods of a store.
type loadOnly struct{ storage.Engine }

func TestGenericBackend_NonStreamingStore(t *testing.T) {
	g, err := Build(context.Background(), grid(t, 2, 4, 3), Options{
		Backend: BackendGeneric,
		Store:   loadOnly{storage.NewMemoryEngine()},
	})
	require.NoError(t, err)
	assert.Equal(t, map[NodeType]int{Row: 4, Col: 3, Context: 2}, g.NodeCounts())
	assert.Equal(t, map[string]int{"row-col": 12, "row-ctx": 8, "col-ctx": 6}, g.EdgeCounts())
}

func TestGenericBackend_StoreConflict(t *testing.T) {
	store := storage.NewMemoryEngine()
	require.NoError(t, store.CreateNode(&storage.Node{ID: "row-0"}))

	_, err := Build(context.Background(), grid(t, 2, 2), Options{Backend: BackendGeneric, Store: store})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestBuild_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, grid(t, 2, 2), Options{Backend: BackendGeneric})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStampClusters(t *testing.T) {
	clusters := []engine.Cluster{
		engine.NewCluster([]int{0, 1}, []int{2}, []int{0}),
		engine.NewCluster([]int{1, 3}, []int{0, 2}, []int{1}),
	}

	for _, backend := range []Backend{BackendTensor, BackendGeneric} {
		t.Run(string(backend), func(t *testing.T) {
			g, err := Build(context.Background(), grid(t, 2, 4, 3), Options{Backend: backend})
			require.NoError(t, err)
			require.NoError(t, StampClusters(context.Background(), g, clusters))

			want := map[NodeType][]int{
				Row:     {1, 2, 0, 2},
				Col:     {2, 0, 2},
				Context: {1, 2},
			}
			for nt, ids := range want {
				for idx, id := range ids {
					var got int
					switch g := g.(type) {
					case *HeteroGraph:
						got = g.Clusters[nt][idx]
					case *GenericGraph:
						node, err := g.Store().GetNode(NodeID(nt, idx))
						require.NoError(t, err)
						got, _ = convert.Int(node.Properties, PropCluster)
					}
					assert.Equal(t, id, got, "%s-%d", nt, idx)
				}
			}

			sizes, err := StampedSizes(context.Background(), g)
			require.NoError(t, err)
			assert.Equal(t, map[int]map[NodeType]int{
				1: {Row: 1, Context: 1},
				2: {Row: 2, Col: 2, Context: 1},
			}, sizes)
		})
	}
}

func TestStampedSizes_Unstamped(t *testing.T) {
	g, err := Build(context.Background(), grid(t, 3, 2), Options{Backend: BackendGeneric})
	require.NoError(t, err)
	sizes, err := StampedSizes(context.Background(), g)
	require.NoError(t, err)
	assert.Empty(t, sizes)
}

func TestStampClusters_OutOfRange(t *testing.T) {
	g, err := Build(context.Background(), grid(t, 3, 2), Options{Backend: BackendTensor})
	require.NoError(t, err)

	err = StampClusters(context.Background(), g, []engine.Cluster{engine.NewCluster([]int{5}, []int{0})})
	assert.ErrorIs(t, err, engine.ErrClusterIndex)

	err = StampClusters(context.Background(), g, []engine.Cluster{engine.NewCluster([]int{0}, []int{0}, []int{0})})
	assert.ErrorIs(t, err, engine.ErrClusterIndex)
}
