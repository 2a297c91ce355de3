package nclustgen

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/nclustgen/pkg/config"
	"github.com/orneryd/nclustgen/pkg/engine"
	"github.com/orneryd/nclustgen/pkg/gpu"
	"github.com/orneryd/nclustgen/pkg/graph"
	"github.com/orneryd/nclustgen/pkg/persist"
	"github.com/orneryd/nclustgen/pkg/spec"
	"github.com/orneryd/nclustgen/pkg/tensor"
)

func newGenerator(t *testing.T, dims config.Dimensionality, opts ...Option) *Generator {
	t.Helper()
	cfg := config.DefaultConfig(dims)
	cfg.Seed = 11
	gen, err := New(cfg, nil, opts...)
	require.NoError(t, err)
	return gen
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig(config.Bicluster)
	cfg.Patterns = [][]config.PatternType{{config.PatternConstant}}
	_, err := New(cfg, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestGenerate_ShapeErrors(t *testing.T) {
	gen := newGenerator(t, config.Tricluster)
	_, err := gen.Generate(context.Background(), engine.Shape{Rows: 5, Cols: 5}, 1)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	gen = newGenerator(t, config.Bicluster)
	_, err = gen.Generate(context.Background(), engine.Shape{Rows: 5, Cols: 5, Contexts: 2}, 1)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// A 30x20 bicluster dataset decodes identically dense and sparse.
func TestGeneration_Bicluster(t *testing.T) {
	ctx := context.Background()
	gen := newGenerator(t, config.Bicluster)

	g, err := gen.Generate(ctx, engine.Shape{Rows: 30, Cols: 20}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{30, 20}, g.Shape())
	assert.Len(t, g.Clusters(), 2)

	d, err := g.Dense(ctx)
	require.NoError(t, err)
	again, err := g.Dense(ctx)
	require.NoError(t, err)
	assert.Same(t, d, again)

	s, err := g.Sparse(ctx)
	require.NoError(t, err)
	assert.True(t, tensor.Equal(d, s))
}

func TestGeneration_TriclusterGraph(t *testing.T) {
	ctx := context.Background()
	gen := newGenerator(t, config.Tricluster)

	g, err := gen.Generate(ctx, engine.Shape{Rows: 10, Cols: 8, Contexts: 3}, 2)
	require.NoError(t, err)

	gr, err := g.Graph(ctx, graph.Options{Backend: graph.BackendGeneric})
	require.NoError(t, err)
	assert.Equal(t, map[graph.NodeType]int{graph.Row: 10, graph.Col: 8, graph.Context: 3}, gr.NodeCounts())
	assert.Equal(t, map[string]int{"row-col": 80, "row-ctx": 30, "col-ctx": 24}, gr.EdgeCounts())

	// Configured default backend is the tensor graph.
	tg, err := g.Graph(ctx, graph.Options{})
	require.NoError(t, err)
	assert.Equal(t, graph.BackendTensor, tg.Backend())
	assert.Equal(t, 720, tg.NumEdges())

	require.NoError(t, graph.StampClusters(ctx, tg, g.Clusters()))
}

func TestGeneration_GraphErrors(t *testing.T) {
	ctx := context.Background()
	gen := newGenerator(t, config.Bicluster, WithGPUManager(gpu.NewManager()))
	g, err := gen.Generate(ctx, engine.Shape{Rows: 4, Cols: 4}, 1)
	require.NoError(t, err)

	_, err = g.Graph(ctx, graph.Options{Backend: "igraph"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = g.Graph(ctx, graph.Options{
		Backend:   graph.BackendTensor,
		Placement: gpu.Placement{Kind: gpu.Accelerated},
	})
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
}

func TestGeneration_Materialize(t *testing.T) {
	ctx := context.Background()

	gen := newGenerator(t, config.Bicluster)
	g, err := gen.Generate(ctx, engine.Shape{Rows: 30, Cols: 20}, 1)
	require.NoError(t, err)

	x, err := g.Materialize(ctx, ModeAuto)
	require.NoError(t, err)
	assert.IsType(t, &tensor.Dense{}, x)

	x, err = g.Materialize(ctx, ModeSparse)
	require.NoError(t, err)
	assert.IsType(t, &tensor.Sparse{}, x)

	_, err = g.Materialize(ctx, Mode("lazy"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	// 30*20 cells need 4800 bytes dense.
	gen.Config().Materialize.DenseLimit = "4KB"
	x, err = g.Materialize(ctx, ModeAuto)
	require.NoError(t, err)
	assert.IsType(t, &tensor.Sparse{}, x)
}

func TestParseMode(t *testing.T) {
	tests := map[string]Mode{
		"dense": ModeDense, "true": ModeDense,
		"sparse": ModeSparse, "False": ModeSparse,
		"": ModeAuto, "auto": ModeAuto,
	}
	for in, want := range tests {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("maybe")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestGeneration_Save(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig(config.Tricluster)
	cfg.Output.Path = t.TempDir()
	cfg.Output.FileName = "tri"
	gen, err := New(cfg, nil)
	require.NoError(t, err)

	g, err := gen.Generate(ctx, engine.Shape{Rows: 12, Cols: 5, Contexts: 2}, 1)
	require.NoError(t, err)

	m, err := g.Save(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 12, 5}, m.Shape)
	assert.FileExists(t, filepath.Join(cfg.Output.Path, "tri_dataset.tsv"))
	assert.NoError(t, persist.Verify(cfg.Output.Path, m))
}

type failingEngine struct{ err error }

func (f failingEngine) Generate(context.Context, *spec.Spec, engine.Shape, int) (engine.Result, error) {
	return nil, f.err
}

func TestGenerate_EngineErrorLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&buf, nil))

	boom := errors.New("engine crashed")
	gen, err := New(config.DefaultConfig(config.Bicluster), failingEngine{boom}, WithLogger(logger))
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), engine.Shape{Rows: 3, Cols: 3}, 1)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, buf.String(), `"msg":"generate failed"`)
	assert.Contains(t, buf.String(), "engine crashed")
}

func TestLoggerFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gen.log")
	logger, closer, err := LoggerFromConfig(config.LoggingConfig{Level: "debug", Format: "json", Output: path})
	require.NoError(t, err)
	logger.Debug("hello")
	require.NoError(t, closer.Close())
	assert.FileExists(t, path)

	_, _, err = LoggerFromConfig(config.LoggingConfig{Level: "loud"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, _, err = LoggerFromConfig(config.LoggingConfig{Level: "info", Format: "xml"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
