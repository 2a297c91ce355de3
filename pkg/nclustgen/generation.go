package nclustgen

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/orneryd/nclustgen/pkg/config"
	"github.com/orneryd/nclustgen/pkg/decode"
	"github.com/orneryd/nclustgen/pkg/engine"
	"github.com/orneryd/nclustgen/pkg/graph"
	"github.com/orneryd/nclustgen/pkg/materialize"
	"github.com/orneryd/nclustgen/pkg/persist"
	"github.com/orneryd/nclustgen/pkg/tensor"
)

// Mode selects how Materialize decodes a result.
type Mode string

const (
	ModeDense  Mode = "dense"
	ModeSparse Mode = "sparse"
	// ModeAuto decodes densely when the dense tensor fits the configured
	// dense limit and sparsely otherwise.
	ModeAuto Mode = "auto"
)

// ParseMode accepts dense, sparse and auto, plus the in-memory switch
// spellings true (dense), false (sparse) and an empty value (auto).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dense", "true":
		return ModeDense, nil
	case "sparse", "false":
		return ModeSparse, nil
	case "auto", "", "none":
		return ModeAuto, nil
	}
	return "", fmt.Errorf("%w: unknown materialize mode %q", config.ErrInvalidConfig, s)
}

// Generation is one generated dataset. It owns the engine result, which
// stays valid for the lifetime of the Generation.
type Generation struct {
	gen *Generator
	res engine.Result
	dec *decode.Decoder

	mu    sync.Mutex
	dense *tensor.Dense
}

// Result returns the engine result.
func (g *Generation) Result() engine.Result { return g.res }

// Shape returns the tensor shape: (rows, cols) or (contexts, rows, cols).
func (g *Generation) Shape() []int { return materialize.Shape(g.res) }

// Clusters returns the planted clusters in generation order.
func (g *Generation) Clusters() []engine.Cluster { return g.res.Clusters() }

// Dense decodes the whole result into a dense tensor. The tensor is cached
// and shared by later calls and by Graph.
func (g *Generation) Dense(ctx context.Context) (*tensor.Dense, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.dense != nil {
		return g.dense, nil
	}

	start := time.Now()
	d, err := materialize.Dense(ctx, g.res, g.dec)
	g.gen.logger.LogMaterialize(ctx, ModeDense, g.Shape(), time.Since(start), err)
	if err != nil {
		return nil, err
	}
	g.dense = d
	return d, nil
}

// Sparse decodes the result chunk by chunk into a sparse tensor.
func (g *Generation) Sparse(ctx context.Context) (*tensor.Sparse, error) {
	start := time.Now()
	s, err := materialize.Sparse(ctx, g.res, g.dec, materialize.OptionsFrom(g.gen.cfg.Materialize))
	g.gen.logger.LogMaterialize(ctx, ModeSparse, g.Shape(), time.Since(start), err)
	return s, err
}

// Materialize decodes the result in the given mode.
func (g *Generation) Materialize(ctx context.Context, mode Mode) (tensor.Tensor, error) {
	switch g.resolve(mode) {
	case ModeDense:
		return g.Dense(ctx)
	case ModeSparse:
		return g.Sparse(ctx)
	}
	return nil, fmt.Errorf("%w: unknown materialize mode %q", config.ErrInvalidConfig, mode)
}

func (g *Generation) resolve(mode Mode) Mode {
	if mode != ModeAuto {
		return mode
	}
	limit := g.gen.cfg.Materialize.DenseLimitBytes()
	if limit <= 0 || engine.ShapeOf(g.res).Cells()*8 <= limit {
		return ModeDense
	}
	return ModeSparse
}

// Graph builds a graph from the dense tensor. An empty opts.Backend takes
// the backend and placement from the graph configuration.
func (g *Generation) Graph(ctx context.Context, opts graph.Options) (graph.Graph, error) {
	if opts.Backend == "" {
		defaults, err := graph.OptionsFrom(g.gen.cfg.Graph)
		if err != nil {
			g.gen.logger.LogGraph(ctx, g.gen.cfg.Graph.Backend, nil, err)
			return nil, err
		}
		opts.Backend, opts.Placement = defaults.Backend, defaults.Placement
	} else if _, err := graph.ParseBackend(string(opts.Backend)); err != nil {
		g.gen.logger.LogGraph(ctx, string(opts.Backend), nil, err)
		return nil, err
	}
	if opts.Manager == nil {
		opts.Manager = g.gen.gpu
	}

	d, err := g.Dense(ctx)
	if err != nil {
		return nil, err
	}
	out, err := graph.Build(ctx, d, opts)
	var edges map[string]int
	if err == nil {
		edges = out.EdgeCounts()
	}
	g.gen.logger.LogGraph(ctx, string(opts.Backend), edges, err)
	return out, err
}

// Save persists the dataset and its clusters. Empty dir and name fall
// back to the output configuration.
func (g *Generation) Save(ctx context.Context, dir, name string) (*persist.Manifest, error) {
	if dir == "" {
		dir = g.gen.cfg.Output.Path
	}
	if name == "" {
		name = g.gen.cfg.Output.FileName
	}
	m, err := g.gen.saver.Save(ctx, g.res, dir, name)
	files := 0
	if m != nil {
		files = len(m.Files)
	}
	g.gen.logger.LogSave(ctx, dir, name, files, err)
	return m, err
}
