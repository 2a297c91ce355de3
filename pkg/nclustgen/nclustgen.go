// Package nclustgen generates synthetic datasets with planted biclusters
// and triclusters and turns them into tensors and graphs.
//
// A Generator binds a validated configuration to an engine. Each call to
// Generate produces a Generation that owns the engine's Matrix Result and
// exposes the downstream views: dense or sparse tensors, a tensor-backed or
// generic graph, and on-disk persistence.
//
// Example:
//
//	cfg := config.DefaultConfig(config.Tricluster)
//	gen, err := nclustgen.New(cfg, nil)
//	if err != nil {
//		return err
//	}
//	g, err := gen.Generate(ctx, engine.Shape{Rows: 100, Cols: 50, Contexts: 5}, 3)
//	if err != nil {
//		return err
//	}
//	x, err := g.Materialize(ctx, nclustgen.ModeAuto)
package nclustgen

import (
	"context"
	"time"

	"github.com/orneryd/nclustgen/pkg/config"
	"github.com/orneryd/nclustgen/pkg/decode"
	"github.com/orneryd/nclustgen/pkg/engine"
	"github.com/orneryd/nclustgen/pkg/engine/synthetic"
	"github.com/orneryd/nclustgen/pkg/gpu"
	"github.com/orneryd/nclustgen/pkg/persist"
	"github.com/orneryd/nclustgen/pkg/spec"
)

// Errors surfaced by the pipeline, re-exported for callers that only
// import this package.
var (
	ErrInvalidConfig     = config.ErrInvalidConfig
	ErrMalformed         = decode.ErrMalformed
	ErrClusterCount      = engine.ErrClusterCount
	ErrClusterIndex      = engine.ErrClusterIndex
	ErrDeviceUnavailable = gpu.ErrDeviceUnavailable
)

// Option configures a Generator.
type Option func(*Generator)

// WithLogger configures structured logging for every stage.
func WithLogger(logger *Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithSaver replaces the default FileSaver.
func WithSaver(s persist.Saver) Option {
	return func(g *Generator) { g.saver = s }
}

// WithGPUManager sets the manager that resolves accelerated placements.
func WithGPUManager(m *gpu.Manager) Option {
	return func(g *Generator) { g.gpu = m }
}

// Generator produces datasets for one configuration.
type Generator struct {
	cfg    *config.Config
	spec   *spec.Spec
	engine engine.Engine
	logger *Logger
	saver  persist.Saver
	gpu    *gpu.Manager
}

// New validates cfg and builds its specification. A nil engine selects the
// built-in synthetic engine. Configuration errors are reported here, before
// any engine call.
func New(cfg *config.Config, eng engine.Engine, opts ...Option) (*Generator, error) {
	s, err := spec.Build(cfg)
	if err != nil {
		return nil, err
	}
	if eng == nil {
		eng = synthetic.New()
	}

	g := &Generator{
		cfg:    cfg,
		spec:   s,
		engine: eng,
		logger: NoopLogger(),
		gpu:    gpu.DefaultManager(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.saver == nil {
		g.saver = persist.NewFileSaver(persist.OptionsFrom(cfg.Output, cfg.Materialize))
	}
	return g, nil
}

// Config returns the generator configuration.
func (g *Generator) Config() *config.Config { return g.cfg }

// Spec returns the specification handed to the engine.
func (g *Generator) Spec() *spec.Spec { return g.spec }

// Generate plants nclusters clusters in a dataset of the given shape.
//
// The shape must match the configured dimensionality: Contexts is 0 or 1
// for two axes and positive for three. The engine result is checked for
// the requested cluster count and in-range indices.
func (g *Generator) Generate(ctx context.Context, shape engine.Shape, nclusters int) (*Generation, error) {
	start := time.Now()
	res, err := g.generate(ctx, shape, nclusters)
	g.logger.LogGenerate(ctx, g.cfg.Dims, []int{shape.Rows, shape.Cols, shape.Contexts}, nclusters, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return &Generation{gen: g, res: res, dec: decode.ForSpec(g.spec)}, nil
}

func (g *Generator) generate(ctx context.Context, shape engine.Shape, nclusters int) (engine.Result, error) {
	if err := shape.Validate(g.cfg.Dims); err != nil {
		return nil, err
	}
	shape = shape.Normalize(g.cfg.Dims)

	res, err := g.engine.Generate(ctx, g.spec, shape, nclusters)
	if err != nil {
		return nil, err
	}
	if err := engine.CheckClusters(res, nclusters); err != nil {
		return nil, err
	}
	return res, nil
}
