// Package synthetic provides a deterministic in-process engine.
//
// It honors the engine contract (sizes, row-range serialization, cluster
// coordinates) and fills the matrix from the specification's background and
// value domain, then writes a simple value pattern into each cluster block.
// It is a reference collaborator for tests, demos and the CLI, not a
// planting algorithm: overlap settings beyond NO_OVERLAPPING, time profiles,
// noise and errors are not modelled.
package synthetic

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/orneryd/nclustgen/pkg/config"
	"github.com/orneryd/nclustgen/pkg/engine"
	"github.com/orneryd/nclustgen/pkg/spec"
)

// Engine is the reference engine. The zero value is ready to use.
type Engine struct{}

// New returns a reference engine.
func New() *Engine {
	return &Engine{}
}

// Generate implements engine.Engine.
func (e *Engine) Generate(ctx context.Context, s *spec.Spec, shape engine.Shape, nclusters int) (engine.Result, error) {
	if s.Version != spec.Version {
		return nil, engine.ErrUnsupportedVersion
	}
	if err := shape.Validate(s.Dims); err != nil {
		return nil, err
	}
	if nclusters < 0 {
		return nil, engine.ErrClusterCount
	}
	if len(s.Structure.Axes) != int(s.Dims) {
		return nil, fmt.Errorf("%w: structure has %d axes, want %d",
			config.ErrInvalidConfig, len(s.Structure.Axes), s.Dims)
	}
	shape = shape.Normalize(s.Dims)

	seed := uint64(s.Seed)
	if s.Seed < 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	m := &matrix{
		dims:    s.Dims,
		rows:    shape.Rows,
		cols:    shape.Cols,
		ctxs:    shape.Contexts,
		symbols: s.Values.Symbols,
		missing: s.Values.MissingToken,
		real:    s.Values.Real,
	}
	if m.missing == "" {
		m.missing = "?"
	}
	m.values = make([]float64, shape.Cells())

	p := &planter{spec: s, rng: rng, m: m}
	p.fillBackground()

	for k := 0; k < nclusters; k++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var pattern spec.Pattern
		if len(s.Patterns) > 0 {
			pattern = s.Patterns[k%len(s.Patterns)]
		}
		c := p.pickCluster()
		p.plant(c, pattern)
		m.clusters = append(m.clusters, c)
	}
	p.dropMissing()

	return m, nil
}

// matrix is the immutable Result. values is laid out as (ctx, row, col).
type matrix struct {
	dims     config.Dimensionality
	rows     int
	cols     int
	ctxs     int
	values   []float64
	clusters []engine.Cluster
	symbols  []string
	missing  string
	real     bool
}

func (m *matrix) Dims() config.Dimensionality { return m.dims }
func (m *matrix) Rows() int                   { return m.rows }
func (m *matrix) Cols() int                   { return m.cols }
func (m *matrix) Contexts() int               { return m.ctxs }

func (m *matrix) Clusters() []engine.Cluster {
	out := make([]engine.Cluster, len(m.clusters))
	copy(out, m.clusters)
	return out
}

func (m *matrix) at(z, i, j int) float64 {
	return m.values[(z*m.rows+i)*m.cols+j]
}

func (m *matrix) set(z, i, j int, v float64) {
	m.values[(z*m.rows+i)*m.cols+j] = v
}

// SerializeRows implements engine.Result.
func (m *matrix) SerializeRows(count, start int, transposed bool) (string, error) {
	lines, width := m.rows, m.cols
	if transposed {
		lines, width = m.cols, m.rows
	}
	if err := engine.CheckRange(count, start, lines); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.Grow(count * (width*m.ctxs*6 + 8))
	for l := start; l < start+count; l++ {
		sb.WriteString(strconv.Itoa(l))
		for z := 0; z < m.ctxs; z++ {
			for k := 0; k < width; k++ {
				sb.WriteByte('\t')
				if transposed {
					sb.WriteString(m.format(m.at(z, k, l)))
				} else {
					sb.WriteString(m.format(m.at(z, l, k)))
				}
			}
		}
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	return sb.String(), nil
}

func (m *matrix) format(v float64) string {
	switch {
	case math.IsNaN(v):
		return m.missing
	case len(m.symbols) > 0:
		return m.symbols[int(v)]
	case m.real:
		return strconv.FormatFloat(v, 'f', 2, 64)
	default:
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
}
