// Package engine defines the boundary to the external generation engine.
//
// An Engine consumes a spec.Spec and returns a Result: an opaque,
// engine-owned matrix handle that reports its axis sizes, serializes any
// contiguous row range as tab-delimited text and lists the planted clusters.
// Everything downstream (decoding, tensors, graphs, persistence) talks to the
// engine only through these two interfaces, so the bridging mechanism of a
// concrete engine never leaks into the pipeline.
//
// Serialization format returned by Result.SerializeRows:
//
//	<index>\t<v0>\t<v1>...\n     one line per row
//	\n                            trailing empty line
//
// For three-axis results every line packs all contexts contiguously:
// the values of context 0 (Cols of them), then context 1, and so on.
//
// Engines must leave a Result immutable once Generate returns, so that
// SerializeRows may be called from several goroutines.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/orneryd/nclustgen/pkg/config"
	"github.com/orneryd/nclustgen/pkg/spec"
)

// Errors returned by engine helpers. Errors raised by a concrete engine are
// propagated unchanged.
var (
	ErrClusterCount       = errors.New("engine: cluster count mismatch")
	ErrClusterIndex       = errors.New("engine: cluster index out of range")
	ErrRowRange           = errors.New("engine: row range out of bounds")
	ErrUnsupportedVersion = errors.New("engine: unsupported specification version")
)

// Engine plants clusters and produces a matrix-shaped Result.
//
// Generate is a blocking call whose duration grows with the dataset size.
// Implementations should honor ctx where they can, but callers must not
// rely on cancellation.
type Engine interface {
	Generate(ctx context.Context, s *spec.Spec, shape Shape, nclusters int) (Result, error)
}

// Result is the engine-owned matrix handle.
type Result interface {
	// Dims is the dimensionality the result was generated for.
	Dims() config.Dimensionality
	Rows() int
	Cols() int
	// Contexts is the context count; two-axis results report 1.
	Contexts() int
	// SerializeRows returns count rows starting at row start. With
	// transposed set the roles of rows and columns are swapped.
	SerializeRows(count, start int, transposed bool) (string, error)
	// Clusters lists the planted clusters in generation order.
	Clusters() []Cluster
}

// Shape is the requested size of a dataset.
type Shape struct {
	Rows     int `json:"rows"`
	Cols     int `json:"cols"`
	Contexts int `json:"contexts,omitempty"`
}

// Validate checks the shape against the dimensionality. Two-axis shapes
// accept Contexts 0 or 1; three-axis shapes need Contexts > 0.
func (s Shape) Validate(dims config.Dimensionality) error {
	if s.Rows <= 0 || s.Cols <= 0 {
		return fmt.Errorf("%w: shape needs positive rows and cols, got %dx%d",
			config.ErrInvalidConfig, s.Rows, s.Cols)
	}
	switch dims {
	case config.Bicluster:
		if s.Contexts != 0 && s.Contexts != 1 {
			return fmt.Errorf("%w: two-axis shape cannot have %d contexts",
				config.ErrInvalidConfig, s.Contexts)
		}
	case config.Tricluster:
		if s.Contexts <= 0 {
			return fmt.Errorf("%w: three-axis shape needs positive contexts, got %d",
				config.ErrInvalidConfig, s.Contexts)
		}
	default:
		return fmt.Errorf("%w: dims must be 2 or 3, got %d", config.ErrInvalidConfig, dims)
	}
	return nil
}

// Normalize returns the shape with Contexts set to 1 for two-axis data.
func (s Shape) Normalize(dims config.Dimensionality) Shape {
	if dims == config.Bicluster {
		s.Contexts = 1
	}
	return s
}

// Cells returns rows*cols*contexts, treating a zero context count as 1.
func (s Shape) Cells() int64 {
	ctx := s.Contexts
	if ctx == 0 {
		ctx = 1
	}
	return int64(s.Rows) * int64(s.Cols) * int64(ctx)
}

// ShapeOf reports the shape of a result.
func ShapeOf(res Result) Shape {
	return Shape{Rows: res.Rows(), Cols: res.Cols(), Contexts: res.Contexts()}
}

// AxisSizes returns the axis sizes of res in cluster-coordinate order
// (rows, cols[, contexts]).
func AxisSizes(res Result) []int {
	sizes := []int{res.Rows(), res.Cols()}
	if res.Dims() == config.Tricluster {
		sizes = append(sizes, res.Contexts())
	}
	return sizes
}

// CheckRange validates a SerializeRows request against a row count.
func CheckRange(count, start, rows int) error {
	if count < 0 || start < 0 || start+count > rows {
		return fmt.Errorf("%w: rows [%d, %d) of %d", ErrRowRange, start, start+count, rows)
	}
	return nil
}
