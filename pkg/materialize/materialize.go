// Package materialize decodes an engine result into dense or sparse tensors.
//
// Dense requests the whole row range in one serialization call. Sparse walks
// the rows in bounded chunks (see Plan), decodes each chunk into a small
// dense block, converts it to sparse form and concatenates the chunks along
// the row axis, so the serialized text held at any time is bounded by the
// chunk size rather than the dataset size.
//
// Three-axis rows pack every context contiguously. Each decoded row is split
// into Contexts segments of Cols values, and segment z is written to context
// z of the (contexts, rows, cols) tensor.
//
// Both materializers produce value-equal tensors for the same result.
package materialize

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/orneryd/nclustgen/pkg/config"
	"github.com/orneryd/nclustgen/pkg/decode"
	"github.com/orneryd/nclustgen/pkg/engine"
	"github.com/orneryd/nclustgen/pkg/pool"
	"github.com/orneryd/nclustgen/pkg/tensor"
)

// DefaultChunkDivisor splits the row range into about ten chunks.
const DefaultChunkDivisor = 10

// Span is a contiguous row range.
type Span struct {
	Start int
	Count int
}

// End returns the first row after the span.
func (s Span) End() int { return s.Start + s.Count }

// Plan partitions rows into chunks of max(1, rows/divisor) rows. The last
// chunk holds whatever remains and is never empty. The spans cover every
// row exactly once, in order. A non-positive divisor selects
// DefaultChunkDivisor.
func Plan(rows, divisor int) []Span {
	if rows <= 0 {
		return nil
	}
	if divisor <= 0 {
		divisor = DefaultChunkDivisor
	}
	size := max(1, rows/divisor)

	spans := make([]Span, 0, (rows+size-1)/size)
	for start := 0; start < rows; start += size {
		spans = append(spans, Span{Start: start, Count: min(size, rows-start)})
	}
	return spans
}

// Options tunes the sparse materializer.
type Options struct {
	// ChunkDivisor is passed to Plan.
	ChunkDivisor int
	// Workers decodes up to this many chunks at once; values below 2 decode
	// sequentially.
	Workers int
}

// OptionsFrom reads Options from the materialize section of a configuration.
func OptionsFrom(cfg config.MaterializeConfig) Options {
	return Options{ChunkDivisor: cfg.ChunkDivisor, Workers: cfg.Workers}
}

// Shape returns the tensor shape of res: (rows, cols) for two axes,
// (contexts, rows, cols) for three.
func Shape(res engine.Result) []int {
	return shapeFor(res, res.Rows())
}

func shapeFor(res engine.Result, rows int) []int {
	if res.Dims() == config.Tricluster {
		return []int{res.Contexts(), rows, res.Cols()}
	}
	return []int{rows, res.Cols()}
}

// Dense decodes the whole result into a dense tensor.
func Dense(ctx context.Context, res engine.Result, dec *decode.Decoder) (*tensor.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return decodeBlock(res, dec, Span{Start: 0, Count: res.Rows()})
}

// Sparse decodes the result chunk by chunk into a sparse tensor. On the
// first failing chunk every decoded chunk is discarded and the error is
// returned.
func Sparse(ctx context.Context, res engine.Result, dec *decode.Decoder, opts Options) (*tensor.Sparse, error) {
	spans := Plan(res.Rows(), opts.ChunkDivisor)
	parts := make([]*tensor.Sparse, len(spans))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, opts.Workers))

	for k, span := range spans {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			block, err := decodeBlock(res, dec, span)
			if err != nil {
				return fmt.Errorf("chunk %d (rows %d-%d): %w", k, span.Start, span.End(), err)
			}
			parts[k] = block.Sparse()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return tensor.Concat(parts...)
}

// decodeBlock serializes span and decodes it into a dense block whose row
// axis has span.Count rows.
func decodeBlock(res engine.Result, dec *decode.Decoder, span Span) (*tensor.Dense, error) {
	block, err := tensor.NewDense(shapeFor(res, span.Count)...)
	if err != nil {
		return nil, err
	}

	text, err := res.SerializeRows(span.Count, span.Start, false)
	if err != nil {
		return nil, err
	}
	lines := decode.Lines(text)
	if len(lines) != span.Count {
		return nil, fmt.Errorf("%w: got %d rows, want %d", decode.ErrMalformed, len(lines), span.Count)
	}

	cols, contexts := res.Cols(), block.Contexts()
	width := cols * contexts

	row := pool.GetFloat64Slice()
	defer func() { pool.PutFloat64Slice(row) }()

	for i, line := range lines {
		row, err = dec.AppendRow(row[:0], line)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", span.Start+i, err)
		}
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d (%d contexts of %d)",
				decode.ErrMalformed, span.Start+i, len(row), width, contexts, cols)
		}
		for z := 0; z < contexts; z++ {
			block.SetRow(z, i, row[z*cols:(z+1)*cols])
		}
	}
	return block, nil
}
