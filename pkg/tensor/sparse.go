package tensor

import (
	"fmt"
	"sort"
)

// Sparse is a coordinate-list tensor. Only non-zero cells are stored,
// sorted by row-major linear index. NaN cells count as non-zero.
type Sparse struct {
	shape []int
	index []int64
	data  []float64
}

// NewSparse returns an empty (all-zero) sparse tensor.
func NewSparse(shape ...int) (*Sparse, error) {
	if err := checkShape(shape); err != nil {
		return nil, err
	}
	return &Sparse{shape: append([]int(nil), shape...)}, nil
}

// Rank returns 2 or 3.
func (s *Sparse) Rank() int { return len(s.shape) }

// Shape returns a copy of the tensor shape.
func (s *Sparse) Shape() []int { return append([]int(nil), s.shape...) }

// NNZ returns the number of stored cells.
func (s *Sparse) NNZ() int { return len(s.data) }

// Density returns NNZ divided by the number of cells.
func (s *Sparse) Density() float64 {
	return float64(len(s.data)) / float64(Size(s.shape))
}

// At returns the value at idx, or 0 for a cell that is not stored.
// It panics if idx is out of range.
func (s *Sparse) At(idx ...int) float64 {
	lin, ok := linear(s.shape, idx)
	if !ok {
		panic(fmt.Sprintf("%v: %v for shape %v", ErrIndex, idx, s.shape))
	}
	k := sort.Search(len(s.index), func(n int) bool { return s.index[n] >= lin })
	if k < len(s.index) && s.index[k] == lin {
		return s.data[k]
	}
	return 0
}

// Each calls fn for every stored cell in linear-index order. idx is reused
// between calls.
func (s *Sparse) Each(fn func(idx []int, v float64)) {
	idx := make([]int, len(s.shape))
	for k, lin := range s.index {
		unlinear(s.shape, lin, idx)
		fn(idx, s.data[k])
	}
}

// ToDense expands the tensor.
func (s *Sparse) ToDense() *Dense {
	d, err := NewDense(s.shape...)
	if err != nil {
		// shape was validated when s was built
		panic(err)
	}
	s.Each(func(idx []int, v float64) {
		d.Set(v, idx...)
	})
	return d
}

// Concat joins tensors along the row axis, in argument order. All parts
// must share rank and every non-row axis size.
func Concat(parts ...*Sparse) (*Sparse, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: nothing to concatenate", ErrShape)
	}

	rank := parts[0].Rank()
	axis := RowAxis(rank)
	shape := parts[0].Shape()
	shape[axis] = 0
	nnz := 0
	for n, p := range parts {
		if p.Rank() != rank {
			return nil, fmt.Errorf("%w: part %d has rank %d, want %d", ErrShape, n, p.Rank(), rank)
		}
		for a := range shape {
			if a != axis && p.shape[a] != shape[a] {
				return nil, fmt.Errorf("%w: part %d has shape %v, want %v off axis %d",
					ErrShape, n, p.shape, parts[0].shape, axis)
			}
		}
		shape[axis] += p.shape[axis]
		nnz += p.NNZ()
	}

	out := &Sparse{
		shape: shape,
		index: make([]int64, 0, nnz),
		data:  make([]float64, 0, nnz),
	}
	idx := make([]int, rank)
	offset := 0
	for _, p := range parts {
		for k, lin := range p.index {
			unlinear(p.shape, lin, idx)
			idx[axis] += offset
			l, _ := linear(shape, idx)
			out.index = append(out.index, l)
			out.data = append(out.data, p.data[k])
		}
		offset += p.shape[axis]
	}

	// Rank-2 parts arrive in order already; rank-3 parts interleave per context.
	if rank == 3 {
		sort.Sort(byIndex{out})
	}
	return out, nil
}

type byIndex struct{ s *Sparse }

func (b byIndex) Len() int           { return len(b.s.index) }
func (b byIndex) Less(i, j int) bool { return b.s.index[i] < b.s.index[j] }
func (b byIndex) Swap(i, j int) {
	b.s.index[i], b.s.index[j] = b.s.index[j], b.s.index[i]
	b.s.data[i], b.s.data[j] = b.s.data[j], b.s.data[i]
}
