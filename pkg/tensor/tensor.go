// Package tensor provides the dense and sparse numeric tensors produced by
// the materializers.
//
// Two-axis data has shape (rows, cols); three-axis data has shape
// (contexts, rows, cols). The row axis is therefore axis 0 for rank 2 and
// axis 1 for rank 3; RowAxis reports it.
//
// Dense keeps one gonum mat.Dense per context. Sparse is a coordinate list
// sorted by linear index that stores every non-zero cell, including NaN
// (missing) cells.
package tensor

import (
	"errors"
	"fmt"
	"math"
)

// Errors returned by tensor constructors and operations.
var (
	ErrShape = errors.New("tensor: invalid shape")
	ErrIndex = errors.New("tensor: index out of range")
)

// Tensor is the read-only view shared by Dense and Sparse.
type Tensor interface {
	Shape() []int
	At(idx ...int) float64
}

// RowAxis returns the row axis for a tensor of the given rank.
func RowAxis(rank int) int {
	if rank == 3 {
		return 1
	}
	return 0
}

// Size returns the number of cells of a shape.
func Size(shape []int) int64 {
	n := int64(1)
	for _, d := range shape {
		n *= int64(d)
	}
	return n
}

func checkShape(shape []int) error {
	if len(shape) != 2 && len(shape) != 3 {
		return fmt.Errorf("%w: rank %d, want 2 or 3", ErrShape, len(shape))
	}
	for _, d := range shape {
		if d <= 0 {
			return fmt.Errorf("%w: %v has a non-positive axis", ErrShape, shape)
		}
	}
	return nil
}

// linear maps a multi-index to a row-major linear index. It reports false
// for an index outside shape.
func linear(shape []int, idx []int) (int64, bool) {
	if len(idx) != len(shape) {
		return 0, false
	}
	var lin int64
	for a, i := range idx {
		if i < 0 || i >= shape[a] {
			return 0, false
		}
		lin = lin*int64(shape[a]) + int64(i)
	}
	return lin, true
}

// unlinear is the inverse of linear; it writes into idx.
func unlinear(shape []int, lin int64, idx []int) {
	for a := len(shape) - 1; a >= 0; a-- {
		d := int64(shape[a])
		idx[a] = int(lin % d)
		lin /= d
	}
}

// Equal reports whether two tensors have the same shape and the same value
// at every index. NaN compares equal to NaN.
func Equal(a, b Tensor) bool {
	sa, sb := a.Shape(), b.Shape()
	if len(sa) != len(sb) {
		return false
	}
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}

	idx := make([]int, len(sa))
	total := Size(sa)
	for lin := int64(0); lin < total; lin++ {
		unlinear(sa, lin, idx)
		va, vb := a.At(idx...), b.At(idx...)
		if va != vb && !(math.IsNaN(va) && math.IsNaN(vb)) {
			return false
		}
	}
	return true
}
