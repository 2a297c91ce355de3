package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Dense is a rank 2 or rank 3 dense tensor.
//
// A rank-3 tensor of shape (contexts, rows, cols) holds one rows x cols
// matrix per context; a rank-2 tensor holds a single matrix.
type Dense struct {
	shape  []int
	slices []*mat.Dense
}

// NewDense allocates a zero tensor of shape (rows, cols) or
// (contexts, rows, cols).
func NewDense(shape ...int) (*Dense, error) {
	if err := checkShape(shape); err != nil {
		return nil, err
	}
	d := &Dense{shape: append([]int(nil), shape...)}
	rows, cols := d.Rows(), d.Cols()
	d.slices = make([]*mat.Dense, d.Contexts())
	for z := range d.slices {
		d.slices[z] = mat.NewDense(rows, cols, nil)
	}
	return d, nil
}

// Rank returns 2 or 3.
func (d *Dense) Rank() int { return len(d.shape) }

// Shape returns a copy of the tensor shape.
func (d *Dense) Shape() []int { return append([]int(nil), d.shape...) }

// Rows returns the size of the row axis.
func (d *Dense) Rows() int { return d.shape[RowAxis(d.Rank())] }

// Cols returns the size of the column axis.
func (d *Dense) Cols() int { return d.shape[len(d.shape)-1] }

// Contexts returns the size of the context axis, or 1 for rank 2.
func (d *Dense) Contexts() int {
	if d.Rank() == 3 {
		return d.shape[0]
	}
	return 1
}

// Slice returns the rows x cols matrix of context z. The matrix shares
// storage with the tensor. For rank 2, z must be 0.
func (d *Dense) Slice(z int) *mat.Dense {
	return d.slices[z]
}

// At returns the value at idx: (i, j) for rank 2, (z, i, j) for rank 3.
// It panics if idx is out of range.
func (d *Dense) At(idx ...int) float64 {
	z, i, j := d.split(idx)
	return d.slices[z].At(i, j)
}

// Set stores v at idx. It panics if idx is out of range.
func (d *Dense) Set(v float64, idx ...int) {
	z, i, j := d.split(idx)
	d.slices[z].Set(i, j, v)
}

func (d *Dense) split(idx []int) (int, int, int) {
	if _, ok := linear(d.shape, idx); !ok {
		panic(fmt.Sprintf("%v: %v for shape %v", ErrIndex, idx, d.shape))
	}
	if d.Rank() == 3 {
		return idx[0], idx[1], idx[2]
	}
	return 0, idx[0], idx[1]
}

// SetRow copies the values of row i in context z from src.
func (d *Dense) SetRow(z, i int, src []float64) {
	d.slices[z].SetRow(i, src)
}

// SizeBytes returns the memory held by the tensor values.
func (d *Dense) SizeBytes() int64 {
	return Size(d.shape) * 8
}

// Each calls fn for every cell in row-major order over (z, i, j).
// z is always 0 for rank 2.
func (d *Dense) Each(fn func(z, i, j int, v float64)) {
	rows, cols := d.Rows(), d.Cols()
	for z, m := range d.slices {
		raw := m.RawMatrix()
		for i := 0; i < rows; i++ {
			row := raw.Data[i*raw.Stride : i*raw.Stride+cols]
			for j, v := range row {
				fn(z, i, j, v)
			}
		}
	}
}

// Sparse converts the tensor to its sparse form.
func (d *Dense) Sparse() *Sparse {
	s := &Sparse{shape: d.Shape()}
	var lin int64
	d.Each(func(_, _, _ int, v float64) {
		if v != 0 {
			s.index = append(s.index, lin)
			s.data = append(s.data, v)
		}
		lin++
	})
	return s
}
