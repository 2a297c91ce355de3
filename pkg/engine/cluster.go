package engine

import (
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
)

// Cluster is one planted cluster: a sorted index list per axis, ordered
// rows, cols[, contexts].
type Cluster struct {
	Axes [][]int `json:"axes"`
}

// NewCluster builds a cluster from per-axis index lists. The lists are
// copied, sorted and deduplicated.
func NewCluster(axes ...[]int) Cluster {
	c := Cluster{Axes: make([][]int, len(axes))}
	for i, idx := range axes {
		sorted := append([]int(nil), idx...)
		sort.Ints(sorted)
		out := sorted[:0]
		for k, v := range sorted {
			if k == 0 || v != sorted[k-1] {
				out = append(out, v)
			}
		}
		c.Axes[i] = out
	}
	return c
}

// Rows returns the row indices.
func (c Cluster) Rows() []int { return c.axis(0) }

// Cols returns the column indices.
func (c Cluster) Cols() []int { return c.axis(1) }

// Contexts returns the context indices, or nil for two-axis clusters.
func (c Cluster) Contexts() []int { return c.axis(2) }

func (c Cluster) axis(i int) []int {
	if i >= len(c.Axes) {
		return nil
	}
	return c.Axes[i]
}

// Bitmap returns the indices along axis as a roaring bitmap.
func (c Cluster) Bitmap(axis int) *roaring.Bitmap {
	rb := roaring.New()
	for _, idx := range c.axis(axis) {
		rb.Add(uint32(idx))
	}
	return rb
}

// Size returns the number of cells covered by the cluster.
func (c Cluster) Size() int {
	if len(c.Axes) == 0 {
		return 0
	}
	n := 1
	for _, idx := range c.Axes {
		n *= len(idx)
	}
	return n
}

// CheckClusters verifies the cluster-count contract of a result: exactly
// want clusters, each with one index list per axis and every index inside
// [0, axis size) at most once.
func CheckClusters(res Result, want int) error {
	clusters := res.Clusters()
	if len(clusters) != want {
		return fmt.Errorf("%w: got %d clusters, requested %d", ErrClusterCount, len(clusters), want)
	}

	sizes := AxisSizes(res)
	for n, c := range clusters {
		if len(c.Axes) != len(sizes) {
			return fmt.Errorf("%w: cluster %d has %d axes, want %d", ErrClusterIndex, n, len(c.Axes), len(sizes))
		}
		for axis, idx := range c.Axes {
			seen := roaring.New()
			for _, i := range idx {
				if i < 0 || i >= sizes[axis] {
					return fmt.Errorf("%w: cluster %d axis %d index %d not in [0, %d)",
						ErrClusterIndex, n, axis, i, sizes[axis])
				}
				if !seen.CheckedAdd(uint32(i)) {
					return fmt.Errorf("%w: cluster %d axis %d repeats index %d",
						ErrClusterIndex, n, axis, i)
				}
			}
		}
	}
	return nil
}

// Overlaps reports whether two clusters share at least one cell.
func Overlaps(a, b Cluster) bool {
	if len(a.Axes) != len(b.Axes) || len(a.Axes) == 0 {
		return false
	}
	for axis := range a.Axes {
		if !a.Bitmap(axis).Intersects(b.Bitmap(axis)) {
			return false
		}
	}
	return true
}

// OverlappingPairs returns the number of cluster pairs sharing at least one
// cell.
func OverlappingPairs(clusters []Cluster) int {
	n := 0
	for a := range clusters {
		for b := a + 1; b < len(clusters); b++ {
			if Overlaps(clusters[a], clusters[b]) {
				n++
			}
		}
	}
	return n
}
