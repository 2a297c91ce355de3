package synthetic

import (
	"math"
	"math/rand/v2"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/orneryd/nclustgen/pkg/config"
	"github.com/orneryd/nclustgen/pkg/engine"
	"github.com/orneryd/nclustgen/pkg/spec"
)

type planter struct {
	spec *spec.Spec
	rng  *rand.Rand
	m    *matrix
	// usedRows tracks rows already taken when clusters must not overlap.
	usedRows *roaring.Bitmap
}

func (p *planter) symbolic() bool {
	return len(p.m.symbols) > 0
}

// domain returns the inclusive value range cells are drawn from.
func (p *planter) domain() (float64, float64) {
	if p.symbolic() {
		return 0, float64(len(p.m.symbols) - 1)
	}
	return p.spec.Values.Min, p.spec.Values.Max
}

func (p *planter) quantize(v float64) float64 {
	lo, hi := p.domain()
	if p.symbolic() {
		n := float64(len(p.m.symbols))
		v = math.Mod(math.Round(v), n)
		if v < 0 {
			v += n
		}
		return v
	}
	v = math.Max(lo, math.Min(hi, v))
	if p.m.real {
		return math.Round(v*100) / 100
	}
	return math.Round(v)
}

func (p *planter) uniform() float64 {
	lo, hi := p.domain()
	if p.symbolic() {
		return float64(p.rng.IntN(len(p.m.symbols)))
	}
	return lo + p.rng.Float64()*(hi-lo)
}

func (p *planter) fillBackground() {
	bg := p.spec.Background
	for i := range p.m.values {
		var v float64
		switch bg.Kind {
		case config.BackgroundMissing:
			p.m.values[i] = math.NaN()
			continue
		case config.BackgroundNormal:
			v = bg.Mean + bg.Sdev*p.rng.NormFloat64()
		case config.BackgroundDiscrete:
			v = p.discrete(bg.Probabilities)
		default:
			v = p.uniform()
		}
		p.m.values[i] = p.quantize(v)
	}
}

// discrete samples a symbol index from probabilities. Without a usable
// probability vector it falls back to a uniform draw.
func (p *planter) discrete(probs []float64) float64 {
	if !p.symbolic() || len(probs) != len(p.m.symbols) {
		return p.uniform()
	}
	r := p.rng.Float64()
	acc := 0.0
	for i, pr := range probs {
		acc += pr
		if r < acc {
			return float64(i)
		}
	}
	return float64(len(probs) - 1)
}

func (p *planter) axisSize(axis int) int {
	switch axis {
	case 0:
		return p.m.rows
	case 1:
		return p.m.cols
	}
	return p.m.ctxs
}

func (p *planter) clusterSize(axis int) int {
	size := p.axisSize(axis)
	st := p.spec.Structure.Axes[axis]

	var k int
	switch st.Distribution {
	case config.DistributionNormal:
		k = int(math.Round(st.P1 + st.P2*p.rng.NormFloat64()))
	default:
		lo, hi := int(st.P1), int(st.P2)
		if hi < lo {
			lo, hi = hi, lo
		}
		k = lo + p.rng.IntN(hi-lo+1)
	}
	return max(1, min(k, size))
}

func (p *planter) contiguous(axis int) bool {
	switch p.spec.Structure.Contiguity {
	case config.ContiguityColumns:
		return axis == 1
	case config.ContiguityContexts:
		return axis == 2
	}
	return false
}

func (p *planter) pickCluster() engine.Cluster {
	n := int(p.spec.Dims)
	axes := make([][]int, n)
	for axis := 0; axis < n; axis++ {
		size := p.axisSize(axis)
		k := p.clusterSize(axis)

		switch {
		case p.contiguous(axis):
			start := p.rng.IntN(size - k + 1)
			idx := make([]int, k)
			for i := range idx {
				idx[i] = start + i
			}
			axes[axis] = idx
		case axis == 0 && p.spec.Overlap.Plaid == config.PlaidNoOverlapping:
			axes[axis] = p.freeRows(k)
		default:
			axes[axis] = p.rng.Perm(size)[:k]
		}
	}
	return engine.NewCluster(axes...)
}

// freeRows picks k rows not used by earlier clusters, topping up with used
// rows when too few remain.
func (p *planter) freeRows(k int) []int {
	if p.usedRows == nil {
		p.usedRows = roaring.New()
	}
	var free, used []int
	for _, r := range p.rng.Perm(p.m.rows) {
		if p.usedRows.Contains(uint32(r)) {
			used = append(used, r)
		} else {
			free = append(free, r)
		}
	}
	picked := append(free, used...)[:k]
	for _, r := range picked {
		p.usedRows.Add(uint32(r))
	}
	return picked
}

// plant writes a pattern into the cluster block. Each axis contributes a
// per-index term: CONSTANT none, ADDITIVE and NONE a shift, MULTIPLICATIVE
// a factor, ORDER_PRESERVING an increasing shift.
func (p *planter) plant(c engine.Cluster, pattern spec.Pattern) {
	lo, hi := p.domain()
	spread := (hi - lo) / 10
	base := p.uniform()

	shifts := make([][]float64, len(c.Axes))
	factors := make([][]float64, len(c.Axes))
	for axis, idx := range c.Axes {
		shifts[axis] = make([]float64, len(idx))
		factors[axis] = make([]float64, len(idx))
		kind := config.PatternConstant
		if axis < len(pattern.Types) {
			kind = pattern.Types[axis]
		}
		for k := range idx {
			factors[axis][k] = 1
			switch kind {
			case config.PatternAdditive, config.PatternNone:
				shifts[axis][k] = (p.rng.Float64()*2 - 1) * spread
			case config.PatternMultiplicative:
				factors[axis][k] = 0.5 + p.rng.Float64()
			case config.PatternOrderPreserving:
				shifts[axis][k] = float64(k) * spread / float64(len(idx))
			}
		}
	}

	ctxs := []int{0}
	if len(c.Axes) == 3 {
		ctxs = c.Axes[2]
	}
	for zk, z := range ctxs {
		for ik, i := range c.Axes[0] {
			for jk, j := range c.Axes[1] {
				shift := shifts[0][ik] + shifts[1][jk]
				factor := factors[0][ik] * factors[1][jk]
				if len(c.Axes) == 3 {
					shift += shifts[2][zk]
					factor *= factors[2][zk]
				}
				p.m.set(z, i, j, p.quantize((base+shift)*factor))
			}
		}
	}
}

// dropMissing replaces a fraction of background and cluster cells with
// missing values.
func (p *planter) dropMissing() {
	q := p.spec.Quality
	if q.MissingBackground <= 0 && q.MissingClusters <= 0 {
		return
	}

	member := make([]bool, len(p.m.values))
	for _, c := range p.m.clusters {
		ctxs := []int{0}
		if len(c.Axes) == 3 {
			ctxs = c.Axes[2]
		}
		for _, z := range ctxs {
			for _, i := range c.Axes[0] {
				for _, j := range c.Axes[1] {
					member[(z*p.m.rows+i)*p.m.cols+j] = true
				}
			}
		}
	}

	for i := range p.m.values {
		rate := q.MissingBackground
		if member[i] {
			rate = q.MissingClusters
		}
		if rate > 0 && p.rng.Float64() < rate {
			p.m.values[i] = math.NaN()
		}
	}
}
