package featurizer

import (
	"github.com/born-ml/ani/internal/basis"
	"github.com/born-ml/ani/internal/layout"
	"github.com/born-ml/ani/internal/tensor"
)

// neighbor is an atom inside the angular cutoff of the central atom.
type neighbor struct {
	idx int
	el  layout.Element
	d   basis.Vec3 // r_j - r_i
}

// scratch is per-goroutine working memory, reused across atoms of one chunk.
type scratch struct {
	acc     []float64
	grad    []basis.Vec3
	radial  []basis.RadialTerm
	angular []basis.AngularTerm
	neigh   []neighbor
}

func newScratch(b *basis.Basis) *scratch {
	return &scratch{
		acc:     make([]float64, b.FeatureSize()),
		radial:  make([]basis.RadialTerm, 0, b.NumRadial()),
		angular: make([]basis.AngularTerm, 0, b.NumAngular()),
	}
}

// resetAcc zeroes the feature accumulator.
func (s *scratch) resetAcc() {
	clear(s.acc)
}

// molGrad returns a zeroed per-atom gradient accumulator for n atoms.
func (s *scratch) molGrad(n int) []basis.Vec3 {
	if cap(s.grad) < n {
		s.grad = make([]basis.Vec3, n)
	}
	s.grad = s.grad[:n]
	clear(s.grad)
	return s.grad
}

func position[T tensor.Float](xs, ys, zs []T, i int) basis.Vec3 {
	return basis.Vec3{float64(xs[i]), float64(ys[i]), float64(zs[i])}
}

// terms receives the basis terms of one central atom.
// Radial terms belong to pair (i, j), angular terms to triple (i, j, k) with j < k.
type terms interface {
	radial(j int, ts []basis.RadialTerm)
	angular(j, k int, ts []basis.AngularTerm)
}

// visitAtom enumerates every term of atom i's descriptor. Only atoms of i's
// own molecule are read, and i itself contributes nothing.
// Enumeration order is fixed: ascending j, then ascending (j, k).
func visitAtom[T tensor.Float](bs *basis.Basis, b *layout.Batch[T], r *layout.Resolved, i int, s *scratch, sink terms) {
	mol := r.MoleculeOf(i)
	ri := position(b.Xs, b.Ys, b.Zs, i)

	s.neigh = s.neigh[:0]
	for j := mol.Offset; j < mol.End(); j++ {
		if j == i {
			continue
		}
		d := position(b.Xs, b.Ys, b.Zs, j).Sub(ri)
		ej := r.Type(j)
		s.radial = bs.RadialTerms(d, ej, s.radial)
		if len(s.radial) > 0 {
			sink.radial(j, s.radial)
		}
		if bs.InAngularRange(d.Norm()) {
			s.neigh = append(s.neigh, neighbor{idx: j, el: ej, d: d})
		}
	}

	for a := 0; a < len(s.neigh); a++ {
		nj := s.neigh[a]
		for c := a + 1; c < len(s.neigh); c++ {
			nk := s.neigh[c]
			s.angular = bs.AngularTerms(nj.d, nk.d, nj.el, nk.el, s.angular)
			if len(s.angular) > 0 {
				sink.angular(nj.idx, nk.idx, s.angular)
			}
		}
	}
}

// row returns the output row of atom i inside its element buffer.
func row[T tensor.Float](bufs *Features[T], r *layout.Resolved, i, size int) []T {
	e, k := r.Slot(i)
	return bufs[e][k*size : (k+1)*size]
}

// storeRow converts the accumulator into the atom's output row.
func storeRow[T tensor.Float](dst []T, acc []float64) {
	for f, v := range acc {
		dst[f] = T(v)
	}
}
