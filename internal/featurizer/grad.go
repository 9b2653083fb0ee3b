package featurizer

import (
	"time"

	"github.com/born-ml/ani/internal/basis"
	"github.com/born-ml/ani/internal/layout"
	"github.com/born-ml/ani/internal/parallel"
	"github.com/born-ml/ani/internal/tensor"
)

// gradSink scatters g·∂G/∂r onto the atoms of one molecule.
// grad is indexed relative to the molecule offset.
type gradSink[T tensor.Float] struct {
	g      []T // feature gradient row of the central atom
	grad   []basis.Vec3
	offset int
	center int
}

func (s *gradSink[T]) radial(j int, ts []basis.RadialTerm) {
	var sum basis.Vec3
	for _, t := range ts {
		sum = sum.Add(t.Grad.Scale(float64(s.g[t.Index])))
	}
	s.grad[j-s.offset] = s.grad[j-s.offset].Add(sum)
	s.grad[s.center] = s.grad[s.center].Sub(sum)
}

func (s *gradSink[T]) angular(j, k int, ts []basis.AngularTerm) {
	var sj, sk basis.Vec3
	for _, t := range ts {
		w := float64(s.g[t.Index])
		sj = sj.Add(t.GradJ.Scale(w))
		sk = sk.Add(t.GradK.Scale(w))
	}
	s.grad[j-s.offset] = s.grad[j-s.offset].Add(sj)
	s.grad[k-s.offset] = s.grad[k-s.offset].Add(sk)
	s.grad[s.center] = s.grad[s.center].Sub(sj.Add(sk))
}

// Grad computes J^T·g into freshly allocated coordinate-gradient buffers.
func (p *Plan[T]) Grad(featGrads Features[T]) (xg, yg, zg []T, err error) {
	n := p.res.NumAtoms
	xg, yg, zg = make([]T, n), make([]T, n), make([]T, n)
	if err := p.GradInto(featGrads, xg, yg, zg); err != nil {
		return nil, nil, nil, err
	}
	return xg, yg, zg, nil
}

// GradInto computes J^T·g into caller-provided buffers of length NumAtoms.
// Every entry is overwritten.
func (p *Plan[T]) GradInto(featGrads Features[T], xg, yg, zg []T) error {
	if err := layout.CheckRows(p.res, "feat_grads", featGrads, p.engine.FeatureSize()); err != nil {
		return err
	}
	if err := layout.CheckAtoms(p.res, "coord_grads", xg, yg, zg); err != nil {
		return err
	}

	start := time.Now()
	e, b, r := p.engine, p.batch, p.res
	size := e.FeatureSize()

	// One unit of work per molecule. Every contribution of a molecule lands
	// inside its own atom range, so molecules never write the same entry.
	parallel.ForChunks(len(r.Molecules), func(lo, hi int) {
		s := newScratch(e.basis)
		for m := lo; m < hi; m++ {
			mol := r.Molecules[m]
			sink := &gradSink[T]{grad: s.molGrad(mol.Count), offset: mol.Offset}
			for i := mol.Offset; i < mol.End(); i++ {
				sink.g = row(&featGrads, r, i, size)
				sink.center = i - mol.Offset
				visitAtom(e.basis, b, r, i, s, sink)
			}
			for a, v := range sink.grad {
				xg[mol.Offset+a] = T(v[0])
				yg[mol.Offset+a] = T(v[1])
				zg[mol.Offset+a] = T(v[2])
			}
		}
	}, e.cfg)

	e.logger.Debug("featurize grad", "atoms", r.NumAtoms, "molecules", len(r.Molecules),
		"dtype", tensor.DataTypeOf[T](), "elapsed", time.Since(start))
	return nil
}
