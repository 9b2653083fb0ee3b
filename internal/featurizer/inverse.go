package featurizer

import (
	"time"

	"github.com/born-ml/ani/internal/basis"
	"github.com/born-ml/ani/internal/layout"
	"github.com/born-ml/ani/internal/parallel"
	"github.com/born-ml/ani/internal/tensor"
)

// inverseSink accumulates the directional derivative ∂G/∂r·v of every term.
type inverseSink[T tensor.Float] struct {
	acc        []float64
	xs, ys, zs []T
	vi         basis.Vec3 // direction at the central atom
}

func (s *inverseSink[T]) rel(j int) basis.Vec3 {
	return position(s.xs, s.ys, s.zs, j).Sub(s.vi)
}

func (s *inverseSink[T]) radial(j int, ts []basis.RadialTerm) {
	dv := s.rel(j)
	for _, t := range ts {
		s.acc[t.Index] += t.Grad.Dot(dv)
	}
}

func (s *inverseSink[T]) angular(j, k int, ts []basis.AngularTerm) {
	dj, dk := s.rel(j), s.rel(k)
	for _, t := range ts {
		s.acc[t.Index] += t.GradJ.Dot(dj) + t.GradK.Dot(dk)
	}
}

// GradInverse computes J·v into freshly allocated per-element buffers.
func (p *Plan[T]) GradInverse(xg, yg, zg []T) (Features[T], error) {
	out := p.NewFeatures()
	if err := p.GradInverseInto(xg, yg, zg, out); err != nil {
		return Features[T]{}, err
	}
	return out, nil
}

// GradInverseInto computes J·v into caller-provided per-element buffers.
// Every row is overwritten.
func (p *Plan[T]) GradInverseInto(xg, yg, zg []T, out Features[T]) error {
	if err := layout.CheckAtoms(p.res, "coord_grads", xg, yg, zg); err != nil {
		return err
	}
	if err := layout.CheckRows(p.res, "feat_grads", out, p.engine.FeatureSize()); err != nil {
		return err
	}

	start := time.Now()
	e, b, r := p.engine, p.batch, p.res
	size := e.FeatureSize()

	// One unit of work per atom; like the forward pass each atom owns one row.
	parallel.ForChunks(r.NumAtoms, func(lo, hi int) {
		s := newScratch(e.basis)
		sink := &inverseSink[T]{acc: s.acc, xs: xg, ys: yg, zs: zg}
		for i := lo; i < hi; i++ {
			s.resetAcc()
			sink.vi = position(xg, yg, zg, i)
			visitAtom(e.basis, b, r, i, s, sink)
			storeRow(row(&out, r, i, size), s.acc)
		}
	}, e.cfg)

	e.logger.Debug("featurize grad inverse", "atoms", r.NumAtoms, "molecules", len(r.Molecules),
		"dtype", tensor.DataTypeOf[T](), "elapsed", time.Since(start))
	return nil
}
