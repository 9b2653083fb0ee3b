package featurizer

import (
	"time"

	"github.com/born-ml/ani/internal/basis"
	"github.com/born-ml/ani/internal/layout"
	"github.com/born-ml/ani/internal/parallel"
	"github.com/born-ml/ani/internal/tensor"
)

// forwardSink sums term values into the feature accumulator.
type forwardSink struct {
	acc []float64
}

func (f forwardSink) radial(_ int, ts []basis.RadialTerm) {
	for _, t := range ts {
		f.acc[t.Index] += t.Value
	}
}

func (f forwardSink) angular(_, _ int, ts []basis.AngularTerm) {
	for _, t := range ts {
		f.acc[t.Index] += t.Value
	}
}

// Featurize computes descriptors into freshly allocated buffers.
func (p *Plan[T]) Featurize() Features[T] {
	out := p.NewFeatures()
	p.featurize(out)
	return out
}

// FeaturizeInto computes descriptors into caller-provided buffers.
// Every row is overwritten.
func (p *Plan[T]) FeaturizeInto(out Features[T]) error {
	if err := layout.CheckRows(p.res, "feat", out, p.engine.FeatureSize()); err != nil {
		return err
	}
	p.featurize(out)
	return nil
}

func (p *Plan[T]) featurize(out Features[T]) {
	start := time.Now()
	e, b, r := p.engine, p.batch, p.res
	size := e.FeatureSize()

	// One unit of work per atom. Each atom owns exactly one output row.
	parallel.ForChunks(r.NumAtoms, func(lo, hi int) {
		s := newScratch(e.basis)
		sink := forwardSink{acc: s.acc}
		for i := lo; i < hi; i++ {
			s.resetAcc()
			visitAtom(e.basis, b, r, i, s, sink)
			storeRow(row(&out, r, i, size), s.acc)
		}
	}, e.cfg)

	e.logger.Debug("featurize", "atoms", r.NumAtoms, "molecules", len(r.Molecules),
		"dtype", tensor.DataTypeOf[T](), "feature_size", size, "elapsed", time.Since(start))
}
