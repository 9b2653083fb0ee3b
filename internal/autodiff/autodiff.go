// Package autodiff records featurizer calls on a GradientTape so that
// gradients can flow through them in reverse mode.
//
// Recording Featurize and then FeaturizeGrad yields the second-order path
// used for force matching: the backward pass of FeaturizeGrad is
// FeaturizeGradInverse, and the backward pass of Featurize is FeaturizeGrad.
//
// Usage:
//
//	f := autodiff.New(engine)
//	f.Tape().StartRecording()
//	feats, _ := f.Featurize(in)
//	xg, yg, zg, _ := f.FeaturizeGrad(in, weights)
//	grads, _ := f.Tape().Backward(map[*tensor.RawTensor]*tensor.RawTensor{xg: ux, yg: uy, zg: uz})
//	dWeightsH := grads[weights[layout.H]]
package autodiff

import (
	"github.com/born-ml/ani/internal/autodiff/ops"
	"github.com/born-ml/ani/internal/featurizer"
	"github.com/born-ml/ani/internal/tensor"
)

// Featurizer runs tensor-level featurizer operations and records them.
type Featurizer struct {
	engine *featurizer.Engine
	tape   *GradientTape
}

// New creates a Featurizer with an empty, non-recording tape.
func New(e *featurizer.Engine) *Featurizer {
	return &Featurizer{
		engine: e,
		tape:   NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control.
func (f *Featurizer) Tape() *GradientTape {
	return f.tape
}

// Engine returns the wrapped engine.
func (f *Featurizer) Engine() *featurizer.Engine {
	return f.engine
}

// Featurize computes per-element descriptors and records the operation.
func (f *Featurizer) Featurize(in ops.Inputs) (ops.Features, error) {
	out, err := ops.Featurize(f.engine, in)
	if err != nil {
		return ops.Features{}, err
	}
	f.tape.Record(ops.NewFeaturizeOp(f.engine, in, out))
	return out, nil
}

// FeaturizeGrad computes coordinate gradients and records the operation.
func (f *Featurizer) FeaturizeGrad(in ops.Inputs, featGrads ops.Features) (xg, yg, zg *tensor.RawTensor, err error) {
	xg, yg, zg, err = ops.FeaturizeGrad(f.engine, in, featGrads)
	if err != nil {
		return nil, nil, nil, err
	}
	f.tape.Record(ops.NewFeaturizeGradOp(f.engine, in, featGrads, xg, yg, zg))
	return xg, yg, zg, nil
}

// FeaturizeGradInverse computes per-element feature gradients. It is the
// backward pass of FeaturizeGrad and is not itself recorded.
func (f *Featurizer) FeaturizeGradInverse(in ops.Inputs, xg, yg, zg *tensor.RawTensor) (ops.Features, error) {
	return ops.FeaturizeGradInverse(f.engine, in, xg, yg, zg)
}
