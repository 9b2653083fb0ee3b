package ops

import (
	"errors"
	"fmt"

	"github.com/born-ml/ani/internal/featurizer"
	"github.com/born-ml/ani/internal/layout"
	"github.com/born-ml/ani/internal/tensor"
)

// ErrDType is returned when an input tensor has the wrong data type or device.
var ErrDType = errors.New("dtype mismatch")

// Features holds one [count, feature_size] tensor per element class.
type Features [layout.NumElements]*tensor.RawTensor

// Inputs are the tensors of one featurizer call. Coordinates share one
// float dtype, index tensors are int32, and ElementCounts is a 4-entry
// int32 tensor in host memory.
type Inputs struct {
	Xs, Ys, Zs    *tensor.RawTensor
	AtomTypes     *tensor.RawTensor
	MolOffsets    *tensor.RawTensor
	MolAtomCounts *tensor.RawTensor
	ScatterIdx    *tensor.RawTensor
	ElementCounts *tensor.RawTensor
}

// FromBatch copies a batch into tensors.
func FromBatch[T tensor.Float](b *layout.Batch[T]) (Inputs, error) {
	var in Inputs
	var err error
	wrap := func(dst **tensor.RawTensor, f func() (*tensor.RawTensor, error)) {
		if err == nil {
			*dst, err = f()
		}
	}
	wrap(&in.Xs, func() (*tensor.RawTensor, error) { return tensor.FromSlice(b.Xs, tensor.Shape{len(b.Xs)}) })
	wrap(&in.Ys, func() (*tensor.RawTensor, error) { return tensor.FromSlice(b.Ys, tensor.Shape{len(b.Ys)}) })
	wrap(&in.Zs, func() (*tensor.RawTensor, error) { return tensor.FromSlice(b.Zs, tensor.Shape{len(b.Zs)}) })
	wrap(&in.AtomTypes, func() (*tensor.RawTensor, error) { return int32Tensor(b.AtomTypes) })
	wrap(&in.MolOffsets, func() (*tensor.RawTensor, error) { return int32Tensor(b.MolOffsets) })
	wrap(&in.MolAtomCounts, func() (*tensor.RawTensor, error) { return int32Tensor(b.MolAtomCounts) })
	wrap(&in.ScatterIdx, func() (*tensor.RawTensor, error) { return int32Tensor(b.ScatterIdx) })
	wrap(&in.ElementCounts, func() (*tensor.RawTensor, error) {
		counts := b.ElementCounts
		return int32Tensor(counts[:])
	})
	return in, err
}

func int32Tensor(v []int32) (*tensor.RawTensor, error) {
	return tensor.FromSlice(v, tensor.Shape{len(v)})
}

// DType returns the coordinate data type, which every float tensor of the
// call must share.
func (in Inputs) DType() tensor.DataType {
	return in.Xs.DType()
}

func (in Inputs) check() error {
	fields := []struct {
		name string
		t    *tensor.RawTensor
	}{
		{"xs", in.Xs}, {"ys", in.Ys}, {"zs", in.Zs},
		{"atom_types", in.AtomTypes}, {"mol_offsets", in.MolOffsets},
		{"mol_atom_counts", in.MolAtomCounts}, {"scatter_idxs", in.ScatterIdx},
		{"element_counts", in.ElementCounts},
	}
	for k, f := range fields {
		if f.t == nil {
			return fmt.Errorf("%s: missing tensor", f.name)
		}
		switch {
		case k < 3 && !f.t.DType().IsFloat():
			return fmt.Errorf("%s: %w: got %s, want float32 or float64", f.name, ErrDType, f.t.DType())
		case k < 3 && f.t.DType() != in.Xs.DType():
			return fmt.Errorf("%s: %w: got %s, xs is %s", f.name, ErrDType, f.t.DType(), in.Xs.DType())
		case k >= 3 && f.t.DType() != tensor.Int32:
			return fmt.Errorf("%s: %w: got %s, want int32", f.name, ErrDType, f.t.DType())
		}
	}
	if in.ElementCounts.Device() != tensor.CPU {
		return fmt.Errorf("element_counts: %w: must live in host memory, got %s", ErrDType, in.ElementCounts.Device())
	}
	if n := in.ElementCounts.NumElements(); n != layout.NumElements {
		return fmt.Errorf("element_counts: %w: %d entries, want %d", layout.ErrShapeMismatch, n, layout.NumElements)
	}
	return nil
}

func (in Inputs) checkFloat(name string, ts ...*tensor.RawTensor) error {
	for k, t := range ts {
		if t == nil {
			return fmt.Errorf("%s[%d]: missing tensor", name, k)
		}
		if t.DType() != in.DType() {
			return fmt.Errorf("%s[%d]: %w: got %s, coordinates are %s", name, k, ErrDType, t.DType(), in.DType())
		}
	}
	return nil
}

func batchOf[T tensor.Float](in Inputs) *layout.Batch[T] {
	b := &layout.Batch[T]{
		Xs:            tensor.View[T](in.Xs),
		Ys:            tensor.View[T](in.Ys),
		Zs:            tensor.View[T](in.Zs),
		AtomTypes:     in.AtomTypes.AsInt32(),
		MolOffsets:    in.MolOffsets.AsInt32(),
		MolAtomCounts: in.MolAtomCounts.AsInt32(),
		ScatterIdx:    in.ScatterIdx.AsInt32(),
	}
	copy(b.ElementCounts[:], in.ElementCounts.AsInt32())
	return b
}

func prepare[T tensor.Float](e *featurizer.Engine, in Inputs) (*featurizer.Plan[T], error) {
	return featurizer.Prepare(e, batchOf[T](in))
}

// newFeatures allocates the output tensors, sized from the host element counts.
func newFeatures(res *layout.Resolved, dtype tensor.DataType, size int) (Features, error) {
	var out Features
	for e := range out {
		t, err := tensor.NewRaw(tensor.Shape{res.ElementCounts[e], size}, dtype, tensor.CPU)
		if err != nil {
			return Features{}, err
		}
		out[e] = t
	}
	return out, nil
}

func views[T tensor.Float](f Features) featurizer.Features[T] {
	var out featurizer.Features[T]
	for e, t := range f {
		out[e] = tensor.View[T](t)
	}
	return out
}

// Featurize computes per-element descriptor tensors.
func Featurize(e *featurizer.Engine, in Inputs) (Features, error) {
	if err := in.check(); err != nil {
		return Features{}, err
	}
	switch in.DType() {
	case tensor.Float32:
		return featurize[float32](e, in)
	default:
		return featurize[float64](e, in)
	}
}

func featurize[T tensor.Float](e *featurizer.Engine, in Inputs) (Features, error) {
	plan, err := prepare[T](e, in)
	if err != nil {
		return Features{}, err
	}
	out, err := newFeatures(plan.Layout(), in.DType(), e.FeatureSize())
	if err != nil {
		return Features{}, err
	}
	if err := plan.FeaturizeInto(views[T](out)); err != nil {
		return Features{}, err
	}
	return out, nil
}

// FeaturizeGrad computes coordinate gradients from per-element feature gradients.
func FeaturizeGrad(e *featurizer.Engine, in Inputs, featGrads Features) (xg, yg, zg *tensor.RawTensor, err error) {
	if err := in.check(); err != nil {
		return nil, nil, nil, err
	}
	if err := in.checkFloat("feat_grads", featGrads[:]...); err != nil {
		return nil, nil, nil, err
	}
	switch in.DType() {
	case tensor.Float32:
		return featurizeGrad[float32](e, in, featGrads)
	default:
		return featurizeGrad[float64](e, in, featGrads)
	}
}

func featurizeGrad[T tensor.Float](e *featurizer.Engine, in Inputs, featGrads Features) (xg, yg, zg *tensor.RawTensor, err error) {
	plan, err := prepare[T](e, in)
	if err != nil {
		return nil, nil, nil, err
	}
	shape := tensor.Shape{plan.Layout().NumAtoms}
	var out [3]*tensor.RawTensor
	for k := range out {
		if out[k], err = tensor.NewRaw(shape, in.DType(), tensor.CPU); err != nil {
			return nil, nil, nil, err
		}
	}
	err = plan.GradInto(views[T](featGrads), tensor.View[T](out[0]), tensor.View[T](out[1]), tensor.View[T](out[2]))
	if err != nil {
		return nil, nil, nil, err
	}
	return out[0], out[1], out[2], nil
}

// FeaturizeGradInverse computes per-element feature gradients from coordinate gradients.
func FeaturizeGradInverse(e *featurizer.Engine, in Inputs, xg, yg, zg *tensor.RawTensor) (Features, error) {
	if err := in.check(); err != nil {
		return Features{}, err
	}
	if err := in.checkFloat("coord_grads", xg, yg, zg); err != nil {
		return Features{}, err
	}
	switch in.DType() {
	case tensor.Float32:
		return featurizeGradInverse[float32](e, in, xg, yg, zg)
	default:
		return featurizeGradInverse[float64](e, in, xg, yg, zg)
	}
}

func featurizeGradInverse[T tensor.Float](e *featurizer.Engine, in Inputs, xg, yg, zg *tensor.RawTensor) (Features, error) {
	plan, err := prepare[T](e, in)
	if err != nil {
		return Features{}, err
	}
	out, err := newFeatures(plan.Layout(), in.DType(), e.FeatureSize())
	if err != nil {
		return Features{}, err
	}
	err = plan.GradInverseInto(tensor.View[T](xg), tensor.View[T](yg), tensor.View[T](zg), views[T](out))
	if err != nil {
		return Features{}, err
	}
	return out, nil
}

// FeaturizeOp records a Featurize call.
// Inputs are the coordinate tensors; outputs are the four feature tensors.
type FeaturizeOp struct {
	engine *featurizer.Engine
	in     Inputs
	out    Features
}

// NewFeaturizeOp creates a new FeaturizeOp.
func NewFeaturizeOp(e *featurizer.Engine, in Inputs, out Features) *FeaturizeOp {
	return &FeaturizeOp{engine: e, in: in, out: out}
}

// Inputs returns [xs, ys, zs].
func (op *FeaturizeOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.in.Xs, op.in.Ys, op.in.Zs}
}

// Outputs returns the per-element feature tensors.
func (op *FeaturizeOp) Outputs() []*tensor.RawTensor {
	return op.out[:]
}

// Backward computes coordinate gradients: d(feat)/d(xyz)^T · grad.
func (op *FeaturizeOp) Backward(outputGrads []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	var g Features
	copy(g[:], outputGrads)
	xg, yg, zg, err := FeaturizeGrad(op.engine, op.in, g)
	if err != nil {
		return nil, fmt.Errorf("featurize backward: %w", err)
	}
	return []*tensor.RawTensor{xg, yg, zg}, nil
}

// FeaturizeGradOp records a FeaturizeGrad call.
// Inputs are the four feature-gradient tensors; outputs are the x/y/z
// coordinate gradients. The op is linear in its inputs, so its backward
// pass is FeaturizeGradInverse. Gradients with respect to the coordinates
// themselves are not propagated.
type FeaturizeGradOp struct {
	engine    *featurizer.Engine
	in        Inputs
	featGrads Features
	out       [3]*tensor.RawTensor
}

// NewFeaturizeGradOp creates a new FeaturizeGradOp.
func NewFeaturizeGradOp(e *featurizer.Engine, in Inputs, featGrads Features, xg, yg, zg *tensor.RawTensor) *FeaturizeGradOp {
	return &FeaturizeGradOp{engine: e, in: in, featGrads: featGrads, out: [3]*tensor.RawTensor{xg, yg, zg}}
}

// Inputs returns the per-element feature-gradient tensors.
func (op *FeaturizeGradOp) Inputs() []*tensor.RawTensor {
	return op.featGrads[:]
}

// Outputs returns [xg, yg, zg].
func (op *FeaturizeGradOp) Outputs() []*tensor.RawTensor {
	return op.out[:]
}

// Backward computes feature-gradient gradients: J · grad.
func (op *FeaturizeGradOp) Backward(outputGrads []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if len(outputGrads) != 3 {
		return nil, fmt.Errorf("featurize grad backward: %w: %d output gradients, want 3", layout.ErrShapeMismatch, len(outputGrads))
	}
	g, err := FeaturizeGradInverse(op.engine, op.in, outputGrads[0], outputGrads[1], outputGrads[2])
	if err != nil {
		return nil, fmt.Errorf("featurize grad backward: %w", err)
	}
	return g[:], nil
}
