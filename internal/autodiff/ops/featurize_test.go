package ops_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/ani/internal/autodiff/ops"
	"github.com/born-ml/ani/internal/basis"
	"github.com/born-ml/ani/internal/featurizer"
	"github.com/born-ml/ani/internal/gradcheck"
	"github.com/born-ml/ani/internal/layout"
	"github.com/born-ml/ani/internal/tensor"
)

func setup[T tensor.Float](t *testing.T, seed uint64) (*featurizer.Engine, *layout.Batch[T], ops.Inputs) {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed+1))
	b, err := gradcheck.RandomBatch[T](rng, 4, 1, 7)
	require.NoError(t, err)
	in, err := ops.FromBatch(b)
	require.NoError(t, err)
	return featurizer.New(basis.MustNew(basis.Default())), b, in
}

func TestFeaturizeMatchesEngine(t *testing.T) {
	t.Run("float32", func(t *testing.T) { testFeaturizeMatchesEngine[float32](t) })
	t.Run("float64", func(t *testing.T) { testFeaturizeMatchesEngine[float64](t) })
}

func testFeaturizeMatchesEngine[T tensor.Float](t *testing.T) {
	e, b, in := setup[T](t, 1)
	assert.Equal(t, tensor.DataTypeOf[T](), in.DType())

	out, err := ops.Featurize(e, in)
	require.NoError(t, err)
	want, err := featurizer.Featurize(e, b)
	require.NoError(t, err)

	for el, ft := range out {
		assert.Equal(t, tensor.Shape{int(b.ElementCounts[el]), e.FeatureSize()}, ft.Shape())
		assert.Equal(t, want[el], tensor.View[T](ft))
	}
}

func TestFeaturizeGradRoundTrip(t *testing.T) {
	e, b, in := setup[float64](t, 3)
	feats, err := ops.Featurize(e, in)
	require.NoError(t, err)

	xg, yg, zg, err := ops.FeaturizeGrad(e, in, feats)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{b.NumAtoms()}, xg.Shape())

	wx, wy, wz, err := featurizer.FeaturizeGrad(e, b, featurizer.Features[float64]{
		feats[0].AsFloat64(), feats[1].AsFloat64(), feats[2].AsFloat64(), feats[3].AsFloat64(),
	})
	require.NoError(t, err)
	assert.Equal(t, wx, xg.AsFloat64())
	assert.Equal(t, wy, yg.AsFloat64())
	assert.Equal(t, wz, zg.AsFloat64())

	inv, err := ops.FeaturizeGradInverse(e, in, xg, yg, zg)
	require.NoError(t, err)
	for el := range inv {
		assert.True(t, inv[el].Shape().Equal(feats[el].Shape()))
	}
}

func TestInputValidation(t *testing.T) {
	e, _, in := setup[float32](t, 5)
	n := in.Xs.NumElements()

	f64, err := tensor.FromSlice(make([]float64, n), tensor.Shape{n})
	require.NoError(t, err)
	f32, err := tensor.FromSlice(make([]float32, n), tensor.Shape{n})
	require.NoError(t, err)
	three, err := tensor.FromSlice([]int32{1, 2, 3}, tensor.Shape{3})
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(*ops.Inputs)
		want   error
	}{
		{"mixed coordinate dtypes", func(in *ops.Inputs) { in.Ys = f64 }, ops.ErrDType},
		{"float atom types", func(in *ops.Inputs) { in.AtomTypes = f32 }, ops.ErrDType},
		{"short element counts", func(in *ops.Inputs) { in.ElementCounts = three }, layout.ErrShapeMismatch},
		{"short scatter", func(in *ops.Inputs) { in.ScatterIdx = three }, layout.ErrShapeMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bad := in
			tc.mutate(&bad)
			_, err := ops.Featurize(e, bad)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("missing tensor", func(t *testing.T) {
		bad := in
		bad.MolOffsets = nil
		_, err := ops.Featurize(e, bad)
		assert.Error(t, err)
	})

	t.Run("feature gradient dtype", func(t *testing.T) {
		feats, err := ops.Featurize(e, in)
		require.NoError(t, err)
		feats[layout.H], err = tensor.NewRaw(feats[layout.H].Shape(), tensor.Float64, tensor.CPU)
		require.NoError(t, err)
		_, _, _, err = ops.FeaturizeGrad(e, in, feats)
		assert.ErrorIs(t, err, ops.ErrDType)
	})

	t.Run("coordinate gradient dtype", func(t *testing.T) {
		_, err := ops.FeaturizeGradInverse(e, in, f32, f32, f64)
		assert.ErrorIs(t, err, ops.ErrDType)
	})
}

func TestOutOfRangeScatter(t *testing.T) {
	e, b, _ := setup[float64](t, 7)
	b.ScatterIdx[0] = 99
	in, err := ops.FromBatch(b)
	require.NoError(t, err)
	_, err = ops.Featurize(e, in)
	assert.ErrorIs(t, err, layout.ErrIndexOutOfRange)
}

func TestFeaturizeOpBackward(t *testing.T) {
	e, _, in := setup[float64](t, 9)
	feats, err := ops.Featurize(e, in)
	require.NoError(t, err)

	op := ops.NewFeaturizeOp(e, in, feats)
	assert.Equal(t, []*tensor.RawTensor{in.Xs, in.Ys, in.Zs}, op.Inputs())
	assert.Len(t, op.Outputs(), layout.NumElements)

	grads, err := op.Backward(feats[:])
	require.NoError(t, err)
	require.Len(t, grads, 3)

	xg, _, _, err := ops.FeaturizeGrad(e, in, feats)
	require.NoError(t, err)
	assert.Equal(t, xg.AsFloat64(), grads[0].AsFloat64())
}

func TestFeaturizeGradOpBackward(t *testing.T) {
	e, _, in := setup[float32](t, 11)
	feats, err := ops.Featurize(e, in)
	require.NoError(t, err)
	xg, yg, zg, err := ops.FeaturizeGrad(e, in, feats)
	require.NoError(t, err)

	op := ops.NewFeaturizeGradOp(e, in, feats, xg, yg, zg)
	assert.Len(t, op.Inputs(), layout.NumElements)
	assert.Equal(t, []*tensor.RawTensor{xg, yg, zg}, op.Outputs())

	grads, err := op.Backward([]*tensor.RawTensor{xg, yg, zg})
	require.NoError(t, err)
	require.Len(t, grads, layout.NumElements)

	_, err = op.Backward([]*tensor.RawTensor{xg})
	assert.ErrorIs(t, err, layout.ErrShapeMismatch)
}
