package autodiff

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/ani/internal/autodiff/ops"
	"github.com/born-ml/ani/internal/basis"
	"github.com/born-ml/ani/internal/featurizer"
	"github.com/born-ml/ani/internal/gradcheck"
	"github.com/born-ml/ani/internal/layout"
	"github.com/born-ml/ani/internal/tensor"
)

type fixture struct {
	f   *Featurizer
	in  ops.Inputs
	n   int
	rng *rand.Rand
}

func newFixture(t *testing.T, seed uint64) *fixture {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, 99))
	b, err := gradcheck.RandomBatch[float64](rng, 5, 3, 6)
	require.NoError(t, err)
	in, err := ops.FromBatch(b)
	require.NoError(t, err)
	return &fixture{
		f:   New(featurizer.New(basis.MustNew(basis.Default()))),
		in:  in,
		n:   b.NumAtoms(),
		rng: rng,
	}
}

func (fx *fixture) randomLike(t *testing.T, ref *tensor.RawTensor) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.FromSlice(gradcheck.RandomVector[float64](fx.rng, ref.NumElements()), ref.Shape())
	require.NoError(t, err)
	return r
}

func (fx *fixture) randomFeatures(t *testing.T, like ops.Features) ops.Features {
	var out ops.Features
	for e := range like {
		out[e] = fx.randomLike(t, like[e])
	}
	return out
}

func dotFeatures(a, b ops.Features) float64 {
	var sum float64
	for e := range a {
		sum += floats.Dot(a[e].AsFloat64(), b[e].AsFloat64())
	}
	return sum
}

func TestTapeRecordsOnlyWhileRecording(t *testing.T) {
	fx := newFixture(t, 1)
	_, err := fx.f.Featurize(fx.in)
	require.NoError(t, err)
	assert.Equal(t, 0, fx.f.Tape().NumOps())

	fx.f.Tape().StartRecording()
	assert.True(t, fx.f.Tape().IsRecording())
	_, err = fx.f.Featurize(fx.in)
	require.NoError(t, err)
	assert.Equal(t, 1, fx.f.Tape().NumOps())

	fx.f.Tape().Clear()
	assert.Equal(t, 0, fx.f.Tape().NumOps())
	assert.True(t, fx.f.Tape().IsRecording())
}

func TestBackwardThroughFeaturize(t *testing.T) {
	fx := newFixture(t, 2)
	fx.f.Tape().StartRecording()
	feats, err := fx.f.Featurize(fx.in)
	require.NoError(t, err)

	g := fx.randomFeatures(t, feats)
	seeds := map[*tensor.RawTensor]*tensor.RawTensor{}
	for e := range feats {
		seeds[feats[e]] = g[e]
	}
	grads, err := fx.f.Tape().Backward(seeds)
	require.NoError(t, err)
	assert.True(t, fx.f.Tape().IsRecording(), "recording state restored")

	xg, yg, zg, err := ops.FeaturizeGrad(fx.f.Engine(), fx.in, g)
	require.NoError(t, err)
	assert.Equal(t, xg.AsFloat64(), grads[fx.in.Xs].AsFloat64())
	assert.Equal(t, yg.AsFloat64(), grads[fx.in.Ys].AsFloat64())
	assert.Equal(t, zg.AsFloat64(), grads[fx.in.Zs].AsFloat64())
}

// Force matching: differentiate a loss on the coordinate gradients with
// respect to the feature gradients that produced them.
func TestSecondOrderThroughFeaturizeGrad(t *testing.T) {
	fx := newFixture(t, 3)
	feats, err := fx.f.Featurize(fx.in)
	require.NoError(t, err)
	w := fx.randomFeatures(t, feats)

	fx.f.Tape().StartRecording()
	xg, yg, zg, err := fx.f.FeaturizeGrad(fx.in, w)
	require.NoError(t, err)

	ux, uy, uz := fx.randomLike(t, xg), fx.randomLike(t, yg), fx.randomLike(t, zg)
	grads, err := fx.f.Tape().Backward(map[*tensor.RawTensor]*tensor.RawTensor{xg: ux, yg: uy, zg: uz})
	require.NoError(t, err)

	var dw ops.Features
	for e := range w {
		require.Contains(t, grads, w[e])
		dw[e] = grads[w[e]]
	}

	// <u, J^T w> == <J u, w>
	lhs := floats.Dot(ux.AsFloat64(), xg.AsFloat64()) +
		floats.Dot(uy.AsFloat64(), yg.AsFloat64()) +
		floats.Dot(uz.AsFloat64(), zg.AsFloat64())
	rhs := dotFeatures(dw, w)
	assert.LessOrEqual(t, gradcheck.RelErr(lhs, rhs), 1e-10)
}

func TestBackwardThroughBothOps(t *testing.T) {
	fx := newFixture(t, 4)
	fx.f.Tape().StartRecording()
	feats, err := fx.f.Featurize(fx.in)
	require.NoError(t, err)
	xg, yg, zg, err := fx.f.FeaturizeGrad(fx.in, feats)
	require.NoError(t, err)
	require.Equal(t, 2, fx.f.Tape().NumOps())

	ux := fx.randomLike(t, xg)
	zero := func(ref *tensor.RawTensor) *tensor.RawTensor {
		z, err := tensor.NewRaw(ref.Shape(), ref.DType(), ref.Device())
		require.NoError(t, err)
		return z
	}
	grads, err := fx.f.Tape().Backward(map[*tensor.RawTensor]*tensor.RawTensor{xg: ux})
	require.NoError(t, err)

	// The path reaches the coordinates through the features: J^T (J u).
	ju, err := ops.FeaturizeGradInverse(fx.f.Engine(), fx.in, ux, zero(yg), zero(zg))
	require.NoError(t, err)
	wantX, _, _, err := ops.FeaturizeGrad(fx.f.Engine(), fx.in, ju)
	require.NoError(t, err)
	assert.InDeltaSlice(t, wantX.AsFloat64(), grads[fx.in.Xs].AsFloat64(), 1e-12)

	// <u, J^T J u> = |J u|^2 >= 0
	quad := floats.Dot(ux.AsFloat64(), grads[fx.in.Xs].AsFloat64())
	assert.InDelta(t, dotFeatures(ju, ju), quad, 1e-9*(1+quad))
	assert.GreaterOrEqual(t, quad, 0.0)
}

func TestBackwardAccumulatesSharedInputs(t *testing.T) {
	fx := newFixture(t, 5)
	fx.f.Tape().StartRecording()
	a, err := fx.f.Featurize(fx.in)
	require.NoError(t, err)
	b, err := fx.f.Featurize(fx.in)
	require.NoError(t, err)

	g := fx.randomFeatures(t, a)
	seeds := map[*tensor.RawTensor]*tensor.RawTensor{}
	for e := range a {
		seeds[a[e]] = g[e]
		seeds[b[e]] = g[e]
	}
	before := g[layout.H].Clone()

	grads, err := fx.f.Tape().Backward(seeds)
	require.NoError(t, err)

	single, _, _, err := ops.FeaturizeGrad(fx.f.Engine(), fx.in, g)
	require.NoError(t, err)
	want := single.AsFloat64()
	floats.Scale(2, want)
	assert.InDeltaSlice(t, want, grads[fx.in.Xs].AsFloat64(), 1e-12)
	assert.Equal(t, before.AsFloat64(), g[layout.H].AsFloat64(), "seeds must not be modified")
}

func TestBackwardFillsMissingOutputGrads(t *testing.T) {
	fx := newFixture(t, 6)
	fx.f.Tape().StartRecording()
	feats, err := fx.f.Featurize(fx.in)
	require.NoError(t, err)

	gh := fx.randomLike(t, feats[layout.H])
	grads, err := fx.f.Tape().Backward(map[*tensor.RawTensor]*tensor.RawTensor{feats[layout.H]: gh})
	require.NoError(t, err)

	var g ops.Features
	g[layout.H] = gh
	for _, e := range []layout.Element{layout.C, layout.N, layout.O} {
		g[e], err = tensor.NewRaw(feats[e].Shape(), tensor.Float64, tensor.CPU)
		require.NoError(t, err)
	}
	want, _, _, err := ops.FeaturizeGrad(fx.f.Engine(), fx.in, g)
	require.NoError(t, err)
	assert.Equal(t, want.AsFloat64(), grads[fx.in.Xs].AsFloat64())
}

func TestBackwardRejectsMismatchedSeed(t *testing.T) {
	fx := newFixture(t, 7)
	fx.f.Tape().StartRecording()
	feats, err := fx.f.Featurize(fx.in)
	require.NoError(t, err)

	wrong, err := tensor.NewRaw(tensor.Shape{1}, tensor.Float64, tensor.CPU)
	require.NoError(t, err)
	_, err = fx.f.Tape().Backward(map[*tensor.RawTensor]*tensor.RawTensor{feats[layout.H]: wrong})
	assert.Error(t, err)
	_, err = fx.f.Tape().Backward(map[*tensor.RawTensor]*tensor.RawTensor{feats[layout.H]: nil})
	assert.Error(t, err)
}

func TestBackwardEmptyTape(t *testing.T) {
	tape := NewGradientTape()
	grads, err := tape.Backward(nil)
	require.NoError(t, err)
	assert.Empty(t, grads)
}
