package gradcheck

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/ani/internal/layout"
	"github.com/born-ml/ani/internal/tensor"
)

func TestRelErr(t *testing.T) {
	assert.Zero(t, RelErr(0, 0))
	assert.InDelta(t, 0.5, RelErr(1, 2), 1e-15)
	assert.InDelta(t, 2.0, RelErr(-1, 1), 1e-15)
}

func TestRandomMoleculesRespectSeparation(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	mols := RandomMolecules(rng, []int{1, 5, 20})
	require.Len(t, mols, 3)
	for m, mol := range mols {
		assert.Len(t, mol.Atoms, []int{1, 5, 20}[m])
		for i := range mol.Atoms {
			assert.True(t, mol.Atoms[i].Element.Valid())
			assert.False(t, tooClose(mol.Atoms[:i], mol.Atoms[i].Pos), "atom %d of molecule %d", i, m)
		}
	}
}

func TestRandomBatchIsDeterministic(t *testing.T) {
	a, err := RandomBatch[float64](rand.New(rand.NewPCG(9, 9)), 3, 4)
	require.NoError(t, err)
	b, err := RandomBatch[float64](rand.New(rand.NewPCG(9, 9)), 3, 4)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	_, err = layout.Resolve(a)
	assert.NoError(t, err)
}

func TestRandomSizesBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 3))
	for _, s := range RandomSizes(rng, 200, 2, 5) {
		assert.GreaterOrEqual(t, s, 2)
		assert.LessOrEqual(t, s, 5)
	}
}

func TestDefaultTolerance(t *testing.T) {
	f32 := DefaultTolerance(tensor.Float32)
	f64 := DefaultTolerance(tensor.Float64)
	assert.Greater(t, f32.Eps, f64.Eps)
	assert.Greater(t, f32.Inverse, f64.Inverse)
}

func TestReportString(t *testing.T) {
	r := newReport[float32]("grad/inverse", 3, 1, 1.5, 1e-4)
	assert.False(t, r.OK)
	assert.Equal(t, tensor.Float32, r.DType)
	assert.Contains(t, r.String(), "FAIL")
	assert.Contains(t, r.String(), "grad/inverse[float32]")
}
