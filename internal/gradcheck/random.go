package gradcheck

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/born-ml/ani/internal/featurizer"
	"github.com/born-ml/ani/internal/layout"
	"github.com/born-ml/ani/internal/tensor"
)

// minSeparation keeps random atoms apart so no pair is near-coincident.
const minSeparation = 0.8

// elementWeights biases random molecules towards organic compositions.
var elementWeights = [layout.NumElements]float64{0.45, 0.35, 0.1, 0.1}

// RandomMolecules builds molecules with sizes drawn from sizes (one entry per
// molecule). Atoms are placed in a cube scaled so density stays roughly constant.
func RandomMolecules(rng *rand.Rand, sizes []int) []layout.Molecule {
	mols := make([]layout.Molecule, len(sizes))
	for m, n := range sizes {
		side := 1.6 * math.Cbrt(float64(max(n, 1)))
		atoms := make([]layout.Atom, 0, n)
		for len(atoms) < n {
			pos := [3]float64{rng.Float64() * side, rng.Float64() * side, rng.Float64() * side}
			if tooClose(atoms, pos) {
				side *= 1.01
				continue
			}
			atoms = append(atoms, layout.Atom{Element: randomElement(rng), Pos: pos})
		}
		mols[m] = layout.Molecule{Name: fmt.Sprintf("random-%d", m), Atoms: atoms}
	}
	return mols
}

// RandomBatch packs random molecules of the given sizes.
func RandomBatch[T tensor.Float](rng *rand.Rand, sizes ...int) (*layout.Batch[T], error) {
	return layout.Pack[T](RandomMolecules(rng, sizes))
}

// RandomSizes draws n molecule sizes in [lo, hi].
func RandomSizes(rng *rand.Rand, n, lo, hi int) []int {
	sizes := make([]int, n)
	for i := range sizes {
		sizes[i] = lo + rng.IntN(hi-lo+1)
	}
	return sizes
}

// RandomFeatures fills per-element buffers sized for plan with values in [-1, 1).
func RandomFeatures[T tensor.Float](rng *rand.Rand, plan *featurizer.Plan[T]) featurizer.Features[T] {
	out := plan.NewFeatures()
	for e := range out {
		for i := range out[e] {
			out[e][i] = T(2*rng.Float64() - 1)
		}
	}
	return out
}

// RandomVector returns n values in [-1, 1).
func RandomVector[T tensor.Float](rng *rand.Rand, n int) []T {
	v := make([]T, n)
	for i := range v {
		v[i] = T(2*rng.Float64() - 1)
	}
	return v
}

func tooClose(atoms []layout.Atom, pos [3]float64) bool {
	for _, a := range atoms {
		dx, dy, dz := a.Pos[0]-pos[0], a.Pos[1]-pos[1], a.Pos[2]-pos[2]
		if dx*dx+dy*dy+dz*dz < minSeparation*minSeparation {
			return true
		}
	}
	return false
}

func randomElement(rng *rand.Rand) layout.Element {
	x := rng.Float64()
	for e, w := range elementWeights {
		if x < w {
			return layout.Element(e)
		}
		x -= w
	}
	return layout.H
}
