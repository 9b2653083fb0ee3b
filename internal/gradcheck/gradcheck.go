// Package gradcheck verifies the adjoint identities between the featurizer kernels:
//
//	<F(c+εδ) - F(c-εδ), g> / 2ε  ≈  <δ, FeaturizeGrad(c, g)>
//	<FeaturizeGrad(c, g), v>      =  <g, FeaturizeGradInverse(c, v)>
package gradcheck

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/ani/internal/featurizer"
	"github.com/born-ml/ani/internal/layout"
	"github.com/born-ml/ani/internal/tensor"
)

// Tolerance configures one check.
type Tolerance struct {
	Eps     float64 // finite-difference step along δ
	Forward float64 // max relative error of the forward/VJP identity
	Inverse float64 // max relative error of the VJP/inverse identity
}

// DefaultTolerance returns tolerances suited to the numeric type.
func DefaultTolerance(dt tensor.DataType) Tolerance {
	if dt == tensor.Float32 {
		return Tolerance{Eps: 1e-2, Forward: 2e-2, Inverse: 1e-4}
	}
	return Tolerance{Eps: 1e-5, Forward: 1e-6, Inverse: 1e-10}
}

// Report is the outcome of one identity check.
type Report struct {
	Name   string
	DType  tensor.DataType
	Atoms  int
	LHS    float64
	RHS    float64
	RelErr float64
	Tol    float64
	OK     bool
}

func (r Report) String() string {
	status := "ok"
	if !r.OK {
		status = "FAIL"
	}
	return fmt.Sprintf("%s[%s] lhs=%.10g rhs=%.10g rel=%.3g tol=%.3g %s",
		r.Name, r.DType, r.LHS, r.RHS, r.RelErr, r.Tol, status)
}

func newReport[T tensor.Float](name string, atoms int, lhs, rhs, tol float64) Report {
	rel := RelErr(lhs, rhs)
	return Report{
		Name:   name,
		DType:  tensor.DataTypeOf[T](),
		Atoms:  atoms,
		LHS:    lhs,
		RHS:    rhs,
		RelErr: rel,
		Tol:    tol,
		OK:     rel <= tol,
	}
}

// RelErr is |a-b| / max(|a|, |b|), and 0 when both are zero.
func RelErr(a, b float64) float64 {
	scale := math.Max(math.Abs(a), math.Abs(b))
	if scale == 0 {
		return 0
	}
	return math.Abs(a-b) / scale
}

// CheckForward compares a central finite difference of Featurize along a
// random direction δ with <δ, FeaturizeGrad(g)> for a random g.
func CheckForward[T tensor.Float](e *featurizer.Engine, b *layout.Batch[T], rng *rand.Rand, tol Tolerance) (Report, error) {
	plan, err := featurizer.Prepare(e, b)
	if err != nil {
		return Report{}, err
	}
	n := b.NumAtoms()
	g := RandomFeatures(rng, plan)
	dx, dy, dz := RandomVector[T](rng, n), RandomVector[T](rng, n), RandomVector[T](rng, n)

	xg, yg, zg, err := plan.Grad(g)
	if err != nil {
		return Report{}, err
	}
	analytic := DotCoords(dx, dy, dz, xg, yg, zg)

	plus, err := featurizeShifted(e, b, dx, dy, dz, tol.Eps)
	if err != nil {
		return Report{}, err
	}
	minus, err := featurizeShifted(e, b, dx, dy, dz, -tol.Eps)
	if err != nil {
		return Report{}, err
	}
	numeric := (DotFeatures(plus, g) - DotFeatures(minus, g)) / (2 * tol.Eps)

	return newReport[T]("forward/grad", n, numeric, analytic, tol.Forward), nil
}

// CheckInverse compares <FeaturizeGrad(g), v> with <g, FeaturizeGradInverse(v)>
// for random g and v.
func CheckInverse[T tensor.Float](e *featurizer.Engine, b *layout.Batch[T], rng *rand.Rand, tol Tolerance) (Report, error) {
	plan, err := featurizer.Prepare(e, b)
	if err != nil {
		return Report{}, err
	}
	n := b.NumAtoms()
	g := RandomFeatures(rng, plan)
	vx, vy, vz := RandomVector[T](rng, n), RandomVector[T](rng, n), RandomVector[T](rng, n)

	xg, yg, zg, err := plan.Grad(g)
	if err != nil {
		return Report{}, err
	}
	inv, err := plan.GradInverse(vx, vy, vz)
	if err != nil {
		return Report{}, err
	}

	lhs := DotCoords(xg, yg, zg, vx, vy, vz)
	rhs := DotFeatures(g, inv)
	return newReport[T]("grad/inverse", n, lhs, rhs, tol.Inverse), nil
}

func featurizeShifted[T tensor.Float](e *featurizer.Engine, b *layout.Batch[T], dx, dy, dz []T, eps float64) (featurizer.Features[T], error) {
	shifted := b.Clone()
	for i := range shifted.Xs {
		shifted.Xs[i] += T(eps * float64(dx[i]))
		shifted.Ys[i] += T(eps * float64(dy[i]))
		shifted.Zs[i] += T(eps * float64(dz[i]))
	}
	return featurizer.Featurize(e, shifted)
}

// DotFeatures is the inner product over all per-element buffers.
func DotFeatures[T tensor.Float](a, b featurizer.Features[T]) float64 {
	var sum float64
	for e := range a {
		sum += floats.Dot(ToFloat64(a[e]), ToFloat64(b[e]))
	}
	return sum
}

// DotCoords is the inner product of two per-atom x/y/z gradient triplets.
func DotCoords[T tensor.Float](ax, ay, az, bx, by, bz []T) float64 {
	return floats.Dot(ToFloat64(ax), ToFloat64(bx)) +
		floats.Dot(ToFloat64(ay), ToFloat64(by)) +
		floats.Dot(ToFloat64(az), ToFloat64(bz))
}

// ToFloat64 widens a buffer to float64.
func ToFloat64[T tensor.Float](v []T) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
