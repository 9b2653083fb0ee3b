package basis

import (
	"fmt"
	"math"

	"github.com/born-ml/ani/internal/layout"
)

// NumPairs is the number of unordered neighbor element pairs.
const NumPairs = layout.NumElements * (layout.NumElements + 1) / 2

// angularSquash keeps acos away from ±1 so dθ/dcos stays bounded.
const angularSquash = 0.95

// RadialTerm is one radial basis function evaluated for a pair (i, j).
// Grad is the derivative of Value with respect to d = r_j - r_i.
type RadialTerm struct {
	Index int
	Value float64
	Grad  Vec3
}

// AngularTerm is one angular basis function evaluated for a triple (i, j, k).
// GradJ and GradK are derivatives with respect to r_j - r_i and r_k - r_i.
type AngularTerm struct {
	Index        int
	Value        float64
	GradJ, GradK Vec3
}

// Basis evaluates symmetry functions and their Jacobians.
// It is immutable and safe for concurrent use.
type Basis struct {
	params Params

	nRadial  int // radial features per neighbor element
	nAngular int // angular features per neighbor pair
	size     int

	cosTheta, sinTheta []float64
	angNorm            float64
}

// New builds a Basis from validated params.
func New(p Params) (*Basis, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	b := &Basis{
		params:   p,
		nRadial:  len(p.RadialShifts),
		nAngular: len(p.ThetaShifts) * len(p.AngularShifts),
		angNorm:  math.Pow(2, 1-p.Zeta),
	}
	b.size = layout.NumElements*b.nRadial + NumPairs*b.nAngular
	for _, ts := range p.ThetaShifts {
		b.cosTheta = append(b.cosTheta, math.Cos(ts))
		b.sinTheta = append(b.sinTheta, math.Sin(ts))
	}
	return b, nil
}

// MustNew is New for parameter sets known to be valid.
func MustNew(p Params) *Basis {
	b, err := New(p)
	if err != nil {
		panic(err)
	}
	return b
}

// Params returns the parameters the basis was built from.
func (b *Basis) Params() Params { return b.params }

// FeatureSize is the descriptor length per atom.
func (b *Basis) FeatureSize() int { return b.size }

// NumRadial is the number of radial terms per pair.
func (b *Basis) NumRadial() int { return b.nRadial }

// NumAngular is the number of angular terms per triple.
func (b *Basis) NumAngular() int { return b.nAngular }

// RadialOffset is the first feature index of the radial block for neighbor element e.
func (b *Basis) RadialOffset(e layout.Element) int {
	return int(e) * b.nRadial
}

// AngularOffset is the first feature index of the angular block for neighbor pair (e1, e2).
func (b *Basis) AngularOffset(e1, e2 layout.Element) int {
	return layout.NumElements*b.nRadial + PairIndex(e1, e2)*b.nAngular
}

// PairIndex maps an unordered element pair to [0, NumPairs).
func PairIndex(e1, e2 layout.Element) int {
	if e1 > e2 {
		e1, e2 = e2, e1
	}
	a, c := int(e1), int(e2)
	return a*layout.NumElements - a*(a-1)/2 + (c - a)
}

// cutoff returns fc(r) = 0.5cos(πr/rc)+0.5 and its derivative, both 0 at and beyond rc.
func cutoff(r, rc float64) (f, df float64) {
	if r >= rc {
		return 0, 0
	}
	x := math.Pi * r / rc
	return 0.5*math.Cos(x) + 0.5, -0.5 * math.Pi / rc * math.Sin(x)
}

// InRadialRange reports whether a pair at distance r contributes radial terms.
func (b *Basis) InRadialRange(r float64) bool {
	return r > 0 && r < b.params.RadialCutoff
}

// InAngularRange reports whether a neighbor at distance r contributes angular terms.
func (b *Basis) InAngularRange(r float64) bool {
	return r > 0 && r < b.params.AngularCutoff
}

// RadialTerms evaluates G = exp(-η(R-Rs)²)·fc(R) for every radial shift.
// Terms are appended to out[:0]. Coincident atoms and pairs beyond the
// cutoff contribute nothing.
func (b *Basis) RadialTerms(d Vec3, ej layout.Element, out []RadialTerm) []RadialTerm {
	out = out[:0]
	r := d.Norm()
	if !b.InRadialRange(r) {
		return out
	}
	p := &b.params
	fc, dfc := cutoff(r, p.RadialCutoff)
	unit := d.Scale(1 / r)
	base := b.RadialOffset(ej)

	for s, rs := range p.RadialShifts {
		dr := r - rs
		e := math.Exp(-p.RadialEta * dr * dr)
		dVdr := e * (dfc - 2*p.RadialEta*dr*fc)
		out = append(out, RadialTerm{
			Index: base + s,
			Value: e * fc,
			Grad:  unit.Scale(dVdr),
		})
	}
	return out
}

// AngularTerms evaluates
//
//	G = 2^(1-ζ)·(1+cos(θ-θs))^ζ·exp(-η((Rij+Rik)/2-Rs)²)·fc(Rij)·fc(Rik)
//
// with θ = acos(0.95·cos∠jik), for every (θs, Rs) pair.
// Terms are appended to out[:0].
func (b *Basis) AngularTerms(dj, dk Vec3, ej, ek layout.Element, out []AngularTerm) []AngularTerm {
	out = out[:0]
	rj, rk := dj.Norm(), dk.Norm()
	if !b.InAngularRange(rj) || !b.InAngularRange(rk) {
		return out
	}
	p := &b.params
	fj, dfj := cutoff(rj, p.AngularCutoff)
	fk, dfk := cutoff(rk, p.AngularCutoff)

	inv := 1 / (rj * rk)
	c := dj.Dot(dk) * inv
	c = math.Max(-1, math.Min(1, c))
	// ∂c/∂dj and ∂c/∂dk
	dcdj := dk.Scale(inv).Sub(dj.Scale(c / (rj * rj)))
	dcdk := dj.Scale(inv).Sub(dk.Scale(c / (rk * rk)))

	cosT := angularSquash * c
	sinT := math.Sqrt(1 - cosT*cosT)
	dThetaDc := -angularSquash / sinT

	unitJ := dj.Scale(1 / rj)
	unitK := dk.Scale(1 / rk)
	mean := 0.5 * (rj + rk)
	fjk := fj * fk
	base := b.AngularOffset(ej, ek)
	nShift := len(p.AngularShifts)

	for t := range p.ThetaShifts {
		cosD := cosT*b.cosTheta[t] + sinT*b.sinTheta[t] // cos(θ-θs)
		sinD := sinT*b.cosTheta[t] - cosT*b.sinTheta[t] // sin(θ-θs)
		a := 1 + cosD
		aPow := math.Pow(a, p.Zeta)
		dAPowDTheta := -p.Zeta * math.Pow(a, p.Zeta-1) * sinD

		for s, rs := range p.AngularShifts {
			dm := mean - rs
			e := math.Exp(-p.AngularEta * dm * dm)
			dEdRj := -p.AngularEta * dm * e // ∂E/∂mean · ∂mean/∂rj, same for rk

			value := b.angNorm * aPow * e * fjk
			dVdc := b.angNorm * dAPowDTheta * e * fjk * dThetaDc
			dVdrj := b.angNorm * aPow * (dEdRj*fjk + e*dfj*fk)
			dVdrk := b.angNorm * aPow * (dEdRj*fjk + e*fj*dfk)

			out = append(out, AngularTerm{
				Index: base + t*nShift + s,
				Value: value,
				GradJ: dcdj.Scale(dVdc).Add(unitJ.Scale(dVdrj)),
				GradK: dcdk.Scale(dVdc).Add(unitK.Scale(dVdrk)),
			})
		}
	}
	return out
}

// Block is a contiguous group of features sharing neighbor elements.
type Block struct {
	Kind     string // "radial" or "angular"
	Elements string // "H" or "H-C"
	Offset   int
	Size     int
}

// Blocks returns the feature layout in index order.
func (b *Basis) Blocks() []Block {
	blocks := make([]Block, 0, layout.NumElements+NumPairs)
	for _, e := range layout.Elements() {
		blocks = append(blocks, Block{Kind: "radial", Elements: e.String(), Offset: b.RadialOffset(e), Size: b.nRadial})
	}
	all := layout.Elements()
	for _, e1 := range all {
		for _, e2 := range all[e1:] {
			blocks = append(blocks, Block{
				Kind:     "angular",
				Elements: fmt.Sprintf("%s-%s", e1, e2),
				Offset:   b.AngularOffset(e1, e2),
				Size:     b.nAngular,
			})
		}
	}
	return blocks
}
