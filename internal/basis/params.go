// Package basis defines the descriptor basis: the radial and angular symmetry
// functions a featurizer sums per atom, together with their closed-form
// derivatives.
//
// The parameter set is configuration, versioned through Params.Version.
// Default() is a reasonable ANI-style starting point, not a reference set.
package basis

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// Params configures the symmetry-function basis.
type Params struct {
	Version string `json:"version"`

	RadialCutoff float64   `json:"radial_cutoff"`
	RadialEta    float64   `json:"radial_eta"`
	RadialShifts []float64 `json:"radial_shifts"`

	AngularCutoff float64   `json:"angular_cutoff"`
	AngularEta    float64   `json:"angular_eta"`
	AngularShifts []float64 `json:"angular_shifts"`
	Zeta          float64   `json:"zeta"`
	ThetaShifts   []float64 `json:"theta_shifts"`
}

// DefaultVersion tags the parameter set returned by Default.
const DefaultVersion = "ani-sf-v1"

// Default returns the built-in parameter set (192 features).
func Default() Params {
	return Params{
		Version:      DefaultVersion,
		RadialCutoff: 5.0,
		RadialEta:    16,
		RadialShifts: linspace(0.8, 4.3, 8),

		AngularCutoff: 3.5,
		AngularEta:    8,
		AngularShifts: linspace(0.8, 2.3, 4),
		Zeta:          8,
		ThetaShifts:   []float64{math.Pi / 8, 3 * math.Pi / 8, 5 * math.Pi / 8, 7 * math.Pi / 8},
	}
}

// Validate checks that the basis is smooth and well-defined.
func (p Params) Validate() error {
	var errs []error
	if !(p.RadialCutoff > 0) {
		errs = append(errs, fmt.Errorf("radial_cutoff must be > 0, got %v", p.RadialCutoff))
	}
	if !(p.AngularCutoff > 0) {
		errs = append(errs, fmt.Errorf("angular_cutoff must be > 0, got %v", p.AngularCutoff))
	}
	if !(p.RadialEta > 0) {
		errs = append(errs, fmt.Errorf("radial_eta must be > 0, got %v", p.RadialEta))
	}
	if !(p.AngularEta > 0) {
		errs = append(errs, fmt.Errorf("angular_eta must be > 0, got %v", p.AngularEta))
	}
	// zeta < 1 makes (1+cos)^(zeta-1) unbounded.
	if !(p.Zeta >= 1) {
		errs = append(errs, fmt.Errorf("zeta must be >= 1, got %v", p.Zeta))
	}
	if len(p.RadialShifts) == 0 {
		errs = append(errs, errors.New("radial_shifts is empty"))
	}
	if len(p.AngularShifts) == 0 {
		errs = append(errs, errors.New("angular_shifts is empty"))
	}
	if len(p.ThetaShifts) == 0 {
		errs = append(errs, errors.New("theta_shifts is empty"))
	}
	for _, list := range [][]float64{p.RadialShifts, p.AngularShifts, p.ThetaShifts} {
		for _, v := range list {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				errs = append(errs, fmt.Errorf("non-finite shift %v", v))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("basis params %q: %w", p.Version, errors.Join(errs...))
	}
	return nil
}

// Load decodes Params from JSON. Missing fields keep their Default() values.
func Load(r io.Reader) (Params, error) {
	p := Default()
	p.Version = ""
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Params{}, fmt.Errorf("decode basis params: %w", err)
	}
	if p.Version == "" {
		p.Version = "custom"
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// LoadFile reads Params from a JSON file.
func LoadFile(path string) (Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return Params{}, err
	}
	defer f.Close()
	return Load(f)
}

func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = lo
		return out
	}
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}
