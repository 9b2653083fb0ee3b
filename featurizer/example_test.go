// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package featurizer_test

import (
	"fmt"

	"github.com/born-ml/ani/featurizer"
)

func Example() {
	mols := []featurizer.Molecule{
		{Name: "water", Atoms: []featurizer.Atom{
			{Element: featurizer.O, Pos: [3]float64{0, 0, 0}},
			{Element: featurizer.H, Pos: [3]float64{0.757, 0.586, 0}},
			{Element: featurizer.H, Pos: [3]float64{-0.757, 0.586, 0}},
		}},
		{Name: "methane fragment", Atoms: []featurizer.Atom{
			{Element: featurizer.H, Pos: [3]float64{0.3, 0.2, 1.09}},
			{Element: featurizer.C, Pos: [3]float64{0.1, 0, 0}},
		}},
	}
	batch, err := featurizer.Pack[float32](mols)
	if err != nil {
		panic(err)
	}

	e := featurizer.New(featurizer.MustBasis(featurizer.DefaultParams()), featurizer.WithParallel(featurizer.Sequential()))
	feats, err := featurizer.Featurize(e, batch)
	if err != nil {
		panic(err)
	}
	for _, el := range []featurizer.Element{featurizer.H, featurizer.C, featurizer.N, featurizer.O} {
		fmt.Printf("%s: %d rows\n", el, len(feats[el])/e.FeatureSize())
	}
	// Output:
	// H: 3 rows
	// C: 1 rows
	// N: 0 rows
	// O: 1 rows
}
