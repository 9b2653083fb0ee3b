// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package featurizer provides the public API of the batched atomic-environment
// featurizer.
//
// Three kernels share one neighbor enumeration:
//   - Featurize: per-atom descriptors scattered into per-element buffers
//   - FeaturizeGrad: coordinate gradients J^T·g (exact adjoint of Featurize)
//   - FeaturizeGradInverse: feature gradients J·v (exact transpose of FeaturizeGrad)
//
// Example:
//
//	batch, _ := featurizer.Pack[float32](molecules)
//	e := featurizer.New(featurizer.MustBasis(featurizer.DefaultParams()))
//	feats, _ := featurizer.Featurize(e, batch)
//	hRows := feats[featurizer.H] // ElementCounts[H] rows of e.FeatureSize() values
package featurizer

import (
	"github.com/born-ml/ani/internal/basis"
	"github.com/born-ml/ani/internal/featurizer"
	"github.com/born-ml/ani/internal/layout"
	"github.com/born-ml/ani/internal/parallel"
	"github.com/born-ml/ani/internal/tensor"
)

// Element is an atom's element class.
type Element = layout.Element

// Element classes.
const (
	H Element = layout.H
	C Element = layout.C
	N Element = layout.N
	O Element = layout.O
)

// NumElements is the number of element classes.
const NumElements = layout.NumElements

// ParseElement parses an element symbol such as "H" or "o".
func ParseElement(symbol string) (Element, error) {
	return layout.ParseElement(symbol)
}

// Batch holds the flat inputs of one featurizer call.
type Batch[T tensor.Float] = layout.Batch[T]

// Atom is one atom of a host-side molecule description.
type Atom = layout.Atom

// Molecule is an ordered list of atoms.
type Molecule = layout.Molecule

// Pack flattens molecules into a Batch.
func Pack[T tensor.Float](mols []Molecule) (*Batch[T], error) {
	return layout.Pack[T](mols)
}

// Validation fault kinds.
var (
	ErrShapeMismatch   = layout.ErrShapeMismatch
	ErrIndexOutOfRange = layout.ErrIndexOutOfRange
)

// ValidationError describes a malformed batch.
type ValidationError = layout.ValidationError

// Params configures the symmetry-function basis.
type Params = basis.Params

// DefaultParams returns the built-in parameter set.
func DefaultParams() Params {
	return basis.Default()
}

// LoadParams reads a JSON parameter file. Omitted fields keep their defaults.
func LoadParams(path string) (Params, error) {
	return basis.LoadFile(path)
}

// Basis is a validated descriptor basis.
type Basis = basis.Basis

// NewBasis validates p and builds a Basis.
func NewBasis(p Params) (*Basis, error) {
	return basis.New(p)
}

// MustBasis is like NewBasis but panics on invalid parameters.
func MustBasis(p Params) *Basis {
	return basis.MustNew(p)
}

// ParallelConfig controls how kernels split work across goroutines.
type ParallelConfig = parallel.Config

// DefaultParallel uses one goroutine per CPU.
func DefaultParallel() ParallelConfig {
	return parallel.DefaultConfig()
}

// Sequential runs kernels on the calling goroutine.
func Sequential() ParallelConfig {
	return parallel.Sequential()
}

// Engine runs the featurizer kernels for one basis.
type Engine = featurizer.Engine

// Option configures an Engine.
type Option = featurizer.Option

// WithParallel sets the parallel execution config.
var WithParallel = featurizer.WithParallel

// WithLogger sets the logger used for per-call debug summaries.
var WithLogger = featurizer.WithLogger

// New creates an Engine.
func New(b *Basis, opts ...Option) *Engine {
	return featurizer.New(b, opts...)
}

// Features holds one flat row-major buffer per element class.
type Features[T tensor.Float] = featurizer.Features[T]

// Plan is a validated batch bound to an engine.
type Plan[T tensor.Float] = featurizer.Plan[T]

// Prepare validates the batch layout once for repeated kernel calls.
func Prepare[T tensor.Float](e *Engine, b *Batch[T]) (*Plan[T], error) {
	return featurizer.Prepare(e, b)
}

// Featurize computes descriptors for every atom of b.
func Featurize[T tensor.Float](e *Engine, b *Batch[T]) (Features[T], error) {
	return featurizer.Featurize(e, b)
}

// FeaturizeGrad computes coordinate gradients from per-element feature gradients.
func FeaturizeGrad[T tensor.Float](e *Engine, b *Batch[T], featGrads Features[T]) (xg, yg, zg []T, err error) {
	return featurizer.FeaturizeGrad(e, b, featGrads)
}

// FeaturizeGradInverse computes per-element feature gradients from coordinate gradients.
func FeaturizeGradInverse[T tensor.Float](e *Engine, b *Batch[T], xg, yg, zg []T) (Features[T], error) {
	return featurizer.FeaturizeGradInverse(e, b, xg, yg, zg)
}
