// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides tensor-level featurizer operations recorded on a
// gradient tape.
//
// Featurize's backward pass is FeaturizeGrad, and FeaturizeGrad's backward
// pass is FeaturizeGradInverse, so both first- and second-order gradients
// (force matching) flow through the tape.
//
// Example:
//
//	import (
//	    "github.com/born-ml/ani/autodiff"
//	    "github.com/born-ml/ani/featurizer"
//	)
//
//	func main() {
//	    f := autodiff.New(featurizer.New(featurizer.MustBasis(featurizer.DefaultParams())))
//	    f.Tape().StartRecording()
//
//	    in, _ := autodiff.FromBatch(batch)
//	    feats, _ := f.Featurize(in)
//	    grads, _ := f.Tape().Backward(seedsFor(feats))
//	    dx := grads[in.Xs]
//	}
package autodiff

import (
	"github.com/born-ml/ani/internal/autodiff"
	"github.com/born-ml/ani/internal/autodiff/ops"
	"github.com/born-ml/ani/internal/featurizer"
	"github.com/born-ml/ani/internal/layout"
	"github.com/born-ml/ani/internal/tensor"
)

// Featurizer runs featurizer operations on tensors and records them.
type Featurizer = autodiff.Featurizer

// New creates a Featurizer for the engine.
func New(e *featurizer.Engine) *Featurizer {
	return autodiff.New(e)
}

// GradientTape records operations for automatic differentiation.
type GradientTape = autodiff.GradientTape

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return autodiff.NewGradientTape()
}

// Operation is a recorded differentiable operation.
type Operation = ops.Operation

// Inputs are the tensors of one featurizer call.
type Inputs = ops.Inputs

// Features holds one [count, feature_size] tensor per element class.
type Features = ops.Features

// ErrDType is returned when an input tensor has the wrong data type or device.
var ErrDType = ops.ErrDType

// FromBatch copies a batch into tensors.
func FromBatch[T tensor.Float](b *layout.Batch[T]) (Inputs, error) {
	return ops.FromBatch(b)
}
