// Package ops wraps the featurizer kernels as tensor operations.
//
// Each operation implements the Operation interface, which provides:
//   - Forward pass: computed eagerly when the operation is created
//   - Backward pass: maps gradients of every output to gradients of every input
//
// Supported operations:
//   - FeaturizeOp: coordinates to per-element descriptors, backward is FeaturizeGrad
//   - FeaturizeGradOp: per-element feature gradients to coordinate gradients,
//     backward is FeaturizeGradInverse
package ops

import "github.com/born-ml/ani/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
// Each operation records its inputs and outputs during the forward pass,
// and computes input gradients during the backward pass.
//
// All featurizer operations produce several outputs, so the tape always
// collects gradients for ALL outputs before calling Backward.
type Operation interface {
	// Inputs returns the input tensors gradients flow back to.
	Inputs() []*tensor.RawTensor

	// Outputs returns all output tensors produced by this operation.
	Outputs() []*tensor.RawTensor

	// Backward computes gradients for inputs given gradients for ALL outputs.
	// Returns one gradient per input, in Inputs order.
	//
	// Example for FeaturizeOp:
	//   outputGrads: [dL/dH, dL/dC, dL/dN, dL/dO]
	//   returns: [dL/dxs, dL/dys, dL/dzs]
	Backward(outputGrads []*tensor.RawTensor) ([]*tensor.RawTensor, error)
}
