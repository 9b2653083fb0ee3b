package autodiff

import (
	"fmt"

	"github.com/born-ml/ani/internal/autodiff/ops"
	"github.com/born-ml/ani/internal/tensor"
)

// GradientTape records operations during the forward pass and computes
// gradients during the backward pass using reverse-mode automatic differentiation.
// A tape is not safe for concurrent use.
//
// Usage:
//
//	tape := NewGradientTape()
//	tape.StartRecording()
//	// ... record featurizer operations ...
//	gradients, err := tape.Backward(seeds)
type GradientTape struct {
	operations []ops.Operation // Recorded operations (in execution order)
	recording  bool
}

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return &GradientTape{
		operations: make([]ops.Operation, 0, 8),
	}
}

// StartRecording enables operation recording.
func (t *GradientTape) StartRecording() {
	t.recording = true
}

// StopRecording disables operation recording.
func (t *GradientTape) StopRecording() {
	t.recording = false
}

// IsRecording returns true if the tape is currently recording operations.
func (t *GradientTape) IsRecording() bool {
	return t.recording
}

// Record adds an operation to the tape.
// Only records if the tape is currently recording.
func (t *GradientTape) Record(op ops.Operation) {
	if t.recording {
		t.operations = append(t.operations, op)
	}
}

// Clear resets the tape, removing all recorded operations.
// Recording state is preserved.
func (t *GradientTape) Clear() {
	t.operations = t.operations[:0]
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int {
	return len(t.operations)
}

// Backward walks the tape in reverse starting from seed gradients keyed by
// output tensor, and returns the accumulated gradient of every tensor reached.
// Seeds are never modified.
func (t *GradientTape) Backward(seeds map[*tensor.RawTensor]*tensor.RawTensor) (map[*tensor.RawTensor]*tensor.RawTensor, error) {
	wasRecording := t.recording
	t.recording = false
	defer func() {
		t.recording = wasRecording
	}()

	grads := make(map[*tensor.RawTensor]*tensor.RawTensor, len(seeds))
	owned := make(map[*tensor.RawTensor]bool)
	for out, g := range seeds {
		if g == nil {
			return nil, fmt.Errorf("backward: nil seed for %s", out)
		}
		if g.DType() != out.DType() || g.NumElements() != out.NumElements() {
			return nil, fmt.Errorf("backward: seed %s does not match output %s", g, out)
		}
		grads[out] = g
	}

	for i := len(t.operations) - 1; i >= 0; i-- {
		op := t.operations[i]
		outputGrads, ok := collectOutputGrads(op.Outputs(), grads)
		if !ok {
			continue
		}
		if err := fillMissingGradsWithZeros(op.Outputs(), outputGrads); err != nil {
			return nil, err
		}
		inputGrads, err := op.Backward(outputGrads)
		if err != nil {
			return nil, fmt.Errorf("backward: op %d: %w", i, err)
		}
		accumulateGrads(op.Inputs(), inputGrads, grads, owned)
	}

	return grads, nil
}

// collectOutputGrads collects gradients for all outputs of an operation.
// It reports false if no output has a gradient.
func collectOutputGrads(
	outputs []*tensor.RawTensor,
	grads map[*tensor.RawTensor]*tensor.RawTensor,
) ([]*tensor.RawTensor, bool) {
	outputGrads := make([]*tensor.RawTensor, len(outputs))
	hasAnyGrad := false
	for j, out := range outputs {
		if grad, exists := grads[out]; exists {
			outputGrads[j] = grad
			hasAnyGrad = true
		}
	}
	return outputGrads, hasAnyGrad
}

// fillMissingGradsWithZeros fills nil gradients with zero tensors.
func fillMissingGradsWithZeros(outputs, outputGrads []*tensor.RawTensor) error {
	for j, out := range outputs {
		if outputGrads[j] != nil {
			continue
		}
		zeroGrad, err := tensor.NewRaw(out.Shape(), out.DType(), out.Device())
		if err != nil {
			return fmt.Errorf("backward: zero gradient for %s: %w", out, err)
		}
		outputGrads[j] = zeroGrad
	}
	return nil
}

// accumulateGrads adds each input gradient into the running total.
// A gradient that is summed into is first cloned so caller tensors stay intact.
func accumulateGrads(
	inputs, inputGrads []*tensor.RawTensor,
	grads map[*tensor.RawTensor]*tensor.RawTensor,
	owned map[*tensor.RawTensor]bool,
) {
	for j, input := range inputs {
		if j >= len(inputGrads) || inputGrads[j] == nil {
			continue
		}
		existing, ok := grads[input]
		if !ok {
			grads[input] = inputGrads[j]
			continue
		}
		if !owned[input] {
			existing = existing.Clone()
			grads[input] = existing
			owned[input] = true
		}
		existing.AddInPlace(inputGrads[j])
	}
}
