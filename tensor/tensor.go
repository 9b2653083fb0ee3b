// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor types exchanged with the featurizer.
//
// The package defines:
//   - Float: the coordinate/feature element constraint (float32 or float64)
//   - RawTensor: flat, untyped row-major buffers
//   - Shape, DataType, Device: core type definitions
//
// Example:
//
//	xs, _ := tensor.FromSlice([]float32{0, 0.96}, tensor.Shape{2})
//	view := tensor.View[float32](xs) // zero-copy
package tensor

import (
	"github.com/born-ml/ani/internal/tensor"
)

// Float is the constraint for coordinate and feature buffers.
type Float = tensor.Float

// DataType represents the underlying data type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Int32   DataType = tensor.Int32
)

// ParseDataType parses "float32", "float64" or "int32" (and the f32/f64 short forms).
func ParseDataType(s string) (DataType, bool) {
	return tensor.ParseDataType(s)
}

// Device represents the memory a tensor lives in.
type Device = tensor.Device

// CPU is host memory.
const CPU Device = tensor.CPU

// Shape represents the dimensions of a tensor.
// Example: Shape{3, 192} is three rows of 192 features.
type Shape = tensor.Shape

// RawTensor is the low-level tensor representation.
//
// RawTensor provides:
//   - Shape and type information via Shape(), DType(), Device()
//   - Zero-copy typed access via AsFloat32(), AsFloat64(), AsInt32()
//   - Deep copies via Clone()
//
// Example:
//
//	raw, _ := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
//	data := raw.AsFloat32()
type RawTensor = tensor.RawTensor

// NewRaw creates a zero-filled tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// FromSlice wraps data as a tensor without copying.
func FromSlice[T Float | ~int32](data []T, shape Shape) (*RawTensor, error) {
	return tensor.FromSlice(data, shape)
}

// View returns the tensor data as a typed slice without copying.
// It panics if T does not match the tensor's data type.
func View[T Float | ~int32](r *RawTensor) []T {
	return tensor.View[T](r)
}
