// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/born-ml/ani/tensor"
)

// TestRawTensorAPI verifies RawTensor type alias exposes expected API.
func TestRawTensorAPI(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}

	if shape := raw.Shape(); !shape.Equal(tensor.Shape{2, 3}) {
		t.Errorf("Shape() = %v, want [2 3]", shape)
	}
	if dtype := raw.DType(); dtype != tensor.Float32 {
		t.Errorf("DType() = %v, want Float32", dtype)
	}
	if device := raw.Device(); device != tensor.CPU {
		t.Errorf("Device() = %v, want CPU", device)
	}
	if n := len(raw.AsFloat32()); n != 6 {
		t.Errorf("len(AsFloat32()) = %d, want 6", n)
	}
}

// TestFromSliceView verifies that FromSlice and View share memory.
func TestFromSliceView(t *testing.T) {
	data := []float64{1, 2, 3}
	raw, err := tensor.FromSlice(data, tensor.Shape{3})
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	view := tensor.View[float64](raw)
	view[1] = 42
	if data[1] != 42 {
		t.Errorf("View is not zero-copy: data[1] = %v", data[1])
	}
}

func TestParseDataType(t *testing.T) {
	for _, s := range []string{"float32", "f32"} {
		if dt, ok := tensor.ParseDataType(s); !ok || dt != tensor.Float32 {
			t.Errorf("ParseDataType(%q) = %v, %v", s, dt, ok)
		}
	}
	if _, ok := tensor.ParseDataType("bf16"); ok {
		t.Error("ParseDataType(bf16) succeeded")
	}
}
