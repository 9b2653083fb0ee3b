package tensor

import (
	"fmt"
	"unsafe"
)

// Device represents the memory a tensor lives in.
type Device int

// Supported devices.
const (
	// CPU is ordinary host-addressable memory. Element counts must live here
	// because they size every output before any kernel runs.
	CPU Device = iota
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	default:
		return "Unknown"
	}
}

// RawTensor is the low-level, untyped tensor representation.
// Data is stored as a flat row-major byte buffer and viewed through
// the typed As* accessors without copying.
type RawTensor struct {
	data   []byte
	shape  Shape
	dtype  DataType
	device Device
}

// NewRaw creates a new zero-filled RawTensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	return &RawTensor{
		data:   make([]byte, shape.NumElements()*dtype.Size()),
		shape:  shape.Clone(),
		dtype:  dtype,
		device: device,
	}, nil
}

// FromSlice creates a CPU RawTensor holding a copy of data.
func FromSlice[T Float | ~int32](data []T, shape Shape) (*RawTensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	raw, err := NewRaw(shape, DataTypeOf[T](), CPU)
	if err != nil {
		return nil, err
	}
	copy(View[T](raw), data)
	return raw, nil
}

// View returns the tensor data as []T. T must match the tensor's dtype.
func View[T Float | ~int32](r *RawTensor) []T {
	if want := DataTypeOf[T](); r.dtype != want {
		panic(fmt.Sprintf("tensor dtype is %s, not %s", r.dtype, want))
	}
	n := r.NumElements()
	if n == 0 {
		return []T{}
	}
	//nolint:gosec // unsafe.Slice for zero-copy view, length fixed by shape
	return unsafe.Slice((*T)(unsafe.Pointer(&r.data[0])), n)
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Device returns the tensor's device.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return len(r.data)
}

// Data returns the raw bytes in host byte order. The slice aliases the tensor.
func (r *RawTensor) Data() []byte {
	return r.data
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	return View[float32](r)
}

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 {
	return View[float64](r)
}

// AsInt32 interprets the data as []int32.
// Panics if the tensor's dtype is not Int32.
func (r *RawTensor) AsInt32() []int32 {
	return View[int32](r)
}

// Clone returns a deep copy.
func (r *RawTensor) Clone() *RawTensor {
	return &RawTensor{
		data:   append([]byte(nil), r.data...),
		shape:  r.shape.Clone(),
		dtype:  r.dtype,
		device: r.device,
	}
}

// Zero resets every element to zero.
func (r *RawTensor) Zero() {
	clear(r.data)
}

// AddInPlace accumulates other into r element-wise.
// Both tensors must have the same float dtype and element count.
func (r *RawTensor) AddInPlace(other *RawTensor) {
	if r.dtype != other.dtype || r.NumElements() != other.NumElements() {
		panic(fmt.Sprintf("add: incompatible tensors %s and %s", r, other))
	}
	switch r.dtype {
	case Float32:
		addInto(r.AsFloat32(), other.AsFloat32())
	case Float64:
		addInto(r.AsFloat64(), other.AsFloat64())
	default:
		panic(fmt.Sprintf("add: unsupported dtype %s", r.dtype))
	}
}

func addInto[T Float](dst, src []T) {
	for i, v := range src {
		dst[i] += v
	}
}

// String returns a short description of the tensor.
func (r *RawTensor) String() string {
	return fmt.Sprintf("RawTensor[%s]%v on %s", r.dtype, r.shape, r.device)
}
