// Package tensor provides the flat typed buffers exchanged with the featurizer kernels.
package tensor

import "reflect"

// Float is the constraint for coordinate and feature buffers.
// A single call uses one of the two types for every floating-point buffer.
type Float interface {
	~float32 | ~float64
}

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float64
	Int32
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64:
		return 8
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	default:
		return "unknown"
	}
}

// IsFloat reports whether dt is one of the Float types.
func (dt DataType) IsFloat() bool {
	return dt == Float32 || dt == Float64
}

// ParseDataType maps "float32"/"float64"/"int32" to a DataType.
func ParseDataType(s string) (DataType, bool) {
	switch s {
	case "float32", "f32":
		return Float32, true
	case "float64", "f64":
		return Float64, true
	case "int32":
		return Int32, true
	default:
		return 0, false
	}
}

// DataTypeOf returns the DataType matching T's underlying type.
func DataTypeOf[T Float | ~int32]() DataType {
	switch reflect.TypeFor[T]().Kind() {
	case reflect.Float32:
		return Float32
	case reflect.Float64:
		return Float64
	default:
		return Int32
	}
}
