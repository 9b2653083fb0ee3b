package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/ani/internal/tensor"
)

func sampleTensors(t *testing.T) map[string]*tensor.RawTensor {
	t.Helper()
	h, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{3, 2})
	require.NoError(t, err)
	xs, err := tensor.FromSlice([]float64{0.5, -1.25}, tensor.Shape{2})
	require.NoError(t, err)
	idx, err := tensor.FromSlice([]int32{0, 2, 1}, tensor.Shape{3})
	require.NoError(t, err)
	empty, err := tensor.NewRaw(tensor.Shape{0, 2}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	return map[string]*tensor.RawTensor{
		"features.H":   h,
		"features.N":   empty,
		"xs":           xs,
		"scatter_idxs": idx,
	}
}

func TestRoundTrip(t *testing.T) {
	in := sampleTensors(t)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, in, map[string]string{"basis": "ani-sf-v1"}))

	f, err := Read(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "ani-sf-v1", f.Metadata["basis"])
	assert.NotEmpty(t, f.Metadata[ChecksumKey])
	require.Len(t, f.Tensors, len(in))

	for name, want := range in {
		got := f.Tensors[name]
		require.NotNil(t, got, name)
		assert.Equal(t, want.DType(), got.DType(), name)
		assert.True(t, want.Shape().Equal(got.Shape()), name)
		assert.Equal(t, want.Data(), got.Data(), name)
	}
	assert.Equal(t, []int32{0, 2, 1}, f.Tensors["scatter_idxs"].AsInt32())
}

func TestWriteIsDeterministicAndSorted(t *testing.T) {
	in := sampleTensors(t)
	var a, b bytes.Buffer
	require.NoError(t, Write(&a, in, nil))
	require.NoError(t, Write(&b, in, nil))
	assert.Equal(t, a.Bytes(), b.Bytes())

	// Data section follows tensor names in alphabetical order.
	size := binary.LittleEndian.Uint64(a.Bytes()[:8])
	var header map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(a.Bytes()[8:8+size], &header))
	var first tensorEntry
	require.NoError(t, json.Unmarshal(header["features.H"], &first))
	assert.Equal(t, [2]int64{0, 24}, first.DataOffsets)
}

func TestWriteRejectsBadNames(t *testing.T) {
	x, err := tensor.NewRaw(tensor.Shape{1}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	for _, name := range []string{"", "../x", "a/b", "__metadata__"} {
		err := Write(&bytes.Buffer{}, map[string]*tensor.RawTensor{name: x}, nil)
		assert.ErrorIs(t, err, ErrInvalidTensorName, "name %q", name)
	}
}

func TestReadDetectsCorruption(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleTensors(t), nil))
	data := buf.Bytes()
	data[len(data)-1] ^= 0xff

	_, err := Read(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func writeRaw(t *testing.T, header map[string]any, data []byte) []byte {
	t.Helper()
	h, err := json.Marshal(header)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(len(h))))
	buf.Write(h)
	buf.Write(data)
	return buf.Bytes()
}

func TestReadValidation(t *testing.T) {
	cases := []struct {
		name   string
		header map[string]any
		data   []byte
		want   error
	}{
		{
			name:   "out of bounds",
			header: map[string]any{"a": tensorEntry{DType: "F32", Shape: []int64{4}, DataOffsets: [2]int64{0, 16}}},
			data:   make([]byte, 8),
			want:   ErrOutOfBounds,
		},
		{
			name: "overlap",
			header: map[string]any{
				"a": tensorEntry{DType: "F32", Shape: []int64{2}, DataOffsets: [2]int64{0, 8}},
				"b": tensorEntry{DType: "F32", Shape: []int64{2}, DataOffsets: [2]int64{4, 12}},
			},
			data: make([]byte, 12),
			want: ErrOffsetOverlap,
		},
		{
			name:   "negative",
			header: map[string]any{"a": tensorEntry{DType: "F32", Shape: []int64{1}, DataOffsets: [2]int64{4, 0}}},
			data:   make([]byte, 8),
			want:   ErrNegativeOffset,
		},
		{
			name:   "unsupported dtype",
			header: map[string]any{"a": tensorEntry{DType: "BF16", Shape: []int64{1}, DataOffsets: [2]int64{0, 2}}},
			data:   make([]byte, 2),
			want:   ErrUnsupportedDType,
		},
		{
			name:   "size mismatch",
			header: map[string]any{"a": tensorEntry{DType: "F64", Shape: []int64{2}, DataOffsets: [2]int64{0, 8}}},
			data:   make([]byte, 8),
			want:   ErrSizeMismatch,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Read(bytes.NewReader(writeRaw(t, tc.header, tc.data)))
			assert.ErrorIs(t, err, tc.want)
			var ve *ValidationError
			assert.True(t, errors.As(err, &ve))
		})
	}
}

func TestReadHeaderTooLarge(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(MaxHeaderSize+1)))
	_, err := Read(&buf)
	assert.ErrorIs(t, err, ErrHeaderTooLarge)
}
