package serialization

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"maps"
	"slices"

	"github.com/born-ml/ani/internal/tensor"
)

const metadataKey = "__metadata__"

// tensorEntry represents a tensor in the SafeTensors header.
type tensorEntry struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// File is a decoded SafeTensors file.
type File struct {
	Tensors  map[string]*tensor.RawTensor
	Metadata map[string]string
}

// Write encodes tensors in SafeTensors format.
//
// Tensors are written in alphabetical order by name, and the checksum of
// the data section is added to the metadata under ChecksumKey.
func Write(w io.Writer, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	names := slices.Sorted(maps.Keys(tensors))

	header := make(map[string]any, len(names)+1)
	sum := NewChecksum()
	var offset int64
	for _, name := range names {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		raw := tensors[name]
		dtype, ok := dtypeToSafeTensors(raw.DType())
		if !ok {
			return &ValidationError{Kind: ErrUnsupportedDType, Tensor: name, Details: raw.DType().String()}
		}

		shape := make([]int64, len(raw.Shape()))
		for i, dim := range raw.Shape() {
			shape[i] = int64(dim)
		}
		size := int64(raw.ByteSize())
		header[name] = tensorEntry{
			DType:       dtype,
			Shape:       shape,
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
		sum.Write(raw.Data())
	}

	meta := maps.Clone(metadata)
	if meta == nil {
		meta = make(map[string]string, 1)
	}
	meta[ChecksumKey] = hexSum(sum)
	header[metadataKey] = meta

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, name := range names {
		if _, err := w.Write(tensors[name].Data()); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", name, err)
		}
	}
	return nil
}

// Read decodes a SafeTensors stream. Every tensor is copied into host memory.
func Read(r io.Reader) (*File, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > MaxHeaderSize {
		return nil, &ValidationError{
			Kind:    ErrHeaderTooLarge,
			Details: fmt.Sprintf("%d bytes, max %d", headerSize, MaxHeaderSize),
		}
	}

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	var header map[string]json.RawMessage
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	f := &File{
		Tensors:  make(map[string]*tensor.RawTensor, len(header)),
		Metadata: map[string]string{},
	}
	metas := make([]tensorMeta, 0, len(header))
	for name, msg := range header {
		if name == metadataKey {
			if err := json.Unmarshal(msg, &f.Metadata); err != nil {
				return nil, fmt.Errorf("failed to parse metadata: %w", err)
			}
			continue
		}
		if err := ValidateTensorName(name); err != nil {
			return nil, err
		}
		var e tensorEntry
		if err := json.Unmarshal(msg, &e); err != nil {
			return nil, fmt.Errorf("tensor %q: %w", name, err)
		}
		dt, ok := safeTensorsToDtype(e.DType)
		if !ok {
			return nil, &ValidationError{Kind: ErrUnsupportedDType, Tensor: name, Details: e.DType}
		}
		metas = append(metas, tensorMeta{
			Name:   name,
			DType:  dt,
			Shape:  e.Shape,
			Offset: e.DataOffsets[0],
			Size:   e.DataOffsets[1] - e.DataOffsets[0],
		})
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	if err := validateTensorOffsets(metas, int64(len(data))); err != nil {
		return nil, err
	}
	if stored, ok := f.Metadata[ChecksumKey]; ok {
		if err := ValidateChecksum(ComputeChecksum(data), stored); err != nil {
			return nil, err
		}
	}

	for _, m := range metas {
		shape := make(tensor.Shape, len(m.Shape))
		for i, dim := range m.Shape {
			shape[i] = int(dim)
		}
		if want := int64(shape.NumElements() * m.DType.Size()); want != m.Size {
			return nil, &ValidationError{
				Kind:    ErrSizeMismatch,
				Tensor:  m.Name,
				Details: fmt.Sprintf("shape %v needs %d bytes, header gives %d", shape, want, m.Size),
			}
		}
		t, err := tensor.NewRaw(shape, m.DType, tensor.CPU)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", m.Name, err)
		}
		copy(t.Data(), data[m.Offset:m.Offset+m.Size])
		f.Tensors[m.Name] = t
	}
	return f, nil
}

func hexSum(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

// dtypeToSafeTensors converts tensor.DataType to SafeTensors dtype string.
func dtypeToSafeTensors(dt tensor.DataType) (string, bool) {
	switch dt {
	case tensor.Float32:
		return "F32", true
	case tensor.Float64:
		return "F64", true
	case tensor.Int32:
		return "I32", true
	default:
		return "", false
	}
}

func safeTensorsToDtype(s string) (tensor.DataType, bool) {
	switch s {
	case "F32":
		return tensor.Float32, true
	case "F64":
		return tensor.Float64, true
	case "I32":
		return tensor.Int32, true
	default:
		return 0, false
	}
}
