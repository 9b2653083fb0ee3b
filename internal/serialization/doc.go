// Package serialization stores featurized batches in the SafeTensors format.
//
//	Format Structure:
//	  [8 bytes: Header Size (uint64 LE)]
//	  [Header: JSON, tensor name -> {dtype, shape, data_offsets}, plus "__metadata__"]
//	  [Tensor data: raw little-endian bytes, tensors in name order]
//
// The writer records a SHA-256 of the data section under the "sha256"
// metadata key; the reader verifies it when present.
//
// Example usage:
//
//	err := serialization.Write(w, map[string]*tensor.RawTensor{
//	    "features.H": feats[layout.H],
//	}, map[string]string{"basis": "ani-sf-v1"})
//
//	f, err := serialization.Read(r)
//	h := f.Tensors["features.H"]
package serialization
