package serialization

import (
	"errors"
	"testing"
)

// TestComputeChecksum verifies SHA-256 checksum computation.
func TestComputeChecksum(t *testing.T) {
	data := []byte("test data")
	checksum1 := ComputeChecksum(data)
	checksum2 := ComputeChecksum(data)

	if checksum1 != checksum2 {
		t.Error("Checksums should match for identical data")
	}
	if checksum1 == ComputeChecksum([]byte("different data")) {
		t.Error("Checksums should differ for different data")
	}
	if len(checksum1) != 64 {
		t.Errorf("Expected 64 hex digits, got %d", len(checksum1))
	}
}

// TestStreamingChecksum verifies the streaming hash matches the one-shot helper.
func TestStreamingChecksum(t *testing.T) {
	h := NewChecksum()
	h.Write([]byte("test "))
	h.Write([]byte("data"))
	if got := ComputeChecksum([]byte("test data")); got != hexSum(h) {
		t.Errorf("streaming checksum %s != %s", hexSum(h), got)
	}
}

// TestValidateChecksum verifies checksum validation.
func TestValidateChecksum(t *testing.T) {
	a := ComputeChecksum([]byte("a"))
	if err := ValidateChecksum(a, a); err != nil {
		t.Errorf("ValidateChecksum(same) = %v", err)
	}
	err := ValidateChecksum(a, ComputeChecksum([]byte("b")))
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("ValidateChecksum(different) = %v, want ErrChecksumMismatch", err)
	}
}
