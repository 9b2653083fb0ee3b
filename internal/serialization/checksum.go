package serialization

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// ChecksumKey is the metadata key holding the hex SHA-256 of the data section.
const ChecksumKey = "sha256"

// NewChecksum returns the hash used for data-section checksums.
func NewChecksum() hash.Hash {
	return sha256.New()
}

// ComputeChecksum returns the hex SHA-256 of data.
func ComputeChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ValidateChecksum compares a computed checksum against a stored one.
// Returns ErrChecksumMismatch if they don't match.
func ValidateChecksum(computed, stored string) error {
	if computed != stored {
		return &ValidationError{
			Kind:    ErrChecksumMismatch,
			Details: "computed " + computed + ", stored " + stored,
		}
	}
	return nil
}
