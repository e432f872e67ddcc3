package serialization

import (
	"crypto/sha256"
	"io"

	"github.com/pkg/errors"
)

// ComputeChecksum computes the SHA-256 checksum of data.
func ComputeChecksum(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// ComputeChecksumReader computes the SHA-256 checksum of everything r yields,
// without holding it in memory.
func ComputeChecksumReader(r io.Reader) ([32]byte, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return [32]byte{}, errors.Wrap(err, "checksum")
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// ValidateChecksum returns ErrChecksumMismatch when the checksums differ.
func ValidateChecksum(computed, stored [32]byte) error {
	if computed != stored {
		return errors.Wrapf(ErrChecksumMismatch, "computed %x, stored %x", computed[:4], stored[:4])
	}
	return nil
}
