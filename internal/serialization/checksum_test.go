package serialization

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeChecksum_Deterministic(t *testing.T) {
	a := ComputeChecksum([]byte("weights"))
	assert.Equal(t, a, ComputeChecksum([]byte("weights")))
	assert.NotEqual(t, a, ComputeChecksum([]byte("other weights")))
}

func TestComputeChecksumReader_MatchesDirect(t *testing.T) {
	data := []byte("streamed weights")
	got, err := ComputeChecksumReader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, ComputeChecksum(data), got)
}

func TestValidateChecksum_Mismatch(t *testing.T) {
	sum := ComputeChecksum([]byte("x"))
	require.NoError(t, ValidateChecksum(sum, sum))

	err := ValidateChecksum(sum, [32]byte{1, 2, 3})
	assert.True(t, errors.Is(err, ErrChecksumMismatch))
}

func TestComputeChecksum_KnownVectors(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"hello world", "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"},
	}
	for _, tt := range tests {
		sum := ComputeChecksum([]byte(tt.input))
		assert.Equal(t, tt.expected, hex.EncodeToString(sum[:]), "input %q", tt.input)
	}
}
