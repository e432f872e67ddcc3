package serialization

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRecordOffsets_Layouts(t *testing.T) {
	tests := []struct {
		name     string
		records  []RecordMeta
		dataSize int64
		errType  string
	}{
		{
			name:     "back to back",
			records:  []RecordMeta{{Name: "a", Offset: 0, Size: 16}, {Name: "b", Offset: 16, Size: 8}},
			dataSize: 24,
		},
		{
			name:     "overlap by one byte",
			records:  []RecordMeta{{Name: "a", Offset: 0, Size: 16}, {Name: "b", Offset: 15, Size: 8}},
			dataSize: 32,
			errType:  "offset_overlap",
		},
		{
			name:     "past the end",
			records:  []RecordMeta{{Name: "a", Offset: 8, Size: 16}},
			dataSize: 16,
			errType:  "out_of_bounds",
		},
		{
			name:     "negative size",
			records:  []RecordMeta{{Name: "a", Offset: 0, Size: -8}},
			dataSize: 16,
			errType:  "negative_offset",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecordOffsets(tt.records, tt.dataSize)
			if tt.errType == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.errType, verr.Type)
		})
	}
}

func TestValidateRecordOffsets_TooMany(t *testing.T) {
	records := make([]RecordMeta, MaxRecordCount+1)
	err := ValidateRecordOffsets(records, 0)
	assert.True(t, errors.Is(err, ErrTooManyRecords))
}

func TestValidateRecordName_Rejects(t *testing.T) {
	for _, name := range []string{"", "a\x00b", "line\nbreak", string(make([]byte, MaxRecordNameLen+1))} {
		assert.Error(t, ValidateRecordName(name), "%q", name)
	}
	for _, name := range []string{"x", "c0.kernel", "layer 3/bias"} {
		assert.NoError(t, ValidateRecordName(name), "%q", name)
	}
}

func TestValidateRecordMeta_SizeAndDType(t *testing.T) {
	assert.NoError(t, ValidateRecordMeta(RecordMeta{Name: "k", DType: DTypeFloat64, Shape: []int{2, 3}, Size: 48}))
	assert.True(t, errors.Is(
		ValidateRecordMeta(RecordMeta{Name: "k", DType: DTypeFloat64, Shape: []int{2, 3}, Size: 40}),
		ErrSizeMismatch))
	assert.True(t, errors.Is(
		ValidateRecordMeta(RecordMeta{Name: "k", DType: "float32", Shape: []int{1}, Size: 8}),
		ErrUnsupportedDType))
}

func TestValidateHeader_Levels(t *testing.T) {
	h := &Header{Records: []RecordMeta{
		{Name: "a", DType: DTypeFloat64, Shape: []int{2}, Offset: 0, Size: 16},
		{Name: "b", DType: DTypeInt64, Shape: []int{2}, Offset: 8, Size: 16},
	}}
	assert.Error(t, ValidateHeader(h, 32, ValidationStrict))
	assert.NoError(t, ValidateHeader(h, 32, ValidationNormal))
	assert.NoError(t, ValidateHeader(h, 32, ValidationNone))

	h.Records[1].DType = "bool"
	assert.Error(t, ValidateHeader(h, 32, ValidationNormal))
}

func TestValidationError_Messages(t *testing.T) {
	assert.Equal(t, `offset_overlap: records "a" and "b": x`,
		(&ValidationError{Type: "offset_overlap", Record: "a", Record2: "b", Details: "x"}).Error())
	assert.Equal(t, `out_of_bounds: record "a": y`,
		(&ValidationError{Type: "out_of_bounds", Record: "a", Details: "y"}).Error())
	assert.Equal(t, "invalid_name: z", (&ValidationError{Type: "invalid_name", Details: "z"}).Error())
}
