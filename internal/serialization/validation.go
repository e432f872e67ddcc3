package serialization

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Validation limits.
const (
	MaxHeaderSize    = 100 * 1024 * 1024
	MaxRecordCount   = 100_000
	MaxRecordNameLen = 4096
)

// ValidationLevel controls the strictness of validation.
type ValidationLevel int

const (
	// ValidationStrict checks names, dtypes, sizes and record layout.
	ValidationStrict ValidationLevel = iota
	// ValidationNormal skips the record layout checks.
	ValidationNormal
	// ValidationNone skips validation. Use only with trusted input.
	ValidationNone
)

// ValidateRecordOffsets checks that records neither overlap nor extend past
// the data section.
func ValidateRecordOffsets(records []RecordMeta, dataSize int64) error {
	if len(records) > MaxRecordCount {
		return errors.Wrapf(ErrTooManyRecords, "got %d, max %d", len(records), MaxRecordCount)
	}

	sorted := append([]RecordMeta(nil), records...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	for i, r := range sorted {
		if r.Offset < 0 || r.Size < 0 {
			return &ValidationError{
				Type:    "negative_offset",
				Record:  r.Name,
				Details: fmt.Sprintf("offset=%d, size=%d", r.Offset, r.Size),
			}
		}
		if r.Offset+r.Size > dataSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Record:  r.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", r.Offset, r.Size, dataSize),
			}
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if r.Offset+r.Size > next.Offset {
				return &ValidationError{
					Type:    "offset_overlap",
					Record:  r.Name,
					Record2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						r.Offset, r.Offset+r.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}
	return nil
}

// ValidateRecordName rejects empty, overlong and control-character names.
func ValidateRecordName(name string) error {
	if name == "" {
		return &ValidationError{Type: "invalid_name", Details: "empty record name"}
	}
	if len(name) > MaxRecordNameLen {
		return &ValidationError{
			Type:    "name_too_long",
			Record:  name,
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxRecordNameLen),
		}
	}
	if strings.ContainsAny(name, "\x00\n\r") {
		return &ValidationError{Type: "invalid_name", Record: name, Details: "contains control characters"}
	}
	return nil
}

// ValidateRecordMeta checks a record's dtype and that its size matches its
// shape.
func ValidateRecordMeta(m RecordMeta) error {
	if m.DType != DTypeFloat64 && m.DType != DTypeInt64 {
		return errors.Wrapf(ErrUnsupportedDType, "record %s: %q", m.Name, m.DType)
	}
	n := int64(1)
	for _, d := range m.Shape {
		if d < 0 {
			return &ValidationError{Type: "invalid_shape", Record: m.Name, Details: fmt.Sprintf("shape %v", m.Shape)}
		}
		n *= int64(d)
	}
	if n*elemSize != m.Size {
		return errors.Wrapf(ErrSizeMismatch, "record %s: shape %v, %d bytes", m.Name, m.Shape, m.Size)
	}
	return nil
}

// ValidateHeader validates a parsed header at the given level.
func ValidateHeader(h *Header, dataSize int64, level ValidationLevel) error {
	if level == ValidationNone {
		return nil
	}
	if len(h.Records) > MaxRecordCount {
		return errors.Wrapf(ErrTooManyRecords, "got %d, max %d", len(h.Records), MaxRecordCount)
	}
	for _, m := range h.Records {
		if err := ValidateRecordName(m.Name); err != nil {
			return err
		}
		if err := ValidateRecordMeta(m); err != nil {
			return err
		}
	}
	if level == ValidationStrict {
		return ValidateRecordOffsets(h.Records, dataSize)
	}
	return nil
}
