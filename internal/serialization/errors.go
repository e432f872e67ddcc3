package serialization

import (
	"fmt"

	"github.com/pkg/errors"
)

// Common errors.
var (
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrOffsetOverlap      = errors.New("record offsets overlap")
	ErrOutOfBounds        = errors.New("record extends beyond data section")
	ErrNegativeOffset     = errors.New("negative offset or size")
	ErrTooManyRecords     = errors.New("too many records in file")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrUnsupportedDType   = errors.New("unsupported data type")
	ErrSizeMismatch       = errors.New("record size does not match its shape")
	ErrRecordNotFound     = errors.New("record not found")
	ErrClosed             = errors.New("file is closed")
)

// ValidationError provides detailed information about validation failures.
type ValidationError struct {
	Type    string // e.g. "offset_overlap", "out_of_bounds"
	Record  string
	Record2 string // second record of an overlap
	Details string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Record2 != "" {
		return fmt.Sprintf("%s: records %q and %q: %s", e.Type, e.Record, e.Record2, e.Details)
	}
	if e.Record != "" {
		return fmt.Sprintf("%s: record %q: %s", e.Type, e.Record, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Details)
}
