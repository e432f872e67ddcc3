package serialization

import (
	"time"

	"github.com/pkg/errors"

	"github.com/born-ml/curvnet/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "CVNW"
	FormatVersion   = 1
	HeaderAlignment = 64   // record data starts on a 64-byte boundary
	FixedHeaderSize = 64   // 0x40 bytes
	ChecksumSize    = 32   // SHA-256
	ChecksumOffset  = 0x20 // checksum offset in the fixed header
	elemSize        = 8
)

// Version is the curvnet version recorded in written headers.
const Version = "0.1.0"

// Data type string constants.
const (
	DTypeFloat64 = "float64"
	DTypeInt64   = "int64"
)

// File kinds recorded in the header.
const (
	KindParameter = "parameter"
	KindModule    = "module"
	KindTable     = "table"
)

// Flags.
const (
	FlagHasMetadata uint32 = 1 << 0
	FlagHasTables   uint32 = 1 << 1 // at least one int64 record
)

// Header is the JSON header of a weight file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	Version       string            `json:"curvnet_version"`
	Kind          string            `json:"kind"`
	CreatedAt     time.Time         `json:"created_at"`
	Records       []RecordMeta      `json:"records"`
	Metadata      map[string]string `json:"metadata"`
}

// RecordMeta describes one record of the data section.
type RecordMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`   // bytes
}

// Record is a named array of float64 or int64 values. Exactly one of Float
// and Int is set.
type Record struct {
	Name  string
	Shape tensor.Shape
	Float []float64
	Int   []int64
}

// FloatRecord captures the values of t.
func FloatRecord(name string, t *tensor.Tensor) Record {
	return Record{Name: name, Shape: t.Shape(), Float: t.Values()}
}

// IntRecord wraps integer values of the given shape.
func IntRecord(name string, shape tensor.Shape, values []int64) Record {
	return Record{Name: name, Shape: shape.Clone(), Int: append([]int64(nil), values...)}
}

// DType returns the record's data type.
func (r Record) DType() string {
	if r.Int != nil {
		return DTypeInt64
	}
	return DTypeFloat64
}

// Len returns the number of values.
func (r Record) Len() int {
	if r.Int != nil {
		return len(r.Int)
	}
	return len(r.Float)
}

func (r Record) validate() error {
	if r.Float != nil && r.Int != nil {
		return errors.Errorf("record %s: both float and int values set", r.Name)
	}
	if n := r.Shape.NumElements(); n != r.Len() {
		return errors.Wrapf(ErrSizeMismatch, "record %s: shape %v holds %d values, got %d", r.Name, r.Shape, n, r.Len())
	}
	return nil
}

// Tensor converts the record into a tensor; int values are converted to
// float64.
func (r Record) Tensor() (*tensor.Tensor, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	t := tensor.Zeros(r.Shape)
	if r.Int == nil {
		copy(t.Data(), r.Float)
		return t, nil
	}
	d := t.Data()
	for i, v := range r.Int {
		d[i] = float64(v)
	}
	return t, nil
}

func alignedDataOffset(headerSize int64) int64 {
	pos := int64(FixedHeaderSize) + headerSize
	return pos + (HeaderAlignment-pos%HeaderAlignment)%HeaderAlignment
}
