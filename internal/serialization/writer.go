package serialization

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"os"
	"time"

	"github.com/pkg/errors"
)

// Writer writes weight files.
type Writer struct {
	file   *os.File
	closed bool
}

// NewWriter creates the file at path.
func NewWriter(path string) (*Writer, error) {
	//nolint:gosec // G304: path comes from the caller, as expected for weight saving
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file")
	}
	return &Writer{file: file}, nil
}

// Write writes records with the given kind and metadata.
func (w *Writer) Write(records []Record, kind string, metadata map[string]string) error {
	if w.closed {
		return errors.Wrap(ErrClosed, "writer")
	}
	return WriteTo(w.file, records, kind, metadata)
}

// Close closes the writer and the underlying file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

// WriteFile creates path and writes records into it.
func WriteFile(path, kind string, metadata map[string]string, records ...Record) error {
	w, err := NewWriter(path)
	if err != nil {
		return err
	}
	if err := w.Write(records, kind, metadata); err != nil {
		_ = w.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return w.Close()
}

// encode lays records out back to back and returns their metadata and the
// data section.
func encode(records []Record) ([]RecordMeta, []byte, bool, error) {
	metas := make([]RecordMeta, 0, len(records))
	var total int64
	hasInt := false
	for _, r := range records {
		if err := r.validate(); err != nil {
			return nil, nil, false, err
		}
		size := int64(r.Len() * elemSize)
		metas = append(metas, RecordMeta{
			Name:   r.Name,
			DType:  r.DType(),
			Shape:  []int(r.Shape.Clone()),
			Offset: total,
			Size:   size,
		})
		total += size
		hasInt = hasInt || r.Int != nil
	}

	data := make([]byte, total)
	for i, r := range records {
		b := data[metas[i].Offset : metas[i].Offset+metas[i].Size]
		if r.Int != nil {
			for j, v := range r.Int {
				//nolint:gosec // G115: two's complement reinterpretation is intended
				binary.LittleEndian.PutUint64(b[j*elemSize:], uint64(v))
			}
			continue
		}
		for j, v := range r.Float {
			binary.LittleEndian.PutUint64(b[j*elemSize:], math.Float64bits(v))
		}
	}
	return metas, data, hasInt, nil
}

// WriteTo writes records to an io.Writer.
func WriteTo(writer io.Writer, records []Record, kind string, metadata map[string]string) error {
	metas, data, hasInt, err := encode(records)
	if err != nil {
		return err
	}

	header := Header{
		FormatVersion: FormatVersion,
		Version:       Version,
		Kind:          kind,
		CreatedAt:     time.Now().UTC(),
		Records:       metas,
		Metadata:      metadata,
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "failed to marshal header")
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], uint32(FormatVersion))
	flags := uint32(0)
	if len(metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if hasInt {
		flags |= FlagHasTables
	}
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(data)))
	checksum := ComputeChecksum(data)
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := writer.Write(fixed); err != nil {
		return errors.Wrap(err, "failed to write fixed header")
	}
	if _, err := writer.Write(headerJSON); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	pos := int64(FixedHeaderSize) + int64(len(headerJSON))
	if padding := alignedDataOffset(int64(len(headerJSON))) - pos; padding > 0 {
		if _, err := writer.Write(make([]byte, padding)); err != nil {
			return errors.Wrap(err, "failed to write padding")
		}
	}
	if _, err := writer.Write(data); err != nil {
		return errors.Wrap(err, "failed to write record data")
	}
	return nil
}
