package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"

	"github.com/born-ml/curvnet/internal/tensor"
)

// Reader reads weight files.
type Reader struct {
	file       *os.File
	header     Header
	flags      uint32
	dataOffset int64
	dataSize   int64
	checksum   [32]byte
	opts       ReaderOptions
	closed     bool
}

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	SkipChecksumValidation bool
	ValidationLevel        ValidationLevel
}

// NewReader opens path with strict validation.
func NewReader(path string) (*Reader, error) {
	return NewReaderWithOptions(path, ReaderOptions{ValidationLevel: ValidationStrict})
}

// NewReaderWithOptions opens path with custom options.
func NewReaderWithOptions(path string, opts ReaderOptions) (*Reader, error) {
	//nolint:gosec // G304: path comes from the caller, as expected for weight loading
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}
	r := &Reader{file: file, opts: opts}
	if err := r.parseHeader(); err != nil {
		_ = file.Close()
		return nil, errors.Wrapf(err, "%s", path)
	}
	return r, nil
}

type fixedHeader struct {
	flags      uint32
	headerSize uint64
	dataSize   uint64
	checksum   [32]byte
}

func parseFixedHeader(b []byte) (fixedHeader, error) {
	var h fixedHeader
	if string(b[0:4]) != MagicBytes {
		return h, errors.Wrapf(ErrInvalidMagic, "got %q, expected %q", b[0:4], MagicBytes)
	}
	if v := binary.LittleEndian.Uint32(b[4:8]); v != FormatVersion {
		return h, errors.Wrapf(ErrUnsupportedVersion, "got %d, expected %d", v, FormatVersion)
	}
	h.flags = binary.LittleEndian.Uint32(b[8:12])
	h.headerSize = binary.LittleEndian.Uint64(b[16:24])
	h.dataSize = binary.LittleEndian.Uint64(b[24:32])
	copy(h.checksum[:], b[ChecksumOffset:ChecksumOffset+ChecksumSize])
	if h.headerSize > MaxHeaderSize {
		return h, errors.Wrapf(ErrHeaderTooLarge, "%d bytes", h.headerSize)
	}
	return h, nil
}

func (r *Reader) parseHeader() error {
	b := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r.file, b); err != nil {
		return errors.Wrap(err, "failed to read fixed header")
	}
	fh, err := parseFixedHeader(b)
	if err != nil {
		return err
	}
	r.flags = fh.flags
	r.checksum = fh.checksum

	headerBytes := make([]byte, fh.headerSize)
	if _, err := io.ReadFull(r.file, headerBytes); err != nil {
		return errors.Wrap(err, "failed to read header")
	}
	if err := json.Unmarshal(headerBytes, &r.header); err != nil {
		return errors.Wrap(err, "failed to parse header JSON")
	}
	//nolint:gosec // G115: header size is bounded by MaxHeaderSize
	r.dataOffset = alignedDataOffset(int64(fh.headerSize))

	info, err := r.file.Stat()
	if err != nil {
		return errors.Wrap(err, "failed to stat file")
	}
	r.dataSize = info.Size() - r.dataOffset
	//nolint:gosec // G115: compared against the real file size
	if int64(fh.dataSize) > r.dataSize {
		return errors.Wrapf(ErrOutOfBounds, "data section of %d bytes, file holds %d", fh.dataSize, r.dataSize)
	}
	//nolint:gosec // G115: checked above
	r.dataSize = int64(fh.dataSize)

	if err := ValidateHeader(&r.header, r.dataSize, r.opts.ValidationLevel); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	if !r.opts.SkipChecksumValidation {
		computed, err := ComputeChecksumReader(io.NewSectionReader(r.file, r.dataOffset, r.dataSize))
		if err != nil {
			return err
		}
		if err := ValidateChecksum(computed, r.checksum); err != nil {
			return err
		}
	}
	return nil
}

// Header returns the file header.
func (r *Reader) Header() Header { return r.header }

// Metadata returns the metadata map from the header.
func (r *Reader) Metadata() map[string]string { return r.header.Metadata }

// Flags returns the flags of the fixed header.
func (r *Reader) Flags() uint32 { return r.flags }

// Names returns the record names in file order.
func (r *Reader) Names() []string {
	names := make([]string, len(r.header.Records))
	for i, m := range r.header.Records {
		names[i] = m.Name
	}
	return names
}

// Info returns the metadata of the named record.
func (r *Reader) Info(name string) (*RecordMeta, error) {
	for i := range r.header.Records {
		if r.header.Records[i].Name == name {
			m := r.header.Records[i]
			return &m, nil
		}
	}
	return nil, errors.Wrap(ErrRecordNotFound, name)
}

// ReadRecord reads the named record.
func (r *Reader) ReadRecord(name string) (Record, error) {
	if r.closed {
		return Record{}, errors.Wrap(ErrClosed, "reader")
	}
	meta, err := r.Info(name)
	if err != nil {
		return Record{}, err
	}
	b := make([]byte, meta.Size)
	if _, err := r.file.ReadAt(b, r.dataOffset+meta.Offset); err != nil {
		return Record{}, errors.Wrapf(err, "failed to read record %s", name)
	}
	return decode(*meta, b)
}

// ReadTensor reads the named record as a tensor.
func (r *Reader) ReadTensor(name string) (*tensor.Tensor, error) {
	rec, err := r.ReadRecord(name)
	if err != nil {
		return nil, err
	}
	return rec.Tensor()
}

// Records reads every record in file order.
func (r *Reader) Records() ([]Record, error) {
	out := make([]Record, 0, len(r.header.Records))
	for _, m := range r.header.Records {
		rec, err := r.ReadRecord(m.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Close closes the reader and the underlying file.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// ReadFile reads every record of the file at path.
func ReadFile(path string) ([]Record, Header, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, Header{}, err
	}
	defer func() { _ = r.Close() }()
	records, err := r.Records()
	if err != nil {
		return nil, Header{}, errors.Wrapf(err, "%s", path)
	}
	return records, r.Header(), nil
}

func decode(meta RecordMeta, b []byte) (Record, error) {
	shape := tensor.Shape(meta.Shape).Clone()
	n := shape.NumElements()
	if int64(n*elemSize) != meta.Size || len(b) != int(meta.Size) {
		return Record{}, errors.Wrapf(ErrSizeMismatch, "record %s: shape %v, %d bytes", meta.Name, shape, meta.Size)
	}
	rec := Record{Name: meta.Name, Shape: shape}
	switch meta.DType {
	case DTypeFloat64:
		rec.Float = make([]float64, n)
		for i := range rec.Float {
			rec.Float[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*elemSize:]))
		}
	case DTypeInt64:
		rec.Int = make([]int64, n)
		for i := range rec.Int {
			//nolint:gosec // G115: two's complement reinterpretation is intended
			rec.Int[i] = int64(binary.LittleEndian.Uint64(b[i*elemSize:]))
		}
	default:
		return Record{}, errors.Wrapf(ErrUnsupportedDType, "record %s: %q", meta.Name, meta.DType)
	}
	return rec, nil
}

// ReadFrom reads a whole weight file from an io.Reader, validating its
// checksum.
func ReadFrom(reader io.Reader) ([]Record, Header, error) {
	b := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(reader, b); err != nil {
		return nil, Header{}, errors.Wrap(err, "failed to read fixed header")
	}
	fh, err := parseFixedHeader(b)
	if err != nil {
		return nil, Header{}, err
	}
	headerBytes := make([]byte, fh.headerSize)
	if _, err := io.ReadFull(reader, headerBytes); err != nil {
		return nil, Header{}, errors.Wrap(err, "failed to read header")
	}
	var header Header
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, Header{}, errors.Wrap(err, "failed to parse header JSON")
	}
	//nolint:gosec // G115: header size is bounded by MaxHeaderSize
	hs := int64(fh.headerSize)
	if _, err := io.CopyN(io.Discard, reader, alignedDataOffset(hs)-FixedHeaderSize-hs); err != nil {
		return nil, Header{}, errors.Wrap(err, "failed to read padding")
	}
	//nolint:gosec // G115: bounded by the validation below
	dataSize := int64(fh.dataSize)
	if err := ValidateHeader(&header, dataSize, ValidationStrict); err != nil {
		return nil, Header{}, errors.Wrap(err, "validation failed")
	}
	var data bytes.Buffer
	if _, err := io.CopyN(&data, reader, dataSize); err != nil {
		return nil, Header{}, errors.Wrap(err, "failed to read record data")
	}
	if err := ValidateChecksum(ComputeChecksum(data.Bytes()), fh.checksum); err != nil {
		return nil, Header{}, err
	}
	records := make([]Record, 0, len(header.Records))
	for _, m := range header.Records {
		rec, err := decode(m, data.Bytes()[m.Offset:m.Offset+m.Size])
		if err != nil {
			return nil, Header{}, err
		}
		records = append(records, rec)
	}
	return records, header, nil
}
