package tensor

// Storage is a flat, growable float64 buffer shared by any number of tensor
// views. Views keep a pointer to the Storage rather than to its slice, so a
// Grow is visible to every view created before it.
type Storage struct {
	data []float64
}

// NewStorage allocates a zeroed storage of n elements.
func NewStorage(n int) *Storage {
	if n < 0 {
		panic("tensor.NewStorage: negative size")
	}
	return &Storage{data: make([]float64, n)}
}

// Len returns the number of elements in the storage.
func (s *Storage) Len() int {
	return len(s.data)
}

// Grow extends the storage to at least n elements. Existing values are kept,
// new elements are zero. Growth never shrinks the buffer.
func (s *Storage) Grow(n int) {
	if n <= len(s.data) {
		return
	}
	if n <= cap(s.data) {
		old := len(s.data)
		s.data = s.data[:n]
		clear(s.data[old:])
		return
	}
	grown := make([]float64, n, maxInt(n, 2*cap(s.data)))
	copy(grown, s.data)
	s.data = grown
}

// Data returns the backing slice. The slice is invalidated by Grow.
func (s *Storage) Data() []float64 {
	return s.data
}
