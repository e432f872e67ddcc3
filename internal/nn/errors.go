package nn

import "github.com/pkg/errors"

// Error categories returned by constructors and loaders. Use errors.Is to
// test for them.
var (
	ErrInvalidTable       = errors.New("invalid connection table")
	ErrStrideNotSupported = errors.New("stride not supported")
	ErrShapeMismatch      = errors.New("shape mismatch")
	ErrAliasedStates      = errors.New("input and output states must differ")
	ErrInvalidConfig      = errors.New("invalid module configuration")
)
