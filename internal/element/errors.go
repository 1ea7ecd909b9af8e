package element

import "errors"

// Construction errors.
var (
	ErrInvalidSize      = errors.New("invalid element size")
	ErrInvalidParameter = errors.New("invalid element parameter")
	ErrIDAssigned       = errors.New("element identifier already assigned")
)

// Graph errors.
var (
	ErrNullInput      = errors.New("input element is null")
	ErrDuplicateInput = errors.New("input element already exists")
	ErrSizeMismatch   = errors.New("input element size mismatch")
)

// Lookup errors.
var ErrComponentNotFound = errors.New("component not found")
