package generators

import "errors"

// Contract violations returned (wrapped) by the sparse vector generators.
var (
	ErrInvalidDims         = errors.New("dims must be non-negative")
	ErrNegativeSparsity    = errors.New("sparsity must be non-negative")
	ErrSparsityExceedsDims = errors.New("sparsity must not exceed dims")
	ErrNilSource           = errors.New("random source must not be nil")
	ErrSamplingExhausted   = errors.New("rejection sampling exceeded its draw ceiling")
)
