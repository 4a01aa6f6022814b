package seqpool

import "github.com/pkg/errors"

// Error kinds. Kernels wrap them with context naming the offending tensor or
// attribute; callers match with errors.Is.
var (
	// ErrShapeMismatch covers missing inputs, inputs whose row count disagrees
	// with their own segment offsets, inputs with differing batch sizes and
	// selector or gradient tensors of the wrong size.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrUnsupportedCombiner is returned for any combiner other than "sum".
	ErrUnsupportedCombiner = errors.New("unsupported combiner")

	// ErrUnsupportedTableVariant is returned when the table is neither a dense
	// matrix nor a sparse row list.
	ErrUnsupportedTableVariant = errors.New("unsupported table variant")

	// ErrUnimplementedDensePath is returned by Backward when is_sparse is false.
	ErrUnimplementedDensePath = errors.New("dense table gradient is not implemented")

	// ErrInvalidAttribute reports num_hash or mod_by outside their domain.
	ErrInvalidAttribute = errors.New("invalid attribute")

	// ErrIndexOutOfRange reports a selector entry outside [0, row_number).
	ErrIndexOutOfRange = errors.New("row index out of range")

	// ErrDTypeMismatch reports a tensor whose element type differs from the
	// kernel instantiation.
	ErrDTypeMismatch = errors.New("dtype mismatch")
)
