package seqpool

import (
	"github.com/pkg/errors"

	"github.com/born-ml/hashembed/internal/blas"
	"github.com/born-ml/hashembed/internal/parallel"
	"github.com/born-ml/hashembed/internal/tensor"
)

// Backward turns the gradient of the pooled output into a sparse gradient of
// the table.
//
// The selector ids must hold the hashed row indices forward used, one entry
// per (occurrence, hash slot) pair in forward's iteration order, so its
// length is offsets.Total()*num_hash. Row indices are taken from ids verbatim;
// nothing is re-hashed. dOut is [num_sequences, num_hash*row_width]. For
// every occurrence r of sequence i and slot h, the value row is a copy of
// dOut[i, h*W:(h+1)*W]: sum pooling broadcasts its gradient unchanged to
// every summand. Duplicate rows are left for the optimizer to accumulate.
//
// table is read only for its shape and may be any supported variant.
func Backward[T tensor.Float](table any, ids, dOut *tensor.RawTensor, offsets tensor.LoD, cfg Config, opts ...Option) (*tensor.SelectedRows, error) {
	rowNumber, width, err := TableDims(table)
	if err != nil {
		return nil, err
	}
	if !cfg.IsSparse {
		return nil, errors.WithStack(ErrUnimplementedDensePath)
	}
	if cfg.NumHash <= 0 {
		return nil, errors.Wrapf(ErrInvalidAttribute, "num_hash must be positive, got %d", cfg.NumHash)
	}

	rows, err := checkSelector(ids, offsets, cfg.NumHash, rowNumber)
	if err != nil {
		return nil, err
	}

	batch := offsets.NumSequences()
	last := cfg.NumHash * width
	if dOut == nil {
		return nil, errors.Wrap(ErrShapeMismatch, "output gradient is nil")
	}
	if dOut.DType() != tensor.DataTypeOf[T]() {
		return nil, errors.Wrapf(ErrDTypeMismatch, "output gradient is %s, kernel is %s",
			dOut.DType(), tensor.DataTypeOf[T]())
	}
	if want := (tensor.Shape{batch, last}); !dOut.Shape().Equal(want) {
		return nil, errors.Wrapf(ErrShapeMismatch, "output gradient has shape %v, want %v", dOut.Shape(), want)
	}

	grad, err := tensor.NewSelectedRows(rows, rowNumber, width, tensor.DataTypeOf[T]())
	if err != nil {
		return nil, errors.WithStack(err)
	}

	o := buildOptions(opts)
	p := blas.For[T]()
	src := tensor.View[T](dOut)
	dst := tensor.View[T](grad.Value)
	// Sequence i owns value rows [offsets[i]*num_hash, offsets[i+1]*num_hash).
	parallel.ForRange(batch, func(start, end int) {
		for i := start; i < end; i++ {
			g := src[i*last : (i+1)*last]
			for k := offsets[i] * cfg.NumHash; k < offsets[i+1]*cfg.NumHash; k++ {
				slot := k % cfg.NumHash
				p.Copy(g[slot*width:(slot+1)*width], dst[k*width:(k+1)*width])
			}
		}
	}, o.parallel)

	return grad, nil
}

// checkSelector validates ids against the segment offsets and table height
// and returns a copy of its entries as row indices.
func checkSelector(ids *tensor.RawTensor, offsets tensor.LoD, numHash, rowNumber int) ([]int64, error) {
	if ids == nil {
		return nil, errors.Wrap(ErrShapeMismatch, "selector Ids is nil")
	}
	if err := offsets.Validate(); err != nil {
		return nil, errors.Wrapf(ErrShapeMismatch, "segment offsets: %v", err)
	}
	want := offsets.Total() * numHash
	if ids.NumElements() != want {
		return nil, errors.Wrapf(ErrShapeMismatch,
			"selector Ids has %d entries, want %d (%d occurrences x %d hash slots)",
			ids.NumElements(), want, offsets.Total(), numHash)
	}

	rows := make([]int64, want)
	switch ids.DType() {
	case tensor.Int64:
		copy(rows, ids.AsInt64())
	case tensor.Int32:
		for k, v := range ids.AsInt32() {
			rows[k] = int64(v)
		}
	default:
		return nil, errors.Wrapf(ErrDTypeMismatch, "selector Ids must be int64 or int32, got %s", ids.DType())
	}

	for k, r := range rows {
		if r < 0 || r >= int64(rowNumber) {
			return nil, errors.Wrapf(ErrIndexOutOfRange, "selector Ids[%d] = %d, table has %d rows", k, r, rowNumber)
		}
	}
	return rows, nil
}
