package seqpool

import (
	"github.com/pkg/errors"

	"github.com/born-ml/hashembed/internal/blas"
	"github.com/born-ml/hashembed/internal/hashing"
	"github.com/born-ml/hashembed/internal/parallel"
	"github.com/born-ml/hashembed/internal/tensor"
)

// Forward hashes every feature window of every input into cfg.NumHash table
// rows and sum-pools them per sequence:
//
//	out[i, h*W:(h+1)*W] = Σ_X Σ_{r in seq i of X} table[xxh64(X[r], seed=h) % mod_by]
//
// Each input is a [total_rows, window_size] tensor carrying its segment
// offsets (LoD). All inputs must describe the same number of sequences. The
// output is [num_sequences, num_hash*row_width] of element type T.
func Forward[T tensor.Float](table any, inputs []*tensor.RawTensor, cfg Config, opts ...Option) (*tensor.RawTensor, error) {
	out, _, err := forward[T](table, inputs, cfg, false, buildOptions(opts))
	return out, err
}

// ForwardWithIDs is Forward that also materialises the selector consumed by
// Backward: one Int64 tensor per input holding the hashed row index of every
// (row, hash slot) pair, in row-major order, with the input's segment offsets
// scaled by num_hash attached.
func ForwardWithIDs[T tensor.Float](table any, inputs []*tensor.RawTensor, cfg Config, opts ...Option) (*tensor.RawTensor, []*tensor.RawTensor, error) {
	return forward[T](table, inputs, cfg, true, buildOptions(opts))
}

func forward[T tensor.Float](table any, inputs []*tensor.RawTensor, cfg Config, withIDs bool, o options) (*tensor.RawTensor, []*tensor.RawTensor, error) {
	if err := cfg.checkCombiner(); err != nil {
		return nil, nil, err
	}
	tbl, rowNumber, width, err := denseTable[T](table)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.checkHash(rowNumber); err != nil {
		return nil, nil, err
	}
	batch, err := checkInputs(inputs)
	if err != nil {
		return nil, nil, err
	}

	last := cfg.NumHash * width
	out, err := tensor.NewRaw(tensor.Shape{batch, last}, tensor.DataTypeOf[T](), tensor.CPU)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	outData := tensor.View[T](out)

	var ids []*tensor.RawTensor
	if withIDs {
		ids = make([]*tensor.RawTensor, len(inputs))
	}

	p := blas.For[T]()
	// Inputs are pooled one after another; within an input every chunk of
	// sequences owns its output rows, so workers never share a write.
	for k, x := range inputs {
		var sel []int64
		if withIDs {
			ids[k], err = newSelector(x, cfg.NumHash)
			if err != nil {
				return nil, nil, err
			}
			sel = ids[k].AsInt64()
		}

		lod := x.LoD()
		parallel.ForRange(batch, func(start, end int) {
			h := hashing.NewHasher(cfg.ModBy)
			for i := start; i < end; i++ {
				dst := outData[i*last : (i+1)*last]
				for r := lod[i]; r < lod[i+1]; r++ {
					window := x.Row(r)
					for slot := 0; slot < cfg.NumHash; slot++ {
						id := int(h.RowIndex(window, slot))
						if sel != nil {
							sel[r*cfg.NumHash+slot] = int64(id)
						}
						p.Axpy(1, tbl[id*width:(id+1)*width], dst[slot*width:(slot+1)*width])
					}
				}
			}
		}, o.parallel)
	}

	return out, ids, nil
}

// HashIDs computes the selector for one input without touching a table.
// mod_by is only checked for positivity; the caller owns the bound against
// the table it will be used with.
func HashIDs(x *tensor.RawTensor, cfg Config, opts ...Option) (*tensor.RawTensor, error) {
	if err := cfg.checkHash(-1); err != nil {
		return nil, err
	}
	if _, err := checkInputs([]*tensor.RawTensor{x}); err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	ids, err := newSelector(x, cfg.NumHash)
	if err != nil {
		return nil, err
	}
	sel := ids.AsInt64()
	parallel.ForRange(x.Rows(), func(start, end int) {
		h := hashing.NewHasher(cfg.ModBy)
		for r := start; r < end; r++ {
			window := x.Row(r)
			for slot := 0; slot < cfg.NumHash; slot++ {
				sel[r*cfg.NumHash+slot] = h.RowIndex(window, slot)
			}
		}
	}, o.parallel)
	return ids, nil
}

// newSelector allocates the [rows*num_hash, 1] selector for x.
func newSelector(x *tensor.RawTensor, numHash int) (*tensor.RawTensor, error) {
	ids, err := tensor.NewRaw(tensor.Shape{x.Rows() * numHash, 1}, tensor.Int64, tensor.CPU)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	ids.SetLoD(x.LoD().Scale(numHash))
	return ids, nil
}

// checkInputs validates the ragged structure of every input and returns the
// shared batch size.
func checkInputs(inputs []*tensor.RawTensor) (int, error) {
	if len(inputs) == 0 {
		return 0, errors.Wrap(ErrShapeMismatch, "input X should be at least one tensor")
	}

	batch := -1
	for k, x := range inputs {
		if x == nil {
			return 0, errors.Wrapf(ErrShapeMismatch, "input X[%d] is nil", k)
		}
		if len(x.Shape()) == 0 {
			return 0, errors.Wrapf(ErrShapeMismatch, "input X[%d] is a scalar", k)
		}
		lod := x.LoD()
		if err := lod.Validate(); err != nil {
			return 0, errors.Wrapf(ErrShapeMismatch, "input X[%d]: %v", k, err)
		}
		if lod.Total() != x.Rows() {
			return 0, errors.Wrapf(ErrShapeMismatch,
				"input X[%d] has %d rows but its segment offsets cover %d", k, x.Rows(), lod.Total())
		}
		if x.Rows() != inputs[0].Rows() {
			return 0, errors.Wrapf(ErrShapeMismatch,
				"input X[%d] has %d rows, X[0] has %d", k, x.Rows(), inputs[0].Rows())
		}
		switch {
		case batch < 0:
			batch = lod.NumSequences()
		case lod.NumSequences() != batch:
			return 0, errors.Wrapf(ErrShapeMismatch,
				"input X[%d] has batch size %d, X[0] has %d", k, lod.NumSequences(), batch)
		}
	}
	return batch, nil
}
