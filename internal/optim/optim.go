// Package optim applies sparse table gradients produced by the hashed
// embedding backward pass.
//
// A gradient arrives as tensor.SelectedRows: a row-index list (with possible
// duplicates) and one value row per index. Optimizers merge duplicates, then
// update only the touched table rows in place.
//
// Example usage:
//
//	sgd := optim.NewSparseSGD[float32](optim.SGDConfig{LR: 0.1})
//	grad, _ := seqpool.Backward[float32](table, ids, dOut, lod, cfg)
//	if err := sgd.Step(table, grad); err != nil {
//	    return err
//	}
package optim

import (
	"github.com/pkg/errors"

	"github.com/born-ml/hashembed/internal/tensor"
)

// SparseOptimizer updates a dense table from a sparse row gradient.
type SparseOptimizer interface {
	// Step applies grad to table in place.
	Step(table *tensor.RawTensor, grad *tensor.SelectedRows) error

	// GetLR returns the current learning rate.
	GetLR() float64
}

// checkStep validates that grad describes a matrix shaped like table.
func checkStep[T tensor.Float](table *tensor.RawTensor, grad *tensor.SelectedRows) error {
	if table == nil || grad == nil {
		return errors.New("optim: nil table or gradient")
	}
	if table.DType() != tensor.DataTypeOf[T]() || grad.Value == nil || grad.Value.DType() != table.DType() {
		return errors.Errorf("optim: dtype mismatch, optimizer is %s", tensor.DataTypeOf[T]())
	}
	shape := table.Shape()
	if len(shape) != 2 {
		return errors.Errorf("optim: table must be 2-D, got %v", shape)
	}
	if !grad.Dims().Equal(shape) {
		return errors.Errorf("optim: gradient describes %v, table is %v", grad.Dims(), shape)
	}
	return errors.Wrap(grad.Validate(), "optim: invalid gradient")
}
