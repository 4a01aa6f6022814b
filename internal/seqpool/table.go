package seqpool

import (
	"github.com/pkg/errors"
	gtensor "gorgonia.org/tensor"

	"github.com/born-ml/hashembed/internal/tensor"
)

// A table is passed around as a value of one of these variants:
//
//	*tensor.RawTensor     dense [row_number, row_width] matrix
//	*gtensor.Dense        dense gorgonia matrix with the same layout (views are
//	                      materialized first)
//	*tensor.SelectedRows  sparse row list (backward reads only its shape)
//
// Any other value is rejected with ErrUnsupportedTableVariant.

// TableDims returns (row_number, row_width) for any supported table variant.
func TableDims(table any) (rows, width int, err error) {
	var shape []int
	switch t := table.(type) {
	case *tensor.RawTensor:
		if t == nil {
			return 0, 0, errors.Wrap(ErrUnsupportedTableVariant, "nil table")
		}
		shape = t.Shape()
	case *gtensor.Dense:
		if t == nil {
			return 0, 0, errors.Wrap(ErrUnsupportedTableVariant, "nil table")
		}
		shape = t.Shape()
	case *tensor.SelectedRows:
		if t == nil || t.Value == nil {
			return 0, 0, errors.Wrap(ErrUnsupportedTableVariant, "nil table")
		}
		return t.Height, t.Width(), nil
	default:
		return 0, 0, errors.Wrapf(ErrUnsupportedTableVariant,
			"table W must be a dense matrix or selected rows, got %T", table)
	}
	if len(shape) != 2 {
		return 0, 0, errors.Wrapf(ErrShapeMismatch, "table W must be 2-D, got shape %v", shape)
	}
	return shape[0], shape[1], nil
}

// denseTable returns the row-major backing data of a dense table.
func denseTable[T tensor.Float](table any) (data []T, rows, width int, err error) {
	rows, width, err = TableDims(table)
	if err != nil {
		return nil, 0, 0, err
	}

	switch t := table.(type) {
	case *tensor.RawTensor:
		if t.DType() != tensor.DataTypeOf[T]() {
			return nil, 0, 0, errors.Wrapf(ErrDTypeMismatch, "table W is %s, kernel is %s",
				t.DType(), tensor.DataTypeOf[T]())
		}
		return tensor.View[T](t), rows, width, nil
	case *gtensor.Dense:
		if t.IsView() {
			m, ok := t.Materialize().(*gtensor.Dense)
			if !ok {
				return nil, 0, 0, errors.Wrap(ErrUnsupportedTableVariant, "table W view cannot be materialized")
			}
			t = m
		}
		d, ok := t.Data().([]T)
		if !ok {
			return nil, 0, 0, errors.Wrapf(ErrDTypeMismatch, "table W is %v, kernel is %s",
				t.Dtype(), tensor.DataTypeOf[T]())
		}
		if !t.DataOrder().IsRowMajor() {
			return nil, 0, 0, errors.Wrap(ErrUnsupportedTableVariant, "table W must be row-major")
		}
		if len(d) < rows*width {
			return nil, 0, 0, errors.Wrapf(ErrShapeMismatch,
				"table W holds %d values, shape needs %d", len(d), rows*width)
		}
		return d, rows, width, nil
	default:
		return nil, 0, 0, errors.Wrapf(ErrUnsupportedTableVariant,
			"forward needs a dense table W, got %T", table)
	}
}
