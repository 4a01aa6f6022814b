package tensor

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/born-ml/hashembed/internal/blas"
)

// SelectedRows is a sparse row list over a matrix of Height rows: Value row k
// belongs to matrix row Rows[k]. Rows may repeat; each entry is one additive
// contribution.
type SelectedRows struct {
	Rows   []int64
	Value  *RawTensor
	Height int
}

// NewSelectedRows allocates a zero-filled sparse row list.
func NewSelectedRows(rows []int64, height, width int, dtype DataType) (*SelectedRows, error) {
	value, err := NewRaw(Shape{len(rows), width}, dtype, CPU)
	if err != nil {
		return nil, err
	}
	return &SelectedRows{Rows: rows, Value: value, Height: height}, nil
}

// Width returns the row width of the value matrix.
func (s *SelectedRows) Width() int {
	if len(s.Value.Shape()) < 2 {
		return 1
	}
	return s.Value.Shape()[1]
}

// Dims returns the shape of the dense matrix this list describes.
func (s *SelectedRows) Dims() Shape {
	return Shape{s.Height, s.Width()}
}

// Validate checks that every row index is in range and that the value matrix
// has one row per index.
func (s *SelectedRows) Validate() error {
	if s.Value == nil {
		return errors.New("selected rows without value")
	}
	if len(s.Value.Shape()) != 2 {
		return errors.Errorf("selected rows value must be 2-D, got %v", s.Value.Shape())
	}
	if s.Value.Shape()[0] != len(s.Rows) {
		return errors.Errorf("selected rows value has %d rows for %d indices", s.Value.Shape()[0], len(s.Rows))
	}
	for k, r := range s.Rows {
		if r < 0 || r >= int64(s.Height) {
			return errors.Errorf("row %d at entry %d out of range [0, %d)", r, k, s.Height)
		}
	}
	return nil
}

// Append concatenates two sparse lists over the same matrix.
func (s *SelectedRows) Append(other *SelectedRows) (*SelectedRows, error) {
	if s.Height != other.Height || s.Width() != other.Width() || s.Value.DType() != other.Value.DType() {
		return nil, errors.Errorf("cannot append selected rows %v/%s to %v/%s",
			other.Dims(), other.Value.DType(), s.Dims(), s.Value.DType())
	}
	rows := slices.Concat(s.Rows, other.Rows)
	out, err := NewSelectedRows(rows, s.Height, s.Width(), s.Value.DType())
	if err != nil {
		return nil, err
	}
	n := copy(out.Value.Data(), s.Value.Data())
	copy(out.Value.Data()[n:], other.Value.Data())
	return out, nil
}

// Merge sums the values of duplicate rows. The result lists every distinct
// row once, in ascending order.
func Merge[T Float](s *SelectedRows) (*SelectedRows, error) {
	width := s.Width()
	unique := slices.Clone(s.Rows)
	slices.Sort(unique)
	unique = slices.Compact(unique)

	out, err := NewSelectedRows(unique, s.Height, width, s.Value.DType())
	if err != nil {
		return nil, err
	}
	pos := make(map[int64]int, len(unique))
	for k, r := range unique {
		pos[r] = k
	}

	p := blas.For[T]()
	src := View[T](s.Value)
	dst := View[T](out.Value)
	for k, r := range s.Rows {
		p.Axpy(1, src[k*width:(k+1)*width], dst[pos[r]*width:(pos[r]+1)*width])
	}
	return out, nil
}
