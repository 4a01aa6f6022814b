package tensor

import (
	"unsafe"

	"github.com/pkg/errors"
)

// Device is an opaque placement handle. Kernels only pass it through when
// requesting buffers; the CPU is the only placement they compute on.
type Device int

// Known placements.
const (
	CPU Device = iota
	CUDA
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case CUDA:
		return "CUDA"
	default:
		return "Unknown"
	}
}

// RawTensor is a contiguous, row-major, untyped buffer with shape and type
// information. A RawTensor may carry segment offsets (LoD) that partition its
// leading dimension into variable-length sequences.
type RawTensor struct {
	data   []byte
	shape  Shape
	dtype  DataType
	device Device
	lod    LoD
}

// NewRaw allocates a zero-filled RawTensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid shape")
	}

	return &RawTensor{
		data:   make([]byte, shape.NumElements()*dtype.Size()),
		shape:  shape.Clone(),
		dtype:  dtype,
		device: device,
	}, nil
}

// FromSlice copies data into a new CPU RawTensor of the given shape.
func FromSlice[T DType](data []T, shape Shape) (*RawTensor, error) {
	if shape.NumElements() != len(data) {
		return nil, errors.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, shape.NumElements())
	}
	raw, err := NewRaw(shape, DataTypeOf[T](), CPU)
	if err != nil {
		return nil, err
	}
	copy(View[T](raw), data)
	return raw, nil
}

// MustFromSlice is FromSlice that panics on error. Intended for tests and
// literals whose shape is known to be right.
func MustFromSlice[T DType](data []T, shape Shape) *RawTensor {
	raw, err := FromSlice(data, shape)
	if err != nil {
		panic(err)
	}
	return raw
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Device returns the tensor's placement.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// Rows returns the size of the leading dimension.
func (r *RawTensor) Rows() int {
	if len(r.shape) == 0 {
		return 1
	}
	return r.shape[0]
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return len(r.data)
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	return r.data
}

// Row returns the raw bytes of leading index i.
func (r *RawTensor) Row(i int) []byte {
	n := r.shape.RowSize() * r.dtype.Size()
	return r.data[i*n : (i+1)*n]
}

// LoD returns the segment offsets attached to the tensor, or nil.
func (r *RawTensor) LoD() LoD {
	return r.lod
}

// SetLoD attaches segment offsets to the tensor. The offsets are not checked
// against the shape here; kernels validate them before use.
func (r *RawTensor) SetLoD(lod LoD) {
	r.lod = lod.Clone()
}

// Zero fills the buffer with zeros.
func (r *RawTensor) Zero() {
	clear(r.data)
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 { return view[float32](r, Float32) }

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 { return view[float64](r, Float64) }

// AsInt32 interprets the data as []int32.
// Panics if the tensor's dtype is not Int32.
func (r *RawTensor) AsInt32() []int32 { return view[int32](r, Int32) }

// AsInt64 interprets the data as []int64.
// Panics if the tensor's dtype is not Int64.
func (r *RawTensor) AsInt64() []int64 { return view[int64](r, Int64) }

// View interprets the data as []T. Panics if T does not match the dtype.
func View[T DType](r *RawTensor) []T {
	return view[T](r, DataTypeOf[T]())
}

func view[T DType](r *RawTensor, want DataType) []T {
	if r.dtype != want {
		panic("tensor dtype is " + r.dtype.String() + ", not " + want.String())
	}
	n := r.NumElements()
	if n == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, length bounded by NumElements()
	return unsafe.Slice((*T)(unsafe.Pointer(&r.data[0])), n)
}
