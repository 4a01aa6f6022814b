// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/born-ml/hashembed/internal/tensor"

// DType is the constraint on element types a RawTensor can hold.
type DType = tensor.DType

// Float is the constraint on element types usable as embedding tables.
type Float = tensor.Float

// DataType is the runtime element type tag.
type DataType = tensor.DataType

// Supported element types.
const (
	Float32 = tensor.Float32
	Float64 = tensor.Float64
	Int32   = tensor.Int32
	Int64   = tensor.Int64
)

// Device identifies where a buffer lives.
type Device = tensor.Device

// Devices.
const (
	CPU  = tensor.CPU
	CUDA = tensor.CUDA
)

// Shape is a tensor shape.
type Shape = tensor.Shape

// RawTensor is a contiguous typed buffer with optional segment offsets.
type RawTensor = tensor.RawTensor

// LoD holds segment offsets: sequence i spans rows [LoD[i], LoD[i+1]).
type LoD = tensor.LoD

// SelectedRows is a sparse row gradient.
type SelectedRows = tensor.SelectedRows

// NewRaw allocates a zeroed tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// FromSlice copies data into a new CPU tensor of the given shape.
func FromSlice[T DType](data []T, shape Shape) (*RawTensor, error) {
	return tensor.FromSlice(data, shape)
}

// MustFromSlice is like FromSlice but panics on error.
func MustFromSlice[T DType](data []T, shape Shape) *RawTensor {
	return tensor.MustFromSlice(data, shape)
}

// View returns the elements of r as a []T sharing r's buffer.
func View[T DType](r *RawTensor) []T {
	return tensor.View[T](r)
}

// FromLengths builds segment offsets from per-sequence row counts.
func FromLengths(lengths ...int) LoD {
	return tensor.FromLengths(lengths...)
}

// NewSelectedRows allocates a sparse gradient with one zeroed value row per
// index.
func NewSelectedRows(rows []int64, height, width int, dtype DataType) (*SelectedRows, error) {
	return tensor.NewSelectedRows(rows, height, width, dtype)
}

// Merge sums duplicate rows of s, returning rows in ascending order.
func Merge[T Float](s *SelectedRows) (*SelectedRows, error) {
	return tensor.Merge[T](s)
}
