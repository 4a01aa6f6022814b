// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package seqpool provides hashed embedding lookup with sum pooling over
// variable-length sequences, and its sparse gradient.
//
// Example:
//
//	cfg := seqpool.DefaultConfig()
//	cfg.NumHash, cfg.ModBy = 2, 10000
//
//	out, ids, err := seqpool.ForwardWithIDs[float32](table, []*tensor.RawTensor{x}, cfg)
//	// out: [num_sequences, 2*width]
//	grad, err := seqpool.Backward[float32](table, ids[0], dOut, x.LoD(), cfg)
//	// grad.Rows == ids, grad.Value[k] is the matching slice of dOut
package seqpool

import (
	"github.com/born-ml/hashembed/internal/parallel"
	"github.com/born-ml/hashembed/internal/seqpool"
	"github.com/born-ml/hashembed/tensor"
)

// CombinerSum is the only supported pooling combiner.
const CombinerSum = seqpool.CombinerSum

// Config holds the operator attributes.
type Config = seqpool.Config

// Option customises kernel execution.
type Option = seqpool.Option

// Error kinds. Returned errors wrap one of these; test with errors.Is.
var (
	ErrShapeMismatch           = seqpool.ErrShapeMismatch
	ErrUnsupportedCombiner     = seqpool.ErrUnsupportedCombiner
	ErrUnsupportedTableVariant = seqpool.ErrUnsupportedTableVariant
	ErrUnimplementedDensePath  = seqpool.ErrUnimplementedDensePath
	ErrInvalidAttribute        = seqpool.ErrInvalidAttribute
	ErrIndexOutOfRange         = seqpool.ErrIndexOutOfRange
	ErrDTypeMismatch           = seqpool.ErrDTypeMismatch
)

// DefaultConfig returns num_hash=1, combiner "sum", sparse gradients.
// ModBy must still be set.
func DefaultConfig() Config {
	return seqpool.DefaultConfig()
}

// Sequential disables parallel execution over sequences.
func Sequential() Option {
	return seqpool.WithParallel(parallel.Sequential())
}

// Parallel splits sequences across workers. workers <= 0 means one per CPU.
func Parallel(workers int) Option {
	cfg := parallel.DefaultConfig()
	if workers > 0 {
		cfg.NumWorkers = workers
		cfg.Enabled = workers > 1
	}
	return seqpool.WithParallel(cfg)
}

// TableDims reports the row count and row width of a supported table.
func TableDims(table any) (rows, width int, err error) {
	return seqpool.TableDims(table)
}

// Forward pools the hashed table rows of every sequence of every input.
func Forward[T tensor.Float](table any, inputs []*tensor.RawTensor, cfg Config, opts ...Option) (*tensor.RawTensor, error) {
	return seqpool.Forward[T](table, inputs, cfg, opts...)
}

// ForwardWithIDs is Forward that also returns the selected row index of
// every (row, hash slot) pair, one tensor per input.
func ForwardWithIDs[T tensor.Float](table any, inputs []*tensor.RawTensor, cfg Config, opts ...Option) (*tensor.RawTensor, []*tensor.RawTensor, error) {
	return seqpool.ForwardWithIDs[T](table, inputs, cfg, opts...)
}

// HashIDs computes the row selector of x without touching a table.
func HashIDs(x *tensor.RawTensor, cfg Config, opts ...Option) (*tensor.RawTensor, error) {
	return seqpool.HashIDs(x, cfg, opts...)
}

// Backward expands the pooled gradient dOut into a sparse table gradient.
func Backward[T tensor.Float](table any, ids, dOut *tensor.RawTensor, offsets tensor.LoD, cfg Config, opts ...Option) (*tensor.SelectedRows, error) {
	return seqpool.Backward[T](table, ids, dOut, offsets, cfg, opts...)
}
