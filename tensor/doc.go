// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor exposes the buffers consumed by the hashed embedding
// kernels.
//
// # Overview
//
// A RawTensor is a contiguous row-major byte buffer with a shape, an element
// type and optional segment offsets (LoD). Segment offsets group consecutive
// rows into sequences: LoD{0, 2, 5} holds two sequences of 2 and 3 rows.
//
// SelectedRows is the sparse gradient format: a list of table row indices
// plus one value row per index. Duplicate indices are allowed; Merge sums
// them.
//
// # Basic Usage
//
//	x := tensor.MustFromSlice([]int64{1, 2, 3, 4, 5}, tensor.Shape{5, 1})
//	x.SetLoD(tensor.FromLengths(2, 3))
//
//	grad, _ := seqpool.Backward[float32](table, ids, dOut, offsets, cfg)
//	merged, _ := tensor.Merge[float32](grad)
package tensor
