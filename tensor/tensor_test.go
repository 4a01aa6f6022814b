// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/hashembed/tensor"
)

func TestPublicAPI(t *testing.T) {
	x := tensor.MustFromSlice([]int64{1, 2, 3}, tensor.Shape{3, 1})
	x.SetLoD(tensor.FromLengths(1, 2))

	assert.Equal(t, tensor.Int64, x.DType())
	assert.Equal(t, 2, x.LoD().NumSequences())
	assert.Equal(t, []int64{1, 2, 3}, tensor.View[int64](x))

	g, err := tensor.NewSelectedRows([]int64{4, 1, 4}, 5, 2, tensor.Float32)
	require.NoError(t, err)
	copy(g.Value.AsFloat32(), []float32{1, 1, 2, 2, 3, 3})

	merged, err := tensor.Merge[float32](g)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 4}, merged.Rows)
	assert.Equal(t, []float32{2, 2, 4, 4}, merged.Value.AsFloat32())
}
