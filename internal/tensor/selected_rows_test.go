package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectedRows_Validate(t *testing.T) {
	sr := &SelectedRows{
		Rows:   []int64{0, 3},
		Value:  MustFromSlice([]float32{1, 2, 3, 4}, Shape{2, 2}),
		Height: 4,
	}
	require.NoError(t, sr.Validate())
	assert.Equal(t, Shape{4, 2}, sr.Dims())

	sr.Rows[1] = 4
	assert.Error(t, sr.Validate())

	sr.Rows = []int64{0}
	assert.Error(t, sr.Validate())
}

func TestSelectedRows_Append(t *testing.T) {
	a := &SelectedRows{Rows: []int64{1}, Value: MustFromSlice([]float32{1, 2}, Shape{1, 2}), Height: 4}
	b := &SelectedRows{Rows: []int64{1, 2}, Value: MustFromSlice([]float32{3, 4, 5, 6}, Shape{2, 2}), Height: 4}

	out, err := a.Append(b)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 1, 2}, out.Rows)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, out.Value.AsFloat32())

	c := &SelectedRows{Rows: []int64{0}, Value: MustFromSlice([]float32{1, 2, 3}, Shape{1, 3}), Height: 4}
	_, err = a.Append(c)
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	sr := &SelectedRows{
		Rows:   []int64{2, 0, 2},
		Value:  MustFromSlice([]float64{1, 1, 5, 5, 2, 3}, Shape{3, 2}),
		Height: 3,
	}

	merged, err := Merge[float64](sr)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 2}, merged.Rows)
	assert.Equal(t, []float64{5, 5, 3, 4}, merged.Value.AsFloat64())
	assert.Equal(t, 3, merged.Height)
}
