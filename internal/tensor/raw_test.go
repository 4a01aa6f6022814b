package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRaw_ZeroFilled(t *testing.T) {
	raw, err := NewRaw(Shape{3, 2}, Float32, CPU)
	require.NoError(t, err)

	assert.Equal(t, 6, raw.NumElements())
	assert.Equal(t, 24, raw.ByteSize())
	assert.Equal(t, []float32{0, 0, 0, 0, 0, 0}, raw.AsFloat32())
}

func TestNewRaw_EmptyBatch(t *testing.T) {
	raw, err := NewRaw(Shape{0, 4}, Float64, CPU)
	require.NoError(t, err)

	assert.Equal(t, 0, raw.NumElements())
	assert.Nil(t, raw.AsFloat64())
	assert.Equal(t, 0, raw.Rows())
}

func TestNewRaw_NegativeDim(t *testing.T) {
	_, err := NewRaw(Shape{2, -1}, Float32, CPU)
	assert.Error(t, err)
}

func TestRawTensorAsInt64_ZeroCopy(t *testing.T) {
	raw, _ := NewRaw(Shape{3, 2}, Int64, CPU)
	data := raw.AsInt64()
	data[0] = 42

	assert.Equal(t, int64(42), raw.AsInt64()[0])
}

func TestRawTensor_WrongViewPanics(t *testing.T) {
	raw, _ := NewRaw(Shape{2}, Int32, CPU)
	assert.Panics(t, func() { raw.AsFloat32() })
}

func TestFromSlice(t *testing.T) {
	raw, err := FromSlice([]int32{5, 9, 7}, Shape{3, 1})
	require.NoError(t, err)
	assert.Equal(t, Int32, raw.DType())
	assert.Equal(t, []int32{5, 9, 7}, raw.AsInt32())

	_, err = FromSlice([]float32{1, 2, 3}, Shape{2, 2})
	assert.Error(t, err)
}

func TestRawTensor_Row(t *testing.T) {
	raw := MustFromSlice([]int32{1, 2, 3, 4, 5, 6}, Shape{3, 2})

	assert.Len(t, raw.Row(0), 8)
	assert.Equal(t, raw.Data()[8:16], raw.Row(1))
}

func TestRawTensor_Zero(t *testing.T) {
	raw := MustFromSlice([]float64{1, 2}, Shape{2})
	raw.Zero()
	assert.Equal(t, []float64{0, 0}, raw.AsFloat64())
}

func TestRawTensor_SetLoDCopies(t *testing.T) {
	raw := MustFromSlice([]int64{1, 2, 3}, Shape{3, 1})
	lod := LoD{0, 2, 3}
	raw.SetLoD(lod)
	lod[1] = 1

	assert.Equal(t, LoD{0, 2, 3}, raw.LoD())
}

func TestShape_RowSize(t *testing.T) {
	assert.Equal(t, 4, Shape{3, 4}.RowSize())
	assert.Equal(t, 1, Shape{3}.RowSize())
	assert.Equal(t, 6, Shape{2, 3, 2}.RowSize())
}

func TestDataTypeOf(t *testing.T) {
	assert.Equal(t, Float32, DataTypeOf[float32]())
	assert.Equal(t, Float64, DataTypeOf[float64]())
	assert.Equal(t, Int32, DataTypeOf[int32]())
	assert.Equal(t, Int64, DataTypeOf[int64]())
}
