package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/hashembed/internal/tensor"
)

func checkpointTensors() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight":   tensor.MustFromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{3, 2}),
		"velocity": tensor.MustFromSlice([]float64{0.5, -0.5}, tensor.Shape{1, 2}),
		"ids":      tensor.MustFromSlice([]int64{7, 8, 9}, tensor.Shape{3, 1}),
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, checkpointTensors(), map[string]string{"num_hash": "2"}))

	got, meta, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, tensor.Shape{3, 2}, got["weight"].Shape())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, got["weight"].AsFloat32())
	assert.Equal(t, []float64{0.5, -0.5}, got["velocity"].AsFloat64())
	assert.Equal(t, []int64{7, 8, 9}, got["ids"].AsInt64())
	assert.Equal(t, "2", meta["num_hash"])
	assert.Len(t, meta[MetaChecksum], 64)
}

func TestWriteFile_ReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.safetensors")
	require.NoError(t, WriteFile(path, checkpointTensors(), nil))

	got, _, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, got["weight"].AsFloat32())
}

func TestWrite_LayoutIsSorted(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, checkpointTensors(), nil))

	var size uint64
	require.NoError(t, binary.Read(&buf, binary.LittleEndian, &size))
	var header map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Next(int(size)), &header))

	var ids, velocity, weight TensorHeader
	require.NoError(t, json.Unmarshal(header["ids"], &ids))
	require.NoError(t, json.Unmarshal(header["velocity"], &velocity))
	require.NoError(t, json.Unmarshal(header["weight"], &weight))

	assert.Equal(t, [2]int64{0, 24}, ids.DataOffsets)
	assert.Equal(t, [2]int64{24, 40}, velocity.DataOffsets)
	assert.Equal(t, [2]int64{40, 64}, weight.DataOffsets)
	assert.Equal(t, "F32", weight.DType)
	assert.Equal(t, []int64{3, 2}, weight.Shape)
}

func TestRead_ChecksumMismatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, checkpointTensors(), nil))
	data := buf.Bytes()
	data[len(data)-1] ^= 0xff

	_, _, err := Read(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

// encode builds a file from a hand-written header, bypassing Write.
func encode(t *testing.T, header map[string]any, data []byte) *bytes.Reader {
	t.Helper()
	h, err := json.Marshal(header)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(len(h))))
	buf.Write(h)
	buf.Write(data)
	return bytes.NewReader(buf.Bytes())
}

func TestRead_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		header   map[string]any
		dataSize int
		errType  string
		sentinel error
	}{
		{
			name: "out of bounds",
			header: map[string]any{
				"a": TensorHeader{DType: "F32", Shape: []int64{4}, DataOffsets: [2]int64{0, 16}},
			},
			dataSize: 8,
			errType:  "out_of_bounds",
		},
		{
			name: "overlap",
			header: map[string]any{
				"a": TensorHeader{DType: "F32", Shape: []int64{2}, DataOffsets: [2]int64{0, 8}},
				"b": TensorHeader{DType: "F32", Shape: []int64{2}, DataOffsets: [2]int64{4, 12}},
			},
			dataSize: 12,
			errType:  "offset_overlap",
		},
		{
			name: "negative offset",
			header: map[string]any{
				"a": TensorHeader{DType: "F32", Shape: []int64{1}, DataOffsets: [2]int64{-4, 0}},
			},
			dataSize: 4,
			errType:  "negative_offset",
		},
		{
			name: "size mismatch",
			header: map[string]any{
				"a": TensorHeader{DType: "F64", Shape: []int64{2}, DataOffsets: [2]int64{0, 8}},
			},
			dataSize: 8,
			errType:  "size_mismatch",
		},
		{
			name: "shape overflows size",
			header: map[string]any{
				"a": TensorHeader{DType: "F32", Shape: []int64{1<<62 + 1, 4}, DataOffsets: [2]int64{0, 16}},
			},
			dataSize: 16,
			errType:  "size_overflow",
		},
		{
			name: "unknown dtype",
			header: map[string]any{
				"a": TensorHeader{DType: "BF16", Shape: []int64{2}, DataOffsets: [2]int64{0, 4}},
			},
			dataSize: 4,
			sentinel: ErrUnsupportedDType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Read(encode(t, tt.header, make([]byte, tt.dataSize)))
			require.Error(t, err)
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.errType, verr.Type)
		})
	}
}

func TestRead_HeaderTooLarge(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(MaxHeaderSize+1)))

	_, _, err := Read(&buf)
	assert.ErrorIs(t, err, ErrHeaderTooLarge)
}

func TestValidateTensorName(t *testing.T) {
	assert.NoError(t, ValidateTensorName("weight"))
	assert.ErrorIs(t, ValidateTensorName(""), ErrInvalidTensorName)
	assert.ErrorIs(t, ValidateTensorName(MetaKey), ErrInvalidTensorName)
	assert.ErrorIs(t, ValidateTensorName("a\nb"), ErrInvalidTensorName)
}

func TestWrite_RejectsUnsupportedName(t *testing.T) {
	err := Write(&bytes.Buffer{}, map[string]*tensor.RawTensor{
		MetaKey: tensor.MustFromSlice([]float32{1}, tensor.Shape{1}),
	}, nil)
	assert.ErrorIs(t, err, ErrInvalidTensorName)
}
