package serialization

import (
	"github.com/pkg/errors"

	"github.com/born-ml/hashembed/internal/tensor"
)

// Limits applied when reading untrusted files.
const (
	MaxHeaderSize    = 100 * 1024 * 1024
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 4096
)

// Metadata keys written by Write.
const (
	MetaKey      = "__metadata__"
	MetaChecksum = "sha256"
)

// TensorHeader is one tensor entry of the JSON header.
type TensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

func dtypeName(dt tensor.DataType) (string, error) {
	switch dt {
	case tensor.Float32:
		return "F32", nil
	case tensor.Float64:
		return "F64", nil
	case tensor.Int32:
		return "I32", nil
	case tensor.Int64:
		return "I64", nil
	}
	return "", errors.Wrapf(ErrUnsupportedDType, "%s", dt)
}

func parseDType(s string) (tensor.DataType, error) {
	switch s {
	case "F32":
		return tensor.Float32, nil
	case "F64":
		return tensor.Float64, nil
	case "I32":
		return tensor.Int32, nil
	case "I64":
		return tensor.Int64, nil
	}
	return 0, errors.Wrapf(ErrUnsupportedDType, "%q", s)
}
