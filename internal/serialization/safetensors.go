package serialization

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"slices"

	"github.com/pkg/errors"

	"github.com/born-ml/hashembed/internal/tensor"
)

// Write serializes tensors and metadata to w. Tensors are laid out in
// alphabetical order by name.
func Write(w io.Writer, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	names := slices.Sorted(maps.Keys(tensors))
	if len(names) > MaxTensorCount {
		return errors.Wrapf(ErrTooManyTensors, "got %d, max %d", len(names), MaxTensorCount)
	}

	header := make(map[string]any, len(names)+1)
	sum := sha256.New()
	var offset int64
	for _, name := range names {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		raw := tensors[name]
		if raw == nil {
			return errors.Errorf("tensor %q is nil", name)
		}
		dtype, err := dtypeName(raw.DType())
		if err != nil {
			return errors.Wrapf(err, "tensor %q", name)
		}
		shape := make([]int64, len(raw.Shape()))
		for i, d := range raw.Shape() {
			shape[i] = int64(d)
		}
		size := int64(raw.ByteSize())
		header[name] = TensorHeader{
			DType:       dtype,
			Shape:       shape,
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
		sum.Write(raw.Data())
	}

	meta := maps.Clone(metadata)
	if meta == nil {
		meta = make(map[string]string, 1)
	}
	meta[MetaChecksum] = hex.EncodeToString(sum.Sum(nil))
	header[MetaKey] = meta

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "failed to marshal header")
	}

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return errors.Wrap(err, "failed to write header size")
	}
	if _, err := bw.Write(headerJSON); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	for _, name := range names {
		if _, err := bw.Write(tensors[name].Data()); err != nil {
			return errors.Wrapf(err, "failed to write tensor %s", name)
		}
	}
	return errors.Wrap(bw.Flush(), "failed to flush")
}

// WriteFile writes tensors to path, replacing any existing file.
func WriteFile(path string, tensors map[string]*tensor.RawTensor, metadata map[string]string) (err error) {
	//nolint:gosec // G304: checkpoint path is user configuration
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = errors.Wrap(cerr, "failed to close file")
		}
	}()
	return Write(f, tensors, metadata)
}

// Read parses a file produced by Write (or any SafeTensors file using the
// supported dtypes). The checksum is verified when present.
func Read(r io.Reader) (map[string]*tensor.RawTensor, map[string]string, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, nil, errors.Wrap(err, "failed to read header size")
	}
	if headerSize > MaxHeaderSize {
		return nil, nil, errors.Wrapf(ErrHeaderTooLarge, "%d bytes", headerSize)
	}
	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, nil, errors.Wrap(err, "failed to read header")
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(headerJSON, &entries); err != nil {
		return nil, nil, errors.Wrap(err, "failed to parse header")
	}
	var metadata map[string]string
	if raw, ok := entries[MetaKey]; ok {
		if err := json.Unmarshal(raw, &metadata); err != nil {
			return nil, nil, errors.Wrap(err, "failed to parse metadata")
		}
		delete(entries, MetaKey)
	}
	if len(entries) > MaxTensorCount {
		return nil, nil, errors.Wrapf(ErrTooManyTensors, "got %d, max %d", len(entries), MaxTensorCount)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read tensor data")
	}
	if want, ok := metadata[MetaChecksum]; ok {
		got := sha256.Sum256(data)
		if hex.EncodeToString(got[:]) != want {
			return nil, nil, ErrChecksumMismatch
		}
	}

	headers := make(map[string]TensorHeader, len(entries))
	spans := make([]span, 0, len(entries))
	for name, raw := range entries {
		if err := ValidateTensorName(name); err != nil {
			return nil, nil, err
		}
		var h TensorHeader
		if err := json.Unmarshal(raw, &h); err != nil {
			return nil, nil, errors.Wrapf(err, "failed to parse tensor %q", name)
		}
		headers[name] = h
		spans = append(spans, span{name: name, start: h.DataOffsets[0], end: h.DataOffsets[1]})
	}
	if err := validateOffsets(spans, int64(len(data))); err != nil {
		return nil, nil, err
	}

	tensors := make(map[string]*tensor.RawTensor, len(headers))
	for name, h := range headers {
		t, err := decodeTensor(name, h, data)
		if err != nil {
			return nil, nil, err
		}
		tensors[name] = t
	}
	return tensors, metadata, nil
}

// ReadFile reads a checkpoint from path.
func ReadFile(path string) (map[string]*tensor.RawTensor, map[string]string, error) {
	//nolint:gosec // G304: checkpoint path is user configuration
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open file")
	}
	defer func() {
		_ = f.Close()
	}()
	return Read(bufio.NewReader(f))
}

func decodeTensor(name string, h TensorHeader, data []byte) (*tensor.RawTensor, error) {
	dtype, err := parseDType(h.DType)
	if err != nil {
		return nil, errors.Wrapf(err, "tensor %q", name)
	}
	shape := make(tensor.Shape, len(h.Shape))
	size := int64(dtype.Size())
	for i, d := range h.Shape {
		if d > 0 && size > math.MaxInt/d {
			return nil, &ValidationError{
				Type:    "size_overflow",
				Tensor:  name,
				Details: fmt.Sprintf("shape %v overflows the addressable size", h.Shape),
			}
		}
		shape[i] = int(d)
		size *= max(d, 0)
	}
	if err := shape.Validate(); err != nil {
		return nil, errors.Wrapf(err, "tensor %q", name)
	}
	if size != h.DataOffsets[1]-h.DataOffsets[0] {
		return nil, &ValidationError{
			Type:    "size_mismatch",
			Tensor:  name,
			Details: "data_offsets do not match dtype and shape",
		}
	}
	t, err := tensor.NewRaw(shape, dtype, tensor.CPU)
	if err != nil {
		return nil, errors.Wrapf(err, "tensor %q", name)
	}
	copy(t.Data(), data[h.DataOffsets[0]:h.DataOffsets[1]])
	return t, nil
}
