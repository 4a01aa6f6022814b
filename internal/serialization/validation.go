package serialization

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

type span struct {
	name       string
	start, end int64
}

// validateOffsets rejects negative, out-of-bounds and overlapping tensor
// regions. A malformed file must never make Read alias or over-read memory.
func validateOffsets(spans []span, dataSize int64) error {
	sorted := slices.Clone(spans)
	slices.SortFunc(sorted, func(a, b span) int {
		return cmp.Compare(a.start, b.start)
	})

	for i, s := range sorted {
		if s.start < 0 || s.end < s.start {
			return &ValidationError{
				Type:    "negative_offset",
				Tensor:  s.name,
				Details: fmt.Sprintf("data_offsets [%d, %d]", s.start, s.end),
			}
		}
		if s.end > dataSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  s.name,
				Details: fmt.Sprintf("end %d > data_size %d", s.end, dataSize),
			}
		}
		if i+1 < len(sorted) && s.end > sorted[i+1].start {
			next := sorted[i+1]
			return &ValidationError{
				Type:    "offset_overlap",
				Tensor:  s.name,
				Tensor2: next.name,
				Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap", s.start, s.end, next.start, next.end),
			}
		}
	}
	return nil
}

// ValidateTensorName checks that name is a safe, printable tensor name.
func ValidateTensorName(name string) error {
	if name == "" {
		return errors.Wrap(ErrInvalidTensorName, "empty name")
	}
	if len(name) > MaxTensorNameLen {
		return errors.Wrapf(ErrInvalidTensorName, "name length %d exceeds %d", len(name), MaxTensorNameLen)
	}
	if name == MetaKey {
		return errors.Wrapf(ErrInvalidTensorName, "%q is reserved", name)
	}
	if strings.ContainsFunc(name, func(r rune) bool { return r < 0x20 || r == 0x7f }) {
		return errors.Wrapf(ErrInvalidTensorName, "%q contains control characters", name)
	}
	return nil
}
