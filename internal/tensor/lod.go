package tensor

import "github.com/pkg/errors"

// LoD ("level of detail") holds the segment offsets of a ragged batch:
// sequence i covers rows [lod[i], lod[i+1]) of the flat buffer.
//
// Example:
//
//	lod := LoD{0, 2, 3} // two sequences: rows {0, 1} and {2}
type LoD []int

// FromLengths builds offsets from per-sequence lengths.
func FromLengths(lengths ...int) LoD {
	lod := make(LoD, len(lengths)+1)
	for i, n := range lengths {
		lod[i+1] = lod[i] + n
	}
	return lod
}

// Validate checks that the offsets start at 0 and never decrease.
func (l LoD) Validate() error {
	if len(l) == 0 {
		return errors.New("empty segment offsets")
	}
	if l[0] != 0 {
		return errors.Errorf("segment offsets must start at 0, got %d", l[0])
	}
	for i := 1; i < len(l); i++ {
		if l[i] < l[i-1] {
			return errors.Errorf("segment offsets decrease at %d: %d < %d", i, l[i], l[i-1])
		}
	}
	return nil
}

// NumSequences returns the batch size described by the offsets.
func (l LoD) NumSequences() int {
	if len(l) == 0 {
		return 0
	}
	return len(l) - 1
}

// Total returns the number of rows covered by all sequences.
func (l LoD) Total() int {
	if len(l) == 0 {
		return 0
	}
	return l[len(l)-1]
}

// Len returns the length of sequence i.
func (l LoD) Len(i int) int {
	return l[i+1] - l[i]
}

// Range returns the half-open row range of sequence i.
func (l LoD) Range(i int) (start, end int) {
	return l[i], l[i+1]
}

// Scale returns offsets with every entry multiplied by k. Used when each
// row expands into k consecutive entries.
func (l LoD) Scale(k int) LoD {
	out := make(LoD, len(l))
	for i, v := range l {
		out[i] = v * k
	}
	return out
}

// Clone returns a copy of the offsets.
func (l LoD) Clone() LoD {
	if l == nil {
		return nil
	}
	out := make(LoD, len(l))
	copy(out, l)
	return out
}
