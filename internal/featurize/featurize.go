// Package featurize turns raw text into the ragged window batches consumed by
// the hashed embedding kernels.
//
// Each text becomes one sequence. The text is Unicode-normalised, tokenised,
// and cut into overlapping n-grams of token ids; every n-gram is one feature
// window (one row of the batch).
package featurize

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"

	"github.com/born-ml/hashembed/internal/tensor"
	"github.com/born-ml/hashembed/internal/tokenizer"
)

// PadID fills windows of texts shorter than one n-gram.
const PadID int64 = -1

// Featurizer builds ragged n-gram batches.
type Featurizer struct {
	Tokenizer tokenizer.Tokenizer
	NGram     int  // Tokens per window (>= 1).
	Lower     bool // Lower-case text before tokenising.
}

// New returns a Featurizer over tok producing n-gram windows.
func New(tok tokenizer.Tokenizer, ngram int) (*Featurizer, error) {
	if tok == nil {
		return nil, errors.New("featurize: nil tokenizer")
	}
	if ngram < 1 {
		return nil, errors.Errorf("featurize: n-gram size must be >= 1, got %d", ngram)
	}
	return &Featurizer{Tokenizer: tok, NGram: ngram}, nil
}

// Normalize applies NFKC and optional lower-casing.
func (f *Featurizer) Normalize(text string) string {
	text = norm.NFKC.String(text)
	if f.Lower {
		text = strings.ToLower(text)
	}
	return text
}

// Windows returns the n-gram windows of one text, flattened row-major.
// An empty text has no windows; a text shorter than NGram tokens has one
// window right-padded with PadID.
func (f *Featurizer) Windows(text string) ([]int64, error) {
	ids, err := f.Tokenizer.Encode(f.Normalize(text))
	if err != nil {
		return nil, errors.Wrapf(err, "featurize: tokenize with %s", f.Tokenizer.Name())
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) < f.NGram {
		w := make([]int64, f.NGram)
		copy(w, ids)
		for i := len(ids); i < f.NGram; i++ {
			w[i] = PadID
		}
		return w, nil
	}

	n := len(ids) - f.NGram + 1
	out := make([]int64, 0, n*f.NGram)
	for i := 0; i < n; i++ {
		out = append(out, ids[i:i+f.NGram]...)
	}
	return out, nil
}

// Batch featurises texts into an Int64 tensor of shape
// [total_windows, NGram] whose segment offsets give one sequence per text.
func (f *Featurizer) Batch(texts []string) (*tensor.RawTensor, error) {
	var flat []int64
	lengths := make([]int, len(texts))
	for i, text := range texts {
		w, err := f.Windows(text)
		if err != nil {
			return nil, errors.Wrapf(err, "text %d", i)
		}
		lengths[i] = len(w) / f.NGram
		flat = append(flat, w...)
	}

	x, err := tensor.FromSlice(flat, tensor.Shape{len(flat) / f.NGram, f.NGram})
	if err != nil {
		return nil, err
	}
	x.SetLoD(tensor.FromLengths(lengths...))
	return x, nil
}
