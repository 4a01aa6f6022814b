package tokenizer

import (
	"strings"

	"github.com/pkg/errors"
)

// Tokenizer converts text to token ids.
type Tokenizer interface {
	// Encode converts text to token IDs.
	Encode(text string) ([]int64, error)

	// Name identifies the tokenizer (encoding or model name).
	Name() string
}

// New returns the tokenizer registered under name: "bytes", any tiktoken
// encoding name such as "cl100k_base", or "model:" followed by a model name
// such as "model:gpt-4".
func New(name string) (Tokenizer, error) {
	if name == BytesName {
		return Bytes{}, nil
	}
	if model, ok := strings.CutPrefix(name, ModelPrefix); ok {
		tok, err := NewTikTokenForModel(model)
		if err != nil {
			return nil, errors.Wrapf(err, "unknown tokenizer %q", name)
		}
		return tok, nil
	}
	tok, err := NewTikToken(name)
	if err != nil {
		return nil, errors.Wrapf(err, "unknown tokenizer %q", name)
	}
	return tok, nil
}

// BytesName is the name of the byte-level tokenizer.
const BytesName = "bytes"

// ModelPrefix selects a tiktoken encoding by model name.
const ModelPrefix = "model:"

// Bytes emits one token per UTF-8 byte, so ids are in [0, 256).
type Bytes struct{}

// Encode converts text to byte token IDs.
func (Bytes) Encode(text string) ([]int64, error) {
	ids := make([]int64, len(text))
	for i := 0; i < len(text); i++ {
		ids[i] = int64(text[i])
	}
	return ids, nil
}

// Name returns "bytes".
func (Bytes) Name() string {
	return BytesName
}
