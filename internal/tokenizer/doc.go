// Package tokenizer turns text into integer token ids for the featuriser.
//
// Implementations:
//   - TikToken: OpenAI BPE encodings via github.com/pkoukk/tiktoken-go
//   - Bytes: one token per UTF-8 byte, needs no vocabulary files
package tokenizer
