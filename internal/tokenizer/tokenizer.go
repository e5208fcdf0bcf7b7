// Package tokenizer counts tokens with the cl100k_base BPE vocabulary,
// matching what embedding and generation models actually consume.
package tokenizer

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
)

// DefaultEncoding is the BPE vocabulary used when none is configured
const DefaultEncoding = "cl100k_base"

// Ensure Tiktoken implements Tokenizer
var _ driven.Tokenizer = (*Tiktoken)(nil)

// Tiktoken counts tokens using a tiktoken BPE encoding
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken creates a tokenizer for the given encoding name
func NewTiktoken(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding %q: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Ensure Approx implements Tokenizer
var _ driven.Tokenizer = (*Approx)(nil)

// Approx is a word-count approximation used when the BPE vocabulary
// cannot be loaded (no cache and no network). Counts are deterministic
// but coarser than the real encoding.
type Approx struct{}

// NewApprox creates an approximate tokenizer
func NewApprox() *Approx {
	return &Approx{}
}

func (a *Approx) Count(text string) int {
	return len(strings.Fields(text))
}
