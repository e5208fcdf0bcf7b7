// Package chunker splits extracted text into token-budgeted spans for
// embedding. Paragraph boundaries are preserved where possible; oversized
// paragraphs are split at sentence boundaries with trailing-sentence
// overlap between adjacent splits.
package chunker

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
)

const (
	// DefaultTargetSize is the target token budget per chunk
	DefaultTargetSize = 512
	// DefaultOverlap is the token budget for overlap between splits
	DefaultOverlap = 128
)

// Span is one chunk of text with its token count. OverBudget marks a
// span whose token count exceeds the target size, typically a single
// sentence with no internal boundary to split at; it is emitted whole
// rather than cut mid-word.
type Span struct {
	Text       string
	TokenCount int
	OverBudget bool
}

// Config controls chunking behaviour
type Config struct {
	TargetSize int
	Overlap    int
	Tokenizer  driven.Tokenizer
}

// Chunker splits text into Spans
type Chunker struct {
	targetSize int
	overlap    int
	tok        driven.Tokenizer
}

// New creates a Chunker. Tokenizer is required; zero sizes take defaults.
func New(cfg Config) *Chunker {
	if cfg.TargetSize <= 0 {
		cfg.TargetSize = DefaultTargetSize
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	} else if cfg.Overlap == 0 {
		cfg.Overlap = DefaultOverlap
	}
	if cfg.Overlap >= cfg.TargetSize {
		cfg.Overlap = cfg.TargetSize / 4
	}
	return &Chunker{
		targetSize: cfg.TargetSize,
		overlap:    cfg.Overlap,
		tok:        cfg.Tokenizer,
	}
}

var paragraphSep = regexp.MustCompile(`\n\s*\n`)

// Chunk splits text into ordered spans. Empty or whitespace-only input
// yields no spans. Paragraph order is always preserved.
func (c *Chunker) Chunk(text string) []Span {
	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil
	}

	var spans []Span
	var current []string
	currentTokens := 0
	// The joined span includes the separators, so the budget must too
	sepTokens := c.tok.Count("\n\n")

	flush := func() {
		if len(current) == 0 {
			return
		}
		spans = append(spans, c.span(strings.Join(current, "\n\n")))
		current = nil
		currentTokens = 0
	}

	for _, para := range paragraphs {
		paraTokens := c.tok.Count(para)

		if paraTokens > c.targetSize {
			// Oversized paragraph: close the running chunk, then split
			// the paragraph at sentence boundaries with overlap
			flush()
			spans = append(spans, c.splitOversized(para)...)
			continue
		}

		cost := paraTokens
		if len(current) > 0 {
			cost += sepTokens
		}
		if currentTokens+cost > c.targetSize && len(current) > 0 {
			flush()
			cost = paraTokens
		}
		current = append(current, para)
		currentTokens += cost
	}
	flush()

	return spans
}

// splitOversized splits a paragraph bigger than the target size at
// sentence boundaries. Each split after the first starts with trailing
// sentences of the previous split totalling at most the overlap budget.
// A single sentence that alone exceeds the target is emitted whole and
// flagged OverBudget.
func (c *Chunker) splitOversized(paragraph string) []Span {
	sentences := splitSentences(paragraph)

	var spans []Span
	var current []string
	currentTokens := 0
	seeded := 0 // leading sentences carried over as overlap
	sepTokens := c.tok.Count(" ")

	flush := func() {
		if len(current) <= seeded {
			// Nothing new beyond the overlap seed; emitting would duplicate
			current = nil
			currentTokens = 0
			seeded = 0
			return
		}
		spans = append(spans, c.span(strings.Join(current, " ")))
		// Seed the next split with trailing sentences under the overlap budget
		tail, tailTokens := c.overlapTail(current)
		current = tail
		currentTokens = tailTokens
		if len(tail) > 1 {
			currentTokens += sepTokens * (len(tail) - 1)
		}
		seeded = len(tail)
	}

	for _, sentence := range sentences {
		tokens := c.tok.Count(sentence)

		if tokens > c.targetSize {
			// No internal boundary to split at; tolerated soft-limit breach
			if len(current) > seeded {
				spans = append(spans, c.span(strings.Join(current, " ")))
			}
			spans = append(spans, Span{Text: sentence, TokenCount: tokens, OverBudget: true})
			current = nil
			currentTokens = 0
			seeded = 0
			continue
		}

		cost := tokens
		if len(current) > 0 {
			cost += sepTokens
		}
		if currentTokens+cost > c.targetSize && len(current) > 0 {
			flush()
			cost = tokens
			if len(current) > 0 {
				cost += sepTokens
			}
		}
		current = append(current, sentence)
		currentTokens += cost
	}
	if len(current) > seeded {
		spans = append(spans, c.span(strings.Join(current, " ")))
	}

	return spans
}

// overlapTail returns the longest suffix of sentences whose token total
// stays within the overlap budget
func (c *Chunker) overlapTail(sentences []string) ([]string, int) {
	if c.overlap <= 0 {
		return nil, 0
	}
	total := 0
	start := len(sentences)
	for i := len(sentences) - 1; i >= 0; i-- {
		tokens := c.tok.Count(sentences[i])
		if total+tokens > c.overlap {
			break
		}
		total += tokens
		start = i
	}
	if start == len(sentences) {
		return nil, 0
	}
	tail := make([]string, len(sentences)-start)
	copy(tail, sentences[start:])
	return tail, total
}

// span counts the emitted text itself, so joiner tokens are never
// hidden from the reported count
func (c *Chunker) span(text string) Span {
	count := c.tok.Count(text)
	return Span{Text: text, TokenCount: count, OverBudget: count > c.targetSize}
}

func splitParagraphs(text string) []string {
	parts := paragraphSep.Split(text, -1)
	paragraphs := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// splitSentences splits on terminal punctuation followed by whitespace.
// Trailing text without terminal punctuation forms the last sentence.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}
		// Consume consecutive terminators ("?!", "...")
		end := i
		for end+1 < len(runes) && (runes[end+1] == '.' || runes[end+1] == '!' || runes[end+1] == '?') {
			end++
		}
		if end+1 >= len(runes) || runes[end+1] == ' ' || runes[end+1] == '\n' || runes[end+1] == '\t' {
			s := strings.TrimSpace(string(runes[start : end+1]))
			if s != "" {
				sentences = append(sentences, s)
			}
			start = end + 1
		}
		i = end
	}
	if start < len(runes) {
		s := strings.TrimSpace(string(runes[start:]))
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}
