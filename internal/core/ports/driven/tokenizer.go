package driven

// Tokenizer counts tokens the way the embedding model's vocabulary does.
// Counting must be deterministic for identical input.
type Tokenizer interface {
	Count(text string) int
}
