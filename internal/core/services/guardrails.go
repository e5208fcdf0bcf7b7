package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
)

const (
	// defaultMaxResponseLength bounds generated answers, in characters
	defaultMaxResponseLength = 8000
	// defaultOverlapThreshold is the minimum fraction of non-stopword
	// context terms a grounded response is expected to share
	defaultOverlapThreshold = 0.1
)

var uncertaintyPhrases = []string{
	"i think",
	"i believe",
	"probably",
	"might be",
	"could be",
	"i'm not sure",
	"i don't know",
}

var noInfoPhrases = []string{
	"i don't have enough information",
	"the context doesn't contain",
	"not mentioned in the context",
	"cannot find information",
}

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"what": {}, "how": {}, "why": {}, "when": {}, "where": {}, "who": {},
	"which": {}, "of": {}, "to": {}, "in": {}, "and": {}, "or": {}, "it": {},
	"that": {}, "this": {}, "for": {}, "on": {}, "with": {}, "as": {},
}

var excessNewlines = regexp.MustCompile(`\n{3,}`)

// GuardrailsConfig tunes validation behaviour
type GuardrailsConfig struct {
	MaxResponseLength int
	OverlapThreshold  float64
	DenyPatterns      []string
}

// Guardrails runs lightweight validation over generated responses.
// A failed validation is always observable; it is never silently passed
// through as a normal answer.
type Guardrails struct {
	maxLength        int
	overlapThreshold float64
	denyPatterns     []*regexp.Regexp
}

// NewGuardrails creates a Guardrails validator. Invalid deny patterns
// are rejected rather than ignored.
func NewGuardrails(cfg GuardrailsConfig) (*Guardrails, error) {
	if cfg.MaxResponseLength <= 0 {
		cfg.MaxResponseLength = defaultMaxResponseLength
	}
	if cfg.OverlapThreshold <= 0 {
		cfg.OverlapThreshold = defaultOverlapThreshold
	}
	patterns := make([]*regexp.Regexp, 0, len(cfg.DenyPatterns))
	for _, p := range cfg.DenyPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid deny pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}
	return &Guardrails{
		maxLength:        cfg.MaxResponseLength,
		overlapThreshold: cfg.OverlapThreshold,
		denyPatterns:     patterns,
	}, nil
}

// Validate checks a generated response against the context it was
// grounded on. Confidence starts at 1.0 and is reduced per finding;
// Valid flips only on hard failures (empty, over-length, deny-list).
func (g *Guardrails) Validate(response, context, query string) domain.Validation {
	v := domain.Validation{Valid: true, Confidence: 1.0}
	lower := strings.ToLower(response)

	if strings.TrimSpace(response) == "" {
		v.Valid = false
		v.Confidence = 0
		v.Reasons = append(v.Reasons, "empty response")
		return v
	}

	if len(response) > g.maxLength {
		v.Valid = false
		v.Reasons = append(v.Reasons, fmt.Sprintf("response exceeds %d characters", g.maxLength))
		v.Confidence -= 0.3
	}

	for _, re := range g.denyPatterns {
		if re.MatchString(response) {
			v.Valid = false
			v.Reasons = append(v.Reasons, fmt.Sprintf("matched deny pattern %q", re.String()))
			v.Confidence -= 0.5
			break
		}
	}

	uncertaintyCount := 0
	for _, phrase := range uncertaintyPhrases {
		if strings.Contains(lower, phrase) {
			uncertaintyCount++
		}
	}
	if uncertaintyCount > 0 {
		v.Confidence -= 0.1 * float64(uncertaintyCount)
		v.Reasons = append(v.Reasons, fmt.Sprintf("contains %d uncertainty phrases", uncertaintyCount))
	}

	hasNoInfo := false
	for _, phrase := range noInfoPhrases {
		if strings.Contains(lower, phrase) {
			hasNoInfo = true
			break
		}
	}
	if hasNoInfo {
		v.Reasons = append(v.Reasons, "response indicates insufficient context")
	}

	if context != "" {
		if !citationPattern.MatchString(response) && !hasNoInfo {
			v.Reasons = append(v.Reasons, "response lacks source citations")
			v.Confidence -= 0.1
		}
		if !hasNoInfo && !g.grounded(response, context) {
			v.Reasons = append(v.Reasons, "low term overlap with retrieved context")
			v.Confidence -= 0.2
		}
	}

	if v.Confidence < 0 {
		v.Confidence = 0
	}
	if v.Confidence > 1 {
		v.Confidence = 1
	}
	return v
}

// Filter cleans a response for display: trims whitespace and collapses
// runs of three or more newlines.
func (g *Guardrails) Filter(response string) string {
	response = strings.TrimSpace(response)
	return excessNewlines.ReplaceAllString(response, "\n\n")
}

// grounded is a lightweight heuristic: the fraction of distinct
// non-stopword response terms that also occur in the context must clear
// the threshold. It catches wholesale fabrication, not subtle errors.
func (g *Guardrails) grounded(response, context string) bool {
	responseTerms := termSet(response)
	if len(responseTerms) == 0 {
		return true
	}
	contextTerms := termSet(context)

	overlap := 0
	for term := range responseTerms {
		if _, ok := contextTerms[term]; ok {
			overlap++
		}
	}
	return float64(overlap)/float64(len(responseTerms)) >= g.overlapThreshold
}

func termSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?()[]\"'")
		if word == "" {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		set[word] = struct{}{}
	}
	return set
}
