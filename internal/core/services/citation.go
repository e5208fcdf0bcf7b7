package services

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
)

// citationPattern matches [Source 3] and bare [3] markers
var citationPattern = regexp.MustCompile(`\[(?:Source\s+)?(\d+)\]`)

// CitationEngine assembles annotated context and resolves citation
// markers in generated text back to their sources.
type CitationEngine struct{}

// NewCitationEngine creates a CitationEngine
func NewCitationEngine() *CitationEngine {
	return &CitationEngine{}
}

// BuildContext renders retrieval results as an annotated context string
// and returns the ordered source list. Marker n is the n-th distinct
// chunk first inserted into the context; duplicates reuse their marker.
// The mapping is fixed here and never reassigned afterwards.
func (e *CitationEngine) BuildContext(results []*domain.RetrievedChunk) (string, []domain.Source) {
	var parts []string
	var sources []domain.Source
	seen := make(map[string]int)

	for _, rc := range results {
		chunk := rc.Chunk
		if _, ok := seen[chunk.ID]; ok {
			continue
		}
		index := len(sources) + 1
		seen[chunk.ID] = index

		sources = append(sources, domain.Source{
			Index:          index,
			ChunkID:        chunk.ID,
			DocumentID:     chunk.DocumentID,
			SourceFile:     chunk.SourceFile,
			DocType:        chunk.DocType,
			Similarity:     rc.Similarity,
			Page:           chunk.Page,
			TimestampStart: chunk.TimestampStart,
			TimestampEnd:   chunk.TimestampEnd,
			Speaker:        chunk.Speaker,
		})
		parts = append(parts, fmt.Sprintf("[Source %d]\n%s", index, chunk.Content))
	}

	return strings.Join(parts, "\n\n---\n\n"), sources
}

// ExtractCitations returns the sorted distinct marker numbers referenced
// in the text. Markers are syntactic only; callers decide validity
// against their source list.
func (e *CitationEngine) ExtractCitations(text string) []int {
	matches := citationPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	set := make(map[int]struct{}, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		set[n] = struct{}{}
	}
	cited := make([]int, 0, len(set))
	for n := range set {
		cited = append(cited, n)
	}
	sort.Ints(cited)
	return cited
}

// FormatSources converts sources to their display form. With citedOnly
// set, only sources whose marker appears in the response are kept;
// out-of-range markers in the response match no source and are simply
// rendered by clients as plain text.
func (e *CitationEngine) FormatSources(sources []domain.Source, citedOnly bool, response string) []domain.FormattedSource {
	if citedOnly {
		cited := e.ExtractCitations(response)
		citedSet := make(map[int]struct{}, len(cited))
		for _, n := range cited {
			citedSet[n] = struct{}{}
		}
		kept := make([]domain.Source, 0, len(sources))
		for _, s := range sources {
			if _, ok := citedSet[s.Index]; ok {
				kept = append(kept, s)
			}
		}
		sources = kept
	}

	formatted := make([]domain.FormattedSource, 0, len(sources))
	for _, s := range sources {
		fs := domain.FormattedSource{
			Index:      s.Index,
			File:       formatFilename(s.SourceFile),
			Type:       s.DocType,
			Similarity: roundPercent(s.Similarity),
			Location:   formatLocation(s),
		}
		formatted = append(formatted, fs)
	}
	return formatted
}

func formatFilename(path string) string {
	if path == "" {
		return "Unknown"
	}
	return filepath.Base(path)
}

func formatLocation(s domain.Source) string {
	var parts []string
	if s.Page != nil {
		parts = append(parts, fmt.Sprintf("Page %d", *s.Page))
	}
	if s.TimestampStart != nil {
		if s.TimestampEnd != nil {
			parts = append(parts, fmt.Sprintf("%s - %s", formatTime(*s.TimestampStart), formatTime(*s.TimestampEnd)))
		} else {
			parts = append(parts, fmt.Sprintf("at %s", formatTime(*s.TimestampStart)))
		}
	}
	if s.Speaker != "" {
		parts = append(parts, fmt.Sprintf("Speaker: %s", s.Speaker))
	}
	return strings.Join(parts, ", ")
}

// formatTime renders seconds as m:ss
func formatTime(seconds float64) string {
	minutes := int(seconds) / 60
	secs := int(seconds) % 60
	return fmt.Sprintf("%d:%02d", minutes, secs)
}

func roundPercent(similarity float64) float64 {
	return float64(int(similarity*1000+0.5)) / 10
}
