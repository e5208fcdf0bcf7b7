package services

import (
	"math"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
)

// defaultMMRLambda balances relevance and diversity equally
const defaultMMRLambda = 0.5

// mmrFetchFactor sizes the candidate pool for diversity reranking.
// Picking topK from topK candidates would be a no-op, so the pool is
// over-fetched.
const mmrFetchFactor = 4

// mmrSelect reranks candidates with maximal marginal relevance: greedily
// pick the candidate maximising
//
//	lambda * sim(candidate, query) - (1 - lambda) * max sim(candidate, selected)
//
// until k are chosen. vectors is parallel to candidates and holds each
// candidate's stored embedding. The query relevance term reuses the
// similarity the index already scored, so only the candidate-to-candidate
// similarities are computed here.
func mmrSelect(candidates []*domain.RetrievedChunk, vectors [][]float32, lambda float64, k int) []*domain.RetrievedChunk {
	if k > len(candidates) {
		k = len(candidates)
	}
	if k <= 0 {
		return nil
	}

	selected := make([]*domain.RetrievedChunk, 0, k)
	selectedVecs := make([][]float32, 0, k)
	remaining := make([]int, len(candidates))
	for i := range candidates {
		remaining[i] = i
	}

	for len(selected) < k {
		best := -1
		bestScore := math.Inf(-1)
		for pos, idx := range remaining {
			redundancy := 0.0
			for _, sv := range selectedVecs {
				if sim := cosine32(vectors[idx], sv); sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*candidates[idx].Similarity - (1-lambda)*redundancy
			if score > bestScore {
				bestScore = score
				best = pos
			}
		}
		idx := remaining[best]
		selected = append(selected, candidates[idx])
		selectedVecs = append(selectedVecs, vectors[idx])
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return selected
}

// cosine32 returns the cosine similarity of two vectors, 0 when either
// has zero magnitude or the lengths differ
func cosine32(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
