package search

import (
	"sort"

	"github.com/policy-qa-backend/models"
)

// FusedDoc is a chunk-level result after combining dense and sparse ranks.
type FusedDoc struct {
	DocID     string
	PolicyID  int
	Score     float64
	MatchType models.MatchType
}

// CombineRRF fuses two ranked lists with Reciprocal Rank Fusion:
// score = Σ 1/(k+rank), rank 1-based per source. A chunk absent from a
// source contributes nothing for that source. MatchType is hybrid only when
// the chunk appears in both lists.
func CombineRRF(dense, sparse []ScoredDoc, k int) []FusedDoc {
	scores := make(map[string]float64)
	matchTypes := make(map[string]models.MatchType)
	policies := make(map[string]int)

	for rank, doc := range dense {
		scores[doc.DocID] += 1.0 / float64(k+rank+1)
		matchTypes[doc.DocID] = models.MatchDense
		policies[doc.DocID] = doc.PolicyID
	}
	for rank, doc := range sparse {
		scores[doc.DocID] += 1.0 / float64(k+rank+1)
		if _, seen := matchTypes[doc.DocID]; seen {
			matchTypes[doc.DocID] = models.MatchHybrid
		} else {
			matchTypes[doc.DocID] = models.MatchSparse
		}
		policies[doc.DocID] = doc.PolicyID
	}

	return sortFused(scores, matchTypes, policies)
}

// CombineWeighted fuses by weighted sum of max-normalized scores.
func CombineWeighted(dense, sparse []ScoredDoc, denseWeight, sparseWeight float64) []FusedDoc {
	maxDense := maxScore(dense)
	maxSparse := maxScore(sparse)

	denseNorm := make(map[string]float64)
	sparseNorm := make(map[string]float64)
	policies := make(map[string]int)

	for _, doc := range dense {
		denseNorm[doc.DocID] = doc.Score / maxDense
		policies[doc.DocID] = doc.PolicyID
	}
	for _, doc := range sparse {
		sparseNorm[doc.DocID] = doc.Score / maxSparse
		policies[doc.DocID] = doc.PolicyID
	}

	scores := make(map[string]float64)
	matchTypes := make(map[string]models.MatchType)
	for docID, s := range denseNorm {
		scores[docID] = denseWeight * s
		matchTypes[docID] = models.MatchDense
	}
	for docID, s := range sparseNorm {
		scores[docID] += sparseWeight * s
		if _, seen := denseNorm[docID]; seen {
			matchTypes[docID] = models.MatchHybrid
		} else {
			matchTypes[docID] = models.MatchSparse
		}
	}

	return sortFused(scores, matchTypes, policies)
}

// AggregateByPolicy collapses chunk-level fused results to one hit per
// policy, keeping the best-scoring chunk's match type and content.
// contentOf resolves a chunk id to its text; it may return "".
func AggregateByPolicy(fused []FusedDoc, contentOf func(docID string) string) []models.SearchHit {
	best := make(map[int]FusedDoc)
	for _, doc := range fused {
		cur, ok := best[doc.PolicyID]
		if !ok || doc.Score > cur.Score {
			best[doc.PolicyID] = doc
		}
	}

	hits := make([]models.SearchHit, 0, len(best))
	for policyID, doc := range best {
		hits = append(hits, models.SearchHit{
			PolicyID:       policyID,
			Score:          doc.Score,
			MatchType:      doc.MatchType,
			MatchedContent: contentOf(doc.DocID),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].PolicyID < hits[j].PolicyID
	})
	return hits
}

func sortFused(scores map[string]float64, matchTypes map[string]models.MatchType, policies map[string]int) []FusedDoc {
	out := make([]FusedDoc, 0, len(scores))
	for docID, score := range scores {
		out = append(out, FusedDoc{
			DocID:     docID,
			PolicyID:  policies[docID],
			Score:     score,
			MatchType: matchTypes[docID],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocID < out[j].DocID
	})
	return out
}

func maxScore(docs []ScoredDoc) float64 {
	max := 0.0
	for _, d := range docs {
		if d.Score > max {
			max = d.Score
		}
	}
	if max == 0 {
		return 1
	}
	return max
}
