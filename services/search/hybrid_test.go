package search

import (
	"fmt"
	"math"
	"testing"

	"github.com/policy-qa-backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineRRFHandComputed(t *testing.T) {
	dense := []ScoredDoc{
		{DocID: "a", PolicyID: 1, Score: 0.9},
		{DocID: "b", PolicyID: 2, Score: 0.8},
	}
	sparse := []ScoredDoc{
		{DocID: "b", PolicyID: 2, Score: 5.0},
		{DocID: "c", PolicyID: 3, Score: 4.0},
	}

	fused := CombineRRF(dense, sparse, 60)
	require.Len(t, fused, 3)

	// b: 1/62 + 1/61, a: 1/61, c: 1/62
	byID := map[string]FusedDoc{}
	for _, f := range fused {
		byID[f.DocID] = f
	}
	assert.InDelta(t, 1.0/62+1.0/61, byID["b"].Score, 1e-9)
	assert.InDelta(t, 1.0/61, byID["a"].Score, 1e-9)
	assert.InDelta(t, 1.0/62, byID["c"].Score, 1e-9)

	assert.Equal(t, "b", fused[0].DocID)
	assert.Equal(t, models.MatchHybrid, byID["b"].MatchType)
	assert.Equal(t, models.MatchDense, byID["a"].MatchType)
	assert.Equal(t, models.MatchSparse, byID["c"].MatchType)
}

func TestCombineRRFEmptySources(t *testing.T) {
	assert.Empty(t, CombineRRF(nil, nil, 60))

	only := CombineRRF([]ScoredDoc{{DocID: "a", PolicyID: 1, Score: 0.5}}, nil, 60)
	require.Len(t, only, 1)
	assert.Equal(t, models.MatchDense, only[0].MatchType)
}

func TestCombineWeightedNormalization(t *testing.T) {
	dense := []ScoredDoc{
		{DocID: "a", PolicyID: 1, Score: 0.8},
		{DocID: "b", PolicyID: 2, Score: 0.4},
	}
	sparse := []ScoredDoc{
		{DocID: "b", PolicyID: 2, Score: 10.0},
	}

	fused := CombineWeighted(dense, sparse, 0.7, 0.3)
	require.Len(t, fused, 2)

	byID := map[string]FusedDoc{}
	for _, f := range fused {
		byID[f.DocID] = f
	}
	// a: 0.7 * (0.8/0.8) = 0.7; b: 0.7 * 0.5 + 0.3 * 1.0 = 0.65
	assert.InDelta(t, 0.7, byID["a"].Score, 1e-9)
	assert.InDelta(t, 0.65, byID["b"].Score, 1e-9)
	assert.Equal(t, models.MatchHybrid, byID["b"].MatchType)
	assert.Equal(t, "a", fused[0].DocID)
}

func TestAggregateByPolicyKeepsBestChunk(t *testing.T) {
	fused := []FusedDoc{
		{DocID: "p1c1", PolicyID: 1, Score: 0.5, MatchType: models.MatchHybrid},
		{DocID: "p1c2", PolicyID: 1, Score: 0.9, MatchType: models.MatchDense},
		{DocID: "p2c1", PolicyID: 2, Score: 0.7, MatchType: models.MatchSparse},
	}
	content := map[string]string{
		"p1c1": "first chunk",
		"p1c2": "best chunk",
		"p2c1": "other policy",
	}

	hits := AggregateByPolicy(fused, func(id string) string { return content[id] })
	require.Len(t, hits, 2)

	assert.Equal(t, 1, hits[0].PolicyID)
	assert.InDelta(t, 0.9, hits[0].Score, 1e-9)
	assert.Equal(t, models.MatchDense, hits[0].MatchType)
	assert.Equal(t, "best chunk", hits[0].MatchedContent)

	assert.Equal(t, 2, hits[1].PolicyID)
	assert.Equal(t, "other policy", hits[1].MatchedContent)
}

func TestAggregateByPolicyTieBreak(t *testing.T) {
	fused := []FusedDoc{
		{DocID: "x", PolicyID: 9, Score: 0.5, MatchType: models.MatchDense},
		{DocID: "y", PolicyID: 3, Score: 0.5, MatchType: models.MatchDense},
	}
	hits := AggregateByPolicy(fused, func(string) string { return "" })
	require.Len(t, hits, 2)
	assert.Equal(t, 3, hits[0].PolicyID)
	assert.Equal(t, 9, hits[1].PolicyID)
}

func TestRRFScoresBounded(t *testing.T) {
	var dense, sparse []ScoredDoc
	for i := 0; i < 100; i++ {
		dense = append(dense, ScoredDoc{DocID: fmt.Sprintf("d%03d", i), PolicyID: i, Score: 1})
		sparse = append(sparse, ScoredDoc{DocID: fmt.Sprintf("s%03d", i), PolicyID: i, Score: 1})
	}
	for _, f := range CombineRRF(dense, sparse, 60) {
		assert.Less(t, f.Score, 2.0/61)
		assert.Greater(t, f.Score, 0.0)
		assert.False(t, math.IsNaN(f.Score))
	}
}
