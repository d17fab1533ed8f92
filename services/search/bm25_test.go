package search

import (
	"testing"

	"github.com/policy-qa-backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestIndex(t *testing.T) *BM25Index {
	t.Helper()
	idx := NewBM25Index(DefaultBM25Params())
	idx.Build([]models.DocumentChunk{
		{ChunkID: "c1", PolicyID: 1, Content: "청년 창업 지원금 프로그램 안내"},
		{ChunkID: "c2", PolicyID: 1, Content: "수출 기업 바우처 지원 내용"},
		{ChunkID: "c3", PolicyID: 2, Content: "청년 주거 지원 정책 설명 자료"},
		{ChunkID: "c4", PolicyID: 3, Content: "소상공인 경영 안정 자금 대출 안내"},
	}, nil)
	return idx
}

func TestBM25SearchRanksMatchingDocsFirst(t *testing.T) {
	idx := buildTestIndex(t)

	results := idx.Search("청년 창업", 10, 0)
	require.NotEmpty(t, results)

	// c1 matches both terms, c3 only one.
	assert.Equal(t, "c1", results[0].DocID)
	assert.Equal(t, 1, results[0].PolicyID)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Score, results[i-1].Score)
	}
}

func TestBM25SearchDeterministic(t *testing.T) {
	idx := buildTestIndex(t)

	first := idx.Search("청년 지원", 10, 0)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, idx.Search("청년 지원", 10, 0))
	}
}

func TestBM25TieBreakByDocID(t *testing.T) {
	idx := NewBM25Index(DefaultBM25Params())
	// Identical documents score identically for any query.
	idx.Build([]models.DocumentChunk{
		{ChunkID: "b", PolicyID: 2, Content: "창업 지원 안내"},
		{ChunkID: "a", PolicyID: 1, Content: "창업 지원 안내"},
	}, nil)

	results := idx.Search("창업", 10, 0)
	require.Len(t, results, 2)
	assert.Equal(t, results[0].Score, results[1].Score)
	assert.Equal(t, "a", results[0].DocID)
	assert.Equal(t, "b", results[1].DocID)
}

func TestBM25MinScoreAndTopK(t *testing.T) {
	idx := buildTestIndex(t)

	all := idx.Search("청년 지원", 10, 0)
	require.NotEmpty(t, all)

	limited := idx.Search("청년 지원", 1, 0)
	assert.Len(t, limited, 1)
	assert.Equal(t, all[0], limited[0])

	none := idx.Search("청년 지원", 10, all[0].Score+1)
	assert.Empty(t, none)
}

func TestBM25NoMatchesAndEmptyQuery(t *testing.T) {
	idx := buildTestIndex(t)

	assert.Empty(t, idx.Search("블록체인", 10, 0))
	assert.Empty(t, idx.Search("", 10, 0))
}

func TestBM25BoostKeywordRaisesRank(t *testing.T) {
	boost := map[string]float64{"지원금": -0.05}

	plain := NewBM25Index(DefaultBM25Params())
	boosted := NewBM25Index(DefaultBM25Params())
	chunks := []models.DocumentChunk{
		{ChunkID: "c1", PolicyID: 1, Content: "청년 지원금 사업 모집 공고 상세 내용"},
		{ChunkID: "c2", PolicyID: 2, Content: "청년 문화 활동 사업 모집 공고 상세 내용"},
	}
	plain.Build(chunks, nil)
	boosted.Build(chunks, boost)

	p := plain.Search("지원금", 10, 0)
	b := boosted.Search("지원금", 10, 0)
	require.NotEmpty(t, p)
	require.NotEmpty(t, b)
	assert.Greater(t, b[0].Score, p[0].Score)
}

func TestBM25ContentLookup(t *testing.T) {
	idx := buildTestIndex(t)
	assert.Equal(t, "청년 창업 지원금 프로그램 안내", idx.Content("c1"))
	assert.Equal(t, "", idx.Content("missing"))
}
