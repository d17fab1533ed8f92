package search

import (
	"log"
	"math"
	"sort"

	"github.com/policy-qa-backend/models"
)

// BM25Params are the ranking parameters. Defaults follow the standard
// Okapi values.
type BM25Params struct {
	K1      float64 // term frequency saturation
	B       float64 // length normalization
	Epsilon float64 // IDF floor
}

func DefaultBM25Params() BM25Params {
	return BM25Params{K1: 1.5, B: 0.75, Epsilon: 0.25}
}

// ScoredDoc is one (chunk, score) pair from a single retrieval source.
type ScoredDoc struct {
	DocID    string
	PolicyID int
	Score    float64
}

// BM25Index is an in-memory inverted index over document chunks. Build once,
// search many times; the index is immutable after Build.
type BM25Index struct {
	params BM25Params

	docCount   int
	avgDocLen  float64
	docLengths map[string]int
	docPolicy  map[string]int    // chunk id -> policy id
	docContent map[string]string // chunk id -> raw content
	postings   map[string]map[string]int
	docFreqs   map[string]int
}

func NewBM25Index(params BM25Params) *BM25Index {
	return &BM25Index{
		params:     params,
		docLengths: make(map[string]int),
		docPolicy:  make(map[string]int),
		docContent: make(map[string]string),
		postings:   make(map[string]map[string]int),
		docFreqs:   make(map[string]int),
	}
}

// Build indexes the chunk collection in a single pass. boostKeywords tokens
// are double-counted per TokenizeForIndex.
func (idx *BM25Index) Build(chunks []models.DocumentChunk, boostKeywords map[string]float64) {
	totalLen := 0

	for _, chunk := range chunks {
		if chunk.ChunkID == "" || chunk.Content == "" {
			continue
		}

		tokens := TokenizeForIndex(chunk.Content, boostKeywords)
		idx.docLengths[chunk.ChunkID] = len(tokens)
		idx.docPolicy[chunk.ChunkID] = chunk.PolicyID
		idx.docContent[chunk.ChunkID] = chunk.Content
		idx.docCount++
		totalLen += len(tokens)

		seen := make(map[string]struct{}, len(tokens))
		for _, term := range tokens {
			posting, ok := idx.postings[term]
			if !ok {
				posting = make(map[string]int)
				idx.postings[term] = posting
			}
			posting[chunk.ChunkID]++

			if _, dup := seen[term]; !dup {
				idx.docFreqs[term]++
				seen[term] = struct{}{}
			}
		}
	}

	if idx.docCount > 0 {
		idx.avgDocLen = float64(totalLen) / float64(idx.docCount)
	}

	log.Printf("bm25 index built docs=%d terms=%d avg_len=%.1f",
		idx.docCount, len(idx.postings), idx.avgDocLen)
}

func (idx *BM25Index) DocCount() int {
	return idx.docCount
}

// Content returns the raw text of an indexed chunk.
func (idx *BM25Index) Content(docID string) string {
	return idx.docContent[docID]
}

func (idx *BM25Index) idf(term string) float64 {
	df := idx.docFreqs[term]
	if df == 0 {
		return 0
	}
	v := math.Log((float64(idx.docCount)-float64(df)+0.5)/(float64(df)+0.5) + 1)
	return math.Max(v, idx.params.Epsilon)
}

func (idx *BM25Index) termScore(term, docID string, tf int) float64 {
	docLen := idx.docLengths[docID]
	if docLen == 0 || idx.avgDocLen == 0 {
		return 0
	}
	k1, b := idx.params.K1, idx.params.B
	num := float64(tf) * (k1 + 1)
	den := float64(tf) + k1*(1-b+b*float64(docLen)/idx.avgDocLen)
	return idx.idf(term) * (num / den)
}

// Search scores the query against the index and returns up to topK chunks
// with score >= minScore, ordered by descending score and ascending chunk id
// on ties.
func (idx *BM25Index) Search(query string, topK int, minScore float64) []ScoredDoc {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil
	}

	scores := make(map[string]float64)
	for _, term := range tokens {
		posting, ok := idx.postings[term]
		if !ok {
			continue
		}
		for docID, tf := range posting {
			scores[docID] += idx.termScore(term, docID, tf)
		}
	}

	results := make([]ScoredDoc, 0, len(scores))
	for docID, score := range scores {
		if score < minScore {
			continue
		}
		results = append(results, ScoredDoc{
			DocID:    docID,
			PolicyID: idx.docPolicy[docID],
			Score:    score,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}
