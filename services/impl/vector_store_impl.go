package impl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/policy-qa-backend/config"
	"github.com/policy-qa-backend/models"
	"github.com/policy-qa-backend/services"
)

// qdrantVectorStore implements services.VectorStore against the Qdrant
// HTTP API (points/search and points/scroll).
type qdrantVectorStore struct {
	baseURL    string
	apiKey     string
	collection string
	client     *http.Client
}

func NewQdrantVectorStore(cfg *config.QdrantConfig) services.VectorStore {
	return &qdrantVectorStore{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

type qdrantFilter struct {
	Must []qdrantCondition `json:"must,omitempty"`
}

type qdrantCondition struct {
	Key   string      `json:"key"`
	Match qdrantMatch `json:"match"`
}

type qdrantMatch struct {
	Value interface{} `json:"value"`
}

type qdrantPayload struct {
	PolicyID   int    `json:"policy_id"`
	ChunkIndex int    `json:"chunk_index"`
	DocType    string `json:"doc_type"`
	Content    string `json:"content"`
}

type qdrantSearchRequest struct {
	Vector         []float32     `json:"vector"`
	Limit          int           `json:"limit"`
	Filter         *qdrantFilter `json:"filter,omitempty"`
	ScoreThreshold float64       `json:"score_threshold,omitempty"`
	WithPayload    bool          `json:"with_payload"`
}

type qdrantScrollRequest struct {
	Filter      *qdrantFilter `json:"filter,omitempty"`
	Limit       int           `json:"limit"`
	Offset      interface{}   `json:"offset,omitempty"`
	WithPayload bool          `json:"with_payload"`
	WithVector  bool          `json:"with_vector"`
}

type qdrantPoint struct {
	ID      interface{}   `json:"id"`
	Score   float64       `json:"score"`
	Payload qdrantPayload `json:"payload"`
}

type qdrantSearchEnvelope struct {
	Status string        `json:"status"`
	Result []qdrantPoint `json:"result"`
}

type qdrantScrollEnvelope struct {
	Status string `json:"status"`
	Result struct {
		Points         []qdrantPoint `json:"points"`
		NextPageOffset interface{}   `json:"next_page_offset"`
	} `json:"result"`
}

func (s *qdrantVectorStore) Search(ctx context.Context, vector []float32, limit int, filter models.SearchFilter, minScore float64) ([]models.VectorHit, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", models.ErrEmbedding)
	}

	reqBody := qdrantSearchRequest{
		Vector:         vector,
		Limit:          limit,
		Filter:         buildFilter(filter),
		ScoreThreshold: minScore,
		WithPayload:    true,
	}

	var envelope qdrantSearchEnvelope
	url := fmt.Sprintf("%s/collections/%s/points/search", s.baseURL, s.collection)
	if err := s.doJSON(ctx, url, reqBody, &envelope); err != nil {
		return nil, err
	}

	hits := make([]models.VectorHit, 0, len(envelope.Result))
	for _, pt := range envelope.Result {
		hits = append(hits, models.VectorHit{
			ChunkID:    pointID(pt.ID),
			PolicyID:   pt.Payload.PolicyID,
			ChunkIndex: pt.Payload.ChunkIndex,
			DocType:    pt.Payload.DocType,
			Content:    pt.Payload.Content,
			Score:      pt.Score,
		})
	}
	return hits, nil
}

func (s *qdrantVectorStore) Scroll(ctx context.Context, filter models.SearchFilter, limit int) ([]models.DocumentChunk, error) {
	const pageSize = 250

	var chunks []models.DocumentChunk
	var offset interface{}

	for {
		remaining := pageSize
		if limit > 0 && limit-len(chunks) < remaining {
			remaining = limit - len(chunks)
		}
		if remaining <= 0 {
			break
		}

		reqBody := qdrantScrollRequest{
			Filter:      buildFilter(filter),
			Limit:       remaining,
			Offset:      offset,
			WithPayload: true,
			WithVector:  false,
		}

		var envelope qdrantScrollEnvelope
		url := fmt.Sprintf("%s/collections/%s/points/scroll", s.baseURL, s.collection)
		if err := s.doJSON(ctx, url, reqBody, &envelope); err != nil {
			return nil, err
		}

		for _, pt := range envelope.Result.Points {
			chunks = append(chunks, models.DocumentChunk{
				ChunkID:    pointID(pt.ID),
				PolicyID:   pt.Payload.PolicyID,
				ChunkIndex: pt.Payload.ChunkIndex,
				DocType:    pt.Payload.DocType,
				Content:    pt.Payload.Content,
			})
		}

		if envelope.Result.NextPageOffset == nil || len(envelope.Result.Points) == 0 {
			break
		}
		offset = envelope.Result.NextPageOffset
	}

	return chunks, nil
}

func (s *qdrantVectorStore) doJSON(ctx context.Context, url string, reqBody, out interface{}) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal qdrant request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create qdrant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrVectorStore, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", models.ErrVectorStore, err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d: %s", models.ErrVectorStore, resp.StatusCode, truncateBody(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", models.ErrVectorStore, err)
	}
	return nil
}

func buildFilter(filter models.SearchFilter) *qdrantFilter {
	var must []qdrantCondition
	if filter.PolicyID != 0 {
		must = append(must, qdrantCondition{Key: "policy_id", Match: qdrantMatch{Value: filter.PolicyID}})
	}
	if filter.Region != "" {
		must = append(must, qdrantCondition{Key: "region", Match: qdrantMatch{Value: filter.Region}})
	}
	if filter.Category != "" {
		must = append(must, qdrantCondition{Key: "category", Match: qdrantMatch{Value: filter.Category}})
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrantFilter{Must: must}
}

// pointID renders a Qdrant point id (integer or UUID string) as a string.
func pointID(id interface{}) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%d", int64(v))
	default:
		return fmt.Sprintf("%v", v)
	}
}

func truncateBody(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
