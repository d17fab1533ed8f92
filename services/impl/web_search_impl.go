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

// tavilyWebSearch implements services.WebSearchService against the Tavily
// search API. No internal retries; callers decide whether a failure is
// fatal or degradable.
type tavilyWebSearch struct {
	baseURL     string
	apiKey      string
	searchDepth string
	client      *http.Client
}

func NewTavilyWebSearch(cfg *config.WebSearchConfig) services.WebSearchService {
	return &tavilyWebSearch{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		searchDepth: cfg.SearchDepth,
		client: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth,omitempty"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

func (s *tavilyWebSearch) Search(ctx context.Context, query string, maxResults int) ([]models.WebSource, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("%w: api key not configured", models.ErrWebSearch)
	}

	payload, err := json.Marshal(tavilyRequest{
		APIKey:      s.apiKey,
		Query:       query,
		MaxResults:  maxResults,
		SearchDepth: s.searchDepth,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal web search request: %w", err)
	}

	url := fmt.Sprintf("%s/search", s.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create web search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrWebSearch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", models.ErrWebSearch, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", models.ErrWebSearch, resp.StatusCode, truncateBody(body))
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", models.ErrWebSearch, err)
	}

	fetched := time.Now().Format("2006-01-02")
	sources := make([]models.WebSource, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		sources = append(sources, models.WebSource{
			Title:       r.Title,
			Snippet:     r.Content,
			URL:         r.URL,
			Score:       r.Score,
			FetchedDate: fetched,
			SourceType:  "web",
		})
	}
	return sources, nil
}
