package models

type MatchType string

const (
	MatchDense  MatchType = "dense"
	MatchSparse MatchType = "sparse"
	MatchHybrid MatchType = "hybrid"
)

// VectorHit is a chunk-level result from the vector store.
type VectorHit struct {
	ChunkID    string  `json:"chunk_id"`
	PolicyID   int     `json:"policy_id"`
	ChunkIndex int     `json:"chunk_index"`
	DocType    string  `json:"doc_type"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// SearchFilter narrows vector store queries. Zero values mean no constraint.
type SearchFilter struct {
	PolicyID int    `json:"policy_id,omitempty"`
	Region   string `json:"region,omitempty"`
	Category string `json:"category,omitempty"`
}

// SearchHit is a policy-level result after chunk aggregation and fusion.
type SearchHit struct {
	PolicyID       int       `json:"policy_id"`
	Score          float64   `json:"score"`
	MatchType      MatchType `json:"match_type"`
	MatchedContent string    `json:"matched_content"`
}

// ParsedQuery is the structured interpretation of a search request.
type ParsedQuery struct {
	Keywords    []string `json:"keywords"`
	Region      string   `json:"region,omitempty"`
	Category    string   `json:"category,omitempty"`
	TargetGroup string   `json:"target_group,omitempty"`
}

// SearchMetrics records how a search run behaved, for response introspection
// and logging.
type SearchMetrics struct {
	TotalCandidates    int     `json:"total_candidates"`
	FilteredCount      int     `json:"filtered_count"`
	FinalCount         int     `json:"final_count"`
	TopScore           float64 `json:"top_score"`
	AvgScore           float64 `json:"avg_score"`
	MinScore           float64 `json:"min_score"`
	ScoreThresholdUsed float64 `json:"score_threshold_used"`
	WebSearchTriggered bool    `json:"web_search_triggered"`
	WebSearchCount     int     `json:"web_search_count"`
	SearchTimeMs       int64   `json:"search_time_ms"`
	SufficiencyReason  string  `json:"sufficiency_reason"`
	SearchMode         string  `json:"search_mode"`
	DenseCount         int     `json:"dense_count"`
	SparseCount        int     `json:"sparse_count"`
	HybridCount        int     `json:"hybrid_count"`
}

// PolicySearchItem pairs a policy record with its retrieval score for the
// search response. Web fallback results are carried as pseudo policies with
// negative ids and SourceType "web".
type PolicySearchItem struct {
	Policy         Policy    `json:"policy"`
	Score          float64   `json:"score"`
	MatchType      MatchType `json:"match_type,omitempty"`
	MatchedContent string    `json:"matched_content,omitempty"`
	SourceType     string    `json:"source_type"`
	FaviconURL     string    `json:"favicon_url,omitempty"`
}

// SearchResult is the full envelope returned by the policy search endpoint.
type SearchResult struct {
	SessionID   string             `json:"session_id"`
	Summary     string             `json:"summary"`
	Policies    []PolicySearchItem `json:"policies"`
	TotalCount  int                `json:"total_count"`
	TopScore    float64            `json:"top_score"`
	WebSources  []WebSource        `json:"web_sources"`
	Metrics     SearchMetrics      `json:"metrics"`
	Evidence    []Evidence         `json:"evidence"`
	ParsedQuery ParsedQuery        `json:"parsed_query"`
}
