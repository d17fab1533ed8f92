package search

import (
	"strings"
	"sync"
)

type FusionMode string

const (
	FusionRRF      FusionMode = "rrf"
	FusionWeighted FusionMode = "weighted"
)

// Config tunes retrieval behavior. Values are read frequently and updated
// rarely; use ConfigStore for shared access.
type Config struct {
	DefaultScoreThreshold float64 `json:"default_score_threshold"`
	MinScoreThreshold     float64 `json:"min_score_threshold"`
	MaxScoreThreshold     float64 `json:"max_score_threshold"`

	TargetMinResults int `json:"target_min_results"`
	TargetMaxResults int `json:"target_max_results"`

	CandidatesPerSource int `json:"candidates_per_source"`
	FinalLimit          int `json:"final_limit"`

	FallbackMinResults  int     `json:"fallback_min_results"`
	FallbackMinTopScore float64 `json:"fallback_min_top_score"`
	WebSearchMaxResults int     `json:"web_search_max_results"`

	FusionMode     FusionMode `json:"fusion_mode"`
	RRFK           int        `json:"rrf_k"`
	DenseWeight    float64    `json:"dense_weight"`
	SparseWeight   float64    `json:"sparse_weight"`
	SparseMinScore float64    `json:"sparse_min_score"`

	KeywordAdjustments map[string]float64 `json:"keyword_adjustments"`
}

func DefaultConfig() Config {
	return Config{
		DefaultScoreThreshold: 0.25,
		MinScoreThreshold:     0.15,
		MaxScoreThreshold:     0.50,
		TargetMinResults:      3,
		TargetMaxResults:      15,
		CandidatesPerSource:   100,
		FinalLimit:            50,
		FallbackMinResults:    2,
		FallbackMinTopScore:   0.35,
		WebSearchMaxResults:   5,
		FusionMode:            FusionRRF,
		RRFK:                  60,
		DenseWeight:           0.7,
		SparseWeight:          0.3,
		SparseMinScore:        0.1,
		KeywordAdjustments: map[string]float64{
			"지원금":  -0.05,
			"보조금":  -0.05,
			"지원사업": -0.05,
			"정책":   -0.05,
			"창업":   -0.05,
			"청년":   -0.05,
			"중소기업": -0.05,
			"소상공인": -0.05,
			"R&D":  0.05,
			"수출":   0.05,
			"특허":   0.05,
		},
	}
}

// CalculateThreshold derives the similarity threshold for one query.
// Keyword deltas apply on substring match, once per keyword. Filters widen
// the net slightly since they already narrow the candidate set. The result
// count nudges the threshold adaptively and the final value is clamped to
// [MinScoreThreshold, MaxScoreThreshold]. resultCount < 0 means unknown.
func (c Config) CalculateThreshold(keywords []string, region, category string, resultCount int) float64 {
	t := c.DefaultScoreThreshold

	for _, keyword := range keywords {
		for kw, delta := range c.KeywordAdjustments {
			if strings.Contains(keyword, kw) {
				t += delta
				break
			}
		}
	}

	if region != "" {
		t -= 0.02
	}
	if category != "" {
		t -= 0.02
	}

	if resultCount >= 0 {
		if resultCount < c.TargetMinResults {
			t -= 0.05
		} else if resultCount > c.TargetMaxResults {
			t += 0.03
		}
	}

	if t < c.MinScoreThreshold {
		t = c.MinScoreThreshold
	}
	if t > c.MaxScoreThreshold {
		t = c.MaxScoreThreshold
	}
	return t
}

// ShouldTriggerWebSearch reports whether internal results are too weak and
// the web fallback should run.
func (c Config) ShouldTriggerWebSearch(resultCount int, topScore float64) bool {
	return resultCount < c.FallbackMinResults || topScore < c.FallbackMinTopScore
}

// ConfigStore holds the active Config with copy-on-update semantics so that
// in-flight searches keep a consistent snapshot.
type ConfigStore struct {
	mu  sync.RWMutex
	cfg Config
}

func NewConfigStore(cfg Config) *ConfigStore {
	return &ConfigStore{cfg: cfg}
}

// Get returns a snapshot of the active config. The keyword map is shared
// and must not be mutated by callers.
func (s *ConfigStore) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// ConfigUpdate is a partial overlay applied by Update. Nil fields keep the
// current value.
type ConfigUpdate struct {
	DefaultScoreThreshold *float64    `json:"default_score_threshold,omitempty"`
	MinScoreThreshold     *float64    `json:"min_score_threshold,omitempty"`
	MaxScoreThreshold     *float64    `json:"max_score_threshold,omitempty"`
	TargetMinResults      *int        `json:"target_min_results,omitempty"`
	TargetMaxResults      *int        `json:"target_max_results,omitempty"`
	CandidatesPerSource   *int        `json:"candidates_per_source,omitempty"`
	FinalLimit            *int        `json:"final_limit,omitempty"`
	FallbackMinResults    *int        `json:"fallback_min_results,omitempty"`
	FallbackMinTopScore   *float64    `json:"fallback_min_top_score,omitempty"`
	WebSearchMaxResults   *int        `json:"web_search_max_results,omitempty"`
	FusionMode            *FusionMode `json:"fusion_mode,omitempty"`
	RRFK                  *int        `json:"rrf_k,omitempty"`
	DenseWeight           *float64    `json:"dense_weight,omitempty"`
	SparseWeight          *float64    `json:"sparse_weight,omitempty"`
	SparseMinScore        *float64    `json:"sparse_min_score,omitempty"`
}

// Update applies the overlay and returns the resulting config.
func (s *ConfigStore) Update(u ConfigUpdate) Config {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.DefaultScoreThreshold != nil {
		s.cfg.DefaultScoreThreshold = *u.DefaultScoreThreshold
	}
	if u.MinScoreThreshold != nil {
		s.cfg.MinScoreThreshold = *u.MinScoreThreshold
	}
	if u.MaxScoreThreshold != nil {
		s.cfg.MaxScoreThreshold = *u.MaxScoreThreshold
	}
	if u.TargetMinResults != nil {
		s.cfg.TargetMinResults = *u.TargetMinResults
	}
	if u.TargetMaxResults != nil {
		s.cfg.TargetMaxResults = *u.TargetMaxResults
	}
	if u.CandidatesPerSource != nil {
		s.cfg.CandidatesPerSource = *u.CandidatesPerSource
	}
	if u.FinalLimit != nil {
		s.cfg.FinalLimit = *u.FinalLimit
	}
	if u.FallbackMinResults != nil {
		s.cfg.FallbackMinResults = *u.FallbackMinResults
	}
	if u.FallbackMinTopScore != nil {
		s.cfg.FallbackMinTopScore = *u.FallbackMinTopScore
	}
	if u.WebSearchMaxResults != nil {
		s.cfg.WebSearchMaxResults = *u.WebSearchMaxResults
	}
	if u.FusionMode != nil {
		s.cfg.FusionMode = *u.FusionMode
	}
	if u.RRFK != nil {
		s.cfg.RRFK = *u.RRFK
	}
	if u.DenseWeight != nil {
		s.cfg.DenseWeight = *u.DenseWeight
	}
	if u.SparseWeight != nil {
		s.cfg.SparseWeight = *u.SparseWeight
	}
	if u.SparseMinScore != nil {
		s.cfg.SparseMinScore = *u.SparseMinScore
	}

	return s.cfg
}
