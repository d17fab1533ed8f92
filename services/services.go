package services

import (
	"context"

	"github.com/policy-qa-backend/models"
)

// VectorStore abstracts the dense retrieval backend (Qdrant).
type VectorStore interface {
	// Search runs a similarity query and returns chunk-level hits with
	// scores normalized to [0,1]. minScore filters server-side.
	Search(ctx context.Context, vector []float32, limit int, filter models.SearchFilter, minScore float64) ([]models.VectorHit, error)

	// Scroll pages through stored chunks matching the filter without
	// vectors. A zero filter returns the whole collection.
	Scroll(ctx context.Context, filter models.SearchFilter, limit int) ([]models.DocumentChunk, error)
}

// Embedder turns text into a dense query vector.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// PolicyService reads policy metadata from the relational store.
type PolicyService interface {
	// GetByID returns models.ErrPolicyNotFound for unknown ids.
	GetByID(ctx context.Context, id int) (*models.Policy, error)

	// LookupPolicies resolves a batch of ids, returning only rows that
	// exist. Missing ids are silently absent from the map.
	LookupPolicies(ctx context.Context, ids []int) (map[int]models.Policy, error)
}

// WebSearchService queries an external web search provider.
type WebSearchService interface {
	Search(ctx context.Context, query string, maxResults int) ([]models.WebSource, error)
}

// LLMService generates answer text from a rendered prompt.
type LLMService interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ChatCache stores per-session conversation history.
type ChatCache interface {
	// Append adds a message and evicts the oldest beyond the history cap.
	Append(ctx context.Context, sessionID string, msg models.ChatMessage) error

	// History returns messages oldest-first. Unknown sessions yield an
	// empty slice. The returned slice is a copy.
	History(ctx context.Context, sessionID string) ([]models.ChatMessage, error)

	Clear(ctx context.Context, sessionID string) error
}

// PolicyContextCache stores the per-session policy document snapshot.
type PolicyContextCache interface {
	Set(ctx context.Context, sessionID string, pc models.PolicyContext) error

	// Get reports ok=false for sessions with no initialized context.
	Get(ctx context.Context, sessionID string) (models.PolicyContext, bool, error)

	Clear(ctx context.Context, sessionID string) error
}

// SearchService runs the policy discovery workflow: hybrid retrieval with
// dynamic thresholds, metrics, and web fallback.
type SearchService interface {
	Search(ctx context.Context, query, region, category, targetGroup, sessionID string) (*models.SearchResult, error)
}

// QAService answers a user message against a session's initialized policy
// context.
type QAService interface {
	Answer(ctx context.Context, sessionID string, policyID int, message string) (*models.ChatResponse, error)
}
