package models

import "errors"

// Precondition and lookup errors mapped to HTTP statuses by the handlers.
var (
	ErrPolicyNotFound       = errors.New("policy not found")
	ErrPolicyNotInitialized = errors.New("policy context not initialized for session")
)

// Transport sentinels for external collaborators. Implementations wrap the
// underlying error with %w so callers can classify with errors.Is.
var (
	ErrVectorStore   = errors.New("vector store unavailable")
	ErrMetadataStore = errors.New("metadata store unavailable")
	ErrEmbedding     = errors.New("embedding service unavailable")
	ErrLLM           = errors.New("llm service unavailable")
	ErrWebSearch     = errors.New("web search unavailable")
)
