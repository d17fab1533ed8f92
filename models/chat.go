package models

import "time"

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ChatMessage is one entry of a session conversation. Assistant messages
// carry the evidence and web sources that backed the answer, frozen at
// generation time.
type ChatMessage struct {
	Role       MessageRole `json:"role"`
	Content    string      `json:"content"`
	Timestamp  time.Time   `json:"timestamp"`
	Evidence   []Evidence  `json:"evidence,omitempty"`
	WebSources []WebSource `json:"web_sources,omitempty"`
}

type InitPolicyRequest struct {
	SessionID string `json:"session_id"`
	PolicyID  int    `json:"policy_id" binding:"required"`
}

type InitPolicyResponse struct {
	SessionID      string `json:"session_id"`
	PolicyID       int    `json:"policy_id"`
	Status         string `json:"status"`
	Message        string `json:"message"`
	DocumentsCount int    `json:"documents_count"`
}

type ChatRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	PolicyID  int    `json:"policy_id"`
	Message   string `json:"message" binding:"required"`
}

type ChatResponse struct {
	SessionID  string      `json:"session_id"`
	PolicyID   int         `json:"policy_id"`
	Answer     string      `json:"answer"`
	Evidence   []Evidence  `json:"evidence"`
	WebSources []WebSource `json:"web_sources"`
}

type CleanupRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

type CleanupResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}
