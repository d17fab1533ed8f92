package workflow

import "github.com/policy-qa-backend/models"

type QueryType string

const (
	QueryPolicyQA QueryType = "POLICY_QA"
	QueryWebOnly  QueryType = "WEB_ONLY"
)

// QAState carries one question through the workflow. Nodes receive it by
// value and return the updated copy; nothing outside the runner mutates it.
type QAState struct {
	SessionID    string
	PolicyID     int
	Messages     []models.ChatMessage
	CurrentQuery string

	QueryType     QueryType
	PolicyInfo    models.PolicyInfo
	RetrievedDocs []models.DocumentChunk
	WebSources    []models.WebSource
	NeedWebSearch bool

	Answer   string
	Evidence []models.Evidence

	// Err aborts the workflow when set by a node. Soft failures (web
	// search, LLM) degrade instead of setting it.
	Err error
}
