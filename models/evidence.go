package models

import "fmt"

type EvidenceType string

const (
	EvidenceInternal EvidenceType = "internal"
	EvidenceWeb      EvidenceType = "web"
)

type LinkType string

const (
	LinkTypePolicyDetail LinkType = "policy_detail"
	LinkTypeExternal     LinkType = "external"
)

// Evidence is one citable source behind an answer. Internal evidence points
// at a cached policy document chunk; web evidence points at a fetched page.
type Evidence struct {
	Type        EvidenceType `json:"type"`
	Source      string       `json:"source"`
	Content     string       `json:"content"`
	Score       float64      `json:"score"`
	PolicyID    int          `json:"policy_id,omitempty"`
	DocID       string       `json:"doc_id,omitempty"`
	URL         string       `json:"url"`
	FetchedDate string       `json:"fetched_date,omitempty"`
	LinkType    LinkType     `json:"link_type"`
}

// WebSource is one result from the web search provider.
type WebSource struct {
	Title       string  `json:"title"`
	Snippet     string  `json:"snippet"`
	URL         string  `json:"url"`
	Score       float64 `json:"score"`
	FetchedDate string  `json:"fetched_date"`
	SourceType  string  `json:"source_type"`
}

// InternalEvidence builds evidence for a cached document chunk. Content is
// truncated to keep response payloads bounded.
func InternalEvidence(chunk DocumentChunk, score float64) Evidence {
	content := chunk.Content
	if len([]rune(content)) > 200 {
		content = string([]rune(content)[:200]) + "..."
	}
	return Evidence{
		Type:     EvidenceInternal,
		Source:   fmt.Sprintf("정책 문서 (섹션: %s)", chunk.DocType),
		Content:  content,
		Score:    score,
		PolicyID: chunk.PolicyID,
		DocID:    chunk.ChunkID,
		URL:      fmt.Sprintf("/policy/%d", chunk.PolicyID),
		LinkType: LinkTypePolicyDetail,
	}
}

// WebEvidence builds evidence for a web search result.
func WebEvidence(src WebSource) Evidence {
	return Evidence{
		Type:        EvidenceWeb,
		Source:      src.Title,
		Content:     src.Snippet,
		Score:       src.Score,
		URL:         src.URL,
		FetchedDate: src.FetchedDate,
		LinkType:    LinkTypeExternal,
	}
}
