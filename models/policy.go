package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Policy is the relational metadata record for a government support program.
// Rows are written by the ingestion pipeline; this service only reads them.
type Policy struct {
	ID                  int            `json:"id" gorm:"primary_key"`
	ProgramID           string         `json:"program_id" gorm:"type:varchar(100);uniqueIndex"`
	ProgramName         string         `json:"program_name" gorm:"type:varchar(500);not null"`
	Region              string         `json:"region" gorm:"type:varchar(100);index"`
	Category            string         `json:"category" gorm:"type:varchar(100);index"`
	ProgramOverview     string         `json:"program_overview" gorm:"type:text"`
	ApplyTarget         string         `json:"apply_target" gorm:"type:text"`
	SupportDescription  string         `json:"support_description" gorm:"type:text"`
	SupportBudget       string         `json:"support_budget" gorm:"type:varchar(255)"`
	SupportScale        string         `json:"support_scale" gorm:"type:varchar(255)"`
	SupervisingMinistry string         `json:"supervising_ministry" gorm:"type:varchar(255)"`
	AnnouncementDate    string         `json:"announcement_date" gorm:"type:varchar(100)"`
	ApplicationMethod   string         `json:"application_method" gorm:"type:text"`
	URL                 string         `json:"url" gorm:"type:varchar(1000)"`
	ContactAgency       datatypes.JSON `json:"contact_agency" gorm:"type:jsonb;default:'[]'"`
	ContactNumber       datatypes.JSON `json:"contact_number" gorm:"type:jsonb;default:'[]'"`
	RequiredDocuments   datatypes.JSON `json:"required_documents" gorm:"type:jsonb;default:'[]'"`
	CollectedDate       string         `json:"collected_date" gorm:"type:varchar(100)"`
	CreatedAt           time.Time      `json:"created_at" gorm:"not null;default:now()"`
}

func (Policy) TableName() string {
	return "policies"
}

// StringList decodes a jsonb list column into a string slice.
// Malformed or null columns decode to an empty slice.
func StringList(col datatypes.JSON) []string {
	if len(col) == 0 {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal(col, &out); err != nil {
		return []string{}
	}
	return out
}

// DocumentChunk is one indexed text fragment of a policy document.
// Embedding vectors stay in the vector store; chunks fetched via scroll omit them.
type DocumentChunk struct {
	ChunkID    string `json:"chunk_id"`
	PolicyID   int    `json:"policy_id"`
	ChunkIndex int    `json:"chunk_index"`
	DocType    string `json:"doc_type"` // "support", "target", "overview", ...
	Content    string `json:"content"`
}

// PolicyInfo is the denormalized policy summary cached with a session context.
type PolicyInfo struct {
	PolicyID           int    `json:"policy_id"`
	ProgramName        string `json:"program_name"`
	ProgramOverview    string `json:"program_overview"`
	ApplyTarget        string `json:"apply_target"`
	SupportDescription string `json:"support_description"`
}

// PolicyContext is the per-session snapshot of one policy's full document set.
type PolicyContext struct {
	PolicyID   int             `json:"policy_id"`
	PolicyInfo PolicyInfo      `json:"policy_info"`
	Documents  []DocumentChunk `json:"documents"`
	CachedAt   time.Time       `json:"cached_at"`
}
