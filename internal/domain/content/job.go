package content

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PipelineGeneral = "general"
	PipelineMarrow  = "marrow"
)

// GenerationJob tracks one unit of uploaded source material through the
// generation/review pipeline. Staged payloads (batch output, review bundle,
// suggestions) live in jsonb columns; Status is the only field that governs
// which actions are legal next.
type GenerationJob struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Pipeline string    `gorm:"column:pipeline;not null;default:'general'" json:"pipeline"`

	Title         string         `gorm:"column:title" json:"title"`
	FileName      string         `gorm:"column:file_name" json:"file_name,omitempty"`
	ExtractedText string         `gorm:"column:extracted_text;type:text" json:"extracted_text,omitempty"`
	SourceText    string         `gorm:"column:source_text;type:text" json:"source_text,omitempty"`
	TextChunks    datatypes.JSON `gorm:"column:text_chunks;type:jsonb" json:"text_chunks,omitempty"`

	Status string `gorm:"column:status;not null;index" json:"status"`

	SuggestedPlan    datatypes.JSON `gorm:"column:suggested_plan;type:jsonb" json:"suggested_plan,omitempty"`
	SuggestedTopic   string         `gorm:"column:suggested_topic" json:"suggested_topic,omitempty"`
	SuggestedChapter string         `gorm:"column:suggested_chapter" json:"suggested_chapter,omitempty"`

	BatchSize        int `gorm:"column:batch_size;not null;default:0" json:"batch_size"`
	TotalBatches     int `gorm:"column:total_batches;not null;default:0" json:"total_batches"`
	CompletedBatches int `gorm:"column:completed_batches;not null;default:0" json:"completed_batches"`
	FailedBatches    int `gorm:"column:failed_batches;not null;default:0" json:"failed_batches"`

	// Batch numbers whose failure has already been recorded, so redelivered
	// failure reports do not double-count.
	FailedBatchNumbers datatypes.JSON `gorm:"column:failed_batch_numbers;type:jsonb" json:"failed_batch_numbers,omitempty"`

	GeneratedContent        datatypes.JSON `gorm:"column:generated_content;type:jsonb" json:"generated_content,omitempty"`
	FinalAwaitingReviewData datatypes.JSON `gorm:"column:final_awaiting_review_data;type:jsonb" json:"final_awaiting_review_data,omitempty"`

	// Marrow extraction stage output.
	StagedContent        datatypes.JSON `gorm:"column:staged_content;type:jsonb" json:"staged_content,omitempty"`
	SuggestedNewMcqCount int            `gorm:"column:suggested_new_mcq_count;not null;default:0" json:"suggested_new_mcq_count,omitempty"`
	SuggestedKeyTopics   datatypes.JSON `gorm:"column:suggested_key_topics;type:jsonb" json:"suggested_key_topics,omitempty"`

	AssignmentSuggestions datatypes.JSON `gorm:"column:assignment_suggestions;type:jsonb" json:"assignment_suggestions,omitempty"`
	ApprovedTopic         string         `gorm:"column:approved_topic" json:"approved_topic,omitempty"`
	ApprovedChapter       string         `gorm:"column:approved_chapter" json:"approved_chapter,omitempty"`

	Errors datatypes.JSON `gorm:"column:errors;type:jsonb" json:"errors,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (GenerationJob) TableName() string { return "generation_job" }
