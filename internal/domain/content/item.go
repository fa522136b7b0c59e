package content

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Canonical item statuses. Only approved items are visible to end users;
// approved may move to archived but never back.
const (
	ItemStatusPending  = "pending"
	ItemStatusApproved = "approved"
	ItemStatusRejected = "rejected"
	ItemStatusArchived = "archived"
)

// McqItem is a canonical multiple-choice question, created only by the
// approval merge (never directly by generation). Identity is immutable once
// created; UploadID points back to the originating job for audit.
type McqItem struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TopicID      string         `gorm:"column:topic_id;not null;index" json:"topic_id"`
	ChapterID    string         `gorm:"column:chapter_id;not null;index" json:"chapter_id"`
	TopicName    string         `gorm:"column:topic_name;not null" json:"topic_name"`
	ChapterName  string         `gorm:"column:chapter_name;not null" json:"chapter_name"`
	Question     string         `gorm:"column:question;type:text;not null" json:"question"`
	Options      datatypes.JSON `gorm:"column:options;type:jsonb;not null" json:"options"`
	CorrectIndex int            `gorm:"column:correct_index;not null" json:"correct_index"`
	Explanation  string         `gorm:"column:explanation;type:text" json:"explanation,omitempty"`
	Status       string         `gorm:"column:status;not null;index" json:"status"`
	UploadID     uuid.UUID      `gorm:"type:uuid;column:upload_id;not null;index" json:"upload_id"`
	SourceIndex  int            `gorm:"column:source_index;not null" json:"source_index"`
	Tags         datatypes.JSON `gorm:"column:tags;type:jsonb" json:"tags,omitempty"`

	// Spaced-repetition bookkeeping, maintained by the (out of scope)
	// scheduler.
	IntervalDays float64    `gorm:"column:interval_days;not null;default:0" json:"interval_days"`
	EaseFactor   float64    `gorm:"column:ease_factor;not null;default:2.5" json:"ease_factor"`
	NextReviewAt *time.Time `gorm:"column:next_review_at" json:"next_review_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (McqItem) TableName() string { return "mcq_item" }

// FlashcardItem is a canonical flashcard, same lifecycle as McqItem.
type FlashcardItem struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TopicID     string         `gorm:"column:topic_id;not null;index" json:"topic_id"`
	ChapterID   string         `gorm:"column:chapter_id;not null;index" json:"chapter_id"`
	TopicName   string         `gorm:"column:topic_name;not null" json:"topic_name"`
	ChapterName string         `gorm:"column:chapter_name;not null" json:"chapter_name"`
	Front       string         `gorm:"column:front;type:text;not null" json:"front"`
	Back        string         `gorm:"column:back;type:text;not null" json:"back"`
	Status      string         `gorm:"column:status;not null;index" json:"status"`
	UploadID    uuid.UUID      `gorm:"type:uuid;column:upload_id;not null;index" json:"upload_id"`
	SourceIndex int            `gorm:"column:source_index;not null" json:"source_index"`
	Tags        datatypes.JSON `gorm:"column:tags;type:jsonb" json:"tags,omitempty"`

	IntervalDays float64    `gorm:"column:interval_days;not null;default:0" json:"interval_days"`
	EaseFactor   float64    `gorm:"column:ease_factor;not null;default:2.5" json:"ease_factor"`
	NextReviewAt *time.Time `gorm:"column:next_review_at" json:"next_review_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (FlashcardItem) TableName() string { return "flashcard_item" }

// CanonicalMcqID derives the deterministic canonical ID for the staged MCQ
// at the given review-bundle index. Re-running the same approval therefore
// lands on the same primary key instead of inserting a duplicate.
func CanonicalMcqID(jobID uuid.UUID, index int) uuid.UUID {
	return uuid.NewSHA1(jobID, []byte("mcq:"+strconv.Itoa(index)))
}

func CanonicalFlashcardID(jobID uuid.UUID, index int) uuid.UUID {
	return uuid.NewSHA1(jobID, []byte("flashcard:"+strconv.Itoa(index)))
}
