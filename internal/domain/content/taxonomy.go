package content

import (
	"time"

	"gorm.io/gorm"
)

// Topic and Chapter are keyed by normalization.NameID of their display
// names. Creation is always an upsert on that key, so concurrent writers
// deriving the same name land on one row.
type Topic struct {
	ID   string `gorm:"primaryKey" json:"id"`
	Name string `gorm:"column:name;not null" json:"name"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Topic) TableName() string { return "topic" }

type Chapter struct {
	ID      string `gorm:"primaryKey" json:"id"`
	TopicID string `gorm:"column:topic_id;not null;index" json:"topic_id"`
	Name    string `gorm:"column:name;not null" json:"name"`

	// Recomputed from approved canonical items on every merge, never
	// incremented in place.
	McqCount       int `gorm:"column:mcq_count;not null;default:0" json:"mcq_count"`
	FlashcardCount int `gorm:"column:flashcard_count;not null;default:0" json:"flashcard_count"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Chapter) TableName() string { return "chapter" }
