package db

import (
	"gorm.io/gorm"

	types "github.com/quizforge/quizforge-backend/internal/domain/content"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Pipeline
		&types.GenerationJob{},

		// Canonical content store
		&types.McqItem{},
		&types.FlashcardItem{},

		// Taxonomy
		&types.Topic{},
		&types.Chapter{},
	)
}
