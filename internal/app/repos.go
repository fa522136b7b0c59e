package app

import (
	"gorm.io/gorm"

	repos "github.com/quizforge/quizforge-backend/internal/data/repos/content"
	"github.com/quizforge/quizforge-backend/internal/platform/logger"
)

type Repos struct {
	Jobs       repos.GenerationJobRepo
	Mcqs       repos.McqItemRepo
	Flashcards repos.FlashcardItemRepo
	Taxonomy   repos.TaxonomyRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Jobs:       repos.NewGenerationJobRepo(db, log),
		Mcqs:       repos.NewMcqItemRepo(db, log),
		Flashcards: repos.NewFlashcardItemRepo(db, log),
		Taxonomy:   repos.NewTaxonomyRepo(db, log),
	}
}
