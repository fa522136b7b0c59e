package content

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/quizforge/quizforge-backend/internal/domain/content"
	"github.com/quizforge/quizforge-backend/internal/pkg/dbctx"
	"github.com/quizforge/quizforge-backend/internal/platform/logger"
)

type FlashcardItemRepo interface {
	CreateIgnoreExisting(dbc dbctx.Context, items []*types.FlashcardItem) (int64, error)
	GetByUploadID(dbc dbctx.Context, uploadID uuid.UUID) ([]*types.FlashcardItem, error)
	CountByChapterAndStatus(dbc dbctx.Context, chapterID string, status string) (int64, error)
}

type flashcardItemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFlashcardItemRepo(db *gorm.DB, baseLog *logger.Logger) FlashcardItemRepo {
	return &flashcardItemRepo{db: db, log: baseLog.With("repo", "FlashcardItemRepo")}
}

func (r *flashcardItemRepo) CreateIgnoreExisting(dbc dbctx.Context, items []*types.FlashcardItem) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(items) == 0 {
		return 0, nil
	}
	res := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&items)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *flashcardItemRepo) GetByUploadID(dbc dbctx.Context, uploadID uuid.UUID) ([]*types.FlashcardItem, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.FlashcardItem
	if uploadID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("upload_id = ?", uploadID).
		Order("source_index ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *flashcardItemRepo) CountByChapterAndStatus(dbc dbctx.Context, chapterID string, status string) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if chapterID == "" {
		return 0, nil
	}
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.FlashcardItem{}).
		Where("chapter_id = ? AND status = ?", chapterID, status).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
