package content

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/quizforge/quizforge-backend/internal/domain/content"
	"github.com/quizforge/quizforge-backend/internal/pkg/dbctx"
	"github.com/quizforge/quizforge-backend/internal/platform/logger"
)

type TaxonomyRepo interface {
	// UpsertTopic / UpsertChapter create-on-first-use keyed by the
	// normalized ID. Re-deriving the same ID concurrently lands on one row
	// (ON CONFLICT DO NOTHING), never two.
	UpsertTopic(dbc dbctx.Context, topic *types.Topic) error
	UpsertChapter(dbc dbctx.Context, chapter *types.Chapter) error
	GetTopic(dbc dbctx.Context, id string) (*types.Topic, error)
	GetChapter(dbc dbctx.Context, id string) (*types.Chapter, error)
	ListTopics(dbc dbctx.Context) ([]*types.Topic, error)
	ListChapters(dbc dbctx.Context) ([]*types.Chapter, error)
	ListChaptersByTopic(dbc dbctx.Context, topicID string) ([]*types.Chapter, error)
	SetChapterCounts(dbc dbctx.Context, chapterID string, mcqCount, flashcardCount int64) error
}

type taxonomyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaxonomyRepo(db *gorm.DB, baseLog *logger.Logger) TaxonomyRepo {
	return &taxonomyRepo{db: db, log: baseLog.With("repo", "TaxonomyRepo")}
}

func (r *taxonomyRepo) UpsertTopic(dbc dbctx.Context, topic *types.Topic) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if topic == nil || topic.ID == "" {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(topic).Error
}

func (r *taxonomyRepo) UpsertChapter(dbc dbctx.Context, chapter *types.Chapter) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if chapter == nil || chapter.ID == "" {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(chapter).Error
}

func (r *taxonomyRepo) GetTopic(dbc dbctx.Context, id string) (*types.Topic, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == "" {
		return nil, nil
	}
	var topic types.Topic
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&topic).Error
	if err != nil {
		return nil, err
	}
	if topic.ID == "" {
		return nil, nil
	}
	return &topic, nil
}

func (r *taxonomyRepo) GetChapter(dbc dbctx.Context, id string) (*types.Chapter, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == "" {
		return nil, nil
	}
	var chapter types.Chapter
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&chapter).Error
	if err != nil {
		return nil, err
	}
	if chapter.ID == "" {
		return nil, nil
	}
	return &chapter, nil
}

func (r *taxonomyRepo) ListTopics(dbc dbctx.Context) ([]*types.Topic, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Topic
	if err := transaction.WithContext(dbc.Ctx).
		Order("name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *taxonomyRepo) ListChapters(dbc dbctx.Context) ([]*types.Chapter, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Chapter
	if err := transaction.WithContext(dbc.Ctx).
		Order("topic_id ASC, name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *taxonomyRepo) ListChaptersByTopic(dbc dbctx.Context, topicID string) ([]*types.Chapter, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Chapter
	if topicID == "" {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("topic_id = ?", topicID).
		Order("name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *taxonomyRepo) SetChapterCounts(dbc dbctx.Context, chapterID string, mcqCount, flashcardCount int64) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if chapterID == "" {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Chapter{}).
		Where("id = ?", chapterID).
		Updates(map[string]interface{}{
			"mcq_count":       mcqCount,
			"flashcard_count": flashcardCount,
			"updated_at":      time.Now(),
		}).Error
}
