package content

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/quizforge/quizforge-backend/internal/domain/content"
	"github.com/quizforge/quizforge-backend/internal/pkg/dbctx"
	"github.com/quizforge/quizforge-backend/internal/platform/logger"
)

type GenerationJobRepo interface {
	Create(dbc dbctx.Context, job *types.GenerationJob) (*types.GenerationJob, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.GenerationJob, error)
	ListByStatus(dbc dbctx.Context, statuses []string) ([]*types.GenerationJob, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	// UpdateFieldsIfStatus applies updates only while the job's current
	// status is one of expectedStatuses. A false return means the
	// conditional write lost the race (or the job is gone); the caller must
	// re-read and decide whether the action still applies.
	UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, expectedStatuses []string, updates map[string]interface{}) (bool, error)
	// LockForUpdate reads the row under FOR UPDATE. Requires a transaction.
	LockForUpdate(dbc dbctx.Context, id uuid.UUID) (*types.GenerationJob, error)
	// AppendError appends one entry to the job's never-overwritten errors
	// list without touching status.
	AppendError(dbc dbctx.Context, id uuid.UUID, message string) error
}

var errLockRequiresTx = errors.New("LockForUpdate requires a transaction")

type generationJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGenerationJobRepo(db *gorm.DB, baseLog *logger.Logger) GenerationJobRepo {
	return &generationJobRepo{
		db:  db,
		log: baseLog.With("repo", "GenerationJobRepo"),
	}
}

func (r *generationJobRepo) Create(dbc dbctx.Context, job *types.GenerationJob) (*types.GenerationJob, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if job == nil {
		return nil, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

func (r *generationJobRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.GenerationJob, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var job types.GenerationJob
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

func (r *generationJobRepo) ListByStatus(dbc dbctx.Context, statuses []string) ([]*types.GenerationJob, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.GenerationJob
	if len(statuses) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("status IN ?", statuses).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *generationJobRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.GenerationJob{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *generationJobRepo) UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, expectedStatuses []string, updates map[string]interface{}) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(expectedStatuses) == 0 {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}

	q := transaction.WithContext(dbc.Ctx).
		Model(&types.GenerationJob{}).
		Where("id = ?", id)
	if len(expectedStatuses) == 1 {
		q = q.Where("status = ?", expectedStatuses[0])
	} else {
		q = q.Where("status IN ?", expectedStatuses)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *generationJobRepo) LockForUpdate(dbc dbctx.Context, id uuid.UUID) (*types.GenerationJob, error) {
	if dbc.Tx == nil {
		return nil, errLockRequiresTx
	}
	var job types.GenerationJob
	err := dbc.Tx.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *generationJobRepo) AppendError(dbc dbctx.Context, id uuid.UUID, message string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || message == "" {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var job types.GenerationJob
		err := txx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var list []string
		if len(job.Errors) > 0 {
			if err := json.Unmarshal(job.Errors, &list); err != nil {
				r.log.Warn("errors column undecodable, starting fresh list", "job_id", id, "error", err)
				list = nil
			}
		}
		list = append(list, message)
		raw, err := json.Marshal(list)
		if err != nil {
			return err
		}
		return txx.Model(&types.GenerationJob{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"errors":     datatypes.JSON(raw),
				"updated_at": time.Now(),
			}).Error
	})
}
