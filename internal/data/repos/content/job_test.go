package content

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/quizforge/quizforge-backend/internal/data/repos/testutil"
	types "github.com/quizforge/quizforge-backend/internal/domain/content"
	"github.com/quizforge/quizforge-backend/internal/pkg/dbctx"
)

func TestGenerationJobRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	dbc := dbctx.WithTx(context.Background(), tx)
	repo := NewGenerationJobRepo(db, testutil.Logger(t))

	job := &types.GenerationJob{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		Pipeline: types.PipelineGeneral,
		Title:    "Renal physiology notes",
		Status:   "pending_planning",
	}
	if _, err := repo.Create(dbc, job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(dbc, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil || got.ID != job.ID {
		t.Fatalf("GetByID: wrong row: %+v", got)
	}

	if missing, err := repo.GetByID(dbc, uuid.New()); err != nil || missing != nil {
		t.Fatalf("GetByID(miss): job=%+v err=%v", missing, err)
	}

	// Conditional write succeeds only while the expected status holds.
	applied, err := repo.UpdateFieldsIfStatus(dbc, job.ID, []string{"pending_planning"}, map[string]interface{}{
		"status": "pending_generation",
	})
	if err != nil || !applied {
		t.Fatalf("UpdateFieldsIfStatus: applied=%v err=%v", applied, err)
	}
	applied, err = repo.UpdateFieldsIfStatus(dbc, job.ID, []string{"pending_planning"}, map[string]interface{}{
		"status": "generating_content",
	})
	if err != nil {
		t.Fatalf("UpdateFieldsIfStatus(stale): %v", err)
	}
	if applied {
		t.Fatal("UpdateFieldsIfStatus must lose with a stale expected status")
	}

	rows, err := repo.ListByStatus(dbc, []string{"pending_generation"})
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	found := false
	for _, row := range rows {
		if row.ID == job.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("ListByStatus did not return the job")
	}

	if err := repo.AppendError(dbc, job.ID, "batch 2: model timeout"); err != nil {
		t.Fatalf("AppendError: %v", err)
	}
	if err := repo.AppendError(dbc, job.ID, "batch 3: model timeout"); err != nil {
		t.Fatalf("AppendError: %v", err)
	}
	got, err = repo.GetByID(dbc, job.ID)
	if err != nil {
		t.Fatalf("GetByID after AppendError: %v", err)
	}
	list, err := got.ErrorList()
	if err != nil {
		t.Fatalf("ErrorList: %v", err)
	}
	if len(list) != 2 || list[0] != "batch 2: model timeout" {
		t.Fatalf("errors list wrong: %v", list)
	}
}

func TestGenerationJobRepoLockRequiresTx(t *testing.T) {
	db := testutil.DB(t)
	repo := NewGenerationJobRepo(db, testutil.Logger(t))

	dbc := dbctx.New(context.Background())
	if _, err := repo.LockForUpdate(dbc, uuid.New()); err == nil {
		t.Fatal("LockForUpdate without a tx must error")
	}
}
