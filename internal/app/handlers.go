package app

import (
	"github.com/quizforge/quizforge-backend/internal/data/db"
	httpH "github.com/quizforge/quizforge-backend/internal/http/handlers"
	"github.com/quizforge/quizforge-backend/internal/platform/logger"
	"github.com/quizforge/quizforge-backend/internal/sse"
)

type Handlers struct {
	Upload   *httpH.UploadHandler
	Job      *httpH.JobHandler
	Taxonomy *httpH.TaxonomyHandler
	Realtime *httpH.RealtimeHandler
	Health   *httpH.HealthHandler
}

func wireHandlers(log *logger.Logger, s Services, r Repos, hub *sse.Hub, pg *db.PostgresService) Handlers {
	return Handlers{
		Upload:   httpH.NewUploadHandler(s.Uploads),
		Job:      httpH.NewJobHandler(log, s.Uploads, s.Generation, s.Assignment, s.Approval, s.Controller),
		Taxonomy: httpH.NewTaxonomyHandler(r.Taxonomy),
		Realtime: httpH.NewRealtimeHandler(hub),
		Health:   httpH.NewHealthHandler(pg),
	}
}
