package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	repos "github.com/quizforge/quizforge-backend/internal/data/repos/content"
	types "github.com/quizforge/quizforge-backend/internal/domain/content"
	"github.com/quizforge/quizforge-backend/internal/pipeline"
	"github.com/quizforge/quizforge-backend/internal/pkg/dbctx"
	"github.com/quizforge/quizforge-backend/internal/platform/apierr"
	"github.com/quizforge/quizforge-backend/internal/platform/envutil"
	"github.com/quizforge/quizforge-backend/internal/platform/logger"
)

// UploadService owns job intake: creating jobs from pasted text or uploaded
// files and walking file jobs through the OCR stages. Pasted text skips OCR
// and lands directly in pending_planning.
type UploadService interface {
	CreateFromText(ctx context.Context, userID uuid.UUID, title, sourceText, pipelineKind string) (*types.GenerationJob, error)
	CreateFromFile(ctx context.Context, userID uuid.UUID, title, fileName, pipelineKind string) (*types.GenerationJob, error)
	BeginOCR(ctx context.Context, jobID uuid.UUID) (*types.GenerationJob, error)
	CompleteOCR(ctx context.Context, jobID uuid.UUID, extractedText string) (*types.GenerationJob, error)
	GetByID(ctx context.Context, jobID uuid.UUID) (*types.GenerationJob, error)
	List(ctx context.Context, statuses []string) ([]*types.GenerationJob, error)
}

type uploadService struct {
	log        *logger.Logger
	jobs       repos.GenerationJobRepo
	controller *pipeline.Controller
	chunkSize  int
}

func NewUploadService(log *logger.Logger, jobs repos.GenerationJobRepo, controller *pipeline.Controller) UploadService {
	serviceLog := log.With("service", "UploadService")
	return &uploadService{
		log:        serviceLog,
		jobs:       jobs,
		controller: controller,
		chunkSize:  envutil.GetEnvAsInt("CHUNK_SIZE_CHARS", 4000, log),
	}
}

func (s *uploadService) CreateFromText(ctx context.Context, userID uuid.UUID, title, sourceText, pipelineKind string) (*types.GenerationJob, error) {
	sourceText = strings.TrimSpace(sourceText)
	if sourceText == "" {
		return nil, apierr.BadRequest("EMPTY_SOURCE", fmt.Errorf("source text required"))
	}
	kind, err := normalizePipeline(pipelineKind)
	if err != nil {
		return nil, err
	}

	chunks := chunkText(sourceText, s.chunkSize)
	job := &types.GenerationJob{
		ID:         uuid.New(),
		UserID:     userID,
		Pipeline:   kind,
		Title:      strings.TrimSpace(title),
		SourceText: sourceText,
		TextChunks: types.MustJSON(chunks),
		Status:     pipeline.StatusPendingPlanning,
	}
	created, err := s.jobs.Create(dbctx.New(ctx), job)
	if err != nil {
		return nil, err
	}
	s.log.Info("Job created from text", "job_id", created.ID, "pipeline", kind, "chunks", len(chunks))
	return created, nil
}

func (s *uploadService) CreateFromFile(ctx context.Context, userID uuid.UUID, title, fileName, pipelineKind string) (*types.GenerationJob, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return nil, apierr.BadRequest("EMPTY_FILENAME", fmt.Errorf("file name required"))
	}
	kind, err := normalizePipeline(pipelineKind)
	if err != nil {
		return nil, err
	}

	job := &types.GenerationJob{
		ID:       uuid.New(),
		UserID:   userID,
		Pipeline: kind,
		Title:    strings.TrimSpace(title),
		FileName: fileName,
		Status:   pipeline.StatusPendingUpload,
	}
	created, err := s.jobs.Create(dbctx.New(ctx), job)
	if err != nil {
		return nil, err
	}
	s.log.Info("Job created from file", "job_id", created.ID, "pipeline", kind)
	return created, nil
}

func (s *uploadService) BeginOCR(ctx context.Context, jobID uuid.UUID) (*types.GenerationJob, error) {
	return s.controller.Transition(ctx, jobID, []string{pipeline.StatusPendingUpload}, pipeline.StatusProcessingOCR, nil)
}

// CompleteOCR stores the OCR output and chunks it for generation in the same
// conditional write that leaves processing_ocr.
func (s *uploadService) CompleteOCR(ctx context.Context, jobID uuid.UUID, extractedText string) (*types.GenerationJob, error) {
	extractedText = strings.TrimSpace(extractedText)
	if extractedText == "" {
		return nil, apierr.BadRequest("EMPTY_OCR_TEXT", fmt.Errorf("extracted text required"))
	}
	return s.controller.Transition(ctx, jobID, []string{pipeline.StatusProcessingOCR}, pipeline.StatusPendingPlanning, map[string]interface{}{
		"extracted_text": extractedText,
		"text_chunks":    types.MustJSON(chunkText(extractedText, s.chunkSize)),
	})
}

func (s *uploadService) GetByID(ctx context.Context, jobID uuid.UUID) (*types.GenerationJob, error) {
	job, err := s.jobs.GetByID(dbctx.New(ctx), jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, apierr.NotFound("JOB_NOT_FOUND", fmt.Errorf("job %s not found", jobID))
	}
	return job, nil
}

// List defaults to the active queue: archived and other terminal jobs only
// show up when asked for by status.
func (s *uploadService) List(ctx context.Context, statuses []string) ([]*types.GenerationJob, error) {
	if len(statuses) == 0 {
		statuses = pipeline.ActiveStatuses()
	}
	for _, st := range statuses {
		if !pipeline.KnownStatus(st) {
			return nil, apierr.BadRequest("UNKNOWN_STATUS", fmt.Errorf("unknown status %q", st))
		}
	}
	return s.jobs.ListByStatus(dbctx.New(ctx), statuses)
}

func normalizePipeline(kind string) (string, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	switch kind {
	case "", types.PipelineGeneral:
		return types.PipelineGeneral, nil
	case types.PipelineMarrow:
		return types.PipelineMarrow, nil
	default:
		return "", apierr.BadRequest("UNKNOWN_PIPELINE", fmt.Errorf("unknown pipeline %q", kind))
	}
}

// chunkText splits on paragraph boundaries, packing paragraphs until the next
// one would push a chunk past maxLen. A single oversized paragraph becomes
// its own chunk rather than being split mid-sentence.
func chunkText(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = 4000
	}
	paragraphs := strings.Split(text, "\n\n")
	var chunks []string
	var current strings.Builder
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(p)+2 > maxLen {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
