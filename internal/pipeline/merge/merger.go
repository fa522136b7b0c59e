package merge

import (
	"errors"
	"fmt"

	repos "github.com/quizforge/quizforge-backend/internal/data/repos/content"
	types "github.com/quizforge/quizforge-backend/internal/domain/content"
	"github.com/quizforge/quizforge-backend/internal/normalization"
	"github.com/quizforge/quizforge-backend/internal/pkg/dbctx"
	"github.com/quizforge/quizforge-backend/internal/platform/logger"
)

// ErrIndexOutOfRange means a suggestion group references a position that
// does not exist in the job's review bundle. That is corrupted job data; the
// merge aborts without writing anything.
var ErrIndexOutOfRange = errors.New("suggestion index outside review bundle")

type Result struct {
	TopicID            string
	ChapterID          string
	McqsInserted       int64
	FlashcardsInserted int64
}

// Merger commits one approved suggestion group into the canonical content
// store. Staged and canonical content live in disjoint tables and the merge
// is a one-directional copy: staged rows are never promoted in place, so a
// crashed or duplicated approval cannot leave canonical data half-written.
// Idempotency comes from deterministic item IDs derived from (job, index)
// plus insert-if-absent.
type Merger struct {
	log      *logger.Logger
	taxonomy repos.TaxonomyRepo
	mcqs     repos.McqItemRepo
	cards    repos.FlashcardItemRepo
}

func NewMerger(baseLog *logger.Logger, taxonomy repos.TaxonomyRepo, mcqs repos.McqItemRepo, cards repos.FlashcardItemRepo) *Merger {
	return &Merger{
		log:      baseLog.With("component", "ApprovalMerger"),
		taxonomy: taxonomy,
		mcqs:     mcqs,
		cards:    cards,
	}
}

func (m *Merger) MergeGroup(dbc dbctx.Context, job *types.GenerationJob, group types.AssignmentSuggestion) (*Result, error) {
	bundle, err := job.Review()
	if err != nil {
		return nil, err
	}
	if bundle == nil {
		return nil, fmt.Errorf("job %s has no review bundle", job.ID)
	}
	for _, i := range group.McqIndexes {
		if i < 0 || i >= len(bundle.Mcqs) {
			return nil, fmt.Errorf("%w: mcq index %d, bundle has %d", ErrIndexOutOfRange, i, len(bundle.Mcqs))
		}
	}
	for _, i := range group.FlashcardIndexes {
		if i < 0 || i >= len(bundle.Flashcards) {
			return nil, fmt.Errorf("%w: flashcard index %d, bundle has %d", ErrIndexOutOfRange, i, len(bundle.Flashcards))
		}
	}

	topicID := normalization.NameID(group.TopicName)
	chapterID := normalization.NameID(group.ChapterName)
	if topicID == "" || chapterID == "" {
		return nil, fmt.Errorf("suggestion group %s has unusable topic/chapter names", group.GroupID)
	}

	// Create-on-first-use; the upsert is keyed by the normalized ID so a
	// concurrent merge deriving the same name cannot split the chapter.
	if err := m.taxonomy.UpsertTopic(dbc, &types.Topic{ID: topicID, Name: group.TopicName}); err != nil {
		return nil, err
	}
	if err := m.taxonomy.UpsertChapter(dbc, &types.Chapter{ID: chapterID, TopicID: topicID, Name: group.ChapterName}); err != nil {
		return nil, err
	}

	var mcqRows []*types.McqItem
	for _, i := range group.McqIndexes {
		staged := bundle.Mcqs[i]
		mcqRows = append(mcqRows, &types.McqItem{
			ID:           types.CanonicalMcqID(job.ID, i),
			TopicID:      topicID,
			ChapterID:    chapterID,
			TopicName:    group.TopicName,
			ChapterName:  group.ChapterName,
			Question:     staged.Question,
			Options:      types.MustJSON(staged.Options),
			CorrectIndex: staged.CorrectIndex,
			Explanation:  staged.Explanation,
			Status:       types.ItemStatusApproved,
			UploadID:     job.ID,
			SourceIndex:  i,
		})
	}
	var cardRows []*types.FlashcardItem
	for _, i := range group.FlashcardIndexes {
		staged := bundle.Flashcards[i]
		cardRows = append(cardRows, &types.FlashcardItem{
			ID:          types.CanonicalFlashcardID(job.ID, i),
			TopicID:     topicID,
			ChapterID:   chapterID,
			TopicName:   group.TopicName,
			ChapterName: group.ChapterName,
			Front:       staged.Front,
			Back:        staged.Back,
			Status:      types.ItemStatusApproved,
			UploadID:    job.ID,
			SourceIndex: i,
		})
	}

	mcqsInserted, err := m.mcqs.CreateIgnoreExisting(dbc, mcqRows)
	if err != nil {
		return nil, err
	}
	cardsInserted, err := m.cards.CreateIgnoreExisting(dbc, cardRows)
	if err != nil {
		return nil, err
	}

	// Counts are recomputed from approved rows, never incremented, so a
	// retried or partially observed merge still converges.
	mcqCount, err := m.mcqs.CountByChapterAndStatus(dbc, chapterID, types.ItemStatusApproved)
	if err != nil {
		return nil, err
	}
	cardCount, err := m.cards.CountByChapterAndStatus(dbc, chapterID, types.ItemStatusApproved)
	if err != nil {
		return nil, err
	}
	if err := m.taxonomy.SetChapterCounts(dbc, chapterID, mcqCount, cardCount); err != nil {
		return nil, err
	}

	m.log.Info("Suggestion group merged",
		"job_id", job.ID,
		"group_id", group.GroupID,
		"chapter_id", chapterID,
		"mcqs_inserted", mcqsInserted,
		"flashcards_inserted", cardsInserted,
	)
	return &Result{
		TopicID:            topicID,
		ChapterID:          chapterID,
		McqsInserted:       mcqsInserted,
		FlashcardsInserted: cardsInserted,
	}, nil
}
