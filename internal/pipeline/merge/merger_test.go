package merge

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/quizforge/quizforge-backend/internal/domain/content"
	"github.com/quizforge/quizforge-backend/internal/pkg/dbctx"
	"github.com/quizforge/quizforge-backend/internal/platform/logger"
)

type fakeTaxonomyRepo struct {
	topics   map[string]*types.Topic
	chapters map[string]*types.Chapter
}

func newFakeTaxonomyRepo() *fakeTaxonomyRepo {
	return &fakeTaxonomyRepo{topics: map[string]*types.Topic{}, chapters: map[string]*types.Chapter{}}
}

func (f *fakeTaxonomyRepo) UpsertTopic(_ dbctx.Context, t *types.Topic) error {
	if _, ok := f.topics[t.ID]; !ok {
		f.topics[t.ID] = t
	}
	return nil
}
func (f *fakeTaxonomyRepo) UpsertChapter(_ dbctx.Context, c *types.Chapter) error {
	if _, ok := f.chapters[c.ID]; !ok {
		f.chapters[c.ID] = c
	}
	return nil
}
func (f *fakeTaxonomyRepo) GetTopic(_ dbctx.Context, id string) (*types.Topic, error) {
	return f.topics[id], nil
}
func (f *fakeTaxonomyRepo) GetChapter(_ dbctx.Context, id string) (*types.Chapter, error) {
	return f.chapters[id], nil
}
func (f *fakeTaxonomyRepo) ListTopics(_ dbctx.Context) ([]*types.Topic, error) {
	var out []*types.Topic
	for _, t := range f.topics {
		out = append(out, t)
	}
	return out, nil
}
func (f *fakeTaxonomyRepo) ListChapters(_ dbctx.Context) ([]*types.Chapter, error) {
	var out []*types.Chapter
	for _, c := range f.chapters {
		out = append(out, c)
	}
	return out, nil
}
func (f *fakeTaxonomyRepo) ListChaptersByTopic(_ dbctx.Context, topicID string) ([]*types.Chapter, error) {
	var out []*types.Chapter
	for _, c := range f.chapters {
		if c.TopicID == topicID {
			out = append(out, c)
		}
	}
	return out, nil
}
func (f *fakeTaxonomyRepo) SetChapterCounts(_ dbctx.Context, chapterID string, mcqCount, flashcardCount int64) error {
	if c, ok := f.chapters[chapterID]; ok {
		c.McqCount = int(mcqCount)
		c.FlashcardCount = int(flashcardCount)
	}
	return nil
}

type fakeMcqRepo struct {
	rows map[uuid.UUID]*types.McqItem
}

func (f *fakeMcqRepo) CreateIgnoreExisting(_ dbctx.Context, items []*types.McqItem) (int64, error) {
	var inserted int64
	for _, item := range items {
		if _, ok := f.rows[item.ID]; ok {
			continue
		}
		f.rows[item.ID] = item
		inserted++
	}
	return inserted, nil
}
func (f *fakeMcqRepo) GetByUploadID(_ dbctx.Context, uploadID uuid.UUID) ([]*types.McqItem, error) {
	var out []*types.McqItem
	for _, r := range f.rows {
		if r.UploadID == uploadID {
			out = append(out, r)
		}
	}
	return out, nil
}
func (f *fakeMcqRepo) CountByChapterAndStatus(_ dbctx.Context, chapterID, status string) (int64, error) {
	var n int64
	for _, r := range f.rows {
		if r.ChapterID == chapterID && r.Status == status {
			n++
		}
	}
	return n, nil
}

type fakeFlashcardRepo struct {
	rows map[uuid.UUID]*types.FlashcardItem
}

func (f *fakeFlashcardRepo) CreateIgnoreExisting(_ dbctx.Context, items []*types.FlashcardItem) (int64, error) {
	var inserted int64
	for _, item := range items {
		if _, ok := f.rows[item.ID]; ok {
			continue
		}
		f.rows[item.ID] = item
		inserted++
	}
	return inserted, nil
}
func (f *fakeFlashcardRepo) GetByUploadID(_ dbctx.Context, uploadID uuid.UUID) ([]*types.FlashcardItem, error) {
	var out []*types.FlashcardItem
	for _, r := range f.rows {
		if r.UploadID == uploadID {
			out = append(out, r)
		}
	}
	return out, nil
}
func (f *fakeFlashcardRepo) CountByChapterAndStatus(_ dbctx.Context, chapterID, status string) (int64, error) {
	var n int64
	for _, r := range f.rows {
		if r.ChapterID == chapterID && r.Status == status {
			n++
		}
	}
	return n, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	require.NoError(t, err)
	return log
}

func jobWithBundle(t *testing.T, mcqs int) *types.GenerationJob {
	t.Helper()
	bundle := &types.ReviewBundle{}
	for i := 0; i < mcqs; i++ {
		bundle.Mcqs = append(bundle.Mcqs, types.Mcq{
			Question: "Q", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 1,
		})
	}
	return &types.GenerationJob{
		ID:                      uuid.New(),
		Status:                  "pending_assignment",
		FinalAwaitingReviewData: types.MustJSON(bundle),
	}
}

func TestMergeGroupCreatesChapterAndApprovedItems(t *testing.T) {
	taxonomy := newFakeTaxonomyRepo()
	taxonomy.topics["neonatology"] = &types.Topic{ID: "neonatology", Name: "Neonatology"}
	mcqs := &fakeMcqRepo{rows: map[uuid.UUID]*types.McqItem{}}
	cards := &fakeFlashcardRepo{rows: map[uuid.UUID]*types.FlashcardItem{}}
	m := NewMerger(testLogger(t), taxonomy, mcqs, cards)

	job := jobWithBundle(t, 2)
	group := types.AssignmentSuggestion{
		GroupID:      "g1",
		TopicName:    "Neonatology",
		ChapterName:  "Neonatal Jaundice",
		IsNewChapter: true,
		McqIndexes:   []int{0, 1},
	}

	res, err := m.MergeGroup(dbctx.Context{}, job, group)
	require.NoError(t, err)
	assert.Equal(t, "neonatal_jaundice", res.ChapterID)
	assert.EqualValues(t, 2, res.McqsInserted)

	require.Len(t, taxonomy.chapters, 1)
	chapter := taxonomy.chapters["neonatal_jaundice"]
	require.NotNil(t, chapter)
	assert.Equal(t, "neonatology", chapter.TopicID)
	assert.Equal(t, 2, chapter.McqCount)

	require.Len(t, mcqs.rows, 2)
	for _, row := range mcqs.rows {
		assert.Equal(t, types.ItemStatusApproved, row.Status)
		assert.Equal(t, "neonatal_jaundice", row.ChapterID)
		assert.Equal(t, job.ID, row.UploadID)
	}
}

func TestMergeGroupIsIdempotentUnderRetry(t *testing.T) {
	taxonomy := newFakeTaxonomyRepo()
	mcqs := &fakeMcqRepo{rows: map[uuid.UUID]*types.McqItem{}}
	cards := &fakeFlashcardRepo{rows: map[uuid.UUID]*types.FlashcardItem{}}
	m := NewMerger(testLogger(t), taxonomy, mcqs, cards)

	job := jobWithBundle(t, 3)
	group := types.AssignmentSuggestion{
		GroupID:     "g1",
		TopicName:   "Neonatology",
		ChapterName: "Neonatal Jaundice",
		McqIndexes:  []int{0, 1, 2},
	}

	first, err := m.MergeGroup(dbctx.Context{}, job, group)
	require.NoError(t, err)
	assert.EqualValues(t, 3, first.McqsInserted)

	second, err := m.MergeGroup(dbctx.Context{}, job, group)
	require.NoError(t, err)
	assert.EqualValues(t, 0, second.McqsInserted, "retry must not insert duplicates")

	assert.Len(t, mcqs.rows, 3, "exactly one canonical item per staged index")
	assert.Equal(t, 3, taxonomy.chapters["neonatal_jaundice"].McqCount, "recomputed count unchanged by retry")
	assert.Len(t, taxonomy.chapters, 1)
}

func TestMergeGroupRejectsOutOfRangeIndex(t *testing.T) {
	taxonomy := newFakeTaxonomyRepo()
	mcqs := &fakeMcqRepo{rows: map[uuid.UUID]*types.McqItem{}}
	cards := &fakeFlashcardRepo{rows: map[uuid.UUID]*types.FlashcardItem{}}
	m := NewMerger(testLogger(t), taxonomy, mcqs, cards)

	job := jobWithBundle(t, 1)
	group := types.AssignmentSuggestion{
		GroupID:     "g1",
		TopicName:   "T",
		ChapterName: "C",
		McqIndexes:  []int{0, 7},
	}
	_, err := m.MergeGroup(dbctx.Context{}, job, group)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.Empty(t, mcqs.rows, "nothing may be written on an invariant violation")
	assert.Empty(t, taxonomy.chapters)
}
