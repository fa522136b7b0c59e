package assign

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"

	types "github.com/quizforge/quizforge-backend/internal/domain/content"
	"github.com/quizforge/quizforge-backend/internal/normalization"
)

// ProposedGroup is what the assignment model hands back: display names plus
// raw index lists over the review bundle. The model is untrusted input; the
// resolver owns making the final suggestion set total and disjoint.
type ProposedGroup struct {
	TopicName        string `json:"topic_name"`
	ChapterName      string `json:"chapter_name"`
	McqIndexes       []int  `json:"mcq_indexes"`
	FlashcardIndexes []int  `json:"flashcard_indexes"`
}

// TaxonomySnapshot is the existing-taxonomy knowledge the resolver matches
// proposed names against, keyed by normalized ID.
type TaxonomySnapshot struct {
	Topics   map[string]string // normalized topic ID -> display name
	Chapters map[string]string // normalized chapter ID -> display name
}

// Resolve turns proposed groups into a suggestion batch that partitions the
// review bundle exactly: every index appears in exactly one group. Indexes
// the model dropped or duplicated are repaired rather than rejected — first
// group wins a contested index, uncovered indexes fall into a trailing
// fallback group named after the job's topic/chapter hints. existingCount is
// the number of suggestion groups already on the job; re-invocation appends
// a new batch, it never rewrites prior ones.
func Resolve(jobID uuid.UUID, bundle *types.ReviewBundle, snapshot TaxonomySnapshot, proposed []ProposedGroup, fallbackTopic, fallbackChapter string, existingCount int) ([]types.AssignmentSuggestion, error) {
	if bundle == nil || (len(bundle.Mcqs) == 0 && len(bundle.Flashcards) == 0) {
		return nil, fmt.Errorf("review bundle is empty")
	}

	mcqSeen := make([]bool, len(bundle.Mcqs))
	cardSeen := make([]bool, len(bundle.Flashcards))

	var out []types.AssignmentSuggestion
	for _, g := range proposed {
		mcqIdx := claimIndexes(g.McqIndexes, mcqSeen)
		cardIdx := claimIndexes(g.FlashcardIndexes, cardSeen)
		if len(mcqIdx) == 0 && len(cardIdx) == 0 {
			continue
		}
		out = append(out, buildSuggestion(jobID, snapshot, g.TopicName, g.ChapterName, mcqIdx, cardIdx, existingCount+len(out)))
	}

	leftoverMcqs := unclaimed(mcqSeen)
	leftoverCards := unclaimed(cardSeen)
	if len(leftoverMcqs) > 0 || len(leftoverCards) > 0 {
		topic := fallbackTopic
		if topic == "" {
			topic = "Uncategorized"
		}
		chapter := fallbackChapter
		if chapter == "" {
			chapter = "General"
		}
		out = append(out, buildSuggestion(jobID, snapshot, topic, chapter, leftoverMcqs, leftoverCards, existingCount+len(out)))
	}
	return out, nil
}

func buildSuggestion(jobID uuid.UUID, snapshot TaxonomySnapshot, topicName, chapterName string, mcqIdx, cardIdx []int, ordinal int) types.AssignmentSuggestion {
	chapterID := normalization.NameID(chapterName)
	_, exists := snapshot.Chapters[chapterID]
	if name, ok := snapshot.Topics[normalization.NameID(topicName)]; ok && name != "" {
		topicName = name
	}
	return types.AssignmentSuggestion{
		GroupID:          uuid.NewSHA1(jobID, []byte("group:"+strconv.Itoa(ordinal))).String(),
		TopicName:        topicName,
		ChapterName:      chapterName,
		IsNewChapter:     !exists,
		McqIndexes:       mcqIdx,
		FlashcardIndexes: cardIdx,
	}
}

// claimIndexes keeps in-range, not-yet-claimed indexes in sorted order.
func claimIndexes(indexes []int, seen []bool) []int {
	var out []int
	for _, i := range indexes {
		if i < 0 || i >= len(seen) || seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func unclaimed(seen []bool) []int {
	var out []int
	for i, s := range seen {
		if !s {
			out = append(out, i)
		}
	}
	return out
}

// Verify checks the partition invariant over one suggestion batch: indexes
// must cover the bundle exactly once within the batch. (Separate batches
// from resolver re-runs each partition the bundle on their own; merges stay
// idempotent per index, so overlap across batches is harmless.) Violations
// mean corrupted job data, not a business error.
func Verify(bundle *types.ReviewBundle, suggestions []types.AssignmentSuggestion) error {
	if bundle == nil {
		return fmt.Errorf("review bundle missing")
	}
	if err := verifyAxis(len(bundle.Mcqs), suggestions, func(s types.AssignmentSuggestion) []int { return s.McqIndexes }, "mcq"); err != nil {
		return err
	}
	return verifyAxis(len(bundle.Flashcards), suggestions, func(s types.AssignmentSuggestion) []int { return s.FlashcardIndexes }, "flashcard")
}

func verifyAxis(size int, suggestions []types.AssignmentSuggestion, pick func(types.AssignmentSuggestion) []int, kind string) error {
	seen := make([]bool, size)
	for _, s := range suggestions {
		for _, i := range pick(s) {
			if i < 0 || i >= size {
				return fmt.Errorf("%s index %d out of range (bundle has %d)", kind, i, size)
			}
			if seen[i] {
				return fmt.Errorf("%s index %d claimed by more than one group", kind, i)
			}
			seen[i] = true
		}
	}
	for i, s := range seen {
		if !s {
			return fmt.Errorf("%s index %d not covered by any group", kind, i)
		}
	}
	return nil
}
