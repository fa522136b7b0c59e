package content

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// Mcq and Flashcard are the staged (not yet canonical) item shapes produced
// by generation and extraction workers.
type Mcq struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation,omitempty"`
}

type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

type GenerationPlan struct {
	McqCount       int `json:"mcq_count"`
	FlashcardCount int `json:"flashcard_count"`
}

// BatchResult is one entry of the append-only generated_content list, one
// per completed batch. BatchNumber is 1-based.
type BatchResult struct {
	BatchNumber int         `json:"batch_number"`
	Mcqs        []Mcq       `json:"mcqs"`
	Flashcards  []Flashcard `json:"flashcards"`
}

// ReviewBundle is the batch-flattened, still-unapproved content ready for
// assignment. Suggestion indexes reference positions in these slices.
type ReviewBundle struct {
	Mcqs       []Mcq       `json:"mcqs"`
	Flashcards []Flashcard `json:"flashcards"`
}

// StagedExtraction holds the marrow pipeline's extraction output: questions
// already present in the source text, plus explanations that matched no
// extracted question.
type StagedExtraction struct {
	ExtractedMcqs      []Mcq    `json:"extracted_mcqs"`
	OrphanExplanations []string `json:"orphan_explanations,omitempty"`
}

// AssignmentSuggestion proposes one (topic, chapter) group over a subset of
// the review bundle's indexes. Groups accumulate across resolver runs and
// are never mutated in place; Approved flips once the merge commits.
type AssignmentSuggestion struct {
	GroupID          string `json:"group_id"`
	TopicName        string `json:"topic_name"`
	ChapterName      string `json:"chapter_name"`
	IsNewChapter     bool   `json:"is_new_chapter"`
	McqIndexes       []int  `json:"mcq_indexes"`
	FlashcardIndexes []int  `json:"flashcard_indexes"`
	Approved         bool   `json:"approved"`
}

func (j *GenerationJob) Plan() (*GenerationPlan, error) {
	if len(j.SuggestedPlan) == 0 {
		return nil, nil
	}
	var p GenerationPlan
	if err := json.Unmarshal(j.SuggestedPlan, &p); err != nil {
		return nil, fmt.Errorf("decode suggested_plan: %w", err)
	}
	return &p, nil
}

func (j *GenerationJob) Chunks() ([]string, error) {
	if len(j.TextChunks) == 0 {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(j.TextChunks, &out); err != nil {
		return nil, fmt.Errorf("decode text_chunks: %w", err)
	}
	return out, nil
}

func (j *GenerationJob) Batches() ([]BatchResult, error) {
	if len(j.GeneratedContent) == 0 {
		return nil, nil
	}
	var out []BatchResult
	if err := json.Unmarshal(j.GeneratedContent, &out); err != nil {
		return nil, fmt.Errorf("decode generated_content: %w", err)
	}
	return out, nil
}

func (j *GenerationJob) Review() (*ReviewBundle, error) {
	if len(j.FinalAwaitingReviewData) == 0 {
		return nil, nil
	}
	var out ReviewBundle
	if err := json.Unmarshal(j.FinalAwaitingReviewData, &out); err != nil {
		return nil, fmt.Errorf("decode final_awaiting_review_data: %w", err)
	}
	return &out, nil
}

func (j *GenerationJob) Staged() (*StagedExtraction, error) {
	if len(j.StagedContent) == 0 {
		return nil, nil
	}
	var out StagedExtraction
	if err := json.Unmarshal(j.StagedContent, &out); err != nil {
		return nil, fmt.Errorf("decode staged_content: %w", err)
	}
	return &out, nil
}

func (j *GenerationJob) Suggestions() ([]AssignmentSuggestion, error) {
	if len(j.AssignmentSuggestions) == 0 {
		return nil, nil
	}
	var out []AssignmentSuggestion
	if err := json.Unmarshal(j.AssignmentSuggestions, &out); err != nil {
		return nil, fmt.Errorf("decode assignment_suggestions: %w", err)
	}
	return out, nil
}

func (j *GenerationJob) FailedBatchList() ([]int, error) {
	if len(j.FailedBatchNumbers) == 0 {
		return nil, nil
	}
	var out []int
	if err := json.Unmarshal(j.FailedBatchNumbers, &out); err != nil {
		return nil, fmt.Errorf("decode failed_batch_numbers: %w", err)
	}
	return out, nil
}

func (j *GenerationJob) ErrorList() ([]string, error) {
	if len(j.Errors) == 0 {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(j.Errors, &out); err != nil {
		return nil, fmt.Errorf("decode errors: %w", err)
	}
	return out, nil
}

// MustJSON marshals v into a jsonb column value. The payload types above
// contain nothing that can fail to marshal.
func MustJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return datatypes.JSON(b)
}
