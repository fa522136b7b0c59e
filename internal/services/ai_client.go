package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	types "github.com/quizforge/quizforge-backend/internal/domain/content"
	"github.com/quizforge/quizforge-backend/internal/pipeline/assign"
	"github.com/quizforge/quizforge-backend/internal/platform/envutil"
	"github.com/quizforge/quizforge-backend/internal/platform/logger"
)

// AIClient is the model-facing surface of the pipeline. Every method returns
// structured output decoded from a JSON-only chat completion; callers treat
// the results as untrusted proposals and validate before persisting.
type AIClient interface {
	PlanContent(ctx context.Context, sourceText string, extractedCount int) (*PlanSuggestion, error)
	GenerateBatch(ctx context.Context, req BatchRequest) (*types.BatchResult, error)
	ExtractContent(ctx context.Context, sourceText string) (*ExtractionResult, error)
	SuggestAssignment(ctx context.Context, req AssignmentRequest) ([]assign.ProposedGroup, error)
}

type PlanSuggestion struct {
	Plan    types.GenerationPlan `json:"plan"`
	Topic   string               `json:"topic"`
	Chapter string               `json:"chapter"`
}

type BatchRequest struct {
	BatchNumber    int
	SourceText     string
	McqCount       int
	FlashcardCount int
	TopicHint      string
	ChapterHint    string
}

type ExtractionResult struct {
	Staged           types.StagedExtraction `json:"staged"`
	SuggestedNewMcqs int                    `json:"suggested_new_mcqs"`
	KeyTopics        []string               `json:"key_topics"`
}

type AssignmentRequest struct {
	Bundle         *types.ReviewBundle
	ExistingTopics []string
	// Chapter display names keyed by topic display name.
	ExistingChapters map[string][]string
	TopicHint        string
	ChapterHint      string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content,omitempty"`
		} `json:"message,omitempty"`
	} `json:"choices"`
}

type aiClient struct {
	log        *logger.Logger
	httpClient *http.Client
	apiKey     string
	baseURL    string
	chatModel  string
	timeout    time.Duration
}

func NewAIClient(log *logger.Logger) (AIClient, error) {
	serviceLog := log.With("service", "AIClient")
	apiKey := envutil.GetEnv("OPENAI_API_KEY", "", log)
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	baseURL := strings.TrimRight(envutil.GetEnv("OPENAI_BASE_URL", "https://api.openai.com/v1", log), "/")
	chatModel := envutil.GetEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini", log)
	timeout := envutil.GetEnvAsDuration("OPENAI_TIMEOUT", 90*time.Second, log)

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &aiClient{
		log:        serviceLog,
		httpClient: &http.Client{Transport: tr},
		apiKey:     apiKey,
		baseURL:    baseURL,
		chatModel:  chatModel,
		timeout:    timeout,
	}, nil
}

// NewAIClientWithHTTPClient is intended for tests; it avoids network access
// by using a custom RoundTripper.
func NewAIClientWithHTTPClient(log *logger.Logger, httpClient *http.Client) (AIClient, error) {
	client, err := NewAIClient(log)
	if err != nil {
		return nil, err
	}
	if c, ok := client.(*aiClient); ok && httpClient != nil {
		c.httpClient = httpClient
	}
	return client, nil
}

func (c *aiClient) PlanContent(ctx context.Context, sourceText string, extractedCount int) (*PlanSuggestion, error) {
	system := strings.Join([]string{
		"You plan quiz content generation from study material.",
		"Decide how many multiple-choice questions and flashcards the material supports,",
		"and suggest one topic and one chapter name for it.",
		`Return JSON only: {"plan":{"mcq_count":int,"flashcard_count":int},"topic":string,"chapter":string}.`,
	}, " ")
	user := sourceText
	if extractedCount > 0 {
		user = fmt.Sprintf("The material already contains %d extracted questions; plan counts for NEW content only.\n\n%s", extractedCount, sourceText)
	}

	var out PlanSuggestion
	if err := c.completeJSON(ctx, system, user, &out); err != nil {
		return nil, fmt.Errorf("plan content: %w", err)
	}
	if out.Plan.McqCount < 0 || out.Plan.FlashcardCount < 0 {
		return nil, fmt.Errorf("plan content: negative counts in model output")
	}
	if out.Plan.McqCount == 0 && out.Plan.FlashcardCount == 0 {
		return nil, fmt.Errorf("plan content: model planned no content")
	}
	return &out, nil
}

func (c *aiClient) GenerateBatch(ctx context.Context, req BatchRequest) (*types.BatchResult, error) {
	system := strings.Join([]string{
		"You write quiz content from study material.",
		fmt.Sprintf("Produce exactly %d multiple-choice questions (4 options each, correct_index is 0-based) and %d flashcards.", req.McqCount, req.FlashcardCount),
		`Return JSON only: {"mcqs":[{"question":string,"options":[string],"correct_index":int,"explanation":string}],"flashcards":[{"front":string,"back":string}]}.`,
	}, " ")
	user := req.SourceText
	if req.TopicHint != "" {
		user = fmt.Sprintf("Topic: %s / %s\n\n%s", req.TopicHint, req.ChapterHint, req.SourceText)
	}

	var out types.BatchResult
	if err := c.completeJSON(ctx, system, user, &out); err != nil {
		return nil, fmt.Errorf("generate batch %d: %w", req.BatchNumber, err)
	}
	if len(out.Mcqs) == 0 && len(out.Flashcards) == 0 {
		return nil, fmt.Errorf("generate batch %d: model returned no items", req.BatchNumber)
	}
	for i, m := range out.Mcqs {
		if len(m.Options) < 2 || m.CorrectIndex < 0 || m.CorrectIndex >= len(m.Options) {
			return nil, fmt.Errorf("generate batch %d: mcq %d has invalid options/correct_index", req.BatchNumber, i)
		}
	}
	out.BatchNumber = req.BatchNumber
	return &out, nil
}

func (c *aiClient) ExtractContent(ctx context.Context, sourceText string) (*ExtractionResult, error) {
	system := strings.Join([]string{
		"You extract existing exam questions from study material that already contains them.",
		"Pull out every complete multiple-choice question verbatim.",
		"Explanations that belong to no extracted question go into orphan_explanations.",
		"Also estimate how many NEW questions the remaining prose supports and list its key topics.",
		`Return JSON only: {"staged":{"extracted_mcqs":[{"question":string,"options":[string],"correct_index":int,"explanation":string}],"orphan_explanations":[string]},"suggested_new_mcqs":int,"key_topics":[string]}.`,
	}, " ")

	var out ExtractionResult
	if err := c.completeJSON(ctx, system, sourceText, &out); err != nil {
		return nil, fmt.Errorf("extract content: %w", err)
	}
	for i, m := range out.Staged.ExtractedMcqs {
		if len(m.Options) < 2 || m.CorrectIndex < 0 || m.CorrectIndex >= len(m.Options) {
			return nil, fmt.Errorf("extract content: extracted mcq %d has invalid options/correct_index", i)
		}
	}
	if out.SuggestedNewMcqs < 0 {
		out.SuggestedNewMcqs = 0
	}
	return &out, nil
}

func (c *aiClient) SuggestAssignment(ctx context.Context, req AssignmentRequest) ([]assign.ProposedGroup, error) {
	if req.Bundle == nil {
		return nil, fmt.Errorf("suggest assignment: bundle required")
	}
	system := strings.Join([]string{
		"You organize reviewed quiz items into topic/chapter groups.",
		"Every mcq index and flashcard index must appear in exactly one group.",
		"Prefer existing topics and chapters when they fit; invent new chapter names only when nothing fits.",
		`Return JSON only: {"groups":[{"topic_name":string,"chapter_name":string,"mcq_indexes":[int],"flashcard_indexes":[int]}]}.`,
	}, " ")

	payload := map[string]any{
		"mcqs":              summarizeMcqs(req.Bundle.Mcqs),
		"flashcards":        summarizeCards(req.Bundle.Flashcards),
		"existing_topics":   req.ExistingTopics,
		"existing_chapters": req.ExistingChapters,
	}
	if req.TopicHint != "" {
		payload["topic_hint"] = req.TopicHint
		payload["chapter_hint"] = req.ChapterHint
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var out struct {
		Groups []assign.ProposedGroup `json:"groups"`
	}
	if err := c.completeJSON(ctx, system, string(raw), &out); err != nil {
		return nil, fmt.Errorf("suggest assignment: %w", err)
	}
	return out.Groups, nil
}

// summarize* keeps the assignment prompt small: grouping needs the question
// stems, not the full option lists and explanations.
func summarizeMcqs(mcqs []types.Mcq) []map[string]any {
	out := make([]map[string]any, 0, len(mcqs))
	for i, m := range mcqs {
		out = append(out, map[string]any{"index": i, "question": m.Question})
	}
	return out
}

func summarizeCards(cards []types.Flashcard) []map[string]any {
	out := make([]map[string]any, 0, len(cards))
	for i, f := range cards {
		out = append(out, map[string]any{"index": i, "front": f.Front})
	}
	return out
}

func (c *aiClient) completeJSON(ctx context.Context, system, user string, out any) error {
	reqBody := chatCompletionRequest{
		Model: c.chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    0.2,
		ResponseFormat: map[string]any{"type": "json_object"},
	}

	var resp chatCompletionResponse
	if err := c.doJSON(ctx, "POST", "/chat/completions", reqBody, &resp); err != nil {
		return err
	}

	text := ""
	for _, choice := range resp.Choices {
		if strings.TrimSpace(choice.Message.Content) != "" {
			text = choice.Message.Content
			break
		}
	}
	if text == "" {
		return fmt.Errorf("empty completion")
	}
	if err := json.Unmarshal([]byte(sanitizeJSONText(text)), out); err != nil {
		return fmt.Errorf("undecodable completion: %w", err)
	}
	return nil
}

func (c *aiClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	ctx2 := ctx
	var cancel context.CancelFunc
	if c.timeout > 0 {
		ctx2, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx2, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return fmt.Errorf("upstream status %d: %s", resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func sanitizeJSONText(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	firstNL := strings.IndexByte(s, '\n')
	if firstNL == -1 {
		return strings.TrimSpace(strings.Trim(s, "`"))
	}
	s = s[firstNL+1:]
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
