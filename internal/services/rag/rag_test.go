package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/ragchat-api-go/internal/i18n"
	"github.com/ragchat-api-go/internal/models"
	"github.com/ragchat-api-go/internal/services/llm"
	"github.com/ragchat-api-go/internal/services/search"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearch struct {
	result *search.Result
	err    error

	gotQuery string
	gotScope []string
	gotLimit int
}

func (s *stubSearch) Search(ctx context.Context, query string, scope []string, limit int) (*search.Result, error) {
	s.gotQuery = query
	s.gotScope = scope
	s.gotLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubSearch) Delete(ctx context.Context, documentID string) error { return nil }
func (s *stubSearch) Health(ctx context.Context) error                    { return nil }

type stubLLM struct {
	content string
	err     error

	gotMessages []models.Message
	gotOptions  llm.Options
	calls       int
}

func (s *stubLLM) Generate(ctx context.Context, messages []models.Message, opts llm.Options) (*models.GeneratedAnswer, error) {
	s.calls++
	s.gotMessages = messages
	s.gotOptions = opts
	if s.err != nil {
		return nil, s.err
	}
	return &models.GeneratedAnswer{RawText: s.content, ElapsedMs: 1}, nil
}

func (s *stubLLM) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	return s.content, s.err
}

func (s *stubLLM) Translate(ctx context.Context, text, targetLanguage string) string { return text }
func (s *stubLLM) Health(ctx context.Context) error                                  { return nil }

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newOrchestrator(t *testing.T, searchSvc search.Service, llmSvc llm.Service) *Orchestrator {
	t.Helper()
	localizer, err := i18n.NewLocalizer("en", "")
	require.NoError(t, err)
	return New(searchSvc, llmSvc, localizer, testLogger())
}

func TestGenerateAnswer_NoPassagesIsNotAnError(t *testing.T) {
	searchSvc := &stubSearch{result: &search.Result{}}
	llmSvc := &stubLLM{content: "should not be called"}
	o := newOrchestrator(t, searchSvc, llmSvc)

	result, err := o.GenerateAnswer(context.Background(), "what is my leave balance?", []string{"d1"}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "I couldn't find relevant information in your documents to answer this question.", result.Answer)
	assert.Empty(t, result.Sources)
	assert.Equal(t, 0, result.DocumentsUsed)
	assert.Equal(t, 0, llmSvc.calls)

	assert.Equal(t, []string{"d1"}, searchSvc.gotScope)
	assert.Equal(t, 5, searchSvc.gotLimit)
}

func TestGenerateAnswer_BuildsGroundedPrompt(t *testing.T) {
	searchSvc := &stubSearch{result: &search.Result{
		NumFound: 2,
		Documents: []search.Document{
			{ID: "d1", Title: "Employee Handbook", TextPassages: []string{"p1", "p2"}},
			{ID: "d2", Title: "Leave Policy", Content: "21 days of annual leave"},
		},
	}}
	llmSvc := &stubLLM{content: "**You have 21 days** of leave."}
	o := newOrchestrator(t, searchSvc, llmSvc)

	history := []models.Message{
		{Role: models.RoleUser, Content: "m1"},
		{Role: models.RoleAssistant, Content: "m2"},
		{Role: models.RoleUser, Content: "m3"},
		{Role: models.RoleAssistant, Content: "m4"},
		{Role: models.RoleUser, Content: "m5"},
	}

	result, err := o.GenerateAnswer(context.Background(), "How much leave do I have?", []string{"d1", "d2"}, nil, history)
	require.NoError(t, err)

	assert.Equal(t, "You have 21 days of leave.", result.Answer)
	assert.Equal(t, []string{"Employee Handbook", "Leave Policy"}, result.Sources)
	assert.Equal(t, 2, result.DocumentsUsed)

	require.Len(t, llmSvc.gotMessages, 6)
	assert.Equal(t, models.RoleSystem, llmSvc.gotMessages[0].Role)
	assert.Contains(t, llmSvc.gotMessages[0].Content, "ONLY the provided document content")
	// History is bounded to the last four messages.
	assert.Equal(t, "m2", llmSvc.gotMessages[1].Content)
	assert.Equal(t, "m5", llmSvc.gotMessages[4].Content)

	userPrompt := llmSvc.gotMessages[5].Content
	assert.Contains(t, userPrompt, "=== Employee Handbook ===\np1\np2\n===")
	assert.Contains(t, userPrompt, "=== Leave Policy ===\n21 days of annual leave\n===")
	assert.Contains(t, userPrompt, "QUESTION: How much leave do I have?")

	assert.Equal(t, 0.1, llmSvc.gotOptions.Temperature)
}

func TestGenerateAnswer_SearchErrorPropagates(t *testing.T) {
	searchSvc := &stubSearch{err: assert.AnError}
	o := newOrchestrator(t, searchSvc, &stubLLM{})

	_, err := o.GenerateAnswer(context.Background(), "query", nil, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestGenerateAnswer_DeduplicatesSources(t *testing.T) {
	searchSvc := &stubSearch{result: &search.Result{
		NumFound: 3,
		Documents: []search.Document{
			{ID: "d1", Title: "Handbook", TextPassages: []string{"a"}},
			{ID: "d2", Title: "Handbook", TextPassages: []string{"b"}},
			{ID: "d3", TextPassages: []string{"c"}},
		},
	}}
	o := newOrchestrator(t, searchSvc, &stubLLM{content: "answer text"})

	result, err := o.GenerateAnswer(context.Background(), "query", nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Handbook", "d3"}, result.Sources)
}

func TestBuildContext_NameFallbacks(t *testing.T) {
	passages := []models.Passage{
		{SourceTitle: "Titled", Text: "t"},
		{SourceTitle: "", Text: "n"},
		{SourceTitle: "", Text: "g"},
	}
	got := buildContext(passages, []string{"", "Display Name"})

	assert.Contains(t, got, "=== Titled ===")
	assert.Contains(t, got, "=== Display Name ===")
	assert.Contains(t, got, "=== Document 3 ===")
}

func TestBuildContext_TruncatesLongPassages(t *testing.T) {
	long := strings.Repeat("あ", contextCharLimit+100)
	got := buildContext([]models.Passage{{SourceTitle: "Doc", Text: long}}, nil)

	want := "=== Doc ===\n" + strings.Repeat("あ", contextCharLimit) + "\n==="
	assert.Equal(t, want, got)
}

func TestToRetrieval(t *testing.T) {
	result := &search.Result{
		NumFound: 2,
		Documents: []search.Document{
			{ID: "d1", Title: "A", TextPassages: []string{"p1", "p2", "p3", "p4"}},
			{ID: "d2", Title: "B", Content: "stored content"},
		},
	}

	retrieval := toRetrieval(result)
	assert.Equal(t, 2, retrieval.Found)
	require.Len(t, retrieval.Passages, 2)
	assert.Equal(t, "p1\np2\np3", retrieval.Passages[0].Text)
	assert.Equal(t, "stored content", retrieval.Passages[1].Text)
}

func TestGenerateSimpleAnswer(t *testing.T) {
	llmSvc := &stubLLM{content: "# Hi\nplain answer"}
	o := newOrchestrator(t, &stubSearch{}, llmSvc)

	history := make([]models.Message, 6)
	for i := range history {
		history[i] = models.Message{Role: models.RoleUser, Content: "h"}
	}

	got, err := o.GenerateSimpleAnswer(context.Background(), "Hello", history)
	require.NoError(t, err)
	assert.Equal(t, "Hi\nplain answer", got)

	require.Len(t, llmSvc.gotMessages, 6)
	assert.Equal(t, models.RoleSystem, llmSvc.gotMessages[0].Role)
	assert.Contains(t, llmSvc.gotMessages[0].Content, "no special markers")
	assert.Equal(t, "Hello", llmSvc.gotMessages[5].Content)
	assert.Equal(t, 0.3, llmSvc.gotOptions.Temperature)
}

func TestGenerateSimpleAnswer_LLMErrorPropagates(t *testing.T) {
	o := newOrchestrator(t, &stubSearch{}, &stubLLM{err: assert.AnError})
	_, err := o.GenerateSimpleAnswer(context.Background(), "Hello", nil)
	assert.ErrorIs(t, err, assert.AnError)
}
