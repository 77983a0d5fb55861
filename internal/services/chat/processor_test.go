package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/ragchat-api-go/internal/formatter"
	"github.com/ragchat-api-go/internal/i18n"
	"github.com/ragchat-api-go/internal/middleware"
	"github.com/ragchat-api-go/internal/models"
	"github.com/ragchat-api-go/internal/services/llm"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRAG struct {
	ragResult    *models.RAGResult
	ragErr       error
	simpleAnswer string
	simpleErr    error

	ragCalls    int
	simpleCalls int
}

func (s *stubRAG) GenerateAnswer(ctx context.Context, query string, scope, documentNames []string, history []models.Message) (*models.RAGResult, error) {
	s.ragCalls++
	return s.ragResult, s.ragErr
}

func (s *stubRAG) GenerateSimpleAnswer(ctx context.Context, query string, history []models.Message) (string, error) {
	s.simpleCalls++
	return s.simpleAnswer, s.simpleErr
}

type stubLLM struct {
	translation string
	title       string
	titleErr    error
}

func (s *stubLLM) Generate(ctx context.Context, messages []models.Message, opts llm.Options) (*models.GeneratedAnswer, error) {
	return &models.GeneratedAnswer{}, nil
}

func (s *stubLLM) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	return s.title, s.titleErr
}

func (s *stubLLM) Translate(ctx context.Context, text, targetLanguage string) string {
	if s.translation != "" {
		return s.translation
	}
	return text
}

func (s *stubLLM) Health(ctx context.Context) error { return nil }

func newProcessor(t *testing.T, ragSvc *stubRAG, llmSvc *stubLLM) *Processor {
	t.Helper()
	localizer, err := i18n.NewLocalizer("en", "")
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	return NewProcessor(ragSvc, llmSvc, formatter.New(localizer), middleware.NewMetrics(), logger)
}

func TestProcess_SimplePath(t *testing.T) {
	ragSvc := &stubRAG{simpleAnswer: "Hello! How can I help you today?"}
	llmSvc := &stubLLM{translation: "こんにちは！何かお手伝いできますか？"}
	p := newProcessor(t, ragSvc, llmSvc)

	output, err := p.Process(context.Background(), models.ChatInput{Prompt: "Hello"})
	require.NoError(t, err)

	assert.False(t, output.UsedRAG)
	assert.Equal(t, "en", output.Language)
	assert.Empty(t, output.Sources)
	assert.Equal(t, 1, ragSvc.simpleCalls)
	assert.Equal(t, 0, ragSvc.ragCalls)

	assert.NotNil(t, output.Metrics.LLMTime)
	assert.Nil(t, output.Metrics.RAGTime)
	assert.NotNil(t, output.Metrics.TranslationTime)
	assert.GreaterOrEqual(t, output.Metrics.TotalTime, int64(0))

	envelope := formatter.ParseEnvelope(output.Content)
	require.NotNil(t, envelope)
	assert.Equal(t, "Hello! How can I help you today?", envelope.Translated)
	assert.Equal(t, "こんにちは！何かお手伝いできますか？", envelope.Japanese)
	assert.Equal(t, "en", envelope.TargetLanguage)
}

func TestProcess_RAGPath(t *testing.T) {
	ragSvc := &stubRAG{ragResult: &models.RAGResult{
		Answer:        "You have 21 days of annual leave.",
		Sources:       []string{"Leave Policy"},
		DocumentsUsed: 1,
	}}
	p := newProcessor(t, ragSvc, &stubLLM{translation: "年次休暇は21日あります。"})

	output, err := p.Process(context.Background(), models.ChatInput{
		Prompt:      "What is my leave balance?",
		DocumentIDs: []string{"d1"},
	})
	require.NoError(t, err)

	assert.True(t, output.UsedRAG)
	assert.Equal(t, []string{"Leave Policy"}, output.Sources)
	assert.Equal(t, 1, ragSvc.ragCalls)
	assert.Equal(t, 0, ragSvc.simpleCalls)
	assert.NotNil(t, output.Metrics.RAGTime)
	assert.Nil(t, output.Metrics.LLMTime)

	envelope := formatter.ParseEnvelope(output.Content)
	require.NotNil(t, envelope)
	assert.Equal(t, "You have 21 days of annual leave.", envelope.Translated)
}

func TestProcess_DocumentIntentWithoutDocumentsUsesSimplePath(t *testing.T) {
	ragSvc := &stubRAG{simpleAnswer: "I don't have access to your documents."}
	p := newProcessor(t, ragSvc, &stubLLM{})

	output, err := p.Process(context.Background(), models.ChatInput{Prompt: "What is my leave balance?"})
	require.NoError(t, err)

	assert.False(t, output.UsedRAG)
	assert.Equal(t, 1, ragSvc.simpleCalls)
	assert.Equal(t, 0, ragSvc.ragCalls)
}

func TestProcess_JapanesePromptSetsLanguage(t *testing.T) {
	ragSvc := &stubRAG{simpleAnswer: "That is a greeting in Japanese."}
	p := newProcessor(t, ragSvc, &stubLLM{})

	output, err := p.Process(context.Background(), models.ChatInput{Prompt: "こんにちは、元気ですか"})
	require.NoError(t, err)

	assert.Equal(t, "ja", output.Language)
	envelope := formatter.ParseEnvelope(output.Content)
	require.NotNil(t, envelope)
	assert.Equal(t, "ja", envelope.TargetLanguage)
}

func TestProcess_ShortAnswerReplacedWithFallback(t *testing.T) {
	ragSvc := &stubRAG{simpleAnswer: "ok"}
	p := newProcessor(t, ragSvc, &stubLLM{translation: "stay"})

	output, err := p.Process(context.Background(), models.ChatInput{Prompt: "Hello"})
	require.NoError(t, err)

	envelope := formatter.ParseEnvelope(output.Content)
	require.NotNil(t, envelope)
	assert.Equal(t, "I'm sorry, I couldn't generate a response. Please try again.", envelope.Translated)
}

func TestProcess_GenerationErrorPropagates(t *testing.T) {
	ragSvc := &stubRAG{ragErr: assert.AnError}
	p := newProcessor(t, ragSvc, &stubLLM{})

	_, err := p.Process(context.Background(), models.ChatInput{
		Prompt:      "Where is my payslip?",
		DocumentIDs: []string{"d1"},
	})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestGenerateTitle(t *testing.T) {
	p := newProcessor(t, &stubRAG{}, &stubLLM{title: "  Leave Balance Question  "})
	assert.Equal(t, "Leave Balance Question", p.GenerateTitle(context.Background(), "What is my leave balance?"))
}

func TestGenerateTitle_TruncatesLongTitles(t *testing.T) {
	p := newProcessor(t, &stubRAG{}, &stubLLM{title: strings.Repeat("x", 80)})
	got := p.GenerateTitle(context.Background(), "prompt")
	assert.Len(t, got, 50)
}

func TestGenerateTitle_FallsBackOnError(t *testing.T) {
	p := newProcessor(t, &stubRAG{}, &stubLLM{titleErr: assert.AnError})
	assert.Equal(t, "New Chat", p.GenerateTitle(context.Background(), "prompt"))
}

func TestGenerateTitle_FallsBackOnEmpty(t *testing.T) {
	p := newProcessor(t, &stubRAG{}, &stubLLM{title: "   "})
	assert.Equal(t, "New Chat", p.GenerateTitle(context.Background(), "prompt"))
}
