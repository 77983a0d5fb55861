// Package chat runs the per-request answer pipeline: classify, generate,
// sanitize, translate, format.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ragchat-api-go/internal/classifier"
	"github.com/ragchat-api-go/internal/formatter"
	"github.com/ragchat-api-go/internal/middleware"
	"github.com/ragchat-api-go/internal/models"
	"github.com/ragchat-api-go/internal/services/llm"
	"github.com/ragchat-api-go/internal/services/rag"
	"github.com/sirupsen/logrus"
)

// minAnswerLength is the shortest sanitized answer accepted before the
// localized fallback replaces it.
const minAnswerLength = 5

const titlePrompt = `You are a title generator. Return ONLY a short title, nothing else.`

// Service represents the chat processing interface
type Service interface {
	Process(ctx context.Context, input models.ChatInput) (*models.ChatOutput, error)
	GenerateTitle(ctx context.Context, prompt string) string
}

// Processor orchestrates one chat turn end to end.
type Processor struct {
	rag       rag.Service
	llm       llm.Service
	formatter *formatter.Formatter
	metrics   *middleware.Metrics
	logger    *logrus.Logger
}

// NewProcessor creates a new chat processor
func NewProcessor(ragSvc rag.Service, llmSvc llm.Service, fmtr *formatter.Formatter, metrics *middleware.Metrics, logger *logrus.Logger) *Processor {
	return &Processor{
		rag:       ragSvc,
		llm:       llmSvc,
		formatter: fmtr,
		metrics:   metrics,
		logger:    logger,
	}
}

// Process classifies the prompt, generates an answer over the RAG or simple
// path, sanitizes it, translates it to Japanese and wraps both renderings in
// the dual-language envelope.
func (p *Processor) Process(ctx context.Context, input models.ChatInput) (*models.ChatOutput, error) {
	start := time.Now()
	requestID := uuid.New().String()
	metrics := models.ChatMetrics{}

	log := p.logger.WithField("requestID", requestID)

	// CLASSIFY
	classification := classifier.Classify(input.Prompt)
	userLanguage := "en"
	if classification.Language == models.LanguageJA {
		userLanguage = "ja"
	}
	hasDocuments := len(input.DocumentIDs) > 0
	useRAG := classifier.ShouldUseRAG(input.Prompt, hasDocuments)

	log.WithFields(logrus.Fields{
		"language":   classification.Language,
		"intent":     classification.Intent,
		"confidence": classification.Confidence,
		"useRAG":     useRAG,
	}).Info("Processing chat request")

	// GENERATE
	var englishAnswer string
	sources := []string{}

	if useRAG {
		ragStart := time.Now()
		ragResult, err := p.rag.GenerateAnswer(ctx, input.Prompt, input.DocumentIDs, input.DocumentNames, input.ChatHistory)
		if err != nil {
			p.metrics.RecordChatRequest("rag", "error")
			return nil, fmt.Errorf("RAG generation failed: %w", err)
		}
		ragTime := time.Since(ragStart).Milliseconds()
		metrics.RAGTime = &ragTime
		p.metrics.RecordChatStage("rag", time.Since(ragStart))

		englishAnswer = ragResult.Answer
		sources = ragResult.Sources
		log.WithFields(logrus.Fields{
			"ragTime":       ragTime,
			"documentsUsed": ragResult.DocumentsUsed,
		}).Debug("RAG generation completed")
	} else {
		llmStart := time.Now()
		answer, err := p.rag.GenerateSimpleAnswer(ctx, input.Prompt, input.ChatHistory)
		if err != nil {
			p.metrics.RecordChatRequest("simple", "error")
			return nil, fmt.Errorf("answer generation failed: %w", err)
		}
		llmTime := time.Since(llmStart).Milliseconds()
		metrics.LLMTime = &llmTime
		p.metrics.RecordChatStage("llm", time.Since(llmStart))

		englishAnswer = answer
		log.WithField("llmTime", llmTime).Debug("Simple generation completed")
	}

	// SANITIZE
	englishAnswer = formatter.CleanModelOutput(englishAnswer)
	if len([]rune(englishAnswer)) < minAnswerLength {
		log.Warn("Generated answer too short, using fallback")
		englishAnswer = p.formatter.FallbackMessage("en")
	}

	// TRANSLATE
	translationStart := time.Now()
	japaneseAnswer := p.llm.Translate(ctx, englishAnswer, "Japanese")
	japaneseAnswer = formatter.CleanJapaneseOutput(japaneseAnswer)
	if japaneseAnswer == "" {
		japaneseAnswer = p.formatter.FallbackMessage("ja")
	}
	translationTime := time.Since(translationStart).Milliseconds()
	metrics.TranslationTime = &translationTime
	p.metrics.RecordChatStage("translation", time.Since(translationStart))

	// FORMAT
	envelope, err := p.formatter.CreateEnvelope(englishAnswer, japaneseAnswer, userLanguage)
	if err != nil {
		return nil, fmt.Errorf("failed to build response envelope: %w", err)
	}

	metrics.TotalTime = time.Since(start).Milliseconds()

	path := "simple"
	if useRAG {
		path = "rag"
	}
	p.metrics.RecordChatRequest(path, "ok")

	log.WithFields(logrus.Fields{
		"totalTime": metrics.TotalTime,
		"usedRAG":   useRAG,
		"sources":   len(sources),
	}).Info("Chat request completed")

	return &models.ChatOutput{
		Content:  envelope.Wrapped,
		Language: userLanguage,
		UsedRAG:  useRAG,
		Sources:  sources,
		Metrics:  metrics,
	}, nil
}

// GenerateTitle produces a short chat title from the first prompt. Failures
// degrade to a generic title.
func (p *Processor) GenerateTitle(ctx context.Context, prompt string) string {
	truncated := prompt
	if runes := []rune(truncated); len(runes) > 100 {
		truncated = string(runes[:100])
	}

	response, err := p.llm.Complete(ctx, fmt.Sprintf("Generate a short title (max 5 words) for this chat: %q", truncated), titlePrompt)
	if err != nil {
		p.logger.WithError(err).Warn("Title generation failed")
		return "New Chat"
	}

	if runes := []rune(response); len(runes) > 50 {
		response = string(runes[:50])
	}
	title := strings.TrimSpace(response)
	if title == "" {
		return "New Chat"
	}
	return title
}
