// Package rag generates answers grounded in retrieved document passages.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/ragchat-api-go/internal/formatter"
	"github.com/ragchat-api-go/internal/i18n"
	"github.com/ragchat-api-go/internal/models"
	"github.com/ragchat-api-go/internal/services/llm"
	"github.com/ragchat-api-go/internal/services/search"
	"github.com/sirupsen/logrus"
)

const (
	searchLimit       = 5
	passagesPerDoc    = 3
	contextCharLimit  = 3000
	historyTail       = 4
	ragTemperature    = 0.1
	simpleTemperature = 0.3
)

const ragSystemPrompt = `You are a helpful assistant. Answer questions using ONLY the provided document content.

RULES:
1. Extract exact values from documents (names, numbers, dates)
2. Give direct, concise answers
3. Cite the source document when possible
4. If information is not in documents, say so clearly
5. Respond in plain text only - no JSON, no special markers`

const simpleSystemPrompt = `You are a helpful assistant. Answer questions clearly and concisely.
Respond in plain text only - no JSON, no special markers like [EN] or [JA].`

// Service represents the RAG interface
type Service interface {
	GenerateAnswer(ctx context.Context, query string, scope, documentNames []string, history []models.Message) (*models.RAGResult, error)
	GenerateSimpleAnswer(ctx context.Context, query string, history []models.Message) (string, error)
}

// Orchestrator retrieves passages and prompts the model against them.
type Orchestrator struct {
	search    search.Service
	llm       llm.Service
	localizer *i18n.Localizer
	logger    *logrus.Logger
}

// New creates a new RAG orchestrator
func New(searchSvc search.Service, llmSvc llm.Service, localizer *i18n.Localizer, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		search:    searchSvc,
		llm:       llmSvc,
		localizer: localizer,
		logger:    logger,
	}
}

// GenerateAnswer answers a query from documents in scope. Finding nothing is
// a valid outcome and yields a canned answer, not an error.
func (o *Orchestrator) GenerateAnswer(ctx context.Context, query string, scope, documentNames []string, history []models.Message) (*models.RAGResult, error) {
	o.logger.WithFields(logrus.Fields{
		"query": truncateForLog(query, 50),
		"scope": len(scope),
	}).Info("Generating RAG answer")

	result, err := o.search.Search(ctx, query, scope, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("document search failed: %w", err)
	}

	retrieval := toRetrieval(result)
	o.logger.WithField("passages", len(retrieval.Passages)).Debug("Retrieved passages")

	if len(retrieval.Passages) == 0 {
		return &models.RAGResult{
			Answer:        o.localizer.Get(o.localizer.DefaultLanguage(), i18n.MsgNoRelevantInfo),
			Sources:       []string{},
			DocumentsUsed: 0,
		}, nil
	}

	contextBlock := buildContext(retrieval.Passages, documentNames)

	userPrompt := fmt.Sprintf(`DOCUMENT CONTENT:
%s

QUESTION: %s

Answer based ONLY on the documents above:`, contextBlock, query)

	messages := make([]models.Message, 0, historyTail+2)
	messages = append(messages, models.Message{Role: models.RoleSystem, Content: ragSystemPrompt})
	messages = append(messages, tail(history, historyTail)...)
	messages = append(messages, models.Message{Role: models.RoleUser, Content: userPrompt})

	answer, err := o.llm.Generate(ctx, messages, llm.Options{Temperature: ragTemperature})
	if err != nil {
		return nil, fmt.Errorf("answer generation failed: %w", err)
	}

	return &models.RAGResult{
		Answer:        formatter.CleanModelOutput(answer.RawText),
		Sources:       sources(result),
		DocumentsUsed: len(retrieval.Passages),
	}, nil
}

// GenerateSimpleAnswer answers without retrieval.
func (o *Orchestrator) GenerateSimpleAnswer(ctx context.Context, query string, history []models.Message) (string, error) {
	messages := make([]models.Message, 0, historyTail+2)
	messages = append(messages, models.Message{Role: models.RoleSystem, Content: simpleSystemPrompt})
	messages = append(messages, tail(history, historyTail)...)
	messages = append(messages, models.Message{Role: models.RoleUser, Content: query})

	answer, err := o.llm.Generate(ctx, messages, llm.Options{Temperature: simpleTemperature})
	if err != nil {
		return "", fmt.Errorf("answer generation failed: %w", err)
	}
	return formatter.CleanModelOutput(answer.RawText), nil
}

// toRetrieval flattens each document into one passage. At most three text
// fragments per document are kept, with the stored content as fallback.
func toRetrieval(result *search.Result) models.RetrievalResult {
	retrieval := models.RetrievalResult{Found: result.NumFound}
	for _, doc := range result.Documents {
		fragments := doc.TextPassages
		if len(fragments) > passagesPerDoc {
			fragments = fragments[:passagesPerDoc]
		}
		text := strings.Join(fragments, "\n")
		if text == "" {
			text = doc.Content
		}
		retrieval.Passages = append(retrieval.Passages, models.Passage{
			SourceTitle: doc.Title,
			Text:        text,
		})
	}
	return retrieval
}

// buildContext renders banner-delimited blocks for the prompt. Untitled
// documents fall back to the caller-supplied display name, then to a
// positional label.
func buildContext(passages []models.Passage, documentNames []string) string {
	blocks := make([]string, 0, len(passages))
	for i, passage := range passages {
		name := passage.SourceTitle
		if name == "" && i < len(documentNames) {
			name = documentNames[i]
		}
		if name == "" {
			name = fmt.Sprintf("Document %d", i+1)
		}
		blocks = append(blocks, fmt.Sprintf("=== %s ===\n%s\n===", name, truncateRunes(passage.Text, contextCharLimit)))
	}
	return strings.Join(blocks, "\n\n")
}

// sources lists the distinct titles of the retrieved documents, keeping
// first-seen order. Untitled documents are identified by ID.
func sources(result *search.Result) []string {
	seen := make(map[string]struct{}, len(result.Documents))
	titles := make([]string, 0, len(result.Documents))
	for _, doc := range result.Documents {
		title := doc.Title
		if title == "" {
			title = doc.ID
		}
		if title == "" {
			continue
		}
		if _, ok := seen[title]; ok {
			continue
		}
		seen[title] = struct{}{}
		titles = append(titles, title)
	}
	return titles
}

func tail(messages []models.Message, n int) []models.Message {
	if len(messages) <= n {
		return messages
	}
	return messages[len(messages)-n:]
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func truncateForLog(s string, limit int) string {
	return truncateRunes(s, limit)
}
