package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ragchat-api-go/internal/config"
	"github.com/ragchat-api-go/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Options carries per-request generation tuning.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Service represents the language model gateway interface
type Service interface {
	Generate(ctx context.Context, messages []models.Message, opts Options) (*models.GeneratedAnswer, error)
	Complete(ctx context.Context, prompt, systemPrompt string) (string, error)
	Translate(ctx context.Context, text, targetLanguage string) string
	Health(ctx context.Context) error
}

// Gateway talks to Ollama-compatible endpoints. A single instance rotates
// requests round-robin across the configured base URLs.
type Gateway struct {
	config     *config.LLMConfig
	endpoints  []string
	cursor     atomic.Uint64
	httpClient *http.Client
	pacer      *rate.Limiter
	logger     *logrus.Logger
}

// NewGateway creates a new language model gateway
func NewGateway(cfg *config.LLMConfig, logger *logrus.Logger) *Gateway {
	endpoints := make([]string, 0, len(cfg.Endpoints))
	for _, url := range cfg.Endpoints {
		url = strings.TrimRight(strings.TrimSpace(url), "/")
		if url != "" {
			endpoints = append(endpoints, url)
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	var pacer *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		pacer = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	logger.WithFields(logrus.Fields{
		"endpoints": len(endpoints),
		"model":     cfg.Model,
	}).Info("LLM gateway initialized")

	return &Gateway{
		config:    cfg,
		endpoints: endpoints,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		pacer:  pacer,
		logger: logger,
	}
}

func (g *Gateway) nextBaseURL() (string, error) {
	if len(g.endpoints) == 0 {
		return "", fmt.Errorf("no LLM endpoint configured")
	}
	index := g.cursor.Add(1) - 1
	return g.endpoints[index%uint64(len(g.endpoints))], nil
}

type chatRequest struct {
	Model    string           `json:"model"`
	Stream   bool             `json:"stream"`
	Messages []models.Message `json:"messages"`
	Options  chatOptions      `json:"options"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error"`
}

// Generate sends a chat completion request and returns the raw model output
// with the elapsed wall-clock time.
func (g *Gateway) Generate(ctx context.Context, messages []models.Message, opts Options) (*models.GeneratedAnswer, error) {
	baseURL, err := g.nextBaseURL()
	if err != nil {
		return nil, err
	}

	model := opts.Model
	if model == "" {
		model = g.config.Model
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.config.MaxTokens
	}

	if g.pacer != nil {
		if err := g.pacer.Wait(ctx); err != nil {
			return nil, err
		}
	}

	reqBody := chatRequest{
		Model:    model,
		Stream:   false,
		Messages: messages,
		Options: chatOptions{
			Temperature: opts.Temperature,
			NumPredict:  maxTokens,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := baseURL + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	g.logger.WithFields(logrus.Fields{
		"url":         url,
		"model":       model,
		"messages":    len(messages),
		"temperature": opts.Temperature,
	}).Debug("Sending LLM request")

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("LLM request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read LLM response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		g.logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"url":    url,
		}).Error("LLM request failed")
		return nil, fmt.Errorf("LLM request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("LLM error: %s", result.Error)
	}

	return &models.GeneratedAnswer{
		RawText:   result.Message.Content,
		ElapsedMs: time.Since(start).Milliseconds(),
	}, nil
}

// Complete runs a single-turn completion with an optional system prompt.
func (g *Gateway) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	messages := make([]models.Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, models.Message{Role: models.RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, models.Message{Role: models.RoleUser, Content: prompt})

	answer, err := g.Generate(ctx, messages, Options{Temperature: 0.1})
	if err != nil {
		return "", err
	}
	return answer.RawText, nil
}

var (
	reTransLangMarker = regexp.MustCompile(`(?i)\[(EN|JA|ENGLISH|JAPANESE)\]`)
	reTransComment    = regexp.MustCompile(`(?s)<!--.*?-->`)
	reTransEnvelope   = regexp.MustCompile(`\{[^}]*"dualLanguage"[^}]*\}`)
	reTransBoldItalic = regexp.MustCompile(`\*\*\*(.+?)\*\*\*`)
	reTransBold       = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reTransItalic     = regexp.MustCompile(`\*(.+?)\*`)
	reTransHeading    = regexp.MustCompile(`(?m)^#+\s+`)
	reTransNewlines   = regexp.MustCompile(`\n\n\n+`)
)

// Translate renders text into the target language. It never fails: any error
// returns the original text unchanged so callers can degrade gracefully.
func (g *Gateway) Translate(ctx context.Context, text, targetLanguage string) string {
	systemPrompt := fmt.Sprintf(`You are a translator. Translate the following text to %s.
Return ONLY the translation, nothing else. No explanations, no markers, no formatting.`, targetLanguage)

	result, err := g.Complete(ctx, text, systemPrompt)
	if err != nil {
		g.logger.WithError(err).WithField("targetLanguage", targetLanguage).Warn("Translation failed, returning original text")
		return text
	}
	return cleanTranslation(result)
}

// cleanTranslation strips language markers and markdown the model sometimes
// emits despite the prompt.
func cleanTranslation(text string) string {
	text = reTransLangMarker.ReplaceAllString(text, "")
	text = reTransComment.ReplaceAllString(text, "")
	text = reTransEnvelope.ReplaceAllString(text, "")
	text = reTransBoldItalic.ReplaceAllString(text, "$1")
	text = reTransBold.ReplaceAllString(text, "$1")
	text = reTransItalic.ReplaceAllString(text, "$1")
	text = reTransHeading.ReplaceAllString(text, "")
	text = reTransNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Health probes the first endpoint's tag listing.
func (g *Gateway) Health(ctx context.Context) error {
	baseURL := ""
	if len(g.endpoints) > 0 {
		baseURL = g.endpoints[0]
	}
	if baseURL == "" {
		return fmt.Errorf("no LLM endpoint configured")
	}

	timeout := g.config.HealthTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("LLM health check failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("LLM health check returned status %d", resp.StatusCode)
	}
	return nil
}
