package models

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatInput is the request payload for a chat turn
type ChatInput struct {
	Prompt        string    `json:"prompt"`
	ChatHistory   []Message `json:"chatHistory,omitempty"`
	DocumentIDs   []string  `json:"documentIds,omitempty"`
	DocumentNames []string  `json:"documentNames,omitempty"`
}

// ChatMetrics holds per-stage timings in milliseconds
type ChatMetrics struct {
	TotalTime       int64  `json:"totalTime"`
	RAGTime         *int64 `json:"ragTime,omitempty"`
	LLMTime         *int64 `json:"llmTime,omitempty"`
	TranslationTime *int64 `json:"translationTime,omitempty"`
}

// ChatOutput is the response payload for a chat turn
type ChatOutput struct {
	Content  string      `json:"content"`
	Language string      `json:"language"`
	UsedRAG  bool        `json:"usedRAG"`
	Sources  []string    `json:"sources"`
	Metrics  ChatMetrics `json:"metrics"`
}

// Language of a query
type Language string

const (
	LanguageEN      Language = "en"
	LanguageJA      Language = "ja"
	LanguageUnknown Language = "unknown"
)

// Intent of a query
type Intent string

const (
	IntentDocument Intent = "document"
	IntentGeneral  Intent = "general"
)

// Classification is the result of classifying a query
type Classification struct {
	Language   Language
	Intent     Intent
	Confidence float64
}

// Passage is a retrieved fragment of an indexed document
type Passage struct {
	SourceTitle string
	Text        string
}

// RetrievalResult holds passages returned by the search backend.
// Zero passages is a valid state, not an error.
type RetrievalResult struct {
	Passages []Passage
	Found    int
}

// GeneratedAnswer is the raw output of one model call
type GeneratedAnswer struct {
	RawText   string
	ElapsedMs int64
}

// RAGResult is the outcome of a retrieval-augmented generation pass
type RAGResult struct {
	Answer        string
	Sources       []string
	DocumentsUsed int
}

// DualLanguageEnvelope carries both renderings of one answer across the wire
type DualLanguageEnvelope struct {
	DualLanguage   bool   `json:"dualLanguage"`
	Japanese       string `json:"japanese"`
	Translated     string `json:"translated"`
	TargetLanguage string `json:"targetLanguage"`
}
